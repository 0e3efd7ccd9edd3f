package pipeline

import (
	"errors"
	"math"

	"github.com/disintegration/imaging"
)

// Fit scales src to fit inside maxWidth x maxHeight, preserving its aspect
// ratio. With enlarge false an image that already fits is returned as is.
func Fit(src *Raster, maxWidth, maxHeight int, enlarge bool) *Raster {
	if src == nil {
		return nil
	}
	w, h := CalculateDimensions(src.Width(), src.Height(), maxWidth, maxHeight, enlarge)
	if w == src.Width() && h == src.Height() {
		return src
	}
	return src.derive(imaging.Resize(src.pix, w, h, imaging.Lanczos))
}

// Resize fits src into the box and encodes the result at maximum quality.
func Resize(src *Raster, maxWidth, maxHeight int, enlarge bool, format ImageFormat) ([]byte, error) {
	if src == nil {
		return nil, errors.New("nil raster")
	}
	return Encode(Fit(src, maxWidth, maxHeight, enlarge), format)
}

// CalculateDimensions computes the size of an origWidth x origHeight image
// scaled into a maxWidth x maxHeight box. The bound axis takes the box size,
// the other one is derived from the source aspect ratio and rounded to the
// nearest integer (halves away from zero), never below 1. When enlarge is
// false and the source already fits, its size is returned unchanged.
func CalculateDimensions(origWidth, origHeight, maxWidth, maxHeight int, enlarge bool) (int, int) {
	if origWidth <= 0 || origHeight <= 0 || maxWidth <= 0 || maxHeight <= 0 {
		return origWidth, origHeight
	}
	if !enlarge && origWidth <= maxWidth && origHeight <= maxHeight {
		return origWidth, origHeight
	}

	inAspect := float64(origWidth) / float64(origHeight)
	outAspect := float64(maxWidth) / float64(maxHeight)

	if outAspect < inAspect {
		newH := int(math.Round(float64(maxWidth) / inAspect))
		return maxWidth, max(newH, 1)
	}
	newW := int(math.Round(float64(maxHeight) * inAspect))
	return max(newW, 1), maxHeight
}
