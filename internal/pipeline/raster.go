package pipeline

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Raster is a decoded, orientation-corrected image. It is immutable: every
// operation in this package returns a new Raster, so one source can be
// resized into several derivatives without aliasing.
type Raster struct {
	pix         *image.NRGBA
	format      ImageFormat
	orientation int
}

// NewRaster copies img into a Raster tagged with format. The color model is
// normalized the same way Decode does it.
func NewRaster(img image.Image, format ImageFormat) (*Raster, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if !format.valid() {
		return nil, fmt.Errorf("%w: %v", ErrFormat, format)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrDecode, ErrInvalidDimensions)
	}
	normalized, err := normalizeColor(img)
	if err != nil {
		return nil, err
	}
	return &Raster{
		pix:         imaging.Clone(normalized),
		format:      format,
		orientation: OrientationNormal,
	}, nil
}

func (r *Raster) Width() int  { return r.pix.Rect.Dx() }
func (r *Raster) Height() int { return r.pix.Rect.Dy() }

// Bounds always starts at the origin.
func (r *Raster) Bounds() image.Rectangle { return r.pix.Rect }

// Format is the format the raster was decoded from.
func (r *Raster) Format() ImageFormat { return r.format }

// Orientation is the EXIF orientation tag Decode baked into the pixels.
// OrientationNormal when the source had none.
func (r *Raster) Orientation() int { return r.orientation }

// At returns the pixel at (x, y).
func (r *Raster) At(x, y int) color.NRGBA { return r.pix.NRGBAAt(x, y) }

// Image returns a copy of the pixel buffer.
func (r *Raster) Image() image.Image { return imaging.Clone(r.pix) }

func (r *Raster) derive(pix *image.NRGBA) *Raster {
	return &Raster{pix: pix, format: r.format, orientation: r.orientation}
}
