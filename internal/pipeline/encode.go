package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
)

// GIFNumColors is the palette size used for GIF output.
const GIFNumColors = 256

// Encode writes src in format at the highest quality the format offers:
// JPEG quality 100, lossless PNG at best compression, a full GIF palette.
// No metadata is written, so any orientation tag from the source is gone.
func Encode(src *Raster, format ImageFormat) ([]byte, error) {
	if src == nil {
		return nil, errors.New("nil raster")
	}
	if !format.valid() {
		return nil, fmt.Errorf("%w: %v", ErrFormat, format)
	}

	var img image.Image = src.pix
	var opts []imaging.EncodeOption
	switch format {
	case JPEG:
		img = flatten(src.pix)
		opts = append(opts, imaging.JPEGQuality(100))
	case PNG:
		opts = append(opts, imaging.PNGCompressionLevel(png.BestCompression))
	case GIF:
		opts = append(opts, imaging.GIFNumColors(GIFNumColors))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format.imaging(), opts...); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// flatten composites a translucent image onto white; JPEG has no alpha.
func flatten(img *image.NRGBA) image.Image {
	if img.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
