package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
)

// DetectFormat sniffs the first bytes of data. ok is false when the content
// is not one of the formats this package can decode.
func DetectFormat(data []byte) (format ImageFormat, contentType string, ok bool) {
	ct := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(ct, "image/jpeg"):
		return JPEG, ct, true
	case strings.HasPrefix(ct, "image/png"):
		return PNG, ct, true
	case strings.HasPrefix(ct, "image/gif"):
		return GIF, ct, true
	}
	return 0, ct, false
}

// Decode turns untrusted bytes into a Raster. The decoder is chosen from the
// content, CMYK input is converted to RGB and the EXIF orientation is applied
// to the pixels, so callers never need to look at metadata again.
func Decode(data []byte) (*Raster, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}

	format, ct, ok := DetectFormat(data)
	if !ok {
		return nil, fmt.Errorf("%w: content type %s", ErrDecode, ct)
	}

	// check the header before allocating the full pixel buffer
	cfg, err := decodeConfig(format, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, fmt.Errorf("%w: %w: %dx%d", ErrDecode, ErrInvalidDimensions, cfg.Width, cfg.Height)
	}

	img, err := decodeImage(format, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	img, err = normalizeColor(img)
	if err != nil {
		return nil, err
	}

	orientation := OrientationNormal
	if format == JPEG {
		orientation = readOrientation(data)
	}

	return &Raster{
		pix:         orientationTransform(img, orientation),
		format:      format,
		orientation: orientation,
	}, nil
}

func decodeConfig(format ImageFormat, data []byte) (image.Config, error) {
	r := bytes.NewReader(data)
	switch format {
	case JPEG:
		return jpeg.DecodeConfig(r)
	case PNG:
		return png.DecodeConfig(r)
	default:
		return gif.DecodeConfig(r)
	}
}

func decodeImage(format ImageFormat, data []byte) (image.Image, error) {
	r := bytes.NewReader(data)
	switch format {
	case JPEG:
		return jpeg.Decode(r)
	case PNG:
		return png.Decode(r)
	default:
		return gif.Decode(r)
	}
}

// normalizeColor makes sure img is in a color model the rest of the pipeline
// handles. CMYK (some JPEG encoders emit it tagged as YCbCr) is converted to
// RGB; any other unusual model is rejected instead of producing wrong colors.
func normalizeColor(img image.Image) (image.Image, error) {
	switch src := img.(type) {
	case *image.CMYK:
		b := src.Bounds()
		dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst, nil
	case *image.YCbCr, *image.Gray, *image.Gray16,
		*image.RGBA, *image.RGBA64, *image.NRGBA, *image.NRGBA64,
		*image.Paletted:
		return img, nil
	}
	return nil, fmt.Errorf("%w: unsupported color model %T", ErrDecode, img)
}
