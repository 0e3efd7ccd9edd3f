package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

var (
	Red  = color.NRGBA{R: 255, A: 255}
	Blue = color.NRGBA{B: 255, A: 255}
)

// GradientImage returns an opaque image whose red channel follows x and
// green channel follows y.
func GradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: 128, A: 255})
		}
	}
	return img
}

// QuadrantImage returns a blue image with the top-left quadrant painted red.
// Quadrants are large enough to survive JPEG chroma subsampling.
func QuadrantImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/2 && y < height/2 {
				img.SetNRGBA(x, y, Red)
			} else {
				img.SetNRGBA(x, y, Blue)
			}
		}
	}
	return img
}

// IsReddish reports whether c is clearly red, allowing for lossy encoding.
func IsReddish(c color.NRGBA) bool {
	return c.R > 200 && c.G < 80 && c.B < 80
}

func EncodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

// WithEXIFOrientation inserts an APP1 segment carrying a single EXIF
// orientation tag right after the SOI marker of a JPEG stream.
func WithEXIFOrientation(t *testing.T, jpegData []byte, orientation uint16) []byte {
	t.Helper()
	if len(jpegData) < 2 || jpegData[0] != 0xFF || jpegData[1] != 0xD8 {
		t.Fatalf("not a JPEG stream")
	}

	var tiff bytes.Buffer
	tiff.WriteString("MM")
	be := binary.BigEndian
	_ = binary.Write(&tiff, be, uint16(42))
	_ = binary.Write(&tiff, be, uint32(8)) // IFD0 offset
	_ = binary.Write(&tiff, be, uint16(1)) // one entry
	_ = binary.Write(&tiff, be, uint16(0x0112))
	_ = binary.Write(&tiff, be, uint16(3)) // SHORT
	_ = binary.Write(&tiff, be, uint32(1))
	_ = binary.Write(&tiff, be, orientation)
	_ = binary.Write(&tiff, be, uint16(0)) // value padding
	_ = binary.Write(&tiff, be, uint32(0)) // no next IFD

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write(jpegData[:2])
	out.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&out, be, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpegData[2:])
	return out.Bytes()
}
