package pipeline

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// OrientationNormal is the EXIF "top-left" orientation: no correction.
const OrientationNormal = 1

// readOrientation returns the EXIF orientation tag embedded in data. Missing,
// unparseable or out-of-range tags all read as OrientationNormal.
func readOrientation(data []byte) (orientation int) {
	// goexif can panic on malformed IFD offsets.
	defer func() {
		if recover() != nil {
			orientation = OrientationNormal
		}
	}()

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return OrientationNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationNormal
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return OrientationNormal
	}
	return o
}

// orientationTransform applies the flip/rotation that makes an image with
// EXIF orientation 1-8 display upright. Unknown values return an unchanged
// copy. Note imaging.Rotate90 turns counter-clockwise.
func orientationTransform(img image.Image, orientation int) *image.NRGBA {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		// stored rotated 90 CCW, turn it clockwise
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return imaging.Clone(img)
	}
}
