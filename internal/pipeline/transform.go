package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
)

// Transformation is one user-requested geometric operation. Sequences of
// them compose; see NextOrientation for how they act on annotation overlays.
type Transformation int

const (
	RotateClockwise Transformation = iota + 1
	RotateCounterClockwise
	FlipHorizontal
	FlipVertical
)

// Transformations lists every valid Transformation.
var Transformations = []Transformation{
	RotateClockwise,
	RotateCounterClockwise,
	FlipHorizontal,
	FlipVertical,
}

var transformationNames = map[Transformation]string{
	RotateClockwise:        "ROTATE_CLOCKWISE",
	RotateCounterClockwise: "ROTATE_COUNTERCLOCKWISE",
	FlipHorizontal:         "FLIP_HORIZONTAL",
	FlipVertical:           "FLIP_VERTICAL",
}

func (t Transformation) String() string {
	if name, ok := transformationNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Transformation(%d)", int(t))
}

// Valid reports whether t is one of the four known operations.
func (t Transformation) Valid() bool {
	_, ok := transformationNames[t]
	return ok
}

// ParseTransformation accepts the names returned by String, ignoring case.
func ParseTransformation(s string) (Transformation, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for t, n := range transformationNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTransformation, s)
}

// Apply returns a new Raster with op applied. Rotations swap width and
// height; nothing is resampled.
func Apply(src *Raster, op Transformation) (*Raster, error) {
	if src == nil {
		return nil, errors.New("nil raster")
	}
	switch op {
	case RotateClockwise:
		return src.derive(imaging.Rotate270(src.pix)), nil
	case RotateCounterClockwise:
		return src.derive(imaging.Rotate90(src.pix)), nil
	case FlipHorizontal:
		return src.derive(imaging.FlipH(src.pix)), nil
	case FlipVertical:
		return src.derive(imaging.FlipV(src.pix)), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownTransformation, op)
}

// Transform applies op to src and encodes the result in format. Overlay
// orientation is not touched; callers fold the same op with NextOrientation.
func Transform(src *Raster, op Transformation, format ImageFormat) ([]byte, error) {
	out, err := Apply(src, op)
	if err != nil {
		return nil, err
	}
	return Encode(out, format)
}
