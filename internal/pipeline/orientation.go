package pipeline

import "fmt"

// OrientationState records how an annotation's stored coordinates map onto
// the current pixels of the raster it was drawn on. The eight states are the
// symmetries of a rectangle under quarter turns and axis flips.
type OrientationState uint8

const (
	Rot0 OrientationState = iota
	Rot0Flipped
	Rot90
	Rot90Flipped
	Rot180
	Rot180Flipped
	Rot270
	Rot270Flipped
)

// Axes is the stored encoding of an OrientationState. Every combination of
// the three flags is a valid state.
type Axes struct {
	InvertX  bool
	InvertY  bool
	SwapAxes bool
}

var stateAxes = [8]Axes{
	Rot0:          {InvertX: false, InvertY: false, SwapAxes: false},
	Rot0Flipped:   {InvertX: true, InvertY: false, SwapAxes: false},
	Rot90:         {InvertX: true, InvertY: false, SwapAxes: true},
	Rot90Flipped:  {InvertX: true, InvertY: true, SwapAxes: true},
	Rot180:        {InvertX: true, InvertY: true, SwapAxes: false},
	Rot180Flipped: {InvertX: false, InvertY: true, SwapAxes: false},
	Rot270:        {InvertX: false, InvertY: true, SwapAxes: true},
	Rot270Flipped: {InvertX: false, InvertY: false, SwapAxes: true},
}

// axesState is the inverse of stateAxes, indexed by axesIndex.
var axesState [8]OrientationState

func init() {
	for s, a := range stateAxes {
		axesState[a.index()] = OrientationState(s)
	}
}

func (a Axes) index() int {
	i := 0
	if a.InvertX {
		i |= 1
	}
	if a.InvertY {
		i |= 2
	}
	if a.SwapAxes {
		i |= 4
	}
	return i
}

// StateOf decodes a flag triple. It is total.
func StateOf(a Axes) OrientationState {
	return axesState[a.index()]
}

// Axes encodes s as its flag triple. s must be valid.
func (s OrientationState) Axes() Axes {
	return stateAxes[s]
}

func (s OrientationState) Valid() bool {
	return int(s) < len(stateAxes)
}

var stateNames = [8]string{
	Rot0:          "ROT0",
	Rot0Flipped:   "ROT0_FLIPPED",
	Rot90:         "ROT90",
	Rot90Flipped:  "ROT90_FLIPPED",
	Rot180:        "ROT180",
	Rot180Flipped: "ROT180_FLIPPED",
	Rot270:        "ROT270",
	Rot270Flipped: "ROT270_FLIPPED",
}

func (s OrientationState) String() string {
	if s.Valid() {
		return stateNames[s]
	}
	return fmt.Sprintf("OrientationState(%d)", int(s))
}

// Next returns the state after op has been applied to the raster.
func (s OrientationState) Next(op Transformation) OrientationState {
	a := s.Axes()
	switch op {
	case RotateClockwise:
		return StateOf(Axes{InvertX: !a.InvertY, InvertY: a.InvertX, SwapAxes: !a.SwapAxes})
	case RotateCounterClockwise:
		return StateOf(Axes{InvertX: a.InvertY, InvertY: !a.InvertX, SwapAxes: !a.SwapAxes})
	case FlipHorizontal:
		return StateOf(Axes{InvertX: !a.InvertX, InvertY: a.InvertY, SwapAxes: a.SwapAxes})
	case FlipVertical:
		return StateOf(Axes{InvertX: a.InvertX, InvertY: !a.InvertY, SwapAxes: a.SwapAxes})
	}
	panic(fmt.Sprintf("pipeline: unknown transformation %d", int(op)))
}

// NextOrientation is the transition function of the overlay state machine.
// Whenever Transform is run with op on a raster, every overlay on it must be
// moved to NextOrientation(state, op) in the same write. op must be valid.
func NextOrientation(s OrientationState, op Transformation) OrientationState {
	return s.Next(op)
}

// FoldOrientation applies ops to s in order.
func FoldOrientation(s OrientationState, ops ...Transformation) OrientationState {
	for _, op := range ops {
		s = s.Next(op)
	}
	return s
}

// MapPoint maps a point stored in normalized coordinates (0..1 on both axes,
// relative to the raster as it was when the overlay was drawn) onto the
// normalized coordinates of the current raster: axes are swapped first, then
// inverted.
func (s OrientationState) MapPoint(u, v float64) (float64, float64) {
	a := s.Axes()
	x, y := u, v
	if a.SwapAxes {
		x, y = y, x
	}
	if a.InvertX {
		x = 1 - x
	}
	if a.InvertY {
		y = 1 - y
	}
	return x, y
}
