package preprocess

import (
	"fmt"
	"math"

	"github.com/kozaktomas/emotion-sense/internal/faults"
)

// BoundingBox is a detected face in source-frame pixel coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BoxFromCorners converts a pixel bbox [x1, y1, x2, y2] to origin/size form.
// Returns a zero box if bbox does not have four elements.
func BoxFromCorners(bbox []float64) BoundingBox {
	if len(bbox) != 4 {
		return BoundingBox{}
	}
	return BoundingBox{X: bbox[0], Y: bbox[1], Width: bbox[2] - bbox[0], Height: bbox[3] - bbox[1]}
}

// Area returns Width*Height, or 0 for non-positive dimensions.
func (b BoundingBox) Area() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Rect is an integer pixel rectangle.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) String() string {
	return fmt.Sprintf("{%d,%d,%d,%d}", r.X, r.Y, r.W, r.H)
}

// maxCoord bounds box coordinates so rounding to int never overflows.
const maxCoord = 1 << 30

// Round snaps the box to integer pixels and rejects non-positive sizes and
// non-finite or out-of-range coordinates.
func (b BoundingBox) Round() (Rect, error) {
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if math.IsNaN(v) || math.Abs(v) > maxCoord {
			return Rect{}, fmt.Errorf("%w: %+v", faults.ErrInvalidBoundingBox, b)
		}
	}
	r := Rect{
		X: int(math.Round(b.X)),
		Y: int(math.Round(b.Y)),
		W: int(math.Round(b.Width)),
		H: int(math.Round(b.Height)),
	}
	if r.W <= 0 || r.H <= 0 {
		return Rect{}, fmt.Errorf("%w: %s", faults.ErrInvalidBoundingBox, r)
	}
	return r, nil
}

// Clamp restricts r to a frameW x frameH frame. The origin is pulled up to 0
// and the size is cut at the far edge; a rectangle that collapses to zero
// area is rejected. Clamping an in-bounds rectangle returns it unchanged.
func Clamp(r Rect, frameW, frameH int) (Rect, error) {
	adjX := max(0, r.X)
	adjY := max(0, r.Y)
	adj := Rect{
		X: adjX,
		Y: adjY,
		W: min(r.W, frameW-adjX),
		H: min(r.H, frameH-adjY),
	}
	if adj.W <= 0 || adj.H <= 0 {
		return Rect{}, fmt.Errorf("%w: %s in %dx%d frame", faults.ErrDegenerateCrop, r, frameW, frameH)
	}
	return adj, nil
}
