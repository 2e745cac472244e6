package vision

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// Rect is an axis-aligned region in image pixel coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectFromImage converts an integer image rectangle.
func RectFromImage(r image.Rectangle) Rect {
	return Rect{
		X:      float64(r.Min.X),
		Y:      float64(r.Min.Y),
		Width:  float64(r.Dx()),
		Height: float64(r.Dy()),
	}
}

// ImageRect rounds the rectangle to integer pixel bounds.
func (r Rect) ImageRect() image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	return image.Rect(x0, y0, x0+int(math.Round(r.Width)), y0+int(math.Round(r.Height)))
}

// Area returns Width × Height.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Point is a 2D pixel coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Quadrilateral holds the four corners of a detected frame, always in
// top-left, top-right, bottom-right, bottom-left order.
type Quadrilateral struct {
	TopLeft     Point `json:"top_left"`
	TopRight    Point `json:"top_right"`
	BottomRight Point `json:"bottom_right"`
	BottomLeft  Point `json:"bottom_left"`
}

// Points returns the corners in TL, TR, BR, BL order.
func (q Quadrilateral) Points() [4]Point {
	return [4]Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// FrameDetectionResult describes the soroban frame found in one image.
//
// When Detected is false every other field is the zero value and carries no
// meaning.
type FrameDetectionResult struct {
	Detected    bool          `json:"detected"`
	Corners     Quadrilateral `json:"corners"`
	BoundingBox Rect          `json:"bounding_box"`
	Confidence  float64       `json:"confidence"`
	LaneCount   int           `json:"lane_count"`
}

// LaneInfo locates one digit column inside the rectified frame.
type LaneInfo struct {
	BoundingBox Rect `json:"bounding_box"`

	// DigitIndex is the position counted from the right; 0 is the ones place.
	DigitIndex int `json:"digit_index"`

	// Value is the digit 0-9, filled in after classification.
	Value int `json:"value"`

	Confidence float64 `json:"confidence"`
}

// CellState is the classified position of one bead.
type CellState int32

const (
	// CellUpper means the bead rests away from the beam and does not count.
	CellUpper CellState = 0
	// CellLower means the bead touches the beam and counts.
	CellLower CellState = 1
	// CellEmpty means no bead could be recognised in the cell.
	CellEmpty CellState = 2
)

// NumCellClasses is the number of classifier output classes.
const NumCellClasses = 3

// CellsPerLane is one upper bead plus four lower beads.
const CellsPerLane = 5

// String returns the state name.
func (s CellState) String() string {
	switch s {
	case CellUpper:
		return "upper"
	case CellLower:
		return "lower"
	case CellEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// ParseCellState accepts the names returned by String, case-insensitively.
func ParseCellState(name string) (CellState, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "upper":
		return CellUpper, nil
	case "lower":
		return CellLower, nil
	case "empty":
		return CellEmpty, nil
	}
	return CellEmpty, fmt.Errorf("unknown cell state %q", name)
}

// CellPrediction is the classifier output for one bead cell.
type CellPrediction struct {
	State CellState `json:"state"`

	// Probabilities is the softmax over [upper, lower, empty].
	Probabilities [NumCellClasses]float64 `json:"probabilities"`
}

// Confidence returns the largest class probability.
func (p CellPrediction) Confidence() float64 {
	best := p.Probabilities[0]
	for _, v := range p.Probabilities[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

// PredictionFromProbabilities picks the arg-max class.
func PredictionFromProbabilities(probs [NumCellClasses]float64) CellPrediction {
	idx := 0
	for i := 1; i < NumCellClasses; i++ {
		if probs[i] > probs[idx] {
			idx = i
		}
	}
	return CellPrediction{State: CellState(idx), Probabilities: probs}
}
