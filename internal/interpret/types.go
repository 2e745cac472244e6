package interpret

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// LowerBeadsPerDigit is the number of one-unit beads on each rod.
const LowerBeadsPerDigit = 4

// ErrLowerBeadCount is returned when a digit is built from anything other
// than four lower bead states.
var ErrLowerBeadCount = errors.New("a digit needs exactly 4 lower beads")

// SorobanDigit is one recognised digit. It is immutable: the value is
// computed once by NewSorobanDigit.
type SorobanDigit struct {
	position    int
	upper       vision.CellState
	lower       [LowerBeadsPerDigit]vision.CellState
	confidence  float64
	boundingBox vision.Rect
	value       int
}

// NewSorobanDigit builds a digit from its bead states.
func NewSorobanDigit(position int, upper vision.CellState, lower []vision.CellState, confidence float64, box vision.Rect) (SorobanDigit, error) {
	if len(lower) != LowerBeadsPerDigit {
		return SorobanDigit{}, fmt.Errorf("%w, got %d", ErrLowerBeadCount, len(lower))
	}
	d := SorobanDigit{
		position:    position,
		upper:       upper,
		confidence:  confidence,
		boundingBox: box,
	}
	copy(d.lower[:], lower)
	d.value = CalculateDigitValue(d.upper, d.lower)
	return d, nil
}

// Position is the power of ten the digit stands for; 0 is the ones place.
func (d SorobanDigit) Position() int { return d.position }

// UpperBead is the state of the five-unit bead.
func (d SorobanDigit) UpperBead() vision.CellState { return d.upper }

// LowerBeads returns the one-unit bead states, top to bottom.
func (d SorobanDigit) LowerBeads() [LowerBeadsPerDigit]vision.CellState { return d.lower }

// Confidence is the lowest classifier confidence among the digit's beads.
func (d SorobanDigit) Confidence() float64 { return d.confidence }

// BoundingBox is the lane's rectangle, or the zero Rect when unknown.
func (d SorobanDigit) BoundingBox() vision.Rect { return d.boundingBox }

// Value is the digit value 0-9 read from the bead states.
func (d SorobanDigit) Value() int { return d.value }

// HasEmpty reports whether any bead could not be recognised.
func (d SorobanDigit) HasEmpty() bool {
	if d.upper == vision.CellEmpty {
		return true
	}
	for _, s := range d.lower {
		if s == vision.CellEmpty {
			return true
		}
	}
	return false
}

type digitJSON struct {
	Position    int         `json:"position"`
	Value       int         `json:"value"`
	UpperBead   string      `json:"upper_bead"`
	LowerBeads  [4]string   `json:"lower_beads"`
	Confidence  float64     `json:"confidence"`
	BoundingBox vision.Rect `json:"bounding_box"`
}

// MarshalJSON implements json.Marshaler.
func (d SorobanDigit) MarshalJSON() ([]byte, error) {
	out := digitJSON{
		Position:    d.position,
		Value:       d.value,
		UpperBead:   d.upper.String(),
		Confidence:  d.confidence,
		BoundingBox: d.boundingBox,
	}
	for i, s := range d.lower {
		out.LowerBeads[i] = s.String()
	}
	return json.Marshal(out)
}

// SorobanLane is one classified rod: its digit, the lane image and the raw
// predictions for its five cells (upper first).
type SorobanLane struct {
	Digit       SorobanDigit                               `json:"digit"`
	ROI         image.Image                                `json:"-"`
	Predictions [vision.CellsPerLane]vision.CellPrediction `json:"predictions"`
}

// Confidence is the digit's confidence.
func (l SorobanLane) Confidence() float64 {
	return l.Digit.Confidence()
}

// TimingBreakdown records per-stage durations in milliseconds.
type TimingBreakdown struct {
	PreprocessingMs  float64 `json:"preprocessing_ms"`
	DetectionMs      float64 `json:"detection_ms"`
	InferenceMs      float64 `json:"inference_ms"`
	PostprocessingMs float64 `json:"postprocessing_ms"`
}

// TotalMs is the sum of all stages.
func (t TimingBreakdown) TotalMs() float64 {
	return t.PreprocessingMs + t.DetectionMs + t.InferenceMs + t.PostprocessingMs
}

// EstimatedFPS is 1000/TotalMs, or 0 when nothing was timed.
func (t TimingBreakdown) EstimatedFPS() float64 {
	total := t.TotalMs()
	if total <= 0 {
		return 0
	}
	return 1000 / total
}

// SorobanResult is the full reading of one frame.
type SorobanResult struct {
	Value       int64                `json:"value"`
	Lanes       []SorobanLane        `json:"lanes"`
	Confidence  float64              `json:"confidence"`
	BoundingBox vision.Rect          `json:"bounding_box"`
	Corners     vision.Quadrilateral `json:"corners"`
	LaneCount   int                  `json:"lane_count"`
	Timing      TimingBreakdown      `json:"timing"`

	// Overflow is set when the lanes could not be combined into an int64;
	// Value is then 0.
	Overflow bool `json:"overflow,omitempty"`
}

// NewResult combines classified lanes with the frame they came from.
func NewResult(lanes []SorobanLane, frame vision.FrameDetectionResult, timing TimingBreakdown) *SorobanResult {
	value, err := InterpretChecked(lanes)
	return &SorobanResult{
		Value:       value,
		Lanes:       lanes,
		Confidence:  minConfidence(lanes),
		BoundingBox: frame.BoundingBox,
		Corners:     frame.Corners,
		LaneCount:   len(lanes),
		Timing:      timing,
		Overflow:    errors.Is(err, ErrOverflow),
	}
}

func minConfidence(lanes []SorobanLane) float64 {
	if len(lanes) == 0 {
		return 0
	}
	m := lanes[0].Confidence()
	for _, l := range lanes[1:] {
		m = min(m, l.Confidence())
	}
	return m
}
