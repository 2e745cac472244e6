package interpret

import (
	"errors"
	"fmt"
	"math"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// MaxPosition is the highest digit position whose weight fits in an int64.
const MaxPosition = 18

// ErrOverflow is returned by InterpretChecked when the reading cannot be
// represented as an int64.
var ErrOverflow = errors.New("soroban value overflows int64")

var pow10 = func() [MaxPosition + 1]int64 {
	var t [MaxPosition + 1]int64
	t[0] = 1
	for i := 1; i < len(t); i++ {
		t[i] = t[i-1] * 10
	}
	return t
}()

// CalculateDigitValue returns 5 for an upper bead in the lower position
// plus 1 for each lower bead in the lower position, capped at 9.
func CalculateDigitValue(upper vision.CellState, lower [LowerBeadsPerDigit]vision.CellState) int {
	v := 0
	if upper == vision.CellLower {
		v = 5
	}
	for _, s := range lower {
		if s == vision.CellLower {
			v++
		}
	}
	return min(v, 9)
}

// Interpret combines lanes by position. It returns 0 on overflow, which
// cannot be told apart from an all-zero reading; use InterpretChecked when
// the difference matters.
func Interpret(lanes []SorobanLane) int64 {
	v, err := InterpretChecked(lanes)
	if err != nil {
		return 0
	}
	return v
}

// InterpretChecked sums value×10^position over all lanes. Lane order does
// not matter. A position outside [0, MaxPosition] or any overflowing
// multiply or add yields ErrOverflow.
func InterpretChecked(lanes []SorobanLane) (int64, error) {
	var total int64
	for _, lane := range lanes {
		pos := lane.Digit.Position()
		if pos < 0 || pos > MaxPosition {
			return 0, fmt.Errorf("%w: position %d", ErrOverflow, pos)
		}
		v := int64(lane.Digit.Value())
		w := pow10[pos]
		if v != 0 && w > math.MaxInt64/v {
			return 0, fmt.Errorf("%w: %d×10^%d", ErrOverflow, v, pos)
		}
		term := v * w
		if total > math.MaxInt64-term {
			return 0, fmt.Errorf("%w: sum exceeds int64", ErrOverflow)
		}
		total += term
	}
	return total, nil
}

// BuildLanes groups predictions into lanes of five (upper bead first, then
// the four lower beads top to bottom). Lane i, counted from the left, gets
// position laneCount-1-i and boxes[i]. A lane's confidence is the lowest
// confidence among its cells. Returns nil unless there are exactly
// laneCount×5 predictions and laneCount boxes.
func BuildLanes(predictions []vision.CellPrediction, laneCount int, boxes []vision.Rect) []SorobanLane {
	if laneCount <= 0 || len(predictions) != laneCount*vision.CellsPerLane || len(boxes) != laneCount {
		return nil
	}

	lanes := make([]SorobanLane, laneCount)
	for i := range lanes {
		group := predictions[i*vision.CellsPerLane : (i+1)*vision.CellsPerLane]

		conf := group[0].Confidence()
		lower := make([]vision.CellState, LowerBeadsPerDigit)
		for j, p := range group[1:] {
			lower[j] = p.State
			conf = min(conf, p.Confidence())
		}

		// Cannot fail: lower always has four entries.
		digit, _ := NewSorobanDigit(laneCount-1-i, group[0].State, lower, conf, boxes[i])
		lanes[i].Digit = digit
		copy(lanes[i].Predictions[:], group)
	}
	return lanes
}

// Validate reports whether every lane reaches threshold and no bead is
// Empty. An empty slice is not a valid reading.
func Validate(lanes []SorobanLane, threshold float64) bool {
	if len(lanes) == 0 {
		return false
	}
	for _, l := range lanes {
		if l.Confidence() < threshold || l.Digit.HasEmpty() {
			return false
		}
	}
	return true
}
