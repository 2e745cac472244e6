package classifier

import (
	"context"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/tensor"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// Heuristic classifies a cell by the mean brightness of its central region:
// a dark centre is a bead against the beam (Lower), a very bright one is an
// empty cell, anything between is a bead resting away (Upper).
type Heuristic struct {
	dark, bright float64
	mean, std    [3]float32
}

// NewHeuristic creates a Heuristic that undoes tcfg's normalisation.
func NewHeuristic(cfg Config, tcfg vision.TensorConfig) *Heuristic {
	dark, bright := cfg.DarkThreshold, cfg.BrightThreshold
	if dark <= 0 || bright <= dark {
		d := DefaultConfig()
		dark, bright = d.DarkThreshold, d.BrightThreshold
	}
	return &Heuristic{dark: dark, bright: bright, mean: tcfg.Mean, std: tcfg.Std}
}

// Name implements Classifier.
func (h *Heuristic) Name() string { return "heuristic" }

// Close implements Classifier.
func (h *Heuristic) Close() error { return nil }

// Classify implements Classifier.
func (h *Heuristic) Classify(ctx context.Context, batch *tensor.Batch) ([]vision.CellPrediction, error) {
	if err := checkBatch(batch); err != nil {
		return nil, err
	}
	preds := make([]vision.CellPrediction, batch.N)
	for i := range preds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := h.centreBrightness(batch.Cell(i), batch.H, batch.W)
		preds[i] = vision.PredictionFromProbabilities(h.probabilities(b))
	}
	return preds, nil
}

// centreBrightness averages the de-normalised value of the middle half of
// the cell over all channels, in 0-1.
func (h *Heuristic) centreBrightness(cell []float32, height, width int) float64 {
	y0, y1 := height/4, height-height/4
	x0, x1 := width/4, width-width/4
	if y1 <= y0 {
		y0, y1 = 0, height
	}
	if x1 <= x0 {
		x0, x1 = 0, width
	}

	plane := height * width
	var sum float64
	for ch := 0; ch < tensor.Channels; ch++ {
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				sum += float64(cell[ch*plane+y*width+x]*h.std[ch] + h.mean[ch])
			}
		}
	}
	return sum / float64(tensor.Channels*(y1-y0)*(x1-x0))
}

func (h *Heuristic) probabilities(b float64) [vision.NumCellClasses]float64 {
	const sharpness = 10
	logits := make([]float32, vision.NumCellClasses)
	logits[vision.CellUpper] = 0
	logits[vision.CellLower] = float32((h.dark - b) * sharpness)
	logits[vision.CellEmpty] = float32((b - h.bright) * sharpness)
	return softmax(logits)
}
