package pipeline

import (
	"context"
	"image"
	"image/color"
	"sync/atomic"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/imaging"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/tensor"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

var sorobanFrame = image.Rect(80, 100, 560, 260)

// createSorobanImage draws a dark frame with lighter vertical rods on a
// light table.
func createSorobanImage(width, height int, frame image.Rectangle, rods int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bg := color.RGBA{200, 200, 200, 255}
	body := color.RGBA{60, 60, 60, 255}
	rod := color.RGBA{120, 120, 120, 255}

	spacing := frame.Dx() / (rods + 1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := bg
			if image.Pt(x, y).In(frame) {
				c = body
				inRod := y >= frame.Min.Y+12 && y < frame.Max.Y-12
				for k := 1; k <= rods && inRod; k++ {
					cx := frame.Min.X + k*spacing
					if x >= cx-3 && x < cx+3 {
						c = rod
					}
				}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func smallTensor() vision.TensorConfig {
	cfg := vision.DefaultTensorConfig()
	cfg.CellSize = 32
	return cfg
}

// sevenClassifier reads 7 in the ones place and 0 everywhere else.
type sevenClassifier struct {
	closed atomic.Bool
}

func (*sevenClassifier) Name() string { return "seven" }

func (c *sevenClassifier) Close() error {
	c.closed.Store(true)
	return nil
}

func (*sevenClassifier) Classify(ctx context.Context, batch *tensor.Batch) ([]vision.CellPrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	preds := make([]vision.CellPrediction, batch.N)
	ones := batch.N - vision.CellsPerLane
	for i := range preds {
		state := vision.CellUpper
		if i >= ones && i-ones < 3 {
			state = vision.CellLower
		}
		var probs [vision.NumCellClasses]float64
		probs[state] = 0.9
		probs[(state+1)%vision.NumCellClasses] = 0.1
		preds[i] = vision.PredictionFromProbabilities(probs)
	}
	return preds, nil
}

// shortClassifier returns one prediction too few.
type shortClassifier struct{ sevenClassifier }

func (c *shortClassifier) Classify(ctx context.Context, batch *tensor.Batch) ([]vision.CellPrediction, error) {
	preds, err := c.sevenClassifier.Classify(ctx, batch)
	if err != nil {
		return nil, err
	}
	return preds[1:], nil
}

type panickyBackend struct {
	*imaging.Backend
}

func (panickyBackend) FindExternalContours(*image.Gray) ([][]image.Point, error) {
	panic("contour tracer crashed")
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
