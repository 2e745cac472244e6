// Package classifier wraps the bead-state model behind a small interface.
//
// The pipeline hands a normalised [N, 3, H, W] batch to a Classifier and gets
// one CellPrediction per cell back. The ONNX implementation runs a trained
// model through ONNX Runtime; the heuristic one thresholds cell brightness
// and exists for demos and tests where no model is installed.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/tensor"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// Classifier predicts a bead state for every cell in a batch.
type Classifier interface {
	Classify(ctx context.Context, batch *tensor.Batch) ([]vision.CellPrediction, error)
	Name() string
	Close() error
}

// Config selects and tunes the classifier.
type Config struct {
	// ModelPath is an ONNX model with one [N,3,H,W] input and one [N,3]
	// logits output. Empty selects the heuristic.
	ModelPath string `yaml:"model_path" json:"model_path"`

	// LibraryPath points at the ONNX Runtime shared library. When empty the
	// ONNXRUNTIME_LIB environment variable and common install paths are tried.
	LibraryPath string `yaml:"library_path" json:"library_path"`

	NumThreads int `yaml:"num_threads" json:"num_threads"`

	// UseHeuristicFallback falls back to the heuristic when the model is
	// missing or fails to load.
	UseHeuristicFallback bool `yaml:"use_heuristic_fallback" json:"use_heuristic_fallback"`

	// Brightness bounds for the heuristic, 0-1.
	DarkThreshold   float64 `yaml:"dark_threshold" json:"dark_threshold"`
	BrightThreshold float64 `yaml:"bright_threshold" json:"bright_threshold"`
}

// DefaultConfig uses the heuristic.
func DefaultConfig() Config {
	return Config{
		UseHeuristicFallback: true,
		DarkThreshold:        0.35,
		BrightThreshold:      0.85,
	}
}

// ErrNoModel is returned by New when no model is configured and the
// heuristic fallback is disabled.
var ErrNoModel = errors.New("no classifier model configured")

// New builds the classifier cfg asks for. tcfg must match the converter that
// produces the batches. A nil logger discards output.
func New(cfg Config, tcfg vision.TensorConfig, logger *slog.Logger) (Classifier, error) {
	logger = orDiscard(logger)
	if cfg.ModelPath != "" {
		c, err := NewONNX(cfg, logger)
		if err == nil {
			return c, nil
		}
		if !cfg.UseHeuristicFallback {
			return nil, fmt.Errorf("onnx init: %w", err)
		}
		logger.Warn("onnx classifier unavailable, using heuristic", "model", cfg.ModelPath, "error", err)
	} else if !cfg.UseHeuristicFallback {
		return nil, ErrNoModel
	}
	return NewHeuristic(cfg, tcfg), nil
}

// softmax converts logits to probabilities over the three bead classes.
func softmax(logits []float32) [vision.NumCellClasses]float64 {
	var out [vision.NumCellClasses]float64
	maxLogit := math.Inf(-1)
	for i := 0; i < vision.NumCellClasses; i++ {
		maxLogit = math.Max(maxLogit, float64(logits[i]))
	}
	var sum float64
	for i := 0; i < vision.NumCellClasses; i++ {
		out[i] = math.Exp(float64(logits[i]) - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func checkBatch(batch *tensor.Batch) error {
	if batch == nil || batch.N == 0 || batch.Len() == 0 {
		return errors.New("empty batch")
	}
	if batch.C != tensor.Channels || batch.Len() != batch.N*batch.C*batch.H*batch.W {
		return fmt.Errorf("malformed batch shape %v", batch.Shape())
	}
	return nil
}
