package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/tensor"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// ONNX runs a bead classifier model through ONNX Runtime.
type ONNX struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	input   ort.InputOutputInfo
	output  ort.InputOutputInfo
	logger  *slog.Logger
}

var envOnce struct {
	sync.Mutex
	done bool
}

// NewONNX loads cfg.ModelPath. Resource cleanup failures are logged to
// logger; a nil logger discards them.
func NewONNX(cfg Config, logger *slog.Logger) (*ONNX, error) {
	logger = orDiscard(logger)
	if cfg.ModelPath == "" {
		return nil, errors.New("empty model path")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, err
	}
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("io info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("unexpected io (in:%d out:%d)", len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]
	if len(in.Dimensions) != 4 {
		return nil, fmt.Errorf("expected 4D input, got %dD", len(in.Dimensions))
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session opts: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			logger.Warn("destroying session options", "error", err)
		}
	}()
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("threads: %w", err)
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &ONNX{session: sess, input: in, output: out, logger: logger}, nil
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}

func initEnvironment(libPath string) error {
	envOnce.Lock()
	defer envOnce.Unlock()
	if envOnce.done || ort.IsInitialized() {
		envOnce.done = true
		return nil
	}

	path, err := findLibrary(libPath)
	if err != nil {
		return err
	}
	ort.SetSharedLibraryPath(path)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx: %w", err)
	}
	envOnce.done = true
	return nil
}

// findLibrary resolves the ONNX Runtime shared library: explicit path,
// then $ONNXRUNTIME_LIB, then common install locations.
func findLibrary(explicit string) (string, error) {
	candidates := []string{explicit, os.Getenv("ONNXRUNTIME_LIB")}
	switch runtime.GOOS {
	case "linux":
		candidates = append(candidates,
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/opt/onnxruntime/lib/libonnxruntime.so")
	case "darwin":
		candidates = append(candidates,
			"/usr/local/lib/libonnxruntime.dylib",
			"/opt/homebrew/lib/libonnxruntime.dylib")
	case "windows":
		candidates = append(candidates, "onnxruntime.dll")
	}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.New("ONNX Runtime library not found; set ONNXRUNTIME_LIB")
}

// Name implements Classifier.
func (o *ONNX) Name() string { return "onnx" }

// Close releases the session.
func (o *ONNX) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	err := o.session.Destroy()
	o.session = nil
	return err
}

// Classify implements Classifier.
func (o *ONNX) Classify(ctx context.Context, batch *tensor.Batch) ([]vision.CellPrediction, error) {
	if err := checkBatch(batch); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil, errors.New("classifier closed")
	}

	input, err := ort.NewTensor(ort.NewShape(batch.Shape()...), batch.Data)
	if err != nil {
		return nil, fmt.Errorf("tensor: %w", err)
	}
	defer func() {
		if err := input.Destroy(); err != nil {
			o.logger.Warn("destroying input tensor", "error", err)
		}
	}()

	outputs := []ort.Value{nil}
	if err := o.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	defer func() {
		for _, v := range outputs {
			if v != nil {
				if err := v.Destroy(); err != nil {
					o.logger.Warn("destroying output tensor", "error", err)
				}
			}
		}
	}()

	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	shape := t.GetShape()
	if len(shape) != 2 || shape[0] != int64(batch.N) || shape[1] < vision.NumCellClasses {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}

	logits := t.GetData()
	stride := int(shape[1])
	preds := make([]vision.CellPrediction, batch.N)
	for i := range preds {
		preds[i] = vision.PredictionFromProbabilities(softmax(logits[i*stride : i*stride+vision.NumCellClasses]))
	}
	return preds, nil
}
