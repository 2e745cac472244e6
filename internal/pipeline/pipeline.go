package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/classifier"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/detection"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/imaging"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/interpret"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/preprocess"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/tensor"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// ExtractionResult is the output of one extraction pass.
//
// When Success is false, Code says why and only Frame (possibly undetected)
// and PreprocessingTimeMs are meaningful.
type ExtractionResult struct {
	Success bool                        `json:"success"`
	Code    vision.ErrorCode            `json:"error_code"`
	Frame   vision.FrameDetectionResult `json:"frame"`
	Lanes   []vision.LaneInfo           `json:"lanes"`

	// Cells holds laneCount×5 cell images, lane by lane from the left,
	// upper bead first.
	Cells      []image.Image `json:"-"`
	TotalCells int           `json:"total_cells"`

	// Tensor is the classifier input built from Cells. Release it when done.
	Tensor *tensor.Batch `json:"-"`

	// Working is the preprocessed image Frame coordinates refer to; Scale is
	// its size relative to the input.
	Working *image.RGBA `json:"-"`
	Scale   float64     `json:"scale"`

	// Rectified is the frame warped to the configured size; LaneImages are
	// its strips in Lanes order.
	Rectified  *image.RGBA   `json:"-"`
	LaneImages []image.Image `json:"-"`

	// PreprocessingTimeMs covers the whole extraction.
	PreprocessingTimeMs float64                   `json:"preprocessing_time_ms"`
	Timing              interpret.TimingBreakdown `json:"timing"`
}

// Release frees the tensor buffer. Safe to call more than once.
func (r *ExtractionResult) Release() {
	if r == nil {
		return
	}
	r.Tensor.Release()
	r.Tensor = nil
}

// Pipeline runs frames through every recognition stage.
type Pipeline struct {
	// mu is held for reading for the duration of a frame and for writing
	// while configuration is swapped.
	mu sync.RWMutex

	backend    vision.Backend
	logger     *slog.Logger
	pre        *preprocess.Preprocessor
	det        *detection.Detector
	conv       *tensor.Converter
	classifier classifier.Classifier

	// ownsHeuristic is set when the classifier was built here and must
	// follow tensor configuration changes.
	ownsHeuristic bool
}

// New builds a pipeline. Invalid configuration in opts is replaced by the
// defaults and logged.
func New(opts ...Option) *Pipeline {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.backend == nil {
		o.backend = imaging.NewBackend()
	}
	if err := o.pre.Validate(); err != nil {
		o.logger.Warn("invalid preprocessing config, using defaults", "error", err)
		o.pre = vision.DefaultPreprocessingConfig()
	}
	if err := o.det.Validate(); err != nil {
		o.logger.Warn("invalid detection params, using defaults", "error", err)
		o.det = vision.DefaultDetectionParams()
	}
	if err := o.tensor.Validate(); err != nil {
		o.logger.Warn("invalid tensor config, using defaults", "error", err)
		o.tensor = vision.DefaultTensorConfig()
	}

	p := &Pipeline{
		backend:    o.backend,
		logger:     o.logger,
		pre:        preprocess.New(o.backend, o.pre),
		det:        detection.New(o.backend, o.det),
		conv:       tensor.NewConverter(o.tensor),
		classifier: o.classifier,
	}
	if p.classifier == nil {
		p.classifier = classifier.NewHeuristic(classifier.DefaultConfig(), o.tensor)
		p.ownsHeuristic = true
	}
	p.logger.Debug("pipeline created", "backend", p.backend.Name(), "classifier", p.classifier.Name())
	return p
}

// Backend returns the image backend in use.
func (p *Pipeline) Backend() vision.Backend { return p.backend }

// Classifier returns the bead classifier in use.
func (p *Pipeline) Classifier() classifier.Classifier {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.classifier
}

// Close releases the classifier.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.classifier == nil {
		return nil
	}
	err := p.classifier.Close()
	p.classifier = nil
	return err
}

// Config returns the preprocessing configuration.
func (p *Pipeline) Config() vision.PreprocessingConfig { return p.pre.Config() }

// DetectionParams returns the detection parameters.
func (p *Pipeline) DetectionParams() vision.DetectionParams { return p.det.Params() }

// TensorConfig returns the tensor configuration.
func (p *Pipeline) TensorConfig() vision.TensorConfig { return p.conv.Config() }

// SetConfig replaces the preprocessing configuration.
func (p *Pipeline) SetConfig(cfg vision.PreprocessingConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pre.SetConfig(cfg)
}

// SetDetectionParams replaces the detection parameters.
func (p *Pipeline) SetDetectionParams(params vision.DetectionParams) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.det.SetParams(params)
}

// SetTensorConfig replaces the tensor configuration. A classifier supplied
// with WithClassifier must already expect the new shape.
func (p *Pipeline) SetTensorConfig(cfg vision.TensorConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conv.SetConfig(cfg); err != nil {
		return err
	}
	if p.ownsHeuristic {
		p.classifier = classifier.NewHeuristic(classifier.DefaultConfig(), cfg)
	}
	return nil
}

// Process converts a locked camera buffer and extracts cells from it.
func (p *Pipeline) Process(buf vision.PixelBuffer) (*ExtractionResult, error) {
	start := time.Now()
	img, err := preprocess.ConvertPixelBuffer(buf)
	if err != nil {
		return p.fail(&ExtractionResult{}, start, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	res, err := p.extract(img)
	res.PreprocessingTimeMs = msSince(start)
	return res, err
}

// ProcessImage extracts cells from a decoded image.
func (p *Pipeline) ProcessImage(img image.Image) (*ExtractionResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.extract(img)
}

// Recognize extracts cells, classifies them and reads the value.
func (p *Pipeline) Recognize(ctx context.Context, img image.Image) (*interpret.SorobanResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ext, err := p.extract(img)
	defer ext.Release()
	if err != nil {
		return nil, err
	}
	return p.classify(ctx, ext)
}

// Classify runs the classifier on a successful extraction. The result's
// lanes carry the lane images as ROI.
func (p *Pipeline) Classify(ctx context.Context, ext *ExtractionResult) (*interpret.SorobanResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.classify(ctx, ext)
}

func (p *Pipeline) classify(ctx context.Context, ext *ExtractionResult) (res *interpret.SorobanResult, err error) {
	const op = "classify"
	if ext == nil || !ext.Success || ext.Tensor == nil {
		return nil, vision.Errorf(vision.CodeInvalidInput, op, "no extracted cells")
	}
	if p.classifier == nil {
		return nil, vision.Errorf(vision.CodeProcessingError, op, "pipeline closed")
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic during classification", "panic", r)
			res, err = nil, vision.Errorf(vision.CodeProcessingError, op, "panic: %v", r)
		}
	}()

	timing := ext.Timing
	start := time.Now()
	preds, err := p.classifier.Classify(ctx, ext.Tensor)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, vision.NewError(vision.CodeProcessingError, op, err)
	}
	timing.InferenceMs = msSince(start)

	start = time.Now()
	boxes := make([]vision.Rect, len(ext.Lanes))
	for i, l := range ext.Lanes {
		boxes[i] = l.BoundingBox
	}
	lanes := interpret.BuildLanes(preds, len(ext.Lanes), boxes)
	if lanes == nil {
		return nil, vision.Errorf(vision.CodeProcessingError, op,
			"classifier returned %d predictions for %d lanes", len(preds), len(ext.Lanes))
	}
	for i := range lanes {
		if i < len(ext.LaneImages) {
			lanes[i].ROI = ext.LaneImages[i]
		}
	}
	timing.PostprocessingMs = msSince(start)

	res = interpret.NewResult(lanes, ext.Frame, timing)
	if res.Overflow {
		p.logger.Warn("soroban value overflows int64", "lanes", res.LaneCount)
	}
	p.logger.Debug("frame recognised",
		"value", res.Value,
		"lanes", res.LaneCount,
		"confidence", res.Confidence,
		"elapsed_ms", timing.TotalMs())
	return res, nil
}

// extract runs every extraction stage. The caller holds p.mu for reading.
// The returned result is never nil.
func (p *Pipeline) extract(img image.Image) (res *ExtractionResult, err error) {
	start := time.Now()
	res = &ExtractionResult{}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic during extraction", "panic", r)
			res.Release()
			res, err = p.fail(&ExtractionResult{Frame: res.Frame}, start,
				vision.Errorf(vision.CodeProcessingError, "extract", "panic: %v", r))
		}
	}()

	pre, err := p.pre.Preprocess(img)
	if err != nil {
		return p.fail(res, start, err)
	}
	res.Working = pre.Working
	res.Scale = pre.Scale
	res.Timing.PreprocessingMs = msSince(start)

	detectStart := time.Now()
	frame := p.det.DetectFrame(pre)
	if !frame.Detected {
		return p.fail(res, start, vision.Errorf(vision.CodeFrameNotDetected, "detect frame", "no soroban frame in image"))
	}
	res.Frame = frame

	rectified, err := p.det.WarpFrame(pre.Working, frame, 0, 0)
	if err != nil {
		return p.fail(res, start, err)
	}
	res.Rectified = rectified

	laneCount, err := p.det.DetectLaneCount(rectified)
	if err != nil {
		return p.fail(res, start, err)
	}
	cfg := p.pre.Config()
	if refined, err := p.det.RefineLaneCount(rectified, laneCount, cfg.CannyThreshold1, cfg.CannyThreshold2); err != nil {
		p.logger.Warn("lane refinement failed", "stage", "refine lanes", "error", err)
	} else if refined != laneCount {
		p.logger.Debug("lane count refined", "estimate", laneCount, "lanes", refined)
		laneCount = refined
	}
	res.Frame.LaneCount = laneCount

	lanes := p.det.ExtractLanes(rectified, laneCount)
	if len(lanes) == 0 {
		return p.fail(res, start, vision.Errorf(vision.CodeLaneExtractionFailed, "extract lanes",
			"cannot split %dx%d frame into %d lanes", rectified.Bounds().Dx(), rectified.Bounds().Dy(), laneCount))
	}
	res.Lanes = lanes

	res.LaneImages = make([]image.Image, 0, len(lanes))
	res.Cells = make([]image.Image, 0, len(lanes)*vision.CellsPerLane)
	for _, lane := range lanes {
		laneImg, err := detection.LaneImage(rectified, lane)
		if err != nil {
			return p.fail(res, start, err)
		}
		cells, err := p.det.ExtractCells(laneImg)
		if err != nil {
			return p.fail(res, start, err)
		}
		res.LaneImages = append(res.LaneImages, laneImg)
		res.Cells = append(res.Cells, cells...)
	}
	res.TotalCells = len(res.Cells)

	batch, err := p.conv.ConvertBatch(res.Cells)
	if err != nil {
		return p.fail(res, start, err)
	}
	res.Tensor = batch
	res.Timing.DetectionMs = msSince(detectStart)

	res.Success = true
	res.PreprocessingTimeMs = msSince(start)
	p.logger.Debug("frame extracted",
		"lanes", laneCount,
		"cells", res.TotalCells,
		"confidence", res.Frame.Confidence,
		"elapsed_ms", res.PreprocessingTimeMs)
	return res, nil
}

// fail marks res as failed with err's code. FrameNotDetected is the normal
// result for frames without a soroban and is not reported above debug.
func (p *Pipeline) fail(res *ExtractionResult, start time.Time, err error) (*ExtractionResult, error) {
	var verr *vision.Error
	if !errors.As(err, &verr) {
		err = vision.NewError(vision.CodeOf(err), "extract", err)
	}
	res.Success = false
	res.Code = vision.CodeOf(err)
	res.PreprocessingTimeMs = msSince(start)

	if res.Code == vision.CodeFrameNotDetected {
		p.logger.Debug("frame not detected", "stage", "detect", "elapsed_ms", res.PreprocessingTimeMs)
	} else {
		p.logger.Warn("extraction failed", "code", res.Code.String(), "error", err)
	}
	return res, err
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}

// String summarises the result for logs.
func (r *ExtractionResult) String() string {
	if !r.Success {
		return fmt.Sprintf("extraction failed: %s", r.Code)
	}
	return fmt.Sprintf("%d lanes, %d cells", len(r.Lanes), r.TotalCells)
}
