package preprocess

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/imaging"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// Output is everything later stages read from one preprocessed frame. All
// images share the working image's dimensions.
type Output struct {
	// Working is the normalised, resized, colour-corrected frame.
	Working *image.RGBA
	// Gray is the (optionally equalised) luminance of Working.
	Gray *image.Gray
	// Binary is the adaptive-threshold mask after morphology.
	Binary *image.Gray
	// Edges is the Canny edge map of Gray.
	Edges *image.Gray
	// Scale is Working's size relative to the input, at most 1.
	Scale float64
}

// Preprocessor runs the preprocessing stages on a vision.Backend.
type Preprocessor struct {
	backend vision.Backend

	mu  sync.RWMutex
	cfg vision.PreprocessingConfig
}

// New creates a Preprocessor. A nil backend selects the pure-Go one.
func New(backend vision.Backend, cfg vision.PreprocessingConfig) *Preprocessor {
	if backend == nil {
		backend = imaging.NewBackend()
	}
	return &Preprocessor{backend: backend, cfg: cfg}
}

// Config returns a copy of the current configuration.
func (p *Preprocessor) Config() vision.PreprocessingConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// SetConfig replaces the configuration after validating it.
func (p *Preprocessor) SetConfig(cfg vision.PreprocessingConfig) error {
	if err := cfg.Validate(); err != nil {
		return vision.NewError(vision.CodeInvalidInput, "preprocess config", err)
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return nil
}

// Preprocess runs every stage on img. Backend failures and panics are
// reported as CodeProcessingError.
func (p *Preprocessor) Preprocess(img image.Image) (out *Output, err error) {
	if img == nil || img.Bounds().Empty() {
		return nil, vision.Errorf(vision.CodeInvalidInput, "preprocess", "empty image")
	}
	cfg := p.Config()

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = vision.Errorf(vision.CodeProcessingError, "preprocess", "panic: %v", r)
		}
	}()

	working := opaque(imaging.ToRGBA(img))

	scale := 1.0
	b := working.Bounds()
	if long := max(b.Dx(), b.Dy()); cfg.TargetLongEdge > 0 && long > cfg.TargetLongEdge {
		scale = float64(cfg.TargetLongEdge) / float64(long)
		w := max(1, int(math.Round(float64(b.Dx())*scale)))
		h := max(1, int(math.Round(float64(b.Dy())*scale)))
		if working, err = p.backend.Resize(working, w, h); err != nil {
			return nil, stageError("resize", err)
		}
	}

	if cfg.EnableWhiteBalance {
		working = imaging.WhiteBalance(working)
	}
	if cfg.EnableGaussianBlur {
		if working, err = p.backend.GaussianBlur(working, vision.OddKernel(cfg.GaussianKernelSize)); err != nil {
			return nil, stageError("gaussian blur", err)
		}
	}
	if cfg.EnableBilateralFilter {
		if working, err = p.backend.BilateralFilter(working, cfg.BilateralD, cfg.BilateralSigmaColor, cfg.BilateralSigmaSpace); err != nil {
			return nil, stageError("bilateral filter", err)
		}
	}

	gray, err := p.backend.Grayscale(working)
	if err != nil {
		return nil, stageError("grayscale", err)
	}
	if cfg.EnableCLAHE {
		if gray, err = p.backend.EqualizeCLAHE(gray, cfg.CLAHEClipLimit, cfg.CLAHETileSize); err != nil {
			return nil, stageError("clahe", err)
		}
	}

	binary, err := p.backend.AdaptiveThreshold(gray, vision.OddKernel(cfg.AdaptiveBlockSize), cfg.AdaptiveC)
	if err != nil {
		return nil, stageError("adaptive threshold", err)
	}
	if binary, err = p.backend.MorphCloseOpen(binary, cfg.MorphKernelSize); err != nil {
		return nil, stageError("morphology", err)
	}

	edges, err := p.backend.Canny(gray, cfg.CannyThreshold1, cfg.CannyThreshold2)
	if err != nil {
		return nil, stageError("canny", err)
	}

	return &Output{
		Working: working,
		Gray:    gray,
		Binary:  binary,
		Edges:   edges,
		Scale:   scale,
	}, nil
}

func stageError(stage string, err error) error {
	return vision.NewError(vision.CodeProcessingError, "preprocess", fmt.Errorf("%s: %w", stage, err))
}

// opaque forces every alpha byte to 255 in place.
func opaque(img *image.RGBA) *image.RGBA {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}
