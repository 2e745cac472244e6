package pipeline

import (
	"io"
	"log/slog"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/classifier"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

type options struct {
	backend    vision.Backend
	logger     *slog.Logger
	classifier classifier.Classifier
	pre        vision.PreprocessingConfig
	det        vision.DetectionParams
	tensor     vision.TensorConfig
}

func defaultOptions() options {
	return options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		pre:    vision.DefaultPreprocessingConfig(),
		det:    vision.DefaultDetectionParams(),
		tensor: vision.DefaultTensorConfig(),
	}
}

// Option configures a Pipeline.
type Option func(*options)

// WithBackend selects the image backend. The default is the pure-Go one.
func WithBackend(b vision.Backend) Option {
	return func(o *options) {
		if b != nil {
			o.backend = b
		}
	}
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClassifier sets the bead classifier used by Recognize. The pipeline
// closes it in Close. Without one a brightness heuristic is used.
func WithClassifier(c classifier.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// WithConfig sets the preprocessing configuration.
func WithConfig(cfg vision.PreprocessingConfig) Option {
	return func(o *options) { o.pre = cfg }
}

// WithDetectionParams sets the detection parameters.
func WithDetectionParams(p vision.DetectionParams) Option {
	return func(o *options) { o.det = p }
}

// WithTensorConfig sets the classifier input shape and normalisation.
func WithTensorConfig(cfg vision.TensorConfig) Option {
	return func(o *options) { o.tensor = cfg }
}
