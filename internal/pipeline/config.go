package pipeline

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/classifier"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// FileConfig is the on-disk configuration layout.
type FileConfig struct {
	Preprocessing vision.PreprocessingConfig `yaml:"preprocessing" json:"preprocessing"`
	Detection     vision.DetectionParams     `yaml:"detection" json:"detection"`
	Tensor        vision.TensorConfig        `yaml:"tensor" json:"tensor"`
	Classifier    classifier.Config          `yaml:"classifier" json:"classifier"`
}

// DefaultFileConfig returns every section at its defaults.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		Preprocessing: vision.DefaultPreprocessingConfig(),
		Detection:     vision.DefaultDetectionParams(),
		Tensor:        vision.DefaultTensorConfig(),
		Classifier:    classifier.DefaultConfig(),
	}
}

// Validate checks every section.
func (c FileConfig) Validate() error {
	var errs []error
	if err := c.Preprocessing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("preprocessing: %w", err))
	}
	if err := c.Detection.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detection: %w", err))
	}
	if err := c.Tensor.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tensor: %w", err))
	}
	return errors.Join(errs...)
}

// Options turns the file into pipeline options. The classifier section is
// not included; build it with classifier.New.
func (c FileConfig) Options() []Option {
	return []Option{
		WithConfig(c.Preprocessing),
		WithDetectionParams(c.Detection),
		WithTensorConfig(c.Tensor),
	}
}

// LoadConfigFile reads a YAML file. Keys that are absent keep their default
// values.
func LoadConfigFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(data []byte) (FileConfig, error) {
	cfg := DefaultFileConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return FileConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
