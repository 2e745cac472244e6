package vision

import "testing"

func TestDefaultConfigsValidate(t *testing.T) {
	if err := DefaultPreprocessingConfig().Validate(); err != nil {
		t.Errorf("default preprocessing config invalid: %v", err)
	}
	if err := DefaultDetectionParams().Validate(); err != nil {
		t.Errorf("default detection params invalid: %v", err)
	}
	if err := DefaultTensorConfig().Validate(); err != nil {
		t.Errorf("default tensor config invalid: %v", err)
	}
}

func TestPreprocessingConfig_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PreprocessingConfig)
	}{
		{"zero long edge", func(c *PreprocessingConfig) { c.TargetLongEdge = 0 }},
		{"tiny block", func(c *PreprocessingConfig) { c.AdaptiveBlockSize = 1 }},
		{"zero morph kernel", func(c *PreprocessingConfig) { c.MorphKernelSize = 0 }},
		{"inverted canny", func(c *PreprocessingConfig) { c.CannyThreshold1, c.CannyThreshold2 = 200, 100 }},
		{"clahe without tiles", func(c *PreprocessingConfig) { c.CLAHETileSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPreprocessingConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDetectionParams_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DetectionParams)
	}{
		{"inverted area", func(p *DetectionParams) { p.MinFrameAreaRatio = 0.9; p.MaxFrameAreaRatio = 0.1 }},
		{"zero lanes", func(p *DetectionParams) { p.MinLaneCount = 0 }},
		{"min above max lanes", func(p *DetectionParams) { p.MinLaneCount = 30 }},
		{"zero upper ratio", func(p *DetectionParams) { p.UpperBeadRatio = 0 }},
		{"zero rectified", func(p *DetectionParams) { p.RectifiedWidth = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultDetectionParams()
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestOddKernel(t *testing.T) {
	tests := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {2, 3}, {11, 11}, {12, 13},
	}
	for _, tt := range tests {
		if got := OddKernel(tt.in); got != tt.want {
			t.Errorf("OddKernel(%d): got %d, want %d", tt.in, got, tt.want)
		}
	}
}
