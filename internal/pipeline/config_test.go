package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

func TestParseConfig_MergesOverDefaults(t *testing.T) {
	data := []byte(`
preprocessing:
  target_long_edge: 960
  enable_clahe: false
detection:
  max_lane_count: 13
  enable_line_refinement: true
tensor:
  cell_size: 64
classifier:
  model_path: /models/beads.onnx
  num_threads: 2
`)
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if cfg.Preprocessing.TargetLongEdge != 960 || cfg.Preprocessing.EnableCLAHE {
		t.Errorf("preprocessing not applied: %+v", cfg.Preprocessing)
	}
	if cfg.Preprocessing.AdaptiveBlockSize != vision.DefaultPreprocessingConfig().AdaptiveBlockSize {
		t.Error("absent keys should keep their defaults")
	}
	if cfg.Detection.MaxLaneCount != 13 || !cfg.Detection.EnableLineRefinement {
		t.Errorf("detection not applied: %+v", cfg.Detection)
	}
	if cfg.Detection.RectifiedWidth != 800 {
		t.Errorf("RectifiedWidth = %d, want default 800", cfg.Detection.RectifiedWidth)
	}
	if cfg.Tensor.CellSize != 64 || cfg.Tensor.Mean != vision.DefaultTensorConfig().Mean {
		t.Errorf("tensor = %+v", cfg.Tensor)
	}
	if cfg.Classifier.ModelPath != "/models/beads.onnx" || cfg.Classifier.NumThreads != 2 {
		t.Errorf("classifier = %+v", cfg.Classifier)
	}
	if !cfg.Classifier.UseHeuristicFallback {
		t.Error("heuristic fallback default lost")
	}

	p := New(cfg.Options()...)
	if got := p.DetectionParams().MaxLaneCount; got != 13 {
		t.Errorf("Options not applied, MaxLaneCount = %d", got)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"malformed yaml", "detection: [", "failed to parse config"},
		{"invalid lane range", "detection:\n  min_lane_count: 9\n  max_lane_count: 3\n", "detection"},
		{"invalid cell size", "tensor:\n  cell_size: 0\n", "tensor"},
		{"invalid block size", "preprocessing:\n  adaptive_block_size: 1\n", "preprocessing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "soroban.yaml")
	if err := os.WriteFile(path, []byte("tensor:\n  cell_size: 96\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}
	if cfg.Tensor.CellSize != 96 {
		t.Errorf("CellSize = %d, want 96", cfg.Tensor.CellSize)
	}

	if _, err := LoadConfigFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
