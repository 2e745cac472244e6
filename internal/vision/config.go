package vision

import (
	"errors"
	"fmt"
	"math"
)

// PreprocessingConfig controls the image preprocessing stage.
type PreprocessingConfig struct {
	// TargetLongEdge caps the longer image edge; larger frames are scaled down.
	TargetLongEdge int `yaml:"target_long_edge" json:"target_long_edge"`

	EnableWhiteBalance bool `yaml:"enable_white_balance" json:"enable_white_balance"`

	EnableCLAHE    bool    `yaml:"enable_clahe" json:"enable_clahe"`
	CLAHEClipLimit float64 `yaml:"clahe_clip_limit" json:"clahe_clip_limit"`
	CLAHETileSize  int     `yaml:"clahe_tile_size" json:"clahe_tile_size"`

	EnableGaussianBlur bool `yaml:"enable_gaussian_blur" json:"enable_gaussian_blur"`
	GaussianKernelSize int  `yaml:"gaussian_kernel_size" json:"gaussian_kernel_size"`

	EnableBilateralFilter bool    `yaml:"enable_bilateral_filter" json:"enable_bilateral_filter"`
	BilateralD            int     `yaml:"bilateral_d" json:"bilateral_d"`
	BilateralSigmaColor   float64 `yaml:"bilateral_sigma_color" json:"bilateral_sigma_color"`
	BilateralSigmaSpace   float64 `yaml:"bilateral_sigma_space" json:"bilateral_sigma_space"`

	CannyThreshold1 float64 `yaml:"canny_threshold1" json:"canny_threshold1"`
	CannyThreshold2 float64 `yaml:"canny_threshold2" json:"canny_threshold2"`

	// AdaptiveBlockSize is rounded up to the next odd number at use.
	AdaptiveBlockSize int     `yaml:"adaptive_block_size" json:"adaptive_block_size"`
	AdaptiveC         float64 `yaml:"adaptive_c" json:"adaptive_c"`

	MorphKernelSize int `yaml:"morph_kernel_size" json:"morph_kernel_size"`
}

// DefaultPreprocessingConfig returns the tuned defaults.
func DefaultPreprocessingConfig() PreprocessingConfig {
	return PreprocessingConfig{
		TargetLongEdge:        1280,
		EnableWhiteBalance:    true,
		EnableCLAHE:           true,
		CLAHEClipLimit:        2.0,
		CLAHETileSize:         8,
		EnableGaussianBlur:    true,
		GaussianKernelSize:    3,
		EnableBilateralFilter: false,
		BilateralD:            9,
		BilateralSigmaColor:   75,
		BilateralSigmaSpace:   75,
		CannyThreshold1:       50,
		CannyThreshold2:       150,
		AdaptiveBlockSize:     11,
		AdaptiveC:             2,
		MorphKernelSize:       3,
	}
}

// Validate rejects values no stage can run with.
func (c PreprocessingConfig) Validate() error {
	var errs []error
	if c.TargetLongEdge <= 0 {
		errs = append(errs, fmt.Errorf("target_long_edge must be positive, got %d", c.TargetLongEdge))
	}
	if c.EnableCLAHE && (c.CLAHEClipLimit <= 0 || c.CLAHETileSize <= 0) {
		errs = append(errs, fmt.Errorf("clahe clip limit and tile size must be positive"))
	}
	if c.EnableGaussianBlur && c.GaussianKernelSize <= 0 {
		errs = append(errs, fmt.Errorf("gaussian_kernel_size must be positive, got %d", c.GaussianKernelSize))
	}
	if c.EnableBilateralFilter && c.BilateralD <= 0 {
		errs = append(errs, fmt.Errorf("bilateral_d must be positive, got %d", c.BilateralD))
	}
	if c.AdaptiveBlockSize < 3 {
		errs = append(errs, fmt.Errorf("adaptive_block_size must be at least 3, got %d", c.AdaptiveBlockSize))
	}
	if c.MorphKernelSize <= 0 {
		errs = append(errs, fmt.Errorf("morph_kernel_size must be positive, got %d", c.MorphKernelSize))
	}
	if c.CannyThreshold1 < 0 || c.CannyThreshold2 < c.CannyThreshold1 {
		errs = append(errs, fmt.Errorf("canny thresholds must satisfy 0 <= low <= high, got %.1f/%.1f",
			c.CannyThreshold1, c.CannyThreshold2))
	}
	return errors.Join(errs...)
}

// OddKernel rounds an even size up by one; sizes below 1 become 1.
func OddKernel(size int) int {
	if size < 1 {
		return 1
	}
	if size%2 == 0 {
		return size + 1
	}
	return size
}

// DetectionParams controls frame detection and lane segmentation.
type DetectionParams struct {
	MinFrameAreaRatio float64 `yaml:"min_frame_area_ratio" json:"min_frame_area_ratio"`
	MaxFrameAreaRatio float64 `yaml:"max_frame_area_ratio" json:"max_frame_area_ratio"`
	MinAspectRatio    float64 `yaml:"min_aspect_ratio" json:"min_aspect_ratio"`
	MaxAspectRatio    float64 `yaml:"max_aspect_ratio" json:"max_aspect_ratio"`

	// ContourApproxEpsilon is a fraction of the contour perimeter.
	ContourApproxEpsilon float64 `yaml:"contour_approx_epsilon" json:"contour_approx_epsilon"`

	MinLaneCount int `yaml:"min_lane_count" json:"min_lane_count"`
	MaxLaneCount int `yaml:"max_lane_count" json:"max_lane_count"`

	// Vertical split of a lane: upper bead : divider : lower beads.
	UpperBeadRatio   int `yaml:"upper_bead_ratio" json:"upper_bead_ratio"`
	BeadDividerRatio int `yaml:"bead_divider_ratio" json:"bead_divider_ratio"`
	LowerBeadRatio   int `yaml:"lower_bead_ratio" json:"lower_bead_ratio"`

	// Size of the rectified frame.
	RectifiedWidth  int `yaml:"rectified_width" json:"rectified_width"`
	RectifiedHeight int `yaml:"rectified_height" json:"rectified_height"`

	// Probabilistic Hough parameters for rod detection.
	HoughRho       float64 `yaml:"hough_rho" json:"hough_rho"`
	HoughTheta     float64 `yaml:"hough_theta" json:"hough_theta"`
	HoughThreshold int     `yaml:"hough_threshold" json:"hough_threshold"`
	HoughMinLength float64 `yaml:"hough_min_length" json:"hough_min_length"`
	HoughMaxGap    float64 `yaml:"hough_max_gap" json:"hough_max_gap"`

	// EnableLineRefinement lets rod lines override the projection lane count.
	EnableLineRefinement bool `yaml:"enable_line_refinement" json:"enable_line_refinement"`
}

// DefaultDetectionParams returns the tuned defaults.
func DefaultDetectionParams() DetectionParams {
	return DetectionParams{
		MinFrameAreaRatio:    0.05,
		MaxFrameAreaRatio:    0.95,
		MinAspectRatio:       1.5,
		MaxAspectRatio:       10.0,
		ContourApproxEpsilon: 0.02,
		MinLaneCount:         1,
		MaxLaneCount:         27,
		UpperBeadRatio:       1,
		BeadDividerRatio:     1,
		LowerBeadRatio:       4,
		RectifiedWidth:       800,
		RectifiedHeight:      200,
		HoughRho:             1,
		HoughTheta:           math.Pi / 180,
		HoughThreshold:       80,
		HoughMinLength:       50,
		HoughMaxGap:          10,
	}
}

// Validate rejects parameter sets the detector cannot honour.
func (p DetectionParams) Validate() error {
	var errs []error
	if p.MinFrameAreaRatio < 0 || p.MaxFrameAreaRatio > 1 || p.MinFrameAreaRatio >= p.MaxFrameAreaRatio {
		errs = append(errs, fmt.Errorf("frame area ratios must satisfy 0 <= min < max <= 1, got %.3f/%.3f",
			p.MinFrameAreaRatio, p.MaxFrameAreaRatio))
	}
	if p.MinAspectRatio <= 0 || p.MinAspectRatio > p.MaxAspectRatio {
		errs = append(errs, fmt.Errorf("aspect ratios must satisfy 0 < min <= max, got %.2f/%.2f",
			p.MinAspectRatio, p.MaxAspectRatio))
	}
	if p.ContourApproxEpsilon <= 0 {
		errs = append(errs, fmt.Errorf("contour_approx_epsilon must be positive"))
	}
	if p.MinLaneCount < 1 || p.MinLaneCount > p.MaxLaneCount {
		errs = append(errs, fmt.Errorf("lane counts must satisfy 1 <= min <= max, got %d/%d",
			p.MinLaneCount, p.MaxLaneCount))
	}
	if p.UpperBeadRatio <= 0 || p.BeadDividerRatio < 0 || p.LowerBeadRatio <= 0 {
		errs = append(errs, fmt.Errorf("bead ratios must be positive (divider may be 0)"))
	}
	if p.RectifiedWidth <= 0 || p.RectifiedHeight <= 0 {
		errs = append(errs, fmt.Errorf("rectified size must be positive, got %dx%d",
			p.RectifiedWidth, p.RectifiedHeight))
	}
	return errors.Join(errs...)
}

// TensorConfig describes the classifier input.
type TensorConfig struct {
	CellSize int        `yaml:"cell_size" json:"cell_size"`
	Mean     [3]float32 `yaml:"mean" json:"mean"`
	Std      [3]float32 `yaml:"std" json:"std"`
}

// DefaultTensorConfig uses ImageNet normalisation at 224×224.
func DefaultTensorConfig() TensorConfig {
	return TensorConfig{
		CellSize: 224,
		Mean:     [3]float32{0.485, 0.456, 0.406},
		Std:      [3]float32{0.229, 0.224, 0.225},
	}
}

// Validate rejects sizes and zero deviations.
func (c TensorConfig) Validate() error {
	if c.CellSize <= 0 {
		return fmt.Errorf("cell_size must be positive, got %d", c.CellSize)
	}
	for i, s := range c.Std {
		if s == 0 {
			return fmt.Errorf("std[%d] must be non-zero", i)
		}
	}
	return nil
}
