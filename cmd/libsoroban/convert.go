package main

/*
#define SOROBAN_NO_PROTOTYPES
#include <stdlib.h>
#include "soroban.h"
*/
import "C"

import (
	"unsafe"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/pipeline"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// Aliases so tests, which cannot use cgo, can still build the C structs.
type (
	extractionResult   = C.SorobanExtractionResult
	preprocessingCfg   = C.SorobanPreprocessingConfig
	detectionParamsCfg = C.SorobanDetectionParams
)

func cRect(r vision.Rect) C.SorobanRect {
	return C.SorobanRect{x: C.float(r.X), y: C.float(r.Y), width: C.float(r.Width), height: C.float(r.Height)}
}

func cPoint(p vision.Point) C.SorobanPoint {
	return C.SorobanPoint{x: C.float(p.X), y: C.float(p.Y)}
}

func cFrameResult(f vision.FrameDetectionResult) C.SorobanFrameResult {
	return C.SorobanFrameResult{
		detected: C.bool(f.Detected),
		corners: C.SorobanQuad{
			top_left:     cPoint(f.Corners.TopLeft),
			top_right:    cPoint(f.Corners.TopRight),
			bottom_right: cPoint(f.Corners.BottomRight),
			bottom_left:  cPoint(f.Corners.BottomLeft),
		},
		bounding_box: cRect(f.BoundingBox),
		confidence:   C.float(f.Confidence),
		lane_count:   C.int32_t(f.LaneCount),
	}
}

// fillResult copies an extraction into out. Lanes and tensor go to C heap
// memory owned by out. On allocation failure everything already allocated
// is freed and CodeMemoryAllocationFailed is returned.
func fillResult(res *pipeline.ExtractionResult, out *C.SorobanExtractionResult) vision.ErrorCode {
	out.frame = cFrameResult(res.Frame)
	out.preprocessing_time_ms = C.double(res.PreprocessingTimeMs)
	if !res.Success {
		return res.Code
	}

	if n := len(res.Lanes); n > 0 {
		ptr := (*C.SorobanLaneInfo)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(C.SorobanLaneInfo{}))))
		if ptr == nil {
			return vision.CodeMemoryAllocationFailed
		}
		lanes := unsafe.Slice(ptr, n)
		for i, l := range res.Lanes {
			lanes[i] = C.SorobanLaneInfo{
				bounding_box: cRect(l.BoundingBox),
				digit_index:  C.int32_t(l.DigitIndex),
				value:        C.int32_t(l.Value),
				confidence:   C.float(l.Confidence),
			}
		}
		out.lanes = ptr
		out.lane_count = C.int32_t(n)
	}

	if t := res.Tensor; t.Len() > 0 {
		size := C.size_t(t.Len()) * C.size_t(unsafe.Sizeof(C.float(0)))
		ptr := (*C.float)(C.malloc(size))
		if ptr == nil {
			freeResult(out)
			return vision.CodeMemoryAllocationFailed
		}
		copy(unsafe.Slice((*float32)(unsafe.Pointer(ptr)), t.Len()), t.Data)
		out.tensor_data = ptr
		out.tensor_batch_size = C.int32_t(t.N)
		out.tensor_channels = C.int32_t(t.C)
		out.tensor_height = C.int32_t(t.H)
		out.tensor_width = C.int32_t(t.W)
	}

	out.total_cells = C.int32_t(res.TotalCells)
	out.success = true
	return vision.CodeNone
}

// freeResult releases the C buffers and zeroes their counts. It is a no-op
// on nil, on a zeroed struct and on an already freed one.
func freeResult(r *C.SorobanExtractionResult) {
	if r == nil {
		return
	}
	if r.lanes != nil {
		C.free(unsafe.Pointer(r.lanes))
		r.lanes = nil
	}
	r.lane_count = 0
	if r.tensor_data != nil {
		C.free(unsafe.Pointer(r.tensor_data))
		r.tensor_data = nil
	}
	r.tensor_batch_size = 0
	r.tensor_channels = 0
	r.tensor_height = 0
	r.tensor_width = 0
	r.total_cells = 0
	r.success = false
}

func goConfig(c *C.SorobanPreprocessingConfig) vision.PreprocessingConfig {
	return vision.PreprocessingConfig{
		TargetLongEdge:        int(c.target_long_edge),
		EnableWhiteBalance:    bool(c.enable_white_balance),
		EnableCLAHE:           bool(c.enable_clahe),
		CLAHEClipLimit:        float64(c.clahe_clip_limit),
		CLAHETileSize:         int(c.clahe_tile_size),
		EnableGaussianBlur:    bool(c.enable_gaussian_blur),
		GaussianKernelSize:    int(c.gaussian_kernel_size),
		EnableBilateralFilter: bool(c.enable_bilateral_filter),
		BilateralD:            int(c.bilateral_d),
		BilateralSigmaColor:   float64(c.bilateral_sigma_color),
		BilateralSigmaSpace:   float64(c.bilateral_sigma_space),
		CannyThreshold1:       float64(c.canny_threshold1),
		CannyThreshold2:       float64(c.canny_threshold2),
		AdaptiveBlockSize:     int(c.adaptive_block_size),
		AdaptiveC:             float64(c.adaptive_c),
		MorphKernelSize:       int(c.morph_kernel_size),
	}
}

func cConfig(cfg vision.PreprocessingConfig) C.SorobanPreprocessingConfig {
	return C.SorobanPreprocessingConfig{
		target_long_edge:        C.int32_t(cfg.TargetLongEdge),
		enable_white_balance:    C.bool(cfg.EnableWhiteBalance),
		enable_clahe:            C.bool(cfg.EnableCLAHE),
		clahe_clip_limit:        C.double(cfg.CLAHEClipLimit),
		clahe_tile_size:         C.int32_t(cfg.CLAHETileSize),
		enable_gaussian_blur:    C.bool(cfg.EnableGaussianBlur),
		gaussian_kernel_size:    C.int32_t(cfg.GaussianKernelSize),
		enable_bilateral_filter: C.bool(cfg.EnableBilateralFilter),
		bilateral_d:             C.int32_t(cfg.BilateralD),
		bilateral_sigma_color:   C.double(cfg.BilateralSigmaColor),
		bilateral_sigma_space:   C.double(cfg.BilateralSigmaSpace),
		canny_threshold1:        C.double(cfg.CannyThreshold1),
		canny_threshold2:        C.double(cfg.CannyThreshold2),
		adaptive_block_size:     C.int32_t(cfg.AdaptiveBlockSize),
		adaptive_c:              C.double(cfg.AdaptiveC),
		morph_kernel_size:       C.int32_t(cfg.MorphKernelSize),
	}
}

func goDetectionParams(c *C.SorobanDetectionParams) vision.DetectionParams {
	return vision.DetectionParams{
		MinFrameAreaRatio:    float64(c.min_frame_area_ratio),
		MaxFrameAreaRatio:    float64(c.max_frame_area_ratio),
		MinAspectRatio:       float64(c.min_aspect_ratio),
		MaxAspectRatio:       float64(c.max_aspect_ratio),
		ContourApproxEpsilon: float64(c.contour_approx_epsilon),
		MinLaneCount:         int(c.min_lane_count),
		MaxLaneCount:         int(c.max_lane_count),
		UpperBeadRatio:       int(c.upper_bead_ratio),
		BeadDividerRatio:     int(c.bead_divider_ratio),
		LowerBeadRatio:       int(c.lower_bead_ratio),
		RectifiedWidth:       int(c.rectified_width),
		RectifiedHeight:      int(c.rectified_height),
		HoughRho:             float64(c.hough_rho),
		HoughTheta:           float64(c.hough_theta),
		HoughThreshold:       int(c.hough_threshold),
		HoughMinLength:       float64(c.hough_min_length),
		HoughMaxGap:          float64(c.hough_max_gap),
		EnableLineRefinement: bool(c.enable_line_refinement),
	}
}

func cDetectionParams(p vision.DetectionParams) C.SorobanDetectionParams {
	return C.SorobanDetectionParams{
		min_frame_area_ratio:   C.double(p.MinFrameAreaRatio),
		max_frame_area_ratio:   C.double(p.MaxFrameAreaRatio),
		min_aspect_ratio:       C.double(p.MinAspectRatio),
		max_aspect_ratio:       C.double(p.MaxAspectRatio),
		contour_approx_epsilon: C.double(p.ContourApproxEpsilon),
		min_lane_count:         C.int32_t(p.MinLaneCount),
		max_lane_count:         C.int32_t(p.MaxLaneCount),
		upper_bead_ratio:       C.int32_t(p.UpperBeadRatio),
		bead_divider_ratio:     C.int32_t(p.BeadDividerRatio),
		lower_bead_ratio:       C.int32_t(p.LowerBeadRatio),
		rectified_width:        C.int32_t(p.RectifiedWidth),
		rectified_height:       C.int32_t(p.RectifiedHeight),
		hough_rho:              C.double(p.HoughRho),
		hough_theta:            C.double(p.HoughTheta),
		hough_threshold:        C.int32_t(p.HoughThreshold),
		hough_min_length:       C.double(p.HoughMinLength),
		hough_max_gap:          C.double(p.HoughMaxGap),
		enable_line_refinement: C.bool(p.EnableLineRefinement),
	}
}
