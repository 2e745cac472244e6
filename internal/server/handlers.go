package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/detection"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/imaging"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/interpret"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/pipeline"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// defaultThreshold is the per-lane confidence a reading must reach to be
// reported as valid.
const defaultThreshold = 0.5

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "soroban_read").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// toolEnvelope wraps every tool result so callers can correlate it with
// server logs.
type toolEnvelope struct {
	RequestID string      `json:"request_id"`
	Tool      string      `json:"tool"`
	ElapsedMs float64     `json:"elapsed_ms"`
	Result    interface{} `json:"result"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON envelope>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000
// whose data carries the request id and the pipeline error code.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID, "tool", params.Name)
	start := time.Now()

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		logger.Warn("tool failed", "error", err, "elapsed_ms", elapsed)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
			"error_code": vision.CodeOf(err).String(),
		})
	}
	logger.Debug("tool completed", "elapsed_ms", elapsed)

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(toolEnvelope{
						RequestID: requestID,
						Tool:      params.Name,
						ElapsedMs: elapsed,
						Result:    result,
					}),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Loads the frame from the cache or the inline payload
//  4. Runs the pipeline stages it needs
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch name {
	// Detection
	case "soroban_detect_frame":
		return s.handleDetectFrame(args)
	case "soroban_extract":
		return s.handleExtract(args)

	// Recognition
	case "soroban_read":
		return s.handleRead(ctx, args)
	case "soroban_overlay":
		return s.handleOverlay(ctx, args)
	case "soroban_interpret":
		return s.handleInterpret(args)

	// Configuration
	case "soroban_config":
		return s.handleConfig(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// imageSource is embedded in the arguments of every image tool.
type imageSource struct {
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
}

func (s *Server) loadImage(src imageSource) (image.Image, error) {
	switch {
	case src.Path != "":
		img, err := s.cache.Load(src.Path)
		if err != nil {
			return nil, vision.NewError(vision.CodeInvalidInput, "load image", err)
		}
		return img, nil
	case src.ImageBase64 != "":
		img, err := imaging.DecodeBase64(src.ImageBase64)
		if err != nil {
			return nil, vision.NewError(vision.CodeInvalidInput, "load image", err)
		}
		return img, nil
	default:
		return nil, vision.Errorf(vision.CodeInvalidInput, "load image", "either path or image_base64 is required")
	}
}

// extract loads the frame and runs extraction. Extraction failures are
// returned in the result, not as err; err is reserved for bad arguments.
func (s *Server) extract(args json.RawMessage, a interface{}, src *imageSource) (*pipeline.ExtractionResult, image.Image, error) {
	if err := json.Unmarshal(args, a); err != nil {
		return nil, nil, vision.NewError(vision.CodeInvalidInput, "arguments", err)
	}
	img, err := s.loadImage(*src)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.pipeline.ProcessImage(img)
	if vision.CodeOf(err) == vision.CodeInvalidInput {
		return nil, nil, err
	}
	return res, img, nil
}

func errorCodeName(c vision.ErrorCode) string {
	if c == vision.CodeNone {
		return ""
	}
	return c.String()
}

// === Detection Handlers ===

type detectFrameArgs struct {
	imageSource
}

type detectFrameResult struct {
	Width     int                         `json:"width"`
	Height    int                         `json:"height"`
	Scale     float64                     `json:"scale"`
	Frame     vision.FrameDetectionResult `json:"frame"`
	Metrics   *imaging.QuadMetrics        `json:"metrics,omitempty"`
	Lightness float64                     `json:"lightness,omitempty"`
	ErrorCode string                      `json:"error_code,omitempty"`
	Backend   string                      `json:"backend"`
}

func (s *Server) handleDetectFrame(args json.RawMessage) (interface{}, error) {
	var a detectFrameArgs
	res, img, err := s.extract(args, &a, &a.imageSource)
	if err != nil {
		return nil, err
	}
	defer res.Release()

	out := detectFrameResult{
		Width:   img.Bounds().Dx(),
		Height:  img.Bounds().Dy(),
		Scale:   res.Scale,
		Frame:   res.Frame,
		Backend: s.pipeline.Backend().Name(),
	}
	// Lane failures after a successful detection do not matter here.
	if !res.Frame.Detected {
		out.ErrorCode = errorCodeName(res.Code)
	}
	if res.Frame.Detected && res.Working != nil {
		b := res.Working.Bounds()
		m := imaging.MeasureQuad(res.Frame.Corners, float64(b.Dx()*b.Dy()))
		out.Metrics = &m

		// CIE L* of the frame body, for exposure hints.
		if body, err := imaging.CropClamped(res.Working, res.Frame.BoundingBox.ImageRect()); err == nil {
			out.Lightness = imaging.MeanColor(body).Lightness()
		}
	}
	return out, nil
}

type extractArgs struct {
	imageSource
	IncludeRectified bool `json:"include_rectified"`
	IncludeCells     bool `json:"include_cells"`
}

type extractResult struct {
	Success             bool                        `json:"success"`
	ErrorCode           string                      `json:"error_code,omitempty"`
	Retryable           bool                        `json:"retryable,omitempty"`
	Frame               vision.FrameDetectionResult `json:"frame"`
	Lanes               []vision.LaneInfo           `json:"lanes"`
	TotalCells          int                         `json:"total_cells"`
	TensorShape         []int64                     `json:"tensor_shape,omitempty"`
	LaneBoundaries      []int                       `json:"lane_boundaries,omitempty"`
	PreprocessingTimeMs float64                     `json:"preprocessing_time_ms"`
	Timing              interpret.TimingBreakdown   `json:"timing"`
	Rectified           *imaging.EncodedImage       `json:"rectified,omitempty"`
	Cells               []*imaging.EncodedImage     `json:"cells,omitempty"`
}

func (s *Server) handleExtract(args json.RawMessage) (interface{}, error) {
	var a extractArgs
	res, _, err := s.extract(args, &a, &a.imageSource)
	if err != nil {
		return nil, err
	}
	defer res.Release()

	out := extractResult{
		Success:             res.Success,
		ErrorCode:           errorCodeName(res.Code),
		Retryable:           res.Code.Retryable(),
		Frame:               res.Frame,
		Lanes:               res.Lanes,
		TotalCells:          res.TotalCells,
		PreprocessingTimeMs: res.PreprocessingTimeMs,
		Timing:              res.Timing,
	}
	if !res.Success {
		return out, nil
	}
	out.TensorShape = res.Tensor.Shape()

	// Dark gaps between rods in the rectified frame, as a cross-check on
	// the equal-width lane split.
	if gray, err := s.pipeline.Backend().Grayscale(res.Rectified); err == nil {
		out.LaneBoundaries = detection.DetectLaneBoundaries(gray)
	}

	if a.IncludeRectified {
		if out.Rectified, err = imaging.EncodePNG(res.Rectified); err != nil {
			return nil, err
		}
	}
	if a.IncludeCells {
		out.Cells = make([]*imaging.EncodedImage, len(res.Cells))
		for i, cell := range res.Cells {
			if out.Cells[i], err = imaging.EncodePNG(cell); err != nil {
				return nil, fmt.Errorf("cell %d: %w", i, err)
			}
		}
	}
	return out, nil
}

// === Recognition Handlers ===

type readArgs struct {
	imageSource
	Threshold *float64 `json:"threshold"`
}

type readResult struct {
	Success      bool                      `json:"success"`
	ErrorCode    string                    `json:"error_code,omitempty"`
	Value        int64                     `json:"value"`
	Valid        bool                      `json:"valid"`
	Reading      *interpret.SorobanResult  `json:"reading,omitempty"`
	Timing       interpret.TimingBreakdown `json:"timing"`
	EstimatedFPS float64                   `json:"estimated_fps"`
	Classifier   string                    `json:"classifier"`
}

func (s *Server) handleRead(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a readArgs
	res, _, err := s.extract(args, &a, &a.imageSource)
	if err != nil {
		return nil, err
	}
	defer res.Release()

	threshold := defaultThreshold
	if a.Threshold != nil {
		threshold = *a.Threshold
	}
	out := readResult{
		Success:    res.Success,
		ErrorCode:  errorCodeName(res.Code),
		Timing:     res.Timing,
		Classifier: s.pipeline.Classifier().Name(),
	}
	if !res.Success {
		return out, nil
	}

	reading, err := s.pipeline.Classify(ctx, res)
	if err != nil {
		return nil, err
	}
	out.Value = reading.Value
	out.Valid = !reading.Overflow && interpret.Validate(reading.Lanes, threshold)
	out.Reading = reading
	out.Timing = reading.Timing
	out.EstimatedFPS = reading.Timing.EstimatedFPS()
	return out, nil
}

type overlayArgs struct {
	imageSource
	FrameColor string `json:"frame_color"`
	Thickness  int    `json:"thickness"`
}

type overlayResult struct {
	*imaging.EncodedImage
	Detected bool   `json:"detected"`
	Value    *int64 `json:"value,omitempty"`
}

func (s *Server) handleOverlay(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a overlayArgs
	res, img, err := s.extract(args, &a, &a.imageSource)
	if err != nil {
		return nil, err
	}
	defer res.Release()
	if a.Thickness == 0 {
		a.Thickness = 2
	}

	lanes := res.Lanes
	var captions []string
	var value *int64
	switch {
	case res.Success:
		reading, err := s.pipeline.Classify(ctx, res)
		if err != nil {
			return nil, err
		}
		value = &reading.Value
		lanes = make([]vision.LaneInfo, len(res.Lanes))
		copy(lanes, res.Lanes)
		for i := range lanes {
			lanes[i].Value = reading.Lanes[i].Digit.Value()
			lanes[i].Confidence = reading.Lanes[i].Confidence()
		}
		captions = []string{
			fmt.Sprintf("value %d", reading.Value),
			fmt.Sprintf("%d lanes  conf %.2f", reading.LaneCount, reading.Confidence),
		}
	case res.Frame.Detected:
		captions = []string{fmt.Sprintf("frame found: %s", res.Code)}
	default:
		captions = []string{"no frame"}
	}

	base := image.Image(res.Working)
	if base == nil {
		base = img
	}
	params := s.pipeline.DetectionParams()
	drawn, err := imaging.DrawOverlay(base, res.Frame, lanes, imaging.OverlayOptions{
		FrameColor:      a.FrameColor,
		Thickness:       a.Thickness,
		RectifiedWidth:  params.RectifiedWidth,
		RectifiedHeight: params.RectifiedHeight,
		Captions:        captions,
	})
	if err != nil {
		return nil, err
	}
	encoded, err := imaging.EncodePNG(drawn)
	if err != nil {
		return nil, err
	}
	return overlayResult{EncodedImage: encoded, Detected: res.Frame.Detected, Value: value}, nil
}

type interpretLane struct {
	Upper      string   `json:"upper"`
	Lower      []string `json:"lower"`
	Confidence *float64 `json:"confidence"`
}

type interpretArgs struct {
	Lanes     []interpretLane `json:"lanes"`
	Threshold *float64        `json:"threshold"`
}

type interpretResult struct {
	Value    int64                    `json:"value"`
	Overflow bool                     `json:"overflow,omitempty"`
	Valid    bool                     `json:"valid"`
	Digits   []interpret.SorobanDigit `json:"digits"`
}

func (s *Server) handleInterpret(args json.RawMessage) (interface{}, error) {
	var a interpretArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, vision.NewError(vision.CodeInvalidInput, "arguments", err)
	}
	if len(a.Lanes) == 0 {
		return nil, vision.Errorf(vision.CodeInvalidInput, "interpret", "lanes is required")
	}

	lanes := make([]interpret.SorobanLane, len(a.Lanes))
	digits := make([]interpret.SorobanDigit, len(a.Lanes))
	for i, l := range a.Lanes {
		upper, err := vision.ParseCellState(l.Upper)
		if err != nil {
			return nil, vision.NewError(vision.CodeInvalidInput, fmt.Sprintf("lane %d", i), err)
		}
		lower := make([]vision.CellState, len(l.Lower))
		for j, name := range l.Lower {
			if lower[j], err = vision.ParseCellState(name); err != nil {
				return nil, vision.NewError(vision.CodeInvalidInput, fmt.Sprintf("lane %d", i), err)
			}
		}
		conf := 1.0
		if l.Confidence != nil {
			conf = *l.Confidence
		}

		digit, err := interpret.NewSorobanDigit(len(a.Lanes)-1-i, upper, lower, conf, vision.Rect{})
		if err != nil {
			return nil, vision.NewError(vision.CodeInvalidInput, fmt.Sprintf("lane %d", i), err)
		}
		digits[i] = digit
		lanes[i].Digit = digit
	}

	threshold := defaultThreshold
	if a.Threshold != nil {
		threshold = *a.Threshold
	}
	value, err := interpret.InterpretChecked(lanes)
	overflow := errors.Is(err, interpret.ErrOverflow)
	return interpretResult{
		Value:    value,
		Overflow: overflow,
		Valid:    !overflow && interpret.Validate(lanes, threshold),
		Digits:   digits,
	}, nil
}

// === Configuration Handlers ===

type configArgs struct {
	Preprocessing map[string]interface{} `json:"preprocessing"`
	Detection     map[string]interface{} `json:"detection"`
	Tensor        map[string]interface{} `json:"tensor"`
	ClearCache    bool                   `json:"clear_cache"`
}

type configResult struct {
	Preprocessing vision.PreprocessingConfig `json:"preprocessing"`
	Detection     vision.DetectionParams     `json:"detection"`
	Tensor        vision.TensorConfig        `json:"tensor"`
	Backend       string                     `json:"backend"`
	Classifier    string                     `json:"classifier"`
	CachedImages  int                        `json:"cached_images"`
}

func (s *Server) handleConfig(args json.RawMessage) (interface{}, error) {
	var a configArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, vision.NewError(vision.CodeInvalidInput, "arguments", err)
	}

	if a.Preprocessing != nil {
		cfg := s.pipeline.Config()
		if err := decodeOver(a.Preprocessing, &cfg); err != nil {
			return nil, vision.NewError(vision.CodeInvalidInput, "preprocessing", err)
		}
		if err := s.pipeline.SetConfig(cfg); err != nil {
			return nil, err
		}
	}
	if a.Detection != nil {
		params := s.pipeline.DetectionParams()
		if err := decodeOver(a.Detection, &params); err != nil {
			return nil, vision.NewError(vision.CodeInvalidInput, "detection", err)
		}
		if err := s.pipeline.SetDetectionParams(params); err != nil {
			return nil, err
		}
	}
	if a.Tensor != nil {
		cfg := s.pipeline.TensorConfig()
		if err := decodeOver(a.Tensor, &cfg); err != nil {
			return nil, vision.NewError(vision.CodeInvalidInput, "tensor", err)
		}
		if err := s.pipeline.SetTensorConfig(cfg); err != nil {
			return nil, err
		}
	}
	if a.ClearCache {
		s.cache.Clear()
	}

	return configResult{
		Preprocessing: s.pipeline.Config(),
		Detection:     s.pipeline.DetectionParams(),
		Tensor:        s.pipeline.TensorConfig(),
		Backend:       s.pipeline.Backend().Name(),
		Classifier:    s.pipeline.Classifier().Name(),
		CachedImages:  s.cache.Len(),
	}, nil
}

// decodeOver applies a partial JSON object onto dst, matching keys by their
// json tag. Unknown keys are rejected.
func decodeOver(src map[string]interface{}, dst interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(src); err != nil {
		return errors.New(strings.ReplaceAll(err.Error(), "\n", " "))
	}
	return nil
}
