package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// imageSourceProperties are shared by every tool that reads a frame.
func imageSourceProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file (PNG, JPEG, GIF, BMP, TIFF or WebP)",
		},
		"image_base64": map[string]interface{}{
			"type":        "string",
			"description": "Base64-encoded image, optionally as a data: URL. Used when path is empty.",
		},
	}
}

func withImageSource(extra map[string]interface{}) map[string]interface{} {
	props := imageSourceProperties()
	for k, v := range extra {
		props[k] = v
	}
	return props
}

var cellStateSchema = map[string]interface{}{
	"type": "string",
	"enum": []string{"upper", "lower", "empty"},
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Detection
		{
			Name:        "soroban_detect_frame",
			Description: "Find the soroban frame in an image. Returns the four ordered corners, bounding box, confidence and perspective metrics of the frame.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageSourceProperties(),
			},
		},
		{
			Name:        "soroban_extract",
			Description: "Run the extraction pipeline: detect and rectify the frame, count lanes and cut every lane into five bead cells. Optionally returns the rectified frame and cell images as base64 PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withImageSource(map[string]interface{}{
					"include_rectified": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the rectified frame image",
						"default":     false,
					},
					"include_cells": map[string]interface{}{
						"type":        "boolean",
						"description": "Return every cell image, lane by lane from the left, upper bead first",
						"default":     false,
					},
				}),
			},
		},

		// Recognition
		{
			Name:        "soroban_read",
			Description: "Read the number shown on a soroban: extraction, bead classification and interpretation. Returns the value, per-digit beads and a timing breakdown.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withImageSource(map[string]interface{}{
					"threshold": map[string]interface{}{
						"type":        "number",
						"description": "Minimum per-lane confidence for the reading to count as valid (default 0.5)",
						"default":     0.5,
					},
				}),
			},
		},
		{
			Name:        "soroban_overlay",
			Description: "Draw the detected frame, lane dividers and the read value onto the image and return it as base64 PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withImageSource(map[string]interface{}{
					"frame_color": map[string]interface{}{
						"type":        "string",
						"description": "Frame outline colour as #RRGGBB (default green)",
					},
					"thickness": map[string]interface{}{
						"type":        "integer",
						"description": "Outline thickness in pixels (default 2)",
						"default":     2,
					},
				}),
			},
		},
		{
			Name:        "soroban_interpret",
			Description: "Compute the value of a soroban from bead states without an image. Lanes are listed left to right; the rightmost lane is the ones place.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"lanes": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"upper": cellStateSchema,
								"lower": map[string]interface{}{
									"type":     "array",
									"items":    cellStateSchema,
									"minItems": 4,
									"maxItems": 4,
								},
								"confidence": map[string]interface{}{"type": "number"},
							},
							"required": []string{"upper", "lower"},
						},
					},
					"threshold": map[string]interface{}{
						"type":        "number",
						"description": "Confidence threshold for the validity check (default 0.5)",
					},
				},
				"required": []string{"lanes"},
			},
		},

		// Configuration
		{
			Name:        "soroban_config",
			Description: "Read or update pipeline configuration. Any of preprocessing, detection and tensor may be given as a partial object; omitted keys keep their current values. Returns the configuration in effect.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"preprocessing": map[string]interface{}{"type": "object"},
					"detection":     map[string]interface{}{"type": "object"},
					"tensor":        map[string]interface{}{"type": "object"},
					"clear_cache": map[string]interface{}{
						"type":        "boolean",
						"description": "Drop every cached image",
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
