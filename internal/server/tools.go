package server

import "fmt"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func rowProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": fmt.Sprintf("Image row (0-based) to sample the intensity profile from (default %d)", defaults.Calibration.ProfileRow),
		"default":     defaults.Calibration.ProfileRow,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format, bit depth and intensity range.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Graticule Measurement
		{
			Name:        "graticule_profile",
			Description: "Return the intensity values along one row of a graticule image. Optionally includes a plot of the profile as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"row":  rowProperty(),
					"plot": map[string]interface{}{
						"type":        "boolean",
						"description": "Include a rendered plot of the profile (default false)",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "graticule_detect_lines",
			Description: "Find graticule lines crossing a profile row. Returns each line's leading edge, width and contrast, plus the mean spacing between lines.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"row":  rowProperty(),
					"threshold": map[string]interface{}{
						"type":        "number",
						"description": "Intensity separating line from background. Default is the midpoint of the profile range",
					},
					"bright": map[string]interface{}{
						"type":        "boolean",
						"description": "Lines are brighter than the background (default false, dark lines)",
						"default":     false,
					},
					"min_width": map[string]interface{}{
						"type":        "integer",
						"description": "Ignore runs narrower than this many pixels (default 1)",
						"default":     1,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "graticule_calibrate",
			Description: "Compute the physical length of one pixel from two reference positions on a graticule profile. When x1 and x2 are omitted the lines are located automatically.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"row":  rowProperty(),
					"x1": map[string]interface{}{
						"type":        "number",
						"description": "First reference position in pixels",
					},
					"x2": map[string]interface{}{
						"type":        "number",
						"description": "Second reference position in pixels",
					},
					"gap_count": map[string]interface{}{
						"type":        "integer",
						"description": fmt.Sprintf("Number of line gaps between x1 and x2 (default %d)", defaults.Calibration.GapCount),
						"default":     defaults.Calibration.GapCount,
					},
					"gap_spacing": map[string]interface{}{
						"type":        "number",
						"description": fmt.Sprintf("Physical distance between adjacent lines (default %g)", defaults.Calibration.GapSpacing),
						"default":     defaults.Calibration.GapSpacing,
					},
					"unit": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"nm", "um", "µm", "mm"},
						"description": fmt.Sprintf("Unit of gap_spacing (default %s)", defaults.Calibration.Unit),
						"default":     defaults.Calibration.Unit,
					},
				},
				"required": []string{"path"},
			},
		},

		// Target Image Operations
		{
			Name:        "image_normalize",
			Description: "Rescale an image's intensities linearly so the darkest pixel is 0 and the brightest is 1. Writes the result to output_path, or returns it as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional file to write (.png, .jpg or .bmp)",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_scale_bar",
			Description: "Normalize an image and burn in a ruler-like scale bar with labelled notches at each tick length, using a scale factor from graticule_calibrate.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "File to write the annotated image to",
					},
					"units_per_pixel": map[string]interface{}{
						"type":        "number",
						"description": "Physical length of one pixel, as returned by graticule_calibrate",
					},
					"unit": map[string]interface{}{
						"type":        "string",
						"description": fmt.Sprintf("Unit label drawn next to the bar (default %s)", defaults.Calibration.Unit),
						"default":     defaults.Calibration.Unit,
					},
					"x0": map[string]interface{}{
						"type":        "integer",
						"description": fmt.Sprintf("Left end of the bar (default %d)", defaults.ScaleBar.X0),
						"default":     defaults.ScaleBar.X0,
					},
					"y": map[string]interface{}{
						"type":        "integer",
						"description": fmt.Sprintf("Top row of the bar (default %d)", defaults.ScaleBar.Y),
						"default":     defaults.ScaleBar.Y,
					},
					"thickness": map[string]interface{}{
						"type":        "integer",
						"description": fmt.Sprintf("Bar height in pixels (default %d)", defaults.ScaleBar.Thickness),
						"default":     defaults.ScaleBar.Thickness,
					},
					"notch_height": map[string]interface{}{
						"type":        "integer",
						"description": fmt.Sprintf("How far notches rise above the bar (default %d)", defaults.ScaleBar.NotchHeight),
						"default":     defaults.ScaleBar.NotchHeight,
					},
					"ticks": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "number"},
						"description": fmt.Sprintf("Ascending tick lengths in unit (default %v)", defaults.ScaleBar.Ticks),
						"default":     defaults.ScaleBar.Ticks,
					},
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Optional title drawn along the top edge",
					},
				},
				"required": []string{"path", "output_path", "units_per_pixel"},
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
