package server

import (
	"testing"

	"github.com/ironsheep/graticule-tools/internal/config"
)

func toolMap() map[string]Tool {
	m := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		m[tool.Name] = tool
	}
	return m
}

func TestGetToolDefinitions(t *testing.T) {
	expectedTools := []string{
		"image_load",
		"graticule_profile",
		"graticule_detect_lines",
		"graticule_calibrate",
		"image_normalize",
		"image_scale_bar",
	}

	tools := toolMap()
	if len(tools) != len(expectedTools) {
		t.Errorf("got %d tools, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}
			if _, ok := tool.InputSchema["properties"].(map[string]interface{}); !ok {
				t.Error("InputSchema properties should be a map")
			}

			required, ok := tool.InputSchema["required"].([]string)
			if !ok {
				t.Fatal("'required' should be a string slice")
			}
			hasPath := false
			for _, r := range required {
				if r == "path" {
					hasPath = true
				}
			}
			if !hasPath {
				t.Error("Tool should require 'path' parameter")
			}
		})
	}
}

func TestToolDefinitions_ScaleBarRequired(t *testing.T) {
	tool := toolMap()["image_scale_bar"]
	required, _ := tool.InputSchema["required"].([]string)

	want := map[string]bool{"path": true, "output_path": true, "units_per_pixel": true}
	for _, r := range required {
		delete(want, r)
	}
	for missing := range want {
		t.Errorf("image_scale_bar should require '%s' parameter", missing)
	}
}

func TestToolDefinitions_OptionalDefaults(t *testing.T) {
	toolDefaults := map[string]map[string]interface{}{
		"graticule_profile":      {"row": 400, "plot": false},
		"graticule_detect_lines": {"row": 400, "bright": false, "min_width": 1},
		"graticule_calibrate":    {"row": 400, "gap_count": 8, "gap_spacing": 10.0, "unit": "µm"},
		"image_scale_bar":        {"unit": "µm", "x0": 1150, "y": 900, "thickness": 5, "notch_height": 25},
	}

	tools := toolMap()
	for toolName, expectedDefaults := range toolDefaults {
		tool, ok := tools[toolName]
		if !ok {
			t.Errorf("Tool %s not found", toolName)
			continue
		}
		props := tool.InputSchema["properties"].(map[string]interface{})

		for paramName, expectedDefault := range expectedDefaults {
			param, ok := props[paramName].(map[string]interface{})
			if !ok {
				t.Errorf("%s.%s: parameter not found or not a map", toolName, paramName)
				continue
			}
			actualDefault, ok := param["default"]
			if !ok {
				t.Errorf("%s.%s: missing default value", toolName, paramName)
				continue
			}
			if actualDefault != expectedDefault {
				t.Errorf("%s.%s: default got %v (%T), want %v (%T)", toolName, paramName, actualDefault, actualDefault, expectedDefault, expectedDefault)
			}
		}
	}
}

func TestHandleToolsList(t *testing.T) {
	s := newTestServer()
	resp := s.handleToolsList(&MCPRequest{JSONRPC: "2.0", ID: 1})

	if resp == nil {
		t.Fatal("handleToolsList returned nil")
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	toolsList, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}
	if len(toolsList) != len(GetToolDefinitions()) {
		t.Errorf("Tool count: got %d, want %d", len(toolsList), len(GetToolDefinitions()))
	}
}

func TestToolDefinitions_DefaultsFollowConfig(t *testing.T) {
	cfg := config.Default()
	props := toolMap()["image_scale_bar"].InputSchema["properties"].(map[string]interface{})

	checks := map[string]interface{}{
		"x0":           cfg.ScaleBar.X0,
		"y":            cfg.ScaleBar.Y,
		"thickness":    cfg.ScaleBar.Thickness,
		"notch_height": cfg.ScaleBar.NotchHeight,
		"unit":         cfg.Calibration.Unit,
	}
	for name, want := range checks {
		got := props[name].(map[string]interface{})["default"]
		if got != want {
			t.Errorf("image_scale_bar.%s: default got %v, want config value %v", name, got, want)
		}
	}

	ticks, ok := props["ticks"].(map[string]interface{})["default"].([]float64)
	if !ok || len(ticks) != len(cfg.ScaleBar.Ticks) {
		t.Fatalf("ticks default: got %v, want %v", ticks, cfg.ScaleBar.Ticks)
	}
	for i := range ticks {
		if ticks[i] != cfg.ScaleBar.Ticks[i] {
			t.Errorf("ticks[%d]: got %g, want %g", i, ticks[i], cfg.ScaleBar.Ticks[i])
		}
	}
}
