package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ironsheep/graticule-tools/internal/calibration"
	"github.com/ironsheep/graticule-tools/internal/config"
	"github.com/ironsheep/graticule-tools/internal/detection"
	"github.com/ironsheep/graticule-tools/internal/imaging"
	"github.com/ironsheep/graticule-tools/internal/render"
)

// defaults fills omitted optional tool arguments with the values the
// command-line pipeline uses.
var defaults = config.Default()

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "graticule_calibrate").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warn().Str("tool", params.Name).Err(err).Msg("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)

	case "graticule_profile":
		return s.handleGraticuleProfile(args)
	case "graticule_detect_lines":
		return s.handleGraticuleDetectLines(args)
	case "graticule_calibrate":
		return s.handleGraticuleCalibrate(args)

	case "image_normalize":
		return s.handleImageNormalize(args)
	case "image_scale_bar":
		return s.handleImageScaleBar(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return json.Unmarshal(args, v)
}

// === Image Information ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// === Graticule Measurement ===

type profileArgs struct {
	Path string `json:"path"`
	Row  *int   `json:"row"`
}

func (a profileArgs) row() int {
	if a.Row == nil {
		return defaults.Calibration.ProfileRow
	}
	return *a.Row
}

func (s *Server) loadProfile(a profileArgs) (imaging.Profile, error) {
	grid, err := imaging.LoadGrid(s.cache, a.Path)
	if err != nil {
		return imaging.Profile{}, err
	}
	return grid.Row(a.row())
}

type graticuleProfileArgs struct {
	profileArgs
	Plot bool `json:"plot"`
}

// ProfileResult is the output of graticule_profile.
type ProfileResult struct {
	Row    int       `json:"row"`
	Width  int       `json:"width"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Values []float64 `json:"values"`
	// PlotBase64 is a PNG rendering of the profile, present when requested.
	PlotBase64 string `json:"plot_base64,omitempty"`
}

func (s *Server) handleGraticuleProfile(args json.RawMessage) (interface{}, error) {
	var a graticuleProfileArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	profile, err := s.loadProfile(a.profileArgs)
	if err != nil {
		return nil, err
	}
	lo, hi := profile.MinMax()
	res := &ProfileResult{
		Row:    profile.Row,
		Width:  profile.Len(),
		Min:    lo,
		Max:    hi,
		Values: profile.Values,
	}
	if a.Plot {
		chart, err := render.ProfileChart(profile, render.ProfileChartOptions{})
		if err != nil {
			return nil, err
		}
		if res.PlotBase64, err = imaging.EncodePNGBase64(chart); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type graticuleDetectLinesArgs struct {
	profileArgs
	Threshold float64 `json:"threshold"`
	Bright    bool    `json:"bright"`
	MinWidth  int     `json:"min_width"`
}

func (s *Server) handleGraticuleDetectLines(args json.RawMessage) (interface{}, error) {
	var a graticuleDetectLinesArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	profile, err := s.loadProfile(a.profileArgs)
	if err != nil {
		return nil, err
	}
	return detection.DetectLines(profile, detection.Options{
		Threshold: a.Threshold,
		Bright:    a.Bright,
		MinWidth:  a.MinWidth,
	})
}

type graticuleCalibrateArgs struct {
	profileArgs
	X1         *float64 `json:"x1"`
	X2         *float64 `json:"x2"`
	GapCount   int      `json:"gap_count"`
	GapSpacing float64  `json:"gap_spacing"`
	Unit       string   `json:"unit"`
}

// CalibrateResult is the output of graticule_calibrate.
type CalibrateResult struct {
	*calibration.Calibration
	// Method is "manual" when x1 and x2 were given, "auto" otherwise.
	Method     string               `json:"method"`
	Points     [2]calibration.Point `json:"points"`
	NMPerPixel float64              `json:"nm_per_pixel"`
}

func (s *Server) handleGraticuleCalibrate(args json.RawMessage) (interface{}, error) {
	var a graticuleCalibrateArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.GapCount == 0 {
		a.GapCount = defaults.Calibration.GapCount
	}
	if a.GapSpacing == 0 {
		a.GapSpacing = defaults.Calibration.GapSpacing
	}
	if a.Unit == "" {
		a.Unit = defaults.Calibration.Unit
	}
	if (a.X1 == nil) != (a.X2 == nil) {
		return nil, fmt.Errorf("x1 and x2 must be given together")
	}

	profile, err := s.loadProfile(a.profileArgs)
	if err != nil {
		return nil, err
	}

	var picker calibration.PointPicker = calibration.AutoPicker{GapCount: a.GapCount}
	method := "auto"
	if a.X1 != nil {
		picker = calibration.ManualPicker{X1: *a.X1, X2: *a.X2}
		method = "manual"
	}
	points, err := picker.PickPoints(context.Background(), profile)
	if err != nil {
		return nil, err
	}

	cal, err := calibration.Calibrate(points, calibration.Options{
		GapCount:   a.GapCount,
		GapSpacing: a.GapSpacing,
		Unit:       a.Unit,
	})
	if err != nil {
		return nil, err
	}
	nm, err := cal.PerPixel("nm")
	if err != nil {
		return nil, err
	}
	return &CalibrateResult{
		Calibration: cal,
		Method:      method,
		Points:      points,
		NMPerPixel:  nm,
	}, nil
}

// === Target Image Operations ===

type imageNormalizeArgs struct {
	Path       string `json:"path"`
	OutputPath string `json:"output_path"`
}

// NormalizeResult is the output of image_normalize.
type NormalizeResult struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	SourceMin   float64 `json:"source_min"`
	SourceMax   float64 `json:"source_max"`
	SavedTo     string  `json:"saved_to,omitempty"`
	ImageBase64 string  `json:"image_base64,omitempty"`
}

func (s *Server) handleImageNormalize(args json.RawMessage) (interface{}, error) {
	var a imageNormalizeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	grid, err := imaging.LoadGrid(s.cache, a.Path)
	if err != nil {
		return nil, err
	}
	lo, hi := grid.MinMax()
	norm, err := imaging.Normalize(grid)
	if err != nil {
		return nil, err
	}

	res := &NormalizeResult{
		Width:     norm.Width,
		Height:    norm.Height,
		SourceMin: lo,
		SourceMax: hi,
	}
	img := norm.GrayImage(0, 1)
	if a.OutputPath != "" {
		if err := imaging.Save(a.OutputPath, img, 0); err != nil {
			return nil, err
		}
		res.SavedTo = a.OutputPath
		return res, nil
	}
	if res.ImageBase64, err = imaging.EncodePNGBase64(img); err != nil {
		return nil, err
	}
	return res, nil
}

type imageScaleBarArgs struct {
	Path          string    `json:"path"`
	OutputPath    string    `json:"output_path"`
	UnitsPerPixel float64   `json:"units_per_pixel"`
	Unit          string    `json:"unit"`
	X0            *int      `json:"x0"`
	Y             *int      `json:"y"`
	Thickness     int       `json:"thickness"`
	NotchHeight   *int      `json:"notch_height"`
	Ticks         []float64 `json:"ticks"`
	Title         string    `json:"title"`
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// ScaleBarResult is the output of image_scale_bar.
type ScaleBarResult struct {
	ScaleBar      *imaging.ScaleBar `json:"scale_bar"`
	PixelsPerUnit float64           `json:"pixels_per_unit"`
	Labels        []imaging.Label   `json:"labels"`
	SavedTo       string            `json:"saved_to"`
}

func (s *Server) handleImageScaleBar(args json.RawMessage) (interface{}, error) {
	var a imageScaleBarArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.OutputPath == "" {
		return nil, fmt.Errorf("output_path is required")
	}
	if a.UnitsPerPixel <= 0 {
		return nil, fmt.Errorf("units_per_pixel must be positive, got %g", a.UnitsPerPixel)
	}
	if a.Unit == "" {
		a.Unit = defaults.Calibration.Unit
	}
	if a.Thickness == 0 {
		a.Thickness = defaults.ScaleBar.Thickness
	}
	if len(a.Ticks) == 0 {
		a.Ticks = defaults.ScaleBar.Ticks
	}

	grid, err := imaging.LoadGrid(s.cache, a.Path)
	if err != nil {
		return nil, err
	}
	norm, err := imaging.Normalize(grid)
	if err != nil {
		return nil, err
	}

	ppu := 1 / a.UnitsPerPixel
	bar, err := imaging.NewScaleBar(ppu, imaging.ScaleBarOptions{
		X0:          intOr(a.X0, defaults.ScaleBar.X0),
		Y:           intOr(a.Y, defaults.ScaleBar.Y),
		Thickness:   a.Thickness,
		NotchHeight: intOr(a.NotchHeight, defaults.ScaleBar.NotchHeight),
		Ticks:       a.Ticks,
	})
	if err != nil {
		return nil, err
	}
	drawn, err := bar.Render(norm)
	if err != nil {
		return nil, err
	}

	labels := bar.Labels(a.Unit, defaults.ScaleBar.LabelOffset)
	out := imaging.Annotate(drawn, labels, imaging.AnnotateOptions{Lo: 0, Hi: 1, Title: a.Title})
	if err := imaging.Save(a.OutputPath, out, 0); err != nil {
		return nil, err
	}
	return &ScaleBarResult{
		ScaleBar:      bar,
		PixelsPerUnit: ppu,
		Labels:        labels,
		SavedTo:       a.OutputPath,
	}, nil
}
