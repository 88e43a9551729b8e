// Package render draws the intermediate figures of a calibration run.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/ironsheep/graticule-tools/internal/calibration"
	"github.com/ironsheep/graticule-tools/internal/imaging"
)

// ProfileChartOptions controls the intensity profile plot.
type ProfileChartOptions struct {
	Width, Height int
	// LineColor and MarkerColor are hex strings ("#000000").
	LineColor   string
	MarkerColor string
	// Markers are drawn as vertical lines at each X, typically the picked points.
	Markers []calibration.Point
}

func (o ProfileChartOptions) withDefaults() ProfileChartOptions {
	if o.Width <= 0 {
		o.Width = 1024
	}
	if o.Height <= 0 {
		o.Height = 400
	}
	if o.LineColor == "" {
		o.LineColor = "#000000"
	}
	if o.MarkerColor == "" {
		o.MarkerColor = "#D62728"
	}
	return o
}

// ProfileChart plots intensity against pixel column for one profile.
func ProfileChart(profile imaging.Profile, opts ProfileChartOptions) (image.Image, error) {
	if profile.Len() == 0 {
		return nil, fmt.Errorf("cannot plot an empty profile")
	}
	opts = opts.withDefaults()

	lineColor, err := chartColor(opts.LineColor)
	if err != nil {
		return nil, err
	}
	markerColor, err := chartColor(opts.MarkerColor)
	if err != nil {
		return nil, err
	}

	xs := make([]float64, profile.Len())
	for i := range xs {
		xs[i] = float64(i)
	}

	lo, hi := profile.MinMax()
	if lo == hi {
		lo, hi = lo-1, hi+1
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "intensity",
			XValues: xs,
			YValues: profile.Values,
			Style:   chart.Style{StrokeColor: lineColor, StrokeWidth: 1},
		},
	}
	for _, m := range opts.Markers {
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("x=%g", m.X),
			XValues: []float64{m.X, m.X},
			YValues: []float64{lo, hi},
			Style:   chart.Style{StrokeColor: markerColor, StrokeWidth: 1, StrokeDashArray: []float64{4, 2}},
		})
	}

	ch := chart.Chart{
		Title:  fmt.Sprintf("Intensity Profile at y=%d", profile.Row),
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{
			Name:  "pixel",
			Range: &chart.ContinuousRange{Min: 0, Max: float64(profile.Len())},
		},
		YAxis: chart.YAxis{
			Name:  "intensity",
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: series,
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render profile chart: %w", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode profile chart: %w", err)
	}
	return img, nil
}

func chartColor(hex string) (drawing.Color, error) {
	c, err := imaging.ParseColor(hex)
	if err != nil {
		return drawing.Color{}, err
	}
	return toDrawing(c), nil
}

func toDrawing(c color.NRGBA) drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}
