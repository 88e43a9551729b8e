// Package pipeline runs a complete calibration: measure the graticule, derive
// the scale factor, and burn a scale bar into the target image.
//
// Run is strictly sequential. The only step that can wait indefinitely is
// point capture, which blocks until the picker answers or ctx is cancelled.
// Any failure aborts the run; nothing is retried and no partial output is
// written after the failing step.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ironsheep/graticule-tools/internal/calibration"
	"github.com/ironsheep/graticule-tools/internal/config"
	"github.com/ironsheep/graticule-tools/internal/imaging"
	"github.com/ironsheep/graticule-tools/internal/logging"
	"github.com/ironsheep/graticule-tools/internal/render"
	"github.com/ironsheep/graticule-tools/internal/webpick"
)

// Figure file names written into the figure directory.
const (
	FigureGraticule  = "graticule.png"
	FigureProfile    = "profile.png"
	FigureNormalized = "normalized.png"
)

// Options carries the runtime collaborators of a run.
type Options struct {
	// Picker overrides the picker named in the configuration.
	Picker calibration.PointPicker
	// In and Out are used by the prompt picker. They default to stdin/stderr.
	In  io.Reader
	Out io.Writer
	// OnReady is passed to the web picker.
	OnReady func(url string)
	Log     zerolog.Logger
	// Cache lets callers share decoded images across runs.
	Cache *imaging.ImageCache
}

// Result summarizes a finished run.
type Result struct {
	// RunID tags every log line of the run.
	RunID       string                   `json:"run_id"`
	Points      [2]calibration.Point     `json:"points"`
	Calibration *calibration.Calibration `json:"calibration"`
	ScaleBar    *imaging.ScaleBar        `json:"scale_bar"`
	OutputPath  string                   `json:"output_path"`
	Figures     []string                 `json:"figures,omitempty"`
}

type runner struct {
	cfg   *config.Config
	opts  Options
	log   zerolog.Logger
	cache *imaging.ImageCache
	res   *Result
}

// Run executes every step of the calibration described by cfg.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stderr
	}
	cache := opts.Cache
	if cache == nil {
		cache = imaging.NewImageCache()
	}

	runID := uuid.NewString()
	opts.Log = opts.Log.With().Str("run", runID).Logger()

	r := &runner{
		cfg:   cfg,
		opts:  opts,
		log:   logging.Component(opts.Log, "pipeline"),
		cache: cache,
		res:   &Result{RunID: runID},
	}
	return r.run(ctx)
}

func (r *runner) run(ctx context.Context) (*Result, error) {
	cfg := r.cfg

	// 1. Calibration image.
	gratImg, err := r.cache.Load(cfg.Inputs.Graticule)
	if err != nil {
		return nil, fmt.Errorf("load graticule: %w", err)
	}
	grat := imaging.GridFromImage(gratImg)
	lo, hi := grat.MinMax()
	r.log.Info().
		Str("path", cfg.Inputs.Graticule).
		Str("type", fmt.Sprintf("%T", gratImg)).
		Int("width", grat.Width).
		Int("height", grat.Height).
		Float64("min", lo).
		Float64("max", hi).
		Msg("loaded graticule")
	gratView := grat.GrayImage(lo, hi)
	if err := r.figure(FigureGraticule, gratView); err != nil {
		return nil, err
	}

	// 2. Profile and reference points.
	profile, err := grat.Row(cfg.Calibration.ProfileRow)
	if err != nil {
		return nil, fmt.Errorf("extract profile: %w", err)
	}

	chartOpts := render.ProfileChartOptions{
		LineColor:   cfg.Output.ProfileColor,
		MarkerColor: cfg.Output.MarkerColor,
	}
	var chart image.Image
	if cfg.Output.FigureDir != "" || (r.opts.Picker == nil && cfg.Calibration.Picker == config.PickerWeb) {
		if chart, err = render.ProfileChart(profile, chartOpts); err != nil {
			return nil, fmt.Errorf("plot profile: %w", err)
		}
	}

	picker, err := r.picker(gratView, profile, chart)
	if err != nil {
		return nil, fmt.Errorf("select picker: %w", err)
	}
	points, err := picker.PickPoints(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("pick reference points: %w", err)
	}
	r.res.Points = points
	r.log.Info().
		Float64("x1", points[0].X).
		Float64("x2", points[1].X).
		Float64("distance_px", points[1].X-points[0].X).
		Msg("reference points")

	if cfg.Output.FigureDir != "" {
		chartOpts.Markers = points[:]
		marked, err := render.ProfileChart(profile, chartOpts)
		if err != nil {
			return nil, fmt.Errorf("plot profile: %w", err)
		}
		if err := r.figure(FigureProfile, marked); err != nil {
			return nil, err
		}
	}

	// 3. Scale factor.
	cal, err := calibration.Calibrate(points, calibration.Options{
		GapCount:   cfg.Calibration.GapCount,
		GapSpacing: cfg.Calibration.GapSpacing,
		Unit:       cfg.Calibration.Unit,
	})
	if err != nil {
		return nil, fmt.Errorf("calibrate: %w", err)
	}
	r.res.Calibration = cal
	event := r.log.Info().
		Float64("units_per_pixel", cal.UnitsPerPixel).
		Str("unit", cal.Unit).
		Float64("pixels_per_unit", cal.PixelsPerUnit())
	if perPixel, err := cal.PerPixel(cfg.Calibration.ReportUnit); err == nil {
		event = event.Float64(cfg.Calibration.ReportUnit+"_per_pixel", perPixel)
	}
	event.Msg("calibration")

	// 4. Target image.
	target, err := imaging.LoadGrid(r.cache, cfg.Inputs.Target)
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	norm, err := imaging.Normalize(target)
	if err != nil {
		return nil, fmt.Errorf("normalize target: %w", err)
	}
	r.log.Info().
		Str("path", cfg.Inputs.Target).
		Int("width", target.Width).
		Int("height", target.Height).
		Msg("normalized target")
	if err := r.figure(FigureNormalized, norm.GrayImage(0, 1)); err != nil {
		return nil, err
	}

	// 5. Scale bar.
	bar, err := imaging.NewScaleBar(cal.PixelsPerUnit(), imaging.ScaleBarOptions{
		X0:          cfg.ScaleBar.X0,
		Y:           cfg.ScaleBar.Y,
		Thickness:   cfg.ScaleBar.Thickness,
		NotchHeight: cfg.ScaleBar.NotchHeight,
		Ticks:       cfg.ScaleBar.Ticks,
		Value:       cfg.ScaleBar.Value,
	})
	if err != nil {
		return nil, fmt.Errorf("build scale bar: %w", err)
	}
	r.res.ScaleBar = bar
	r.log.Info().Ints("offsets_px", bar.Offsets).Floats64("ticks", bar.Ticks).Msg("scale bar")

	annotated, err := bar.Render(norm)
	if err != nil {
		return nil, fmt.Errorf("draw scale bar: %w", err)
	}

	// 6. Labels and output.
	textColor, err := imaging.ParseColor(cfg.Output.TextColor)
	if err != nil {
		return nil, fmt.Errorf("output.text_color: %w", err)
	}
	unitLabel := cfg.ScaleBar.UnitLabel
	if unitLabel == "" {
		unitLabel = cfg.Calibration.Unit
	}
	final := imaging.Annotate(annotated, bar.Labels(unitLabel, cfg.ScaleBar.LabelOffset), imaging.AnnotateOptions{
		Lo:        0,
		Hi:        1,
		Title:     cfg.Output.Title,
		TextColor: textColor,
	})
	if err := imaging.Save(cfg.Output.Path, final, 0); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	r.res.OutputPath = cfg.Output.Path
	r.log.Info().Str("path", cfg.Output.Path).Msg("wrote annotated image")

	return r.res, nil
}

// figure writes one intermediate figure when a figure directory is set.
func (r *runner) figure(name string, img image.Image) error {
	dir := r.cfg.Output.FigureDir
	if dir == "" {
		return nil
	}
	path := filepath.Join(dir, name)
	if err := imaging.Save(path, img, r.cfg.Output.FigureMaxWidth); err != nil {
		return fmt.Errorf("write figure: %w", err)
	}
	r.res.Figures = append(r.res.Figures, path)
	r.log.Debug().Str("path", path).Msg("wrote figure")
	return nil
}

// picker returns the configured point picker. view is the contrast-stretched
// graticule the web picker crops its strip from.
func (r *runner) picker(view image.Image, profile imaging.Profile, chart image.Image) (calibration.PointPicker, error) {
	if r.opts.Picker != nil {
		return r.opts.Picker, nil
	}
	c := r.cfg.Calibration
	switch c.Picker {
	case config.PickerManual:
		r.log.Warn().
			Float64("x1", c.X1).
			Float64("x2", c.X2).
			Msg("using fixed reference positions; they only hold for the image they were read from")
		return calibration.ManualPicker{X1: c.X1, X2: c.X2}, nil
	case config.PickerPrompt:
		return calibration.PromptPicker{In: r.opts.In, Out: r.opts.Out}, nil
	case config.PickerAuto:
		return calibration.AutoPicker{GapCount: c.GapCount, Threshold: c.Threshold, Bright: c.BrightLines}, nil
	case config.PickerWeb:
		strip, err := imaging.CropRows(view, profile.Row, r.cfg.Web.BandHalfHeight)
		if err != nil {
			return nil, err
		}
		return &webpick.Picker{
			Listen:  r.cfg.Web.Listen,
			Strip:   strip,
			Chart:   chart,
			OnReady: r.opts.OnReady,
			Log:     logging.Component(r.opts.Log, "webpick"),
		}, nil
	}
	return nil, fmt.Errorf("unknown picker %q", c.Picker)
}
