// Package config holds every tunable of a calibration run.
//
// Values come from three layers, later ones winning: built-in defaults that
// reproduce the classic E. coli sizing exercise, an optional TOML file, and
// command-line flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Environment variables read by Load.
const (
	EnvConfigPath = "GRATICULE_CONFIG"
	EnvLogLevel   = "GRATICULE_LOG_LEVEL"
)

// Picker names accepted in Calibration.Picker.
const (
	PickerManual = "manual"
	PickerPrompt = "prompt"
	PickerAuto   = "auto"
	PickerWeb    = "web"
)

// Config is the full run configuration.
type Config struct {
	LogLevel    string      `toml:"log_level"`
	Inputs      Inputs      `toml:"inputs"`
	Output      Output      `toml:"output"`
	Calibration Calibration `toml:"calibration"`
	ScaleBar    ScaleBar    `toml:"scale_bar"`
	Web         Web         `toml:"web"`
}

// Inputs names the two images of a run.
type Inputs struct {
	Graticule string `toml:"graticule"`
	Target    string `toml:"target"`
}

// Output controls what gets written.
type Output struct {
	// Path is the annotated target image.
	Path string `toml:"path"`
	// FigureDir receives the intermediate figures; empty disables them.
	FigureDir string `toml:"figure_dir"`
	// FigureMaxWidth downscales wider figures; 0 keeps full size.
	FigureMaxWidth int    `toml:"figure_max_width"`
	Title          string `toml:"title"`
	TextColor      string `toml:"text_color"`
	ProfileColor   string `toml:"profile_color"`
	MarkerColor    string `toml:"marker_color"`
}

// Calibration describes the graticule and how reference points are chosen.
type Calibration struct {
	// GapSpacing is the distance between adjacent graticule lines, in Unit.
	GapSpacing float64 `toml:"gap_spacing"`
	Unit       string  `toml:"unit"`
	// GapCount is the number of gaps between the two reference points.
	GapCount int `toml:"gap_count"`
	// ProfileRow is the graticule row sampled for the intensity profile.
	ProfileRow int `toml:"profile_row"`
	// Picker selects how reference points are obtained.
	Picker string `toml:"picker"`
	// X1 and X2 are the manual reference positions.
	X1 float64 `toml:"x1"`
	X2 float64 `toml:"x2"`
	// Threshold and BrightLines tune the auto picker.
	Threshold   float64 `toml:"threshold"`
	BrightLines bool    `toml:"bright_lines"`
	// ReportUnit is the unit the scale factor is logged in.
	ReportUnit string `toml:"report_unit"`
}

// ScaleBar places the overlay on the target image.
type ScaleBar struct {
	X0          int       `toml:"x0"`
	Y           int       `toml:"y"`
	Thickness   int       `toml:"thickness"`
	NotchHeight int       `toml:"notch_height"`
	Ticks       []float64 `toml:"ticks"`
	// Value is the normalized intensity painted into the bar.
	Value float64 `toml:"value"`
	// LabelOffset is how far below the bar top the labels start.
	LabelOffset int `toml:"label_offset"`
	// UnitLabel is drawn left of the bar; defaults to the calibration unit.
	UnitLabel string `toml:"unit_label"`
}

// Web configures the browser point picker.
type Web struct {
	Listen string `toml:"listen"`
	// BandHalfHeight is how many rows above and below the profile row the
	// picker page shows.
	BandHalfHeight int `toml:"band_half_height"`
}

// Default returns the configuration of the E. coli sizing exercise: 10 µm
// graticule gaps, 8 gaps between lines found at x=62 and x=1299 on row 400,
// and a 1/5/10 µm bar at (1150, 900).
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Inputs: Inputs{
			Graticule: "Graticule100x.tif",
			Target:    "Ecoli100x.tif",
		},
		Output: Output{
			Path:         "EcoliCalibrated.png",
			Title:        "E. coli Image with 1-10 µm Scale Bar",
			TextColor:    "#000000",
			ProfileColor: "#000000",
			MarkerColor:  "#D62728",
		},
		Calibration: Calibration{
			GapSpacing: 10,
			Unit:       "µm",
			GapCount:   8,
			ProfileRow: 400,
			Picker:     PickerManual,
			X1:         62,
			X2:         1299,
			ReportUnit: "nm",
		},
		ScaleBar: ScaleBar{
			X0:          1150,
			Y:           900,
			Thickness:   5,
			NotchHeight: 25,
			Ticks:       []float64{1, 5, 10},
			Value:       0,
			LabelOffset: 10,
		},
		Web: Web{
			Listen:         "127.0.0.1:8765",
			BandHalfHeight: 40,
		},
	}
}

// Load builds a configuration from defaults, then the TOML file at path (or
// $GRATICULE_CONFIG when path is empty), then $GRATICULE_LOG_LEVEL.
// A missing file is an error only when it was named explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
		explicit = path != ""
	}
	if explicit {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a calibrated image.
func (c *Config) Validate() error {
	var errs []error
	if c.Inputs.Graticule == "" {
		errs = append(errs, errors.New("inputs.graticule is required"))
	}
	if c.Inputs.Target == "" {
		errs = append(errs, errors.New("inputs.target is required"))
	}
	if c.Output.Path == "" {
		errs = append(errs, errors.New("output.path is required"))
	}
	if c.Calibration.GapSpacing <= 0 {
		errs = append(errs, fmt.Errorf("calibration.gap_spacing must be positive, got %g", c.Calibration.GapSpacing))
	}
	if c.Calibration.GapCount <= 0 {
		errs = append(errs, fmt.Errorf("calibration.gap_count must be positive, got %d", c.Calibration.GapCount))
	}
	if c.Calibration.ProfileRow < 0 {
		errs = append(errs, fmt.Errorf("calibration.profile_row must not be negative, got %d", c.Calibration.ProfileRow))
	}
	switch c.Calibration.Picker {
	case PickerManual, PickerPrompt, PickerAuto, PickerWeb:
	default:
		errs = append(errs, fmt.Errorf("calibration.picker %q is not one of manual, prompt, auto, web", c.Calibration.Picker))
	}
	if c.ScaleBar.Thickness <= 0 {
		errs = append(errs, fmt.Errorf("scale_bar.thickness must be positive, got %d", c.ScaleBar.Thickness))
	}
	if c.ScaleBar.NotchHeight < 0 {
		errs = append(errs, fmt.Errorf("scale_bar.notch_height must not be negative, got %d", c.ScaleBar.NotchHeight))
	}
	if len(c.ScaleBar.Ticks) == 0 {
		errs = append(errs, errors.New("scale_bar.ticks must not be empty"))
	}
	for i, tick := range c.ScaleBar.Ticks {
		if tick <= 0 {
			errs = append(errs, fmt.Errorf("scale_bar.ticks[%d] must be positive, got %g", i, tick))
		}
		if i > 0 && tick <= c.ScaleBar.Ticks[i-1] {
			errs = append(errs, fmt.Errorf("scale_bar.ticks must be ascending, %g follows %g", tick, c.ScaleBar.Ticks[i-1]))
		}
	}
	return errors.Join(errs...)
}
