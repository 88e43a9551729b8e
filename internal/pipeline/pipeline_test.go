package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/graticule-tools/internal/calibration"
	"github.com/ironsheep/graticule-tools/internal/config"
	"github.com/ironsheep/graticule-tools/internal/imaging"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// testConfig writes a 200x20 graticule with 3 px dark lines every 20 px from
// x=10 and a 100x60 16-bit gradient target, and returns a configuration that
// reads them. Lines 10 and 170 are 8 gaps of 10 µm apart, so one pixel is
// 0.5 µm and the 1/5/10 µm ticks land 2, 10 and 20 px from the origin.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	grat := image.NewGray(image.Rect(0, 0, 200, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 200; x++ {
			v := uint8(200)
			if x >= 10 && (x-10)%20 < 3 {
				v = 20
			}
			grat.SetGray(x, y, color.Gray{Y: v})
		}
	}
	target := image.NewGray16(image.Rect(0, 0, 100, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 100; x++ {
			target.SetGray16(x, y, color.Gray16{Y: uint16((x + y) * 100)})
		}
	}

	cfg := config.Default()
	cfg.Inputs.Graticule = filepath.Join(dir, "graticule.png")
	cfg.Inputs.Target = filepath.Join(dir, "target.png")
	cfg.Output.Path = filepath.Join(dir, "out", "calibrated.png")
	writePNG(t, cfg.Inputs.Graticule, grat)
	writePNG(t, cfg.Inputs.Target, target)

	cfg.Calibration.ProfileRow = 10
	cfg.Calibration.X1 = 10
	cfg.Calibration.X2 = 170
	cfg.ScaleBar.X0 = 20
	cfg.ScaleBar.Y = 40
	cfg.ScaleBar.Thickness = 3
	cfg.ScaleBar.NotchHeight = 10
	return cfg
}

func grayAt(t *testing.T, path string, x, y int) uint8 {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
}

func TestRun_Manual(t *testing.T) {
	cfg := testConfig(t)

	res, err := Run(context.Background(), cfg, Options{Log: zerolog.Nop()})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 10.0, res.Points[0].X)
	assert.Equal(t, 170.0, res.Points[1].X)
	assert.InDelta(t, 0.5, res.Calibration.UnitsPerPixel, 1e-12)
	assert.Equal(t, []int{2, 10, 20}, res.ScaleBar.Offsets)
	assert.Equal(t, cfg.Output.Path, res.OutputPath)
	assert.Empty(t, res.Figures)

	// bar rows 40-42 span columns 20-40; notches rise 10 rows above
	assert.Equal(t, uint8(0), grayAt(t, cfg.Output.Path, 30, 41))
	assert.Equal(t, uint8(0), grayAt(t, cfg.Output.Path, 40, 40))
	assert.Equal(t, uint8(0), grayAt(t, cfg.Output.Path, 30, 31))
	assert.NotEqual(t, uint8(0), grayAt(t, cfg.Output.Path, 31, 31))
	assert.NotEqual(t, uint8(0), grayAt(t, cfg.Output.Path, 41, 41))
}

func TestRun_Figures(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.FigureDir = filepath.Join(t.TempDir(), "figures")

	res, err := Run(context.Background(), cfg, Options{Log: zerolog.Nop()})
	require.NoError(t, err)

	require.Len(t, res.Figures, 3)
	for _, name := range []string{FigureGraticule, FigureProfile, FigureNormalized} {
		_, err := os.Stat(filepath.Join(cfg.Output.FigureDir, name))
		assert.NoError(t, err, name)
	}
}

func TestRun_AutoPicker(t *testing.T) {
	cfg := testConfig(t)
	cfg.Calibration.Picker = config.PickerAuto

	res, err := Run(context.Background(), cfg, Options{Log: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, [2]float64{10, 170}, [2]float64{res.Points[0].X, res.Points[1].X})
	assert.Equal(t, []int{2, 10, 20}, res.ScaleBar.Offsets)
}

func TestRun_PromptPicker(t *testing.T) {
	cfg := testConfig(t)
	cfg.Calibration.Picker = config.PickerPrompt

	var out bytes.Buffer
	res, err := Run(context.Background(), cfg, Options{
		In:  strings.NewReader("10\n90\n"),
		Out: &out,
		Log: zerolog.Nop(),
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Calibration.UnitsPerPixel, 1e-12)
	assert.Contains(t, out.String(), "Point 2 of 2")
}

func TestRun_InjectedPicker(t *testing.T) {
	cfg := testConfig(t)
	cfg.Calibration.Picker = config.PickerWeb

	res, err := Run(context.Background(), cfg, Options{
		Picker: calibration.ManualPicker{X1: 170, X2: 10},
		Log:    zerolog.Nop(),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Calibration.UnitsPerPixel, 1e-12)
}

func TestRun_WebPickerStripIsContrastStretched(t *testing.T) {
	cfg := testConfig(t)
	cfg.Calibration.Picker = config.PickerWeb
	cfg.Web.Listen = "127.0.0.1:0"
	cfg.Web.BandHalfHeight = 5

	// 12-bit style frame: the ruling only spans 0..3600 of 65535
	grat := image.NewGray16(image.Rect(0, 0, 200, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 200; x++ {
			v := uint16(3600)
			if x >= 10 && (x-10)%20 < 3 {
				v = 0
			}
			grat.SetGray16(x, y, color.Gray16{Y: v})
		}
	}
	writePNG(t, cfg.Inputs.Graticule, grat)

	var lo, hi uint8 = 255, 0
	onReady := func(url string) {
		resp, err := http.Get(url + "strip.png")
		if err != nil {
			t.Errorf("fetch strip: %v", err)
			return
		}
		strip, err := png.Decode(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Errorf("decode strip: %v", err)
			return
		}
		b := strip.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				v := color.GrayModel.Convert(strip.At(x, y)).(color.Gray).Y
				lo, hi = min(lo, v), max(hi, v)
			}
		}

		for _, body := range []string{`{"x": 10}`, `{"x": 170}`} {
			resp, err := http.Post(url+"api/points", "application/json", strings.NewReader(body))
			if err != nil {
				t.Errorf("post %s: %v", body, err)
				return
			}
			resp.Body.Close()
		}
	}

	res, err := Run(context.Background(), cfg, Options{OnReady: onReady, Log: zerolog.Nop()})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Calibration.UnitsPerPixel, 1e-12)

	assert.Equal(t, uint8(0), lo)
	assert.Equal(t, uint8(255), hi)
}

func TestRun_LogsCarryRunID(t *testing.T) {
	cfg := testConfig(t)

	var buf bytes.Buffer
	res, err := Run(context.Background(), cfg, Options{Log: zerolog.New(&buf)})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"run":"`+res.RunID+`"`)
	assert.Contains(t, buf.String(), `"component":"pipeline"`)
	assert.Contains(t, buf.String(), "fixed reference positions")
}

func TestRun_ScaleBarOutOfBounds(t *testing.T) {
	cfg := testConfig(t)
	cfg.ScaleBar.X0 = 90

	_, err := Run(context.Background(), cfg, Options{Log: zerolog.Nop()})
	require.Error(t, err)

	var be *imaging.BoundsError
	require.True(t, errors.As(err, &be), "got %v", err)
	assert.Equal(t, image.Rect(0, 0, 100, 60), be.Bounds)
	assert.True(t, strings.HasPrefix(err.Error(), "draw scale bar"))

	_, statErr := os.Stat(cfg.Output.Path)
	assert.True(t, os.IsNotExist(statErr), "no output after a failed run")
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		opts   Options
		prefix string
		is     error
	}{
		{
			name:   "invalid config",
			mutate: func(c *config.Config) { c.Calibration.GapCount = 0 },
			prefix: "invalid configuration",
		},
		{
			name:   "missing graticule",
			mutate: func(c *config.Config) { c.Inputs.Graticule += ".missing.png" },
			prefix: "load graticule",
		},
		{
			name:   "profile row outside image",
			mutate: func(c *config.Config) { c.Calibration.ProfileRow = 20 },
			prefix: "extract profile",
		},
		{
			name:   "manual point outside profile",
			mutate: func(c *config.Config) { c.Calibration.X2 = 1299 },
			prefix: "pick reference points",
			is:     calibration.ErrInvalidCalibration,
		},
		{
			name:   "coincident points",
			mutate: func(c *config.Config) { c.Calibration.X2 = 10 },
			prefix: "calibrate",
			is:     calibration.ErrInvalidCalibration,
		},
		{
			name:   "prompt input closed",
			mutate: func(c *config.Config) { c.Calibration.Picker = config.PickerPrompt },
			opts:   Options{In: strings.NewReader("10\n"), Out: io.Discard},
			prefix: "pick reference points",
			is:     calibration.ErrCalibrationAborted,
		},
		{
			name:   "missing target",
			mutate: func(c *config.Config) { c.Inputs.Target += ".missing.png" },
			prefix: "load target",
		},
		{
			name:   "ticks collapse",
			mutate: func(c *config.Config) { c.ScaleBar.Ticks = []float64{0.1, 5} },
			prefix: "build scale bar",
			is:     imaging.ErrDegenerateScaleBar,
		},
		{
			name:   "unsupported output format",
			mutate: func(c *config.Config) { c.Output.Path += ".gif" },
			prefix: "write output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			tt.opts.Log = zerolog.Nop()

			_, err := Run(context.Background(), cfg, tt.opts)
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), tt.prefix), "got %q", err.Error())
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestRun_DegenerateTarget(t *testing.T) {
	cfg := testConfig(t)
	flat := image.NewGray(image.Rect(0, 0, 100, 60))
	writePNG(t, cfg.Inputs.Target, flat)

	_, err := Run(context.Background(), cfg, Options{Log: zerolog.Nop()})
	require.Error(t, err)
	assert.ErrorIs(t, err, imaging.ErrDegenerateImage)
	assert.True(t, strings.HasPrefix(err.Error(), "normalize target"))
}

func TestRun_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, cfg, Options{Log: zerolog.Nop()})
	assert.ErrorIs(t, err, calibration.ErrCalibrationAborted)
}

func TestRun_SharedCache(t *testing.T) {
	cfg := testConfig(t)
	cache := imaging.NewImageCache()

	_, err := Run(context.Background(), cfg, Options{Log: zerolog.Nop(), Cache: cache})
	require.NoError(t, err)

	// the cached decode is reused even after the file is gone
	require.NoError(t, os.Remove(cfg.Inputs.Graticule))
	_, err = Run(context.Background(), cfg, Options{Log: zerolog.Nop(), Cache: cache})
	assert.NoError(t, err)
}
