// Package calibration converts a measured distance between graticule lines
// into a physical-length-per-pixel scale factor.
//
// A graticule is a slide ruled with lines at a known spacing. Imaging it under
// the same optics as a specimen and measuring how many pixels span a number of
// line gaps gives the scale of every other image taken with that setup.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidCalibration is returned when the inputs cannot produce a
	// positive, finite scale factor (coincident reference points, non-positive
	// spacing or gap count, or positions outside the profile).
	ErrInvalidCalibration = errors.New("invalid calibration")

	// ErrCalibrationAborted is returned when point capture ends before two
	// points were supplied.
	ErrCalibrationAborted = errors.New("calibration aborted")
)

// nanometres per unit
var unitScale = map[string]float64{
	"nm": 1,
	"um": 1e3,
	"µm": 1e3,
	"mm": 1e6,
}

// UnitScale returns how many nanometres one unit represents.
func UnitScale(unit string) (float64, error) {
	s, ok := unitScale[strings.TrimSpace(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown length unit %q", unit)
	}
	return s, nil
}

// Point is a picked position. Only X feeds the calibration. Y is the profile
// intensity at X unless the picker was handed an explicit value.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Options describes the graticule being measured.
type Options struct {
	// GapCount is how many line gaps lie between the two reference points.
	GapCount int
	// GapSpacing is the physical distance between adjacent lines, in Unit.
	GapSpacing float64
	// Unit names the length unit of GapSpacing (nm, um, µm or mm).
	Unit string
}

// Calibration is the outcome of measuring a graticule.
type Calibration struct {
	GapCount         int     `json:"gap_count"`
	GapSpacing       float64 `json:"gap_spacing"`
	Unit             string  `json:"unit"`
	PixelDistance    float64 `json:"pixel_distance"`
	PhysicalDistance float64 `json:"physical_distance"`
	UnitsPerPixel    float64 `json:"units_per_pixel"`
}

// ScaleFactor returns gapCount*gapSpacing / |x2-x1|, the physical length of
// one pixel.
func ScaleFactor(gapCount int, gapSpacing, x1, x2 float64) (float64, error) {
	if gapCount <= 0 {
		return 0, fmt.Errorf("%w: gap count must be positive, got %d", ErrInvalidCalibration, gapCount)
	}
	if gapSpacing <= 0 || math.IsInf(gapSpacing, 0) || math.IsNaN(gapSpacing) {
		return 0, fmt.Errorf("%w: gap spacing must be positive and finite, got %g", ErrInvalidCalibration, gapSpacing)
	}
	d := math.Abs(x2 - x1)
	if d == 0 || math.IsInf(d, 0) || math.IsNaN(d) {
		return 0, fmt.Errorf("%w: pixel distance between x=%g and x=%g is %g", ErrInvalidCalibration, x1, x2, d)
	}

	f := float64(gapCount) * gapSpacing / d
	if f <= 0 || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: scale factor %g is not positive and finite", ErrInvalidCalibration, f)
	}
	return f, nil
}

// Calibrate derives a Calibration from two reference points.
func Calibrate(pair [2]Point, opts Options) (*Calibration, error) {
	if _, err := UnitScale(opts.Unit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCalibration, err)
	}
	f, err := ScaleFactor(opts.GapCount, opts.GapSpacing, pair[0].X, pair[1].X)
	if err != nil {
		return nil, err
	}
	return &Calibration{
		GapCount:         opts.GapCount,
		GapSpacing:       opts.GapSpacing,
		Unit:             opts.Unit,
		PixelDistance:    math.Abs(pair[1].X - pair[0].X),
		PhysicalDistance: float64(opts.GapCount) * opts.GapSpacing,
		UnitsPerPixel:    f,
	}, nil
}

// PerPixel returns the length of one pixel expressed in unit.
func (c *Calibration) PerPixel(unit string) (float64, error) {
	from, err := UnitScale(c.Unit)
	if err != nil {
		return 0, err
	}
	to, err := UnitScale(unit)
	if err != nil {
		return 0, err
	}
	return c.UnitsPerPixel * from / to, nil
}

// PixelsPerUnit returns how many pixels span one calibration unit.
func (c *Calibration) PixelsPerUnit() float64 {
	return 1 / c.UnitsPerPixel
}

// PixelsFor returns how many pixels span length calibration units.
func (c *Calibration) PixelsFor(length float64) float64 {
	return length / c.UnitsPerPixel
}
