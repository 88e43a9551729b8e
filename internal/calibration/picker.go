package calibration

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ironsheep/graticule-tools/internal/detection"
	"github.com/ironsheep/graticule-tools/internal/imaging"
)

// PointPicker obtains two reference positions on an intensity profile.
//
// PickPoints blocks until both points are known and returns them in the order
// they were chosen. There is no built-in timeout; only ctx can stop the wait.
// A picker that is cancelled or abandoned before the second point returns an
// error wrapping ErrCalibrationAborted.
type PointPicker interface {
	PickPoints(ctx context.Context, profile imaging.Profile) ([2]Point, error)
}

// ManualPicker returns fixed reference positions read off a profile by eye.
//
// The positions are specific to one image. They are checked against the
// profile width, but nothing verifies they still sit on graticule lines.
type ManualPicker struct {
	X1, X2 float64
}

// PickPoints returns (X1, X2) with Y set to the profile intensity there.
func (m ManualPicker) PickPoints(ctx context.Context, profile imaging.Profile) ([2]Point, error) {
	if err := ctx.Err(); err != nil {
		return [2]Point{}, fmt.Errorf("%w: %v", ErrCalibrationAborted, err)
	}
	var pts [2]Point
	for i, x := range []float64{m.X1, m.X2} {
		xi, ok := profile.Index(x)
		if !ok {
			return [2]Point{}, fmt.Errorf("%w: reference position %g outside profile of width %d", ErrInvalidCalibration, x, profile.Len())
		}
		pts[i] = Point{X: x, Y: profile.Values[xi]}
	}
	return pts, nil
}

// PromptPicker reads two positions from a line-oriented stream, usually a
// terminal. Each line holds "x" or "x y"; unparseable lines are reported to
// Out and asked for again. Reaching the end of In before two points have been
// read aborts the calibration.
type PromptPicker struct {
	In  io.Reader
	Out io.Writer
}

type scanResult struct {
	line string
	ok   bool
	err  error
}

// PickPoints prompts for and reads two points.
func (p PromptPicker) PickPoints(ctx context.Context, profile imaging.Profile) ([2]Point, error) {
	lines := make(chan scanResult)
	done := make(chan struct{})
	defer close(done)

	go func() {
		scanner := bufio.NewScanner(p.In)
		for {
			ok := scanner.Scan()
			res := scanResult{line: scanner.Text(), ok: ok}
			if !ok {
				res.err = scanner.Err()
			}
			select {
			case lines <- res:
			case <-done:
				return
			}
			if !ok {
				return
			}
		}
	}()

	var pts [2]Point
	for i := 0; i < 2; {
		fmt.Fprintf(p.Out, "Point %d of 2 - enter pixel x (and optionally y) on row %d [0-%d]: ", i+1, profile.Row, profile.Len()-1)

		var res scanResult
		select {
		case <-ctx.Done():
			return [2]Point{}, fmt.Errorf("%w: %v", ErrCalibrationAborted, ctx.Err())
		case res = <-lines:
		}
		if !res.ok {
			if res.err != nil {
				return [2]Point{}, fmt.Errorf("%w: reading input: %v", ErrCalibrationAborted, res.err)
			}
			return [2]Point{}, fmt.Errorf("%w: input closed after %d of 2 points", ErrCalibrationAborted, i)
		}

		pt, err := parsePoint(res.line, profile)
		if err != nil {
			fmt.Fprintf(p.Out, "  %v\n", err)
			continue
		}
		pts[i] = pt
		i++
	}
	return pts, nil
}

func parsePoint(line string, profile imaging.Profile) (Point, error) {
	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(fields) == 0 || len(fields) > 2 {
		return Point{}, fmt.Errorf("expected \"x\" or \"x y\", got %q", strings.TrimSpace(line))
	}
	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid x %q", fields[0])
	}
	xi, ok := profile.Index(x)
	if !ok {
		return Point{}, fmt.Errorf("x=%g outside profile [0-%d]", x, profile.Len()-1)
	}

	y := profile.Values[xi]
	if len(fields) == 2 {
		if y, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return Point{}, fmt.Errorf("invalid y %q", fields[1])
		}
	}
	return Point{X: x, Y: y}, nil
}

// AutoPicker locates graticule lines in the profile and returns the leading
// edge of the first line and of the line GapCount gaps further on.
type AutoPicker struct {
	GapCount int
	// Threshold separates line samples from background. Zero means the
	// midpoint of the profile's range.
	Threshold float64
	// Bright selects bright lines on a dark field instead of dark lines.
	Bright bool
}

// PickPoints runs line detection on the profile.
func (a AutoPicker) PickPoints(ctx context.Context, profile imaging.Profile) ([2]Point, error) {
	if err := ctx.Err(); err != nil {
		return [2]Point{}, fmt.Errorf("%w: %v", ErrCalibrationAborted, err)
	}
	lines, err := detection.DetectLines(profile, detection.Options{Threshold: a.Threshold, Bright: a.Bright})
	if err != nil {
		return [2]Point{}, fmt.Errorf("%w: %v", ErrInvalidCalibration, err)
	}
	x1, x2, err := detection.EdgePair(lines.Lines, a.GapCount)
	if err != nil {
		return [2]Point{}, fmt.Errorf("%w: %v", ErrInvalidCalibration, err)
	}
	return [2]Point{
		{X: float64(x1), Y: profile.Values[x1]},
		{X: float64(x2), Y: profile.Values[x2]},
	}, nil
}
