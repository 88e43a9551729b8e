package detection

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/graticule-tools/internal/imaging"
)

// ErrTooFewLines is returned when a profile does not contain enough lines to
// span the requested number of gaps.
var ErrTooFewLines = errors.New("too few graticule lines")

// Line is one graticule line crossing a profile: a run of consecutive
// samples on the line side of the threshold.
type Line struct {
	// Start is the leading edge, the first sample inside the line.
	Start int `json:"start"`
	// End is one past the last sample inside the line.
	End int `json:"end"`
	// Center is the midpoint of the run.
	Center float64 `json:"center"`
	// Width is End - Start.
	Width int `json:"width"`
	// Contrast is how far the most extreme sample lies past the threshold.
	Contrast float64 `json:"contrast"`
}

// LinesResult contains the lines found on one profile.
type LinesResult struct {
	Lines     []Line  `json:"lines"`
	Count     int     `json:"count"`
	Threshold float64 `json:"threshold"`
	// Spacing is the mean distance between consecutive leading edges, or 0
	// with fewer than two lines.
	Spacing float64 `json:"spacing"`
}

// Options tunes line detection.
type Options struct {
	// Threshold separates line samples from background. Zero selects the
	// midpoint between the profile's minimum and maximum.
	Threshold float64
	// Bright treats samples above the threshold as line; by default lines are
	// dark (below the threshold), as in bright-field graticule images.
	Bright bool
	// MinWidth discards runs narrower than this many samples. Values below 1
	// are treated as 1.
	MinWidth int
}

// DetectLines finds graticule lines along a profile.
//
// A run that begins at sample 0 is skipped because its leading edge is the
// border of the image, not the edge of a line.
func DetectLines(profile imaging.Profile, opts Options) (*LinesResult, error) {
	if profile.Len() == 0 {
		return nil, fmt.Errorf("empty profile")
	}
	lo, hi := profile.MinMax()
	if lo == hi {
		return nil, fmt.Errorf("flat profile on row %d: every sample is %g", profile.Row, lo)
	}

	threshold := opts.Threshold
	if threshold == 0 {
		threshold = (lo + hi) / 2
	}
	minWidth := opts.MinWidth
	if minWidth < 1 {
		minWidth = 1
	}

	inside := func(v float64) bool {
		if opts.Bright {
			return v > threshold
		}
		return v < threshold
	}

	lines := make([]Line, 0)
	values := profile.Values
	for x := 0; x < len(values); {
		if !inside(values[x]) {
			x++
			continue
		}
		start := x
		contrast := 0.0
		for x < len(values) && inside(values[x]) {
			d := threshold - values[x]
			if opts.Bright {
				d = -d
			}
			if d > contrast {
				contrast = d
			}
			x++
		}
		if start == 0 || x-start < minWidth {
			continue
		}
		lines = append(lines, Line{
			Start:    start,
			End:      x,
			Center:   float64(start+x-1) / 2,
			Width:    x - start,
			Contrast: contrast,
		})
	}

	spacing := 0.0
	if len(lines) > 1 {
		gaps := make([]float64, len(lines)-1)
		for i := 1; i < len(lines); i++ {
			gaps[i-1] = float64(lines[i].Start - lines[i-1].Start)
		}
		spacing = stat.Mean(gaps, nil)
	}

	return &LinesResult{
		Lines:     lines,
		Count:     len(lines),
		Threshold: threshold,
		Spacing:   spacing,
	}, nil
}

// EdgePair returns the leading edges of the first line and of the line
// gapCount gaps after it.
func EdgePair(lines []Line, gapCount int) (int, int, error) {
	if gapCount <= 0 {
		return 0, 0, fmt.Errorf("gap count must be positive, got %d", gapCount)
	}
	if len(lines) <= gapCount {
		return 0, 0, fmt.Errorf("%w: found %d, need %d to span %d gaps", ErrTooFewLines, len(lines), gapCount+1, gapCount)
	}
	return lines[0].Start, lines[gapCount].Start, nil
}
