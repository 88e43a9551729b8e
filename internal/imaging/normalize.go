package imaging

import (
	"errors"
	"fmt"
)

// ErrDegenerateImage is returned when an image has no intensity range to
// rescale (every sample has the same value).
var ErrDegenerateImage = errors.New("degenerate image: constant intensity")

// Normalize linearly rescales a grid so its darkest sample becomes 0 and its
// brightest becomes 1:
//
//	out = (in - min) / (max - min)
//
// The input grid is not modified. Division is done per sample rather than by
// multiplying with a reciprocal so the maximum maps to exactly 1.0.
func Normalize(g *Grid) (*Grid, error) {
	if len(g.Pix) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDegenerateImage)
	}
	lo, hi := g.MinMax()
	if hi == lo {
		return nil, fmt.Errorf("%w: all samples equal %g", ErrDegenerateImage, lo)
	}

	span := hi - lo
	out := &Grid{Width: g.Width, Height: g.Height, Pix: make([]float64, len(g.Pix))}
	for i, v := range g.Pix {
		out.Pix[i] = (v - lo) / span
	}
	return out, nil
}
