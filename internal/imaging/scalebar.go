package imaging

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
)

// ErrDegenerateScaleBar is returned when the tick offsets collapse onto each
// other, which happens when the calibration gives too few pixels per unit for
// the requested tick lengths.
var ErrDegenerateScaleBar = errors.New("degenerate scale bar")

// BoundsError reports a drawing region that does not fit inside the image.
// Scale bars are never clipped; a bar that does not fit is an error.
type BoundsError struct {
	Region image.Rectangle
	Bounds image.Rectangle
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("region %v outside image bounds %v", e.Region, e.Bounds)
}

// ScaleBarOptions describes where and how a scale bar is drawn.
type ScaleBarOptions struct {
	// X0 is the left-most column of the bar; the zero notch sits here.
	X0 int
	// Y is the top row of the horizontal bar and the bottom row of every notch.
	Y int
	// Thickness is the bar height in rows.
	Thickness int
	// NotchHeight is how far notches extend above Y.
	NotchHeight int
	// Ticks are the physical lengths that get a notch, in ascending order.
	Ticks []float64
	// Value is the intensity written into the bar (0 is black on a normalized grid).
	Value float64
}

// ScaleBar is the resolved pixel geometry of a ruler-like overlay.
type ScaleBar struct {
	X0          int       `json:"x0"`
	Y           int       `json:"y"`
	Thickness   int       `json:"thickness"`
	NotchHeight int       `json:"notch_height"`
	Ticks       []float64 `json:"ticks"`
	Offsets     []int     `json:"offsets"`
	Value       float64   `json:"value"`
}

// NewScaleBar resolves tick lengths to pixel offsets.
//
// Each offset is trunc(tick * pixelsPerUnit). Offsets must be strictly
// increasing and the first must be positive, otherwise two notches would
// land on the same column.
func NewScaleBar(pixelsPerUnit float64, opts ScaleBarOptions) (*ScaleBar, error) {
	if pixelsPerUnit <= 0 || math.IsInf(pixelsPerUnit, 0) || math.IsNaN(pixelsPerUnit) {
		return nil, fmt.Errorf("%w: pixels per unit must be positive and finite, got %g", ErrDegenerateScaleBar, pixelsPerUnit)
	}
	if opts.Thickness <= 0 {
		return nil, fmt.Errorf("%w: thickness must be positive, got %d", ErrDegenerateScaleBar, opts.Thickness)
	}
	if opts.NotchHeight < 0 {
		return nil, fmt.Errorf("%w: notch height must not be negative, got %d", ErrDegenerateScaleBar, opts.NotchHeight)
	}
	if len(opts.Ticks) == 0 {
		return nil, fmt.Errorf("%w: no tick lengths", ErrDegenerateScaleBar)
	}

	offsets := make([]int, len(opts.Ticks))
	prev := 0
	for i, tick := range opts.Ticks {
		off := int(tick * pixelsPerUnit)
		if off <= prev {
			return nil, fmt.Errorf("%w: tick %g maps to offset %d, not beyond %d", ErrDegenerateScaleBar, tick, off, prev)
		}
		offsets[i] = off
		prev = off
	}

	ticks := make([]float64, len(opts.Ticks))
	copy(ticks, opts.Ticks)

	return &ScaleBar{
		X0:          opts.X0,
		Y:           opts.Y,
		Thickness:   opts.Thickness,
		NotchHeight: opts.NotchHeight,
		Ticks:       ticks,
		Offsets:     offsets,
		Value:       opts.Value,
	}, nil
}

// Length returns the pixel offset of the longest tick.
func (sb *ScaleBar) Length() int {
	return sb.Offsets[len(sb.Offsets)-1]
}

// Bar returns the horizontal bar rectangle: rows [Y, Y+Thickness), columns
// [X0, X0+1+Length()). The extra column makes the bar end under the last notch.
func (sb *ScaleBar) Bar() image.Rectangle {
	return image.Rect(sb.X0, sb.Y, sb.X0+1+sb.Length(), sb.Y+sb.Thickness)
}

// Notches returns one single-column rectangle at X0 and one at each tick
// offset, each spanning rows [Y-NotchHeight, Y+1).
func (sb *ScaleBar) Notches() []image.Rectangle {
	notches := make([]image.Rectangle, 0, len(sb.Offsets)+1)
	notches = append(notches, sb.notchAt(0))
	for _, off := range sb.Offsets {
		notches = append(notches, sb.notchAt(off))
	}
	return notches
}

func (sb *ScaleBar) notchAt(off int) image.Rectangle {
	x := sb.X0 + off
	return image.Rect(x, sb.Y-sb.NotchHeight, x+1, sb.Y+1)
}

// Regions returns every rectangle the bar paints, bar first.
func (sb *ScaleBar) Regions() []image.Rectangle {
	return append([]image.Rectangle{sb.Bar()}, sb.Notches()...)
}

// Render paints the scale bar onto a copy of g and returns the copy.
// g itself is left untouched. If any region reaches outside g, a *BoundsError
// is returned and nothing is drawn.
func (sb *ScaleBar) Render(g *Grid) (*Grid, error) {
	bounds := g.Bounds()
	regions := sb.Regions()
	for _, r := range regions {
		if !r.In(bounds) {
			return nil, &BoundsError{Region: r, Bounds: bounds}
		}
	}

	out := g.Clone()
	for _, r := range regions {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				out.Set(x, y, sb.Value)
			}
		}
	}
	return out, nil
}

// Alignment controls which side of the anchor a label extends to.
type Alignment int

const (
	AlignLeft  Alignment = iota // text starts at the anchor
	AlignRight                  // text ends at the anchor
)

// Label is a piece of text anchored at its top edge.
type Label struct {
	Text  string    `json:"text"`
	X     int       `json:"x"`
	Y     int       `json:"y"`
	Align Alignment `json:"align"`
}

// Labels places the unit symbol right-aligned at the origin and each tick
// value left-aligned at its notch, all top-aligned dy rows below the bar top.
func (sb *ScaleBar) Labels(unit string, dy int) []Label {
	y := sb.Y + dy
	labels := make([]Label, 0, len(sb.Ticks)+1)
	labels = append(labels, Label{Text: unit, X: sb.X0, Y: y, Align: AlignRight})
	for i, tick := range sb.Ticks {
		labels = append(labels, Label{
			Text:  strconv.FormatFloat(tick, 'f', -1, 64),
			X:     sb.X0 + sb.Offsets[i],
			Y:     y,
			Align: AlignLeft,
		})
	}
	return labels
}
