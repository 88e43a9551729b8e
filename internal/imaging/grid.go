package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Grid is a single-channel intensity image held as float64 samples in
// row-major order. Pixel (x, y) lives at Pix[y*Width+x].
//
// Grids built from 16-bit images keep their native 0-65535 values; 8-bit
// images keep 0-255. A normalized grid holds values in [0,1].
type Grid struct {
	Width  int
	Height int
	Pix    []float64
}

// NewGrid allocates a zero-filled grid.
func NewGrid(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// GridFromImage converts an image to an intensity grid.
//
// Gray16 and Gray images are copied sample for sample. Any other color model is
// reduced to 16-bit luminance through color.Gray16Model. The result is 0-based
// regardless of img.Bounds().Min.
func GridFromImage(img image.Image) *Grid {
	bounds := img.Bounds()
	g := NewGrid(bounds.Dx(), bounds.Dy())

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				g.Pix[y*g.Width+x] = float64(src.Gray16At(x+bounds.Min.X, y+bounds.Min.Y).Y)
			}
		}
	case *image.Gray:
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				g.Pix[y*g.Width+x] = float64(src.GrayAt(x+bounds.Min.X, y+bounds.Min.Y).Y)
			}
		}
	default:
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				c := color.Gray16Model.Convert(img.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.Gray16)
				g.Pix[y*g.Width+x] = float64(c.Y)
			}
		}
	}
	return g
}

// At returns the sample at (x, y). It panics if the point is outside the grid,
// like indexing a slice.
func (g *Grid) At(x, y int) float64 {
	return g.Pix[y*g.Width+x]
}

// Set stores v at (x, y).
func (g *Grid) Set(x, y int, v float64) {
	g.Pix[y*g.Width+x] = v
}

// Bounds returns the grid rectangle, always anchored at (0,0).
func (g *Grid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := &Grid{Width: g.Width, Height: g.Height, Pix: make([]float64, len(g.Pix))}
	copy(out.Pix, g.Pix)
	return out
}

// MinMax returns the smallest and largest samples. An empty grid yields (0, 0).
func (g *Grid) MinMax() (float64, float64) {
	if len(g.Pix) == 0 {
		return 0, 0
	}
	return floats.Min(g.Pix), floats.Max(g.Pix)
}

// Profile is a single row of intensity samples taken from a grid.
type Profile struct {
	Row    int       `json:"row"`
	Values []float64 `json:"values"`
}

// Len returns the number of samples in the profile.
func (p Profile) Len() int {
	return len(p.Values)
}

// Index returns the sample that pixel position x falls in. It reports false
// for positions outside [0, Len()), including NaN and infinities.
func (p Profile) Index(x float64) (int, bool) {
	if math.IsNaN(x) || x < 0 || x >= float64(len(p.Values)) {
		return 0, false
	}
	return int(x), true
}

// MinMax returns the smallest and largest samples of the profile.
func (p Profile) MinMax() (float64, float64) {
	if len(p.Values) == 0 {
		return 0, 0
	}
	return floats.Min(p.Values), floats.Max(p.Values)
}

// Row extracts row y as a profile. The values are copied so later edits to the
// grid do not show through.
func (g *Grid) Row(y int) (Profile, error) {
	if y < 0 || y >= g.Height {
		return Profile{}, fmt.Errorf("row %d outside image height %d", y, g.Height)
	}
	values := make([]float64, g.Width)
	copy(values, g.Pix[y*g.Width:(y+1)*g.Width])
	return Profile{Row: y, Values: values}, nil
}

// GrayImage renders the grid as an 8-bit image, mapping lo to black and hi to
// white and clamping everything outside. When hi <= lo every pixel is black.
//
// Use (min, max) of the grid for a contrast-stretched view of raw data, or
// (0, 1) for a normalized grid.
func (g *Grid) GrayImage(lo, hi float64) *image.Gray {
	out := image.NewGray(g.Bounds())
	span := hi - lo
	if span <= 0 {
		return out
	}
	for i, v := range g.Pix {
		t := (v - lo) / span
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
		out.Pix[(i/g.Width)*out.Stride+i%g.Width] = uint8(math.Round(t * 255))
	}
	return out
}
