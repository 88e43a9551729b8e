package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ParseColor parses a hex color string like "#FF0000" or "#FF000080".
// The optional last byte is alpha; it defaults to fully opaque.
func ParseColor(hex string) (color.NRGBA, error) {
	if len(hex) == 0 {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}

	var alpha uint8 = 255
	switch len(hex) {
	case 4, 7:
	case 9:
		a, err := strconv.ParseUint(hex[7:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in %q: %w", hex, err)
		}
		alpha = uint8(a)
		hex = hex[:7]
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color length: %q", hex)
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// AnnotateOptions controls how a grid is turned into the final figure.
type AnnotateOptions struct {
	// Lo and Hi are the intensities mapped to black and white.
	Lo, Hi float64
	// Title is drawn centered along the top edge when non-empty.
	Title string
	// TextColor is used for the title and every label.
	TextColor color.Color
}

// Annotate renders g as an RGBA figure and draws the labels on top of it.
// Label anchors are the top edge of the text; see Label.
func Annotate(g *Grid, labels []Label, opts AnnotateOptions) *image.NRGBA {
	gray := g.GrayImage(opts.Lo, opts.Hi)
	out := image.NewNRGBA(gray.Bounds())
	draw.Draw(out, out.Bounds(), gray, image.Point{}, draw.Src)

	textColor := opts.TextColor
	if textColor == nil {
		textColor = color.Black
	}

	for _, l := range labels {
		x := l.X
		if l.Align == AlignRight {
			x -= TextWidth(l.Text)
		}
		DrawText(out, x, l.Y, l.Text, textColor)
	}

	if opts.Title != "" {
		x := (out.Bounds().Dx() - TextWidth(opts.Title)) / 2
		DrawText(out, x, 4, opts.Title, textColor)
	}
	return out
}

// extraGlyphs covers runes the 7x13 face lacks. Each row is one pixel row of
// a 6x13 cell whose baseline sits under row 10.
var extraGlyphs = map[rune][]string{
	'µ': {
		"000000",
		"000000",
		"000000",
		"000000",
		"010010",
		"010010",
		"010010",
		"010010",
		"010010",
		"010110",
		"011010",
		"010000",
		"010000",
	},
}

// TextWidth returns the pixel width of s in the label face.
func TextWidth(s string) int {
	face := basicfont.Face7x13
	return len([]rune(s)) * face.Advance
}

// DrawText draws s with its top edge at y, starting at x. Pixels that fall
// outside dst are dropped.
func DrawText(dst draw.Image, x, y int, s string, c color.Color) {
	face := basicfont.Face7x13
	ascent := face.Metrics().Ascent.Ceil()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
	}

	bounds := dst.Bounds()
	cx := x
	for _, r := range s {
		if _, ok := face.GlyphAdvance(r); ok {
			d.Dot = fixed.Point26_6{X: fixed.I(cx), Y: fixed.I(y + ascent)}
			d.DrawString(string(r))
		} else if glyph, ok := extraGlyphs[r]; ok {
			for row, line := range glyph {
				for col, pixel := range line {
					px, py := cx+col, y+row
					if pixel == '1' && image.Pt(px, py).In(bounds) {
						dst.Set(px, py, c)
					}
				}
			}
		}
		cx += face.Advance
	}
}
