package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// CropRows extracts the horizontal band of img centred on row y, extending
// halfHeight rows above and below it. The band is clamped to the image, but
// row y itself must lie inside it.
//
// The band keeps the full image width, so column x in the result is column x
// in the source. The web picker relies on that to map clicks back to pixels.
func CropRows(img image.Image, y, halfHeight int) (*image.NRGBA, error) {
	bounds := img.Bounds()
	if y < bounds.Min.Y || y >= bounds.Max.Y {
		return nil, fmt.Errorf("row %d outside image bounds (%d-%d)", y, bounds.Min.Y, bounds.Max.Y)
	}
	if halfHeight < 0 {
		return nil, fmt.Errorf("invalid band half-height %d", halfHeight)
	}

	y1 := y - halfHeight
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	y2 := y + halfHeight + 1
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}

	return imaging.Crop(img, image.Rect(bounds.Min.X, y1, bounds.Max.X, y2)), nil
}
