// Package imaging provides the image operations of a graticule calibration:
// loading microscope frames, extracting intensity profiles, normalization,
// scale bar geometry and rendering, labelling, and writing figures.
//
// Raw pixel data is handled as a Grid of float64 intensities so 16-bit TIFF
// frames keep their full precision until the final 8-bit rendering.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - Rectangles are half-open: Min is inclusive, Max is exclusive
//
// A Grid is always anchored at (0,0), whatever the bounds of the image it was
// built from.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Grids are plain values;
// Normalize and ScaleBar.Render return new grids and never modify their input.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Rows or regions outside image bounds (*BoundsError for scale bars)
//   - Images with no intensity range (ErrDegenerateImage)
//   - Tick lengths that collapse onto the same pixel (ErrDegenerateScaleBar)
//   - File I/O errors during image loading and saving
//
// # Performance Considerations
//
// For repeated operations on the same image, use ImageCache to avoid redundant
// disk reads. A 1392x1040 frame costs about 11 MB as a Grid, so long-running
// processes should Evict() or Clear() what they no longer need.
package imaging
