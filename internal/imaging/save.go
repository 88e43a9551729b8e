package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
)

// EncoderFor picks an encoder from the file extension of path.
func EncoderFor(path string) (imgio.Encoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return imgio.PNGEncoder(), nil
	case ".jpg", ".jpeg":
		return imgio.JPEGEncoder(95), nil
	case ".bmp":
		return imgio.BMPEncoder(), nil
	}
	return nil, fmt.Errorf("unsupported output format %q (want .png, .jpg or .bmp)", filepath.Ext(path))
}

// Save writes img to path, creating parent directories as needed. When
// maxWidth is positive and the image is wider, it is downscaled with
// Lanczos resampling first, preserving aspect ratio.
func Save(path string, img image.Image, maxWidth int) error {
	enc, err := EncoderFor(path)
	if err != nil {
		return err
	}

	if b := img.Bounds(); maxWidth > 0 && b.Dx() > maxWidth {
		img = imaging.Fit(img, maxWidth, b.Dy(), imaging.Lanczos)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := imgio.Save(path, img, enc); err != nil {
		return fmt.Errorf("failed to write image %s: %w", path, err)
	}
	return nil
}

// EncodePNGBase64 encodes img as PNG and returns it base64 encoded.
func EncodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
