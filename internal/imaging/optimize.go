// Package imaging shrinks image payloads toward a byte budget before upload
// or mailing. Optimization is pure and best-effort: any decode or encode
// failure falls back to the original, unmodified bytes.
package imaging

import (
	"bytes"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Encoding quality steps tried in order before resizing kicks in.
var qualitySteps = []int{85, 75, 65, 55, 45}

// Resize bounds: each pass scales the width by resizeFactor, stopping at
// minWidth so a pathological input cannot shrink to nothing.
const (
	resizeFactor = 0.8
	minWidth     = 320
)

// optimizableExts lists extensions worth recompressing. PDFs and unknown
// formats pass through untouched.
var optimizableExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// CanOptimize reports whether the filename names a recompressible image.
func CanOptimize(name string) bool {
	return optimizableExts[strings.ToLower(filepath.Ext(name))]
}

// Optimize re-encodes the image as JPEG at descending quality, then scales
// it down, until the payload fits maxBytes. Returns the smallest version
// produced and whether the result is a JPEG re-encode; when decoding fails
// or the input already fits, the input is returned unchanged.
func Optimize(data []byte, maxBytes int, logger *slog.Logger) ([]byte, bool) {
	if logger == nil {
		logger = slog.Default()
	}

	if maxBytes <= 0 || len(data) <= maxBytes {
		return data, false
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Debug("image decode failed, keeping original bytes",
			slog.String("error", err.Error()),
		)

		return data, false
	}

	best := data
	reencoded := false

	// Quality-only passes first — cheaper and often sufficient.
	for _, q := range qualitySteps {
		encoded, encErr := encodeJPEG(img, q)
		if encErr != nil {
			return best, reencoded
		}

		if len(encoded) < len(best) {
			best = encoded
			reencoded = true
		}

		if len(encoded) <= maxBytes {
			return encoded, true
		}
	}

	// Still over budget: scale down and re-encode at the lowest quality.
	quality := qualitySteps[len(qualitySteps)-1]

	for width := img.Bounds().Dx(); width > minWidth; {
		width = int(float64(width) * resizeFactor)
		if width < minWidth {
			width = minWidth
		}

		img = imaging.Resize(img, width, 0, imaging.Lanczos)

		encoded, encErr := encodeJPEG(img, quality)
		if encErr != nil {
			return best, reencoded
		}

		if len(encoded) < len(best) {
			best = encoded
			reencoded = true
		}

		if len(encoded) <= maxBytes || width == minWidth {
			break
		}
	}

	logger.Debug("optimized image",
		slog.Int("original_bytes", len(data)),
		slog.Int("optimized_bytes", len(best)),
	)

	return best, reencoded
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
