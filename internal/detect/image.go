package detect

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// encodeJPEG encodes an image as JPEG, downscaling so the longest side
// fits within maxSize. Smaller uploads keep detector latency bounded.
func encodeJPEG(img image.Image, maxSize int) ([]byte, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxSize > 0 && (width > maxSize || height > maxSize) {
		var newWidth, newHeight int
		if width > height {
			newWidth = maxSize
			newHeight = int(float64(height) * float64(maxSize) / float64(width))
		} else {
			newHeight = maxSize
			newWidth = int(float64(width) * float64(maxSize) / float64(height))
		}

		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		img = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// scaleBox maps a bounding box reported on the downscaled image back
// to the original frame's coordinates.
func scaleBox(box image.Rectangle, scale float64) image.Rectangle {
	if scale == 1 {
		return box
	}
	return image.Rect(
		int(float64(box.Min.X)*scale),
		int(float64(box.Min.Y)*scale),
		int(float64(box.Max.X)*scale),
		int(float64(box.Max.Y)*scale),
	)
}
