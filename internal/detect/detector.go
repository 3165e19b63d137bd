// Package detect wraps the external face detection/encoding primitive.
// The recognition algorithm itself is opaque to this system: a
// detector takes an image and returns bounding boxes with fixed-length
// feature vectors, nothing more.
package detect

import (
	"context"
	"image"
)

// Detection is one detected face in a frame: its location and encoding.
// Transient; produced per frame and consumed immediately by matching.
type Detection struct {
	Box      image.Rectangle
	Encoding []float32
	Score    float64
}

// Detector produces zero or more detections for a frame. A frame with
// no faces is a normal empty result, not an error.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}
