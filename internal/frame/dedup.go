// Package frame provides cheap perceptual hashing of captured frames
// so the pipeline can skip re-running detection on a static scene.
package frame

import (
	"image"

	"golang.org/x/image/draw"
)

// Hash computes a 64-bit difference hash of a frame.
func Hash(img image.Image) uint64 {
	// 9x8 grayscale downscale: 9 columns give 8 horizontal differences
	// per row, 8 rows * 8 comparisons = 64 bits.
	resized := resizeImage(img, 9, 8)
	gray := toGrayscale(resized)

	var hash uint64
	bit := 63
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if gray[x][y] > gray[x+1][y] {
				hash |= 1 << bit
			}
			bit--
		}
	}

	return hash
}

// HammingDistance computes the Hamming distance between two 64-bit hashes.
func HammingDistance(hash1, hash2 uint64) int {
	xor := hash1 ^ hash2
	distance := 0
	for xor != 0 {
		distance++
		xor &= xor - 1 // Clear lowest set bit
	}
	return distance
}

// Deduper remembers the hash of the previously processed frame and
// reports whether a new frame is close enough to skip. Not safe for
// concurrent use; the capture loop is its only caller.
type Deduper struct {
	threshold int
	last      uint64
	primed    bool
}

// NewDeduper creates a deduper. A threshold of 0 disables dedup
// entirely (every frame is processed).
func NewDeduper(threshold int) *Deduper {
	return &Deduper{threshold: threshold}
}

// ShouldSkip reports whether the frame is a near-duplicate of the
// previously processed one. When it returns false the frame becomes
// the new reference.
func (d *Deduper) ShouldSkip(img image.Image) bool {
	if d.threshold <= 0 {
		return false
	}

	h := Hash(img)
	if d.primed && HammingDistance(h, d.last) <= d.threshold {
		return true
	}

	d.last = h
	d.primed = true
	return false
}

// Reset forgets the reference frame, forcing the next frame through.
func (d *Deduper) Reset() {
	d.primed = false
}

// resizeImage scales an image to the given dimensions.
func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// toGrayscale converts an image to a 2D array of grayscale values (0-255).
func toGrayscale(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := 0; x < width; x++ {
		gray[x] = make([]float64, height)
		for y := 0; y < height; y++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray[x][y] = luma
		}
	}

	return gray
}
