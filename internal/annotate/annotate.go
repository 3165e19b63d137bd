// Package annotate draws detection boxes and name labels onto frames
// for the live stream.
package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	matchedColor = color.RGBA{G: 200, A: 255}          // green
	unknownColor = color.RGBA{R: 200, A: 255}          // red
	labelText    = color.RGBA{R: 255, G: 255, B: 255, A: 255} // white
)

// Label is one annotated detection: where it is and what to call it.
type Label struct {
	Box     image.Rectangle
	Name    string // "Unknown" for unmatched faces
	Matched bool
}

const (
	borderWidth   = 2
	labelBarInset = 18 // height of the filled name bar at the bottom of the box
)

// Draw renders boxes and labels onto a copy of the frame. The input
// image is never mutated; the stream serves immutable snapshots.
func Draw(img image.Image, labels []Label) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	for _, l := range labels {
		c := unknownColor
		if l.Matched {
			c = matchedColor
		}

		box := l.Box.Intersect(bounds)
		if box.Empty() {
			continue
		}

		drawBorder(out, box, c)

		// Filled bar along the bottom edge carrying the name.
		bar := image.Rect(box.Min.X, box.Max.Y-labelBarInset, box.Max.X, box.Max.Y).Intersect(bounds)
		draw.Draw(out, bar, &image.Uniform{C: c}, image.Point{}, draw.Src)
		drawText(out, l.Name, box.Min.X+borderWidth+2, box.Max.Y-5)
	}

	return out
}

// EncodeJPEG encodes an annotated frame for the MJPEG stream.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func drawBorder(img *image.RGBA, box image.Rectangle, c color.Color) {
	fill := &image.Uniform{C: c}
	// Top, bottom, left, right strips.
	draw.Draw(img, image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+borderWidth), fill, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(box.Min.X, box.Max.Y-borderWidth, box.Max.X, box.Max.Y), fill, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(box.Min.X, box.Min.Y, box.Min.X+borderWidth, box.Max.Y), fill, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(box.Max.X-borderWidth, box.Min.Y, box.Max.X, box.Max.Y), fill, image.Point{}, draw.Src)
}

func drawText(img *image.RGBA, text string, x, y int) {
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: labelText},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
