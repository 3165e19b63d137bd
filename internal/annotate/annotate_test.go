package annotate

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func TestDraw_DoesNotMutateInput(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			src.Set(x, y, color.White)
		}
	}

	Draw(src, []Label{{Box: image.Rect(10, 10, 60, 60), Name: "Alice", Matched: true}})

	if src.RGBAAt(10, 10) != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Error("source frame was mutated by Draw")
	}
}

func TestDraw_MatchedAndUnknownColors(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))

	out := Draw(src, []Label{
		{Box: image.Rect(10, 10, 80, 90), Name: "Alice", Matched: true},
		{Box: image.Rect(110, 10, 180, 90), Name: "Unknown", Matched: false},
	})

	if got := out.RGBAAt(11, 11); got != matchedColor {
		t.Errorf("expected green border at matched box, got %v", got)
	}
	if got := out.RGBAAt(111, 11); got != unknownColor {
		t.Errorf("expected red border at unknown box, got %v", got)
	}
}

func TestDraw_BoxOutsideFrameIsClipped(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 50, 50))

	// Must not panic on a box that extends past the frame edge.
	out := Draw(src, []Label{{Box: image.Rect(40, 40, 120, 120), Name: "Edge", Matched: true}})
	if out == nil {
		t.Fatal("expected annotated frame")
	}
}

func TestEncodeJPEG_RoundTrips(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 48))
	out := Draw(src, nil)

	data, err := EncodeJPEG(out)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not valid JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 64 || decoded.Bounds().Dy() != 48 {
		t.Errorf("unexpected dimensions %v", decoded.Bounds())
	}
}
