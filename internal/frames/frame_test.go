package frames

import (
	"image"
	"image/color"
	"testing"
	"time"
)

func TestFrame_CloneIsDeep(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	f := &Frame{Seq: 7, Image: img, CapturedAt: time.Unix(10, 0)}

	c := f.Clone()
	if c.Seq != 7 || !c.CapturedAt.Equal(f.CapturedAt) {
		t.Fatalf("metadata not copied: %+v", c)
	}
	if c.Width() != 4 || c.Height() != 2 {
		t.Fatalf("expected 4x2, got %dx%d", c.Width(), c.Height())
	}

	img.Set(1, 1, color.RGBA{G: 10, A: 255})
	if got := c.Image.RGBAAt(1, 1); got.R != 200 {
		t.Errorf("clone shares pixels with original: %+v", got)
	}
}

func TestFrame_NilSafe(t *testing.T) {
	var f *Frame
	if f.Clone() != nil {
		t.Error("clone of nil should be nil")
	}
	if f.Width() != 0 || f.Height() != 0 {
		t.Error("nil frame should have zero size")
	}
}

func TestToRGBA_NormalizesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 14, 12))
	src.Set(10, 10, color.RGBA{B: 99, A: 255})

	dst := ToRGBA(src)
	if dst.Rect.Min != (image.Point{}) {
		t.Fatalf("expected origin at zero, got %v", dst.Rect.Min)
	}
	if dst.RGBAAt(0, 0).B != 99 {
		t.Errorf("expected pixel copied to origin, got %+v", dst.RGBAAt(0, 0))
	}

	gray := image.NewGray(image.Rect(0, 0, 3, 3))
	if ToRGBA(gray).Bounds().Dx() != 3 {
		t.Error("expected gray image converted")
	}

	same := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if ToRGBA(same) != same {
		t.Error("expected origin RGBA returned as is")
	}
}
