package frames

import (
	"image"
	"time"

	"golang.org/x/image/draw"
)

// Frame is an admitted, decoded video frame. The pixel buffer must not be
// modified after publication; consumers that keep a frame past the callback
// take a Clone.
type Frame struct {
	Seq        uint64
	Image      *image.RGBA
	CapturedAt time.Time
}

func (f *Frame) Width() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

func (f *Frame) Height() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	clone := &Frame{Seq: f.Seq, CapturedAt: f.CapturedAt}
	if f.Image != nil {
		pix := make([]uint8, len(f.Image.Pix))
		copy(pix, f.Image.Pix)
		clone.Image = &image.RGBA{
			Pix:    pix,
			Stride: f.Image.Stride,
			Rect:   f.Image.Rect,
		}
	}
	return clone
}

// ToRGBA converts img to an RGBA buffer whose bounds start at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
