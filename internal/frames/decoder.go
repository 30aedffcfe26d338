package frames

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/vp8"
)

var ErrUndecodable = errors.New("undecodable frame")

type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// IsVP8KeyFrame reports whether data starts a VP8 key frame. Inter frames
// reference state the still-image decoder does not keep.
func IsVP8KeyFrame(data []byte) bool {
	return len(data) > 0 && data[0]&0x01 == 0
}

type VP8Decoder struct{}

func NewVP8Decoder() *VP8Decoder {
	return &VP8Decoder{}
}

func (d *VP8Decoder) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame data", ErrUndecodable)
	}
	if !IsVP8KeyFrame(data) {
		return nil, fmt.Errorf("%w: inter frame", ErrUndecodable)
	}

	decoder := vp8.NewDecoder()
	decoder.Init(bytes.NewReader(data), len(data))

	fh, err := decoder.DecodeFrameHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame header: %v", ErrUndecodable, err)
	}
	if fh.Width == 0 || fh.Height == 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrUndecodable, fh.Width, fh.Height)
	}

	img, err := decoder.DecodeFrame()
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame: %v", ErrUndecodable, err)
	}
	return img, nil
}

type JPEGDecoder struct{}

func (JPEGDecoder) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame data", ErrUndecodable)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return img, nil
}

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = 80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
