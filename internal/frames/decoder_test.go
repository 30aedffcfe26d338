package frames

import (
	"errors"
	"image"
	"testing"
)

func TestIsVP8KeyFrame(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"empty", nil, false},
		{"key frame", []byte{0x10, 0x02}, true},
		{"inter frame", []byte{0x11, 0x02}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVP8KeyFrame(tt.data); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestVP8Decoder_RejectsUndecodable(t *testing.T) {
	d := NewVP8Decoder()
	inputs := map[string][]byte{
		"empty":       nil,
		"inter frame": {0x01, 0x00, 0x00},
		"truncated":   {0x00, 0x00, 0x00, 0x9d},
	}
	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := d.Decode(data)
			if !errors.Is(err, ErrUndecodable) {
				t.Errorf("expected ErrUndecodable, got %v", err)
			}
		})
	}
}

func TestJPEGDecoder_RoundTrip(t *testing.T) {
	data, err := EncodeJPEG(image.NewRGBA(image.Rect(0, 0, 32, 24)), 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := JPEGDecoder{}.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 24 {
		t.Errorf("expected 32x24, got %v", img.Bounds())
	}
}

func TestJPEGDecoder_Garbage(t *testing.T) {
	if _, err := (JPEGDecoder{}).Decode([]byte("not a jpeg")); !errors.Is(err, ErrUndecodable) {
		t.Errorf("expected ErrUndecodable, got %v", err)
	}
	if _, err := (JPEGDecoder{}).Decode(nil); !errors.Is(err, ErrUndecodable) {
		t.Errorf("expected ErrUndecodable for empty input, got %v", err)
	}
}
