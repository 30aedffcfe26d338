package recording

import (
	"bytes"
	"context"
	"image"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

func requireElements(t *testing.T, names ...string) {
	t.Helper()
	gst.Init(nil)
	for _, name := range names {
		if gst.Find(name) == nil {
			t.Skipf("gstreamer element %s not available", name)
		}
	}
}

func TestGstEncoderEndToEnd(t *testing.T) {
	requireElements(t, "appsrc", "videoconvert", "x264enc", "h264parse", "appsink")

	path := filepath.Join(t.TempDir(), "clip.mp4")
	mux, err := NewMP4Muxer(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := NewGstEncoder(AccelSoftware, testLogger())
	defer enc.Close()

	written, err := Encode(context.Background(), testFrames(10, 320, 240), EncodeConfig{Width: 320, Height: 240}, enc, mux)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if written != 10 {
		t.Fatalf("written = %d, want 10", written)
	}
}

func TestPackRGBA(t *testing.T) {
	frame := testFrames(1, 4, 2)[0].Image
	if got := len(packRGBA(frame)); got != 4*2*4 {
		t.Fatalf("packed %d bytes", got)
	}

	sub := frame.SubImage(image.Rect(1, 0, 3, 2)).(*image.RGBA)
	packed := packRGBA(sub)
	if len(packed) != 2*2*4 {
		t.Fatalf("packed sub-image %d bytes", len(packed))
	}
	if !bytes.Equal(packed[:8], frame.Pix[4:12]) {
		t.Error("sub-image rows not packed from their offset")
	}
}

func TestPipelineDescription(t *testing.T) {
	cfg := EncoderConfig{Width: 640, Height: 480, FPS: 20, Bitrate: 1_500_000, KeyFrameInterval: time.Second}

	sw := pipelineDescription(cfg, false)
	for _, want := range []string{"x264enc bitrate=1500 key-int-max=20", "tune=zerolatency", "width=640,height=480,framerate=20/1", "alignment=au"} {
		if !strings.Contains(sw, want) {
			t.Errorf("software pipeline %q missing %q", sw, want)
		}
	}

	hw := pipelineDescription(cfg, true)
	if !strings.Contains(hw, "vaapih264enc bitrate=1500 keyframe-period=20") {
		t.Errorf("vaapi pipeline = %q", hw)
	}
}
