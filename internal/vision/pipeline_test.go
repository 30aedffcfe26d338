package vision

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/roverlink/internal/frames"
)

type fakeRecognizer struct {
	mu      sync.Mutex
	text    string
	err     error
	release chan struct{}
	calls   int
}

func (f *fakeRecognizer) RecognizeText(ctx context.Context, _ image.Image) (string, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	f.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

type fakeDetector struct {
	detections []Detection
	release    chan struct{}
	ignoreCtx  bool
}

func (f *fakeDetector) DetectObjects(ctx context.Context, _ image.Image) ([]Detection, error) {
	if f.release != nil {
		if f.ignoreCtx {
			<-f.release
		} else {
			select {
			case <-f.release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return f.detections, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFrame(seq uint64) *frames.Frame {
	return &frames.Frame{Seq: seq, Image: image.NewRGBA(image.Rect(0, 0, 640, 480)), CapturedAt: time.Now()}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPipeline_DeliversFirstLine(t *testing.T) {
	results := make(chan RecognizedText, 1)
	p := NewPipeline(PipelineConfig{
		Recognizer: &fakeRecognizer{text: "\n  Turn LEFT here\nsecond"},
		OnText:     func(r RecognizedText) { results <- r },
		Logger:     testLogger(),
	})
	defer p.Close()

	if err := p.SubmitForText(testFrame(3)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case r := <-results:
		if r.Text != "Turn LEFT here" {
			t.Errorf("expected first line, got %q", r.Text)
		}
		if r.FrameSeq != 3 {
			t.Errorf("expected frame seq 3, got %d", r.FrameSeq)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}
}

func TestPipeline_DropsWhileBusy(t *testing.T) {
	release := make(chan struct{})
	rec := &fakeRecognizer{text: "x", release: release}
	delivered := make(chan RecognizedText, 4)
	p := NewPipeline(PipelineConfig{Recognizer: rec, OnText: func(r RecognizedText) { delivered <- r }, Logger: testLogger()})
	defer p.Close()

	if err := p.SubmitForText(testFrame(1)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := p.SubmitForText(testFrame(2)); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if text, _ := p.InFlight(); !text {
		t.Error("expected text capability in flight")
	}

	close(release)
	r := <-delivered
	if r.FrameSeq != 1 {
		t.Errorf("expected result for frame 1, got %d", r.FrameSeq)
	}

	waitFor(t, func() bool { text, _ := p.InFlight(); return !text })
	if err := p.SubmitForText(testFrame(3)); err != nil {
		t.Errorf("expected submit after completion to succeed, got %v", err)
	}

	stats, _ := p.Stats()
	if stats.Dropped != 1 {
		t.Errorf("expected 1 dropped submission, got %d", stats.Dropped)
	}
}

func TestPipeline_CapabilitiesAreIndependent(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	p := NewPipeline(PipelineConfig{
		Recognizer: &fakeRecognizer{release: release},
		Detector:   &fakeDetector{release: release},
		Logger:     testLogger(),
	})
	defer p.Close()

	if err := p.SubmitForText(testFrame(1)); err != nil {
		t.Fatalf("text submit: %v", err)
	}
	if err := p.SubmitForObjects(testFrame(1)); err != nil {
		t.Fatalf("objects submit should not be blocked by text: %v", err)
	}
}

func TestPipeline_ErrorsAreNotSurfaced(t *testing.T) {
	called := false
	p := NewPipeline(PipelineConfig{
		Recognizer: &fakeRecognizer{err: errors.New("model crashed")},
		OnText:     func(RecognizedText) { called = true },
		Logger:     testLogger(),
	})
	if err := p.SubmitForText(testFrame(1)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	p.Close()
	if called {
		t.Error("failed request must not deliver a result")
	}
	stats, _ := p.Stats()
	if stats.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", stats.Failed)
	}
}

func TestPipeline_CancelDiscardsStaleResults(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var got []DetectionResult
	p := NewPipeline(PipelineConfig{
		Detector: &fakeDetector{detections: []Detection{{Box: Box{Right: 10}}}, release: release, ignoreCtx: true},
		OnObjects: func(r DetectionResult) {
			mu.Lock()
			got = append(got, r)
			mu.Unlock()
		},
		Logger: testLogger(),
	})

	if err := p.SubmitForObjects(testFrame(1)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	p.Cancel()
	close(release)
	p.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 0 {
		t.Errorf("expected stale result discarded, got %d results", len(got))
	}
	_, stats := p.Stats()
	if stats.Stale != 1 {
		t.Errorf("expected 1 stale result, got %d", stats.Stale)
	}
}

func TestPipeline_ObjectResultCarriesFrameSize(t *testing.T) {
	results := make(chan DetectionResult, 1)
	p := NewPipeline(PipelineConfig{
		Detector:  &fakeDetector{detections: []Detection{{Box: Box{Left: 10, Right: 20}}}},
		OnObjects: func(r DetectionResult) { results <- r },
		Logger:    testLogger(),
	})
	defer p.Close()

	p.SubmitForObjects(testFrame(9))
	r := <-results
	if r.FrameWidth != 640 || r.FrameHeight != 480 {
		t.Errorf("expected 640x480, got %dx%d", r.FrameWidth, r.FrameHeight)
	}
	if len(r.Detections) != 1 || r.FrameSeq != 9 {
		t.Errorf("unexpected result %+v", r)
	}
}

func TestPipeline_MissingCapability(t *testing.T) {
	p := NewPipeline(PipelineConfig{Logger: testLogger()})
	defer p.Close()
	if err := p.SubmitForText(testFrame(1)); !errors.Is(err, ErrNoCapability) {
		t.Errorf("expected ErrNoCapability, got %v", err)
	}
	if err := p.SubmitForObjects(testFrame(1)); !errors.Is(err, ErrNoCapability) {
		t.Errorf("expected ErrNoCapability, got %v", err)
	}
}

func TestPipeline_RejectsEmptyFrame(t *testing.T) {
	p := NewPipeline(PipelineConfig{Recognizer: &fakeRecognizer{}, Logger: testLogger()})
	defer p.Close()
	if err := p.SubmitForText(&frames.Frame{}); !errors.Is(err, frames.ErrUndecodable) {
		t.Errorf("expected ErrUndecodable, got %v", err)
	}
}
