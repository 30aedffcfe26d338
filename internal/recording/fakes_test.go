package recording

import (
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/roverlink/internal/frames"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFrames(n int, w, h int) []*frames.Frame {
	out := make([]*frames.Frame, n)
	for i := range out {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		img.Set(0, 0, color.RGBA{R: uint8(i), A: 255})
		out[i] = &frames.Frame{Seq: uint64(i + 1), Image: img, CapturedAt: time.Unix(int64(i), 0)}
	}
	return out
}

// fakeEncoder emits one output per submitted frame. Output becomes visible
// only after lag further dequeues so the drain loop is exercised.
type fakeEncoder struct {
	mu        sync.Mutex
	cfg       EncoderConfig
	started   bool
	submitted []int64
	sizes     []image.Rectangle
	queue     []Event
	eos       bool
	closed    bool
	formatOut bool

	submitErr  error
	dequeueErr error
	noFormat   bool
}

func (e *fakeEncoder) Start(cfg EncoderConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.started = true
	return nil
}

func (e *fakeEncoder) Submit(img *image.RGBA, pts int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitErr != nil {
		return e.submitErr
	}
	e.submitted = append(e.submitted, pts)
	e.sizes = append(e.sizes, img.Bounds())
	if !e.formatOut && !e.noFormat {
		e.formatOut = true
		e.queue = append(e.queue, Event{
			Kind:   EventFormatChanged,
			Format: TrackFormat{Width: e.cfg.Width, Height: e.cfg.Height, SPS: [][]byte{{0x67}}, PPS: [][]byte{{0x68}}},
		})
	}
	e.queue = append(e.queue, Event{
		Kind:     EventOutput,
		Data:     []byte{0, 0, 0, 1, 0x65, byte(len(e.submitted))},
		KeyFrame: len(e.submitted) == 1,
	})
	return nil
}

func (e *fakeEncoder) EndOfStream() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eos = true
	return nil
}

func (e *fakeEncoder) Dequeue(time.Duration) (Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dequeueErr != nil {
		return Event{}, e.dequeueErr
	}
	// hold back the most recent output until end of stream
	if len(e.queue) > 0 && (e.eos || len(e.queue) > 1) {
		ev := e.queue[0]
		e.queue = e.queue[1:]
		return ev, nil
	}
	if e.eos {
		return Event{Kind: EventEndOfStream}, nil
	}
	return Event{Kind: EventTryAgain}, nil
}

func (e *fakeEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

type fakeMuxer struct {
	mu       sync.Mutex
	formats  []TrackFormat
	started  bool
	stopped  bool
	closed   bool
	samples  []Sample
	writeErr error
}

func (m *fakeMuxer) AddTrack(f TrackFormat) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.formats = append(m.formats, f)
	return 0, nil
}

func (m *fakeMuxer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

func (m *fakeMuxer) WriteSample(track int, s Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return errors.New("not started")
	}
	if m.writeErr != nil {
		return m.writeErr
	}
	m.samples = append(m.samples, s)
	return nil
}

func (m *fakeMuxer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *fakeMuxer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
