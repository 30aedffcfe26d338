package vehicle

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/eleven-am/roverlink/internal/autopilot"
	"github.com/eleven-am/roverlink/internal/command"
	"github.com/eleven-am/roverlink/internal/frames"
	"github.com/eleven-am/roverlink/internal/gallery"
	"github.com/eleven-am/roverlink/internal/recording"
	"github.com/eleven-am/roverlink/internal/vision"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	mu   sync.Mutex
	sent []command.Command
}

func (r *recordingSender) Send(cmd command.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, cmd)
}

func (r *recordingSender) commands() []command.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]command.Command(nil), r.sent...)
}

type fakeIngress struct {
	mu       sync.Mutex
	startErr error
	started  bool
	closed   bool
	onConn   func(bool)
}

func (f *fakeIngress) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	if f.onConn != nil {
		f.onConn(true)
	}
	return nil
}

func (f *fakeIngress) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// blockingRecognizer returns text once released.
type blockingRecognizer struct {
	text    string
	release chan struct{}
	calls   chan struct{}
}

func newBlockingRecognizer(text string, blocked bool) *blockingRecognizer {
	r := &blockingRecognizer{text: text, release: make(chan struct{}), calls: make(chan struct{}, 16)}
	if !blocked {
		close(r.release)
	}
	return r
}

func (r *blockingRecognizer) RecognizeText(ctx context.Context, _ image.Image) (string, error) {
	r.calls <- struct{}{}
	<-r.release
	return r.text, nil
}

type staticDetector struct {
	detections []vision.Detection
}

func (d staticDetector) DetectObjects(context.Context, image.Image) ([]vision.Detection, error) {
	return d.detections, nil
}

type nopEncoder struct{}

func (nopEncoder) Start(recording.EncoderConfig) error            { return nil }
func (nopEncoder) Submit(*image.RGBA, int64) error                { return nil }
func (nopEncoder) EndOfStream() error                             { return nil }
func (nopEncoder) Dequeue(time.Duration) (recording.Event, error) { return recording.Event{Kind: recording.EventEndOfStream}, nil }
func (nopEncoder) Close() error                                   { return nil }

type photoSaver struct {
	saved int
}

func (p *photoSaver) SavePhoto(_ context.Context, img image.Image) (*gallery.Item, error) {
	p.saved++
	return &gallery.Item{ID: "gal_1", Kind: gallery.KindPhoto, FileName: "rover_1.jpg", CreatedAt: time.Now()}, nil
}

type fixture struct {
	client  *Client
	sender  *recordingSender
	ingress *fakeIngress
	clock   *clock.Mock
	photos  *photoSaver
	done    chan recording.Result
}

type fixtureOptions struct {
	recognizer vision.TextRecognizer
	detector   vision.ObjectDetector
	startErr   error
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	f := &fixture{
		sender:  &recordingSender{},
		ingress: &fakeIngress{startErr: opts.startErr},
		clock:   clock.NewMock(),
		photos:  &photoSaver{},
		done:    make(chan recording.Result, 4),
	}
	source := frames.NewSource(frames.SourceConfig{Clock: f.clock, Logger: testLogger()})

	client, err := NewClient(Config{
		Sender: f.sender,
		Source: source,
		Ingress: func(_ *frames.Source, onConn func(bool)) (Ingress, error) {
			f.ingress.onConn = onConn
			return f.ingress, nil
		},
		Recognizer: opts.recognizer,
		Detector:   opts.detector,
		Autopilot:  autopilot.Config{Clock: f.clock},
		Recording: recording.PipelineConfig{
			TmpDir:     t.TempDir(),
			NewEncoder: func() recording.Encoder { return nopEncoder{} },
			OnDone:     func(r recording.Result) { f.done <- r },
		},
		Photos: f.photos,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	f.client = client
	return f
}

func (f *fixture) offerFrame() bool {
	f.clock.Add(100 * time.Millisecond)
	return f.client.source.Offer(image.NewRGBA(image.Rect(0, 0, 64, 48)))
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

func TestNewClientRequiresDeps(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error without sender")
	}
	if _, err := NewClient(Config{Sender: &recordingSender{}}); err == nil {
		t.Error("expected error without ingress factory")
	}
}

func TestClient_CameraOnOff(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()

	if err := f.client.SetCamera(ctx, true); err != nil {
		t.Fatalf("SetCamera(true) error = %v", err)
	}
	snap := f.client.Snapshot()
	if !snap.Camera || !snap.Connected {
		t.Fatalf("snapshot after camera on = %+v", snap)
	}
	if !f.offerFrame() {
		t.Fatal("frame not admitted with camera on")
	}
	if f.client.Snapshot().FrameSeq == 0 {
		t.Error("frame seq not reflected in snapshot")
	}

	if err := f.client.SetCamera(ctx, false); err != nil {
		t.Fatalf("SetCamera(false) error = %v", err)
	}
	if !f.ingress.closed {
		t.Error("ingress not closed")
	}
	if f.offerFrame() {
		t.Error("frame admitted after camera off")
	}
	snap = f.client.Snapshot()
	if snap.Camera || snap.Connected || snap.FrameSeq != 0 {
		t.Errorf("snapshot after camera off = %+v", snap)
	}
}

func TestClient_CameraStartFailure(t *testing.T) {
	f := newFixture(t, fixtureOptions{startErr: errors.New("signaling refused")})

	if err := f.client.SetCamera(context.Background(), true); err == nil {
		t.Fatal("expected error")
	}
	if f.client.CameraOn() || f.client.source.Running() {
		t.Error("camera left on after failed start")
	}
	if !f.ingress.closed {
		t.Error("failed ingress not closed")
	}
}

func TestClient_TextAutopilotDrives(t *testing.T) {
	rec := newBlockingRecognizer("go forward", false)
	f := newFixture(t, fixtureOptions{recognizer: rec})

	f.client.SetCamera(context.Background(), true)
	f.client.SetTextRecognition(true)
	f.client.SetTextAutopilot(true)
	f.offerFrame()

	waitFor(t, func() bool { return len(f.sender.commands()) == 1 })
	if got := f.sender.commands()[0]; got != command.Forward {
		t.Fatalf("command = %v, want forward", got)
	}
	snap := f.client.Snapshot()
	if snap.Text != "go forward" || snap.TextArmed || snap.LastCommand != "forward" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestClient_CameraOffDiscardsInFlightText(t *testing.T) {
	rec := newBlockingRecognizer("left", true)
	f := newFixture(t, fixtureOptions{recognizer: rec})

	f.client.SetCamera(context.Background(), true)
	f.client.SetTextRecognition(true)
	f.client.SetTextAutopilot(true)
	f.offerFrame()
	<-rec.calls

	f.client.SetCamera(context.Background(), false)
	close(rec.release)
	time.Sleep(20 * time.Millisecond)

	if got := f.sender.commands(); len(got) != 0 {
		t.Fatalf("commands after camera off = %v", got)
	}
	if snap := f.client.Snapshot(); snap.Text != "" || snap.TextAutopilot {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestClient_DisableTextRecognition(t *testing.T) {
	f := newFixture(t, fixtureOptions{recognizer: newBlockingRecognizer("nothing useful", false)})

	f.client.SetCamera(context.Background(), true)
	f.client.SetTextRecognition(true)
	f.client.SetTextAutopilot(true)
	f.offerFrame()
	waitFor(t, func() bool { return f.client.Snapshot().Text != "" })

	f.client.SetTextRecognition(false)
	snap := f.client.Snapshot()
	if snap.Text != "" || snap.TextAutopilot || snap.TextRecognition {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(f.sender.commands()) != 0 {
		t.Errorf("commands = %v", f.sender.commands())
	}
}

func TestClient_FollowStopsWhenDetectionDisabled(t *testing.T) {
	det := staticDetector{detections: []vision.Detection{{Box: vision.Box{Left: 0, Top: 0, Right: 10, Bottom: 10}}}}
	f := newFixture(t, fixtureOptions{detector: det})

	f.client.SetCamera(context.Background(), true)
	f.client.SetObjectDetection(true)
	f.client.SetFollow(true)
	f.offerFrame()

	waitFor(t, func() bool {
		cmds := f.sender.commands()
		return len(cmds) > 0 && cmds[len(cmds)-1] == command.Left
	})

	f.client.SetObjectDetection(false)
	cmds := f.sender.commands()
	if cmds[len(cmds)-1] != command.Stop {
		t.Fatalf("last command = %v, want stop", cmds[len(cmds)-1])
	}
	if snap := f.client.Snapshot(); len(snap.Detections) != 0 || snap.ObjectDetection {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestClient_CameraOffWhileFollowingStopsOnce(t *testing.T) {
	f := newFixture(t, fixtureOptions{detector: staticDetector{}})

	f.client.SetCamera(context.Background(), true)
	f.client.SetObjectDetection(true)
	f.client.SetFollow(true)
	before := len(f.sender.commands())

	f.client.SetCamera(context.Background(), false)
	cmds := f.sender.commands()
	if len(cmds) != before+1 || cmds[len(cmds)-1] != command.Stop {
		t.Fatalf("commands = %v", cmds)
	}
	if f.client.Snapshot().Follow {
		t.Error("follow still enabled after camera off")
	}
}

func TestClient_DriveAndJoystick(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	if err := f.client.Drive(command.RotateLeft); err != nil {
		t.Fatalf("Drive() error = %v", err)
	}
	if err := f.client.Drive(command.Command(99)); !errors.Is(err, command.ErrUnknownCommand) {
		t.Errorf("Drive(invalid) error = %v", err)
	}

	tests := []struct {
		name     string
		x, y     float64
		released bool
		want     command.Command
		sent     bool
	}{
		{"dead zone", 0.1, 0.1, false, command.Stop, false},
		{"up is forward", 0, -1, false, command.Forward, true},
		{"right", 1, 0, false, command.Right, true},
		{"release", 0.9, 0, true, command.Stop, true},
	}
	for _, tt := range tests {
		got, sent := f.client.Joystick(tt.x, tt.y, tt.released)
		if got != tt.want || sent != tt.sent {
			t.Errorf("%s: Joystick() = %v, %v", tt.name, got, sent)
		}
	}

	want := []command.Command{command.RotateLeft, command.Forward, command.Right, command.Stop}
	got := f.sender.commands()
	if len(got) != len(want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestClient_Recording(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	if _, err := f.client.SetRecording(true); !errors.Is(err, ErrCameraOff) {
		t.Fatalf("SetRecording with camera off error = %v", err)
	}

	f.client.SetCamera(context.Background(), true)
	id, err := f.client.SetRecording(true)
	if err != nil || id == "" {
		t.Fatalf("SetRecording(true) = %q, %v", id, err)
	}
	if _, err := f.client.SetRecording(true); !errors.Is(err, recording.ErrSessionActive) {
		t.Fatalf("second SetRecording(true) error = %v", err)
	}

	f.offerFrame()
	f.offerFrame()
	if got := f.client.Snapshot().RecordedFrames; got != 2 {
		t.Errorf("RecordedFrames = %d, want 2", got)
	}

	stopped, err := f.client.SetRecording(false)
	if err != nil || stopped != id {
		t.Fatalf("SetRecording(false) = %q, %v", stopped, err)
	}
	select {
	case r := <-f.done:
		if r.SessionID != id {
			t.Errorf("result session = %q", r.SessionID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recording never finished")
	}
	if _, err := f.client.SetRecording(false); !errors.Is(err, recording.ErrNoSession) {
		t.Errorf("SetRecording(false) without session error = %v", err)
	}
}

func TestClient_CameraOffAbortsRecording(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	f.client.SetCamera(context.Background(), true)
	f.client.SetRecording(true)
	f.offerFrame()
	f.client.SetCamera(context.Background(), false)

	if f.client.recorder.Active() || f.client.Snapshot().Recording {
		t.Fatal("recording still active after camera off")
	}
	select {
	case r := <-f.done:
		t.Fatalf("aborted session was encoded: %+v", r)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestClient_TakePhoto(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	if _, err := f.client.TakePhoto(context.Background()); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("TakePhoto() without frame error = %v", err)
	}

	f.client.SetCamera(context.Background(), true)
	f.offerFrame()
	item, err := f.client.TakePhoto(context.Background())
	if err != nil || item.ID != "gal_1" || f.photos.saved != 1 {
		t.Fatalf("TakePhoto() = %+v, %v", item, err)
	}

	data, err := f.client.LatestFrameJPEG(context.Background())
	if err != nil || len(data) == 0 {
		t.Fatalf("LatestFrameJPEG() = %d bytes, %v", len(data), err)
	}
}

func TestClient_CameraOffForgetsLatestFrame(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.client.SetCamera(context.Background(), true)
	f.offerFrame()
	f.client.SetCamera(context.Background(), false)

	if _, err := f.client.TakePhoto(context.Background()); !errors.Is(err, ErrNoFrame) {
		t.Errorf("TakePhoto() after camera off error = %v, want ErrNoFrame", err)
	}
	if _, err := f.client.LatestFrameJPEG(context.Background()); !errors.Is(err, ErrNoFrame) {
		t.Errorf("LatestFrameJPEG() after camera off error = %v, want ErrNoFrame", err)
	}
	if f.photos.saved != 0 {
		t.Errorf("saved %d photos from a stale frame", f.photos.saved)
	}
}
