package vehicle

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/eleven-am/roverlink/internal/autopilot"
	"github.com/eleven-am/roverlink/internal/command"
	"github.com/eleven-am/roverlink/internal/frames"
	"github.com/eleven-am/roverlink/internal/gallery"
	"github.com/eleven-am/roverlink/internal/recording"
	"github.com/eleven-am/roverlink/internal/state"
	"github.com/eleven-am/roverlink/internal/vision"
)

var (
	ErrCameraOff = errors.New("camera is off")
	ErrNoFrame   = errors.New("no frame available")
	ErrNoGallery = errors.New("gallery not configured")
)

const latestFrameQuality = 80

type PhotoSaver interface {
	SavePhoto(ctx context.Context, img image.Image) (*gallery.Item, error)
}

type Config struct {
	Sender     command.Sender
	Source     *frames.Source
	Ingress    IngressFactory
	Recognizer vision.TextRecognizer
	Detector   vision.ObjectDetector
	Vision     vision.PipelineConfig
	Autopilot  autopilot.Config
	Recording  recording.PipelineConfig
	Photos     PhotoSaver
	FrameStore *frames.Store
	Archiver   *frames.Archiver
	Hub        *state.Hub
	Logger     *slog.Logger
}

// Client is the vehicle-side orchestrator. It owns the frame source and
// routes admitted frames to perception and recording, perception results to
// the autopilot, and every state change to the Hub.
type Client struct {
	sender     command.Sender
	source     *frames.Source
	newIngress IngressFactory
	vision     *vision.Pipeline
	autopilot  *autopilot.Controller
	recorder   *recording.Pipeline
	photos     PhotoSaver
	frameStore *frames.Store
	archiver   *frames.Archiver
	hub        *state.Hub
	logger     *slog.Logger

	textRecognition atomic.Bool
	objectDetection atomic.Bool

	camMu   sync.Mutex
	camera  bool
	ingress Ingress

	unsubscribe []func()
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Sender == nil {
		return nil, errors.New("vehicle client requires a command sender")
	}
	if cfg.Ingress == nil {
		return nil, errors.New("vehicle client requires an ingress factory")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Source == nil {
		cfg.Source = frames.NewSource(frames.SourceConfig{Logger: cfg.Logger})
	}
	if cfg.Hub == nil {
		cfg.Hub = state.NewHub()
	}

	c := &Client{
		sender:     cfg.Sender,
		source:     cfg.Source,
		newIngress: cfg.Ingress,
		photos:     cfg.Photos,
		frameStore: cfg.FrameStore,
		archiver:   cfg.Archiver,
		hub:        cfg.Hub,
		logger:     cfg.Logger.With("component", "vehicle"),
	}

	visionCfg := cfg.Vision
	visionCfg.Recognizer = cfg.Recognizer
	visionCfg.Detector = cfg.Detector
	visionCfg.OnText = c.onText
	visionCfg.OnObjects = c.onObjects
	if visionCfg.Logger == nil {
		visionCfg.Logger = cfg.Logger
	}
	c.vision = vision.NewPipeline(visionCfg)

	apCfg := cfg.Autopilot
	if apCfg.Logger == nil {
		apCfg.Logger = cfg.Logger
	}
	c.autopilot = autopilot.NewController(apCfg, cfg.Sender, c.onAutopilot)

	recCfg := cfg.Recording
	if recCfg.Logger == nil {
		recCfg.Logger = cfg.Logger
	}
	onDone := recCfg.OnDone
	recCfg.OnDone = func(r recording.Result) {
		if r.Err != nil {
			c.logger.Error("recording failed", "session_id", r.SessionID, "error", r.Err)
		}
		if onDone != nil {
			onDone(r)
		}
	}
	c.recorder = recording.NewPipeline(recCfg)

	c.unsubscribe = append(c.unsubscribe, c.source.Subscribe("vehicle", c.onFrame))
	if c.archiver != nil {
		c.unsubscribe = append(c.unsubscribe, c.source.Subscribe("archiver", c.archiver.HandleFrame))
	}

	c.hub.Update(func(s *state.Snapshot) { *s = state.Snapshot{TextArmed: true} })
	return c, nil
}

func (c *Client) Hub() *state.Hub {
	return c.hub
}

func (c *Client) Snapshot() state.Snapshot {
	return c.hub.Current()
}

// SetCamera starts or stops video ingress. Turning the camera off halts
// frame publication before returning, drops perception results still in
// flight, discards any open recording and resets the autopilot.
func (c *Client) SetCamera(ctx context.Context, on bool) error {
	c.camMu.Lock()
	defer c.camMu.Unlock()

	if on == c.camera {
		return nil
	}
	if !on {
		c.cameraOffLocked()
		return nil
	}

	ingress, err := c.newIngress(c.source, c.onConnection)
	if err != nil {
		return fmt.Errorf("create ingress: %w", err)
	}
	c.source.Start()
	if err := ingress.Start(ctx); err != nil {
		c.source.Stop()
		ingress.Close()
		return fmt.Errorf("start ingress: %w", err)
	}

	c.ingress = ingress
	c.camera = true
	c.autopilot.SetDetectionActive(c.objectDetection.Load())
	c.hub.Update(func(s *state.Snapshot) { s.Camera = true })
	c.logger.Info("camera on")
	return nil
}

func (c *Client) cameraOffLocked() {
	c.source.Stop()
	if c.ingress != nil {
		if err := c.ingress.Close(); err != nil {
			c.logger.Warn("ingress close failed", "error", err)
		}
		c.ingress = nil
	}
	c.vision.Cancel()
	c.recorder.Abort()
	c.autopilot.Reset()
	c.camera = false

	c.hub.Update(func(s *state.Snapshot) {
		s.Camera = false
		s.Connected = false
		s.TextAutopilot = false
		s.TextArmed = true
		s.Follow = false
		s.Recording = false
		s.RecordedFrames = 0
		s.Text = ""
		s.Detections = nil
		s.FrameSeq = 0
		s.FrameWidth = 0
		s.FrameHeight = 0
	})
	c.logger.Info("camera off")
}

func (c *Client) CameraOn() bool {
	c.camMu.Lock()
	defer c.camMu.Unlock()
	return c.camera
}

// SetTextRecognition toggles text perception. Disabling it clears the
// recognized text and turns the text autopilot off.
func (c *Client) SetTextRecognition(on bool) {
	c.textRecognition.Store(on)
	if !on {
		c.autopilot.SetTextPolicy(false)
		c.autopilot.ClearText()
	}
	c.hub.Update(func(s *state.Snapshot) { s.TextRecognition = on })
}

func (c *Client) SetTextAutopilot(on bool) {
	c.autopilot.SetTextPolicy(on)
}

// SetObjectDetection toggles object perception. Disabling it clears the
// detections, and an enabled follow policy stops the vehicle.
func (c *Client) SetObjectDetection(on bool) {
	c.objectDetection.Store(on)
	c.autopilot.SetDetectionActive(on)
	if !on {
		c.autopilot.ClearDetections()
	}
	c.hub.Update(func(s *state.Snapshot) { s.ObjectDetection = on })
}

func (c *Client) SetFollow(on bool) {
	c.autopilot.SetFollowPolicy(on, c.autopilot.Detections())
}

// SetRecording opens or closes a recording session and returns its ID.
func (c *Client) SetRecording(on bool) (string, error) {
	if !on {
		id, err := c.recorder.StopSession()
		if err != nil {
			return "", err
		}
		c.hub.Update(func(s *state.Snapshot) {
			s.Recording = false
			s.RecordedFrames = 0
		})
		return id, nil
	}

	if !c.CameraOn() {
		return "", ErrCameraOff
	}
	id, err := c.recorder.StartSession()
	if err != nil {
		return "", err
	}
	c.hub.Update(func(s *state.Snapshot) {
		s.Recording = true
		s.RecordedFrames = 0
	})
	return id, nil
}

// Drive sends a manual command.
func (c *Client) Drive(cmd command.Command) error {
	if !cmd.Valid() {
		return command.ErrUnknownCommand
	}
	c.sender.Send(cmd)
	c.hub.Update(func(s *state.Snapshot) { s.LastCommand = cmd.String() })
	return nil
}

// Joystick maps a joystick offset, normalized to the joystick radius, to a
// command and sends it. Releasing always sends stop. Offsets inside the
// dead zone send nothing.
func (c *Client) Joystick(x, y float64, released bool) (command.Command, bool) {
	cmd := command.Stop
	if !released {
		var ok bool
		cmd, ok = command.FromJoystick(x, y)
		if !ok {
			return command.Stop, false
		}
	}
	c.Drive(cmd)
	return cmd, true
}

func (c *Client) TakePhoto(ctx context.Context) (*gallery.Item, error) {
	if c.photos == nil {
		return nil, ErrNoGallery
	}
	latest := c.source.Latest()
	if latest == nil {
		return nil, ErrNoFrame
	}
	return c.photos.SavePhoto(ctx, latest.Image)
}

// LatestFrameJPEG returns the newest frame as JPEG. The shared frame store
// is only consulted while the camera is on and no frame has been published
// locally yet.
func (c *Client) LatestFrameJPEG(ctx context.Context) ([]byte, error) {
	if latest := c.source.Latest(); latest != nil {
		return frames.EncodeJPEG(latest.Image, latestFrameQuality)
	}
	if c.frameStore == nil || c.archiver == nil || !c.CameraOn() {
		return nil, ErrNoFrame
	}

	stored, err := c.frameStore.GetLatestFrame(ctx, c.archiver.Stream())
	if err != nil {
		c.logger.Debug("frame store read failed", "error", err)
		return nil, ErrNoFrame
	}
	if stored == nil {
		return nil, ErrNoFrame
	}
	return stored.Data, nil
}

// Close turns the camera off and waits for background encodes and frame
// archiving to finish.
func (c *Client) Close() error {
	c.camMu.Lock()
	if c.camera {
		c.cameraOffLocked()
	}
	c.camMu.Unlock()

	for _, unsub := range c.unsubscribe {
		unsub()
	}
	c.vision.Close()
	c.recorder.Wait()
	if c.archiver != nil {
		c.archiver.Wait()
	}
	return nil
}

func (c *Client) onFrame(f *frames.Frame) {
	c.recorder.HandleFrame(f)

	if c.textRecognition.Load() {
		if err := c.vision.SubmitForText(f); err != nil && !errors.Is(err, vision.ErrBusy) {
			c.logger.Debug("text submit skipped", "error", err)
		}
	}
	if c.objectDetection.Load() {
		if err := c.vision.SubmitForObjects(f); err != nil && !errors.Is(err, vision.ErrBusy) {
			c.logger.Debug("object submit skipped", "error", err)
		}
	}

	active := c.recorder.Active()
	recorded := c.recorder.Frames()
	c.hub.Update(func(s *state.Snapshot) {
		s.FrameSeq = f.Seq
		s.FrameWidth = f.Width()
		s.FrameHeight = f.Height()
		if active {
			s.RecordedFrames = recorded
		}
	})
}

func (c *Client) onText(r vision.RecognizedText) {
	if !c.textRecognition.Load() {
		return
	}
	c.autopilot.HandleText(r)
}

func (c *Client) onObjects(r vision.DetectionResult) {
	if !c.objectDetection.Load() {
		return
	}
	c.autopilot.HandleDetections(r)
}

func (c *Client) onAutopilot(s autopilot.State) {
	c.hub.Update(func(snap *state.Snapshot) {
		snap.TextAutopilot = s.TextEnabled
		snap.TextArmed = s.TextArmed
		snap.Follow = s.FollowEnabled
		snap.Text = s.Text
		snap.Detections = s.Detections
		snap.LastCommand = s.LastCommand.String()
	})
}

func (c *Client) onConnection(connected bool) {
	c.logger.Info("vehicle connection changed", "connected", connected)
	c.hub.Update(func(s *state.Snapshot) { s.Connected = connected })
}
