package autopilot

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/eleven-am/roverlink/internal/command"
	"github.com/eleven-am/roverlink/internal/vision"
)

const (
	DefaultTextFireDuration = 1500 * time.Millisecond
	DefaultTextRearmDelay   = 500 * time.Millisecond
)

type Config struct {
	TextFireDuration time.Duration
	TextRearmDelay   time.Duration
	LeftThreshold    float64
	RightThreshold   float64
	Clock            clock.Clock
	Logger           *slog.Logger
}

type State struct {
	TextEnabled     bool               `json:"text_enabled"`
	TextArmed       bool               `json:"text_armed"`
	FollowEnabled   bool               `json:"follow_enabled"`
	DetectionActive bool               `json:"detection_active"`
	Text            string             `json:"text"`
	Detections      []vision.Detection `json:"detections"`
	LastCommand     command.Command    `json:"last_command"`
}

// Controller turns perception results into drive commands under two
// independent policies. The text policy fires one command per recognized
// keyword and stops the vehicle after a fixed duration. The follow policy
// steers toward the first detected object on every detection update.
type Controller struct {
	cfg      Config
	sender   command.Sender
	onChange func(State)
	logger   *slog.Logger

	mu              sync.Mutex
	textEnabled     bool
	armed           bool
	followEnabled   bool
	detectionActive bool
	text            string
	detections      vision.DetectionResult
	lastCommand     command.Command
	stopPending     bool
	epoch           uint64
	timers          []*clock.Timer
}

func NewController(cfg Config, sender command.Sender, onChange func(State)) *Controller {
	if cfg.TextFireDuration <= 0 {
		cfg.TextFireDuration = DefaultTextFireDuration
	}
	if cfg.TextRearmDelay <= 0 {
		cfg.TextRearmDelay = DefaultTextRearmDelay
	}
	if cfg.LeftThreshold == 0 {
		cfg.LeftThreshold = DefaultLeftThreshold
	}
	if cfg.RightThreshold == 0 {
		cfg.RightThreshold = DefaultRightThreshold
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		cfg:         cfg,
		sender:      sender,
		onChange:    onChange,
		logger:      cfg.Logger.With("component", "autopilot"),
		armed:       true,
		lastCommand: command.Stop,
	}
}

func (c *Controller) HandleText(result vision.RecognizedText) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.text = result.Text
	if c.textEnabled && c.armed {
		if cmd, ok := MatchText(result.Text); ok {
			c.fireText(cmd)
		}
	}
	c.notifyLocked()
}

func (c *Controller) fireText(cmd command.Command) {
	c.armed = false
	c.stopPending = true
	c.sendLocked(cmd, "text")

	epoch := c.epoch
	c.timers = append(c.timers, c.cfg.Clock.AfterFunc(c.cfg.TextFireDuration, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epoch != epoch {
			return
		}
		c.stopPending = false
		c.sendLocked(command.Stop, "text")

		c.timers = append(c.timers, c.cfg.Clock.AfterFunc(c.cfg.TextRearmDelay, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.epoch != epoch {
				return
			}
			c.text = ""
			c.armed = true
			c.timers = nil
			c.notifyLocked()
		}))
	}))
}

// HandleDetections records the latest detections and, when following,
// steers toward them. Results arriving while detection is inactive are
// late deliveries and are dropped.
func (c *Controller) HandleDetections(result vision.DetectionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.detectionActive {
		return
	}
	c.detections = result
	if c.followEnabled {
		c.evaluateFollowLocked(result)
	}
	c.notifyLocked()
}

// Detections returns the most recent detection result.
func (c *Controller) Detections() vision.DetectionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detections
}

func (c *Controller) evaluateFollowLocked(result vision.DetectionResult) {
	if !c.detectionActive {
		c.sendLocked(command.Stop, "follow")
		return
	}
	c.sendLocked(FollowDecision(result, c.cfg.LeftThreshold, c.cfg.RightThreshold), "follow")
}

// SetTextPolicy enables or disables the text policy. Disabling clears the
// recognized text without stopping the vehicle; a stop already scheduled by
// an earlier match still fires.
func (c *Controller) SetTextPolicy(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.textEnabled == enabled {
		return
	}
	c.textEnabled = enabled
	if !enabled {
		c.text = ""
	}
	c.notifyLocked()
}

// SetFollowPolicy enables the follow policy and evaluates it against the
// latest detections, or disables it with one final stop.
func (c *Controller) SetFollowPolicy(enabled bool, latest vision.DetectionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.followEnabled == enabled {
		return
	}
	c.followEnabled = enabled
	if enabled {
		c.evaluateFollowLocked(latest)
	} else {
		c.sendLocked(command.Stop, "follow")
	}
	c.notifyLocked()
}

// SetDetectionActive records whether object detection is running. Turning
// it off while following re-evaluates the follow policy, which stops.
func (c *Controller) SetDetectionActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detectionActive == active {
		return
	}
	c.detectionActive = active
	if !active && c.followEnabled {
		c.evaluateFollowLocked(vision.DetectionResult{})
	}
	c.notifyLocked()
}

func (c *Controller) ClearText() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = ""
	c.notifyLocked()
}

func (c *Controller) ClearDetections() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detections = vision.DetectionResult{}
	c.notifyLocked()
}

// Reset cancels pending timers and returns both policies to their initial
// state. If either policy could still be driving the vehicle a single stop
// is sent; no command follows it.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil

	if c.stopPending || c.followEnabled {
		c.sendLocked(command.Stop, "reset")
	}

	c.textEnabled = false
	c.armed = true
	c.followEnabled = false
	c.detectionActive = false
	c.stopPending = false
	c.text = ""
	c.detections = vision.DetectionResult{}
	c.notifyLocked()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	return State{
		TextEnabled:     c.textEnabled,
		TextArmed:       c.armed,
		FollowEnabled:   c.followEnabled,
		DetectionActive: c.detectionActive,
		Text:            c.text,
		Detections:      c.detections.Detections,
		LastCommand:     c.lastCommand,
	}
}

func (c *Controller) sendLocked(cmd command.Command, policy string) {
	c.lastCommand = cmd
	c.logger.Debug("autopilot command", "policy", policy, "command", cmd.String())
	if c.sender != nil {
		c.sender.Send(cmd)
	}
}

func (c *Controller) notifyLocked() {
	if c.onChange != nil {
		c.onChange(c.stateLocked())
	}
}
