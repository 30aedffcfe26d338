package vision

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/roverlink/internal/frames"
)

var (
	ErrBusy         = errors.New("capability busy")
	ErrNoCapability = errors.New("capability not configured")
)

type PipelineConfig struct {
	Recognizer TextRecognizer
	Detector   ObjectDetector
	OnText     func(RecognizedText)
	OnObjects  func(DetectionResult)
	Timeout    time.Duration
	Logger     *slog.Logger
}

type capability struct {
	name     string
	busy     atomic.Bool
	started  atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
	stale    atomic.Uint64
	finished atomic.Uint64
}

// Pipeline runs each perception capability with at most one request in
// flight. Submissions that find the capability busy are dropped. Results of
// requests started before the last Cancel are discarded.
type Pipeline struct {
	cfg    PipelineConfig
	logger *slog.Logger

	text    capability
	objects capability

	mu         sync.RWMutex
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "vision_pipeline"),
		text:    capability{name: "text"},
		objects: capability{name: "objects"},
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (p *Pipeline) SubmitForText(frame *frames.Frame) error {
	if p.cfg.Recognizer == nil {
		return ErrNoCapability
	}
	return p.submit(&p.text, frame, func(ctx context.Context) (func(), error) {
		raw, err := p.cfg.Recognizer.RecognizeText(ctx, frame.Image)
		if err != nil {
			return nil, err
		}
		result := RecognizedText{Text: FirstLine(raw), FrameSeq: frame.Seq, At: time.Now()}
		return func() {
			if p.cfg.OnText != nil {
				p.cfg.OnText(result)
			}
		}, nil
	})
}

func (p *Pipeline) SubmitForObjects(frame *frames.Frame) error {
	if p.cfg.Detector == nil {
		return ErrNoCapability
	}
	return p.submit(&p.objects, frame, func(ctx context.Context) (func(), error) {
		detections, err := p.cfg.Detector.DetectObjects(ctx, frame.Image)
		if err != nil {
			return nil, err
		}
		result := DetectionResult{
			Detections:  detections,
			FrameWidth:  frame.Width(),
			FrameHeight: frame.Height(),
			FrameSeq:    frame.Seq,
			At:          time.Now(),
		}
		return func() {
			if p.cfg.OnObjects != nil {
				p.cfg.OnObjects(result)
			}
		}, nil
	})
}

func (p *Pipeline) submit(c *capability, frame *frames.Frame, run func(context.Context) (func(), error)) error {
	if frame == nil || frame.Image == nil {
		return frames.ErrUndecodable
	}
	if !c.busy.CompareAndSwap(false, true) {
		c.dropped.Add(1)
		return ErrBusy
	}

	p.mu.RLock()
	gen := p.generation
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	p.wg.Add(1)
	p.mu.RUnlock()

	c.started.Add(1)
	go func() {
		defer p.wg.Done()
		defer c.busy.Store(false)
		defer cancel()

		deliver, err := run(ctx)
		if err != nil {
			if ctx.Err() == nil || !errors.Is(err, context.Canceled) {
				c.failed.Add(1)
				p.logger.Warn("perception request failed", "capability", c.name, "frame_seq", frame.Seq, "error", err)
			}
			return
		}

		p.mu.RLock()
		defer p.mu.RUnlock()
		if gen != p.generation {
			c.stale.Add(1)
			p.logger.Debug("discarding stale result", "capability", c.name, "frame_seq", frame.Seq)
			return
		}
		c.finished.Add(1)
		deliver()
	}()
	return nil
}

// Cancel aborts in-flight requests. When it returns no result from a
// request submitted earlier will be delivered.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.cancel()
	p.ctx, p.cancel = context.WithCancel(context.Background())
}

func (p *Pipeline) InFlight() (text, objects bool) {
	return p.text.busy.Load(), p.objects.busy.Load()
}

// Close cancels outstanding requests and waits for their goroutines.
func (p *Pipeline) Close() {
	p.Cancel()
	p.wg.Wait()
}

type CapabilityStats struct {
	Started  uint64 `json:"started"`
	Finished uint64 `json:"finished"`
	Dropped  uint64 `json:"dropped"`
	Failed   uint64 `json:"failed"`
	Stale    uint64 `json:"stale"`
}

func (c *capability) stats() CapabilityStats {
	return CapabilityStats{
		Started:  c.started.Load(),
		Finished: c.finished.Load(),
		Dropped:  c.dropped.Load(),
		Failed:   c.failed.Load(),
		Stale:    c.stale.Load(),
	}
}

func (p *Pipeline) Stats() (text, objects CapabilityStats) {
	return p.text.stats(), p.objects.stats()
}
