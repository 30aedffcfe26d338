package frames

import (
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

type Handler func(frame *Frame)

type SourceConfig struct {
	MinInterval time.Duration
	Clock       clock.Clock
	Logger      *slog.Logger
}

type Stats struct {
	Offered  uint64
	Admitted uint64
	Dropped  uint64
}

type subscription struct {
	name    string
	handler Handler
}

// Source gates incoming frames and publishes admitted ones to every
// subscriber on the caller's goroutine. Subscribers must hand work off
// rather than block.
type Source struct {
	gate   *Gate
	clock  clock.Clock
	logger *slog.Logger

	pubMu         sync.Mutex
	lastPublished time.Time

	mu      sync.RWMutex
	subs    map[int]subscription
	nextID  int
	running bool

	seq      atomic.Uint64
	latest   atomic.Pointer[Frame]
	offered  atomic.Uint64
	admitted atomic.Uint64
	dropped  atomic.Uint64
}

func NewSource(cfg SourceConfig) *Source {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Source{
		gate:   NewGate(cfg.MinInterval),
		clock:  cfg.Clock,
		logger: cfg.Logger.With("component", "frame_source"),
		subs:   make(map[int]subscription),
	}
}

func (s *Source) Subscribe(name string, h Handler) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = subscription{name: name, handler: h}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Source) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.gate.Reset()
	s.latest.Store(nil)
	s.running = true
	s.logger.Info("frame source started", "min_interval", s.gate.MinInterval())
}

// Stop halts publication and forgets the latest frame. When it returns no
// subscriber is being invoked and none will be until the next Start.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.latest.Store(nil)
	s.logger.Info("frame source stopped",
		"offered", s.offered.Load(), "admitted", s.admitted.Load(), "dropped", s.dropped.Load())
}

func (s *Source) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Admit reserves a publication slot for a frame captured now. Producers
// with expensive decoding call it before decoding and Publish afterwards.
func (s *Source) Admit() (time.Time, bool) {
	now := s.clock.Now()
	s.offered.Add(1)
	if !s.Running() || !s.gate.Admit(now) {
		s.dropped.Add(1)
		return now, false
	}
	return now, true
}

// Publish delivers a frame admitted at capturedAt. Frames finishing after a
// later admitted frame was already published are dropped so subscribers
// always observe admission order.
func (s *Source) Publish(img image.Image, capturedAt time.Time) {
	if img == nil {
		s.dropped.Add(1)
		return
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if !capturedAt.After(s.lastPublished) {
		s.dropped.Add(1)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		s.dropped.Add(1)
		return
	}
	s.lastPublished = capturedAt

	frame := &Frame{
		Seq:        s.seq.Add(1),
		Image:      ToRGBA(img),
		CapturedAt: capturedAt,
	}
	s.latest.Store(frame)
	s.admitted.Add(1)

	for _, sub := range s.subs {
		sub.handler(frame)
	}
}

// Offer gates and publishes an already decoded image.
func (s *Source) Offer(img image.Image) bool {
	at, ok := s.Admit()
	if !ok {
		return false
	}
	s.Publish(img, at)
	return true
}

// Discard records an admitted frame that could not be produced.
func (s *Source) Discard() {
	s.dropped.Add(1)
}

func (s *Source) Latest() *Frame {
	return s.latest.Load()
}

func (s *Source) Stats() Stats {
	return Stats{
		Offered:  s.offered.Load(),
		Admitted: s.admitted.Load(),
		Dropped:  s.dropped.Load(),
	}
}
