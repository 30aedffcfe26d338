package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eleven-am/roverlink/internal/frames"
	"github.com/google/uuid"
)

var (
	ErrSessionActive = errors.New("recording session already active")
	ErrNoSession     = errors.New("no recording session active")
)

// Meta describes a finished recording handed to a Persister.
type Meta struct {
	SessionID string
	Frames    int
	Duration  time.Duration
	StartedAt time.Time
	StoppedAt time.Time
}

type Persister interface {
	Persist(ctx context.Context, path string, meta Meta) error
}

type Result struct {
	SessionID string
	Path      string
	Frames    int
	Err       error
}

type PipelineConfig struct {
	Encode         EncodeConfig
	Accel          Accel
	TmpDir         string
	NewEncoder     func() Encoder
	NewMuxer       func(path string) (Muxer, error)
	Persister      Persister
	PersistTimeout time.Duration
	OnDone         func(Result)
	Logger         *slog.Logger
}

// Pipeline buffers frames while a session is open and encodes them to MP4
// in the background when the session stops.
type Pipeline struct {
	cfg    PipelineConfig
	logger *slog.Logger
	buffer *Buffer

	mu        sync.Mutex
	sessionID string
	startedAt time.Time

	wg sync.WaitGroup
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TmpDir == "" {
		cfg.TmpDir = os.TempDir()
	}
	if cfg.PersistTimeout == 0 {
		cfg.PersistTimeout = 30 * time.Second
	}
	if cfg.NewEncoder == nil {
		logger, accel := cfg.Logger, cfg.Accel
		cfg.NewEncoder = func() Encoder { return NewGstEncoder(accel, logger) }
	}
	if cfg.NewMuxer == nil {
		cfg.NewMuxer = func(path string) (Muxer, error) { return NewMP4Muxer(path) }
	}
	cfg.Encode = cfg.Encode.withDefaults()

	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "recording"),
		buffer: NewBuffer(),
	}
}

func (p *Pipeline) StartSession() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sessionID != "" {
		return "", ErrSessionActive
	}
	p.buffer.Clear()
	p.sessionID = uuid.NewString()
	p.startedAt = time.Now()
	p.logger.Info("recording started", "session_id", p.sessionID)
	return p.sessionID, nil
}

// StopSession closes the open session and starts encoding its frames. A
// session with no frames is closed without producing a file.
func (p *Pipeline) StopSession() (string, error) {
	p.mu.Lock()
	if p.sessionID == "" {
		p.mu.Unlock()
		return "", ErrNoSession
	}
	id := p.sessionID
	startedAt := p.startedAt
	p.sessionID = ""
	items := p.buffer.DrainAndClear()
	p.mu.Unlock()

	if len(items) == 0 {
		p.logger.Info("recording stopped with no frames", "session_id", id)
		return id, nil
	}

	meta := Meta{
		SessionID: id,
		Frames:    len(items),
		Duration:  time.Duration(PTS(len(items), p.cfg.Encode.FPS)) * time.Microsecond,
		StartedAt: startedAt,
		StoppedAt: time.Now(),
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.encode(items, meta)
	}()
	return id, nil
}

// Abort closes any open session and discards its frames.
func (p *Pipeline) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sessionID != "" {
		p.logger.Info("recording aborted", "session_id", p.sessionID, "frames", p.buffer.Len())
	}
	p.sessionID = ""
	p.buffer.Clear()
}

func (p *Pipeline) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID != ""
}

func (p *Pipeline) Frames() int {
	return p.buffer.Len()
}

// HandleFrame appends the frame to the open session. It is a frames.Handler.
func (p *Pipeline) HandleFrame(f *frames.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionID == "" {
		return
	}
	p.buffer.Append(f)
}

// Wait blocks until every background encode has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) encode(items []*frames.Frame, meta Meta) {
	logger := p.logger.With("session_id", meta.SessionID, "frames", meta.Frames)
	path := filepath.Join(p.cfg.TmpDir, fmt.Sprintf("rover_%s.mp4", meta.SessionID))
	result := Result{SessionID: meta.SessionID, Frames: meta.Frames}

	started := time.Now()
	written, err := p.encodeFile(path, items)
	if err != nil {
		os.Remove(path)
		logger.Error("recording encode failed", "error", err, "written", written)
		result.Err = err
		p.done(result)
		return
	}

	logger.Info("recording encoded", "path", path, "samples", written, "elapsed", time.Since(started))
	result.Path = path
	result.Frames = written

	if p.cfg.Persister != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PersistTimeout)
			defer cancel()
			if err := p.cfg.Persister.Persist(ctx, path, meta); err != nil {
				logger.Error("recording persist failed", "path", path, "error", err)
			}
		}()
	}
	p.done(result)
}

func (p *Pipeline) encodeFile(path string, items []*frames.Frame) (int, error) {
	enc := p.cfg.NewEncoder()
	defer enc.Close()

	mux, err := p.cfg.NewMuxer(path)
	if err != nil {
		return 0, fmt.Errorf("create muxer: %w", err)
	}

	written, err := Encode(context.Background(), items, p.cfg.Encode, enc, mux)
	if err != nil {
		if c, ok := mux.(io.Closer); ok {
			c.Close()
		}
		return written, err
	}
	return written, nil
}

func (p *Pipeline) done(r Result) {
	if p.cfg.OnDone != nil {
		p.cfg.OnDone(r)
	}
}
