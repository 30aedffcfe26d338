package frames

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type ArchiverConfig struct {
	Stream   string
	Interval time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Archiver copies published frames into the Store at a reduced rate so the
// latest picture stays readable by other processes.
type Archiver struct {
	store    *Store
	stream   string
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastSave time.Time
	busy     atomic.Bool
	wg       sync.WaitGroup
}

func NewArchiver(store *Store, cfg ArchiverConfig) *Archiver {
	if cfg.Stream == "" {
		cfg.Stream = "live"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Archiver{
		store:    store,
		stream:   cfg.Stream,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger.With("component", "frame_archiver", "stream", cfg.Stream),
	}
}

func (a *Archiver) Stream() string {
	return a.stream
}

func (a *Archiver) HandleFrame(frame *Frame) {
	a.mu.Lock()
	if frame.CapturedAt.Sub(a.lastSave) < a.interval {
		a.mu.Unlock()
		return
	}
	a.lastSave = frame.CapturedAt
	a.mu.Unlock()

	if !a.busy.CompareAndSwap(false, true) {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.busy.Store(false)
		a.save(frame)
	}()
}

func (a *Archiver) save(frame *Frame) {
	data, err := EncodeJPEG(frame.Image, 80)
	if err != nil {
		a.logger.Debug("jpeg encode failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	err = a.store.StoreFrame(ctx, &StoredFrame{
		Stream:    a.stream,
		Seq:       frame.Seq,
		Timestamp: frame.CapturedAt.UnixMilli(),
		Width:     frame.Width(),
		Height:    frame.Height(),
		Data:      data,
	})
	if err != nil {
		a.logger.Warn("store frame failed", "error", err)
	}
}

func (a *Archiver) Wait() {
	a.wg.Wait()
}
