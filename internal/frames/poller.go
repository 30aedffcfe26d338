package frames

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const maxSnapshotBytes = 8 << 20

type PollerConfig struct {
	CaptureURL string
	Interval   time.Duration
	Source     *Source
	Decoder    Decoder
	Client     *http.Client
	Logger     *slog.Logger
}

// Poller fetches still JPEG snapshots from the vehicle's capture endpoint as
// an alternative to the WebRTC stream.
type Poller struct {
	cfg    PollerConfig
	logger *slog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func NewPoller(cfg PollerConfig) (*Poller, error) {
	if cfg.Source == nil {
		return nil, errors.New("poller requires a source")
	}
	if _, err := url.Parse(cfg.CaptureURL); err != nil || cfg.CaptureURL == "" {
		return nil, fmt.Errorf("invalid capture url %q", cfg.CaptureURL)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Millisecond
	}
	if cfg.Decoder == nil {
		cfg.Decoder = JPEGDecoder{}
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 2 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Poller{cfg: cfg, logger: cfg.Logger.With("component", "frame_poller")}, nil
}

func (p *Poller) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return errors.New("poller already started")
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
	return nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Debug("poll failed", "error", err)
			}
		}
	}
}

// pollOnce fetches a snapshot only when the source would admit it, so ticks
// landing inside the admission interval cost no request.
func (p *Poller) pollOnce(ctx context.Context) error {
	at, ok := p.cfg.Source.Admit()
	if !ok {
		return nil
	}
	data, err := p.fetch(ctx, time.Now())
	if err != nil {
		p.cfg.Source.Discard()
		return err
	}

	img, err := p.cfg.Decoder.Decode(data)
	if err != nil {
		p.cfg.Source.Discard()
		return err
	}
	p.cfg.Source.Publish(img, at)
	return nil
}

func (p *Poller) fetch(ctx context.Context, now time.Time) ([]byte, error) {
	u, err := url.Parse(p.cfg.CaptureURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("capture returned %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
}

func (p *Poller) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		cancel, done := p.cancel, p.done
		p.mu.Unlock()
		if cancel != nil {
			cancel()
			<-done
		}
	})
	return nil
}
