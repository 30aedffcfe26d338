package recording

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/eleven-am/roverlink/internal/frames"
	"golang.org/x/image/draw"
)

const (
	DefaultWidth   = 640
	DefaultHeight  = 480
	DefaultFPS     = 20
	DefaultBitrate = 1_500_000

	dequeueTimeout      = 5 * time.Millisecond
	defaultDrainTimeout = 10 * time.Second
	microsPerSecond     = 1_000_000
)

var ErrNoOutput = errors.New("encoder produced no output")

type EncodeConfig struct {
	Width        int
	Height       int
	FPS          int
	Bitrate      int
	DrainTimeout time.Duration
}

func (c EncodeConfig) withDefaults() EncodeConfig {
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	if c.FPS <= 0 {
		c.FPS = DefaultFPS
	}
	if c.Bitrate <= 0 {
		c.Bitrate = DefaultBitrate
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = defaultDrainTimeout
	}
	return c
}

// PTS returns the presentation time of the i-th sample in microseconds.
func PTS(i, fps int) int64 {
	return int64(i) * microsPerSecond / int64(fps)
}

// Scale stretches img to exactly width x height.
func Scale(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

type encodeState struct {
	cfg     EncodeConfig
	enc     Encoder
	mux     Muxer
	track   int
	started bool
	written int
}

// Encode drives enc over the frames and writes every produced sample to
// mux, returning the number of samples written. The muxer track is created
// from the encoder's first format change. Any error aborts the encode.
func Encode(ctx context.Context, items []*frames.Frame, cfg EncodeConfig, enc Encoder, mux Muxer) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	cfg = cfg.withDefaults()
	s := &encodeState{cfg: cfg, enc: enc, mux: mux, track: -1}

	if err := enc.Start(EncoderConfig{
		Width:            cfg.Width,
		Height:           cfg.Height,
		FPS:              cfg.FPS,
		Bitrate:          cfg.Bitrate,
		KeyFrameInterval: time.Second,
	}); err != nil {
		return 0, fmt.Errorf("start encoder: %w", err)
	}

	for i, f := range items {
		if err := ctx.Err(); err != nil {
			return s.written, err
		}
		if err := enc.Submit(Scale(f.Image, cfg.Width, cfg.Height), PTS(i, cfg.FPS)); err != nil {
			return s.written, fmt.Errorf("submit frame %d: %w", i, err)
		}
		if err := s.drainOne(); err != nil {
			return s.written, err
		}
	}

	if err := enc.EndOfStream(); err != nil {
		return s.written, fmt.Errorf("signal end of stream: %w", err)
	}
	if err := s.drainAll(ctx); err != nil {
		return s.written, err
	}

	if !s.started {
		return 0, ErrNoOutput
	}
	if err := mux.Stop(); err != nil {
		return s.written, fmt.Errorf("finalize muxer: %w", err)
	}
	return s.written, nil
}

// drainOne polls until one output is written or the encoder has nothing
// ready. Format changes do not end the loop.
func (s *encodeState) drainOne() error {
	for {
		ev, err := s.enc.Dequeue(dequeueTimeout)
		if err != nil {
			return fmt.Errorf("dequeue: %w", err)
		}
		switch ev.Kind {
		case EventFormatChanged:
			if err := s.startTrack(ev.Format); err != nil {
				return err
			}
		case EventOutput:
			return s.write(ev)
		case EventTryAgain, EventEndOfStream:
			return nil
		}
	}
}

func (s *encodeState) drainAll(ctx context.Context) error {
	deadline := time.Now().Add(s.cfg.DrainTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("encoder did not reach end of stream within %v", s.cfg.DrainTimeout)
		}
		ev, err := s.enc.Dequeue(dequeueTimeout)
		if err != nil {
			return fmt.Errorf("dequeue: %w", err)
		}
		switch ev.Kind {
		case EventFormatChanged:
			if err := s.startTrack(ev.Format); err != nil {
				return err
			}
		case EventOutput:
			if err := s.write(ev); err != nil {
				return err
			}
		case EventEndOfStream:
			return nil
		}
	}
}

func (s *encodeState) startTrack(format TrackFormat) error {
	if s.started {
		return nil
	}
	if format.Width == 0 {
		format.Width = s.cfg.Width
	}
	if format.Height == 0 {
		format.Height = s.cfg.Height
	}
	if format.Timescale == 0 {
		format.Timescale = microsPerSecond
	}
	track, err := s.mux.AddTrack(format)
	if err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	if err := s.mux.Start(); err != nil {
		return fmt.Errorf("start muxer: %w", err)
	}
	s.track = track
	s.started = true
	return nil
}

func (s *encodeState) write(ev Event) error {
	if !s.started {
		return fmt.Errorf("encoder output before format change")
	}
	sample := Sample{
		Data:      ev.Data,
		PTSMicros: PTS(s.written, s.cfg.FPS),
		Duration:  PTS(1, s.cfg.FPS),
		KeyFrame:  ev.KeyFrame,
	}
	if err := s.mux.WriteSample(s.track, sample); err != nil {
		return fmt.Errorf("write sample %d: %w", s.written, err)
	}
	s.written++
	return nil
}
