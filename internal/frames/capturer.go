package frames

import (
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
	"golang.org/x/sync/semaphore"
)

const (
	defaultDecodeWorkers = 2
	maxLateSamples       = 64
	videoClockRate       = 90000
)

type CapturerConfig struct {
	Source *Source
	// Stream decodes every sample in order. When it is nil or fails to
	// start, only key frames are decoded with Decoder.
	Stream        StreamDecoder
	Decoder       Decoder
	DecodeWorkers int
	Logger        *slog.Logger
}

// Capturer reassembles VP8 frames from RTP packets and feeds them into a
// Source. With a stream decoder every frame is decoded and the decoded
// pictures are gated; otherwise key frames are gated first and decoded on a
// bounded pool, dropping frames that find the pool saturated.
type Capturer struct {
	source  *Source
	stream  StreamDecoder
	decoder Decoder
	pool    *semaphore.Weighted
	logger  *slog.Logger

	mu            sync.Mutex
	sampleBuilder *samplebuilder.SampleBuilder
	stopped       bool
	needKeyframe  bool
	wg            sync.WaitGroup

	closed    atomic.Bool
	keyframes chan struct{}

	samples      atomic.Uint64
	interDrops   atomic.Uint64
	busyDrops    atomic.Uint64
	decodeErrors atomic.Uint64
}

func NewCapturer(cfg CapturerConfig) *Capturer {
	if cfg.DecodeWorkers <= 0 {
		cfg.DecodeWorkers = defaultDecodeWorkers
	}
	if cfg.Decoder == nil {
		cfg.Decoder = NewVP8Decoder()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Capturer{
		source:        cfg.Source,
		decoder:       cfg.Decoder,
		pool:          semaphore.NewWeighted(int64(cfg.DecodeWorkers)),
		logger:        cfg.Logger.With("component", "frame_capturer"),
		sampleBuilder: samplebuilder.New(maxLateSamples, &codecs.VP8Packet{}, videoClockRate),
		needKeyframe:  true,
		keyframes:     make(chan struct{}, 1),
	}
	if cfg.Stream != nil {
		if err := cfg.Stream.Start(c.deliver); err != nil {
			c.logger.Warn("stream decoder unavailable, decoding key frames only", "error", err)
		} else {
			c.stream = cfg.Stream
		}
	}
	return c
}

// Streaming reports whether inter frames are decoded. When false the peer
// has to be asked for key frames periodically.
func (c *Capturer) Streaming() bool {
	return c.stream != nil
}

// KeyframeRequests signals when the decoder needs a key frame to resume.
func (c *Capturer) KeyframeRequests() <-chan struct{} {
	return c.keyframes
}

func (c *Capturer) requestKeyframe() {
	select {
	case c.keyframes <- struct{}{}:
	default:
	}
}

func (c *Capturer) HandleRTPPacket(pkt *rtp.Packet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	c.sampleBuilder.Push(pkt)
	for {
		sample := c.sampleBuilder.Pop()
		if sample == nil {
			return
		}
		c.samples.Add(1)
		c.handleSample(sample.Data)
	}
}

func (c *Capturer) handleSample(data []byte) {
	if c.stream != nil {
		c.pushSample(data)
		return
	}
	if !IsVP8KeyFrame(data) {
		c.interDrops.Add(1)
		return
	}

	capturedAt, ok := c.source.Admit()
	if !ok {
		return
	}

	if !c.pool.TryAcquire(1) {
		c.busyDrops.Add(1)
		c.source.Discard()
		c.logger.Debug("decode pool saturated, dropping frame")
		return
	}

	payload := make([]byte, len(data))
	copy(payload, data)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.pool.Release(1)

		img, err := c.decoder.Decode(payload)
		if err != nil {
			c.source.Discard()
			c.logger.Debug("frame decode failed", "error", err)
			return
		}
		c.source.Publish(img, capturedAt)
	}()
}

// pushSample feeds the stream decoder. Inter frames are only useful after
// a key frame has been decoded, so until then they are dropped and a key
// frame is requested.
func (c *Capturer) pushSample(data []byte) {
	if c.needKeyframe {
		if !IsVP8KeyFrame(data) {
			c.interDrops.Add(1)
			c.requestKeyframe()
			return
		}
		c.needKeyframe = false
	}

	payload := make([]byte, len(data))
	copy(payload, data)
	if err := c.stream.Push(payload); err != nil {
		c.decodeErrors.Add(1)
		c.needKeyframe = true
		c.requestKeyframe()
		c.logger.Debug("stream decode failed", "error", err)
	}
}

// deliver gates a picture produced by the stream decoder.
func (c *Capturer) deliver(img image.Image) {
	if c.closed.Load() {
		return
	}
	c.source.Offer(img)
}

// Stop discards further packets and waits for pending decodes.
func (c *Capturer) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.wg.Wait()

	c.closed.Store(true)
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			c.logger.Debug("stream decoder close failed", "error", err)
		}
	}
}

type CapturerStats struct {
	Samples      uint64
	InterDrops   uint64
	BusyDrops    uint64
	DecodeErrors uint64
}

func (c *Capturer) Stats() CapturerStats {
	return CapturerStats{
		Samples:      c.samples.Load(),
		InterDrops:   c.interDrops.Load(),
		BusyDrops:    c.busyDrops.Load(),
		DecodeErrors: c.decodeErrors.Load(),
	}
}
