package recording

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

var ErrEncoderNotStarted = errors.New("encoder not started")

type Accel string

const (
	AccelAuto     Accel = "auto"
	AccelVAAPI    Accel = "vaapi"
	AccelSoftware Accel = "software"
)

// GstEncoder produces H.264 byte-stream access units from RGBA frames using
// a GStreamer appsrc ! encoder ! appsink pipeline. VAAPI is used when the
// element is available and x264 otherwise.
type GstEncoder struct {
	logger *slog.Logger
	accel  Accel

	mu         sync.Mutex
	pipeline   *gst.Pipeline
	src        *app.Source
	sink       *app.Sink
	cfg        EncoderConfig
	formatSent bool
	pending    *Event
	eos        bool
	usingVAAPI bool
}

func NewGstEncoder(accel Accel, logger *slog.Logger) *GstEncoder {
	if logger == nil {
		logger = slog.Default()
	}
	if accel == "" {
		accel = AccelAuto
	}
	return &GstEncoder{accel: accel, logger: logger.With("component", "gst-encoder")}
}

func (e *GstEncoder) UsingVAAPI() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usingVAAPI
}

func (e *GstEncoder) Start(cfg EncoderConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pipeline != nil {
		return errors.New("encoder already started")
	}

	gst.Init(nil)

	var (
		pipeline *gst.Pipeline
		vaapi    bool
		err      error
	)
	if e.accel != AccelSoftware {
		pipeline, err = gst.NewPipelineFromString(pipelineDescription(cfg, true))
		if err == nil {
			vaapi = true
		} else if e.accel == AccelVAAPI {
			return fmt.Errorf("create vaapi pipeline: %w", err)
		} else {
			e.logger.Warn("vaapi encoder unavailable, using x264", "error", err)
		}
	}
	if pipeline == nil {
		pipeline, err = gst.NewPipelineFromString(pipelineDescription(cfg, false))
		if err != nil {
			return fmt.Errorf("create pipeline: %w", err)
		}
	}

	srcElem, err := pipeline.GetElementByName("src")
	if err != nil {
		return fmt.Errorf("lookup appsrc: %w", err)
	}
	sinkElem, err := pipeline.GetElementByName("sink")
	if err != nil {
		return fmt.Errorf("lookup appsink: %w", err)
	}
	src := app.SrcFromElement(srcElem)
	src.SetFormat(gst.FormatTime)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	e.pipeline = pipeline
	e.src = src
	e.sink = app.SinkFromElement(sinkElem)
	e.cfg = cfg
	e.usingVAAPI = vaapi
	e.formatSent = false
	e.eos = false
	e.logger.Info("encoder started",
		"width", cfg.Width,
		"height", cfg.Height,
		"fps", cfg.FPS,
		"bitrate", cfg.Bitrate,
		"vaapi", vaapi,
	)
	return nil
}

// pipelineDescription builds the launch line
// appsrc ! videoconvert ! <h264 encoder> ! h264parse ! appsink.
func pipelineDescription(cfg EncoderConfig, vaapi bool) string {
	kbps := cfg.Bitrate / 1000
	period := cfg.FPS
	if cfg.KeyFrameInterval > 0 {
		period = int(cfg.KeyFrameInterval.Seconds() * float64(cfg.FPS))
		if period < 1 {
			period = 1
		}
	}

	encoder := fmt.Sprintf(
		"x264enc bitrate=%d key-int-max=%d bframes=0 byte-stream=true speed-preset=ultrafast tune=zerolatency",
		kbps, period,
	)
	if vaapi {
		encoder = fmt.Sprintf("vaapih264enc bitrate=%d keyframe-period=%d", kbps, period)
	}

	return fmt.Sprintf(
		"appsrc name=src is-live=false block=true format=time "+
			`caps="video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/1" ! `+
			"videoconvert ! %s ! h264parse config-interval=-1 ! "+
			"video/x-h264,stream-format=byte-stream,alignment=au ! "+
			"appsink name=sink sync=false emit-signals=false",
		cfg.Width, cfg.Height, cfg.FPS, encoder,
	)
}

func (e *GstEncoder) Submit(img *image.RGBA, ptsMicros int64) error {
	e.mu.Lock()
	src := e.src
	fps := e.cfg.FPS
	e.mu.Unlock()

	if src == nil {
		return ErrEncoderNotStarted
	}

	buf := gst.NewBufferFromBytes(packRGBA(img))
	buf.SetPresentationTimestamp(time.Duration(ptsMicros) * time.Microsecond)
	buf.SetDuration(time.Second / time.Duration(fps))

	if ret := src.PushBuffer(buf); ret != gst.FlowOK {
		return fmt.Errorf("push buffer: %v", ret)
	}
	return nil
}

// packRGBA returns the pixel rows without stride padding.
func packRGBA(img *image.RGBA) []byte {
	b := img.Bounds()
	row := b.Dx() * 4
	if img.Stride == row && b.Min == (image.Point{}) {
		return img.Pix[:row*b.Dy()]
	}
	out := make([]byte, 0, row*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		out = append(out, img.Pix[off:off+row]...)
	}
	return out
}

func (e *GstEncoder) EndOfStream() error {
	e.mu.Lock()
	src := e.src
	e.mu.Unlock()

	if src == nil {
		return ErrEncoderNotStarted
	}
	if ret := src.EndStream(); ret != gst.FlowOK {
		return fmt.Errorf("end stream: %v", ret)
	}
	return nil
}

// Dequeue returns the next encoder event. The first access unit is reported
// as a format change carrying SPS and PPS, and is returned as output on the
// following call.
func (e *GstEncoder) Dequeue(timeout time.Duration) (Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sink == nil {
		return Event{}, ErrEncoderNotStarted
	}
	if err := e.busError(); err != nil {
		return Event{}, err
	}
	if e.pending != nil {
		ev := *e.pending
		e.pending = nil
		return ev, nil
	}
	if e.eos {
		return Event{Kind: EventEndOfStream}, nil
	}

	sample := e.sink.TryPullSample(timeout)
	if sample == nil {
		if e.sink.IsEOS() {
			e.eos = true
			return Event{Kind: EventEndOfStream}, nil
		}
		return Event{Kind: EventTryAgain}, nil
	}

	data := copySample(sample)
	if len(data) == 0 {
		return Event{Kind: EventTryAgain}, nil
	}

	out := Event{
		Kind:     EventOutput,
		Data:     data,
		KeyFrame: isKeyFrame(data),
	}

	if !e.formatSent {
		sps := avc.ExtractNalusOfTypeFromByteStream(avc.NALU_SPS, data, false)
		pps := avc.ExtractNalusOfTypeFromByteStream(avc.NALU_PPS, data, false)
		if len(sps) == 0 || len(pps) == 0 {
			return Event{}, errors.New("first access unit carries no parameter sets")
		}
		e.formatSent = true
		e.pending = &out
		return Event{
			Kind: EventFormatChanged,
			Format: TrackFormat{
				Width:     e.cfg.Width,
				Height:    e.cfg.Height,
				Timescale: microsPerSecond,
				SPS:       sps,
				PPS:       pps,
			},
		}, nil
	}
	return out, nil
}

func copySample(sample *gst.Sample) []byte {
	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil
	}
	info := buffer.Map(gst.MapRead)
	defer buffer.Unmap()
	data := info.Bytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

func isKeyFrame(annexB []byte) bool {
	return len(avc.ExtractNalusOfTypeFromByteStream(avc.NALU_IDR, annexB, true)) > 0
}

func (e *GstEncoder) busError() error {
	bus := e.pipeline.GetPipelineBus()
	for {
		msg := bus.Pop()
		if msg == nil {
			return nil
		}
		if msg.Type() == gst.MessageError {
			gerr := msg.ParseError()
			e.logger.Error("encoder pipeline error", "error", gerr.Error(), "debug", gerr.DebugString())
			return fmt.Errorf("encoder pipeline: %s", gerr.Error())
		}
	}
}

func (e *GstEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pipeline == nil {
		return nil
	}
	err := e.pipeline.SetState(gst.StateNull)
	e.pipeline = nil
	e.src = nil
	e.sink = nil
	e.pending = nil
	return err
}
