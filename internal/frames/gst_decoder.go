package frames

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

var ErrDecoderNotStarted = errors.New("decoder not started")

// StreamDecoder decodes a continuous compressed stream. Every sample must be
// pushed in arrival order; decoded pictures are handed to the deliver
// function given to Start, possibly on another goroutine.
type StreamDecoder interface {
	Start(deliver func(image.Image)) error
	Push(data []byte) error
	Close() error
}

const vp8DecodePipeline = "appsrc name=src is-live=true do-timestamp=true format=time block=false caps=video/x-vp8 ! " +
	"vp8dec ! videoconvert ! video/x-raw,format=RGBA ! " +
	"appsink name=sink sync=false max-buffers=1 drop=true"

// GstVP8Decoder decodes VP8 key and inter frames with
// appsrc ! vp8dec ! videoconvert ! appsink.
type GstVP8Decoder struct {
	logger *slog.Logger

	mu       sync.Mutex
	pipeline *gst.Pipeline
	src      *app.Source
}

func NewGstVP8Decoder(logger *slog.Logger) *GstVP8Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &GstVP8Decoder{logger: logger.With("component", "vp8-decoder")}
}

func (d *GstVP8Decoder) Start(deliver func(image.Image)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pipeline != nil {
		return errors.New("decoder already started")
	}

	gst.Init(nil)
	pipeline, err := gst.NewPipelineFromString(vp8DecodePipeline)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	srcElem, err := pipeline.GetElementByName("src")
	if err != nil {
		return fmt.Errorf("lookup appsrc: %w", err)
	}
	sinkElem, err := pipeline.GetElementByName("sink")
	if err != nil {
		return fmt.Errorf("lookup appsink: %w", err)
	}

	sink := app.SinkFromElement(sinkElem)
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(s *app.Sink) gst.FlowReturn {
			sample := s.PullSample()
			if sample == nil {
				return gst.FlowOK
			}
			if img := sampleToRGBA(sample); img != nil {
				deliver(img)
			}
			return gst.FlowOK
		},
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return fmt.Errorf("start pipeline: %w", err)
	}

	d.pipeline = pipeline
	d.src = app.SrcFromElement(srcElem)
	d.logger.Info("vp8 decoder started")
	return nil
}

// Push queues one depacketized VP8 frame. After a pipeline error the
// pipeline is restarted and the error returned; the caller resumes from the
// next key frame.
func (d *GstVP8Decoder) Push(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.src == nil {
		return ErrDecoderNotStarted
	}
	if err := d.busError(); err != nil {
		if rerr := d.restartLocked(); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	if ret := d.src.PushBuffer(gst.NewBufferFromBytes(data)); ret != gst.FlowOK {
		return fmt.Errorf("push buffer: %v", ret)
	}
	return nil
}

func (d *GstVP8Decoder) restartLocked() error {
	if err := d.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("reset pipeline: %w", err)
	}
	if err := d.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("restart pipeline: %w", err)
	}
	return nil
}

func (d *GstVP8Decoder) busError() error {
	bus := d.pipeline.GetPipelineBus()
	for {
		msg := bus.Pop()
		if msg == nil {
			return nil
		}
		if msg.Type() == gst.MessageError {
			gerr := msg.ParseError()
			d.logger.Warn("decoder pipeline error", "error", gerr.Error(), "debug", gerr.DebugString())
			return fmt.Errorf("%w: %s", ErrUndecodable, gerr.Error())
		}
	}
}

func (d *GstVP8Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pipeline == nil {
		return nil
	}
	err := d.pipeline.SetState(gst.StateNull)
	d.pipeline = nil
	d.src = nil
	return err
}

func sampleToRGBA(sample *gst.Sample) *image.RGBA {
	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return nil
	}
	st := caps.GetStructureAt(0)
	width, height := structInt(st, "width"), structInt(st, "height")

	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil
	}
	info := buffer.Map(gst.MapRead)
	defer buffer.Unmap()
	return rgbaFromPacked(info.Bytes(), width, height)
}

func structInt(st *gst.Structure, field string) int {
	v, err := st.GetValue(field)
	if err != nil {
		return 0
	}
	n, _ := v.(int)
	return n
}

// rgbaFromPacked copies tightly packed RGBA rows into a new image. It
// returns nil when data is too short for the given size.
func rgbaFromPacked(data []byte, width, height int) *image.RGBA {
	if width <= 0 || height <= 0 || len(data) < width*height*4 {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, data[:width*height*4])
	return img
}
