package recording

import (
	"image"
	"time"
)

type EventKind int

const (
	EventTryAgain EventKind = iota
	EventFormatChanged
	EventOutput
	EventEndOfStream
)

func (k EventKind) String() string {
	switch k {
	case EventTryAgain:
		return "try_again"
	case EventFormatChanged:
		return "format_changed"
	case EventOutput:
		return "output"
	case EventEndOfStream:
		return "end_of_stream"
	default:
		return "unknown"
	}
}

// TrackFormat describes the encoded H.264 stream. SPS and PPS are raw NAL
// units without start codes.
type TrackFormat struct {
	Width     int
	Height    int
	Timescale uint32
	SPS       [][]byte
	PPS       [][]byte
}

type Event struct {
	Kind     EventKind
	Format   TrackFormat
	Data     []byte
	KeyFrame bool
}

type EncoderConfig struct {
	Width            int
	Height           int
	FPS              int
	Bitrate          int
	KeyFrameInterval time.Duration
}

// Encoder is an asynchronous H.264 encoder. Input is submitted frame by
// frame; output is polled with Dequeue, which reports a format change once
// before the first encoded access unit.
type Encoder interface {
	Start(cfg EncoderConfig) error
	Submit(img *image.RGBA, ptsMicros int64) error
	EndOfStream() error
	Dequeue(timeout time.Duration) (Event, error)
	Close() error
}

// Sample is one encoded access unit in Annex B byte-stream form.
type Sample struct {
	Data      []byte
	PTSMicros int64
	Duration  int64
	KeyFrame  bool
}

// Muxer writes encoded samples into a container. AddTrack must precede
// Start; samples are accepted only between Start and Stop.
type Muxer interface {
	AddTrack(format TrackFormat) (int, error)
	Start() error
	WriteSample(track int, s Sample) error
	Stop() error
}
