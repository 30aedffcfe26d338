package recording

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/Eyevinn/mp4ff/mp4"
)

var (
	ErrTrackExists    = errors.New("track already added")
	ErrMuxerNotReady  = errors.New("muxer not started")
	ErrUnknownTrack   = errors.New("unknown track")
	ErrMuxerFinalized = errors.New("muxer already stopped")
)

// MP4Muxer writes a single H.264 track as fragmented MP4, one fragment per
// sample, with a microsecond timescale.
type MP4Muxer struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	w       *bufio.Writer
	init    *mp4.InitSegment
	trackID uint32
	seq     uint32
	started bool
	stopped bool
	samples int
}

func NewMP4Muxer(path string) (*MP4Muxer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &MP4Muxer{path: path, file: f, w: bufio.NewWriter(f)}, nil
}

func (m *MP4Muxer) Path() string {
	return m.path
}

func (m *MP4Muxer) AddTrack(format TrackFormat) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.init != nil {
		return 0, ErrTrackExists
	}
	if len(format.SPS) == 0 || len(format.PPS) == 0 {
		return 0, errors.New("track format needs SPS and PPS")
	}
	timescale := format.Timescale
	if timescale == 0 {
		timescale = microsPerSecond
	}

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "und")
	trak := init.Moov.Trak
	if err := trak.SetAVCDescriptor("avc1", format.SPS, format.PPS, true); err != nil {
		return 0, fmt.Errorf("set avc descriptor: %w", err)
	}
	m.init = init
	m.trackID = trak.Tkhd.TrackID
	return 0, nil
}

func (m *MP4Muxer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.init == nil {
		return errors.New("no track added")
	}
	if m.started {
		return nil
	}
	if err := m.init.Encode(m.w); err != nil {
		return fmt.Errorf("write init segment: %w", err)
	}
	m.started = true
	return nil
}

func (m *MP4Muxer) WriteSample(track int, s Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.stopped:
		return ErrMuxerFinalized
	case !m.started:
		return ErrMuxerNotReady
	case track != 0:
		return ErrUnknownTrack
	}

	data := avc.ConvertByteStreamToNaluSample(s.Data)
	if len(data) == 0 {
		return errors.New("empty sample")
	}

	m.seq++
	frag, err := mp4.CreateFragment(m.seq, m.trackID)
	if err != nil {
		return fmt.Errorf("create fragment: %w", err)
	}

	flags := mp4.NonSyncSampleFlags
	if s.KeyFrame {
		flags = mp4.SyncSampleFlags
	}
	frag.AddFullSample(mp4.FullSample{
		Sample: mp4.Sample{
			Flags: flags,
			Dur:   uint32(s.Duration),
			Size:  uint32(len(data)),
		},
		DecodeTime: uint64(s.PTSMicros),
		Data:       data,
	})
	if err := frag.Encode(m.w); err != nil {
		return fmt.Errorf("write fragment %d: %w", m.seq, err)
	}
	m.samples++
	return nil
}

func (m *MP4Muxer) Samples() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples
}

// Stop flushes and closes the file.
func (m *MP4Muxer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true
	if err := m.w.Flush(); err != nil {
		m.file.Close()
		return fmt.Errorf("flush %s: %w", m.path, err)
	}
	return m.file.Close()
}

// Close releases the file without flushing. It is a no-op after Stop.
func (m *MP4Muxer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true
	return m.file.Close()
}
