package recording

import (
	"sync"

	"github.com/eleven-am/roverlink/internal/frames"
)

// Buffer accumulates deep copies of frames for one recording session.
type Buffer struct {
	mu     sync.Mutex
	frames []*frames.Frame
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Append(f *frames.Frame) {
	if f == nil || f.Image == nil {
		return
	}
	clone := f.Clone()

	b.mu.Lock()
	b.frames = append(b.frames, clone)
	b.mu.Unlock()
}

// DrainAndClear hands over every buffered frame and leaves the buffer empty.
func (b *Buffer) DrainAndClear() []*frames.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.frames
	b.frames = nil
	return out
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	b.frames = nil
	b.mu.Unlock()
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}
