package frames

import (
	"sync"
	"time"
)

const DefaultMinInterval = 66 * time.Millisecond

// Gate admits at most one frame per interval. Frames arriving sooner than
// the interval after the last admitted frame are rejected.
type Gate struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time
	admitted    bool
}

func NewGate(minInterval time.Duration) *Gate {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Gate{minInterval: minInterval}
}

func (g *Gate) Admit(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.admitted && now.Sub(g.last) < g.minInterval {
		return false
	}
	g.last = now
	g.admitted = true
	return true
}

func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.admitted = false
	g.last = time.Time{}
}

func (g *Gate) MinInterval() time.Duration {
	return g.minInterval
}
