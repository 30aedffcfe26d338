package state

import (
	"sync"
	"time"
)

// Hub holds the current Snapshot and fans out every change. Subscribers
// receive only the latest snapshot; intermediate ones are skipped when a
// reader falls behind.
type Hub struct {
	mu      sync.RWMutex
	current Snapshot
	subs    map[int]chan Snapshot
	nextID  int
	now     func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[int]chan Snapshot),
		now:  time.Now,
	}
}

// Update applies fn to the snapshot and publishes the result.
func (h *Hub) Update(fn func(*Snapshot)) Snapshot {
	h.mu.Lock()
	fn(&h.current)
	h.current.UpdatedAt = h.now()
	snap := h.current.clone()

	for _, ch := range h.subs {
		offer(ch, snap)
	}
	h.mu.Unlock()
	return snap
}

func (h *Hub) Current() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.clone()
}

// Subscribe returns a channel primed with the current snapshot. The cancel
// func closes the channel.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	ch <- h.current.clone()
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// offer replaces any unread snapshot in ch with snap.
func offer(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
