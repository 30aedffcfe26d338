package state

import (
	"testing"
	"time"

	"github.com/eleven-am/roverlink/internal/vision"
)

func TestHub_UpdateAndCurrent(t *testing.T) {
	h := NewHub()
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	snap := h.Update(func(s *Snapshot) {
		s.Camera = true
		s.Text = "go left"
	})
	if !snap.Camera || snap.Text != "go left" || !snap.UpdatedAt.Equal(fixed) {
		t.Fatalf("Update() = %+v", snap)
	}
	if cur := h.Current(); cur.Text != "go left" {
		t.Errorf("Current() = %+v", cur)
	}
}

func TestHub_CurrentIsACopy(t *testing.T) {
	h := NewHub()
	h.Update(func(s *Snapshot) {
		s.Detections = []vision.Detection{{Box: vision.Box{Right: 10, Bottom: 10}}}
	})

	cur := h.Current()
	cur.Detections[0].Box.Right = 99

	if h.Current().Detections[0].Box.Right != 10 {
		t.Error("Current() shares detections with the hub")
	}
}

func TestHub_SubscribeReceivesCurrent(t *testing.T) {
	h := NewHub()
	h.Update(func(s *Snapshot) { s.Follow = true })

	ch, cancel := h.Subscribe()
	defer cancel()

	select {
	case snap := <-ch:
		if !snap.Follow {
			t.Errorf("initial snapshot = %+v", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}
}

func TestHub_SlowSubscriberGetsLatest(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()

	for i := 1; i <= 10; i++ {
		n := i
		h.Update(func(s *Snapshot) { s.RecordedFrames = n })
	}

	select {
	case snap := <-ch:
		if snap.RecordedFrames != 10 {
			t.Errorf("RecordedFrames = %d, want 10", snap.RecordedFrames)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	select {
	case snap := <-ch:
		t.Errorf("unexpected extra snapshot %+v", snap)
	default:
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	<-ch

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}
	if h.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d", h.Subscribers())
	}
	h.Update(func(s *Snapshot) { s.Camera = true })
}
