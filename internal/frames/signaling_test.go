package frames

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSignaler_Exchange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/offer" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %s", ct)
		}
		var offer SessionDescription
		if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
			t.Fatalf("decode offer: %v", err)
		}
		if offer.Type != "offer" || offer.SDP != "v=0 offer" {
			t.Errorf("unexpected offer %+v", offer)
		}
		json.NewEncoder(w).Encode(SessionDescription{SDP: "v=0 answer", Type: "answer"})
	}))
	defer server.Close()

	s := NewSignaler(server.URL+"/offer", nil)
	answer, err := s.Exchange(context.Background(), SessionDescription{SDP: "v=0 offer", Type: "offer"})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if answer.SDP != "v=0 answer" || answer.Type != "answer" {
		t.Errorf("unexpected answer %+v", answer)
	}
}

func TestSignaler_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewSignaler(server.URL, nil).Exchange(context.Background(), SessionDescription{SDP: "x", Type: "offer"})
	if err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestSignaler_EmptyAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"answer"}`))
	}))
	defer server.Close()

	if _, err := NewSignaler(server.URL, nil).Exchange(context.Background(), SessionDescription{}); err == nil {
		t.Fatal("expected error for answer without sdp")
	}
}

func TestSignaler_DefaultsAnswerType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sdp":"v=0"}`))
	}))
	defer server.Close()

	answer, err := NewSignaler(server.URL, nil).Exchange(context.Background(), SessionDescription{})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if answer.Type != "answer" {
		t.Errorf("expected default type answer, got %s", answer.Type)
	}
}

func TestNewReceiver_RequiresCapturer(t *testing.T) {
	if _, err := NewReceiver(ReceiverConfig{}); err == nil {
		t.Fatal("expected error without capturer")
	}
}

func TestNewReceiver_Defaults(t *testing.T) {
	c := NewCapturer(CapturerConfig{Source: NewSource(SourceConfig{Logger: testLogger()}), Logger: testLogger()})
	r, err := NewReceiver(ReceiverConfig{SignalURL: "http://127.0.0.1:1/offer", Capturer: c, Logger: testLogger()})
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}
	if len(r.cfg.ICEServers) != 1 || r.cfg.ICEServers[0] != "stun:stun.l.google.com:19302" {
		t.Errorf("unexpected ice servers %v", r.cfg.ICEServers)
	}
	if r.cfg.KeyframeInterval <= 0 {
		t.Error("expected default keyframe interval")
	}
	if err := r.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := r.Start(context.Background()); err == nil {
		t.Error("start after close should fail")
	}
}
