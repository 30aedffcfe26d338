package frames

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type SessionDescription struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// Signaler exchanges a local offer for the vehicle's answer over HTTP.
type Signaler struct {
	url    string
	client *http.Client
}

func NewSignaler(url string, client *http.Client) *Signaler {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Signaler{url: url, client: client}
}

func (s *Signaler) Exchange(ctx context.Context, offer SessionDescription) (SessionDescription, error) {
	body, err := json.Marshal(offer)
	if err != nil {
		return SessionDescription{}, fmt.Errorf("marshal offer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return SessionDescription{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return SessionDescription{}, fmt.Errorf("post offer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return SessionDescription{}, fmt.Errorf("signaling returned %d: %s", resp.StatusCode, string(msg))
	}

	var answer SessionDescription
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return SessionDescription{}, fmt.Errorf("decode answer: %w", err)
	}
	if answer.SDP == "" {
		return SessionDescription{}, fmt.Errorf("answer has no sdp")
	}
	if answer.Type == "" {
		answer.Type = "answer"
	}
	return answer, nil
}
