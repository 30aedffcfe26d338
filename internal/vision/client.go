package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/eleven-am/roverlink/internal/frames"
)

// HTTPClient talks to a perception service exposing JSON endpoints for text
// recognition and object detection.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
	}
}

type imageRequest struct {
	Image  string `json:"image"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type textResponse struct {
	Text string `json:"text"`
}

type objectsResponse struct {
	Objects []Detection `json:"objects"`
}

func (c *HTTPClient) RecognizeText(ctx context.Context, img image.Image) (string, error) {
	var resp textResponse
	if err := c.post(ctx, "/v1/text", img, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c *HTTPClient) DetectObjects(ctx context.Context, img image.Image) ([]Detection, error) {
	var resp objectsResponse
	if err := c.post(ctx, "/v1/objects", img, &resp); err != nil {
		return nil, err
	}
	return resp.Objects, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, img image.Image, out any) error {
	if img == nil {
		return fmt.Errorf("no image provided")
	}
	data, err := frames.EncodeJPEG(img, 85)
	if err != nil {
		return err
	}

	body, err := json.Marshal(imageRequest{
		Image:  base64.StdEncoding.EncodeToString(data),
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perception request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("perception returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
