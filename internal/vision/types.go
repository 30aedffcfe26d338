package vision

import (
	"context"
	"image"
	"strings"
	"time"
)

type Config struct {
	BaseURL  string
	GRPCAddr string
	Token    string
	Timeout  time.Duration
}

type RecognizedText struct {
	Text     string    `json:"text"`
	FrameSeq uint64    `json:"frame_seq"`
	At       time.Time `json:"at"`
}

type Label struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Box is a bounding box in frame pixel coordinates.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

func (b Box) CenterX() float64 {
	return float64(b.Left+b.Right) / 2
}

type Detection struct {
	Box    Box     `json:"box"`
	Labels []Label `json:"labels,omitempty"`
}

// TopLabel returns the highest ranked label, if any.
func (d Detection) TopLabel() (Label, bool) {
	if len(d.Labels) == 0 {
		return Label{}, false
	}
	return d.Labels[0], true
}

type DetectionResult struct {
	Detections  []Detection `json:"detections"`
	FrameWidth  int         `json:"frame_width"`
	FrameHeight int         `json:"frame_height"`
	FrameSeq    uint64      `json:"frame_seq"`
	At          time.Time   `json:"at"`
}

type TextRecognizer interface {
	RecognizeText(ctx context.Context, img image.Image) (string, error)
}

type ObjectDetector interface {
	DetectObjects(ctx context.Context, img image.Image) ([]Detection, error)
}

// FirstLine returns the first line of text containing anything but
// whitespace, trimmed. It returns "" when there is none.
func FirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
