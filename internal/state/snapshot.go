package state

import (
	"time"

	"github.com/eleven-am/roverlink/internal/vision"
)

// Snapshot is the operator-visible state of the vehicle client.
type Snapshot struct {
	Connected       bool               `json:"connected"`
	Camera          bool               `json:"camera"`
	TextRecognition bool               `json:"text_recognition"`
	TextAutopilot   bool               `json:"text_autopilot"`
	TextArmed       bool               `json:"text_armed"`
	ObjectDetection bool               `json:"object_detection"`
	Follow          bool               `json:"follow"`
	Recording       bool               `json:"recording"`
	RecordedFrames  int                `json:"recorded_frames"`
	Text            string             `json:"text"`
	Detections      []vision.Detection `json:"detections"`
	LastCommand     string             `json:"last_command,omitempty"`
	FrameSeq        uint64             `json:"frame_seq"`
	FrameWidth      int                `json:"frame_width"`
	FrameHeight     int                `json:"frame_height"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func (s Snapshot) clone() Snapshot {
	if s.Detections != nil {
		s.Detections = append([]vision.Detection(nil), s.Detections...)
	}
	return s
}
