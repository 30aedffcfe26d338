package autopilot

import (
	"strings"

	"github.com/eleven-am/roverlink/internal/command"
	"github.com/eleven-am/roverlink/internal/vision"
)

type keyword struct {
	word string
	cmd  command.Command
}

// textKeywords are checked in order; the first substring match wins.
var textKeywords = []keyword{
	{"rotate", command.RotateRight},
	{"left", command.Left},
	{"right", command.Right},
	{"back", command.Backward},
	{"forward", command.Forward},
}

func MatchText(text string) (command.Command, bool) {
	if strings.TrimSpace(text) == "" {
		return command.Stop, false
	}
	lower := strings.ToLower(text)
	for _, k := range textKeywords {
		if strings.Contains(lower, k.word) {
			return k.cmd, true
		}
	}
	return command.Stop, false
}

const (
	DefaultLeftThreshold  = 0.35
	DefaultRightThreshold = 0.65
)

// FollowDecision steers toward the first detection. Boundary values count
// as centered.
func FollowDecision(result vision.DetectionResult, left, right float64) command.Command {
	if len(result.Detections) == 0 || result.FrameWidth <= 0 {
		return command.Stop
	}
	cx := result.Detections[0].Box.CenterX() / float64(result.FrameWidth)
	switch {
	case cx < left:
		return command.Left
	case cx > right:
		return command.Right
	default:
		return command.Forward
	}
}
