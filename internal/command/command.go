package command

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrUnknownCommand = errors.New("unknown command")

type Command int

const (
	Stop Command = iota
	Forward
	Backward
	Left
	Right
	RotateLeft
	RotateRight
)

type Sender interface {
	Send(cmd Command)
}

type SenderFunc func(cmd Command)

func (f SenderFunc) Send(cmd Command) { f(cmd) }

var names = map[Command]string{
	Stop:        "stop",
	Forward:     "forward",
	Backward:    "backward",
	Left:        "left",
	Right:       "right",
	RotateLeft:  "rotate-left",
	RotateRight: "rotate-right",
}

// tokens are the firmware vocabulary understood by the vehicle.
var tokens = map[Command]string{
	Stop:        "stop",
	Forward:     "napred",
	Backward:    "nazad",
	Left:        "levo",
	Right:       "desno",
	RotateLeft:  "rot_levo",
	RotateRight: "rot_desno",
}

func All() []Command {
	return []Command{Forward, Backward, Left, Right, RotateLeft, RotateRight, Stop}
}

func (c Command) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("command(%d)", int(c))
}

func (c Command) Token() string {
	return tokens[c]
}

func (c Command) Valid() bool {
	_, ok := tokens[c]
	return ok
}

func (c Command) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, int(c))
	}
	return []byte(c.String()), nil
}

func (c *Command) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Parse accepts either the semantic name or the wire token.
func Parse(s string) (Command, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, n := range names {
		if n == s {
			return c, nil
		}
	}
	for c, tok := range tokens {
		if tok == s {
			return c, nil
		}
	}
	return Stop, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

const joystickDeadZone = 0.4

// FromJoystick maps a stick offset, normalized to the stick radius with y
// growing downwards, onto a drive command. Offsets inside the dead zone
// produce no command.
func FromJoystick(dx, dy float64) (Command, bool) {
	dist := math.Hypot(dx, dy)
	if dist <= joystickDeadZone || math.IsNaN(dist) {
		return Stop, false
	}

	angle := math.Atan2(dy, dx) * 180 / math.Pi
	switch {
	case angle > -45 && angle <= 45:
		return Right, true
	case angle > 45 && angle <= 135:
		return Backward, true
	case angle > -135 && angle <= -45:
		return Forward, true
	default:
		return Left, true
	}
}
