package command

import (
	"errors"
	"testing"
)

func TestCommand_Token(t *testing.T) {
	tests := []struct {
		cmd   Command
		name  string
		token string
	}{
		{Forward, "forward", "napred"},
		{Backward, "backward", "nazad"},
		{Left, "left", "levo"},
		{Right, "right", "desno"},
		{RotateLeft, "rotate-left", "rot_levo"},
		{RotateRight, "rotate-right", "rot_desno"},
		{Stop, "stop", "stop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cmd.String() != tt.name {
				t.Errorf("expected name %s, got %s", tt.name, tt.cmd.String())
			}
			if tt.cmd.Token() != tt.token {
				t.Errorf("expected token %s, got %s", tt.token, tt.cmd.Token())
			}
		})
	}
}

func TestAll_CoversVocabulary(t *testing.T) {
	all := All()
	if len(all) != 7 {
		t.Fatalf("expected 7 commands, got %d", len(all))
	}
	for _, c := range all {
		if !c.Valid() {
			t.Errorf("command %d should be valid", int(c))
		}
	}
	if Command(42).Valid() {
		t.Error("out of range command should be invalid")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Command
		wantErr  bool
	}{
		{"forward", Forward, false},
		{"  Rotate-Right ", RotateRight, false},
		{"napred", Forward, false},
		{"rot_levo", RotateLeft, false},
		{"stop", Stop, false},
		{"jump", Stop, true},
		{"", Stop, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownCommand) {
					t.Fatalf("expected ErrUnknownCommand, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestCommand_TextRoundTrip(t *testing.T) {
	var c Command
	if err := c.UnmarshalText([]byte("desno")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != Right {
		t.Errorf("expected right, got %s", c)
	}
	text, err := c.MarshalText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(text) != "right" {
		t.Errorf("expected 'right', got %s", text)
	}
	if _, err := Command(99).MarshalText(); err == nil {
		t.Error("expected error marshaling invalid command")
	}
}

func TestFromJoystick(t *testing.T) {
	tests := []struct {
		name     string
		dx, dy   float64
		expected Command
		ok       bool
	}{
		{"dead zone", 0.1, 0.1, Stop, false},
		{"dead zone edge", 0.4, 0, Stop, false},
		{"right", 1, 0, Right, true},
		{"down is backward", 0, 1, Backward, true},
		{"up is forward", 0, -1, Forward, true},
		{"left", -1, 0, Left, true},
		{"diagonal down right is right", 0.7, 0.7, Right, true},
		{"diagonal up right is forward", 0.7, -0.71, Forward, true},
		{"diagonal down left is backward", -0.7, 0.71, Backward, true},
		{"up left", -0.7, -0.7, Left, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromJoystick(tt.dx, tt.dy)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}
