package dto

type ToggleRequest struct {
	Enabled bool `json:"enabled" example:"true"`
}

type ToggleResponse struct {
	Feature string `json:"feature" example:"follow"`
	Enabled bool   `json:"enabled" example:"true"`
}

type RecordingResponse struct {
	Enabled   bool   `json:"enabled" example:"false"`
	SessionID string `json:"session_id,omitempty" example:"0b3e2b9e-5d0c-4b8f-9a8e-2f1c3d4e5f60"`
}

type CommandRequest struct {
	Command string `json:"command" example:"forward" enums:"forward,backward,left,right,rotate-left,rotate-right,stop"`
}

type CommandResponse struct {
	Command string `json:"command" example:"forward"`
	Token   string `json:"token" example:"napred"`
	Sent    bool   `json:"sent" example:"true"`
}

type JoystickRequest struct {
	X        float64 `json:"x" example:"0.1"`
	Y        float64 `json:"y" example:"-0.9"`
	Released bool    `json:"released" example:"false"`
}
