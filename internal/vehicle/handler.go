package vehicle

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/eleven-am/roverlink/internal/command"
	"github.com/eleven-am/roverlink/internal/dto"
	"github.com/eleven-am/roverlink/internal/recording"
	"github.com/eleven-am/roverlink/internal/shared"
	"github.com/labstack/echo/v4"
)

const (
	FeatureCamera          = "camera"
	FeatureTextRecognition = "text-recognition"
	FeatureTextAutopilot   = "text-autopilot"
	FeatureObjectDetection = "object-detection"
	FeatureFollow          = "follow"
	FeatureRecording       = "recording"
)

type Handler struct {
	client *Client
	logger *slog.Logger
}

func NewHandler(client *Client, logger *slog.Logger) *Handler {
	return &Handler{client: client, logger: logger.With("component", "vehicle_handler")}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/state", h.GetState)
	g.GET("/state/ws", h.StreamState)
	g.PUT("/features/:feature", h.SetFeature)
	g.POST("/commands", h.SendCommand)
	g.POST("/joystick", h.Joystick)
	g.POST("/photos", h.TakePhoto)
	g.GET("/frames/latest", h.LatestFrame)
}

// GetState godoc
// @Summary      Current vehicle state
// @Tags         vehicle
// @Produce      json
// @Success      200  {object}  state.Snapshot
// @Router       /state [get]
func (h *Handler) GetState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.client.Snapshot())
}

// SetFeature godoc
// @Summary      Toggle a feature
// @Description  Turns camera, text recognition, text autopilot, object detection, follow or recording on or off
// @Tags         vehicle
// @Accept       json
// @Produce      json
// @Param        feature  path      string             true  "Feature name"
// @Param        request  body      dto.ToggleRequest  true  "Desired state"
// @Success      200      {object}  dto.ToggleResponse
// @Failure      400      {object}  shared.APIError
// @Failure      404      {object}  shared.APIError
// @Failure      409      {object}  shared.APIError
// @Failure      502      {object}  shared.APIError
// @Router       /features/{feature} [put]
func (h *Handler) SetFeature(c echo.Context) error {
	var req dto.ToggleRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	feature := c.Param("feature")
	switch feature {
	case FeatureCamera:
		if err := h.client.SetCamera(c.Request().Context(), req.Enabled); err != nil {
			h.logger.Error("camera toggle failed", "enabled", req.Enabled, "error", err)
			return shared.NewAPIError("camera_failed", err.Error()).ToHTTP(http.StatusBadGateway)
		}
	case FeatureTextRecognition:
		h.client.SetTextRecognition(req.Enabled)
	case FeatureTextAutopilot:
		h.client.SetTextAutopilot(req.Enabled)
	case FeatureObjectDetection:
		h.client.SetObjectDetection(req.Enabled)
	case FeatureFollow:
		h.client.SetFollow(req.Enabled)
	case FeatureRecording:
		id, err := h.client.SetRecording(req.Enabled)
		switch {
		case errors.Is(err, ErrCameraOff):
			return shared.Conflict("camera_off", "camera must be on to record")
		case errors.Is(err, recording.ErrSessionActive):
			return shared.Conflict("recording_active", "a recording is already in progress")
		case errors.Is(err, recording.ErrNoSession):
			return shared.Conflict("not_recording", "no recording in progress")
		case err != nil:
			return shared.InternalError("recording_failed", "failed to toggle recording")
		}
		return c.JSON(http.StatusOK, dto.RecordingResponse{Enabled: req.Enabled, SessionID: id})
	default:
		return shared.NotFound("unknown_feature", "unknown feature "+feature)
	}

	return c.JSON(http.StatusOK, dto.ToggleResponse{Feature: feature, Enabled: req.Enabled})
}

// SendCommand godoc
// @Summary      Send a drive command
// @Tags         vehicle
// @Accept       json
// @Produce      json
// @Param        request  body      dto.CommandRequest  true  "Command"
// @Success      200      {object}  dto.CommandResponse
// @Failure      400      {object}  shared.APIError
// @Router       /commands [post]
func (h *Handler) SendCommand(c echo.Context) error {
	var req dto.CommandRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	cmd, err := command.Parse(req.Command)
	if err != nil {
		return shared.NewAPIError("unknown_command", err.Error()).
			WithDetails(map[string]any{"valid": command.All()}).
			ToHTTP(http.StatusBadRequest)
	}
	if err := h.client.Drive(cmd); err != nil {
		return shared.BadRequest("unknown_command", err.Error())
	}
	return c.JSON(http.StatusOK, dto.CommandResponse{Command: cmd.String(), Token: cmd.Token(), Sent: true})
}

// Joystick godoc
// @Summary      Drive with a joystick offset
// @Description  x and y are normalized to the joystick radius; small deflections send nothing
// @Tags         vehicle
// @Accept       json
// @Produce      json
// @Param        request  body      dto.JoystickRequest  true  "Joystick position"
// @Success      200      {object}  dto.CommandResponse
// @Failure      400      {object}  shared.APIError
// @Router       /joystick [post]
func (h *Handler) Joystick(c echo.Context) error {
	var req dto.JoystickRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	cmd, sent := h.client.Joystick(req.X, req.Y, req.Released)
	resp := dto.CommandResponse{Sent: sent}
	if sent {
		resp.Command = cmd.String()
		resp.Token = cmd.Token()
	}
	return c.JSON(http.StatusOK, resp)
}

// TakePhoto godoc
// @Summary      Save the latest frame to the gallery
// @Tags         vehicle
// @Produce      json
// @Success      201  {object}  dto.GalleryItemResponse
// @Failure      409  {object}  shared.APIError
// @Router       /photos [post]
func (h *Handler) TakePhoto(c echo.Context) error {
	item, err := h.client.TakePhoto(c.Request().Context())
	switch {
	case errors.Is(err, ErrNoFrame):
		return shared.Conflict("no_frame", "no frame available")
	case errors.Is(err, ErrNoGallery):
		return shared.Unavailable("no_gallery", "gallery not configured")
	case err != nil:
		h.logger.Error("photo failed", "error", err)
		return shared.InternalError("photo_failed", "failed to save photo")
	}

	return c.JSON(http.StatusCreated, dto.GalleryItemResponse{
		ID:        item.ID,
		Kind:      string(item.Kind),
		FileName:  item.FileName,
		SizeBytes: item.SizeBytes,
		URL:       "/v1/gallery/" + item.ID,
		CreatedAt: item.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// LatestFrame godoc
// @Summary      Latest camera frame
// @Tags         vehicle
// @Produce      jpeg
// @Success      200
// @Failure      404  {object}  shared.APIError
// @Router       /frames/latest [get]
func (h *Handler) LatestFrame(c echo.Context) error {
	data, err := h.client.LatestFrameJPEG(c.Request().Context())
	if errors.Is(err, ErrNoFrame) {
		return shared.NotFound("no_frame", "no frame available")
	}
	if err != nil {
		h.logger.Error("latest frame failed", "error", err)
		return shared.InternalError("frame_failed", "failed to read latest frame")
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "image/jpeg", data)
}
