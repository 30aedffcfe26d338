package gallery

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/eleven-am/roverlink/internal/dto"
	"github.com/eleven-am/roverlink/internal/shared"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	gallery *Gallery
	prefix  string
	logger  *slog.Logger
}

// NewHandler serves the gallery. prefix is the route group path used to
// build download URLs.
func NewHandler(g *Gallery, prefix string, logger *slog.Logger) *Handler {
	return &Handler{gallery: g, prefix: prefix, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Download)
	g.DELETE("/:id", h.Delete)
}

func (h *Handler) toResponse(item *Item) dto.GalleryItemResponse {
	return dto.GalleryItemResponse{
		ID:         item.ID,
		Kind:       string(item.Kind),
		FileName:   item.FileName,
		SizeBytes:  item.SizeBytes,
		Frames:     item.Frames,
		DurationMs: item.DurationMs,
		SessionID:  item.SessionID,
		URL:        h.prefix + "/" + item.ID,
		CreatedAt:  item.CreatedAt.Format(time.RFC3339),
	}
}

// List godoc
// @Summary      List gallery items
// @Description  Returns recordings and photos, newest first
// @Tags         gallery
// @Produce      json
// @Param        kind    query     string  false  "video or photo"
// @Param        limit   query     int     false  "Page size"
// @Param        offset  query     int     false  "Offset"
// @Success      200     {object}  dto.GalleryListResponse
// @Failure      400     {object}  shared.APIError
// @Failure      500     {object}  shared.APIError
// @Router       /gallery [get]
func (h *Handler) List(c echo.Context) error {
	kind := Kind(c.QueryParam("kind"))
	if kind != "" && !kind.Valid() {
		return shared.BadRequest("invalid_kind", "kind must be video or photo")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	items, err := h.gallery.List(c.Request().Context(), kind, limit, offset)
	if err != nil {
		h.logger.Error("failed to list gallery", "error", err)
		return shared.InternalError("list_failed", "failed to list gallery")
	}

	resp := dto.GalleryListResponse{
		Items:  make([]dto.GalleryItemResponse, len(items)),
		Limit:  limit,
		Offset: offset,
	}
	for i, item := range items {
		resp.Items[i] = h.toResponse(item)
	}
	return c.JSON(http.StatusOK, resp)
}

// Download godoc
// @Summary      Download a gallery item
// @Tags         gallery
// @Produce      octet-stream
// @Param        id   path  string  true  "Item ID"
// @Success      200
// @Failure      404  {object}  shared.APIError
// @Router       /gallery/{id} [get]
func (h *Handler) Download(c echo.Context) error {
	item, err := h.gallery.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return shared.NotFound("item_not_found", "gallery item not found")
	}
	if err != nil {
		h.logger.Error("failed to load gallery item", "error", err, "id", c.Param("id"))
		return shared.InternalError("load_failed", "failed to load gallery item")
	}

	c.Response().Header().Set(echo.HeaderContentType, item.Kind.ContentType())
	return c.Attachment(item.Path, item.FileName)
}

// Delete godoc
// @Summary      Delete a gallery item
// @Tags         gallery
// @Param        id   path  string  true  "Item ID"
// @Success      204
// @Failure      404  {object}  shared.APIError
// @Router       /gallery/{id} [delete]
func (h *Handler) Delete(c echo.Context) error {
	err := h.gallery.Remove(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return shared.NotFound("item_not_found", "gallery item not found")
	}
	if err != nil {
		h.logger.Error("failed to delete gallery item", "error", err, "id", c.Param("id"))
		return shared.InternalError("delete_failed", "failed to delete gallery item")
	}
	return c.NoContent(http.StatusNoContent)
}
