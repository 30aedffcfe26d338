package bootstrap

import (
	"context"
	"errors"

	"github.com/eleven-am/roverlink/internal/command"
	"github.com/eleven-am/roverlink/internal/frames"
	"github.com/eleven-am/roverlink/internal/gallery"
	"github.com/eleven-am/roverlink/internal/health"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const version = "1.0.0"

var errSocketClosed = errors.New("command socket not open")

type HealthParams struct {
	fx.In

	Transport    *command.UDPTransport
	GalleryStore *gallery.Store
	FrameStore   *frames.Store
	Perception   *Perception
}

func ProvideHealthHandler(p HealthParams) *health.Handler {
	components := []health.Component{
		{
			Name:     "command_socket",
			Critical: true,
			Check: func(context.Context) error {
				if !p.Transport.Healthy() {
					return errSocketClosed
				}
				return nil
			},
		},
		{Name: "database", Critical: true, Check: p.GalleryStore.Ping},
		{Name: "perception", Check: p.Perception.Check},
	}
	if p.FrameStore != nil {
		components = append(components, health.Component{Name: "redis", Check: p.FrameStore.Ping})
	}
	return health.NewHandler(components, version)
}

func metricsMiddleware(h *health.Handler) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h.IncrementRequests()
			h.IncrementConnections()
			defer h.DecrementConnections()
			return next(c)
		}
	}
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	e.Use(metricsMiddleware(h))
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
