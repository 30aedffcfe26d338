package bootstrap

import (
	"log/slog"

	"github.com/eleven-am/roverlink/internal/gallery"
	"github.com/eleven-am/roverlink/internal/vehicle"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/fx"
)

const galleryPrefix = "/v1/gallery"

type HandlerParams struct {
	fx.In

	VehicleHandler *vehicle.Handler
	GalleryHandler *gallery.Handler
}

func ProvideVehicleHandler(client *vehicle.Client, logger *slog.Logger) *vehicle.Handler {
	return vehicle.NewHandler(client, logger.With("handler", "vehicle"))
}

func ProvideGalleryHandler(g *gallery.Gallery, logger *slog.Logger) *gallery.Handler {
	return gallery.NewHandler(g, galleryPrefix, logger.With("handler", "gallery"))
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/v1")
	params.VehicleHandler.RegisterRoutes(api)
	params.GalleryHandler.RegisterRoutes(e.Group(galleryPrefix))

	e.GET("/swagger/*", echoSwagger.EchoWrapHandlerV3())
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideVehicleHandler,
		ProvideGalleryHandler,
	),
	fx.Invoke(RegisterRoutes),
)
