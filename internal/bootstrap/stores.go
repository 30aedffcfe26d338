package bootstrap

import (
	"log/slog"

	"github.com/eleven-am/roverlink/internal/frames"
	"github.com/eleven-am/roverlink/internal/gallery"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideGalleryStore(db *gorm.DB) *gallery.Store {
	return gallery.NewStore(db)
}

func ProvideGallery(cfg *Config, store *gallery.Store, logger *slog.Logger) (*gallery.Gallery, error) {
	return gallery.New(cfg.GalleryDir, store, logger)
}

// ProvideFrameStore and ProvideFrameArchiver return nil without redis.
func ProvideFrameStore(cfg *Config, redisClient *redis.Client) *frames.Store {
	if redisClient == nil {
		return nil
	}
	return frames.NewStore(redisClient, cfg.FrameTTL)
}

func ProvideFrameArchiver(cfg *Config, store *frames.Store, logger *slog.Logger) *frames.Archiver {
	if store == nil {
		return nil
	}
	return frames.NewArchiver(store, frames.ArchiverConfig{
		Interval: cfg.FrameStoreInterval,
		Logger:   logger,
	})
}

func RunMigrations(cfg *Config, galleryStore *gallery.Store, logger *slog.Logger) error {
	if !cfg.AutoMigrate {
		logger.Info("database auto-migration disabled")
		return nil
	}
	return galleryStore.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideGalleryStore,
		ProvideGallery,
		ProvideFrameStore,
		ProvideFrameArchiver,
	),
	fx.Invoke(RunMigrations),
)
