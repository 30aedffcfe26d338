package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eleven-am/roverlink/internal/autopilot"
	"github.com/eleven-am/roverlink/internal/command"
	"github.com/eleven-am/roverlink/internal/frames"
	"github.com/eleven-am/roverlink/internal/gallery"
	"github.com/eleven-am/roverlink/internal/recording"
	"github.com/eleven-am/roverlink/internal/state"
	"github.com/eleven-am/roverlink/internal/vehicle"
	"github.com/eleven-am/roverlink/internal/vision"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Perception is whichever perception client PERCEPTION_MODE selected, plus
// a readiness probe for it.
type Perception struct {
	Recognizer vision.TextRecognizer
	Detector   vision.ObjectDetector
	Check      func(ctx context.Context) error
}

var errPerceptionUnavailable = errors.New("perception service unavailable")

func ProvideCommandTransport(lc fx.Lifecycle, cfg *Config, logger *slog.Logger) *command.UDPTransport {
	transport := command.NewUDPTransport(command.Config{
		Host: cfg.VehicleHost,
		Port: cfg.CommandPort,
	}, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return transport.Close()
		},
	})
	return transport
}

func ProvideFrameSource(cfg *Config, logger *slog.Logger) *frames.Source {
	return frames.NewSource(frames.SourceConfig{
		MinInterval: cfg.FrameMinInterval,
		Logger:      logger,
	})
}

func ProvideHub() *state.Hub {
	return state.NewHub()
}

func ProvidePerception(lc fx.Lifecycle, cfg *Config) (*Perception, error) {
	visionCfg := vision.Config{
		BaseURL:  cfg.PerceptionURL,
		GRPCAddr: cfg.PerceptionGRPCAddr,
		Token:    cfg.PerceptionToken,
		Timeout:  cfg.PerceptionTimeout,
	}

	switch cfg.PerceptionMode {
	case PerceptionGRPC:
		client, err := vision.NewGRPCClient(visionCfg)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
		return &Perception{Recognizer: client, Detector: client, Check: client.Check}, nil

	case PerceptionHTTP, "":
		client := vision.NewHTTPClient(visionCfg)
		return &Perception{
			Recognizer: client,
			Detector:   client,
			Check: func(ctx context.Context) error {
				if !client.IsAvailable(ctx) {
					return errPerceptionUnavailable
				}
				return nil
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown perception mode %q", cfg.PerceptionMode)
	}
}

func ProvideIngressFactory(cfg *Config, logger *slog.Logger) vehicle.IngressFactory {
	return vehicle.NewIngressFactory(vehicle.IngressConfig{
		Mode:       cfg.IngressMode,
		Host:       cfg.VehicleHost,
		StreamPort: cfg.StreamPort,
		ICEServers: cfg.RTCICEServers,
		PortRange: frames.PortRange{
			Min: cfg.RTCPortMin,
			Max: cfg.RTCPortMax,
		},
		KeyframeInterval: cfg.KeyframeRequestInterval,
		PollInterval:     cfg.PollInterval,
		DecodeWorkers:    cfg.DecodeWorkers,
		Logger:           logger,
	})
}

func ProvideRecordingConfig(cfg *Config, g *gallery.Gallery, logger *slog.Logger) recording.PipelineConfig {
	return recording.PipelineConfig{
		Encode: recording.EncodeConfig{
			Width:   cfg.RecordWidth,
			Height:  cfg.RecordHeight,
			FPS:     cfg.RecordFPS,
			Bitrate: cfg.RecordBitrate,
		},
		Accel:     recording.Accel(cfg.RecordEncoder),
		TmpDir:    cfg.RecordTmpDir,
		Persister: g,
		Logger:    logger,
	}
}

type VehicleParams struct {
	fx.In

	Config     *Config
	Transport  *command.UDPTransport
	Source     *frames.Source
	Ingress    vehicle.IngressFactory
	Perception *Perception
	Recording  recording.PipelineConfig
	Gallery    *gallery.Gallery
	FrameStore *frames.Store
	Archiver   *frames.Archiver
	Hub        *state.Hub
	Logger     *slog.Logger
}

func ProvideVehicleClient(lc fx.Lifecycle, p VehicleParams) (*vehicle.Client, error) {
	client, err := vehicle.NewClient(vehicle.Config{
		Sender:     p.Transport,
		Source:     p.Source,
		Ingress:    p.Ingress,
		Recognizer: p.Perception.Recognizer,
		Detector:   p.Perception.Detector,
		Vision:     vision.PipelineConfig{Timeout: p.Config.PerceptionTimeout},
		Autopilot: autopilot.Config{
			TextFireDuration: p.Config.TextFireDuration,
			TextRearmDelay:   p.Config.TextRearmDelay,
		},
		Recording:  p.Recording,
		Photos:     p.Gallery,
		FrameStore: p.FrameStore,
		Archiver:   p.Archiver,
		Hub:        p.Hub,
		Logger:     p.Logger,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

// StartStatePublisher mirrors the hub into redis when redis is configured.
func StartStatePublisher(lc fx.Lifecycle, redisClient *redis.Client, hub *state.Hub, logger *slog.Logger) {
	if redisClient == nil {
		return
	}
	publisher := state.NewRedisPublisher(redisClient, hub, logger)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			publisher.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			publisher.Stop()
			return nil
		},
	})
}

var VehicleModule = fx.Options(
	fx.Provide(
		ProvideCommandTransport,
		ProvideFrameSource,
		ProvideHub,
		ProvidePerception,
		ProvideIngressFactory,
		ProvideRecordingConfig,
		ProvideVehicleClient,
	),
	fx.Invoke(StartStatePublisher),
)
