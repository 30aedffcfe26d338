package vehicle

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/eleven-am/roverlink/internal/frames"
	"github.com/eleven-am/roverlink/internal/shared"
)

const (
	IngressWebRTC = "webrtc"
	IngressPoll   = "poll"
)

// Ingress feeds camera frames into a Source until closed.
type Ingress interface {
	Start(ctx context.Context) error
	Close() error
}

// IngressFactory builds a fresh ingress each time the camera is turned on.
type IngressFactory func(source *frames.Source, onConnection func(bool)) (Ingress, error)

type IngressConfig struct {
	Mode             string
	Host             string
	StreamPort       int
	ICEServers       []string
	PortRange        frames.PortRange
	KeyframeInterval time.Duration
	PollInterval     time.Duration
	DecodeWorkers    int
	Backoff          shared.BackoffConfig
	Logger           *slog.Logger
}

func (c IngressConfig) baseURL() string {
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.StreamPort))
}

func NewIngressFactory(cfg IngressConfig) IngressFactory {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "192.168.4.1"
	}
	if cfg.StreamPort == 0 {
		cfg.StreamPort = 1607
	}

	return func(source *frames.Source, onConnection func(bool)) (Ingress, error) {
		switch cfg.Mode {
		case IngressPoll:
			poller, err := frames.NewPoller(frames.PollerConfig{
				CaptureURL: cfg.baseURL() + "/capture",
				Interval:   cfg.PollInterval,
				Source:     source,
				Logger:     cfg.Logger,
			})
			if err != nil {
				return nil, err
			}
			return &pollIngress{poller: poller, onConnection: onConnection}, nil

		case IngressWebRTC, "":
			capturer := frames.NewCapturer(frames.CapturerConfig{
				Source:        source,
				Stream:        frames.NewGstVP8Decoder(cfg.Logger),
				DecodeWorkers: cfg.DecodeWorkers,
				Logger:        cfg.Logger,
			})
			receiver, err := frames.NewReceiver(frames.ReceiverConfig{
				SignalURL:        cfg.baseURL() + "/offer",
				ICEServers:       cfg.ICEServers,
				PortRange:        cfg.PortRange,
				KeyframeInterval: cfg.KeyframeInterval,
				Backoff:          cfg.Backoff,
				Capturer:         capturer,
				OnConnection:     onConnection,
				Logger:           cfg.Logger,
			})
			if err != nil {
				return nil, err
			}
			return &webrtcIngress{receiver: receiver}, nil

		default:
			return nil, fmt.Errorf("unknown ingress mode %q", cfg.Mode)
		}
	}
}

type webrtcIngress struct {
	receiver *frames.Receiver
}

func (w *webrtcIngress) Start(ctx context.Context) error {
	return w.receiver.Start(ctx)
}

// Close tears down the peer connection and its capturer.
func (w *webrtcIngress) Close() error {
	return w.receiver.Close()
}

// pollIngress has no transport-level connection state; it reports
// connected for as long as it runs.
type pollIngress struct {
	poller       *frames.Poller
	onConnection func(bool)
}

func (p *pollIngress) Start(ctx context.Context) error {
	if err := p.poller.Start(ctx); err != nil {
		return err
	}
	if p.onConnection != nil {
		p.onConnection(true)
	}
	return nil
}

func (p *pollIngress) Close() error {
	err := p.poller.Close()
	if p.onConnection != nil {
		p.onConnection(false)
	}
	return err
}
