package frames

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/roverlink/internal/shared"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
)

type PortRange struct {
	Min int
	Max int
}

type ReceiverConfig struct {
	SignalURL        string
	ICEServers       []string
	PortRange        PortRange
	KeyframeInterval time.Duration
	Backoff          shared.BackoffConfig
	Signaler         *Signaler
	Capturer         *Capturer
	OnConnection     func(connected bool)
	Logger           *slog.Logger
}

// Receiver pulls the vehicle's video over a receive-only WebRTC session in
// which the local side is the offerer.
type Receiver struct {
	cfg      ReceiverConfig
	api      *webrtc.API
	signaler *Signaler
	logger   *slog.Logger

	mu        sync.Mutex
	pc        *webrtc.PeerConnection
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    bool
	closeOnce sync.Once
}

func NewReceiver(cfg ReceiverConfig) (*Receiver, error) {
	if cfg.Capturer == nil {
		return nil, errors.New("receiver requires a capturer")
	}
	if cfg.KeyframeInterval <= 0 {
		cfg.KeyframeInterval = 500 * time.Millisecond
	}
	if len(cfg.ICEServers) == 0 {
		cfg.ICEServers = []string{"stun:stun.l.google.com:19302"}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Backoff = cfg.Backoff.Normalize()
	if cfg.Signaler == nil {
		cfg.Signaler = NewSignaler(cfg.SignalURL, nil)
	}

	me := &webrtc.MediaEngine{}
	err := me.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeVP8,
			ClockRate: videoClockRate,
			RTCPFeedback: []webrtc.RTCPFeedback{
				{Type: "nack"},
				{Type: "nack", Parameter: "pli"},
			},
		},
		PayloadType: 96,
	}, webrtc.RTPCodecTypeVideo)
	if err != nil {
		return nil, fmt.Errorf("register vp8: %w", err)
	}

	se := webrtc.SettingEngine{}
	if cfg.PortRange.Min > 0 && cfg.PortRange.Max > cfg.PortRange.Min {
		if err := se.SetEphemeralUDPPortRange(uint16(cfg.PortRange.Min), uint16(cfg.PortRange.Max)); err != nil {
			return nil, fmt.Errorf("set port range: %w", err)
		}
	}

	return &Receiver{
		cfg:      cfg,
		api:      webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se)),
		signaler: cfg.Signaler,
		logger:   cfg.Logger.With("component", "webrtc_receiver"),
	}, nil
}

// Start negotiates the session. It returns once the vehicle's answer has
// been applied; media then flows until Close.
func (r *Receiver) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.New("receiver closed")
	}
	if r.pc != nil {
		r.mu.Unlock()
		return errors.New("receiver already started")
	}
	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.mu.Unlock()

	pc, err := r.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: r.cfg.ICEServers}},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("create peer connection: %w", err)
	}

	r.mu.Lock()
	r.pc = pc
	r.mu.Unlock()

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return fmt.Errorf("add video transceiver: %w", err)
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		r.logger.Info("video track received", "codec", track.Codec().MimeType, "ssrc", uint32(track.SSRC()))
		r.wg.Add(2)
		go r.readTrack(runCtx, track)
		go r.requestKeyframes(runCtx, pc, uint32(track.SSRC()))
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		r.logger.Info("ice connection state", "state", state.String())
		if r.cfg.OnConnection == nil {
			return
		}
		switch state {
		case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
			r.cfg.OnConnection(true)
		case webrtc.ICEConnectionStateDisconnected, webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateClosed:
			r.cfg.OnConnection(false)
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return ctx.Err()
	}

	local := pc.LocalDescription()
	answer, err := r.exchange(ctx, SessionDescription{SDP: local.SDP, Type: local.Type.String()})
	if err != nil {
		return err
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(answer.Type),
		SDP:  answer.SDP,
	}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (r *Receiver) exchange(ctx context.Context, offer SessionDescription) (SessionDescription, error) {
	backoff := r.cfg.Backoff
	delay := backoff.Initial

	var lastErr error
	for attempt := 0; attempt < backoff.MaxAttempts; attempt++ {
		answer, err := r.signaler.Exchange(ctx, offer)
		if err == nil {
			return answer, nil
		}
		lastErr = err
		r.logger.Warn("signaling failed", "attempt", attempt+1, "error", err)
		if attempt == backoff.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return SessionDescription{}, ctx.Err()
		case <-time.After(delay):
		}
		delay = backoff.Next(delay)
	}
	return SessionDescription{}, fmt.Errorf("signaling failed after %d attempts: %w", backoff.MaxAttempts, lastErr)
}

func (r *Receiver) readTrack(ctx context.Context, track *webrtc.TrackRemote) {
	defer r.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			r.logger.Debug("track read ended", "error", err)
			return
		}
		r.cfg.Capturer.HandleRTPPacket(pkt)
	}
}

// requestKeyframes sends PLIs. A streaming capturer asks only when its
// decoder lost sync, and requests are spaced at least KeyframeInterval
// apart. A key-frame-only capturer is fed by periodic requests.
func (r *Receiver) requestKeyframes(ctx context.Context, pc *webrtc.PeerConnection, ssrc uint32) {
	defer r.wg.Done()
	capturer := r.cfg.Capturer

	var tick <-chan time.Time
	if !capturer.Streaming() {
		ticker := time.NewTicker(r.cfg.KeyframeInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var last time.Time
	send := func() {
		if err := pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}}); err != nil {
			r.logger.Debug("keyframe request failed", "error", err)
		}
		last = time.Now()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			send()
		case <-capturer.KeyframeRequests():
			if time.Since(last) >= r.cfg.KeyframeInterval {
				send()
			}
		}
	}
}

func (r *Receiver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		pc := r.pc
		cancel := r.cancel
		r.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if pc != nil {
			err = pc.Close()
		}
		r.wg.Wait()
		r.cfg.Capturer.Stop()
	})
	return err
}
