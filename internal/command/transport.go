package command

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
)

const defaultQueueSize = 64

type Config struct {
	Host      string
	Port      int
	QueueSize int
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "192.168.4.1"
	}
	if c.Port == 0 {
		c.Port = 1606
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	return c
}

type Stats struct {
	Sent    uint64
	Failed  uint64
	Dropped uint64
}

// UDPTransport sends each command token as one datagram. Commands are queued
// to a single writer goroutine so callers never block on the network and
// datagrams leave in the order they were queued.
type UDPTransport struct {
	conn   *net.UDPConn
	addr   *net.UDPAddr
	logger *slog.Logger

	mu     sync.RWMutex
	queue  chan Command
	closed bool
	wg     sync.WaitGroup

	closeOnce sync.Once
	sent      atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewUDPTransport never fails: an initialization error is logged and the
// returned transport silently discards every command.
func NewUDPTransport(cfg Config, logger *slog.Logger) *UDPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	t := &UDPTransport{logger: logger.With("component", "command_transport")}

	target := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		t.logger.Error("resolve command endpoint", "target", target, "error", err)
		return t
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		t.logger.Error("open command socket", "error", err)
		return t
	}

	t.conn = conn
	t.addr = addr
	t.queue = make(chan Command, cfg.QueueSize)
	t.wg.Add(1)
	go t.run()

	t.logger.Info("command transport ready", "target", addr.String())
	return t
}

// Send queues the command and returns immediately. A full queue drops the
// command; failures are logged and never retried.
func (t *UDPTransport) Send(cmd Command) {
	if !cmd.Valid() {
		t.logger.Warn("dropping invalid command", "command", int(cmd))
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed || t.queue == nil {
		return
	}

	select {
	case t.queue <- cmd:
	default:
		t.dropped.Add(1)
		t.logger.Warn("command queue full, dropping", "command", cmd.String())
	}
}

func (t *UDPTransport) run() {
	defer t.wg.Done()
	for cmd := range t.queue {
		if err := t.write(cmd); err != nil {
			t.failed.Add(1)
			t.logger.Warn("send command failed", "command", cmd.String(), "error", err)
			continue
		}
		t.sent.Add(1)
		t.logger.Debug("command sent", "command", cmd.String())
	}
}

func (t *UDPTransport) write(cmd Command) error {
	payload := []byte(cmd.Token())
	n, err := t.conn.WriteToUDP(payload, t.addr)
	if err != nil {
		return err
	}
	if n != len(payload) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(payload))
	}
	return nil
}

func (t *UDPTransport) Healthy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.closed && t.conn != nil
}

func (t *UDPTransport) Target() string {
	if t.addr == nil {
		return ""
	}
	return t.addr.String()
}

func (t *UDPTransport) Stats() Stats {
	return Stats{Sent: t.sent.Load(), Failed: t.failed.Load(), Dropped: t.dropped.Load()}
}

// Close flushes queued commands and closes the socket exactly once.
func (t *UDPTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		if t.queue != nil {
			close(t.queue)
		}
		t.mu.Unlock()

		t.wg.Wait()
		if t.conn != nil {
			err = t.conn.Close()
		}
	})
	return err
}
