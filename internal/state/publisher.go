package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	Channel   = "rover:state"
	LatestKey = "rover:state:latest"
)

// RedisPublisher mirrors hub snapshots to a redis channel and keeps the most
// recent one under LatestKey.
type RedisPublisher struct {
	redis   *redis.Client
	hub     *Hub
	timeout time.Duration
	logger  *slog.Logger

	cancel func()
	wg     sync.WaitGroup
}

func NewRedisPublisher(client *redis.Client, hub *Hub, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{
		redis:   client,
		hub:     hub,
		timeout: 2 * time.Second,
		logger:  logger.With("component", "state-publisher"),
	}
}

func (p *RedisPublisher) Start() {
	ch, cancel := p.hub.Subscribe()
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for snap := range ch {
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			if err := p.Publish(ctx, snap); err != nil {
				p.logger.Debug("state publish failed", "error", err)
			}
			cancel()
		}
	}()
}

func (p *RedisPublisher) Publish(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := p.redis.Pipeline()
	pipe.Set(ctx, LatestKey, payload, 0)
	pipe.Publish(ctx, Channel, payload)
	_, err = pipe.Exec(ctx)
	return err
}

func (p *RedisPublisher) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Latest reads the last published snapshot.
func Latest(ctx context.Context, client *redis.Client) (*Snapshot, error) {
	data, err := client.Get(ctx, LatestKey).Bytes()
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
