package frames

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type StoredFrame struct {
	Stream    string `json:"stream"`
	Seq       uint64 `json:"seq"`
	Timestamp int64  `json:"ts"`
	Width     int    `json:"w"`
	Height    int    `json:"h"`
	Data      []byte `json:"data"`
}

// Store keeps recent JPEG frames per stream in a redis sorted set scored by
// capture time.
type Store struct {
	redis    *redis.Client
	frameTTL time.Duration
}

func NewStore(redisClient *redis.Client, frameTTL time.Duration) *Store {
	if frameTTL == 0 {
		frameTTL = 60 * time.Second
	}
	return &Store{redis: redisClient, frameTTL: frameTTL}
}

func framesKey(stream string) string {
	return fmt.Sprintf("rover:%s:frames", stream)
}

func (s *Store) StoreFrame(ctx context.Context, frame *StoredFrame) error {
	member, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	key := framesKey(frame.Stream)

	pipe := s.redis.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(frame.Timestamp), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(frame.Timestamp-s.frameTTL.Milliseconds(), 10))
	pipe.Expire(ctx, key, s.frameTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) GetLatestFrame(ctx context.Context, stream string) (*StoredFrame, error) {
	results, err := s.redis.ZRevRangeWithScores(ctx, framesKey(stream), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return decodeMember(results[0].Member)
}

func (s *Store) GetFrames(ctx context.Context, stream string, startTime, endTime int64, limit int) ([]*StoredFrame, error) {
	opt := &redis.ZRangeBy{
		Min:   strconv.FormatInt(startTime, 10),
		Max:   strconv.FormatInt(endTime, 10),
		Count: int64(limit),
	}
	results, err := s.redis.ZRangeByScoreWithScores(ctx, framesKey(stream), opt).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*StoredFrame, 0, len(results))
	for _, r := range results {
		f, err := decodeMember(r.Member)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *Store) DeleteFrames(ctx context.Context, stream string) error {
	return s.redis.Del(ctx, framesKey(stream)).Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func decodeMember(member any) (*StoredFrame, error) {
	raw, ok := member.(string)
	if !ok {
		return nil, fmt.Errorf("invalid frame data type %T", member)
	}
	var f StoredFrame
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	return &f, nil
}
