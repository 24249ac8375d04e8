package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/tplscope/internal/engine"
)

// DefaultRedisKey is the list batches are pushed to when no key is set.
const DefaultRedisKey = "tplscope:batches"

// RedisConfig configures the Redis list sink.
type RedisConfig struct {
	// Key is the list key. Default: DefaultRedisKey.
	Key string
	// MaxLen trims the list to its newest MaxLen lines. Zero keeps everything.
	MaxLen int64
	// TTL refreshes the key's expiry on every push. Zero never expires.
	TTL time.Duration
}

// Redis pushes each batch's text line onto a Redis list, where collectors
// can drain it with BLPOP or LRANGE.
type Redis struct {
	client redis.UniversalClient
	config RedisConfig
}

// NewRedis creates a sink on an existing client. The caller owns the client.
func NewRedis(client redis.UniversalClient, config RedisConfig) *Redis {
	if config.Key == "" {
		config.Key = DefaultRedisKey
	}
	return &Redis{client: client, config: config}
}

// Key returns the list key.
func (s *Redis) Key() string { return s.config.Key }

// Deliver implements engine.Sink. Push, trim and expiry are sent as one
// pipeline.
func (s *Redis) Deliver(ctx context.Context, b *engine.Batch) error {
	line, err := b.Line()
	if err != nil {
		return fmt.Errorf("redis sink: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.config.Key, line)
	if s.config.MaxLen > 0 {
		pipe.LTrim(ctx, s.config.Key, -s.config.MaxLen, -1)
	}
	if s.config.TTL > 0 {
		pipe.Expire(ctx, s.config.Key, s.config.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis sink: push to %s: %w", s.config.Key, err)
	}
	return nil
}
