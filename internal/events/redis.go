package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultStreamLen bounds the Redis stream; trimming is approximate.
const DefaultStreamLen = 100_000

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisPublisher appends events to a Redis stream with XADD.
type RedisPublisher struct {
	client streamAdder
	stream string
	maxLen int64
}

// NewRedisPublisher publishes to stream through client. maxLen <= 0 uses
// DefaultStreamLen.
func NewRedisPublisher(client *redis.Client, stream string, maxLen int64) *RedisPublisher {
	return newRedisPublisher(client, stream, maxLen)
}

func newRedisPublisher(client streamAdder, stream string, maxLen int64) *RedisPublisher {
	if maxLen <= 0 {
		maxLen = DefaultStreamLen
	}
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", evt.Type, err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":   evt.ID,
			"type": evt.Type,
			"at":   evt.At.Unix(),
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
