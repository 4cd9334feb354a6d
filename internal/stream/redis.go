package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ChannelPrefix namespaces mirrored progress events per request.
const ChannelPrefix = "veritas:stream:"

// Channel returns the pub/sub channel for one request id.
func Channel(requestID string) string {
	return ChannelPrefix + requestID
}

// RedisPublisher mirrors events to Redis pub/sub so other processes can
// follow a request's progress.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(opts *redis.Options) *RedisPublisher {
	return &RedisPublisher{rdb: redis.NewClient(opts)}
}

// NewRedisPublisherFromURL parses a redis:// URL.
func NewRedisPublisherFromURL(url string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisPublisher(opts), nil
}

func (p *RedisPublisher) Publish(ctx context.Context, ev domain.StreamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	if err := p.rdb.Publish(ctx, Channel(ev.RequestID), payload).Err(); err != nil {
		return fmt.Errorf("publish stream event: %w", err)
	}
	return nil
}

// Subscribe follows one request's mirrored events.
func (p *RedisPublisher) Subscribe(ctx context.Context, requestID string) *redis.PubSub {
	return p.rdb.Subscribe(ctx, Channel(requestID))
}

func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
