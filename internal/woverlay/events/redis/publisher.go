// Package redis publishes lifecycle events to Redis pub/sub and keeps a capped
// list of recent events for late subscribers
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wrale/wrale-overlay/internal/woverlay/events"
	"github.com/wrale/wrale-overlay/internal/woverlay/notification"
)

const (
	// DefaultChannel is the pub/sub channel events are published on
	DefaultChannel = "woverlay:events"
	// DefaultHistoryKey is the list holding recent events, newest first
	DefaultHistoryKey = "woverlay:events:recent"
	// DefaultHistoryLimit caps the recent event list
	DefaultHistoryLimit = 100
	// DefaultHistoryExpiry is refreshed on every publish
	DefaultHistoryExpiry = 24 * time.Hour
)

// Options configures a Publisher
type Options struct {
	Channel      string
	HistoryKey   string
	HistoryLimit int
}

// Publisher implements notification.EventPublisher using Redis
type Publisher struct {
	client *redis.Client
	opts   Options
}

// NewPublisher creates a Redis-backed event publisher
func NewPublisher(client *redis.Client, opts Options) *Publisher {
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	if opts.HistoryKey == "" {
		opts.HistoryKey = DefaultHistoryKey
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &Publisher{client: client, opts: opts}
}

// Publish sends e to subscribers and records it in the recent list
func (p *Publisher) Publish(ctx context.Context, e notification.Event) error {
	payload, err := json.Marshal(events.ToAPI(e))
	if err != nil {
		return fmt.Errorf("error encoding event: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Publish(ctx, p.opts.Channel, payload)
	pipe.LPush(ctx, p.opts.HistoryKey, payload)
	pipe.LTrim(ctx, p.opts.HistoryKey, 0, int64(p.opts.HistoryLimit-1))
	pipe.Expire(ctx, p.opts.HistoryKey, DefaultHistoryExpiry)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error publishing event: %w", err)
	}
	return nil
}

// Recent returns up to n of the most recent events, newest first
func (p *Publisher) Recent(ctx context.Context, n int) ([][]byte, error) {
	if n <= 0 || n > p.opts.HistoryLimit {
		n = p.opts.HistoryLimit
	}
	vals, err := p.client.LRange(ctx, p.opts.HistoryKey, 0, int64(n-1)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading recent events: %w", err)
	}

	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}
