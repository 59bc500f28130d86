// Package queue carries sweep summaries to the downstream reporting
// consumer as JSON messages on a redis list. Delivery is best effort; the
// sweep result itself lives in the attendance log.
package queue

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes JSON payloads onto a feed.
type Publisher interface {
	Publish(ctx context.Context, payload any) error
}

// InMemory is a minimal channel-backed feed for dev/testing.
type InMemory struct {
	ch chan []byte
}

// NewInMemory creates a bounded in-memory feed.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan []byte, size)}
}

// Publish enqueues a payload, dropping when the buffer is full.
func (q *InMemory) Publish(ctx context.Context, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	select {
	case q.ch <- raw:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Messages exposes the feed for consumers.
func (q *InMemory) Messages() <-chan []byte {
	return q.ch
}

// RedisList implements the feed over LPUSH; the reporting service drains it
// with BRPOP.
type RedisList struct {
	client *redis.Client
	key    string
}

// NewRedisList builds a feed on the given list key.
func NewRedisList(client *redis.Client, key string) *RedisList {
	if key == "" {
		key = "attendance:sweeps"
	}
	return &RedisList{client: client, key: key}
}

// Publish enqueues a payload.
func (q *RedisList) Publish(ctx context.Context, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

