// Package stream carries envelope-encoded events between the subscription
// collaborator and this process. Redis Streams preserve insertion order,
// which is exactly the delivery contract the pipeline depends on.
package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nadscan/tradeledger/internal/domain/event"
	"github.com/redis/go-redis/v9"
)

const payloadField = "payload"

// RedisStream reads events from one Redis stream key, oldest first.
type RedisStream struct {
	client *redis.Client
	key    string
	lastID string
	block  time.Duration
}

func NewRedisStream(url, key string) (*RedisStream, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStream{
		client: client,
		key:    key,
		lastID: "0-0",
		block:  5 * time.Second,
	}, nil
}

// Next blocks until the next entry is available and decodes it. Entries are
// consumed strictly in stream order; the reader never skips ahead.
func (s *RedisStream) Next(ctx context.Context) (event.Event, error) {
	for {
		res, err := s.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{s.key, s.lastID},
			Count:   1,
			Block:   s.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// XRead timed out with nothing new; poll again.
				continue
			}
			return nil, fmt.Errorf("read stream %s: %w", s.key, err)
		}
		if len(res) == 0 || len(res[0].Messages) == 0 {
			continue
		}

		msg := res[0].Messages[0]
		raw, ok := msg.Values[payloadField].(string)
		if !ok {
			return nil, fmt.Errorf("stream %s entry %s: missing %s field", s.key, msg.ID, payloadField)
		}

		ev, err := event.Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("stream %s entry %s: %w", s.key, msg.ID, err)
		}
		s.lastID = msg.ID
		return ev, nil
	}
}

// Publish appends an event to the stream. Used by tools and tests; the
// production writer is the subscription collaborator.
func (s *RedisStream) Publish(ctx context.Context, ev event.Event) error {
	data, err := event.Encode(ev)
	if err != nil {
		return err
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key,
		Values: map[string]any{payloadField: string(data)},
	}).Err()
}

func (s *RedisStream) Close() error {
	return s.client.Close()
}
