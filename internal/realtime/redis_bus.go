package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// channel all instances publish and subscribe on.
const redisChannel = "kanbanflow:realtime"

// RedisBus carries broadcast frames across instances over a Redis pub/sub
// channel. Each bus tags its publications with an origin id and ignores its
// own messages on the way back in.
type RedisBus struct {
	client *redis.Client
	origin string
	logger *slog.Logger
}

// NewRedisBus connects to Redis and returns a cross-instance bus.
func NewRedisBus(redisURL string, logger *slog.Logger) (*RedisBus, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisBus{
		client: client,
		origin: uuid.New().String(),
		logger: logger,
	}, nil
}

// Publish sends a frame to the shared channel.
func (b *RedisBus) Publish(ctx context.Context, boardID string, frame Frame) error {
	raw, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	msg, err := json.Marshal(busMessage{
		Origin:  b.origin,
		BoardID: boardID,
		Frame:   raw,
	})
	if err != nil {
		return fmt.Errorf("encoding bus message: %w", err)
	}
	return b.client.Publish(ctx, redisChannel, msg).Err()
}

// Subscribe consumes the shared channel until ctx is done, skipping messages
// this instance published itself.
func (b *RedisBus) Subscribe(ctx context.Context, handler func(boardID string, frame Frame)) error {
	sub := b.client.Subscribe(ctx, redisChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m busMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				b.logger.Warn("dropping malformed bus message", "error", err)
				continue
			}
			if m.Origin == b.origin {
				continue
			}
			var frame Frame
			if err := json.Unmarshal(m.Frame, &frame); err != nil {
				b.logger.Warn("dropping malformed bus frame", "error", err)
				continue
			}
			handler(m.BoardID, frame)
		}
	}
}

// Close shuts down the Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
