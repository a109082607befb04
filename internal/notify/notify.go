// Package notify delivers the rendered batch report to an external sink.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Notifier hands a titled message to a sink.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// LogNotifier writes the message to the structured log. It is used when no
// other sink is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, title, message string) error {
	slog.Info("notify", "title", title, "message", message)
	return nil
}

// publishTimeout bounds a single XADD.
const publishTimeout = 5 * time.Second

// Message is the payload written to the stream.
type Message struct {
	EventID   uuid.UUID `json:"event_id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// RedisNotifier appends messages to a Redis stream for a downstream bot or
// message center to consume.
type RedisNotifier struct {
	client *redis.Client
	stream string
}

// NewRedisNotifier returns nil if client is nil.
func NewRedisNotifier(client *redis.Client, stream string) *RedisNotifier {
	if client == nil {
		return nil
	}
	return &RedisNotifier{client: client, stream: stream}
}

func (n *RedisNotifier) Notify(ctx context.Context, title, message string) error {
	if n == nil || n.client == nil {
		return nil
	}
	payload, err := json.Marshal(Message{
		EventID:   uuid.New(),
		Title:     title,
		Text:      message,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	id, err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{"notification": string(payload)},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to stream %s: %w", n.stream, err)
	}
	slog.Info("notify: published", "stream", n.stream, "stream_id", id)
	return nil
}
