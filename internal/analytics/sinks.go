package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

const (
	// StreamKey is the Redis stream for analytics events.
	StreamKey = "stream:analytics_events"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// SubjectPrefix prefixes NATS subjects; the event type is appended.
	SubjectPrefix = "analytics."

	natsFlushTimeout = 5 * time.Second
)

// NoopSink discards events.
type NoopSink struct{}

// Publish implements Sink.
func (NoopSink) Publish(context.Context, []Event) error { return nil }

// RedisStreamSink appends events to a Redis stream.
type RedisStreamSink struct {
	redis  redis.Cmdable
	logger *slog.Logger
}

// NewRedisStreamSink creates a sink over client.
func NewRedisStreamSink(client redis.Cmdable, logger *slog.Logger) *RedisStreamSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStreamSink{redis: client, logger: logger.With("component", "analytics.redis_sink")}
}

// Publish adds each event to the stream in one pipeline.
func (s *RedisStreamSink) Publish(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	pipe := s.redis.Pipeline()
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: StreamKey,
			MaxLen: MaxStreamLen,
			Approx: true,
			ID:     "*",
			Values: map[string]interface{}{
				"type":    e.Type,
				"payload": string(data),
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	s.logger.Debug("events appended to stream", "count", len(events))
	return nil
}

// NATSPublisher is the part of *nats.Conn the sink needs.
type NATSPublisher interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// NATSSink publishes each event on analytics.<type>.
type NATSSink struct {
	conn NATSPublisher
}

// NewNATSSink creates a sink over conn.
func NewNATSSink(conn NATSPublisher) *NATSSink {
	return &NATSSink{conn: conn}
}

// Publish sends events and waits for the server to acknowledge the flush.
func (s *NATSSink) Publish(ctx context.Context, events []Event) error {
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		msg := nats.NewMsg(SubjectPrefix + e.Type)
		msg.Header.Set("Event-Id", e.ID)
		msg.Data = data
		if err := s.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, natsFlushTimeout)
		defer cancel()
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}
