package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher publishes envelopes onto a Topic. Implemented by redis.Cmdable
// (and so by both *redis.Client and *redis.ClusterClient), matching the
// interface internal/ratelimit already targets for its Redis-backed
// algorithms.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// subscriber is the narrower surface Bus needs for consumption; only
// *redis.Client and *redis.ClusterClient satisfy it, since Subscribe
// returns connection-bound state that Cmdable deliberately omits.
type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Bus publishes and subscribes to Envelopes over Redis pub/sub with bounded
// retries on publish, per spec.md §6's "Event Bus Publisher... with bounded
// retries".
type Bus struct {
	client     Publisher
	sub        subscriber
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
}

// New builds a Bus. client must additionally implement subscriber (true of
// *redis.Client and *redis.ClusterClient) to use Subscribe; a Publisher-only
// client may be passed if the caller only ever publishes.
func New(client Publisher, logger *slog.Logger, maxRetries int, retryDelay time.Duration) *Bus {
	b := &Bus{client: client, logger: logger.With("component", "eventbus"), maxRetries: maxRetries, retryDelay: retryDelay}
	if s, ok := client.(subscriber); ok {
		b.sub = s
	}
	return b
}

// Publish marshals the envelope and publishes it to topic, retrying on
// transient failure up to maxRetries times with a fixed delay between
// attempts — spec.md §6's "bounded retries". The final error, if any, wraps
// the underlying Redis error.
func (b *Bus) Publish(ctx context.Context, topic Topic, envelope Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("eventbus: marshal envelope: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.retryDelay):
			}
		}
		if err := b.client.Publish(ctx, string(topic), payload).Err(); err != nil {
			lastErr = err
			b.logger.Warn("publish failed, retrying", "topic", topic, "attempt", attempt, "error", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("eventbus: publish to %s after %d attempts: %w", topic, b.maxRetries+1, lastErr)
}

// PublishEvent is a convenience wrapper: builds an Envelope from payload and
// publishes it in one call.
func (b *Bus) PublishEvent(ctx context.Context, topic Topic, source, eventType string, payload any, metadata map[string]string) error {
	envelope, err := NewEnvelope(source, eventType, payload, metadata)
	if err != nil {
		return fmt.Errorf("eventbus: build envelope: %w", err)
	}
	return b.Publish(ctx, topic, envelope)
}

// Subscribe returns a channel of decoded Envelopes for the given topics. The
// returned channel closes when ctx is cancelled or the underlying
// subscription errs out; malformed payloads are logged and dropped rather
// than propagated, matching the connector's "parse failures never crash the
// consumer" discipline.
func (b *Bus) Subscribe(ctx context.Context, topics ...Topic) (<-chan Envelope, error) {
	if b.sub == nil {
		return nil, fmt.Errorf("eventbus: client does not support Subscribe")
	}
	channels := make([]string, len(topics))
	for i, t := range topics {
		channels[i] = string(t)
	}

	pubsub := b.sub.Subscribe(ctx, channels...)
	out := make(chan Envelope)

	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var envelope Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
					b.logger.Warn("dropping malformed envelope", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- envelope:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
