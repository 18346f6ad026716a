package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"bolao/internal/domain"
)

// EventsChannel is the Pub/Sub channel every domain event is broadcast on.
const EventsChannel = "bolao:events"

// EventPublisher implements domain.EventPublisher using Redis Pub/Sub.
// Delivery is at-most-once to currently connected subscribers; the durable
// record lives in the event journal.
type EventPublisher struct {
	rdb *redis.Client
}

// NewEventPublisher creates an EventPublisher backed by the given Client.
func NewEventPublisher(c *Client) *EventPublisher {
	return &EventPublisher{rdb: c.Underlying()}
}

// Publish broadcasts an event as JSON on the events channel.
func (ep *EventPublisher) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	if err := ep.rdb.Publish(ctx, EventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", EventsChannel, err)
	}
	return nil
}

// Subscribe creates a Pub/Sub subscription on channel and returns a read-only
// channel of raw payloads. The subscription closes when the context is
// cancelled; the returned channel is closed at that point as well.
func (ep *EventPublisher) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = ep.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = ep.rdb.Subscribe(ctx, channel)
	}

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// hasPattern returns true when the channel includes glob-style wildcards, in
// which case PSubscribe must be used instead of Subscribe.
func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

// Compile-time interface check.
var _ domain.EventPublisher = (*EventPublisher)(nil)
