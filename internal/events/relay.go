package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"clinic-console/internal/common/logging"
)

// DefaultRelayChannel is the pub/sub channel shared by all instances
const DefaultRelayChannel = "cti:events"

// PubSub is the subset of the Redis client the relay uses
type PubSub interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type relayEnvelope struct {
	Origin string   `json:"origin"`
	Event  CTIEvent `json:"event"`
}

// RedisRelay shares accepted events between instances. Each instance publishes the
// events it accepted and adds the events other instances published to its own store.
type RedisRelay struct {
	client  PubSub
	store   *Store
	channel string
	origin  string
	logger  logging.Logger
}

// NewRedisRelay creates a relay; origin identifies this instance and must be unique
func NewRedisRelay(client PubSub, store *Store, channel, origin string) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{
		client:  client,
		store:   store,
		channel: channel,
		origin:  origin,
		logger:  logging.Component("relay"),
	}
}

// Publish shares an event accepted by this instance
func (r *RedisRelay) Publish(ctx context.Context, event CTIEvent) error {
	if err := r.client.Publish(ctx, r.channel, relayEnvelope{Origin: r.origin, Event: event}); err != nil {
		return fmt.Errorf("failed to relay event %s: %w", event.ID, err)
	}
	return nil
}

// Run subscribes and adds remote events to the store until ctx is cancelled.
// ready, if not nil, is closed once the subscription is confirmed.
func (r *RedisRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	if ready != nil {
		close(ready)
	}
	r.logger.Info("event relay subscribed", logging.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	var envelope relayEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		r.logger.Warn("discarding malformed relay message", logging.Err(err))
		return
	}
	if envelope.Origin == r.origin {
		return
	}
	if !envelope.Event.EventType.Valid() {
		r.logger.Warn("discarding relay message with unknown event type",
			logging.String("event_type", string(envelope.Event.EventType)))
		return
	}
	r.store.AddEvent(envelope.Event)
}
