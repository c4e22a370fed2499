package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisPubSub adapts a raw go-redis client to PubSub for the tests
type redisPubSub struct {
	rdb *redis.Client
}

func (r redisPubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, channel, data).Err()
}

func (r redisPubSub) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return r.rdb.Subscribe(ctx, channels...)
}

func TestRedisRelay_SharesEventsBetweenInstances(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	client := redisPubSub{rdb: rdb}

	storeA := NewStore(10, nil)
	storeB := NewStore(10, nil)
	relayA := NewRedisRelay(client, storeA, "", "instance-a")
	relayB := NewRedisRelay(client, storeB, "", "instance-b")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	readyA := make(chan struct{})
	readyB := make(chan struct{})
	go relayA.Run(ctx, readyA)
	go relayB.Run(ctx, readyB)
	<-readyA
	<-readyB

	// Instance A accepts an event locally and relays it
	accepted := event(1)
	storeA.AddEvent(accepted)
	require.NoError(t, relayA.Publish(ctx, accepted))

	assert.Eventually(t, func() bool {
		return len(storeB.GetRecentEvents(0)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "e1", storeB.GetRecentEvents(1)[0].ID)

	// A ignores its own message, so it still holds exactly one copy
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, storeA.GetRecentEvents(0), 1)
}

func TestRedisRelay_DiscardsInvalidMessages(t *testing.T) {
	store := NewStore(10, nil)
	relay := NewRedisRelay(nil, store, "", "me")

	relay.handle("not json")
	relay.handle(`{"origin":"other","event":{"id":"x","eventType":"UNKNOWN"}}`)
	relay.handle(`{"origin":"me","event":{"id":"y","eventType":"INCOMING_CALL"}}`)
	assert.Empty(t, store.GetRecentEvents(0))

	relay.handle(`{"origin":"other","event":{"id":"z","eventType":"CALL_ENDED"}}`)
	require.Len(t, store.GetRecentEvents(0), 1)
	assert.Equal(t, EventCallEnded, store.GetRecentEvents(1)[0].EventType)
}

func TestRedisRelay_RunStopsOnCancel(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	relay := NewRedisRelay(redisPubSub{rdb: rdb}, NewStore(10, nil), "test:events", "a")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	ready := make(chan struct{})
	go func() { done <- relay.Run(ctx, ready) }()
	<-ready
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
