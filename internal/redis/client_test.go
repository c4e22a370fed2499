package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := NewClient(&Config{Address: mr.Addr()})
	require.NoError(t, err)

	return client, mr
}

func TestNewClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	t.Run("successful connection applies defaults", func(t *testing.T) {
		config := &Config{Address: mr.Addr()}

		client, err := NewClient(config)
		require.NoError(t, err)
		defer client.Close()

		assert.Equal(t, 10, config.PoolSize)
		assert.NotNil(t, client.Redis())
	})

	t.Run("nil config", func(t *testing.T) {
		client, err := NewClient(nil)
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "redis config is required")
	})

	t.Run("connection failure", func(t *testing.T) {
		client, err := NewClient(&Config{Address: "127.0.0.1:1"})
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
	})
}

func TestClient_Health(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	assert.NoError(t, client.Health())

	mr.Close()
	assert.Error(t, client.Health())
}

func TestClient_IncrementWindow(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		count, ttl, err := client.IncrementWindow(ctx, "rl:login:1.2.3.4", time.Second)
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Second)
	}

	// The window does not slide with later hits
	assert.Equal(t, time.Second, mr.TTL("rl:login:1.2.3.4"))

	mr.FastForward(time.Second)

	count, ttl, err := client.IncrementWindow(ctx, "rl:login:1.2.3.4", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "a new window starts after expiry")
	assert.Equal(t, time.Second, ttl)
}

func TestClient_PubSub(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	channel := "cti:events"

	pubsub := client.Subscribe(ctx, channel)
	defer pubsub.Close()

	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, client.Publish(ctx, channel, map[string]string{"id": "e1"}))
	msg, err := pubsub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, channel, msg.Channel)
	assert.JSONEq(t, `{"id":"e1"}`, msg.Payload)

	require.NoError(t, client.Publish(ctx, channel, []byte("raw")))
	msg, err = pubsub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "raw", msg.Payload)
}
