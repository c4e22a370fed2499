package export

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinic-console/internal/brokers"
	"clinic-console/internal/circuitbreaker"
	"clinic-console/internal/config"
	"clinic-console/internal/events"
	"clinic-console/internal/metrics"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Name() string { return "mock" }

func (m *MockPublisher) Publish(ctx context.Context, message *brokers.Message) error {
	return m.Called(message).Error(0)
}

func (m *MockPublisher) Health(ctx context.Context) error { return m.Called().Error(0) }
func (m *MockPublisher) Close() error                     { return m.Called().Error(0) }

func testEvent() events.CTIEvent {
	return events.CTIEvent{
		ID:           "e1",
		EventType:    events.EventIncomingCall,
		CallerNumber: "010-1234-5678",
		CalledNumber: "02-555-0000",
		Timestamp:    time.UnixMilli(1700000000000).UTC(),
		ReceivedAt:   time.UnixMilli(1700000000500).UTC(),
	}
}

func TestNew_Disabled(t *testing.T) {
	e, err := New(context.Background(), config.ExportConfig{Broker: "none"}, nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, e)

	// a nil exporter is inert
	e.ExportEvent(context.Background(), testEvent())
	assert.NoError(t, e.Health(context.Background()))
	assert.NoError(t, e.Close())
	assert.Equal(t, "none", e.Name())
}

func TestNew_UnknownBroker(t *testing.T) {
	_, err := New(context.Background(), config.ExportConfig{Broker: "nats"}, nil, nil, nil)
	assert.Error(t, err)
}

func TestNew_RedisStream(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	e, err := New(ctx, config.ExportConfig{Broker: "redis", RedisStream: "cti:export"}, client, nil, circuitbreaker.NewManager(nil))
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "redis", e.Name())

	e.ExportEvent(ctx, testEvent())

	entries, err := client.XRange(ctx, "cti:export", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].Values["message_id"])
	assert.Equal(t, "01012345678", entries[0].Values["key"])
	assert.Equal(t, "INCOMING_CALL", entries[0].Values["header:event_type"])

	var decoded events.CTIEvent
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["body"].(string)), &decoded))
	assert.Equal(t, testEvent(), decoded)
}

func TestPublish_Message(t *testing.T) {
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.MatchedBy(func(m *brokers.Message) bool {
		return m.MessageID == "e1" &&
			m.Key == "01012345678" &&
			m.Headers["event_type"] == "INCOMING_CALL" &&
			m.Timestamp.Equal(testEvent().ReceivedAt)
	})).Return(nil)

	e := NewExporter(publisher, nil, nil)
	require.NoError(t, e.Publish(context.Background(), testEvent()))
	publisher.AssertExpectations(t)
}

func TestExportEvent_FailuresCountedAndBreakerOpens(t *testing.T) {
	m := metrics.New()
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything).Return(errors.New("connection refused"))

	breaker := circuitbreaker.New("export-test", circuitbreaker.Config{
		MaxFailures:           2,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	}, nil)
	e := NewExporter(publisher, breaker, m)

	for i := 0; i < 5; i++ {
		e.ExportEvent(context.Background(), testEvent())
	}

	publisher.AssertNumberOfCalls(t, "Publish", 2)
	assert.True(t, breaker.IsOpen())
	assert.Equal(t, float64(5), testutil.ToFloat64(m.ExportFailures.WithLabelValues("mock")))
}

func TestHealthAndClose(t *testing.T) {
	publisher := new(MockPublisher)
	publisher.On("Health").Return(errors.New("down"))
	publisher.On("Close").Return(nil)

	e := NewExporter(publisher, nil, nil)
	assert.Error(t, e.Health(context.Background()))
	assert.NoError(t, e.Close())
	publisher.AssertExpectations(t)
}
