package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-console/internal/brokers"
	"clinic-console/internal/brokers/base"
	apperrors "clinic-console/internal/common/errors"
)

type fakeProducer struct {
	produced    []*kafka.Message
	produceErr  error
	deliveryErr error
	noReport    bool
	metadataErr error
	flushed     bool
	closed      bool
}

func (f *fakeProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	if f.produceErr != nil {
		return f.produceErr
	}
	f.produced = append(f.produced, msg)
	if f.noReport {
		return nil
	}
	report := *msg
	report.TopicPartition.Error = f.deliveryErr
	deliveryChan <- &report
	return nil
}

func (f *fakeProducer) GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error) {
	if f.metadataErr != nil {
		return nil, f.metadataErr
	}
	return &kafka.Metadata{}, nil
}

func (f *fakeProducer) Flush(timeoutMs int) int {
	f.flushed = true
	return 0
}

func (f *fakeProducer) Close() {
	f.closed = true
}

func newTestBroker(t *testing.T, p *fakeProducer) *Broker {
	t.Helper()
	config := &Config{Brokers: []string{"localhost:9092"}, Topic: "cti-events"}
	baseBroker, err := base.NewBaseBroker("kafka", config)
	require.NoError(t, err)
	return newBroker(baseBroker, config, p)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{Brokers: []string{"a:9092"}, Topic: "t"}, false},
		{"no brokers", Config{Topic: "t"}, true},
		{"empty broker", Config{Brokers: []string{""}, Topic: "t"}, true},
		{"no topic", Config{Brokers: []string{"a:9092"}}, true},
		{"bad protocol", Config{Brokers: []string{"a:9092"}, Topic: "t", SecurityProtocol: "TLS"}, true},
		{"sasl without credentials", Config{Brokers: []string{"a:9092"}, Topic: "t", SecurityProtocol: "SASL_SSL"}, true},
		{"sasl", Config{Brokers: []string{"a:9092"}, Topic: "t", SecurityProtocol: "SASL_SSL", SASLUsername: "u", SASLPassword: "p"}, false},
		{"bad mechanism", Config{Brokers: []string{"a:9092"}, Topic: "t", SecurityProtocol: "SASL_SSL", SASLMechanism: "GSSAPI", SASLUsername: "u", SASLPassword: "p"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	config := &Config{Brokers: ParseBrokers(" a:9092, ,b:9092"), Topic: "t"}
	require.NoError(t, config.Validate())

	assert.Equal(t, []string{"a:9092", "b:9092"}, config.Brokers)
	assert.Equal(t, "clinic-console", config.ClientID)
	assert.Equal(t, "PLAINTEXT", config.SecurityProtocol)
	assert.Equal(t, 10*time.Second, config.DeliveryTimeout)
	assert.Equal(t, "a:9092,b:9092/t", config.GetConnectionString())
}

func TestPublish(t *testing.T) {
	p := &fakeProducer{}
	b := newTestBroker(t, p)

	err := b.Publish(context.Background(), &brokers.Message{
		MessageID: "e1",
		Key:       "01012345678",
		Headers:   map[string]string{"event_type": "MISSED_CALL"},
		Body:      []byte(`{"id":"e1"}`),
	})
	require.NoError(t, err)
	require.Len(t, p.produced, 1)

	msg := p.produced[0]
	assert.Equal(t, "cti-events", *msg.TopicPartition.Topic)
	assert.Equal(t, []byte("01012345678"), msg.Key)
	assert.Equal(t, []byte(`{"id":"e1"}`), msg.Value)
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_type", Value: []byte("MISSED_CALL")})
	assert.Contains(t, msg.Headers, kafka.Header{Key: "message_id", Value: []byte("e1")})
}

func TestPublish_Failures(t *testing.T) {
	t.Run("produce error", func(t *testing.T) {
		b := newTestBroker(t, &fakeProducer{produceErr: errors.New("queue full")})
		err := b.Publish(context.Background(), &brokers.Message{Body: []byte("{}")})
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeTransient))
	})

	t.Run("delivery error", func(t *testing.T) {
		b := newTestBroker(t, &fakeProducer{deliveryErr: errors.New("broker down")})
		err := b.Publish(context.Background(), &brokers.Message{Body: []byte("{}")})
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeTransient))
	})

	t.Run("context cancelled while waiting", func(t *testing.T) {
		b := newTestBroker(t, &fakeProducer{noReport: true})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := b.Publish(ctx, &brokers.Message{Body: []byte("{}")})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestHealthAndClose(t *testing.T) {
	p := &fakeProducer{}
	b := newTestBroker(t, p)
	assert.NoError(t, b.Health(context.Background()))

	p.metadataErr = errors.New("timed out")
	assert.Error(t, b.Health(context.Background()))

	require.NoError(t, b.Close())
	assert.True(t, p.flushed)
	assert.True(t, p.closed)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, brokers.Types(), "kafka")
}
