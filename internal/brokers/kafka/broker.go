// Package kafka exports events to a Kafka topic through the confluent producer.
package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"clinic-console/internal/brokers"
	"clinic-console/internal/brokers/base"
	"clinic-console/internal/common/logging"
)

// producer is the part of *kafka.Producer the broker uses
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error)
	Flush(timeoutMs int) int
	Close()
}

type Broker struct {
	*base.BaseBroker
	config   *Config
	producer producer
}

func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("kafka", config)
	if err != nil {
		return nil, err
	}

	kafkaConfig := kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(config.Brokers, ","),
		"client.id":          config.ClientID,
		"acks":               "all",
		"message.timeout.ms": int(config.DeliveryTimeout.Milliseconds()),
	}
	if config.SecurityProtocol != "PLAINTEXT" {
		kafkaConfig["security.protocol"] = config.SecurityProtocol
	}
	if strings.HasPrefix(config.SecurityProtocol, "SASL_") {
		kafkaConfig["sasl.mechanism"] = config.SASLMechanism
		kafkaConfig["sasl.username"] = config.SASLUsername
		kafkaConfig["sasl.password"] = config.SASLPassword
	}

	p, err := kafka.NewProducer(&kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return newBroker(baseBroker, config, p), nil
}

func newBroker(baseBroker *base.BaseBroker, config *Config, p producer) *Broker {
	return &Broker{
		BaseBroker: baseBroker,
		config:     config,
		producer:   p,
	}
}

// Publish produces one message keyed by message.Key and waits for the delivery report
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	topic := b.config.Topic
	kafkaMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Value:     message.Body,
		Timestamp: message.Timestamp,
	}
	if message.Key != "" {
		kafkaMsg.Key = []byte(message.Key)
	}
	for key, value := range message.Headers {
		kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	if message.MessageID != "" {
		kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{Key: "message_id", Value: []byte(message.MessageID)})
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := b.producer.Produce(kafkaMsg, deliveryChan); err != nil {
		return b.PublishError(err)
	}

	select {
	case <-ctx.Done():
		return b.PublishError(ctx.Err())
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return b.PublishError(fmt.Errorf("unexpected delivery event %v", e))
		}
		if m.TopicPartition.Error != nil {
			return b.PublishError(m.TopicPartition.Error)
		}
	}
	return nil
}

// Health fetches the topic metadata
func (b *Broker) Health(ctx context.Context) error {
	timeoutMs := 5000
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := int(time.Until(deadline).Milliseconds()); remaining > 0 && remaining < timeoutMs {
			timeoutMs = remaining
		}
	}
	topic := b.config.Topic
	if _, err := b.producer.GetMetadata(&topic, false, timeoutMs); err != nil {
		return fmt.Errorf("kafka metadata request failed: %w", err)
	}
	return nil
}

func (b *Broker) Close() error {
	if remaining := b.producer.Flush(5000); remaining > 0 {
		b.GetLogger().Warn("closing Kafka producer with undelivered messages",
			logging.Int("undelivered", remaining))
	}
	b.producer.Close()
	return nil
}

func init() {
	brokers.Register(brokers.FactoryFunc[*Config]{
		Type: "kafka",
		New: func(config *Config) (brokers.Publisher, error) {
			return NewBroker(config)
		},
	})
}
