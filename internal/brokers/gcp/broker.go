// Package gcp exports events to a Google Cloud Pub/Sub topic.
package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"clinic-console/internal/brokers"
	"clinic-console/internal/brokers/base"
	"clinic-console/internal/common/errors"
)

type Broker struct {
	*base.BaseBroker
	config *Config
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewBroker connects to Pub/Sub and checks that the topic exists. Extra client
// options are appended after the credentials option.
func NewBroker(ctx context.Context, config *Config, opts ...option.ClientOption) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("gcp", config)
	if err != nil {
		return nil, err
	}

	var clientOpts []option.ClientOption
	if config.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(config.CredentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	client, err := pubsub.NewClient(ctx, config.ProjectID, clientOpts...)
	if err != nil {
		return nil, errors.TransientError("failed to create Pub/Sub client", err)
	}

	topic := client.Topic(config.TopicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, errors.TransientError("failed to check topic existence", err)
	}
	if !exists {
		client.Close()
		return nil, errors.ConfigError(fmt.Sprintf("topic %s does not exist", config.TopicID))
	}

	topic.PublishSettings.DelayThreshold = 10 * time.Millisecond
	topic.PublishSettings.CountThreshold = 10
	topic.EnableMessageOrdering = config.EnableOrdering

	return &Broker{
		BaseBroker: baseBroker,
		config:     config,
		client:     client,
		topic:      topic,
	}, nil
}

// Publish waits for the server to acknowledge the message
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	attributes := make(map[string]string, len(message.Headers)+1)
	for k, v := range message.Headers {
		attributes[k] = v
	}
	if message.MessageID != "" {
		attributes["message_id"] = message.MessageID
	}

	msg := &pubsub.Message{
		Data:       message.Body,
		Attributes: attributes,
	}
	if b.config.EnableOrdering {
		msg.OrderingKey = message.Key
	}

	if _, err := b.topic.Publish(ctx, msg).Get(ctx); err != nil {
		// a failed ordered publish pauses its key until resumed
		if msg.OrderingKey != "" {
			b.topic.ResumePublish(msg.OrderingKey)
		}
		return b.PublishError(err)
	}
	return nil
}

func (b *Broker) Health(ctx context.Context) error {
	exists, err := b.topic.Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check topic: %w", err)
	}
	if !exists {
		return fmt.Errorf("topic %s no longer exists", b.config.TopicID)
	}
	return nil
}

// Close flushes pending publishes and closes the client
func (b *Broker) Close() error {
	b.topic.Stop()
	return b.client.Close()
}

func init() {
	brokers.Register(brokers.FactoryFunc[*Config]{
		Type: "gcp",
		New: func(config *Config) (brokers.Publisher, error) {
			return NewBroker(context.Background(), config)
		},
	})
}
