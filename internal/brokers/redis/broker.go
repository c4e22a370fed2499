// Package redis exports events to a Redis stream with XADD.
package redis

import (
	"context"

	"clinic-console/internal/brokers"
	"clinic-console/internal/brokers/base"

	goredis "github.com/go-redis/redis/v8"
)

type Broker struct {
	*base.BaseBroker
	client *goredis.Client
	config *Config
}

func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("redis", config)
	if err != nil {
		return nil, err
	}
	return &Broker{
		BaseBroker: baseBroker,
		client:     config.Client,
		config:     config,
	}, nil
}

// Publish appends one entry with the body, message id, key and headers as
// fields
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	fields := map[string]interface{}{
		"body":       string(message.Body),
		"message_id": message.MessageID,
		"timestamp":  message.Timestamp.UnixMilli(),
	}
	if message.Key != "" {
		fields["key"] = message.Key
	}
	for k, v := range message.Headers {
		fields["header:"+k] = v
	}

	args := &goredis.XAddArgs{
		Stream: b.config.Stream,
		Values: fields,
	}
	if b.config.MaxLen > 0 {
		args.MaxLen = b.config.MaxLen
		args.Approx = true
	}

	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return b.PublishError(err)
	}
	return nil
}

func (b *Broker) Health(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close is a no-op; the shared client is closed by its owner
func (b *Broker) Close() error {
	return nil
}

func init() {
	brokers.Register(brokers.FactoryFunc[*Config]{
		Type: "redis",
		New: func(config *Config) (brokers.Publisher, error) {
			return NewBroker(config)
		},
	})
}
