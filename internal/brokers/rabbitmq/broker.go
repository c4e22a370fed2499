// Package rabbitmq publishes events to a RabbitMQ exchange over AMQP 0.9.1
// (streadway/amqp). The connection is opened lazily and re-dialed after a
// failed publish.
package rabbitmq

import (
	"context"
	"sync"

	"clinic-console/internal/brokers"
	"clinic-console/internal/brokers/base"
	"clinic-console/internal/common/errors"
	"clinic-console/internal/common/logging"

	"github.com/streadway/amqp"
)

// channel is the subset of *amqp.Channel the publisher uses
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type connection interface {
	Channel() (channel, error)
	Close() error
}

type dialFunc func(url string) (connection, error)

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (channel, error) {
	return c.Connection.Channel()
}

func dialAMQP(url string) (connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

type Broker struct {
	*base.BaseBroker
	config *Config
	dial   dialFunc

	mu   sync.Mutex
	conn connection
	ch   channel
}

func NewBroker(config *Config) (*Broker, error) {
	return newBroker(config, dialAMQP)
}

func newBroker(config *Config, dial dialFunc) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("rabbitmq", config)
	if err != nil {
		return nil, err
	}
	return &Broker{
		BaseBroker: baseBroker,
		config:     config,
		dial:       dial,
	}, nil
}

// channelLocked dials and declares the exchange on first use. Caller holds mu.
func (b *Broker) channelLocked() (channel, error) {
	if b.ch != nil {
		return b.ch, nil
	}

	conn, err := b.dial(b.config.URL)
	if err != nil {
		return nil, errors.TransientError("failed to connect to RabbitMQ", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.TransientError("failed to open RabbitMQ channel", err)
	}
	if err := ch.ExchangeDeclare(b.config.Exchange, b.config.ExchangeType, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.TransientError("failed to declare exchange "+b.config.Exchange, err)
	}

	b.conn = conn
	b.ch = ch
	b.GetLogger().Info("Connected to RabbitMQ", logging.String("exchange", b.config.Exchange))
	return ch, nil
}

// resetLocked drops the connection so the next publish re-dials
func (b *Broker) resetLocked() {
	if b.ch != nil {
		b.ch.Close()
		b.ch = nil
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch, err := b.channelLocked()
	if err != nil {
		return err
	}

	routingKey := b.config.RoutingKey
	if message.Key != "" && routingKey == "" {
		routingKey = message.Key
	}

	headers := amqp.Table{}
	for k, v := range message.Headers {
		headers[k] = v
	}

	err = ch.Publish(b.config.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    message.MessageID,
		Timestamp:    message.Timestamp,
		Headers:      headers,
		Body:         message.Body,
	})
	if err != nil {
		b.resetLocked()
		return b.PublishError(err)
	}
	return nil
}

// Health connects if needed; an open channel counts as healthy
func (b *Broker) Health(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.channelLocked()
	return err
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
	return nil
}

func init() {
	brokers.Register(brokers.FactoryFunc[*Config]{
		Type: "rabbitmq",
		New: func(config *Config) (brokers.Publisher, error) {
			return NewBroker(config)
		},
	})
}
