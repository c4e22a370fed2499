// Package brokers defines the publishers that export accepted CTI events to an
// external message broker. Each backend lives in its own subpackage and
// registers a factory with DefaultRegistry from init.
package brokers

import (
	"context"
	"time"
)

// Publisher delivers messages to one destination (exchange, stream, topic or queue)
type Publisher interface {
	Name() string
	Publish(ctx context.Context, message *Message) error
	Health(ctx context.Context) error
	Close() error
}

type BrokerConfig interface {
	Validate() error
	// GetConnectionString is safe to log; credentials are stripped
	GetConnectionString() string
	GetType() string
}

type Message struct {
	MessageID string
	// Key orders or partitions messages where the broker supports it
	Key       string
	Headers   map[string]string
	Body      []byte
	Timestamp time.Time
}

type PublisherFactory interface {
	Create(config BrokerConfig) (Publisher, error)
	GetType() string
}

// FactoryFunc adapts a constructor for a concrete config type to PublisherFactory
type FactoryFunc[C BrokerConfig] struct {
	Type string
	New  func(config C) (Publisher, error)
}

func (f FactoryFunc[C]) Create(config BrokerConfig) (Publisher, error) {
	typed, ok := config.(C)
	if !ok {
		return nil, &ConfigTypeError{Type: f.Type}
	}
	return f.New(typed)
}

func (f FactoryFunc[C]) GetType() string {
	return f.Type
}

type ConfigTypeError struct {
	Type string
}

func (e *ConfigTypeError) Error() string {
	return "invalid config type for " + e.Type + " broker"
}
