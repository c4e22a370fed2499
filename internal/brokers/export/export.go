// Package export publishes accepted CTI events to the configured external broker.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"clinic-console/internal/brokers"
	"clinic-console/internal/brokers/aws"
	"clinic-console/internal/brokers/gcp"
	"clinic-console/internal/brokers/kafka"
	"clinic-console/internal/brokers/rabbitmq"
	"clinic-console/internal/brokers/redis"
	"clinic-console/internal/circuitbreaker"
	"clinic-console/internal/common/logging"
	"clinic-console/internal/config"
	"clinic-console/internal/events"
	"clinic-console/internal/metrics"
)

// DefaultTimeout bounds a single publish
const DefaultTimeout = 5 * time.Second

// Exporter sends events through a circuit breaker so a dead broker costs one
// fast rejection per event instead of a full timeout
type Exporter struct {
	publisher brokers.Publisher
	breaker   *circuitbreaker.Breaker
	metrics   *metrics.Metrics
	logger    logging.Logger
	timeout   time.Duration
}

// New builds the exporter for cfg.Broker. It returns nil when export is disabled;
// a nil *Exporter ignores every call. When breakers is set the export breaker is
// registered there so it shows up in the runtime status.
func New(ctx context.Context, cfg config.ExportConfig, redisClient *goredis.Client, m *metrics.Metrics, breakers *circuitbreaker.Manager) (*Exporter, error) {
	if cfg.Broker == "" || cfg.Broker == "none" {
		return nil, nil
	}

	brokerConfig, err := brokerConfigFor(cfg, redisClient)
	if err != nil {
		return nil, err
	}

	var publisher brokers.Publisher
	switch c := brokerConfig.(type) {
	case *aws.Config:
		publisher, err = aws.NewBroker(ctx, c)
	case *gcp.Config:
		publisher, err = gcp.NewBroker(ctx, c)
	default:
		publisher, err = brokers.Create(brokerConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", cfg.Broker, err)
	}

	var breaker *circuitbreaker.Breaker
	if breakers != nil {
		breaker = breakers.GetOrCreate("export-"+cfg.Broker, circuitbreaker.BrokerConfig)
	}
	return NewExporter(publisher, breaker, m), nil
}

func brokerConfigFor(cfg config.ExportConfig, redisClient *goredis.Client) (brokers.BrokerConfig, error) {
	switch cfg.Broker {
	case "rabbitmq":
		return &rabbitmq.Config{
			URL:        cfg.RabbitMQURL,
			Exchange:   cfg.RabbitMQExchange,
			RoutingKey: cfg.RabbitMQRoutingKey,
		}, nil
	case "redis":
		return &redis.Config{Client: redisClient, Stream: cfg.RedisStream, MaxLen: 10000}, nil
	case "kafka":
		return &kafka.Config{Brokers: kafka.ParseBrokers(cfg.KafkaBrokers), Topic: cfg.KafkaTopic}, nil
	case "aws":
		return &aws.Config{
			Region:          cfg.AWSRegion,
			TopicARN:        cfg.AWSTopicARN,
			QueueURL:        cfg.AWSQueueURL,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Endpoint:        cfg.AWSEndpoint,
		}, nil
	case "gcp":
		return &gcp.Config{
			ProjectID:       cfg.GCPProjectID,
			TopicID:         cfg.GCPTopicID,
			CredentialsFile: cfg.GCPCredentialsFile,
		}, nil
	}
	return nil, fmt.Errorf("unknown export broker %q", cfg.Broker)
}

// NewExporter wraps publisher; a nil breaker uses BrokerConfig defaults
func NewExporter(publisher brokers.Publisher, breaker *circuitbreaker.Breaker, m *metrics.Metrics) *Exporter {
	if breaker == nil {
		breaker = circuitbreaker.New("export-"+publisher.Name(), circuitbreaker.BrokerConfig, nil)
	}
	return &Exporter{
		publisher: publisher,
		breaker:   breaker,
		metrics:   m,
		logger:    logging.Component("export").WithFields(logging.String("broker", publisher.Name())),
		timeout:   DefaultTimeout,
	}
}

// ExportEvent publishes event and logs failures; it never returns an error to
// the ingestion path
func (e *Exporter) ExportEvent(ctx context.Context, event events.CTIEvent) {
	if e == nil {
		return
	}
	if err := e.Publish(ctx, event); err != nil {
		e.metrics.ExportFailed(e.publisher.Name())
		e.logger.Warn("failed to export CTI event",
			logging.String("event_id", event.ID),
			logging.Err(err))
	}
}

// Publish sends one event and returns the failure
func (e *Exporter) Publish(ctx context.Context, event events.CTIEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}

	message := &brokers.Message{
		MessageID: event.ID,
		Key:       events.NormalizePhone(event.CallerNumber),
		Headers: map[string]string{
			"event_type":   string(event.EventType),
			"content_type": "application/json",
		},
		Body:      body,
		Timestamp: event.ReceivedAt,
	}

	return e.breaker.Execute(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		return e.publisher.Publish(ctx, message)
	})
}

// Health checks the broker connection
func (e *Exporter) Health(ctx context.Context) error {
	if e == nil {
		return nil
	}
	return e.publisher.Health(ctx)
}

// Name is the broker type, or "none" for a nil exporter
func (e *Exporter) Name() string {
	if e == nil {
		return "none"
	}
	return e.publisher.Name()
}

func (e *Exporter) Close() error {
	if e == nil {
		return nil
	}
	return e.publisher.Close()
}
