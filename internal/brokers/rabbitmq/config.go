package rabbitmq

import (
	"fmt"
	"net/url"

	"clinic-console/internal/common/validation"
)

type Config struct {
	URL          string `json:"url" validate:"required,url"`
	Exchange     string `json:"exchange" validate:"required"`
	ExchangeType string `json:"exchange_type" validate:"oneof=direct topic fanout"`
	RoutingKey   string `json:"routing_key"`
}

func (c *Config) Validate() error {
	if c.ExchangeType == "" {
		c.ExchangeType = "topic"
	}
	return validation.ValidateStruct(c)
}

// GetConnectionString drops credentials from the URL
func (c *Config) GetConnectionString() string {
	if parsedURL, err := url.Parse(c.URL); err == nil && parsedURL.Host != "" {
		return fmt.Sprintf("amqp://%s/%s", parsedURL.Host, c.Exchange)
	}
	return "amqp://***"
}

func (c *Config) GetType() string {
	return "rabbitmq"
}
