package kafka

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Brokers          []string      `json:"brokers"`
	Topic            string        `json:"topic"`
	ClientID         string        `json:"client_id"`
	SecurityProtocol string        `json:"security_protocol"`
	SASLMechanism    string        `json:"sasl_mechanism"`
	SASLUsername     string        `json:"sasl_username"`
	SASLPassword     string        `json:"-"`
	DeliveryTimeout  time.Duration `json:"delivery_timeout"`
}

// ParseBrokers splits a comma separated broker list, dropping blanks
func ParseBrokers(list string) []string {
	var brokers []string
	for _, broker := range strings.Split(list, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("Kafka brokers are required")
	}
	for _, broker := range c.Brokers {
		if broker == "" {
			return fmt.Errorf("empty Kafka broker address")
		}
	}
	if c.Topic == "" {
		return fmt.Errorf("Kafka topic is required")
	}

	if c.ClientID == "" {
		c.ClientID = "clinic-console"
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 10 * time.Second
	}
	if c.SecurityProtocol == "" {
		c.SecurityProtocol = "PLAINTEXT"
	}

	switch c.SecurityProtocol {
	case "PLAINTEXT", "SSL", "SASL_PLAINTEXT", "SASL_SSL":
	default:
		return fmt.Errorf("invalid security protocol: %s", c.SecurityProtocol)
	}

	if strings.HasPrefix(c.SecurityProtocol, "SASL_") {
		if c.SASLMechanism == "" {
			c.SASLMechanism = "PLAIN"
		}
		switch c.SASLMechanism {
		case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		default:
			return fmt.Errorf("invalid SASL mechanism: %s", c.SASLMechanism)
		}
		if c.SASLUsername == "" || c.SASLPassword == "" {
			return fmt.Errorf("SASL username and password are required for SASL authentication")
		}
	}

	return nil
}

func (c *Config) GetType() string {
	return "kafka"
}

func (c *Config) GetConnectionString() string {
	return strings.Join(c.Brokers, ",") + "/" + c.Topic
}
