// Package base holds the state every publisher shares: its name, validated
// config and a logger tagged with the sanitized connection string.
package base

import (
	"fmt"

	"clinic-console/internal/brokers"
	"clinic-console/internal/common/errors"
	"clinic-console/internal/common/logging"
)

type BaseBroker struct {
	name   string
	logger logging.Logger
	config brokers.BrokerConfig
}

// NewBaseBroker validates config and sets up structured logging
func NewBaseBroker(name string, config brokers.BrokerConfig) (*BaseBroker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid %s config: %v", name, err))
	}

	logger := logging.Component("broker").WithFields(
		logging.String("broker", name),
		logging.String("connection", config.GetConnectionString()),
	)

	return &BaseBroker{
		name:   name,
		config: config,
		logger: logger,
	}, nil
}

func (b *BaseBroker) Name() string {
	return b.name
}

func (b *BaseBroker) GetLogger() logging.Logger {
	return b.logger
}

func (b *BaseBroker) GetConfig() brokers.BrokerConfig {
	return b.config
}

// PublishError wraps a delivery failure as transient so the caller's breaker
// counts it
func (b *BaseBroker) PublishError(err error) error {
	return errors.TransientError(fmt.Sprintf("%s publish failed", b.name), err)
}
