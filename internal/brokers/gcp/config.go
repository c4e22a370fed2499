package gcp

import (
	"fmt"

	"clinic-console/internal/common/validation"
)

type Config struct {
	ProjectID string `json:"project_id" validate:"required"`
	TopicID   string `json:"topic_id" validate:"required"`
	// CredentialsFile is a service account key; empty uses Application Default Credentials
	CredentialsFile string `json:"credentials_file"`
	// EnableOrdering delivers messages with the same key in publish order
	EnableOrdering bool `json:"enable_ordering"`
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c)
}

func (c *Config) GetType() string {
	return "gcp"
}

func (c *Config) GetConnectionString() string {
	return fmt.Sprintf("pubsub://%s/%s", c.ProjectID, c.TopicID)
}
