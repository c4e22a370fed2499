package aws

import (
	"fmt"
	"strings"

	"clinic-console/internal/common/validation"
)

// Config selects an SNS topic, an SQS queue or both. Static credentials are
// optional; without them the default AWS credential chain is used.
type Config struct {
	Region          string `json:"region" validate:"required"`
	TopicARN        string `json:"topic_arn" validate:"required_without=QueueURL"`
	QueueURL        string `json:"queue_url" validate:"required_without=TopicARN"`
	AccessKeyID     string `json:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `json:"-" validate:"required_with=AccessKeyID"`
	// Endpoint overrides the service endpoint, e.g. for LocalStack
	Endpoint string `json:"endpoint" validate:"omitempty,url"`
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if c.TopicARN != "" && !strings.HasPrefix(c.TopicARN, "arn:") {
		return fmt.Errorf("topic_arn must be an ARN")
	}
	return nil
}

func (c *Config) GetType() string {
	return "aws"
}

func (c *Config) GetConnectionString() string {
	var targets []string
	if c.TopicARN != "" {
		targets = append(targets, fmt.Sprintf("sns://%s/%s", c.Region, c.TopicARN))
	}
	if c.QueueURL != "" {
		targets = append(targets, fmt.Sprintf("sqs://%s/%s", c.Region, c.QueueURL))
	}
	if len(targets) == 0 {
		return fmt.Sprintf("aws://%s", c.Region)
	}
	return strings.Join(targets, ",")
}

// fifo reports whether a topic ARN or queue URL names a FIFO destination
func fifo(target string) bool {
	return strings.HasSuffix(target, ".fifo")
}
