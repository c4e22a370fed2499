// Package aws exports events to an SNS topic and/or an SQS queue.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"clinic-console/internal/brokers"
	"clinic-console/internal/brokers/base"
	"clinic-console/internal/common/errors"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	GetTopicAttributes(ctx context.Context, params *sns.GetTopicAttributesInput, optFns ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error)
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

type Broker struct {
	*base.BaseBroker
	config *Config
	sns    snsAPI
	sqs    sqsAPI
}

// NewBroker loads the AWS configuration for the region and creates the clients
// the config needs
func NewBroker(ctx context.Context, config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("aws", config)
	if err != nil {
		return nil, err
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("failed to load AWS config: %v", err))
	}

	b := &Broker{BaseBroker: baseBroker, config: config}
	if config.TopicARN != "" {
		b.sns = sns.NewFromConfig(awsCfg, func(o *sns.Options) {
			if config.Endpoint != "" {
				o.BaseEndpoint = aws.String(config.Endpoint)
			}
		})
	}
	if config.QueueURL != "" {
		b.sqs = sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if config.Endpoint != "" {
				o.BaseEndpoint = aws.String(config.Endpoint)
			}
		})
	}
	return b, nil
}

// Publish sends the message to every configured destination. FIFO destinations
// are grouped by message key and deduplicated by message id.
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	if b.sns != nil {
		if err := b.publishSNS(ctx, message); err != nil {
			return b.PublishError(err)
		}
	}
	if b.sqs != nil {
		if err := b.sendSQS(ctx, message); err != nil {
			return b.PublishError(err)
		}
	}
	return nil
}

func (b *Broker) publishSNS(ctx context.Context, message *brokers.Message) error {
	input := &sns.PublishInput{
		TopicArn:          aws.String(b.config.TopicARN),
		Message:           aws.String(string(message.Body)),
		MessageAttributes: make(map[string]snstypes.MessageAttributeValue, len(message.Headers)),
	}
	for k, v := range message.Headers {
		input.MessageAttributes[k] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	if fifo(b.config.TopicARN) {
		input.MessageGroupId = aws.String(groupID(message))
		input.MessageDeduplicationId = aws.String(message.MessageID)
	}

	_, err := b.sns.Publish(ctx, input)
	return err
}

func (b *Broker) sendSQS(ctx context.Context, message *brokers.Message) error {
	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(b.config.QueueURL),
		MessageBody:       aws.String(string(message.Body)),
		MessageAttributes: make(map[string]sqstypes.MessageAttributeValue, len(message.Headers)),
	}
	for k, v := range message.Headers {
		input.MessageAttributes[k] = sqstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	if fifo(b.config.QueueURL) {
		input.MessageGroupId = aws.String(groupID(message))
		input.MessageDeduplicationId = aws.String(message.MessageID)
	}

	_, err := b.sqs.SendMessage(ctx, input)
	return err
}

func groupID(message *brokers.Message) string {
	if message.Key != "" {
		return message.Key
	}
	return "default"
}

// Health reads the attributes of each configured destination
func (b *Broker) Health(ctx context.Context) error {
	if b.sns != nil {
		if _, err := b.sns.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{
			TopicArn: aws.String(b.config.TopicARN),
		}); err != nil {
			return fmt.Errorf("SNS topic unavailable: %w", err)
		}
	}
	if b.sqs != nil {
		if _, err := b.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl:       aws.String(b.config.QueueURL),
			AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
		}); err != nil {
			return fmt.Errorf("SQS queue unavailable: %w", err)
		}
	}
	return nil
}

// Close is a no-op; the SDK clients hold no connections of their own
func (b *Broker) Close() error {
	return nil
}

func init() {
	brokers.Register(brokers.FactoryFunc[*Config]{
		Type: "aws",
		New: func(config *Config) (brokers.Publisher, error) {
			return NewBroker(context.Background(), config)
		},
	})
}
