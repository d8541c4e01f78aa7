package aws

import (
	"context"
	"errors"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSPublisher is a minimal interface for publishing messages to SNS.
type SNSPublisher interface {
	Publish(ctx context.Context, topicArn string, message []byte) error
}

// PushPublisher delivers a message to a single mobile platform endpoint.
type PushPublisher interface {
	PublishToEndpoint(ctx context.Context, endpointArn string, message []byte) error
}

type SNSClient struct {
	client *sns.Client
}

func NewSNSClient(cfg sdkaws.Config) *SNSClient {
	return &SNSClient{client: sns.NewFromConfig(cfg)}
}

// Publish publishes a raw message to the given SNS topic ARN.
func (s *SNSClient) Publish(ctx context.Context, topicArn string, message []byte) error {
	if topicArn == "" {
		return fmt.Errorf("empty topicArn")
	}
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: sdkaws.String(topicArn),
		Message:  sdkaws.String(string(message)),
	})
	if err != nil {
		return fmt.Errorf("sns publish failed for topic %s: %w", topicArn, err)
	}
	return nil
}

// PublishToEndpoint sends a platform-specific JSON message structure to a
// mobile push endpoint.
func (s *SNSClient) PublishToEndpoint(ctx context.Context, endpointArn string, message []byte) error {
	if endpointArn == "" {
		return fmt.Errorf("empty endpointArn")
	}
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        sdkaws.String(endpointArn),
		Message:          sdkaws.String(string(message)),
		MessageStructure: sdkaws.String("json"),
	})
	if err != nil {
		return fmt.Errorf("sns push failed for endpoint %s: %w", endpointArn, err)
	}
	return nil
}

// IsEndpointGone reports whether err means the push endpoint can no longer
// receive messages and should be forgotten.
func IsEndpointGone(err error) bool {
	var disabled *types.EndpointDisabledException
	if errors.As(err, &disabled) {
		return true
	}
	var notFound *types.NotFoundException
	return errors.As(err, &notFound)
}
