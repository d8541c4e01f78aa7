package aws

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSQS struct {
	messages []types.Message
	deleted  []string
}

func (f *fakeSQS) ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, sdkaws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func message(id, body string) types.Message {
	return types.Message{MessageId: sdkaws.String(id), ReceiptHandle: sdkaws.String("rh-" + id), Body: sdkaws.String(body)}
}

func TestPollOnce_DeletesOnlyHandledMessages(t *testing.T) {
	api := &fakeSQS{messages: []types.Message{
		message("1", `{"job":"revenue-release"}`),
		message("2", `{"job":"broken"}`),
		{MessageId: sdkaws.String("3"), ReceiptHandle: sdkaws.String("rh-3")},
	}}
	c := &SQSConsumer{api: api, queueURL: "https://sqs.local/jobs", logger: zap.NewNop()}

	var seen []string
	err := c.pollOnce(context.Background(), func(_ context.Context, body string) error {
		seen = append(seen, body)
		if body == `{"job":"broken"}` {
			return errors.New("unknown job")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{`{"job":"revenue-release"}`, `{"job":"broken"}`}, seen)
	assert.Equal(t, []string{"rh-1"}, api.deleted)
}

func TestUnwrapSNS(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"sns notification", `{"Type":"Notification","Message":"{\"job\":\"booking-reminders\"}"}`, `{"job":"booking-reminders"}`},
		{"raw body", `{"job":"subscription-expiry"}`, `{"job":"subscription-expiry"}`},
		{"not json", `revenue-release`, `revenue-release`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unwrapSNS(tt.body))
		})
	}
}
