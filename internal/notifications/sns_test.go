package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockPublisher implements Publisher for testing
type MockPublisher struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	Inputs      []*sns.PublishInput
}

func (m *MockPublisher) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.Inputs = append(m.Inputs, params)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, params, optFns...)
	}
	return &sns.PublishOutput{}, nil
}

func TestSNSNotifier_Send(t *testing.T) {
	pub := &MockPublisher{}
	n := NewSNSNotifierWithClient(pub, "arn:aws:sns:us-east-1:123456789012:velvet")

	err := n.Send(context.Background(), Notification{
		Type:    NotificationQuotaExhausted,
		Model:   "imagen-3.0-generate-001",
		Message: "quota exhausted after 3 attempts",
	})
	require.NoError(t, err)
	require.Len(t, pub.Inputs, 1)

	in := pub.Inputs[0]
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:velvet", *in.TopicArn)
	assert.Equal(t, "quota_exhausted", *in.MessageAttributes["Type"].StringValue)
	assert.Equal(t, "imagen-3.0-generate-001", *in.MessageAttributes["Model"].StringValue)

	var body Notification
	require.NoError(t, json.Unmarshal([]byte(*in.Message), &body))
	assert.Equal(t, NotificationQuotaExhausted, body.Type)
}

func TestSNSNotifier_SendError(t *testing.T) {
	pub := &MockPublisher{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	n := NewSNSNotifierWithClient(pub, "arn")

	err := n.Send(context.Background(), Notification{Type: NotificationUpstreamDown})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestInMemoryNotifier(t *testing.T) {
	n := NewInMemoryNotifier()

	require.NoError(t, n.Send(context.Background(), Notification{Type: NotificationQuotaExhausted}))
	require.NoError(t, n.Send(context.Background(), Notification{Type: NotificationUpstreamDown}))

	got := n.Notifications()
	require.Len(t, got, 2)
	assert.Equal(t, NotificationUpstreamDown, got[1].Type)
}
