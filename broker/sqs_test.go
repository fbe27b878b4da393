package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hupe1980/dialogmesh/core"
)

type mockSQS struct {
	mock.Mock
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, in)
	return &sqs.SendMessageOutput{}, args.Error(0)
}

func TestSQSBroker_PublishStandardQueue(t *testing.T) {
	m := &mockSQS{}
	var bodies []string
	m.On("SendMessage", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		in := args.Get(1).(*sqs.SendMessageInput)
		assert.Nil(t, in.MessageGroupId)
		bodies = append(bodies, aws.ToString(in.MessageBody))
	}).Return(nil)

	b := NewSQSBroker(m, "https://sqs.eu-central-1.amazonaws.com/1/events")
	ev := core.NewSlotSet("city", "Oslo")
	require.NoError(t, b.Publish(context.Background(), "c1", []core.Event{ev, core.NewBotUttered("hi")}))

	require.Len(t, bodies, 2)
	assert.Equal(t, "c1", gjson.Get(bodies[0], "sender_id").String())
	assert.Equal(t, "slot", gjson.Get(bodies[0], "event").String())
	assert.Equal(t, ev.ID, gjson.Get(bodies[0], "id").String())
	assert.Equal(t, "Oslo", gjson.Get(bodies[0], "value").String())
}

func TestSQSBroker_FIFOUsesConversationGroup(t *testing.T) {
	m := &mockSQS{}
	ev := core.NewBotUttered("hi")
	m.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
		return aws.ToString(in.MessageGroupId) == "c1" && aws.ToString(in.MessageDeduplicationId) == ev.ID
	})).Return(nil)

	b := NewSQSBroker(m, "https://sqs.eu-central-1.amazonaws.com/1/events.fifo")
	require.NoError(t, b.Publish(context.Background(), "c1", []core.Event{ev}))
	m.AssertExpectations(t)
}

func TestSQSBroker_SendError(t *testing.T) {
	m := &mockSQS{}
	m.On("SendMessage", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	err := NewSQSBroker(m, "q").Publish(context.Background(), "c1", []core.Event{core.NewBotUttered("x")})
	assert.ErrorContains(t, err, "throttled")
}

func TestLogBroker_NeverFails(t *testing.T) {
	b := NewLogBroker(nil)
	assert.NoError(t, b.Publish(context.Background(), "c1", []core.Event{core.NewBotUttered("x")}))
}
