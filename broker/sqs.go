package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/hupe1980/dialogmesh/core"
)

// SQSAPI is the subset of the SQS client used by SQSBroker.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSBroker publishes one SQS message per event. On FIFO queues the
// conversation id is the message group, keeping per-conversation order.
type SQSBroker struct {
	client   SQSAPI
	queueURL string
	fifo     bool
}

var _ core.EventBroker = (*SQSBroker)(nil)

// NewSQSBroker creates a broker using an existing client.
func NewSQSBroker(client SQSAPI, queueURL string) *SQSBroker {
	return &SQSBroker{client: client, queueURL: queueURL, fifo: strings.HasSuffix(queueURL, ".fifo")}
}

// NewSQSBrokerFromConfig loads the default AWS configuration for region and
// builds an SQS client from it.
func NewSQSBrokerFromConfig(ctx context.Context, region, queueURL string) (*SQSBroker, error) {
	var optFns []func(*config.LoadOptions) error
	if region != "" {
		optFns = append(optFns, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewSQSBroker(sqs.NewFromConfig(cfg), queueURL), nil
}

// Publish implements core.EventBroker.
func (b *SQSBroker) Publish(ctx context.Context, conversationID string, events []core.Event) error {
	for _, ev := range events {
		body, err := messageBody(conversationID, ev)
		if err != nil {
			return err
		}

		in := &sqs.SendMessageInput{
			QueueUrl:    aws.String(b.queueURL),
			MessageBody: aws.String(body),
		}
		if b.fifo {
			in.MessageGroupId = aws.String(conversationID)
			in.MessageDeduplicationId = aws.String(ev.ID)
		}

		if _, err := b.client.SendMessage(ctx, in); err != nil {
			return fmt.Errorf("sqs send event %s: %w", ev.ID, err)
		}
	}
	return nil
}

// messageBody renders the event JSON with an added sender_id field.
func messageBody(conversationID string, ev core.Event) (string, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}
	m["sender_id"] = conversationID

	out, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
