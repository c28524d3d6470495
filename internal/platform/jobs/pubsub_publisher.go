package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/finitefield/quote-configurator/internal/services"
)

// PubSubSubmissionPublisher publishes quote submissions to a Pub/Sub topic.
type PubSubSubmissionPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.SubmissionPublisher = (*PubSubSubmissionPublisher)(nil)

// NewPubSubSubmissionPublisher constructs a Pub/Sub backed submission publisher.
func NewPubSubSubmissionPublisher(topic *pubsub.Topic) (*PubSubSubmissionPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub submission publisher: topic is required")
	}
	return &PubSubSubmissionPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishSubmission enqueues the submission and waits for the server-assigned message id.
func (p *PubSubSubmissionPublisher) PublishSubmission(ctx context.Context, message services.SubmissionMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub submission publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal submission: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "submissionId", message.SubmissionID)
	setAttr(attrs, "sessionId", message.SessionID)
	setAttr(attrs, "currency", message.Currency)
	setAttr(attrs, "idempotencyKey", message.IdempotencyKey)
	attrs["serviceCount"] = strconv.Itoa(len(message.Services))
	if message.Combined.HasCustomQuote {
		attrs["customQuote"] = "true"
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish submission: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
