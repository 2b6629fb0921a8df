package usecase

import (
	"context"

	"github.com/tradeyard/dealops/internal/domain/notification"
)

// EventEnvelope is one negotiation lifecycle event. Every producer routes
// through PublishNegotiationEvent instead of talking to the notification
// store directly.
type EventEnvelope struct {
	NegotiationID string
	Type          string
	Audience      notification.Audience
	Status        string
	TriggeredByID string
	Payload       map[string]any
	Channels      []string
}

type EventPublisher interface {
	PublishNegotiationEvent(ctx context.Context, envelope EventEnvelope) error
}

type noopEventPublisher struct{}

func (noopEventPublisher) PublishNegotiationEvent(context.Context, EventEnvelope) error {
	return nil
}

func NewNoopEventPublisher() EventPublisher {
	return noopEventPublisher{}
}
