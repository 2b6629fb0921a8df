package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/tradeyard/dealops/internal/domain/negotiation"
	"github.com/tradeyard/dealops/internal/domain/notification"
	"github.com/tradeyard/dealops/internal/platform/logging"
)

const (
	reminderHorizon  = 48 * time.Hour
	reminderCooldown = 24 * time.Hour
)

// ReminderService nudges participants of agreed deals whose fulfilment
// deadline is approaching. Each negotiation gets at most one reminder per
// cooldown window.
type ReminderService struct {
	negotiationRepo  negotiation.Repository
	notificationRepo notification.Repository
	events           EventPublisher
	logger           *logging.Logger
	now              func() time.Time
}

func NewReminderService(
	negotiationRepo negotiation.Repository,
	notificationRepo notification.Repository,
	events EventPublisher,
	logger *logging.Logger,
) *ReminderService {
	if events == nil {
		events = NewNoopEventPublisher()
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &ReminderService{
		negotiationRepo:  negotiationRepo,
		notificationRepo: notificationRepo,
		events:           events,
		logger:           logger,
		now:              time.Now,
	}
}

type ReminderResult struct {
	Scanned  int
	Reminded int
	Skipped  int
}

// SweepFulfilmentReminders publishes FULFILMENT_REMINDER events for agreed
// negotiations due inside the horizon, deduplicating against the latest
// reminder already on record.
func (s *ReminderService) SweepFulfilmentReminders(ctx context.Context, ref time.Time) (ReminderResult, error) {
	items, err := s.negotiationRepo.ListAwaitingFulfilment(ctx, ref.Add(reminderHorizon))
	if err != nil {
		return ReminderResult{}, fmt.Errorf("list negotiations awaiting fulfilment: %w", err)
	}

	result := ReminderResult{Scanned: len(items)}
	for _, item := range items {
		if item.FulfilmentDue == nil {
			continue
		}

		latest, exists, err := s.notificationRepo.LatestByType(ctx, item.ID, notification.TypeFulfilmentDue)
		if err != nil {
			s.logger.WarnContext(ctx, "lookup latest reminder failed", "negotiation_id", item.ID, "error", err)
			result.Skipped++
			continue
		}
		if exists && ref.Sub(latest.OccurredAt) < reminderCooldown {
			result.Skipped++
			continue
		}

		channels := make([]string, 0, 2)
		if item.BuyerUserID != "" {
			channels = append(channels, "user:"+item.BuyerUserID)
		}
		if item.SellerUserID != "" {
			channels = append(channels, "user:"+item.SellerUserID)
		}

		if err := s.events.PublishNegotiationEvent(ctx, EventEnvelope{
			NegotiationID: item.ID,
			Type:          notification.TypeFulfilmentDue,
			Audience:      notification.AudienceParticipant,
			Status:        string(item.Status),
			Payload: map[string]any{
				"fulfilment_due": item.FulfilmentDue,
				"listing_id":     item.ListingID,
			},
			Channels: channels,
		}); err != nil {
			s.logger.WarnContext(ctx, "publish fulfilment reminder failed", "negotiation_id", item.ID, "error", err)
			result.Skipped++
			continue
		}
		result.Reminded++
	}

	return result, nil
}
