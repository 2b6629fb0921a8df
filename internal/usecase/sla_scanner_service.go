package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/tradeyard/dealops/internal/domain/dispute"
	"github.com/tradeyard/dealops/internal/domain/negotiation"
	"github.com/tradeyard/dealops/internal/domain/notification"
	idgen "github.com/tradeyard/dealops/internal/platform/id"
	"github.com/tradeyard/dealops/internal/platform/logging"
)

// negotiationWarningWindow is how far ahead of the deadline the watchdog
// starts warning.
const negotiationWarningWindow = 12 * time.Hour

// SlaScanService runs the periodic deadline watchdogs: the negotiation
// expiry scan (read-only, event emission) and the dispute SLA breach monitor
// (transactional auto-escalation).
type SlaScanService struct {
	negotiationRepo negotiation.Repository
	disputeRepo     dispute.Repository
	uow             UnitOfWork
	events          EventPublisher
	idGen           idgen.Generator
	logger          *logging.Logger
	now             func() time.Time
}

func NewSlaScanService(
	negotiationRepo negotiation.Repository,
	disputeRepo dispute.Repository,
	uow UnitOfWork,
	events EventPublisher,
	idGen idgen.Generator,
	logger *logging.Logger,
) *SlaScanService {
	if uow == nil {
		uow = NewNoopUnitOfWork()
	}
	if events == nil {
		events = NewNoopEventPublisher()
	}
	if idGen == nil {
		idGen = idgen.NewRandomGenerator()
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &SlaScanService{
		negotiationRepo: negotiationRepo,
		disputeRepo:     disputeRepo,
		uow:             uow,
		events:          events,
		idGen:           idGen,
		logger:          logger,
		now:             time.Now,
	}
}

type NegotiationScanResult struct {
	Scanned  int
	Warned   int
	Breached int
}

// ScanNegotiationSlaWindows emits SLA_BREACHED for expired deadlines and
// SLA_WARNING inside the warning window. Negotiations themselves are never
// mutated here; the marketplace layer owns them.
func (s *SlaScanService) ScanNegotiationSlaWindows(ctx context.Context, ref time.Time) (NegotiationScanResult, error) {
	items, err := s.negotiationRepo.ListWithDeadline(ctx, ref.Add(negotiationWarningWindow))
	if err != nil {
		return NegotiationScanResult{}, fmt.Errorf("list negotiations with deadline: %w", err)
	}

	result := NegotiationScanResult{}
	for _, item := range items {
		if item.Terminal() || item.ExpiresAt == nil {
			continue
		}
		result.Scanned++

		switch {
		case item.ExpiresAt.Before(ref):
			s.publishNegotiationDeadlineEvent(ctx, item, notification.TypeSlaBreached, string(negotiation.StatusExpired))
			result.Breached++
		case item.ExpiresAt.Sub(ref) <= negotiationWarningWindow:
			s.publishNegotiationDeadlineEvent(ctx, item, notification.TypeSlaWarning, string(item.Status))
			result.Warned++
		}
	}

	return result, nil
}

type DisputeScanResult struct {
	Scanned   int
	Escalated int
}

// ScanDealDisputeSlaBreaches stamps overdue disputes and auto-escalates
// them. The slaBreachedAt-is-null filter makes the scan idempotent: a
// processed dispute never matches again.
func (s *SlaScanService) ScanDealDisputeSlaBreaches(ctx context.Context, ref time.Time) (DisputeScanResult, error) {
	overdue, err := s.disputeRepo.ListSlaOverdue(ctx, ref)
	if err != nil {
		return DisputeScanResult{}, fmt.Errorf("list overdue disputes: %w", err)
	}

	result := DisputeScanResult{Scanned: len(overdue)}
	for _, d := range overdue {
		if err := s.recordBreach(ctx, d, ref); err != nil {
			s.logger.WarnContext(ctx, "record sla breach failed", "dispute_id", d.ID, "error", err)
			continue
		}
		result.Escalated++
	}

	return result, nil
}

func (s *SlaScanService) recordBreach(ctx context.Context, d dispute.DealDispute, ref time.Time) error {
	breachedAt := ref
	d.SlaBreachedAt = &breachedAt
	if d.Status != dispute.StatusEscalated {
		d.Status = dispute.StatusEscalated
	}
	if d.EscalatedAt == nil {
		d.EscalatedAt = &breachedAt
	}

	eventID, err := s.idGen.NewID()
	if err != nil {
		return fmt.Errorf("generate event id: %w", err)
	}

	err = s.uow.InTx(ctx, func(ctx context.Context) error {
		if err := s.disputeRepo.Update(ctx, d); err != nil {
			return fmt.Errorf("update dispute: %w", err)
		}
		return s.disputeRepo.AppendEvent(ctx, dispute.Event{
			ID:        eventID,
			DisputeID: d.ID,
			Type:      dispute.EventSlaBreachRecorded,
			Status:    d.Status,
			Message:   "sla deadline passed",
			Metadata: map[string]any{
				"sla_due_at": d.SlaDueAt,
			},
			CreatedAt: ref,
		})
	})
	if err != nil {
		return err
	}

	if err := s.events.PublishNegotiationEvent(ctx, EventEnvelope{
		NegotiationID: d.NegotiationID,
		Type:          notification.TypeDisputeSlaBreach,
		Audience:      notification.AudienceAdmin,
		Status:        string(d.Status),
		Payload: map[string]any{
			"dispute_id":      d.ID,
			"severity":        string(d.Severity),
			"sla_due_at":      d.SlaDueAt,
			"sla_breached_at": breachedAt,
		},
		Channels: []string{"audience:" + string(notification.AudienceAdmin)},
	}); err != nil {
		s.logger.WarnContext(ctx, "publish dispute sla breach failed", "dispute_id", d.ID, "error", err)
	}

	return nil
}

func (s *SlaScanService) publishNegotiationDeadlineEvent(ctx context.Context, item negotiation.Negotiation, eventType, status string) {
	channels := []string{"audience:" + string(notification.AudienceAdmin)}
	if item.BuyerUserID != "" {
		channels = append(channels, "user:"+item.BuyerUserID)
	}
	if item.SellerUserID != "" {
		channels = append(channels, "user:"+item.SellerUserID)
	}

	if err := s.events.PublishNegotiationEvent(ctx, EventEnvelope{
		NegotiationID: item.ID,
		Type:          eventType,
		Audience:      notification.AudienceParticipant,
		Status:        status,
		Payload: map[string]any{
			"expires_at": item.ExpiresAt,
			"listing_id": item.ListingID,
		},
		Channels: channels,
	}); err != nil {
		s.logger.WarnContext(ctx, "publish negotiation deadline event failed",
			"negotiation_id", item.ID,
			"event_type", eventType,
			"error", err,
		)
	}
}
