package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tradeyard/dealops/internal/domain/dispute"
	"github.com/tradeyard/dealops/internal/domain/escrow"
	"github.com/tradeyard/dealops/internal/domain/negotiation"
	"github.com/tradeyard/dealops/internal/domain/notification"
	idgen "github.com/tradeyard/dealops/internal/platform/id"
	"github.com/tradeyard/dealops/internal/platform/logging"
)

// DisputeService owns the dispute state machine and the ledger-safe escrow
// operations raised against disputes.
type DisputeService struct {
	negotiationRepo negotiation.Repository
	disputeRepo     dispute.Repository
	escrowRepo      escrow.Repository
	uow             UnitOfWork
	events          EventPublisher
	guidance        GuidanceAdvisor
	idGen           idgen.Generator
	logger          *logging.Logger
	now             func() time.Time
}

func NewDisputeService(
	negotiationRepo negotiation.Repository,
	disputeRepo dispute.Repository,
	escrowRepo escrow.Repository,
	uow UnitOfWork,
	events EventPublisher,
	guidance GuidanceAdvisor,
	idGen idgen.Generator,
	logger *logging.Logger,
) *DisputeService {
	if uow == nil {
		uow = NewNoopUnitOfWork()
	}
	if events == nil {
		events = NewNoopEventPublisher()
	}
	if guidance == nil {
		guidance = dispute.DefaultGuidanceRules()
	}
	if idGen == nil {
		idGen = idgen.NewRandomGenerator()
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &DisputeService{
		negotiationRepo: negotiationRepo,
		disputeRepo:     disputeRepo,
		escrowRepo:      escrowRepo,
		uow:             uow,
		events:          events,
		guidance:        guidance,
		idGen:           idGen,
		logger:          logger,
		now:             time.Now,
	}
}

type EvidenceInput struct {
	Type  string
	URL   string
	Label string
}

type CreateDisputeInput struct {
	NegotiationID  string
	RaisedByUserID string
	Summary        string
	Category       string
	Severity       dispute.Severity
	Attachments    []EvidenceInput
}

// CreateDealDispute raises a dispute against one negotiation. At most one
// non-terminal dispute may exist per negotiation at any time.
func (s *DisputeService) CreateDealDispute(ctx context.Context, input CreateDisputeInput) (dispute.DealDispute, error) {
	summary := strings.TrimSpace(input.Summary)
	if summary == "" {
		return dispute.DealDispute{}, fmt.Errorf("%w: summary is required", ErrInvalidInput)
	}

	negotiationID := strings.TrimSpace(input.NegotiationID)
	neg, exists, err := s.negotiationRepo.GetByID(ctx, negotiationID)
	if err != nil {
		return dispute.DealDispute{}, fmt.Errorf("get negotiation %s: %w", negotiationID, err)
	}
	if !exists {
		return dispute.DealDispute{}, fmt.Errorf("%w: negotiation=%s", ErrNegotiationNotFound, negotiationID)
	}

	if _, active, err := s.disputeRepo.FindActiveByNegotiation(ctx, negotiationID); err != nil {
		return dispute.DealDispute{}, fmt.Errorf("check active dispute for %s: %w", negotiationID, err)
	} else if active {
		return dispute.DealDispute{}, fmt.Errorf("%w: negotiation=%s", ErrActiveDisputeExists, negotiationID)
	}

	disputeID, err := s.idGen.NewID()
	if err != nil {
		return dispute.DealDispute{}, fmt.Errorf("generate dispute id: %w", err)
	}

	now := s.now().UTC()
	severity := dispute.NormalizeSeverity(input.Severity)
	d := dispute.DealDispute{
		ID:             disputeID,
		NegotiationID:  negotiationID,
		Status:         dispute.StatusOpen,
		Severity:       severity,
		Category:       strings.TrimSpace(input.Category),
		Summary:        summary,
		RaisedByUserID: strings.TrimSpace(input.RaisedByUserID),
		RaisedAt:       now,
		SlaDueAt:       now.Add(dispute.SlaWindow(severity)),
	}

	evidence, err := s.sanitizeEvidence(disputeID, input.Attachments, now)
	if err != nil {
		return dispute.DealDispute{}, err
	}

	err = s.uow.InTx(ctx, func(ctx context.Context) error {
		created, err := s.disputeRepo.Create(ctx, d)
		if err != nil {
			return fmt.Errorf("create dispute: %w", err)
		}
		d = created

		if err := s.appendEvent(ctx, d, dispute.EventCreated, d.RaisedByUserID, summary, map[string]any{
			"severity": string(severity),
			"category": d.Category,
		}); err != nil {
			return err
		}

		for _, row := range evidence {
			if err := s.disputeRepo.AddEvidence(ctx, row); err != nil {
				return fmt.Errorf("add evidence: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return dispute.DealDispute{}, err
	}

	s.publishDisputeEvent(ctx, d, notification.TypeDisputeRaised, d.RaisedByUserID, map[string]any{
		"severity":   string(d.Severity),
		"category":   d.Category,
		"sla_due_at": d.SlaDueAt,
	}, neg)

	return d, nil
}

// TransitionDealDisputeStatus moves a dispute between states, stamping each
// lifecycle timestamp at most once. Transitioning to the current status is a
// no-op.
func (s *DisputeService) TransitionDealDisputeStatus(ctx context.Context, disputeID string, target dispute.Status, actorUserID, note string) (dispute.DealDispute, error) {
	switch target {
	case dispute.StatusOpen, dispute.StatusUnderReview, dispute.StatusAwaitingParties,
		dispute.StatusEscalated, dispute.StatusResolved, dispute.StatusClosed:
	default:
		return dispute.DealDispute{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, target)
	}

	d, exists, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return dispute.DealDispute{}, fmt.Errorf("get dispute %s: %w", disputeID, err)
	}
	if !exists {
		return dispute.DealDispute{}, fmt.Errorf("%w: dispute=%s", ErrNotFound, disputeID)
	}
	if d.Status == target {
		return d, nil
	}

	now := s.now().UTC()
	if d.Status == dispute.StatusOpen && d.AcknowledgedAt == nil {
		d.AcknowledgedAt = &now
	}
	switch target {
	case dispute.StatusEscalated:
		if d.EscalatedAt == nil {
			d.EscalatedAt = &now
		}
	case dispute.StatusResolved:
		if d.ResolvedAt == nil {
			d.ResolvedAt = &now
		}
	case dispute.StatusClosed:
		if d.ResolvedAt == nil {
			d.ResolvedAt = &now
		}
		if d.ClosedAt == nil {
			d.ClosedAt = &now
		}
	}
	d.Status = target

	err = s.uow.InTx(ctx, func(ctx context.Context) error {
		if err := s.disputeRepo.Update(ctx, d); err != nil {
			return fmt.Errorf("update dispute: %w", err)
		}
		return s.appendEvent(ctx, d, dispute.EventTypeForStatus(target), actorUserID, note, nil)
	})
	if err != nil {
		return dispute.DealDispute{}, err
	}

	return d, nil
}

// AssignDealDispute sets or clears the assignee (empty user id clears).
func (s *DisputeService) AssignDealDispute(ctx context.Context, disputeID, assigneeUserID, actorUserID string) (dispute.DealDispute, error) {
	d, exists, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return dispute.DealDispute{}, fmt.Errorf("get dispute %s: %w", disputeID, err)
	}
	if !exists {
		return dispute.DealDispute{}, fmt.Errorf("%w: dispute=%s", ErrNotFound, disputeID)
	}

	d.AssignedToUserID = strings.TrimSpace(assigneeUserID)

	err = s.uow.InTx(ctx, func(ctx context.Context) error {
		if err := s.disputeRepo.Update(ctx, d); err != nil {
			return fmt.Errorf("update dispute: %w", err)
		}
		return s.appendEvent(ctx, d, dispute.EventAssignmentUpdated, actorUserID, "", map[string]any{
			"assigned_to": d.AssignedToUserID,
		})
	})
	if err != nil {
		return dispute.DealDispute{}, err
	}

	return d, nil
}

func (s *DisputeService) sanitizeEvidence(disputeID string, attachments []EvidenceInput, now time.Time) ([]dispute.Evidence, error) {
	out := make([]dispute.Evidence, 0, dispute.MaxEvidencePerCreate)
	for _, att := range attachments {
		if len(out) == dispute.MaxEvidencePerCreate {
			break
		}
		url := strings.TrimSpace(att.URL)
		if url == "" {
			continue
		}
		evidenceID, err := s.idGen.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate evidence id: %w", err)
		}
		out = append(out, dispute.Evidence{
			ID:         evidenceID,
			DisputeID:  disputeID,
			Type:       strings.TrimSpace(att.Type),
			URL:        url,
			Label:      strings.TrimSpace(att.Label),
			UploadedAt: now,
		})
	}
	return out, nil
}

func (s *DisputeService) appendEvent(ctx context.Context, d dispute.DealDispute, eventType dispute.EventType, actorUserID, message string, metadata map[string]any) error {
	eventID, err := s.idGen.NewID()
	if err != nil {
		return fmt.Errorf("generate event id: %w", err)
	}
	if err := s.disputeRepo.AppendEvent(ctx, dispute.Event{
		ID:          eventID,
		DisputeID:   d.ID,
		Type:        eventType,
		Status:      d.Status,
		Message:     message,
		ActorUserID: strings.TrimSpace(actorUserID),
		Metadata:    metadata,
		CreatedAt:   s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("append dispute event: %w", err)
	}
	return nil
}

// publishDisputeEvent is best effort; dispute writes never roll back because
// the notification store rejected an envelope.
func (s *DisputeService) publishDisputeEvent(ctx context.Context, d dispute.DealDispute, eventType, triggeredBy string, payload map[string]any, neg negotiation.Negotiation) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["dispute_id"] = d.ID
	payload["status"] = string(d.Status)

	channels := []string{"audience:" + string(notification.AudienceAdmin)}
	if neg.BuyerUserID != "" {
		channels = append(channels, "user:"+neg.BuyerUserID)
	}
	if neg.SellerUserID != "" {
		channels = append(channels, "user:"+neg.SellerUserID)
	}

	if err := s.events.PublishNegotiationEvent(ctx, EventEnvelope{
		NegotiationID: d.NegotiationID,
		Type:          eventType,
		Audience:      notification.AudienceAdmin,
		Status:        string(d.Status),
		TriggeredByID: triggeredBy,
		Payload:       payload,
		Channels:      channels,
	}); err != nil {
		s.logger.WarnContext(ctx, "publish dispute event failed",
			"dispute_id", d.ID,
			"event_type", eventType,
			"error", err,
		)
	}
}
