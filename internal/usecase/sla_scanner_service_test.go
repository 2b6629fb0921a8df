package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/tradeyard/dealops/internal/domain/dispute"
	"github.com/tradeyard/dealops/internal/domain/negotiation"
	"github.com/tradeyard/dealops/internal/domain/notification"
	"github.com/tradeyard/dealops/internal/infrastructure/repository/memory"
	"github.com/tradeyard/dealops/internal/platform/logging"
)

type captureEvents struct {
	envelopes []EventEnvelope
}

func (c *captureEvents) PublishNegotiationEvent(_ context.Context, envelope EventEnvelope) error {
	c.envelopes = append(c.envelopes, envelope)
	return nil
}

func (c *captureEvents) byType(eventType string) []EventEnvelope {
	out := make([]EventEnvelope, 0)
	for _, e := range c.envelopes {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestSlaScanService_ScanNegotiationSlaWindows(t *testing.T) {
	ref := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	expired := ref.Add(-time.Hour)
	closingSoon := ref.Add(6 * time.Hour)
	comfortable := ref.Add(72 * time.Hour)

	negotiationRepo := memory.NewNegotiationRepository([]negotiation.Negotiation{
		{ID: "neg-expired", BuyerUserID: "usr-a", SellerUserID: "usr-b", Status: negotiation.StatusActive, ExpiresAt: &expired},
		{ID: "neg-soon", BuyerUserID: "usr-c", SellerUserID: "usr-d", Status: negotiation.StatusCountered, ExpiresAt: &closingSoon},
		{ID: "neg-comfortable", BuyerUserID: "usr-e", SellerUserID: "usr-f", Status: negotiation.StatusActive, ExpiresAt: &comfortable},
		{ID: "neg-done", Status: negotiation.StatusFulfilled, ExpiresAt: &expired},
	})

	events := &captureEvents{}
	svc := NewSlaScanService(negotiationRepo, memory.NewDisputeRepository(), memory.NewTxManager(), events, &seqIDGenerator{prefix: "evt"}, logging.NewNop())
	svc.now = func() time.Time { return ref }

	result, err := svc.ScanNegotiationSlaWindows(t.Context(), ref)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if result.Scanned != 2 || result.Warned != 1 || result.Breached != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	breaches := events.byType(notification.TypeSlaBreached)
	if len(breaches) != 1 || breaches[0].NegotiationID != "neg-expired" {
		t.Fatalf("unexpected breach events: %+v", breaches)
	}
	if breaches[0].Status != string(negotiation.StatusExpired) {
		t.Fatalf("breach event should carry EXPIRED, got %s", breaches[0].Status)
	}

	warnings := events.byType(notification.TypeSlaWarning)
	if len(warnings) != 1 || warnings[0].NegotiationID != "neg-soon" {
		t.Fatalf("unexpected warning events: %+v", warnings)
	}
}

func TestSlaScanService_ScanDealDisputeSlaBreaches_Idempotent(t *testing.T) {
	ref := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	disputeRepo := memory.NewDisputeRepository()
	overdue := dispute.DealDispute{
		ID:            "dsp-overdue",
		NegotiationID: "neg-1",
		Status:        dispute.StatusUnderReview,
		Severity:      dispute.SeverityHigh,
		RaisedAt:      ref.Add(-30 * time.Hour),
		SlaDueAt:      ref.Add(-6 * time.Hour),
	}
	if _, err := disputeRepo.Create(t.Context(), overdue); err != nil {
		t.Fatalf("seed dispute: %v", err)
	}
	healthy := dispute.DealDispute{
		ID:            "dsp-healthy",
		NegotiationID: "neg-2",
		Status:        dispute.StatusOpen,
		Severity:      dispute.SeverityLow,
		RaisedAt:      ref.Add(-time.Hour),
		SlaDueAt:      ref.Add(71 * time.Hour),
	}
	if _, err := disputeRepo.Create(t.Context(), healthy); err != nil {
		t.Fatalf("seed dispute: %v", err)
	}

	events := &captureEvents{}
	svc := NewSlaScanService(memory.NewNegotiationRepository(nil), disputeRepo, memory.NewTxManager(), events, &seqIDGenerator{prefix: "evt"}, logging.NewNop())
	svc.now = func() time.Time { return ref }

	result, err := svc.ScanDealDisputeSlaBreaches(t.Context(), ref)
	if err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
	if result.Scanned != 1 || result.Escalated != 1 {
		t.Fatalf("unexpected first result: %+v", result)
	}

	updated, ok, err := disputeRepo.GetByID(t.Context(), "dsp-overdue")
	if err != nil || !ok {
		t.Fatalf("dispute missing after scan: ok=%v err=%v", ok, err)
	}
	if updated.Status != dispute.StatusEscalated {
		t.Fatalf("expected auto-escalation, got %s", updated.Status)
	}
	if updated.SlaBreachedAt == nil || !updated.SlaBreachedAt.Equal(ref) {
		t.Fatalf("expected breach stamped at %v, got %v", ref, updated.SlaBreachedAt)
	}
	if updated.EscalatedAt == nil {
		t.Fatal("expected escalation timestamp stamped")
	}

	// The stamped breach keeps the dispute out of every later scan.
	again, err := svc.ScanDealDisputeSlaBreaches(t.Context(), ref.Add(time.Hour))
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	if again.Scanned != 0 || again.Escalated != 0 {
		t.Fatalf("expected idempotent second scan, got %+v", again)
	}

	breachEvents := events.byType(notification.TypeDisputeSlaBreach)
	if len(breachEvents) != 1 {
		t.Fatalf("expected exactly one breach notification, got %d", len(breachEvents))
	}
	if breachEvents[0].Audience != notification.AudienceAdmin {
		t.Fatalf("breach notification must target admins, got %s", breachEvents[0].Audience)
	}
}
