package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/tradeyard/dealops/internal/domain/dispute"
	"github.com/tradeyard/dealops/internal/infrastructure/repository/memory"
	"github.com/tradeyard/dealops/internal/platform/logging"
)

func newTestDisputeService(t *testing.T) (*DisputeService, *memory.DisputeRepository, *memory.EscrowRepository) {
	t.Helper()

	negotiationRepo := memory.NewNegotiationRepository(memory.SeedNegotiations())
	disputeRepo := memory.NewDisputeRepository()
	escrowRepo := memory.NewEscrowRepository(memory.SeedEscrowAccounts())

	svc := NewDisputeService(
		negotiationRepo,
		disputeRepo,
		escrowRepo,
		memory.NewTxManager(),
		nil,
		nil,
		&seqIDGenerator{prefix: "dsp"},
		logging.NewNop(),
	)

	return svc, disputeRepo, escrowRepo
}

func TestDisputeService_CreateDealDispute_SlaFromSeverity(t *testing.T) {
	svc, disputeRepo, _ := newTestDisputeService(t)

	t0 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return t0 }

	created, err := svc.CreateDealDispute(t.Context(), CreateDisputeInput{
		NegotiationID:  memory.NegotiationIDOakDesk,
		RaisedByUserID: "usr-chen",
		Summary:        "item arrived damaged",
		Category:       "ITEM_CONDITION",
		Severity:       dispute.SeverityHigh,
		Attachments: []EvidenceInput{
			{Type: "photo", URL: "https://cdn.example.com/dmg-1.jpg", Label: "corner crack"},
			{Type: "photo", URL: "   "},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if created.Status != dispute.StatusOpen {
		t.Fatalf("expected OPEN, got %s", created.Status)
	}
	if !created.SlaDueAt.Equal(t0.Add(24 * time.Hour)) {
		t.Fatalf("HIGH severity: expected SLA due %v, got %v", t0.Add(24*time.Hour), created.SlaDueAt)
	}

	events, err := disputeRepo.ListEvents(t.Context(), created.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Type != dispute.EventCreated {
		t.Fatalf("expected single CREATED event, got %+v", events)
	}

	evidence, err := disputeRepo.ListEvidence(t.Context(), created.ID)
	if err != nil {
		t.Fatalf("list evidence: %v", err)
	}
	if len(evidence) != 1 {
		t.Fatalf("expected blank-URL attachment dropped, got %d rows", len(evidence))
	}
}

func TestDisputeService_CreateDealDispute_UnknownSeverityDefaultsLow(t *testing.T) {
	svc, _, _ := newTestDisputeService(t)

	t0 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return t0 }

	created, err := svc.CreateDealDispute(t.Context(), CreateDisputeInput{
		NegotiationID:  memory.NegotiationIDOakDesk,
		RaisedByUserID: "usr-chen",
		Summary:        "slow to ship",
		Severity:       dispute.Severity("URGENT-ISH"),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Severity != dispute.SeverityLow {
		t.Fatalf("expected LOW fallback, got %s", created.Severity)
	}
	if !created.SlaDueAt.Equal(t0.Add(72 * time.Hour)) {
		t.Fatalf("LOW severity: expected SLA due %v, got %v", t0.Add(72*time.Hour), created.SlaDueAt)
	}
}

func TestDisputeService_CreateDealDispute_SecondActiveRejected(t *testing.T) {
	svc, _, _ := newTestDisputeService(t)

	if _, err := svc.CreateDealDispute(t.Context(), CreateDisputeInput{
		NegotiationID:  memory.NegotiationIDOakDesk,
		RaisedByUserID: "usr-chen",
		Summary:        "first dispute",
	}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := svc.CreateDealDispute(t.Context(), CreateDisputeInput{
		NegotiationID:  memory.NegotiationIDOakDesk,
		RaisedByUserID: "usr-dalia",
		Summary:        "second dispute",
	})
	if !errors.Is(err, ErrActiveDisputeExists) {
		t.Fatalf("expected ErrActiveDisputeExists, got %v", err)
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict classification, got %v", err)
	}
}

func TestDisputeService_CreateDealDispute_AllowedAfterResolution(t *testing.T) {
	svc, _, _ := newTestDisputeService(t)

	first, err := svc.CreateDealDispute(t.Context(), CreateDisputeInput{
		NegotiationID:  memory.NegotiationIDOakDesk,
		RaisedByUserID: "usr-chen",
		Summary:        "first dispute",
	})
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := svc.TransitionDealDisputeStatus(t.Context(), first.ID, dispute.StatusResolved, "usr-admin", "settled"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if _, err := svc.CreateDealDispute(t.Context(), CreateDisputeInput{
		NegotiationID:  memory.NegotiationIDOakDesk,
		RaisedByUserID: "usr-chen",
		Summary:        "issue resurfaced",
	}); err != nil {
		t.Fatalf("create after resolution failed: %v", err)
	}
}

func TestDisputeService_CreateDealDispute_UnknownNegotiation(t *testing.T) {
	svc, _, _ := newTestDisputeService(t)

	_, err := svc.CreateDealDispute(t.Context(), CreateDisputeInput{
		NegotiationID:  "neg-ghost",
		RaisedByUserID: "usr-x",
		Summary:        "lost package",
	})
	if !errors.Is(err, ErrNegotiationNotFound) {
		t.Fatalf("expected ErrNegotiationNotFound, got %v", err)
	}
}

func TestDisputeService_TransitionDealDisputeStatus_Timestamps(t *testing.T) {
	svc, disputeRepo, _ := newTestDisputeService(t)

	t0 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return t0 }

	d, err := svc.CreateDealDispute(t.Context(), CreateDisputeInput{
		NegotiationID:  memory.NegotiationIDOakDesk,
		RaisedByUserID: "usr-chen",
		Summary:        "missing parts",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	t1 := t0.Add(time.Hour)
	svc.now = func() time.Time { return t1 }
	d, err = svc.TransitionDealDisputeStatus(t.Context(), d.ID, dispute.StatusUnderReview, "usr-admin", "taking a look")
	if err != nil {
		t.Fatalf("transition to UNDER_REVIEW failed: %v", err)
	}
	if d.AcknowledgedAt == nil || !d.AcknowledgedAt.Equal(t1) {
		t.Fatalf("expected acknowledged at %v, got %v", t1, d.AcknowledgedAt)
	}

	t2 := t1.Add(time.Hour)
	svc.now = func() time.Time { return t2 }
	d, err = svc.TransitionDealDisputeStatus(t.Context(), d.ID, dispute.StatusClosed, "usr-admin", "closing out")
	if err != nil {
		t.Fatalf("transition to CLOSED failed: %v", err)
	}
	if d.ResolvedAt == nil || !d.ResolvedAt.Equal(t2) {
		t.Fatalf("closing should backfill resolved at %v, got %v", t2, d.ResolvedAt)
	}
	if d.ClosedAt == nil || !d.ClosedAt.Equal(t2) {
		t.Fatalf("expected closed at %v, got %v", t2, d.ClosedAt)
	}

	events, err := disputeRepo.ListEvents(t.Context(), d.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	// CREATED, STATUS_CHANGED, STATUS_CHANGED.
	if len(events) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(events))
	}
}

func TestDisputeService_TransitionDealDisputeStatus_SameStatusNoop(t *testing.T) {
	svc, disputeRepo, _ := newTestDisputeService(t)

	d, err := svc.CreateDealDispute(t.Context(), CreateDisputeInput{
		NegotiationID:  memory.NegotiationIDOakDesk,
		RaisedByUserID: "usr-chen",
		Summary:        "noop check",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.TransitionDealDisputeStatus(t.Context(), d.ID, dispute.StatusOpen, "usr-admin", ""); err != nil {
		t.Fatalf("same-status transition failed: %v", err)
	}

	events, _ := disputeRepo.ListEvents(t.Context(), d.ID)
	if len(events) != 1 {
		t.Fatalf("no-op transition must not append events, got %d", len(events))
	}
}

func TestDisputeService_AssignDealDispute(t *testing.T) {
	svc, _, _ := newTestDisputeService(t)

	d, err := svc.CreateDealDispute(t.Context(), CreateDisputeInput{
		NegotiationID:  memory.NegotiationIDOakDesk,
		RaisedByUserID: "usr-chen",
		Summary:        "assignment check",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	d, err = svc.AssignDealDispute(t.Context(), d.ID, "usr-ops-1", "usr-admin")
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if d.AssignedToUserID != "usr-ops-1" {
		t.Fatalf("expected assignee usr-ops-1, got %q", d.AssignedToUserID)
	}

	d, err = svc.AssignDealDispute(t.Context(), d.ID, "", "usr-admin")
	if err != nil {
		t.Fatalf("unassign failed: %v", err)
	}
	if d.AssignedToUserID != "" {
		t.Fatalf("expected assignee cleared, got %q", d.AssignedToUserID)
	}
}
