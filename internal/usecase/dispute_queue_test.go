package usecase

import (
	"testing"
	"time"

	"github.com/tradeyard/dealops/internal/domain/dispute"
	"github.com/tradeyard/dealops/internal/infrastructure/repository/memory"
)

func TestDisputeService_GetDealDisputeQueue_Ordering(t *testing.T) {
	svc, disputeRepo, _ := newTestDisputeService(t)

	ref := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return ref }

	seed := []dispute.DealDispute{
		{ID: "dsp-late", NegotiationID: "neg-1", Status: dispute.StatusOpen, Severity: dispute.SeverityLow, RaisedAt: ref.Add(-time.Hour), SlaDueAt: ref.Add(48 * time.Hour)},
		{ID: "dsp-urgent", NegotiationID: "neg-2", Status: dispute.StatusUnderReview, Severity: dispute.SeverityHigh, RaisedAt: ref.Add(-20 * time.Hour), SlaDueAt: ref.Add(2 * time.Hour)},
		{ID: "dsp-done", NegotiationID: "neg-3", Status: dispute.StatusResolved, Severity: dispute.SeverityMedium, RaisedAt: ref.Add(-50 * time.Hour), SlaDueAt: ref.Add(-2 * time.Hour)},
	}
	for _, d := range seed {
		if _, err := disputeRepo.Create(t.Context(), d); err != nil {
			t.Fatalf("seed dispute %s: %v", d.ID, err)
		}
	}

	entries, err := svc.GetDealDisputeQueue(t.Context(), 0)
	if err != nil {
		t.Fatalf("queue failed: %v", err)
	}

	// Terminal disputes stay out; soonest SLA first.
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Dispute.ID != "dsp-urgent" || entries[1].Dispute.ID != "dsp-late" {
		t.Fatalf("unexpected order: %s, %s", entries[0].Dispute.ID, entries[1].Dispute.ID)
	}

	urgent := entries[0]
	if urgent.Insight.HoursUntilBreach == nil || *urgent.Insight.HoursUntilBreach != 2 {
		t.Fatalf("expected 2h until breach, got %v", urgent.Insight.HoursUntilBreach)
	}
	// Inside the imminent-breach window with no evidence on file.
	if urgent.Recommendation != dispute.RecommendSeniorReview {
		t.Fatalf("expected SENIOR_REVIEW, got %s", urgent.Recommendation)
	}
	if entries[1].Recommendation != dispute.RecommendRequestEvidence {
		t.Fatalf("expected REQUEST_EVIDENCE for evidence-free dispute, got %s", entries[1].Recommendation)
	}
}

func TestDisputeService_GetDealDisputeQueue_BreachedGetsEscalation(t *testing.T) {
	svc, disputeRepo, _ := newTestDisputeService(t)

	ref := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return ref }

	breachedAt := ref.Add(-3 * time.Hour)
	if _, err := disputeRepo.Create(t.Context(), dispute.DealDispute{
		ID:            "dsp-breached",
		NegotiationID: "neg-1",
		Status:        dispute.StatusEscalated,
		Severity:      dispute.SeverityMedium,
		RaisedAt:      ref.Add(-51 * time.Hour),
		SlaDueAt:      breachedAt,
		SlaBreachedAt: &breachedAt,
	}); err != nil {
		t.Fatalf("seed dispute: %v", err)
	}

	entries, err := svc.GetDealDisputeQueue(t.Context(), 0)
	if err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.Insight.HoursSinceBreach == nil || *entry.Insight.HoursSinceBreach != 3 {
		t.Fatalf("expected 3h since breach, got %v", entry.Insight.HoursSinceBreach)
	}
	if entry.Recommendation != dispute.RecommendImmediateEscalation {
		t.Fatalf("expected IMMEDIATE_ESCALATION, got %s", entry.Recommendation)
	}
}

func TestDisputeService_GetDealDisputeQueue_ReopenedCountFromHistory(t *testing.T) {
	svc, _, _ := newTestDisputeService(t)

	ref := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return ref }

	d, err := svc.CreateDealDispute(t.Context(), CreateDisputeInput{
		NegotiationID:  memory.NegotiationIDOakDesk,
		RaisedByUserID: "usr-chen",
		Summary:        "keeps coming back",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Resolve and reopen twice. Each cycle shows up in the audit trail.
	for i := 0; i < 2; i++ {
		svc.now = func() time.Time { return ref.Add(time.Duration(i*2+1) * time.Hour) }
		if _, err := svc.TransitionDealDisputeStatus(t.Context(), d.ID, dispute.StatusResolved, "usr-admin", "settled"); err != nil {
			t.Fatalf("resolve %d failed: %v", i+1, err)
		}
		svc.now = func() time.Time { return ref.Add(time.Duration(i*2+2) * time.Hour) }
		if _, err := svc.TransitionDealDisputeStatus(t.Context(), d.ID, dispute.StatusOpen, "usr-chen", "not fixed"); err != nil {
			t.Fatalf("reopen %d failed: %v", i+1, err)
		}
	}

	entries, err := svc.GetDealDisputeQueue(t.Context(), 0)
	if err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Insight.ReopenedCount != 2 {
		t.Fatalf("expected 2 reopens, got %d", entries[0].Insight.ReopenedCount)
	}
	if entries[0].Recommendation != dispute.RecommendSeniorReview {
		t.Fatalf("repeat reopens should demand senior review, got %s", entries[0].Recommendation)
	}
}

func TestDisputeService_GetDisputeAnalytics(t *testing.T) {
	svc, disputeRepo, _ := newTestDisputeService(t)

	ref := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return ref }

	breachedAt := ref.Add(-2 * time.Hour)
	seed := []dispute.DealDispute{
		{ID: "dsp-a", NegotiationID: "neg-1", Status: dispute.StatusOpen, Severity: dispute.SeverityHigh, RaisedAt: ref.Add(-time.Hour), SlaDueAt: ref.Add(23 * time.Hour)},
		{ID: "dsp-b", NegotiationID: "neg-2", Status: dispute.StatusEscalated, Severity: dispute.SeverityHigh, RaisedAt: ref.Add(-26 * time.Hour), SlaDueAt: breachedAt, SlaBreachedAt: &breachedAt},
	}
	for _, d := range seed {
		if _, err := disputeRepo.Create(t.Context(), d); err != nil {
			t.Fatalf("seed dispute %s: %v", d.ID, err)
		}
	}

	snapshot, err := svc.GetDisputeAnalytics(t.Context(), 0)
	if err != nil {
		t.Fatalf("analytics failed: %v", err)
	}
	if snapshot.Total != 2 {
		t.Fatalf("expected 2 disputes, got %d", snapshot.Total)
	}
	if snapshot.BySeverity[dispute.SeverityHigh] != 2 {
		t.Fatalf("expected 2 HIGH, got %d", snapshot.BySeverity[dispute.SeverityHigh])
	}
	if snapshot.ByStatus[dispute.StatusEscalated] != 1 {
		t.Fatalf("expected 1 ESCALATED, got %d", snapshot.ByStatus[dispute.StatusEscalated])
	}
	if snapshot.BreachedCount != 1 {
		t.Fatalf("expected 1 breached, got %d", snapshot.BreachedCount)
	}
}
