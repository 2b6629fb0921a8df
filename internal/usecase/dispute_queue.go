package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tradeyard/dealops/internal/domain/dispute"
)

// GuidanceAdvisor recommends the next operator action for a dispute. The
// default is the in-process rules engine; an external rules service can
// replace it.
type GuidanceAdvisor interface {
	Recommend(d dispute.DealDispute, insight dispute.Insight) dispute.Recommendation
}

const (
	defaultQueueLimit       = 50
	staleEvidenceAfterHours = 24
)

// DisputeQueueEntry is one dispute in triage order with its derived figures.
type DisputeQueueEntry struct {
	Dispute        dispute.DealDispute
	Insight        dispute.Insight
	Recommendation dispute.Recommendation
}

// DisputeAnalytics is the snapshot the operator dashboard reads.
type DisputeAnalytics struct {
	Total                int
	ByStatus             map[dispute.Status]int
	BySeverity           map[dispute.Severity]int
	BreachedCount        int
	MissingEvidenceCount int
	AvgResolutionHours   float64
}

// GetDealDisputeQueue returns disputes ordered soonest-breaching first, each
// with SLA figures, reopen history and a guidance recommendation.
func (s *DisputeService) GetDealDisputeQueue(ctx context.Context, limit int) ([]DisputeQueueEntry, error) {
	if limit <= 0 {
		limit = defaultQueueLimit
	}

	rows, err := s.disputeRepo.ListQueue(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispute queue: %w", err)
	}

	now := s.now().UTC()
	out := make([]DisputeQueueEntry, 0, len(rows))
	for _, d := range rows {
		insight, err := s.buildInsight(ctx, d, now)
		if err != nil {
			return nil, err
		}
		out = append(out, DisputeQueueEntry{
			Dispute:        d,
			Insight:        insight,
			Recommendation: s.guidance.Recommend(d, insight),
		})
	}

	return out, nil
}

// GetDisputeAnalytics aggregates the queue into a dashboard snapshot.
func (s *DisputeService) GetDisputeAnalytics(ctx context.Context, limit int) (DisputeAnalytics, error) {
	entries, err := s.GetDealDisputeQueue(ctx, limit)
	if err != nil {
		return DisputeAnalytics{}, err
	}

	snapshot := DisputeAnalytics{
		Total:      len(entries),
		ByStatus:   make(map[dispute.Status]int),
		BySeverity: make(map[dispute.Severity]int),
	}

	var resolutionHours float64
	var resolvedCount int
	for _, entry := range entries {
		snapshot.ByStatus[entry.Dispute.Status]++
		snapshot.BySeverity[entry.Dispute.Severity]++
		if entry.Insight.HoursSinceBreach != nil {
			snapshot.BreachedCount++
		}
		if entry.Insight.MissingEvidence {
			snapshot.MissingEvidenceCount++
		}
		if entry.Insight.HoursToResolution != nil {
			resolutionHours += *entry.Insight.HoursToResolution
			resolvedCount++
		}
	}
	if resolvedCount > 0 {
		snapshot.AvgResolutionHours = resolutionHours / float64(resolvedCount)
	}

	return snapshot, nil
}

func (s *DisputeService) buildInsight(ctx context.Context, d dispute.DealDispute, now time.Time) (dispute.Insight, error) {
	events, err := s.disputeRepo.ListEvents(ctx, d.ID)
	if err != nil {
		return dispute.Insight{}, fmt.Errorf("list events for dispute %s: %w", d.ID, err)
	}
	evidence, err := s.disputeRepo.ListEvidence(ctx, d.ID)
	if err != nil {
		return dispute.Insight{}, fmt.Errorf("list evidence for dispute %s: %w", d.ID, err)
	}

	insight := dispute.Insight{
		OpenHours:       now.Sub(d.RaisedAt).Hours(),
		ReopenedCount:   countReopens(events),
		MissingEvidence: missingEvidence(evidence, now),
	}

	if d.SlaBreachedAt != nil {
		since := now.Sub(*d.SlaBreachedAt).Hours()
		insight.HoursSinceBreach = &since
	} else if !d.Status.Terminal() {
		until := d.SlaDueAt.Sub(now).Hours()
		insight.HoursUntilBreach = &until
	}

	if d.ResolvedAt != nil {
		hours := d.ResolvedAt.Sub(d.RaisedAt).Hours()
		insight.HoursToResolution = &hours
	}

	return insight, nil
}

// countReopens walks the audit trail in order and counts transitions into
// OPEN or UNDER_REVIEW that directly follow a RESOLVED or CLOSED snapshot.
// The trail is the source of truth; no counter column exists.
func countReopens(events []dispute.Event) int {
	if len(events) < 2 {
		return 0
	}

	ordered := make([]dispute.Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	count := 0
	prev := ordered[0].Status
	for _, event := range ordered[1:] {
		if event.Status == prev {
			continue
		}
		if prev.Terminal() && (event.Status == dispute.StatusOpen || event.Status == dispute.StatusUnderReview) {
			count++
		}
		prev = event.Status
	}
	return count
}

func missingEvidence(evidence []dispute.Evidence, now time.Time) bool {
	if len(evidence) == 0 {
		return true
	}
	latest := evidence[0].UploadedAt
	for _, row := range evidence[1:] {
		if row.UploadedAt.After(latest) {
			latest = row.UploadedAt
		}
	}
	return now.Sub(latest) >= staleEvidenceAfterHours*time.Hour
}
