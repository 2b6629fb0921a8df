package dispute

import "time"

type Recommendation string

const (
	RecommendImmediateEscalation Recommendation = "IMMEDIATE_ESCALATION"
	RecommendSeniorReview        Recommendation = "SENIOR_REVIEW"
	RecommendRequestEvidence     Recommendation = "REQUEST_EVIDENCE"
	RecommendProposeSettlement   Recommendation = "PROPOSE_SETTLEMENT"
	RecommendMonitor             Recommendation = "MONITOR"
	RecommendArchive             Recommendation = "ARCHIVE"
)

// Insight carries the derived figures the guidance rules reason over.
type Insight struct {
	OpenHours         float64
	HoursUntilBreach  *float64
	HoursSinceBreach  *float64
	HoursToResolution *float64
	ReopenedCount     int
	MissingEvidence   bool
}

// GuidanceRules stores the thresholds the default advisor applies.
type GuidanceRules struct {
	BreachImminentWithin time.Duration
	ReopenEscalationAt   int
	SettlementMinHold    float64
}

func DefaultGuidanceRules() GuidanceRules {
	return GuidanceRules{
		BreachImminentWithin: 4 * time.Hour,
		ReopenEscalationAt:   2,
		SettlementMinHold:    0.01,
	}
}

// Recommend maps a dispute and its insight onto the next operator action.
func (r GuidanceRules) Recommend(d DealDispute, insight Insight) Recommendation {
	if d.Status.Terminal() {
		return RecommendArchive
	}
	if insight.HoursSinceBreach != nil || d.Severity == SeverityCritical {
		return RecommendImmediateEscalation
	}
	if insight.ReopenedCount >= r.ReopenEscalationAt {
		return RecommendSeniorReview
	}
	if insight.HoursUntilBreach != nil && *insight.HoursUntilBreach <= r.BreachImminentWithin.Hours() {
		return RecommendSeniorReview
	}
	if insight.MissingEvidence {
		return RecommendRequestEvidence
	}
	if d.HoldAmount > r.SettlementMinHold && d.CounterProposalAmount > 0 {
		return RecommendProposeSettlement
	}
	return RecommendMonitor
}
