package dispute

import "time"

type Status string

const (
	StatusOpen            Status = "OPEN"
	StatusUnderReview     Status = "UNDER_REVIEW"
	StatusAwaitingParties Status = "AWAITING_PARTIES"
	StatusEscalated       Status = "ESCALATED"
	StatusResolved        Status = "RESOLVED"
	StatusClosed          Status = "CLOSED"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

type EventType string

const (
	EventCreated            EventType = "CREATED"
	EventStatusChanged      EventType = "STATUS_CHANGED"
	EventEscalationTrigger  EventType = "ESCALATION_TRIGGERED"
	EventResolutionRecorded EventType = "RESOLUTION_RECORDED"
	EventAssignmentUpdated  EventType = "ASSIGNMENT_UPDATED"
	EventSlaBreachRecorded  EventType = "SLA_BREACH_RECORDED"
	EventEscrowHoldApplied  EventType = "ESCROW_HOLD_APPLIED"
	EventCounterProposed    EventType = "ESCROW_COUNTER_PROPOSED"
	EventPayoutReleased     EventType = "ESCROW_PAYOUT_RELEASED"
)

// DealDispute is a dispute raised against one negotiation. Each "At"
// timestamp is stamped at most once and never reset.
type DealDispute struct {
	ID                     string
	NegotiationID          string
	Status                 Status
	Severity               Severity
	Category               string
	Summary                string
	RaisedByUserID         string
	AssignedToUserID       string
	RaisedAt               time.Time
	SlaDueAt               time.Time
	SlaBreachedAt          *time.Time
	AcknowledgedAt         *time.Time
	EscalatedAt            *time.Time
	ResolvedAt             *time.Time
	ClosedAt               *time.Time
	HoldAmount             float64
	CounterProposalAmount  float64
	ResolutionPayoutAmount float64
}

// Event is one append-only audit row on a dispute.
type Event struct {
	ID          string
	DisputeID   string
	Type        EventType
	Status      Status
	Message     string
	ActorUserID string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// Evidence is a supporting attachment on a dispute.
type Evidence struct {
	ID         string
	DisputeID  string
	Type       string
	URL        string
	Label      string
	UploadedAt time.Time
}

// MaxEvidencePerCreate caps sanitized evidence rows accepted on creation.
const MaxEvidencePerCreate = 10

// Terminal reports whether the dispute can no longer transition.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// SlaWindow returns the severity-derived deadline window.
func SlaWindow(severity Severity) time.Duration {
	switch severity {
	case SeverityCritical:
		return 12 * time.Hour
	case SeverityHigh:
		return 24 * time.Hour
	case SeverityMedium:
		return 48 * time.Hour
	default:
		return 72 * time.Hour
	}
}

// NormalizeSeverity maps unknown inputs to LOW so dispute creation never
// fails on a free-form severity string.
func NormalizeSeverity(raw Severity) Severity {
	switch raw {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return raw
	default:
		return SeverityLow
	}
}

// EventTypeForStatus derives the audit event type written for a transition
// into target.
func EventTypeForStatus(target Status) EventType {
	switch target {
	case StatusEscalated:
		return EventEscalationTrigger
	case StatusResolved:
		return EventResolutionRecorded
	default:
		return EventStatusChanged
	}
}
