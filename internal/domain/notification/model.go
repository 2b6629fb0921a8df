package notification

import "time"

type Audience string

const (
	AudienceAdmin       Audience = "ADMIN"
	AudienceParticipant Audience = "PARTICIPANT"
	AudienceBuyer       Audience = "BUYER"
	AudienceSeller      Audience = "SELLER"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

// Well-known lifecycle event types produced by the backbone.
const (
	TypeSlaWarning        = "SLA_WARNING"
	TypeSlaBreached       = "SLA_BREACHED"
	TypeDisputeRaised     = "DEAL_DISPUTE_RAISED"
	TypeDisputeSlaBreach  = "DEAL_DISPUTE_SLA_BREACHED"
	TypeDisputeEscrowMove = "DEAL_DISPUTE_ESCROW_UPDATED"
	TypeStatementReady    = "ESCROW_STATEMENT_READY"
	TypeFulfilmentDue     = "FULFILMENT_REMINDER"
)

// ErrCodeNoTransport marks delivery failures caused by an empty transport
// registry; only these are reinstated for automatic retry.
const ErrCodeNoTransport = "NO_TRANSPORT_REGISTERED"

// MaxDeliveryAttempts is the terminal attempt cap per notification.
const MaxDeliveryAttempts = 5

// WildcardChannel matches every subscriber and transport.
const WildcardChannel = "*"

// Notification is the persisted envelope. DeliveryAttempts only grows and
// DeliveredAt is set exactly when DeliveryStatus is DELIVERED.
type Notification struct {
	ID               string
	NegotiationID    string
	Type             string
	Audience         Audience
	Status           string
	TriggeredByID    string
	OccurredAt       time.Time
	Payload          map[string]any
	Channels         []string
	DeliveryStatus   DeliveryStatus
	DeliveryAttempts int
	LastAttemptAt    *time.Time
	DeliveredAt      *time.Time
	DeliveryError    string
}

// Query filters notification reads. Zero values mean "no filter".
type Query struct {
	NegotiationID  string
	Audience       Audience
	UserID         string
	Since          *time.Time
	DeliveryStatus DeliveryStatus
	Limit          int
}

// Viewer scopes list and acknowledge calls. A nil viewer means a trusted
// in-process caller.
type Viewer struct {
	UserID  string
	IsAdmin bool
}
