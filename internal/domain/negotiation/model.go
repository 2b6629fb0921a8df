package negotiation

import "time"

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusActive    Status = "ACTIVE"
	StatusCountered Status = "COUNTERED"
	StatusAgreed    Status = "AGREED"
	StatusFulfilled Status = "FULFILLED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// Negotiation is the read model the operations backbone holds of a deal
// negotiation. The marketplace layer owns the full record; the backbone only
// reads deadlines, parties and lifecycle status.
type Negotiation struct {
	ID             string
	ListingID      string
	BuyerUserID    string
	SellerUserID   string
	Status         Status
	ExpiresAt      *time.Time
	FulfilmentDue  *time.Time
	AgreedAmount   float64
	Currency       string
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Terminal reports whether the negotiation can no longer change hands.
func (n Negotiation) Terminal() bool {
	switch n.Status {
	case StatusFulfilled, StatusExpired, StatusCancelled:
		return true
	default:
		return false
	}
}
