package negotiation

import (
	"context"
	"time"
)

// Repository describes the read access the backbone needs on negotiations.
type Repository interface {
	GetByID(ctx context.Context, negotiationID string) (Negotiation, bool, error)
	// ListWithDeadline returns non-terminal negotiations carrying an expiry
	// deadline at or before the horizon.
	ListWithDeadline(ctx context.Context, horizon time.Time) ([]Negotiation, error)
	// ListAwaitingFulfilment returns agreed negotiations whose fulfilment is
	// due at or before the horizon and not yet fulfilled.
	ListAwaitingFulfilment(ctx context.Context, horizon time.Time) ([]Negotiation, error)
}
