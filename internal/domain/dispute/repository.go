package dispute

import (
	"context"
	"time"
)

// Repository describes dispute persistence needs from use cases. Writes that
// must pair with audit events run inside the caller's unit of work.
type Repository interface {
	Create(ctx context.Context, d DealDispute) (DealDispute, error)
	GetByID(ctx context.Context, disputeID string) (DealDispute, bool, error)
	// FindActiveByNegotiation returns the non-terminal dispute for a
	// negotiation when one exists. At most one can be active at a time.
	FindActiveByNegotiation(ctx context.Context, negotiationID string) (DealDispute, bool, error)
	Update(ctx context.Context, d DealDispute) error
	// ListQueue orders by slaDueAt ascending then raisedAt ascending, the
	// soonest-breaching dispute first.
	ListQueue(ctx context.Context, limit int) ([]DealDispute, error)
	// ListSlaOverdue selects non-terminal disputes whose slaDueAt passed
	// before ref and whose breach has not been stamped yet.
	ListSlaOverdue(ctx context.Context, ref time.Time) ([]DealDispute, error)

	AppendEvent(ctx context.Context, event Event) error
	ListEvents(ctx context.Context, disputeID string) ([]Event, error)
	AddEvidence(ctx context.Context, evidence Evidence) error
	ListEvidence(ctx context.Context, disputeID string) ([]Evidence, error)
}
