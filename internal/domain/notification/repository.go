package notification

import "context"

// Repository describes notification persistence needs from use cases.
type Repository interface {
	Create(ctx context.Context, n Notification) (Notification, error)
	GetByID(ctx context.Context, id string) (Notification, bool, error)
	List(ctx context.Context, q Query) ([]Notification, error)
	// ListPending returns retryable rows oldest first: attempts below the
	// cap and either PENDING or failed with ErrCodeNoTransport.
	ListPending(ctx context.Context, limit int) ([]Notification, error)
	Update(ctx context.Context, n Notification) error
	// LatestByType returns the newest notification of one type for a
	// negotiation, used for reminder dedup.
	LatestByType(ctx context.Context, negotiationID, notificationType string) (Notification, bool, error)
}
