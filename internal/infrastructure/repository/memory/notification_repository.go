package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tradeyard/dealops/internal/domain/notification"
)

type NotificationRepository struct {
	mu     sync.RWMutex
	items  map[string]notification.Notification
	orders []string
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		items: make(map[string]notification.Notification),
	}
}

func (r *NotificationRepository) Create(_ context.Context, n notification.Notification) (notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[n.ID]; !ok {
		r.orders = append(r.orders, n.ID)
	}
	r.items[n.ID] = n

	return n, nil
}

func (r *NotificationRepository) GetByID(_ context.Context, id string) (notification.Notification, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.items[id]
	if !ok {
		return notification.Notification{}, false, nil
	}

	return n, true, nil
}

func (r *NotificationRepository) List(_ context.Context, q notification.Query) ([]notification.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]notification.Notification, 0, len(r.orders))
	for _, id := range r.orders {
		n := r.items[id]
		if q.NegotiationID != "" && n.NegotiationID != q.NegotiationID {
			continue
		}
		if q.Audience != "" && n.Audience != q.Audience {
			continue
		}
		if q.DeliveryStatus != "" && n.DeliveryStatus != q.DeliveryStatus {
			continue
		}
		if q.Since != nil && n.OccurredAt.Before(*q.Since) {
			continue
		}
		if q.UserID != "" && !hasUserChannel(n, q.UserID) {
			continue
		}
		out = append(out, n)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	return out, nil
}

func (r *NotificationRepository) ListPending(_ context.Context, limit int) ([]notification.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]notification.Notification, 0)
	for _, id := range r.orders {
		n := r.items[id]
		if !retryable(n) {
			continue
		}
		out = append(out, n)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (r *NotificationRepository) Update(_ context.Context, n notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[n.ID]; !ok {
		r.orders = append(r.orders, n.ID)
	}
	r.items[n.ID] = n

	return nil
}

func (r *NotificationRepository) LatestByType(_ context.Context, negotiationID, notificationType string) (notification.Notification, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		latest notification.Notification
		found  bool
	)
	for _, id := range r.orders {
		n := r.items[id]
		if n.NegotiationID != negotiationID || n.Type != notificationType {
			continue
		}
		if !found || n.OccurredAt.After(latest.OccurredAt) {
			latest = n
			found = true
		}
	}

	return latest, found, nil
}

func retryable(n notification.Notification) bool {
	if n.DeliveryAttempts >= notification.MaxDeliveryAttempts {
		return false
	}
	if n.DeliveryStatus == notification.DeliveryPending {
		return true
	}
	return n.DeliveryStatus == notification.DeliveryFailed && n.DeliveryError == notification.ErrCodeNoTransport
}

func hasUserChannel(n notification.Notification, userID string) bool {
	target := "user:" + userID
	for _, ch := range n.Channels {
		if ch == target {
			return true
		}
	}
	return false
}
