package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/tradeyard/dealops/internal/domain/notification"
)

// fanoutBatchLimit caps how many pending notifications one sweep drains.
const fanoutBatchLimit = 100

// fanoutWorkerCount sizes the delivery pool per sweep.
const fanoutWorkerCount = 8

// Transport pushes a notification to an external channel (email, webhook,
// chat). Deliver returning nil marks the attempt successful.
type Transport interface {
	Name() string
	Supports(n notification.Notification) bool
	Deliver(ctx context.Context, n notification.Notification) error
}

// TransportRegistry holds delivery transports in registration order.
type TransportRegistry struct {
	mu         sync.RWMutex
	transports []Transport
}

func NewTransportRegistry(transports ...Transport) *TransportRegistry {
	r := &TransportRegistry{}
	for _, t := range transports {
		r.Register(t)
	}
	return r
}

func (r *TransportRegistry) Register(t Transport) {
	if t == nil {
		return
	}
	r.mu.Lock()
	r.transports = append(r.transports, t)
	r.mu.Unlock()
}

func (r *TransportRegistry) snapshot() []Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Transport, len(r.transports))
	copy(out, r.transports)
	return out
}

func (r *TransportRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.transports)
}

// FanoutResult summarizes one delivery sweep.
type FanoutResult struct {
	Picked    int `json:"picked"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// RunNotificationFanout drains the retryable backlog through the registered
// transports. With an empty registry every picked row is failed fast with
// NO_TRANSPORT_REGISTERED, which keeps it eligible for the next sweep once a
// transport shows up. Attempts are capped at MaxDeliveryAttempts by the
// pending selection, not here.
func (s *NotificationService) RunNotificationFanout(ctx context.Context, limit int) (FanoutResult, error) {
	if limit <= 0 {
		limit = fanoutBatchLimit
	}

	pending, err := s.repo.ListPending(ctx, limit)
	if err != nil {
		return FanoutResult{}, fmt.Errorf("list pending notifications: %w", err)
	}

	result := FanoutResult{Picked: len(pending)}
	if len(pending) == 0 {
		return result, nil
	}

	transports := s.transports.snapshot()
	if len(transports) == 0 {
		for _, n := range pending {
			if _, err := s.RecordNotificationAttempt(ctx, n.ID, notification.DeliveryFailed, notification.ErrCodeNoTransport); err != nil {
				return result, err
			}
			result.Failed++
		}
		return result, nil
	}

	workers := fanoutWorkerCount
	if len(pending) < workers {
		workers = len(pending)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return result, fmt.Errorf("create fanout pool: %w", err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		poolErr error
	)
	for _, n := range pending {
		n := n
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			delivered, attemptErr := s.deliverOne(ctx, n, transports)
			mu.Lock()
			if attemptErr != nil && poolErr == nil {
				poolErr = attemptErr
			}
			if delivered {
				result.Delivered++
			} else {
				result.Failed++
			}
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if poolErr == nil {
				poolErr = fmt.Errorf("submit fanout task: %w", submitErr)
			}
			result.Failed++
			mu.Unlock()
		}
	}
	wg.Wait()

	return result, poolErr
}

// deliverOne walks the transports in registration order and stops at the
// first successful delivery.
func (s *NotificationService) deliverOne(ctx context.Context, n notification.Notification, transports []Transport) (bool, error) {
	var lastErr string
	attempted := false

	for _, t := range transports {
		if !t.Supports(n) {
			continue
		}
		attempted = true

		if err := s.safeDeliver(ctx, t, n); err != nil {
			lastErr = fmt.Sprintf("%s: %v", t.Name(), err)
			s.logger.WarnContext(ctx, "notification delivery failed",
				"notification_id", n.ID,
				"transport", t.Name(),
				"error", err.Error(),
			)
			continue
		}

		if _, err := s.RecordNotificationAttempt(ctx, n.ID, notification.DeliveryDelivered, ""); err != nil {
			return false, err
		}
		return true, nil
	}

	if !attempted {
		lastErr = notification.ErrCodeNoTransport
	}
	if strings.TrimSpace(lastErr) == "" {
		lastErr = "delivery failed"
	}
	if _, err := s.RecordNotificationAttempt(ctx, n.ID, notification.DeliveryFailed, lastErr); err != nil {
		return false, err
	}
	return false, nil
}

func (s *NotificationService) safeDeliver(ctx context.Context, t Transport, n notification.Notification) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("transport panicked: %v", rec)
		}
	}()
	return t.Deliver(ctx, n)
}
