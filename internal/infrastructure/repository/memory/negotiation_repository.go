package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tradeyard/dealops/internal/domain/negotiation"
)

type NegotiationRepository struct {
	mu     sync.RWMutex
	items  map[string]negotiation.Negotiation
	orders []string
}

func NewNegotiationRepository(negotiations []negotiation.Negotiation) *NegotiationRepository {
	items := make(map[string]negotiation.Negotiation, len(negotiations))
	orders := make([]string, 0, len(negotiations))

	for _, n := range negotiations {
		items[n.ID] = n
		orders = append(orders, n.ID)
	}

	return &NegotiationRepository{
		items:  items,
		orders: orders,
	}
}

func (r *NegotiationRepository) GetByID(_ context.Context, negotiationID string) (negotiation.Negotiation, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.items[negotiationID]
	if !ok {
		return negotiation.Negotiation{}, false, nil
	}

	return n, true, nil
}

func (r *NegotiationRepository) ListWithDeadline(_ context.Context, horizon time.Time) ([]negotiation.Negotiation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]negotiation.Negotiation, 0)
	for _, id := range r.orders {
		n := r.items[id]
		if n.Terminal() || n.ExpiresAt == nil {
			continue
		}
		if n.ExpiresAt.After(horizon) {
			continue
		}
		out = append(out, n)
	}

	return out, nil
}

func (r *NegotiationRepository) ListAwaitingFulfilment(_ context.Context, horizon time.Time) ([]negotiation.Negotiation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]negotiation.Negotiation, 0)
	for _, id := range r.orders {
		n := r.items[id]
		if n.Status != negotiation.StatusAgreed || n.FulfilmentDue == nil {
			continue
		}
		if n.FulfilmentDue.After(horizon) {
			continue
		}
		out = append(out, n)
	}

	return out, nil
}

// Put inserts or replaces a negotiation. Used by seeds and tests.
func (r *NegotiationRepository) Put(n negotiation.Negotiation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[n.ID]; !ok {
		r.orders = append(r.orders, n.ID)
	}
	r.items[n.ID] = n
}
