package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tradeyard/dealops/internal/domain/dispute"
)

type DisputeRepository struct {
	mu       sync.RWMutex
	items    map[string]dispute.DealDispute
	orders   []string
	events   []dispute.Event
	evidence []dispute.Evidence
}

func NewDisputeRepository() *DisputeRepository {
	return &DisputeRepository{
		items: make(map[string]dispute.DealDispute),
	}
}

func (r *DisputeRepository) Create(_ context.Context, d dispute.DealDispute) (dispute.DealDispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[d.ID]; !ok {
		r.orders = append(r.orders, d.ID)
	}
	r.items[d.ID] = d

	return d, nil
}

func (r *DisputeRepository) GetByID(_ context.Context, disputeID string) (dispute.DealDispute, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.items[disputeID]
	if !ok {
		return dispute.DealDispute{}, false, nil
	}

	return d, true, nil
}

func (r *DisputeRepository) FindActiveByNegotiation(_ context.Context, negotiationID string) (dispute.DealDispute, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.orders {
		d := r.items[id]
		if d.NegotiationID == negotiationID && !d.Status.Terminal() {
			return d, true, nil
		}
	}

	return dispute.DealDispute{}, false, nil
}

func (r *DisputeRepository) Update(_ context.Context, d dispute.DealDispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[d.ID]; !ok {
		r.orders = append(r.orders, d.ID)
	}
	r.items[d.ID] = d

	return nil
}

func (r *DisputeRepository) ListQueue(_ context.Context, limit int) ([]dispute.DealDispute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]dispute.DealDispute, 0, len(r.orders))
	for _, id := range r.orders {
		d := r.items[id]
		if d.Status.Terminal() {
			continue
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SlaDueAt.Equal(out[j].SlaDueAt) {
			return out[i].SlaDueAt.Before(out[j].SlaDueAt)
		}
		return out[i].RaisedAt.Before(out[j].RaisedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (r *DisputeRepository) ListSlaOverdue(_ context.Context, ref time.Time) ([]dispute.DealDispute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]dispute.DealDispute, 0)
	for _, id := range r.orders {
		d := r.items[id]
		if d.Status.Terminal() || d.SlaBreachedAt != nil {
			continue
		}
		if !d.SlaDueAt.Before(ref) {
			continue
		}
		out = append(out, d)
	}

	return out, nil
}

func (r *DisputeRepository) AppendEvent(_ context.Context, event dispute.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	return nil
}

func (r *DisputeRepository) ListEvents(_ context.Context, disputeID string) ([]dispute.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]dispute.Event, 0)
	for _, event := range r.events {
		if event.DisputeID == disputeID {
			out = append(out, event)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func (r *DisputeRepository) AddEvidence(_ context.Context, evidence dispute.Evidence) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evidence = append(r.evidence, evidence)

	return nil
}

func (r *DisputeRepository) ListEvidence(_ context.Context, disputeID string) ([]dispute.Evidence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]dispute.Evidence, 0)
	for _, item := range r.evidence {
		if item.DisputeID == disputeID {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})

	return out, nil
}
