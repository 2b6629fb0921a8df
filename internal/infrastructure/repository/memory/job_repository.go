package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tradeyard/dealops/internal/domain/jobscheduler"
)

type JobRepository struct {
	mu         sync.RWMutex
	items      map[string]jobscheduler.RecurringJob
	orders     []string
	executions []jobscheduler.ExecutionLog
}

func NewJobRepository() *JobRepository {
	return &JobRepository{
		items: make(map[string]jobscheduler.RecurringJob),
	}
}

func (r *JobRepository) Upsert(_ context.Context, job jobscheduler.RecurringJob) (jobscheduler.RecurringJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[job.Name]
	if !ok {
		r.items[job.Name] = job
		r.orders = append(r.orders, job.Name)
		return job, nil
	}

	existing.Interval = job.Interval
	existing.Metadata = job.Metadata
	r.items[job.Name] = existing

	return existing, nil
}

func (r *JobRepository) GetByName(_ context.Context, name string) (jobscheduler.RecurringJob, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.items[name]
	if !ok {
		return jobscheduler.RecurringJob{}, false, nil
	}

	return job, true, nil
}

func (r *JobRepository) List(_ context.Context) ([]jobscheduler.RecurringJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]jobscheduler.RecurringJob, 0, len(r.orders))
	for _, name := range r.orders {
		out = append(out, r.items[name])
	}

	return out, nil
}

func (r *JobRepository) ListDue(_ context.Context, ref time.Time) ([]jobscheduler.RecurringJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]jobscheduler.RecurringJob, 0, len(r.orders))
	for _, name := range r.orders {
		job := r.items[name]
		if !job.IsActive {
			continue
		}
		if job.NextRunAt != nil && job.NextRunAt.After(ref) {
			continue
		}
		out = append(out, job)
	}

	sort.SliceStable(out, func(i, j int) bool {
		left, right := out[i].NextRunAt, out[j].NextRunAt
		if left == nil {
			return right != nil
		}
		if right == nil {
			return false
		}
		return left.Before(*right)
	})

	return out, nil
}

func (r *JobRepository) Update(_ context.Context, job jobscheduler.RecurringJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[job.Name]; !ok {
		r.orders = append(r.orders, job.Name)
	}
	r.items[job.Name] = job

	return nil
}

func (r *JobRepository) AppendExecution(_ context.Context, entry jobscheduler.ExecutionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.executions = append(r.executions, entry)

	return nil
}

func (r *JobRepository) ListRecentExecutions(_ context.Context, limit int) ([]jobscheduler.ExecutionLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]jobscheduler.ExecutionLog, len(r.executions))
	copy(out, r.executions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}
