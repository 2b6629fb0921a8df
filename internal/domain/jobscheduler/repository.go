package jobscheduler

import (
	"context"
	"time"
)

// Repository describes recurring-job persistence needs from use cases.
type Repository interface {
	// Upsert creates the row when absent and refreshes the stored interval
	// and metadata when it already exists. The unique key is the job name.
	Upsert(ctx context.Context, job RecurringJob) (RecurringJob, error)
	GetByName(ctx context.Context, name string) (RecurringJob, bool, error)
	List(ctx context.Context) ([]RecurringJob, error)
	// ListDue returns active rows whose NextRunAt is nil or not after ref,
	// ordered by NextRunAt ascending with nils first.
	ListDue(ctx context.Context, ref time.Time) ([]RecurringJob, error)
	Update(ctx context.Context, job RecurringJob) error
	AppendExecution(ctx context.Context, entry ExecutionLog) error
	ListRecentExecutions(ctx context.Context, limit int) ([]ExecutionLog, error)
}
