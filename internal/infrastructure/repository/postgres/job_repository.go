package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tradeyard/dealops/internal/domain/jobscheduler"
	qb "github.com/tradeyard/dealops/internal/platform/querybuilder"
)

type JobRepository struct {
	db *sqlx.DB
}

func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Upsert(ctx context.Context, job jobscheduler.RecurringJob) (jobscheduler.RecurringJob, error) {
	metadata, err := marshalMetadata(job.Metadata)
	if err != nil {
		return jobscheduler.RecurringJob{}, err
	}

	query, args, err := qb.InsertInto("recurring_jobs").
		Columns("name", "interval_seconds", "next_run_at", "last_run_at", "is_active", "disabled_at", "attempt", "last_error", "metadata").
		Values(job.Name, int64(job.Interval/time.Second), job.NextRunAt, job.LastRunAt, job.IsActive, job.DisabledAt, job.Attempt, nullString(job.LastError), metadata).
		Suffix(`ON CONFLICT (name) DO UPDATE SET
    interval_seconds = EXCLUDED.interval_seconds,
    metadata = EXCLUDED.metadata,
    updated_at = NOW()
RETURNING name, interval_seconds, next_run_at, last_run_at, is_active, disabled_at, attempt, last_error, metadata, created_at, updated_at`).
		ToSQL()
	if err != nil {
		return jobscheduler.RecurringJob{}, fmt.Errorf("build upsert job query: %w", err)
	}

	var row recurringJobTableModel
	if err := resolveExecutor(ctx, r.db).GetContext(ctx, &row, query, args...); err != nil {
		return jobscheduler.RecurringJob{}, fmt.Errorf("upsert recurring job: %w", err)
	}

	return row.toDomain()
}

func (r *JobRepository) GetByName(ctx context.Context, name string) (jobscheduler.RecurringJob, bool, error) {
	query, args, err := qb.Select("*").From("recurring_jobs").
		Where(qb.Eq("name", name)).
		ToSQL()
	if err != nil {
		return jobscheduler.RecurringJob{}, false, fmt.Errorf("build get job query: %w", err)
	}

	var row recurringJobTableModel
	if err := resolveExecutor(ctx, r.db).GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return jobscheduler.RecurringJob{}, false, nil
		}
		return jobscheduler.RecurringJob{}, false, fmt.Errorf("get recurring job: %w", err)
	}

	job, err := row.toDomain()
	if err != nil {
		return jobscheduler.RecurringJob{}, false, err
	}
	return job, true, nil
}

func (r *JobRepository) List(ctx context.Context) ([]jobscheduler.RecurringJob, error) {
	query, args, err := qb.Select("*").From("recurring_jobs").
		OrderBy("name").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list jobs query: %w", err)
	}

	var rows []recurringJobTableModel
	if err := resolveExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list recurring jobs: %w", err)
	}

	return mapJobRows(rows)
}

func (r *JobRepository) ListDue(ctx context.Context, ref time.Time) ([]jobscheduler.RecurringJob, error) {
	query, args, err := qb.Select("*").From("recurring_jobs").
		Where(
			qb.Eq("is_active", true),
			qb.Expr("(next_run_at IS NULL OR next_run_at <= ?)", ref),
		).
		OrderBy("next_run_at ASC NULLS FIRST").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list due jobs query: %w", err)
	}

	var rows []recurringJobTableModel
	if err := resolveExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list due jobs: %w", err)
	}

	return mapJobRows(rows)
}

func (r *JobRepository) Update(ctx context.Context, job jobscheduler.RecurringJob) error {
	metadata, err := marshalMetadata(job.Metadata)
	if err != nil {
		return err
	}

	query, args, err := qb.Update("recurring_jobs").
		Set("interval_seconds", int64(job.Interval/time.Second)).
		Set("next_run_at", job.NextRunAt).
		Set("last_run_at", job.LastRunAt).
		Set("is_active", job.IsActive).
		Set("disabled_at", job.DisabledAt).
		Set("attempt", job.Attempt).
		Set("last_error", nullString(job.LastError)).
		Set("metadata", metadata).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("name", job.Name)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update job query: %w", err)
	}

	if _, err := resolveExecutor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update recurring job: %w", err)
	}
	return nil
}

func (r *JobRepository) AppendExecution(ctx context.Context, entry jobscheduler.ExecutionLog) error {
	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}

	query, args, err := qb.InsertInto("job_executions").
		Columns("id", "job_name", "status", "attempt", "started_at", "finished_at", "run_error", "metadata").
		Values(entry.ID, entry.JobName, string(entry.Status), entry.Attempt, entry.StartedAt, entry.FinishedAt, nullString(entry.Error), metadata).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert execution query: %w", err)
	}

	if _, err := resolveExecutor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert job execution: %w", err)
	}
	return nil
}

func (r *JobRepository) ListRecentExecutions(ctx context.Context, limit int) ([]jobscheduler.ExecutionLog, error) {
	query, args, err := qb.Select("*").From("job_executions").
		OrderBy("started_at DESC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list executions query: %w", err)
	}

	var rows []jobExecutionTableModel
	if err := resolveExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list job executions: %w", err)
	}

	out := make([]jobscheduler.ExecutionLog, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func mapJobRows(rows []recurringJobTableModel) ([]jobscheduler.RecurringJob, error) {
	out := make([]jobscheduler.RecurringJob, 0, len(rows))
	for _, row := range rows {
		job, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}
