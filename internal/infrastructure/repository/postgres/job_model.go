package postgres

import (
	"time"

	"github.com/tradeyard/dealops/internal/domain/jobscheduler"
)

type recurringJobTableModel struct {
	Name            string     `db:"name"`
	IntervalSeconds int64      `db:"interval_seconds"`
	NextRunAt       *time.Time `db:"next_run_at"`
	LastRunAt       *time.Time `db:"last_run_at"`
	IsActive        bool       `db:"is_active"`
	DisabledAt      *time.Time `db:"disabled_at"`
	Attempt         int        `db:"attempt"`
	LastError       *string    `db:"last_error"`
	Metadata        []byte     `db:"metadata"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (m recurringJobTableModel) toDomain() (jobscheduler.RecurringJob, error) {
	metadata, err := unmarshalMetadata(m.Metadata)
	if err != nil {
		return jobscheduler.RecurringJob{}, err
	}

	return jobscheduler.RecurringJob{
		Name:       m.Name,
		Interval:   time.Duration(m.IntervalSeconds) * time.Second,
		NextRunAt:  m.NextRunAt,
		LastRunAt:  m.LastRunAt,
		IsActive:   m.IsActive,
		DisabledAt: m.DisabledAt,
		Attempt:    m.Attempt,
		LastError:  stringValue(m.LastError),
		Metadata:   metadata,
	}, nil
}

type jobExecutionTableModel struct {
	ID         string    `db:"id"`
	JobName    string    `db:"job_name"`
	Status     string    `db:"status"`
	Attempt    int       `db:"attempt"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	RunError   *string   `db:"run_error"`
	Metadata   []byte    `db:"metadata"`
}

func (m jobExecutionTableModel) toDomain() (jobscheduler.ExecutionLog, error) {
	metadata, err := unmarshalMetadata(m.Metadata)
	if err != nil {
		return jobscheduler.ExecutionLog{}, err
	}

	return jobscheduler.ExecutionLog{
		ID:         m.ID,
		JobName:    m.JobName,
		Status:     jobscheduler.ExecutionStatus(m.Status),
		Attempt:    m.Attempt,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		Error:      stringValue(m.RunError),
		Metadata:   metadata,
	}, nil
}
