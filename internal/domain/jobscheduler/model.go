package jobscheduler

import "time"

type ExecutionStatus string

const (
	StatusSucceeded ExecutionStatus = "SUCCEEDED"
	StatusFailed    ExecutionStatus = "FAILED"
)

// RecurringJob is the persisted schedule row for a registered job.
// NextRunAt is nil only before the first scheduling pass; once the job is
// active it always points past the transition that last set it.
type RecurringJob struct {
	Name       string
	Interval   time.Duration
	NextRunAt  *time.Time
	LastRunAt  *time.Time
	IsActive   bool
	DisabledAt *time.Time
	Attempt    int
	LastError  string
	Metadata   map[string]any
}

// ExecutionLog records a single attempt. Rows are never mutated after insert.
type ExecutionLog struct {
	ID         string
	JobName    string
	Status     ExecutionStatus
	Attempt    int
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
	Metadata   map[string]any
}

// JobHealth is the observability projection for one job row.
type JobHealth struct {
	Name            string
	Interval        time.Duration
	NextRunAt       *time.Time
	LastRunAt       *time.Time
	IsActive        bool
	Attempt         int
	LastError       string
	OverdueBy       time.Duration
	BacklogRunCount int
}
