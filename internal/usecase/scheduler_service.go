package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tradeyard/dealops/internal/domain/jobscheduler"
	idgen "github.com/tradeyard/dealops/internal/platform/id"
	"github.com/tradeyard/dealops/internal/platform/logging"
)

// JobHandler is one recurring job body. Errors drive backoff; they never
// crash the poll loop.
type JobHandler func(ctx context.Context) error

const (
	// DefaultPollInterval drives the single scheduler timer.
	DefaultPollInterval = 30 * time.Second

	retryBaseDelay       = time.Minute
	maxFailureAttempts   = 5
	recentExecutionLimit = 25
)

type registeredJob struct {
	name     string
	interval time.Duration
	handler  JobHandler
	metadata map[string]any
}

// SchedulerService owns the in-memory job registry, the persisted schedule
// rows and the poll loop. Due jobs run sequentially within one tick.
type SchedulerService struct {
	repo   jobscheduler.Repository
	idGen  idgen.Generator
	logger *logging.Logger
	now    func() time.Time

	mu      sync.Mutex
	jobs    map[string]registeredJob
	order   []string
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// JobHealthReport pairs per-job overdue figures with recent execution rows.
type JobHealthReport struct {
	Jobs             []jobscheduler.JobHealth
	RecentExecutions []jobscheduler.ExecutionLog
}

func NewSchedulerService(
	repo jobscheduler.Repository,
	idGen idgen.Generator,
	logger *logging.Logger,
) *SchedulerService {
	if idGen == nil {
		idGen = idgen.NewRandomGenerator()
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &SchedulerService{
		repo:   repo,
		idGen:  idGen,
		logger: logger,
		now:    time.Now,
		jobs:   make(map[string]registeredJob),
	}
}

// RegisterJob is pure and idempotent per name; the last registration wins.
// Persistence happens on the next RunDueJobs pass.
func (s *SchedulerService) RegisterJob(name string, interval time.Duration, handler JobHandler, metadata map[string]any) {
	name = strings.TrimSpace(name)
	if name == "" || handler == nil || interval <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; !exists {
		s.order = append(s.order, name)
	}
	s.jobs[name] = registeredJob{
		name:     name,
		interval: interval,
		handler:  handler,
		metadata: metadata,
	}
}

// RunDueJobs upserts every registered job's schedule row, then executes the
// due ones sequentially in query order, isolating failures per job.
func (s *SchedulerService) RunDueJobs(ctx context.Context, ref time.Time) error {
	registry := s.snapshotRegistry()

	for _, reg := range registry {
		first := ref.Add(reg.interval)
		if _, err := s.repo.Upsert(ctx, jobscheduler.RecurringJob{
			Name:      reg.name,
			Interval:  reg.interval,
			NextRunAt: &first,
			IsActive:  true,
			Attempt:   1,
			Metadata:  reg.metadata,
		}); err != nil {
			return fmt.Errorf("upsert job %s: %w", reg.name, err)
		}
	}

	due, err := s.repo.ListDue(ctx, ref)
	if err != nil {
		return fmt.Errorf("list due jobs: %w", err)
	}

	for _, row := range due {
		reg, ok := s.lookupJob(row.Name)
		if !ok {
			s.logger.WarnContext(ctx, "due job has no registered handler", "job", row.Name)
			continue
		}
		if err := s.executeJob(ctx, row, reg, row.Attempt); err != nil {
			s.logger.WarnContext(ctx, "job execution failed", "job", row.Name, "error", err)
		}
	}

	return nil
}

// TriggerJob bypasses the schedule: the job runs immediately with the attempt
// counter reset, reactivating a deactivated row.
func (s *SchedulerService) TriggerJob(ctx context.Context, name string) error {
	reg, ok := s.lookupJob(strings.TrimSpace(name))
	if !ok {
		return fmt.Errorf("%w: job %q is not registered", ErrNotFound, name)
	}

	ref := s.now().UTC()
	first := ref.Add(reg.interval)
	row, err := s.repo.Upsert(ctx, jobscheduler.RecurringJob{
		Name:      reg.name,
		Interval:  reg.interval,
		NextRunAt: &first,
		IsActive:  true,
		Attempt:   1,
		Metadata:  reg.metadata,
	})
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", reg.name, err)
	}

	row.IsActive = true
	row.DisabledAt = nil
	row.Attempt = 1
	if err := s.repo.Update(ctx, row); err != nil {
		return fmt.Errorf("reactivate job %s: %w", reg.name, err)
	}

	return s.executeJob(ctx, row, reg, 1)
}

func (s *SchedulerService) executeJob(ctx context.Context, row jobscheduler.RecurringJob, reg registeredJob, attempt int) error {
	if attempt < 1 {
		attempt = 1
	}

	startedAt := s.now().UTC()
	s.logger.InfoContext(ctx, "job starting", "job", reg.name, "attempt", attempt)

	runErr := invokeHandler(ctx, reg.handler)
	finishedAt := s.now().UTC()

	entryID, idErr := s.idGen.NewID()
	if idErr != nil {
		return fmt.Errorf("generate execution log id: %w", idErr)
	}

	entry := jobscheduler.ExecutionLog{
		ID:         entryID,
		JobName:    reg.name,
		Attempt:    attempt,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Metadata:   reg.metadata,
	}

	if runErr == nil {
		entry.Status = jobscheduler.StatusSucceeded
		if err := s.repo.AppendExecution(ctx, entry); err != nil {
			return fmt.Errorf("append execution log for %s: %w", reg.name, err)
		}

		next := startedAt.Add(reg.interval)
		row.Interval = reg.interval
		row.Attempt = 1
		row.LastRunAt = &startedAt
		row.NextRunAt = &next
		row.LastError = ""
		row.IsActive = true
		row.DisabledAt = nil
		if err := s.repo.Update(ctx, row); err != nil {
			return fmt.Errorf("update job %s after success: %w", reg.name, err)
		}

		s.logger.InfoContext(ctx, "job succeeded", "job", reg.name, "duration_ms", finishedAt.Sub(startedAt).Milliseconds())
		return nil
	}

	entry.Status = jobscheduler.StatusFailed
	entry.Error = runErr.Error()
	if err := s.repo.AppendExecution(ctx, entry); err != nil {
		return fmt.Errorf("append execution log for %s: %w", reg.name, err)
	}

	next := startedAt.Add(retryDelay(reg.interval, attempt))
	row.Interval = reg.interval
	row.NextRunAt = &next
	row.LastError = runErr.Error()
	row.Attempt = attempt + 1
	if row.Attempt > maxFailureAttempts {
		row.Attempt = maxFailureAttempts
	}
	if attempt >= maxFailureAttempts {
		row.IsActive = false
		row.DisabledAt = &finishedAt
	}
	if err := s.repo.Update(ctx, row); err != nil {
		return fmt.Errorf("update job %s after failure: %w", reg.name, err)
	}

	if !row.IsActive {
		s.logger.ErrorContext(ctx, "job deactivated after consecutive failures",
			"job", reg.name,
			"attempt", attempt,
			"error", runErr,
		)
	}

	return runErr
}

// retryDelay grows exponentially from the base delay, capped at the job's
// own interval.
func retryDelay(interval time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 20 {
		shift = 20
	}
	delay := retryBaseDelay << shift
	if delay > interval {
		delay = interval
	}
	return delay
}

// GetJobHealth reports overdue/backlog figures for every job row alongside
// the most recent execution-log rows.
func (s *SchedulerService) GetJobHealth(ctx context.Context, ref time.Time) (JobHealthReport, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return JobHealthReport{}, fmt.Errorf("list jobs: %w", err)
	}

	report := JobHealthReport{Jobs: make([]jobscheduler.JobHealth, 0, len(rows))}
	for _, row := range rows {
		health := jobscheduler.JobHealth{
			Name:      row.Name,
			Interval:  row.Interval,
			NextRunAt: row.NextRunAt,
			LastRunAt: row.LastRunAt,
			IsActive:  row.IsActive,
			Attempt:   row.Attempt,
			LastError: row.LastError,
		}
		if row.NextRunAt != nil && ref.After(*row.NextRunAt) {
			health.OverdueBy = ref.Sub(*row.NextRunAt)
			health.BacklogRunCount = backlogRuns(health.OverdueBy, row.Interval)
		}
		report.Jobs = append(report.Jobs, health)
	}

	executions, err := s.repo.ListRecentExecutions(ctx, recentExecutionLimit)
	if err != nil {
		return JobHealthReport{}, fmt.Errorf("list recent executions: %w", err)
	}
	report.RecentExecutions = executions

	return report, nil
}

func backlogRuns(overdue, interval time.Duration) int {
	if overdue <= 0 || interval <= 0 {
		return 0
	}
	runs := int((overdue + interval - 1) / interval)
	if runs < 1 {
		runs = 1
	}
	return runs
}

// Start launches the poll loop. Starting twice is a no-op.
func (s *SchedulerService) Start(pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.running = true

	go s.loop(ctx, pollInterval, done)
}

// Stop halts future ticks and waits for the in-flight pass to finish; it
// never cancels a running handler.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *SchedulerService) loop(ctx context.Context, pollInterval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			// Handlers outlive Stop: the pass runs on an uncancellable child.
			runCtx := context.WithoutCancel(ctx)
			if err := s.RunDueJobs(runCtx, tick.UTC()); err != nil {
				s.logger.ErrorContext(runCtx, "scheduler pass failed", "error", err)
			}
		}
	}
}

func (s *SchedulerService) snapshotRegistry() []registeredJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]registeredJob, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.jobs[name])
	}
	return out
}

func (s *SchedulerService) lookupJob(name string) (registeredJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.jobs[name]
	return reg, ok
}

func invokeHandler(ctx context.Context, handler JobHandler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job handler panicked: %v", rec)
		}
	}()
	return handler(ctx)
}
