package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tradeyard/dealops/internal/infrastructure/repository/memory"
	"github.com/tradeyard/dealops/internal/platform/logging"
)

type seqIDGenerator struct {
	prefix string
	n      int
}

func (g *seqIDGenerator) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("%s-%03d", g.prefix, g.n), nil
}

func newTestScheduler(t *testing.T) (*SchedulerService, *memory.JobRepository) {
	t.Helper()
	repo := memory.NewJobRepository()
	svc := NewSchedulerService(repo, &seqIDGenerator{prefix: "exec"}, logging.NewNop())
	return svc, repo
}

func TestSchedulerService_RunDueJobs_FirstRunAfterInterval(t *testing.T) {
	svc, _ := newTestScheduler(t)

	ran := 0
	svc.RegisterJob("heartbeat", time.Hour, func(context.Context) error {
		ran++
		return nil
	}, nil)

	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return t0 }

	if err := svc.RunDueJobs(t.Context(), t0); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if ran != 0 {
		t.Fatalf("job ran before its first schedule, ran=%d", ran)
	}

	t1 := t0.Add(time.Hour)
	svc.now = func() time.Time { return t1 }
	if err := svc.RunDueJobs(t.Context(), t1); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if ran != 1 {
		t.Fatalf("expected one run, got %d", ran)
	}

	row, ok, err := svc.repo.GetByName(t.Context(), "heartbeat")
	if err != nil || !ok {
		t.Fatalf("job row missing: ok=%v err=%v", ok, err)
	}
	if row.LastRunAt == nil || !row.LastRunAt.Equal(t1) {
		t.Fatalf("expected last run at %v, got %v", t1, row.LastRunAt)
	}
	if row.NextRunAt == nil || !row.NextRunAt.Equal(t1.Add(time.Hour)) {
		t.Fatalf("expected next run at %v, got %v", t1.Add(time.Hour), row.NextRunAt)
	}
	if row.Attempt != 1 {
		t.Fatalf("expected attempt reset to 1, got %d", row.Attempt)
	}
}

func TestSchedulerService_RunDueJobs_BackoffSequence(t *testing.T) {
	svc, _ := newTestScheduler(t)

	svc.RegisterJob("flaky", time.Hour, func(context.Context) error {
		return errors.New("boom")
	}, nil)

	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := t0
	svc.now = func() time.Time { return clock }

	if err := svc.RunDueJobs(t.Context(), clock); err != nil {
		t.Fatalf("register pass failed: %v", err)
	}

	// Failing attempts back off 1m, 2m, 4m from the attempt start.
	wantDelays := []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute}
	clock = t0.Add(time.Hour)
	for i, want := range wantDelays {
		if err := svc.RunDueJobs(t.Context(), clock); err != nil {
			t.Fatalf("pass %d failed: %v", i+1, err)
		}

		row, ok, err := svc.repo.GetByName(t.Context(), "flaky")
		if err != nil || !ok {
			t.Fatalf("job row missing: ok=%v err=%v", ok, err)
		}
		if row.NextRunAt == nil || !row.NextRunAt.Equal(clock.Add(want)) {
			t.Fatalf("attempt %d: expected next run at %v, got %v", i+1, clock.Add(want), row.NextRunAt)
		}
		if row.LastError != "boom" {
			t.Fatalf("attempt %d: expected last error recorded, got %q", i+1, row.LastError)
		}
		clock = clock.Add(want)
	}

	row, _, err := svc.repo.GetByName(t.Context(), "flaky")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if row.Attempt != 4 {
		t.Fatalf("after 3 failures expected stored attempt 4, got %d", row.Attempt)
	}
	if !row.IsActive {
		t.Fatal("job deactivated too early")
	}
}

func TestSchedulerService_RunDueJobs_DeactivatesAfterFiveFailures(t *testing.T) {
	svc, _ := newTestScheduler(t)

	svc.RegisterJob("doomed", 30*time.Minute, func(context.Context) error {
		return errors.New("still broken")
	}, nil)

	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	if err := svc.RunDueJobs(t.Context(), clock); err != nil {
		t.Fatalf("register pass failed: %v", err)
	}

	clock = clock.Add(30 * time.Minute)
	for i := 0; i < 5; i++ {
		if err := svc.RunDueJobs(t.Context(), clock); err != nil {
			t.Fatalf("pass %d failed: %v", i+1, err)
		}
		clock = clock.Add(30 * time.Minute)
	}

	row, ok, err := svc.repo.GetByName(t.Context(), "doomed")
	if err != nil || !ok {
		t.Fatalf("job row missing: ok=%v err=%v", ok, err)
	}
	if row.IsActive {
		t.Fatal("expected job deactivated after five consecutive failures")
	}
	if row.DisabledAt == nil {
		t.Fatal("expected disabled timestamp to be stamped")
	}
	if row.Attempt != maxFailureAttempts {
		t.Fatalf("expected attempt capped at %d, got %d", maxFailureAttempts, row.Attempt)
	}

	// A deactivated row no longer comes back as due.
	before := row
	if err := svc.RunDueJobs(t.Context(), clock.Add(24*time.Hour)); err != nil {
		t.Fatalf("post-deactivation pass failed: %v", err)
	}
	after, _, _ := svc.repo.GetByName(t.Context(), "doomed")
	if !after.NextRunAt.Equal(*before.NextRunAt) {
		t.Fatal("deactivated job was executed again")
	}
}

func TestSchedulerService_TriggerJob_RevivesDeactivatedJob(t *testing.T) {
	svc, _ := newTestScheduler(t)

	fail := true
	svc.RegisterJob("revivable", time.Hour, func(context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	}, nil)

	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	if err := svc.RunDueJobs(t.Context(), clock); err != nil {
		t.Fatalf("register pass failed: %v", err)
	}
	clock = clock.Add(time.Hour)
	for i := 0; i < 5; i++ {
		_ = svc.RunDueJobs(t.Context(), clock)
		clock = clock.Add(time.Hour)
	}

	row, _, _ := svc.repo.GetByName(t.Context(), "revivable")
	if row.IsActive {
		t.Fatal("expected deactivated job before trigger")
	}

	fail = false
	if err := svc.TriggerJob(t.Context(), "revivable"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	row, _, _ = svc.repo.GetByName(t.Context(), "revivable")
	if !row.IsActive {
		t.Fatal("expected job reactivated by trigger")
	}
	if row.Attempt != 1 {
		t.Fatalf("expected attempt reset to 1, got %d", row.Attempt)
	}
	if row.LastError != "" {
		t.Fatalf("expected last error cleared, got %q", row.LastError)
	}
}

func TestSchedulerService_TriggerJob_UnknownJob(t *testing.T) {
	svc, _ := newTestScheduler(t)

	err := svc.TriggerJob(t.Context(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSchedulerService_GetJobHealth_OverdueAndBacklog(t *testing.T) {
	svc, _ := newTestScheduler(t)

	svc.RegisterJob("sweeper", 10*time.Minute, func(context.Context) error { return nil }, nil)

	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return t0 }
	if err := svc.RunDueJobs(t.Context(), t0); err != nil {
		t.Fatalf("register pass failed: %v", err)
	}

	// 35 minutes past the scheduled slot means 4 missed 10-minute runs.
	ref := t0.Add(10*time.Minute + 35*time.Minute)
	report, err := svc.GetJobHealth(t.Context(), ref)
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}
	if len(report.Jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(report.Jobs))
	}

	health := report.Jobs[0]
	if health.OverdueBy != 35*time.Minute {
		t.Fatalf("expected 35m overdue, got %v", health.OverdueBy)
	}
	if health.BacklogRunCount != 4 {
		t.Fatalf("expected backlog of 4 runs, got %d", health.BacklogRunCount)
	}
}

func TestSchedulerService_GetJobHealth_RecentExecutionsCapped(t *testing.T) {
	svc, _ := newTestScheduler(t)

	svc.RegisterJob("busy", time.Minute, func(context.Context) error { return nil }, nil)

	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	if err := svc.RunDueJobs(t.Context(), clock); err != nil {
		t.Fatalf("register pass failed: %v", err)
	}

	for i := 0; i < 30; i++ {
		clock = clock.Add(time.Minute)
		if err := svc.RunDueJobs(t.Context(), clock); err != nil {
			t.Fatalf("pass %d failed: %v", i+1, err)
		}
	}

	report, err := svc.GetJobHealth(t.Context(), clock)
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}
	if len(report.RecentExecutions) != recentExecutionLimit {
		t.Fatalf("expected %d recent executions, got %d", recentExecutionLimit, len(report.RecentExecutions))
	}
	// Newest first.
	first := report.RecentExecutions[0]
	if !first.StartedAt.Equal(clock) {
		t.Fatalf("expected newest execution at %v, got %v", clock, first.StartedAt)
	}
}

func TestSchedulerService_RunDueJobs_PanicIsIsolated(t *testing.T) {
	svc, _ := newTestScheduler(t)

	svc.RegisterJob("panicky", time.Hour, func(context.Context) error {
		panic("oops")
	}, nil)
	ran := false
	svc.RegisterJob("steady", time.Hour, func(context.Context) error {
		ran = true
		return nil
	}, nil)

	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return t0 }
	if err := svc.RunDueJobs(t.Context(), t0); err != nil {
		t.Fatalf("register pass failed: %v", err)
	}

	t1 := t0.Add(time.Hour)
	svc.now = func() time.Time { return t1 }
	if err := svc.RunDueJobs(t.Context(), t1); err != nil {
		t.Fatalf("due pass failed: %v", err)
	}

	if !ran {
		t.Fatal("panicking job blocked the rest of the batch")
	}
	row, _, _ := svc.repo.GetByName(t.Context(), "panicky")
	if row.LastError == "" {
		t.Fatal("expected panic recorded as job failure")
	}
}
