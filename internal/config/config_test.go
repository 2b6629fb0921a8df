package config

import (
	"testing"
	"time"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_DBURLRequiredOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", EnvProd)
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is empty in prod")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_ProviderDefaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.EscrowProviderTimeout != 10*time.Second {
		t.Fatalf("unexpected provider timeout: %s", cfg.EscrowProviderTimeout)
	}
	if cfg.EscrowProviderMaxRetries != 2 {
		t.Fatalf("unexpected provider retries: %d", cfg.EscrowProviderMaxRetries)
	}
	if !cfg.EscrowCircuitEnabled {
		t.Fatalf("expected circuit breaker enabled by default")
	}
	if cfg.SchedulerPollInterval != 30*time.Second {
		t.Fatalf("unexpected scheduler poll interval: %s", cfg.SchedulerPollInterval)
	}
}

func TestLoad_JobIntervalsOverride(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("JOB_DISPUTE_SLA_MONITOR_INTERVAL", "2m")
	t.Setenv("JOB_ESCROW_RECONCILIATION_INTERVAL", "45m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DisputeSlaMonitorEvery != 2*time.Minute {
		t.Fatalf("unexpected dispute monitor interval: %s", cfg.DisputeSlaMonitorEvery)
	}
	if cfg.EscrowReconciliationEvery != 45*time.Minute {
		t.Fatalf("unexpected reconciliation interval: %s", cfg.EscrowReconciliationEvery)
	}
}

func TestLoad_InvalidIntervalRejected(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("SCHEDULER_POLL_INTERVAL", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed SCHEDULER_POLL_INTERVAL")
	}
}
