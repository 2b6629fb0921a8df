package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tradeyard/dealops/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	HTTPAddr       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	LogLevel       logging.Level

	DBURL string

	InternalJobToken string

	UptraceEnabled bool
	UptraceDSN     string

	PyroscopeEnabled       bool
	PyroscopeServerAddress string
	PyroscopeAppName       string
	PyroscopeAuthToken     string

	EscrowProviderBaseURL       string
	EscrowProviderToken         string
	EscrowProviderTimeout       time.Duration
	EscrowProviderMaxRetries    int
	EscrowCircuitEnabled        bool
	EscrowCircuitFailureCount   int
	EscrowCircuitOpenTimeout    time.Duration
	EscrowCircuitHalfOpenMaxReq int

	SchedulerPollInterval     time.Duration
	NegotiationWatchdogEvery  time.Duration
	DisputeSlaMonitorEvery    time.Duration
	EscrowReconciliationEvery time.Duration
	NotificationFanoutEvery   time.Duration
	FulfilmentReminderEvery   time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:           appEnv,
		ServiceName:      getEnv("SERVICE_NAME", "dealops"),
		ServiceVersion:   getEnv("SERVICE_VERSION", "dev"),
		HTTPAddr:         getEnv("APP_HTTP_ADDR", ":8080"),
		DBURL:            strings.TrimSpace(getEnv("DATABASE_URL", "")),
		InternalJobToken: strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),
		LogLevel:         parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
	}

	if appEnv != EnvDev && cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required when APP_ENV=%s", appEnv)
	}

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}
	cfg.ReadTimeout = readTimeout
	cfg.WriteTimeout = writeTimeout

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	cfg.UptraceEnabled = uptraceEnabled
	cfg.UptraceDSN = uptraceDSN

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	cfg.PyroscopeEnabled = pyroscopeEnabled
	cfg.PyroscopeServerAddress = pyroscopeServerAddress
	cfg.PyroscopeAppName = getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName)
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", ""))

	cfg.EscrowProviderBaseURL = strings.TrimSpace(getEnv("ESCROW_PROVIDER_BASE_URL", ""))
	cfg.EscrowProviderToken = strings.TrimSpace(getEnv("ESCROW_PROVIDER_TOKEN", ""))

	providerTimeout, err := time.ParseDuration(getEnv("ESCROW_PROVIDER_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse ESCROW_PROVIDER_TIMEOUT: %w", err)
	}
	if providerTimeout <= 0 {
		return Config{}, fmt.Errorf("ESCROW_PROVIDER_TIMEOUT must be > 0")
	}
	cfg.EscrowProviderTimeout = providerTimeout

	providerRetries, err := getEnvAsInt("ESCROW_PROVIDER_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse ESCROW_PROVIDER_MAX_RETRIES: %w", err)
	}
	if providerRetries < 0 {
		return Config{}, fmt.Errorf("ESCROW_PROVIDER_MAX_RETRIES must be >= 0")
	}
	cfg.EscrowProviderMaxRetries = providerRetries

	circuitEnabled, err := strconv.ParseBool(getEnv("ESCROW_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse ESCROW_CIRCUIT_ENABLED: %w", err)
	}
	circuitFailureCount, err := getEnvAsInt("ESCROW_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse ESCROW_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if circuitFailureCount < 1 {
		return Config{}, fmt.Errorf("ESCROW_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	circuitOpenTimeout, err := time.ParseDuration(getEnv("ESCROW_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse ESCROW_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if circuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("ESCROW_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	circuitHalfOpenMaxReq, err := getEnvAsInt("ESCROW_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse ESCROW_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if circuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("ESCROW_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}
	cfg.EscrowCircuitEnabled = circuitEnabled
	cfg.EscrowCircuitFailureCount = circuitFailureCount
	cfg.EscrowCircuitOpenTimeout = circuitOpenTimeout
	cfg.EscrowCircuitHalfOpenMaxReq = circuitHalfOpenMaxReq

	cfg.SchedulerPollInterval, err = getEnvAsDuration("SCHEDULER_POLL_INTERVAL", "30s")
	if err != nil {
		return Config{}, err
	}
	cfg.NegotiationWatchdogEvery, err = getEnvAsDuration("JOB_NEGOTIATION_WATCHDOG_INTERVAL", "15m")
	if err != nil {
		return Config{}, err
	}
	cfg.DisputeSlaMonitorEvery, err = getEnvAsDuration("JOB_DISPUTE_SLA_MONITOR_INTERVAL", "10m")
	if err != nil {
		return Config{}, err
	}
	cfg.EscrowReconciliationEvery, err = getEnvAsDuration("JOB_ESCROW_RECONCILIATION_INTERVAL", "1h")
	if err != nil {
		return Config{}, err
	}
	cfg.NotificationFanoutEvery, err = getEnvAsDuration("JOB_NOTIFICATION_FANOUT_INTERVAL", "5m")
	if err != nil {
		return Config{}, err
	}
	cfg.FulfilmentReminderEvery, err = getEnvAsDuration("JOB_FULFILMENT_REMINDER_INTERVAL", "30m")
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsDuration(key, fallback string) (time.Duration, error) {
	out, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}

	return out, nil
}
