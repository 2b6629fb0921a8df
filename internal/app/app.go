package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tradeyard/dealops/external/escrowprovider"
	"github.com/tradeyard/dealops/internal/config"
	"github.com/tradeyard/dealops/internal/domain/dispute"
	"github.com/tradeyard/dealops/internal/domain/escrow"
	"github.com/tradeyard/dealops/internal/domain/jobscheduler"
	"github.com/tradeyard/dealops/internal/domain/negotiation"
	"github.com/tradeyard/dealops/internal/domain/notification"
	"github.com/tradeyard/dealops/internal/infrastructure/repository/memory"
	"github.com/tradeyard/dealops/internal/infrastructure/repository/postgres"
	"github.com/tradeyard/dealops/internal/interfaces/httpapi"
	idgen "github.com/tradeyard/dealops/internal/platform/id"
	"github.com/tradeyard/dealops/internal/platform/logging"
	"github.com/tradeyard/dealops/internal/platform/resilience"
	"github.com/tradeyard/dealops/internal/usecase"
)

// App bundles the HTTP server and the job scheduler for cmd/api.
type App struct {
	Server    *http.Server
	Scheduler *usecase.SchedulerService

	pollInterval time.Duration
	closeDB      func() error
	logger       *logging.Logger
}

type repositories struct {
	jobs          jobscheduler.Repository
	negotiations  negotiation.Repository
	disputes      dispute.Repository
	escrow        escrow.Repository
	notifications notification.Repository
	uow           usecase.UnitOfWork
	closeDB       func() error
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	repos, err := buildRepositories(cfg, logger)
	if err != nil {
		return nil, err
	}

	idGen := idgen.NewRandomGenerator()

	transports := usecase.NewTransportRegistry()
	transports.Register(newLogTransport(logger))

	notificationService := usecase.NewNotificationService(
		repos.notifications, repos.negotiations, transports, idGen, logger,
	)
	disputeService := usecase.NewDisputeService(
		repos.negotiations, repos.disputes, repos.escrow,
		repos.uow, notificationService, nil, idGen, logger,
	)
	slaService := usecase.NewSlaScanService(
		repos.negotiations, repos.disputes, repos.uow, notificationService, idGen, logger,
	)
	reminderService := usecase.NewReminderService(
		repos.negotiations, repos.notifications, notificationService, logger,
	)

	var statementProvider usecase.StatementProvider
	if cfg.EscrowProviderBaseURL != "" {
		statementProvider = escrowprovider.NewClient(escrowprovider.ClientConfig{
			BaseURL:    cfg.EscrowProviderBaseURL,
			Token:      cfg.EscrowProviderToken,
			Timeout:    cfg.EscrowProviderTimeout,
			MaxRetries: cfg.EscrowProviderMaxRetries,
			Logger:     logger,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.EscrowCircuitEnabled,
				FailureThreshold: cfg.EscrowCircuitFailureCount,
				OpenTimeout:      cfg.EscrowCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.EscrowCircuitHalfOpenMaxReq,
			},
		})
	}
	reconciliationService := usecase.NewReconciliationService(
		repos.escrow, statementProvider, repos.uow, notificationService, idGen, logger,
	)

	scheduler := usecase.NewSchedulerService(repos.jobs, idGen, logger)
	registerRecurringJobs(cfg, scheduler, slaService, reconciliationService, notificationService, reminderService)

	handler := httpapi.NewHandler(scheduler, disputeService, notificationService, logger)
	router := httpapi.NewRouter(handler, logger, cfg.InternalJobToken)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &App{
		Server:       server,
		Scheduler:    scheduler,
		pollInterval: cfg.SchedulerPollInterval,
		closeDB:      repos.closeDB,
		logger:       logger,
	}, nil
}

// Start launches the scheduler poll loop. The HTTP server is started by the
// caller so it owns the listen error.
func (a *App) Start() {
	a.Scheduler.Start(a.pollInterval)
}

func (a *App) Close(ctx context.Context) error {
	a.Scheduler.Stop()
	if err := a.Server.Shutdown(ctx); err != nil {
		return err
	}
	if a.closeDB != nil {
		return a.closeDB()
	}
	return nil
}

func buildRepositories(cfg config.Config, logger *logging.Logger) (repositories, error) {
	if cfg.DBURL == "" {
		// Dev convenience: an in-memory world seeded with a few negotiations
		// so the API is usable without postgres.
		logger.Warn("DATABASE_URL is empty, using in-memory repositories", "env", cfg.AppEnv)
		return repositories{
			jobs:          memory.NewJobRepository(),
			negotiations:  memory.NewNegotiationRepository(memory.SeedNegotiations()),
			disputes:      memory.NewDisputeRepository(),
			escrow:        memory.NewEscrowRepository(memory.SeedEscrowAccounts()),
			notifications: memory.NewNotificationRepository(),
			uow:           memory.NewTxManager(),
		}, nil
	}

	db, err := OpenDB(cfg.DBURL)
	if err != nil {
		return repositories{}, err
	}

	return repositories{
		jobs:          postgres.NewJobRepository(db),
		negotiations:  postgres.NewNegotiationRepository(db),
		disputes:      postgres.NewDisputeRepository(db),
		escrow:        postgres.NewEscrowRepository(db),
		notifications: postgres.NewNotificationRepository(db),
		uow:           postgres.NewTxManager(db),
		closeDB:       db.Close,
	}, nil
}

func registerRecurringJobs(
	cfg config.Config,
	scheduler *usecase.SchedulerService,
	slaService *usecase.SlaScanService,
	reconciliationService *usecase.ReconciliationService,
	notificationService *usecase.NotificationService,
	reminderService *usecase.ReminderService,
) {
	scheduler.RegisterJob("negotiation-sla-watchdog", cfg.NegotiationWatchdogEvery, func(ctx context.Context) error {
		_, err := slaService.ScanNegotiationSlaWindows(ctx, time.Now().UTC())
		return err
	}, map[string]any{"component": "sla-scanner"})

	scheduler.RegisterJob("dispute-sla-monitor", cfg.DisputeSlaMonitorEvery, func(ctx context.Context) error {
		_, err := slaService.ScanDealDisputeSlaBreaches(ctx, time.Now().UTC())
		return err
	}, map[string]any{"component": "sla-scanner"})

	scheduler.RegisterJob("escrow-reconciliation", cfg.EscrowReconciliationEvery, func(ctx context.Context) error {
		_, err := reconciliationService.ReconcileEscrowLedgers(ctx, 0)
		return err
	}, map[string]any{"component": "reconciliation"})

	scheduler.RegisterJob("notification-fanout", cfg.NotificationFanoutEvery, func(ctx context.Context) error {
		_, err := notificationService.RunNotificationFanout(ctx, 0)
		return err
	}, map[string]any{"component": "notifications"})

	scheduler.RegisterJob("fulfilment-reminder-sweep", cfg.FulfilmentReminderEvery, func(ctx context.Context) error {
		_, err := reminderService.SweepFulfilmentReminders(ctx, time.Now().UTC())
		return err
	}, map[string]any{"component": "reminders"})
}

// logTransport is the default delivery sink. It marks envelopes delivered by
// writing them to the process log, which the ops log pipeline ships onward.
type logTransport struct {
	logger *logging.Logger
}

func newLogTransport(logger *logging.Logger) *logTransport {
	return &logTransport{logger: logger}
}

func (t *logTransport) Name() string { return "log" }

func (t *logTransport) Supports(notification.Notification) bool { return true }

func (t *logTransport) Deliver(ctx context.Context, n notification.Notification) error {
	t.logger.InfoContext(ctx, "notification delivered",
		"notification_id", n.ID,
		"type", n.Type,
		"negotiation_id", n.NegotiationID,
		"audience", string(n.Audience),
		"channels", n.Channels,
	)
	return nil
}
