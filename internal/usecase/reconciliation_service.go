package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tradeyard/dealops/internal/domain/escrow"
	"github.com/tradeyard/dealops/internal/domain/notification"
	idgen "github.com/tradeyard/dealops/internal/platform/id"
	"github.com/tradeyard/dealops/internal/platform/logging"
)

// StatementProvider is the external escrow provider contract.
type StatementProvider interface {
	GetStatement(ctx context.Context, providerReference string) (escrow.Statement, error)
}

const defaultReconcileLimit = 20

// ReconciliationService compares the local escrow ledger against provider
// statements and records the outcome as zero-amount adjustment entries.
type ReconciliationService struct {
	escrowRepo escrow.Repository
	provider   StatementProvider
	uow        UnitOfWork
	events     EventPublisher
	idGen      idgen.Generator
	logger     *logging.Logger
	now        func() time.Time
}

func NewReconciliationService(
	escrowRepo escrow.Repository,
	provider StatementProvider,
	uow UnitOfWork,
	events EventPublisher,
	idGen idgen.Generator,
	logger *logging.Logger,
) *ReconciliationService {
	if uow == nil {
		uow = NewNoopUnitOfWork()
	}
	if events == nil {
		events = NewNoopEventPublisher()
	}
	if idGen == nil {
		idGen = idgen.NewRandomGenerator()
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &ReconciliationService{
		escrowRepo: escrowRepo,
		provider:   provider,
		uow:        uow,
		events:     events,
		idGen:      idGen,
		logger:     logger,
		now:        time.Now,
	}
}

type ReconcileResult struct {
	Checked    int
	Matched    int
	Mismatched int
	Skipped    int
	Failed     int
}

// ReconcileEscrowLedgers fetches statements for accounts carrying a provider
// reference. Recording is idempotent per statement id and computed status:
// an unchanged statement never produces a second adjustment row.
func (s *ReconciliationService) ReconcileEscrowLedgers(ctx context.Context, limit int) (ReconcileResult, error) {
	if s.provider == nil {
		return ReconcileResult{}, fmt.Errorf("%w: statement provider is not configured", ErrDependencyUnavailable)
	}
	if limit <= 0 {
		limit = defaultReconcileLimit
	}

	accounts, err := s.escrowRepo.ListWithProviderReference(ctx, limit)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list escrow accounts: %w", err)
	}

	result := ReconcileResult{}
	for _, account := range accounts {
		result.Checked++
		if err := s.reconcileAccount(ctx, account, &result); err != nil {
			s.logger.WarnContext(ctx, "reconcile escrow account failed",
				"account_id", account.ID,
				"provider_reference", account.ProviderReference,
				"error", err,
			)
			result.Failed++
		}
	}

	return result, nil
}

func (s *ReconciliationService) reconcileAccount(ctx context.Context, account escrow.Account, result *ReconcileResult) error {
	statement, err := s.provider.GetStatement(ctx, account.ProviderReference)
	if err != nil {
		return fmt.Errorf("get statement: %w", err)
	}

	ledgerBalance := round2(account.LedgerBalance())
	delta := round2(statement.Balance - ledgerBalance)

	status := escrow.ReconciliationMatched
	if math.Abs(delta) > amountEpsilon {
		status = escrow.ReconciliationMismatch
	}

	if _, exists, err := s.escrowRepo.FindReconciliation(ctx, account.ID, statement.StatementID, status); err != nil {
		return fmt.Errorf("find existing reconciliation: %w", err)
	} else if exists {
		result.Skipped++
		return nil
	}

	txID, err := s.idGen.NewID()
	if err != nil {
		return fmt.Errorf("generate transaction id: %w", err)
	}

	err = s.uow.InTx(ctx, func(ctx context.Context) error {
		return s.escrowRepo.AppendTransaction(ctx, escrow.Transaction{
			ID:        txID,
			AccountID: account.ID,
			Type:      escrow.TxAdjustment,
			Amount:    0,
			Reference: statement.StatementID,
			Metadata: map[string]any{
				"statement_id":      statement.StatementID,
				"statement_balance": statement.Balance,
				"ledger_balance":    ledgerBalance,
				"delta":             delta,
				"status":            string(status),
				"generated_at":      statement.GeneratedAt,
			},
			OccurredAt: s.now().UTC(),
		})
	})
	if err != nil {
		return fmt.Errorf("record reconciliation: %w", err)
	}

	if status == escrow.ReconciliationMismatch {
		result.Mismatched++
		if err := s.events.PublishNegotiationEvent(ctx, EventEnvelope{
			NegotiationID: account.NegotiationID,
			Type:          notification.TypeStatementReady,
			Audience:      notification.AudienceAdmin,
			Status:        string(account.Status),
			Payload: map[string]any{
				"account_id":        account.ID,
				"statement_id":      statement.StatementID,
				"statement_balance": statement.Balance,
				"ledger_balance":    ledgerBalance,
				"delta":             delta,
			},
			Channels: []string{"audience:" + string(notification.AudienceAdmin)},
		}); err != nil {
			s.logger.WarnContext(ctx, "publish statement mismatch failed", "account_id", account.ID, "error", err)
		}
		return nil
	}

	result.Matched++
	return nil
}
