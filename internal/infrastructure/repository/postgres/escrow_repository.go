package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tradeyard/dealops/internal/domain/escrow"
	qb "github.com/tradeyard/dealops/internal/platform/querybuilder"
)

type escrowAccountTableModel struct {
	ID                string     `db:"id"`
	NegotiationID     string     `db:"negotiation_id"`
	Status            string     `db:"status"`
	Currency          string     `db:"currency"`
	FundedAmount      float64    `db:"funded_amount"`
	ReleasedAmount    float64    `db:"released_amount"`
	RefundedAmount    float64    `db:"refunded_amount"`
	ProviderReference *string    `db:"provider_reference"`
	FundedAt          *time.Time `db:"funded_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

func (m escrowAccountTableModel) toDomain() escrow.Account {
	return escrow.Account{
		ID:                m.ID,
		NegotiationID:     m.NegotiationID,
		Status:            escrow.AccountStatus(m.Status),
		Currency:          m.Currency,
		FundedAmount:      m.FundedAmount,
		ReleasedAmount:    m.ReleasedAmount,
		RefundedAmount:    m.RefundedAmount,
		ProviderReference: stringValue(m.ProviderReference),
		FundedAt:          m.FundedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

type escrowTransactionTableModel struct {
	ID         string    `db:"id"`
	AccountID  string    `db:"account_id"`
	TxType     string    `db:"tx_type"`
	Amount     float64   `db:"amount"`
	Reference  *string   `db:"reference"`
	Metadata   []byte    `db:"metadata"`
	OccurredAt time.Time `db:"occurred_at"`
}

func (m escrowTransactionTableModel) toDomain() (escrow.Transaction, error) {
	metadata, err := unmarshalMetadata(m.Metadata)
	if err != nil {
		return escrow.Transaction{}, err
	}

	return escrow.Transaction{
		ID:         m.ID,
		AccountID:  m.AccountID,
		Type:       escrow.TransactionType(m.TxType),
		Amount:     m.Amount,
		Reference:  stringValue(m.Reference),
		Metadata:   metadata,
		OccurredAt: m.OccurredAt,
	}, nil
}

type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

func (r *EscrowRepository) GetByNegotiation(ctx context.Context, negotiationID string) (escrow.Account, bool, error) {
	query, args, err := qb.Select("*").From("escrow_accounts").
		Where(qb.Eq("negotiation_id", negotiationID)).
		ToSQL()
	if err != nil {
		return escrow.Account{}, false, fmt.Errorf("build get escrow account query: %w", err)
	}

	var row escrowAccountTableModel
	if err := resolveExecutor(ctx, r.db).GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return escrow.Account{}, false, nil
		}
		return escrow.Account{}, false, fmt.Errorf("get escrow account: %w", err)
	}

	return row.toDomain(), true, nil
}

func (r *EscrowRepository) Update(ctx context.Context, account escrow.Account) error {
	query, args, err := qb.Update("escrow_accounts").
		Set("status", string(account.Status)).
		Set("funded_amount", account.FundedAmount).
		Set("released_amount", account.ReleasedAmount).
		Set("refunded_amount", account.RefundedAmount).
		Set("provider_reference", nullString(account.ProviderReference)).
		Set("funded_at", account.FundedAt).
		Set("updated_at", account.UpdatedAt).
		Where(qb.Eq("id", account.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update escrow account query: %w", err)
	}

	if _, err := resolveExecutor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update escrow account: %w", err)
	}
	return nil
}

func (r *EscrowRepository) ListWithProviderReference(ctx context.Context, limit int) ([]escrow.Account, error) {
	query, args, err := qb.Select("*").From("escrow_accounts").
		Where(qb.IsNotNull("provider_reference")).
		OrderBy("updated_at ASC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list escrow accounts query: %w", err)
	}

	var rows []escrowAccountTableModel
	if err := resolveExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list escrow accounts: %w", err)
	}

	out := make([]escrow.Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *EscrowRepository) AppendTransaction(ctx context.Context, tx escrow.Transaction) error {
	metadata, err := marshalMetadata(tx.Metadata)
	if err != nil {
		return err
	}

	query, args, err := qb.InsertInto("escrow_transactions").
		Columns("id", "account_id", "tx_type", "amount", "reference", "metadata", "occurred_at").
		Values(tx.ID, tx.AccountID, string(tx.Type), tx.Amount, nullString(tx.Reference), metadata, tx.OccurredAt).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert transaction query: %w", err)
	}

	if _, err := resolveExecutor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert escrow transaction: %w", err)
	}
	return nil
}

func (r *EscrowRepository) ListTransactions(ctx context.Context, accountID string) ([]escrow.Transaction, error) {
	query, args, err := qb.Select("*").From("escrow_transactions").
		Where(qb.Eq("account_id", accountID)).
		OrderBy("occurred_at ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list transactions query: %w", err)
	}

	var rows []escrowTransactionTableModel
	if err := resolveExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list escrow transactions: %w", err)
	}

	out := make([]escrow.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func (r *EscrowRepository) FindReconciliation(ctx context.Context, accountID, statementID string, status escrow.ReconciliationStatus) (escrow.Transaction, bool, error) {
	query, args, err := qb.Select("*").From("escrow_transactions").
		Where(
			qb.Eq("account_id", accountID),
			qb.Eq("tx_type", string(escrow.TxAdjustment)),
			qb.Expr("metadata->>'statement_id' = ?", statementID),
			qb.Expr("metadata->>'status' = ?", string(status)),
		).
		OrderBy("occurred_at DESC").
		Limit(1).
		ToSQL()
	if err != nil {
		return escrow.Transaction{}, false, fmt.Errorf("build find reconciliation query: %w", err)
	}

	var row escrowTransactionTableModel
	if err := resolveExecutor(ctx, r.db).GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return escrow.Transaction{}, false, nil
		}
		return escrow.Transaction{}, false, fmt.Errorf("find reconciliation: %w", err)
	}

	tx, err := row.toDomain()
	if err != nil {
		return escrow.Transaction{}, false, err
	}
	return tx, true, nil
}
