package escrow

import "context"

// Repository describes escrow persistence needs from use cases. Ledger
// mutations always pair an account update with a transaction row inside the
// caller's unit of work.
type Repository interface {
	GetByNegotiation(ctx context.Context, negotiationID string) (Account, bool, error)
	Update(ctx context.Context, account Account) error
	// ListWithProviderReference returns accounts eligible for reconciliation,
	// oldest update first.
	ListWithProviderReference(ctx context.Context, limit int) ([]Account, error)

	AppendTransaction(ctx context.Context, tx Transaction) error
	ListTransactions(ctx context.Context, accountID string) ([]Transaction, error)
	// FindReconciliation returns the recorded reconciliation adjustment for a
	// statement, keyed by account, statement id and computed status.
	FindReconciliation(ctx context.Context, accountID, statementID string, status ReconciliationStatus) (Transaction, bool, error)
}
