package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tradeyard/dealops/internal/domain/escrow"
)

type EscrowRepository struct {
	mu           sync.RWMutex
	accounts     map[string]escrow.Account
	orders       []string
	transactions []escrow.Transaction
}

func NewEscrowRepository(accounts []escrow.Account) *EscrowRepository {
	items := make(map[string]escrow.Account, len(accounts))
	orders := make([]string, 0, len(accounts))

	for _, a := range accounts {
		items[a.ID] = a
		orders = append(orders, a.ID)
	}

	return &EscrowRepository{
		accounts: items,
		orders:   orders,
	}
}

func (r *EscrowRepository) GetByNegotiation(_ context.Context, negotiationID string) (escrow.Account, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.orders {
		a := r.accounts[id]
		if a.NegotiationID == negotiationID {
			return a, true, nil
		}
	}

	return escrow.Account{}, false, nil
}

func (r *EscrowRepository) Update(_ context.Context, account escrow.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.ID]; !ok {
		r.orders = append(r.orders, account.ID)
	}
	r.accounts[account.ID] = account

	return nil
}

func (r *EscrowRepository) ListWithProviderReference(_ context.Context, limit int) ([]escrow.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]escrow.Account, 0, len(r.orders))
	for _, id := range r.orders {
		a := r.accounts[id]
		if a.ProviderReference == "" {
			continue
		}
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (r *EscrowRepository) AppendTransaction(_ context.Context, tx escrow.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transactions = append(r.transactions, tx)

	return nil
}

func (r *EscrowRepository) ListTransactions(_ context.Context, accountID string) ([]escrow.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]escrow.Transaction, 0)
	for _, tx := range r.transactions {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})

	return out, nil
}

func (r *EscrowRepository) FindReconciliation(_ context.Context, accountID, statementID string, status escrow.ReconciliationStatus) (escrow.Transaction, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tx := range r.transactions {
		if tx.AccountID != accountID || tx.Type != escrow.TxAdjustment {
			continue
		}
		if tx.Metadata == nil {
			continue
		}
		gotStatement, _ := tx.Metadata["statement_id"].(string)
		gotStatus, _ := tx.Metadata["status"].(string)
		if gotStatement == statementID && gotStatus == string(status) {
			return tx, true, nil
		}
	}

	return escrow.Transaction{}, false, nil
}
