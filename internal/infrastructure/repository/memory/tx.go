package memory

import (
	"context"
	"sync"
)

// TxManager serializes units of work under one mutex. The in-memory repos
// have no rollback, so exclusivity is the only guarantee offered.
type TxManager struct {
	mu sync.Mutex
}

func NewTxManager() *TxManager {
	return &TxManager{}
}

func (m *TxManager) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return fn(ctx)
}
