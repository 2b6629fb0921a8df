package usecase

import "context"

// UnitOfWork runs fn atomically: every repository call made with the ctx it
// passes in commits or rolls back together. Ledger mutations always pair a
// balance update with its audit event inside one unit.
type UnitOfWork interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func NewNoopUnitOfWork() UnitOfWork {
	return noopUnitOfWork{}
}
