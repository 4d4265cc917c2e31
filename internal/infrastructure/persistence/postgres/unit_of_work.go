package postgres

import (
	"context"
	"fmt"

	"github.com/soukmarket/settlement/internal/application"
	"github.com/soukmarket/settlement/internal/infrastructure/persistence"
)

// UnitOfWork coordinates transactions across the settlement stores. It is the
// concrete "ambient session": WithTransaction hands the closure store copies
// bound to one pgx transaction, so ledger movements, transaction transitions,
// and order/ticket writes commit or roll back as a unit.
type UnitOfWork struct {
	db       *persistence.DB
	currency string
}

func NewUnitOfWork(db *persistence.DB, currency string) *UnitOfWork {
	return &UnitOfWork{db: db, currency: currency}
}

// Stores returns stores bound to the pool for plain reads and
// single-statement writes.
func (u *UnitOfWork) Stores() application.Stores {
	return u.storesFor(u.db.Pool)
}

// WithTransaction executes fn within a database transaction. fn receives
// store instances that use the transaction.
func (u *UnitOfWork) WithTransaction(
	ctx context.Context,
	fn func(ctx context.Context, s application.Stores) error,
) error {
	tx, err := u.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, u.storesFor(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (u *UnitOfWork) storesFor(q persistence.Executor) application.Stores {
	return application.Stores{
		Wallets:      NewWalletRepository(q, u.currency),
		Transactions: NewTransactionRepository(q),
		Orders:       NewOrderRepository(q),
		Tickets:      NewTicketRepository(q),
	}
}
