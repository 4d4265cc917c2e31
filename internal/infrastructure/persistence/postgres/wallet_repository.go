package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/soukmarket/settlement/internal/domain"
	"github.com/soukmarket/settlement/internal/infrastructure/persistence"
)

// WalletRepository owns all balance mutation. Debits are single conditional
// updates so the non-negative invariant holds under concurrent requests, and
// every mutation appends one wallet_entries row in the same session.
type WalletRepository struct {
	q        persistence.Executor
	currency string
}

func NewWalletRepository(q persistence.Executor, currency string) *WalletRepository {
	return &WalletRepository{q: q, currency: currency}
}

func (r *WalletRepository) Get(ctx context.Context, owner domain.WalletOwner) (*domain.Wallet, error) {
	query := `
		SELECT id, owner_id, owner_type, balance, currency, created_at, updated_at
		FROM wallets
		WHERE owner_id = $1 AND owner_type = $2
	`

	var m walletModel
	err := r.q.QueryRow(ctx, query, owner.ID, owner.Type).Scan(
		&m.ID, &m.OwnerID, &m.OwnerType, &m.Balance, &m.Currency, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewWalletNotFoundError(owner)
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}
	return walletToDomain(m), nil
}

// Credit increases the owner's balance, creating the wallet on first use.
func (r *WalletRepository) Credit(ctx context.Context, owner domain.WalletOwner, amount int64, meta domain.EntryMeta) error {
	if err := r.creditBalance(ctx, owner, amount); err != nil {
		return err
	}
	return r.appendEntry(ctx, owner, domain.EntryCredit, amount, meta)
}

// Debit decreases the owner's balance. The update is conditional on the
// balance covering the amount; zero rows means either no wallet or
// insufficient funds, and the follow-up read decides which.
func (r *WalletRepository) Debit(ctx context.Context, owner domain.WalletOwner, amount int64, meta domain.EntryMeta) error {
	if err := r.debitBalance(ctx, owner, amount); err != nil {
		return err
	}
	return r.appendEntry(ctx, owner, domain.EntryDebit, amount, meta)
}

// Transfer moves amount between owners as one unit. Callers run it inside a
// transaction so a failed credit rolls the debit back too.
func (r *WalletRepository) Transfer(ctx context.Context, from, to domain.WalletOwner, amount int64, meta domain.EntryMeta) error {
	if err := r.Debit(ctx, from, amount, meta); err != nil {
		return err
	}
	return r.Credit(ctx, to, amount, meta)
}

// Block earmarks amount for a dispute: the escrow balance drops and the BLOCK
// entry records which order/ticket the hold belongs to.
func (r *WalletRepository) Block(ctx context.Context, owner domain.WalletOwner, amount int64, meta domain.EntryMeta) error {
	if err := r.debitBalance(ctx, owner, amount); err != nil {
		return err
	}
	return r.appendEntry(ctx, owner, domain.EntryBlock, amount, meta)
}

// Release moves a previously blocked amount to its destination. The matching
// BLOCK already moved the escrow balance, so only the target is credited; the
// entry tags the movement REFUND or TRANSFER for the audit trail.
func (r *WalletRepository) Release(ctx context.Context, from, to domain.WalletOwner, amount int64, meta domain.EntryMeta, refund bool) error {
	if err := r.creditBalance(ctx, to, amount); err != nil {
		return err
	}
	kind := domain.EntryReleaseTransfer
	if refund {
		kind = domain.EntryReleaseRefund
	}
	return r.appendEntry(ctx, to, kind, amount, meta)
}

// BlockedAmountForTicket sums the hold attributable to a ticket: blocks in,
// releases out.
func (r *WalletRepository) BlockedAmountForTicket(ctx context.Context, ticketID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN kind = 'BLOCK' THEN amount ELSE -amount END), 0)
		FROM wallet_entries
		WHERE ticket_id = $1
		  AND kind IN ('BLOCK', 'RELEASE_REFUND', 'RELEASE_TRANSFER')
	`

	var blocked int64
	if err := r.q.QueryRow(ctx, query, ticketID).Scan(&blocked); err != nil {
		return 0, fmt.Errorf("failed to sum blocked amount: %w", err)
	}
	return blocked, nil
}

func (r *WalletRepository) creditBalance(ctx context.Context, owner domain.WalletOwner, amount int64) error {
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}

	query := `
		INSERT INTO wallets (owner_id, owner_type, balance, currency)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, owner_type)
		DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = now()
	`

	if _, err := r.q.Exec(ctx, query, owner.ID, owner.Type, amount, r.currency); err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	return nil
}

func (r *WalletRepository) debitBalance(ctx context.Context, owner domain.WalletOwner, amount int64) error {
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}

	query := `
		UPDATE wallets
		SET balance = balance - $3, updated_at = now()
		WHERE owner_id = $1 AND owner_type = $2 AND balance >= $3
	`

	tag, err := r.q.Exec(ctx, query, owner.ID, owner.Type, amount)
	if err != nil {
		return fmt.Errorf("failed to debit wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, owner); err != nil {
			return err
		}
		return domain.NewInsufficientFundsError(owner, amount)
	}
	return nil
}

func (r *WalletRepository) appendEntry(ctx context.Context, owner domain.WalletOwner, kind domain.EntryKind, amount int64, meta domain.EntryMeta) error {
	entry, err := domain.NewLedgerEntry(uuid.New().String(), owner, kind, amount, meta)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO wallet_entries (id, owner_id, owner_type, kind, amount, correlation_id, order_id, ticket_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.q.Exec(ctx, query,
		entry.ID,
		entry.Owner.ID,
		entry.Owner.Type,
		entry.Kind,
		entry.Amount,
		entry.CorrelationID,
		entry.OrderID,
		entry.TicketID,
		entry.Reason,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}
