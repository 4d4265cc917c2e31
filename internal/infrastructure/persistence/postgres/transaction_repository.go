package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/soukmarket/settlement/internal/application"
	"github.com/soukmarket/settlement/internal/domain"
	"github.com/soukmarket/settlement/internal/infrastructure/persistence"
)

const transactionColumns = `
	id, gateway_track_id, user_id, order_id, amount, currency, method, status,
	ref_number, description, metadata, created_at, verified_at, refunded_at
`

// TransactionRepository is the gateway transaction log. Its conditional
// TransitionIfStatus update is the idempotency primitive the callback handler
// relies on.
type TransactionRepository struct {
	q persistence.Executor
}

func NewTransactionRepository(q persistence.Executor) *TransactionRepository {
	return &TransactionRepository{q: q}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.q.Exec(ctx, query,
		txn.ID,
		txn.GatewayTrackID,
		txn.UserID,
		txn.OrderID,
		txn.Amount,
		txn.Currency,
		txn.Method,
		txn.Status,
		txn.RefNumber,
		txn.Description,
		txn.Metadata,
		txn.CreatedAt,
		txn.VerifiedAt,
		txn.RefundedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return fmt.Errorf("transaction %s already recorded: %w", txn.ID, err)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// AttachGatewayID records the gateway tracking id once, right after
// initiation. It refuses to overwrite an already attached id.
func (r *TransactionRepository) AttachGatewayID(ctx context.Context, correlationID, trackID string) error {
	query := `
		UPDATE transactions
		SET gateway_track_id = $2
		WHERE id = $1 AND gateway_track_id IS NULL
	`

	tag, err := r.q.Exec(ctx, query, correlationID, trackID)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return fmt.Errorf("gateway track id %s already attached to another transaction: %w", trackID, err)
		}
		return fmt.Errorf("failed to attach gateway id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s missing or gateway id already attached", correlationID)
	}
	return nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id), id)
}

func (r *TransactionRepository) FindByGatewayID(ctx context.Context, trackID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE gateway_track_id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, trackID), trackID)
}

// TransitionIfStatus writes the patch only if the row's status still equals
// expected, in one statement. A (nil, nil) return means a concurrent caller
// won the race; callers treat that as idempotent success.
func (r *TransactionRepository) TransitionIfStatus(
	ctx context.Context,
	trackID string,
	expected domain.TransactionStatus,
	patch application.TransactionPatch,
) (*domain.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = $3,
		    ref_number = COALESCE($4, ref_number),
		    verified_at = COALESCE($5, verified_at),
		    refunded_at = COALESCE($6, refunded_at)
		WHERE gateway_track_id = $1 AND status = $2
		RETURNING ` + transactionColumns

	row := r.q.QueryRow(ctx, query,
		trackID,
		expected,
		patch.Status,
		patch.RefNumber,
		patch.VerifiedAt,
		patch.RefundedAt,
	)

	txn, err := r.scanOne(row, trackID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeTransactionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return txn, nil
}

func (r *TransactionRepository) scanOne(row pgx.Row, ref string) (*domain.Transaction, error) {
	var m transactionModel
	err := row.Scan(
		&m.ID, &m.GatewayTrackID, &m.UserID, &m.OrderID, &m.Amount, &m.Currency, &m.Method, &m.Status,
		&m.RefNumber, &m.Description, &m.Metadata, &m.CreatedAt, &m.VerifiedAt, &m.RefundedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewTransactionNotFoundError(ref)
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return transactionToDomain(m), nil
}
