package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/soukmarket/settlement/internal/domain"
	"github.com/soukmarket/settlement/internal/infrastructure/persistence"
)

const orderColumns = `
	id, user_id, company_id, total_price, currency, status, payment_method,
	shipping_method, ticket_id, created_at, delivered_at, confirmed_at
`

// OrderRepository is the settlement-side view of orders. Creation and catalog
// concerns live with the storefront; this store only reads orders and writes
// their settlement state.
type OrderRepository struct {
	q persistence.Executor
}

func NewOrderRepository(q persistence.Executor) *OrderRepository {
	return &OrderRepository{q: q}
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	var m orderModel
	err := r.q.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.UserID, &m.CompanyID, &m.TotalPrice, &m.Currency, &m.Status, &m.PaymentMethod,
		&m.ShippingMethod, &m.TicketID, &m.CreatedAt, &m.DeliveredAt, &m.ConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewOrderNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return orderToDomain(m), nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $2, ticket_id = $3, delivered_at = $4, confirmed_at = $5
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		order.ID,
		order.Status,
		order.TicketID,
		order.DeliveredAt,
		order.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewOrderNotFoundError(order.ID)
	}
	return nil
}

// MarkAsPaid moves an order to PAID only while it is still PENDING, in one
// statement. A retried or concurrent payment sees zero rows and fails
// instead of settling the same order twice.
func (r *OrderRepository) MarkAsPaid(ctx context.Context, orderID string) error {
	query := `UPDATE orders SET status = $2 WHERE id = $1 AND status = $3`

	tag, err := r.q.Exec(ctx, query, orderID, domain.OrderPaid, domain.OrderPending)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		order, findErr := r.FindByID(ctx, orderID)
		if findErr != nil {
			return findErr
		}
		return domain.NewInvalidTransitionError("order", string(order.Status), string(domain.OrderPaid))
	}
	return nil
}

// FindSettleable selects orders the cron sweep may auto-complete: delivered
// before the cutoff, never confirmed, and with no dispute ticket attached.
func (r *OrderRepository) FindSettleable(ctx context.Context, deliveredBefore time.Time, limit int) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'DELIVERED'
		  AND delivered_at <= $1
		  AND confirmed_at IS NULL
		  AND ticket_id IS NULL
		ORDER BY delivered_at ASC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, deliveredBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("query settleable orders: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Order, error) {
		var m orderModel
		err := row.Scan(
			&m.ID, &m.UserID, &m.CompanyID, &m.TotalPrice, &m.Currency, &m.Status, &m.PaymentMethod,
			&m.ShippingMethod, &m.TicketID, &m.CreatedAt, &m.DeliveredAt, &m.ConfirmedAt,
		)
		return orderToDomain(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan settleable orders: %w", err)
	}
	return results, nil
}
