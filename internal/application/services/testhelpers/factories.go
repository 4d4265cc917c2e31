package testhelpers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/soukmarket/settlement/internal/domain"
	"github.com/soukmarket/settlement/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
)

// SeedWallet inserts a wallet with the given balance.
func SeedWallet(t *testing.T, ctx context.Context, db *persistence.DB, owner domain.WalletOwner, balance int64) {
	t.Helper()
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO wallets (owner_id, owner_type, balance, currency)
		VALUES ($1, $2, $3, 'USD')`,
		owner.ID, string(owner.Type), balance)
	require.NoError(t, err)
}

// SeedOrder inserts an order row directly; order creation itself lives
// outside the settlement core.
func SeedOrder(t *testing.T, ctx context.Context, db *persistence.DB, order *domain.Order) {
	t.Helper()
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO orders (id, user_id, company_id, total_price, currency, status,
			payment_method, shipping_method, ticket_id, created_at, delivered_at, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		order.ID, order.UserID, order.CompanyID, order.TotalPrice, order.Currency,
		string(order.Status), order.PaymentMethod, order.ShippingMethod, order.TicketID,
		order.CreatedAt, order.DeliveredAt, order.ConfirmedAt)
	require.NoError(t, err)
}

// PendingOrder returns an unpaid order ready for seeding.
func PendingOrder(userID, companyID string, price int64) *domain.Order {
	return &domain.Order{
		ID:         "order-" + uuid.New().String(),
		UserID:     userID,
		CompanyID:  companyID,
		TotalPrice: price,
		Currency:   "USD",
		Status:     domain.OrderPending,
		CreatedAt:  time.Now(),
	}
}

// DeliveredOrder returns an order delivered at the given time.
func DeliveredOrder(userID, companyID string, price int64, deliveredAt time.Time) *domain.Order {
	order := PendingOrder(userID, companyID, price)
	order.Status = domain.OrderDelivered
	order.DeliveredAt = &deliveredAt
	return order
}
