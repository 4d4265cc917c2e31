package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/soukmarket/settlement/internal/config"
	"github.com/soukmarket/settlement/internal/domain"
)

const escrowID = "escrow-1"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		BaseURL:     "https://gateway.example",
		MerchantKey: "test-key",
		CallbackURL: "https://shop.example/api/v1/payments/callback",
		ConnTimeout: 5 * time.Second,
	}
}

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{EscrowOwnerID: escrowID, Currency: "USD"}
}

func testWorkerConfig() config.WorkerConfig {
	return config.WorkerConfig{
		SettleInterval:   time.Minute,
		EscalateInterval: time.Minute,
		BatchSize:        100,
		SettleAfter:      3 * 24 * time.Hour,
		StaleTicketAfter: 4 * time.Hour,
	}
}

func escrowOwner() domain.WalletOwner {
	return domain.WalletOwner{ID: escrowID, Type: domain.OwnerIntermediary}
}

func newPaymentService(t *testing.T, uow *MockUnitOfWork, gw *MockGatewayClient) *PaymentService {
	t.Helper()
	svc, err := NewPaymentService(uow, gw, testGatewayConfig(), testLedgerConfig(), testLogger())
	if err != nil {
		t.Fatalf("failed to build payment service: %v", err)
	}
	return svc
}

func newTicketService(t *testing.T, uow *MockUnitOfWork) *TicketService {
	t.Helper()
	svc, err := NewTicketService(uow, testLedgerConfig(), testWorkerConfig(), testLogger())
	if err != nil {
		t.Fatalf("failed to build ticket service: %v", err)
	}
	return svc
}

func newSettlementService(t *testing.T, uow *MockUnitOfWork) *SettlementService {
	t.Helper()
	svc, err := NewSettlementService(uow, testLedgerConfig(), testWorkerConfig(), testLogger())
	if err != nil {
		t.Fatalf("failed to build settlement service: %v", err)
	}
	return svc
}

func pendingOrder(id, userID, companyID string, price int64) *domain.Order {
	return &domain.Order{
		ID:         id,
		UserID:     userID,
		CompanyID:  companyID,
		TotalPrice: price,
		Currency:   "USD",
		Status:     domain.OrderPending,
		CreatedAt:  time.Now(),
	}
}

func deliveredOrder(id, userID, companyID string, price int64, deliveredAt time.Time) *domain.Order {
	o := pendingOrder(id, userID, companyID, price)
	o.Status = domain.OrderDelivered
	o.DeliveredAt = &deliveredAt
	return o
}

func walletFor(owner domain.WalletOwner, balance int64) *domain.Wallet {
	now := time.Now()
	return &domain.Wallet{
		ID:        "wallet-" + owner.ID,
		Owner:     owner,
		Balance:   balance,
		Currency:  "USD",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func mustBalance(t *testing.T, state *MockState, owner domain.WalletOwner) int64 {
	t.Helper()
	w, err := state.Get(context.Background(), owner)
	if err != nil {
		t.Fatalf("expected wallet for %s/%s: %v", owner.Type, owner.ID, err)
	}
	return w.Balance
}
