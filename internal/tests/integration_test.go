package tests

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/soukmarket/settlement/internal/application"
	"github.com/soukmarket/settlement/internal/application/services"
	"github.com/soukmarket/settlement/internal/application/services/testhelpers"
	"github.com/soukmarket/settlement/internal/config"
	"github.com/soukmarket/settlement/internal/domain"
	"github.com/soukmarket/settlement/internal/infrastructure/persistence/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const escrowID = "escrow-main"

type SettlementSuite struct {
	suite.Suite
	testDB  *testhelpers.TestDatabase
	uow     *postgres.UnitOfWork
	gateway *services.MockGatewayClient

	payments    *services.PaymentService
	tickets     *services.TicketService
	settlements *services.SettlementService
}

func TestSettlementSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests")
	}
	suite.Run(t, new(SettlementSuite))
}

func (s *SettlementSuite) SetupSuite() {
	s.testDB = testhelpers.SetupTestDatabase(s.T())
	s.uow = postgres.NewUnitOfWork(s.testDB.DB, "USD")
}

func (s *SettlementSuite) TearDownSuite() {
	s.testDB.Cleanup(s.T())
}

func (s *SettlementSuite) SetupTest() {
	s.testDB.CleanTables(s.T())
	s.gateway = &services.MockGatewayClient{}

	gatewayCfg := config.GatewayConfig{
		BaseURL:     "https://gateway.example",
		MerchantKey: "test-key",
		CallbackURL: "https://shop.example/api/v1/payments/callback",
		ConnTimeout: 5 * time.Second,
	}
	ledgerCfg := config.LedgerConfig{EscrowOwnerID: escrowID, Currency: "USD"}
	workerCfg := config.WorkerConfig{
		SettleInterval:   time.Minute,
		EscalateInterval: time.Minute,
		BatchSize:        100,
		SettleAfter:      3 * 24 * time.Hour,
		StaleTicketAfter: 4 * time.Hour,
	}

	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.payments, err = services.NewPaymentService(s.uow, s.gateway, gatewayCfg, ledgerCfg, testLogger)
	s.Require().NoError(err)
	s.tickets, err = services.NewTicketService(s.uow, ledgerCfg, workerCfg, testLogger)
	s.Require().NoError(err)
	s.settlements, err = services.NewSettlementService(s.uow, ledgerCfg, workerCfg, testLogger)
	s.Require().NoError(err)
}

func (s *SettlementSuite) escrow() domain.WalletOwner {
	return domain.WalletOwner{ID: escrowID, Type: domain.OwnerIntermediary}
}

func (s *SettlementSuite) balance(owner domain.WalletOwner) int64 {
	w, err := s.uow.Stores().Wallets.Get(context.Background(), owner)
	s.Require().NoError(err)
	return w.Balance
}

// Gateway payment end to end.
func (s *SettlementSuite) TestGatewayPayment_HappyPath() {
	t := s.T()
	ctx := context.Background()

	order := testhelpers.PendingOrder("user-1", "company-1", 200000)
	testhelpers.SeedOrder(t, ctx, s.testDB.DB, order)

	result, err := s.payments.InitiatePayment(ctx, "user-1", order.ID, 200000)
	require.NoError(t, err)
	assert.NotEmpty(t, result.TrackID)
	assert.NotEmpty(t, result.PaymentURL)

	txn, err := s.payments.HandleCallback(ctx, result.TrackID, true)
	require.NoError(t, err)

	assert.Equal(t, domain.TxnCompleted, txn.Status)
	assert.Equal(t, int64(200000), s.balance(s.escrow()))

	stored, err := s.uow.Stores().Orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, stored.Status)
}

// Gateway verification rejects the payment.
func (s *SettlementSuite) TestGatewayPayment_VerificationRejected() {
	t := s.T()
	ctx := context.Background()

	order := testhelpers.PendingOrder("user-1", "company-1", 200000)
	testhelpers.SeedOrder(t, ctx, s.testDB.DB, order)

	result, err := s.payments.InitiatePayment(ctx, "user-1", order.ID, 200000)
	require.NoError(t, err)

	s.gateway.VerifyPaymentFn = func(ctx context.Context, trackID string) (*application.VerifyPaymentResponse, error) {
		return &application.VerifyPaymentResponse{Result: 101, Status: "not paid"}, nil
	}

	_, err = s.payments.HandleCallback(ctx, result.TrackID, true)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeVerificationFailed, svcErr.Code)

	txn, err := s.uow.Stores().Transactions.FindByGatewayID(ctx, result.TrackID)
	require.NoError(t, err)
	assert.NotEqual(t, domain.TxnCompleted, txn.Status)

	stored, err := s.uow.Stores().Orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFailed, stored.Status)

	_, err = s.uow.Stores().Wallets.Get(ctx, s.escrow())
	assert.Error(t, err, "escrow must not receive funds")
}

// Repeat callback deliveries fund exactly once.
func (s *SettlementSuite) TestGatewayPayment_CallbackIdempotence() {
	t := s.T()
	ctx := context.Background()

	order := testhelpers.PendingOrder("user-1", "company-1", 50000)
	testhelpers.SeedOrder(t, ctx, s.testDB.DB, order)

	result, err := s.payments.InitiatePayment(ctx, "user-1", order.ID, 50000)
	require.NoError(t, err)

	first, err := s.payments.HandleCallback(ctx, result.TrackID, true)
	require.NoError(t, err)
	second, err := s.payments.HandleCallback(ctx, result.TrackID, true)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(50000), s.balance(s.escrow()))
	assert.Equal(t, 1, s.gateway.GetCalls("VerifyPayment"))
}

// Concurrent callback deliveries: the conditional transition picks exactly
// one winner, the rest settle as idempotent successes.
func (s *SettlementSuite) TestGatewayPayment_ConcurrentCallbacks() {
	t := s.T()
	ctx := context.Background()

	order := testhelpers.PendingOrder("user-1", "company-1", 75000)
	testhelpers.SeedOrder(t, ctx, s.testDB.DB, order)

	result, err := s.payments.InitiatePayment(ctx, "user-1", order.ID, 75000)
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.payments.HandleCallback(ctx, result.TrackID, true)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, int64(75000), s.balance(s.escrow()))
}

// Wallet payment, both branches.
func (s *SettlementSuite) TestWalletPayment() {
	t := s.T()
	ctx := context.Background()
	buyer := domain.WalletOwner{ID: "user-1", Type: domain.OwnerUser}

	testhelpers.SeedWallet(t, ctx, s.testDB.DB, buyer, 150000)
	order := testhelpers.PendingOrder("user-1", "company-1", 100000)
	testhelpers.SeedOrder(t, ctx, s.testDB.DB, order)

	txn, err := s.payments.PayWithWallet(ctx, "user-1", order.ID, 100000)
	require.NoError(t, err)
	assert.Equal(t, domain.TxnCompleted, txn.Status)
	assert.Equal(t, int64(50000), s.balance(buyer))
	assert.Equal(t, int64(100000), s.balance(s.escrow()))

	stored, err := s.uow.Stores().Orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, stored.Status)

	// Second order: the remaining 50000 cannot cover another 100000.
	second := testhelpers.PendingOrder("user-1", "company-1", 100000)
	testhelpers.SeedOrder(t, ctx, s.testDB.DB, second)

	_, err = s.payments.PayWithWallet(ctx, "user-1", second.ID, 100000)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeInsufficientFunds, svcErr.Code)
	assert.Equal(t, int64(50000), s.balance(buyer))

	unchanged, err := s.uow.Stores().Orders.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, unchanged.Status)
}

// Concurrent retries of the same wallet payment settle the order once.
func (s *SettlementSuite) TestWalletPayment_ConcurrentRetriesChargeOnce() {
	t := s.T()
	ctx := context.Background()
	buyer := domain.WalletOwner{ID: "user-1", Type: domain.OwnerUser}

	// The balance covers the order twice over, so only the order status
	// guard can stop the duplicate charge.
	testhelpers.SeedWallet(t, ctx, s.testDB.DB, buyer, 200000)
	order := testhelpers.PendingOrder("user-1", "company-1", 100000)
	testhelpers.SeedOrder(t, ctx, s.testDB.DB, order)

	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.payments.PayWithWallet(ctx, "user-1", order.ID, 100000)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(100000), s.balance(buyer))
	assert.Equal(t, int64(100000), s.balance(s.escrow()))

	stored, err := s.uow.Stores().Orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, stored.Status)
}

// Concurrent debits never drive a balance negative.
func (s *SettlementSuite) TestConcurrentDebits_NeverNegative() {
	t := s.T()
	ctx := context.Background()
	buyer := domain.WalletOwner{ID: "user-1", Type: domain.OwnerUser}

	// 250000 covers exactly two of the five 100000 orders.
	testhelpers.SeedWallet(t, ctx, s.testDB.DB, buyer, 250000)

	const attempts = 5
	orders := make([]*domain.Order, attempts)
	for i := range orders {
		orders[i] = testhelpers.PendingOrder("user-1", "company-1", 100000)
		testhelpers.SeedOrder(t, ctx, s.testDB.DB, orders[i])
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.payments.PayWithWallet(ctx, "user-1", orders[i].ID, 100000)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, int64(50000), s.balance(buyer))
	assert.Equal(t, int64(200000), s.balance(s.escrow()))
}

// The cron sweep settles mature orders.
func (s *SettlementSuite) TestSweep_SettlesMatureOrders() {
	t := s.T()
	ctx := context.Background()
	now := time.Now()

	testhelpers.SeedWallet(t, ctx, s.testDB.DB, s.escrow(), 500000)

	mature := testhelpers.DeliveredOrder("user-1", "company-1", 120000, now.Add(-4*24*time.Hour))
	recent := testhelpers.DeliveredOrder("user-2", "company-1", 80000, now.Add(-24*time.Hour))
	testhelpers.SeedOrder(t, ctx, s.testDB.DB, mature)
	testhelpers.SeedOrder(t, ctx, s.testDB.DB, recent)

	settled, err := s.settlements.SettleDeliveredOrders(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	stored, err := s.uow.Stores().Orders.FindByID(ctx, mature.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, stored.Status)
	assert.NotNil(t, stored.ConfirmedAt)

	seller := domain.WalletOwner{ID: "company-1", Type: domain.OwnerCompany}
	assert.Equal(t, int64(120000), s.balance(seller))
	assert.Equal(t, int64(380000), s.balance(s.escrow()))

	untouched, err := s.uow.Stores().Orders.FindByID(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderDelivered, untouched.Status)
}

// Urgent ticket blocks funds; resolution releases them.
func (s *SettlementSuite) TestUrgentTicket_BlockAndResolve() {
	t := s.T()
	ctx := context.Background()

	s.Run("refund branch", func() {
		s.testDB.CleanTables(t)
		testhelpers.SeedWallet(t, ctx, s.testDB.DB, s.escrow(), 300000)
		order := testhelpers.DeliveredOrder("user-1", "company-1", 120000, time.Now().Add(-24*time.Hour))
		testhelpers.SeedOrder(t, ctx, s.testDB.DB, order)

		orderID := order.ID
		ticket, err := s.tickets.CreateOrderTicket(ctx, "user-1", services.CreateTicketInput{
			Title:    "item arrived broken",
			Priority: domain.PriorityUrgent,
			OrderID:  &orderID,
		})
		require.NoError(t, err)

		blocked, err := s.uow.Stores().Wallets.BlockedAmountForTicket(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(120000), blocked)
		assert.Equal(t, int64(180000), s.balance(s.escrow()))

		_, err = s.tickets.ResolveTicket(ctx, ticket.ID, true)
		require.NoError(t, err)

		buyer := domain.WalletOwner{ID: "user-1", Type: domain.OwnerUser}
		assert.Equal(t, int64(120000), s.balance(buyer))

		blocked, err = s.uow.Stores().Wallets.BlockedAmountForTicket(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Zero(t, blocked)

		stored, err := s.uow.Stores().Orders.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderRefunded, stored.Status)
		assert.Nil(t, stored.TicketID)
	})

	s.Run("payout branch", func() {
		s.testDB.CleanTables(t)
		testhelpers.SeedWallet(t, ctx, s.testDB.DB, s.escrow(), 300000)
		order := testhelpers.DeliveredOrder("user-1", "company-1", 120000, time.Now().Add(-24*time.Hour))
		testhelpers.SeedOrder(t, ctx, s.testDB.DB, order)

		orderID := order.ID
		ticket, err := s.tickets.CreateOrderTicket(ctx, "user-1", services.CreateTicketInput{
			Title:    "never arrived",
			Priority: domain.PriorityUrgent,
			OrderID:  &orderID,
		})
		require.NoError(t, err)

		_, err = s.tickets.ResolveTicket(ctx, ticket.ID, false)
		require.NoError(t, err)

		seller := domain.WalletOwner{ID: "company-1", Type: domain.OwnerCompany}
		assert.Equal(t, int64(120000), s.balance(seller))

		stored, err := s.uow.Stores().Orders.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderCompleted, stored.Status)
		assert.Nil(t, stored.TicketID)
	})
}

// Ownership and window enforcement on ticket creation.
func (s *SettlementSuite) TestTicketGuards() {
	t := s.T()
	ctx := context.Background()

	testhelpers.SeedWallet(t, ctx, s.testDB.DB, s.escrow(), 300000)
	order := testhelpers.DeliveredOrder("user-1", "company-1", 120000, time.Now().Add(-24*time.Hour))
	testhelpers.SeedOrder(t, ctx, s.testDB.DB, order)
	orderID := order.ID

	_, err := s.tickets.CreateOrderTicket(ctx, "intruder", services.CreateTicketInput{
		Title:    "not my order",
		Priority: domain.PriorityUrgent,
		OrderID:  &orderID,
	})
	assert.Error(t, err)

	expired := testhelpers.DeliveredOrder("user-2", "company-1", 50000, time.Now().Add(-5*24*time.Hour))
	testhelpers.SeedOrder(t, ctx, s.testDB.DB, expired)
	expiredID := expired.ID

	_, err = s.tickets.CreateOrderTicket(ctx, "user-2", services.CreateTicketInput{
		Title:    "too late",
		Priority: domain.PriorityUrgent,
		OrderID:  &expiredID,
	})
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeTicketWindowClosed))

	undelivered := testhelpers.PendingOrder("user-3", "company-1", 50000)
	testhelpers.SeedOrder(t, ctx, s.testDB.DB, undelivered)
	undeliveredID := undelivered.ID

	_, err = s.tickets.CreateOrderTicket(ctx, "user-3", services.CreateTicketInput{
		Title:    "too early",
		Priority: domain.PriorityUrgent,
		OrderID:  &undeliveredID,
	})
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeOrderNotDelivered))
}

// The conditional completion rolls back together with the wallet credit.
// A duplicate wallet row cannot force that here, so instead the order row is
// deleted mid-flight to make MarkAsPaid fail inside the settlement
// transaction.
func (s *SettlementSuite) TestCallback_SettlementAtomicity() {
	t := s.T()
	ctx := context.Background()

	order := testhelpers.PendingOrder("user-1", "company-1", 60000)
	testhelpers.SeedOrder(t, ctx, s.testDB.DB, order)

	result, err := s.payments.InitiatePayment(ctx, "user-1", order.ID, 60000)
	require.NoError(t, err)

	_, err = s.testDB.DB.Pool.Exec(ctx, "DELETE FROM orders WHERE id = $1", order.ID)
	require.NoError(t, err)

	_, err = s.payments.HandleCallback(ctx, result.TrackID, true)
	require.Error(t, err)

	txn, err := s.uow.Stores().Transactions.FindByGatewayID(ctx, result.TrackID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxnPending, txn.Status, "conditional completion must roll back")

	_, err = s.uow.Stores().Wallets.Get(ctx, s.escrow())
	assert.Error(t, err, "escrow credit must roll back")
}
