package services

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soukmarket/settlement/internal/application"
	"github.com/soukmarket/settlement/internal/domain"
)

// MockState is the shared in-memory backing for the store mocks. Holding all
// four stores' data in one struct lets MockUnitOfWork snapshot and restore
// everything at once to simulate a rolled-back database transaction.
type MockState struct {
	mu           sync.RWMutex
	wallets      map[string]*domain.Wallet
	entries      []*domain.LedgerEntry
	transactions map[string]*domain.Transaction
	orders       map[string]*domain.Order
	tickets      map[string]*domain.Ticket

	CreditFn                 func(ctx context.Context, owner domain.WalletOwner, amount int64, meta domain.EntryMeta) error
	DebitFn                  func(ctx context.Context, owner domain.WalletOwner, amount int64, meta domain.EntryMeta) error
	CreateTransactionFn      func(ctx context.Context, txn *domain.Transaction) error
	AttachGatewayIDFn        func(ctx context.Context, correlationID, trackID string) error
	TransitionIfStatusFn     func(ctx context.Context, trackID string, expected domain.TransactionStatus, patch application.TransactionPatch) (*domain.Transaction, error)
	FindOrderByIDFn          func(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrderFn            func(ctx context.Context, order *domain.Order) error
	MarkAsPaidFn             func(ctx context.Context, orderID string) error
	FindSettleableFn         func(ctx context.Context, deliveredBefore time.Time, limit int) ([]*domain.Order, error)
	CreateTicketFn           func(ctx context.Context, ticket *domain.Ticket) error
	UpdateTicketFn           func(ctx context.Context, ticket *domain.Ticket) error
	FindStaleFn              func(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.Ticket, error)
}

func NewMockState() *MockState {
	return &MockState{
		wallets:      make(map[string]*domain.Wallet),
		transactions: make(map[string]*domain.Transaction),
		orders:       make(map[string]*domain.Order),
		tickets:      make(map[string]*domain.Ticket),
	}
}

func ownerKey(owner domain.WalletOwner) string {
	return string(owner.Type) + "/" + owner.ID
}

// Seed helpers for tests.

func (m *MockState) PutWallet(w *domain.Wallet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[ownerKey(w.Owner)] = cloneWallet(w)
}

func (m *MockState) PutOrder(o *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = cloneOrder(o)
}

func (m *MockState) PutTransaction(t *domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[t.ID] = cloneTransaction(t)
}

func (m *MockState) PutTicket(t *domain.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = cloneTicket(t)
}

func (m *MockState) Entries() []*domain.LedgerEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// WalletLedger

func (m *MockState) Get(ctx context.Context, owner domain.WalletOwner) (*domain.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.wallets[ownerKey(owner)]; ok {
		return cloneWallet(w), nil
	}
	return nil, domain.NewWalletNotFoundError(owner)
}

func (m *MockState) Credit(ctx context.Context, owner domain.WalletOwner, amount int64, meta domain.EntryMeta) error {
	if m.CreditFn != nil {
		return m.CreditFn(ctx, owner, amount, meta)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}
	w, ok := m.wallets[ownerKey(owner)]
	if !ok {
		w = &domain.Wallet{ID: uuid.New().String(), Owner: owner, CreatedAt: time.Now()}
		m.wallets[ownerKey(owner)] = w
	}
	w.Balance += amount
	w.UpdatedAt = time.Now()
	return m.appendEntry(owner, domain.EntryCredit, amount, meta)
}

func (m *MockState) Debit(ctx context.Context, owner domain.WalletOwner, amount int64, meta domain.EntryMeta) error {
	if m.DebitFn != nil {
		return m.DebitFn(ctx, owner, amount, meta)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debit(owner, amount, domain.EntryDebit, meta)
}

func (m *MockState) Transfer(ctx context.Context, from, to domain.WalletOwner, amount int64, meta domain.EntryMeta) error {
	if err := m.Debit(ctx, from, amount, meta); err != nil {
		return err
	}
	return m.Credit(ctx, to, amount, meta)
}

func (m *MockState) Block(ctx context.Context, owner domain.WalletOwner, amount int64, meta domain.EntryMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debit(owner, amount, domain.EntryBlock, meta)
}

func (m *MockState) Release(ctx context.Context, from, to domain.WalletOwner, amount int64, meta domain.EntryMeta, refund bool) error {
	kind := domain.EntryReleaseTransfer
	if refund {
		kind = domain.EntryReleaseRefund
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}
	w, ok := m.wallets[ownerKey(to)]
	if !ok {
		w = &domain.Wallet{ID: uuid.New().String(), Owner: to, CreatedAt: time.Now()}
		m.wallets[ownerKey(to)] = w
	}
	w.Balance += amount
	w.UpdatedAt = time.Now()
	return m.appendEntry(to, kind, amount, meta)
}

func (m *MockState) BlockedAmountForTicket(ctx context.Context, ticketID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var blocked int64
	for _, e := range m.entries {
		if e.TicketID == nil || *e.TicketID != ticketID {
			continue
		}
		switch e.Kind {
		case domain.EntryBlock:
			blocked += e.Amount
		case domain.EntryReleaseRefund, domain.EntryReleaseTransfer:
			blocked -= e.Amount
		}
	}
	return blocked, nil
}

func (m *MockState) debit(owner domain.WalletOwner, amount int64, kind domain.EntryKind, meta domain.EntryMeta) error {
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}
	w, ok := m.wallets[ownerKey(owner)]
	if !ok {
		return domain.NewWalletNotFoundError(owner)
	}
	if w.Balance < amount {
		return domain.NewInsufficientFundsError(owner, amount)
	}
	w.Balance -= amount
	w.UpdatedAt = time.Now()
	return m.appendEntry(owner, kind, amount, meta)
}

func (m *MockState) appendEntry(owner domain.WalletOwner, kind domain.EntryKind, amount int64, meta domain.EntryMeta) error {
	entry, err := domain.NewLedgerEntry(uuid.New().String(), owner, kind, amount, meta)
	if err != nil {
		return err
	}
	m.entries = append(m.entries, entry)
	return nil
}

// TransactionStore

func (m *MockState) Create(ctx context.Context, txn *domain.Transaction) error {
	if m.CreateTransactionFn != nil {
		return m.CreateTransactionFn(ctx, txn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[txn.ID] = cloneTransaction(txn)
	return nil
}

func (m *MockState) AttachGatewayID(ctx context.Context, correlationID, trackID string) error {
	if m.AttachGatewayIDFn != nil {
		return m.AttachGatewayIDFn(ctx, correlationID, trackID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.transactions[correlationID]
	if !ok {
		return domain.NewTransactionNotFoundError(correlationID)
	}
	return txn.AttachGatewayID(trackID)
}

func (m *MockState) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if txn, ok := m.transactions[id]; ok {
		return cloneTransaction(txn), nil
	}
	return nil, domain.NewTransactionNotFoundError(id)
}

func (m *MockState) FindByGatewayID(ctx context.Context, trackID string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, txn := range m.transactions {
		if txn.GatewayTrackID != nil && *txn.GatewayTrackID == trackID {
			return cloneTransaction(txn), nil
		}
	}
	return nil, domain.NewTransactionNotFoundError(trackID)
}

func (m *MockState) TransitionIfStatus(ctx context.Context, trackID string, expected domain.TransactionStatus, patch application.TransactionPatch) (*domain.Transaction, error) {
	if m.TransitionIfStatusFn != nil {
		return m.TransitionIfStatusFn(ctx, trackID, expected, patch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, txn := range m.transactions {
		if txn.GatewayTrackID == nil || *txn.GatewayTrackID != trackID {
			continue
		}
		if txn.Status != expected {
			return nil, nil
		}
		txn.Status = patch.Status
		if patch.RefNumber != nil {
			txn.RefNumber = patch.RefNumber
		}
		if patch.VerifiedAt != nil {
			txn.VerifiedAt = patch.VerifiedAt
		}
		if patch.RefundedAt != nil {
			txn.RefundedAt = patch.RefundedAt
		}
		return cloneTransaction(txn), nil
	}
	return nil, domain.NewTransactionNotFoundError(trackID)
}

// OrderStore

func (m *MockState) FindOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	if m.FindOrderByIDFn != nil {
		return m.FindOrderByIDFn(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.orders[id]; ok {
		return cloneOrder(o), nil
	}
	return nil, domain.NewOrderNotFoundError(id)
}

func (m *MockState) UpdateOrder(ctx context.Context, order *domain.Order) error {
	if m.UpdateOrderFn != nil {
		return m.UpdateOrderFn(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; !ok {
		return domain.NewOrderNotFoundError(order.ID)
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *MockState) MarkAsPaid(ctx context.Context, orderID string) error {
	if m.MarkAsPaidFn != nil {
		return m.MarkAsPaidFn(ctx, orderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return domain.NewOrderNotFoundError(orderID)
	}
	return o.MarkPaid()
}

func (m *MockState) FindSettleable(ctx context.Context, deliveredBefore time.Time, limit int) ([]*domain.Order, error) {
	if m.FindSettleableFn != nil {
		return m.FindSettleableFn(ctx, deliveredBefore, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.Status != domain.OrderDelivered || o.ConfirmedAt != nil || o.TicketID != nil {
			continue
		}
		if o.DeliveredAt == nil || o.DeliveredAt.After(deliveredBefore) {
			continue
		}
		out = append(out, cloneOrder(o))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// TicketStore

func (m *MockState) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	if m.CreateTicketFn != nil {
		return m.CreateTicketFn(ctx, ticket)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (m *MockState) FindTicketByID(ctx context.Context, id string) (*domain.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tickets[id]; ok {
		return cloneTicket(t), nil
	}
	return nil, domain.NewTicketNotFoundError(id)
}

func (m *MockState) UpdateTicket(ctx context.Context, ticket *domain.Ticket) error {
	if m.UpdateTicketFn != nil {
		return m.UpdateTicketFn(ctx, ticket)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[ticket.ID]; !ok {
		return domain.NewTicketNotFoundError(ticket.ID)
	}
	m.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (m *MockState) FindStale(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.Ticket, error) {
	if m.FindStaleFn != nil {
		return m.FindStaleFn(ctx, updatedBefore, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Ticket
	for _, t := range m.tickets {
		switch t.Status {
		case domain.TicketOpen, domain.TicketInProgress:
		default:
			continue
		}
		if t.UpdatedAt.After(updatedBefore) {
			continue
		}
		out = append(out, cloneTicket(t))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// The interface method names on the application ports collide across stores
// (FindByID, Create, Update), so thin wrappers adapt the shared state to each
// port.

type mockOrderStore struct{ s *MockState }

func (m mockOrderStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return m.s.FindOrderByID(ctx, id)
}

func (m mockOrderStore) Update(ctx context.Context, order *domain.Order) error {
	return m.s.UpdateOrder(ctx, order)
}

func (m mockOrderStore) MarkAsPaid(ctx context.Context, orderID string) error {
	return m.s.MarkAsPaid(ctx, orderID)
}

func (m mockOrderStore) FindSettleable(ctx context.Context, deliveredBefore time.Time, limit int) ([]*domain.Order, error) {
	return m.s.FindSettleable(ctx, deliveredBefore, limit)
}

type mockTicketStore struct{ s *MockState }

func (m mockTicketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	return m.s.CreateTicket(ctx, ticket)
}

func (m mockTicketStore) FindByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return m.s.FindTicketByID(ctx, id)
}

func (m mockTicketStore) Update(ctx context.Context, ticket *domain.Ticket) error {
	return m.s.UpdateTicket(ctx, ticket)
}

func (m mockTicketStore) FindStale(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.Ticket, error) {
	return m.s.FindStale(ctx, updatedBefore, limit)
}

func (m *MockState) stores() application.Stores {
	return application.Stores{
		Wallets:      m,
		Transactions: m,
		Orders:       mockOrderStore{s: m},
		Tickets:      mockTicketStore{s: m},
	}
}

// MockUnitOfWork simulates transactional semantics by snapshotting the whole
// state before fn and restoring it when fn fails.
type MockUnitOfWork struct {
	State *MockState

	WithTransactionFn func(ctx context.Context, fn func(ctx context.Context, s application.Stores) error) error
}

func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{State: NewMockState()}
}

func (u *MockUnitOfWork) Stores() application.Stores {
	return u.State.stores()
}

func (u *MockUnitOfWork) WithTransaction(ctx context.Context, fn func(ctx context.Context, s application.Stores) error) error {
	if u.WithTransactionFn != nil {
		return u.WithTransactionFn(ctx, fn)
	}
	snap := u.State.snapshot()
	if err := fn(ctx, u.State.stores()); err != nil {
		u.State.restore(snap)
		return err
	}
	return nil
}

type stateSnapshot struct {
	wallets      map[string]*domain.Wallet
	entries      []*domain.LedgerEntry
	transactions map[string]*domain.Transaction
	orders       map[string]*domain.Order
	tickets      map[string]*domain.Ticket
}

func (m *MockState) snapshot() stateSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := stateSnapshot{
		wallets:      make(map[string]*domain.Wallet, len(m.wallets)),
		entries:      make([]*domain.LedgerEntry, len(m.entries)),
		transactions: make(map[string]*domain.Transaction, len(m.transactions)),
		orders:       make(map[string]*domain.Order, len(m.orders)),
		tickets:      make(map[string]*domain.Ticket, len(m.tickets)),
	}
	for k, w := range m.wallets {
		snap.wallets[k] = cloneWallet(w)
	}
	copy(snap.entries, m.entries)
	for k, t := range m.transactions {
		snap.transactions[k] = cloneTransaction(t)
	}
	for k, o := range m.orders {
		snap.orders[k] = cloneOrder(o)
	}
	for k, t := range m.tickets {
		snap.tickets[k] = cloneTicket(t)
	}
	return snap
}

func (m *MockState) restore(snap stateSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets = snap.wallets
	m.entries = snap.entries
	m.transactions = snap.transactions
	m.orders = snap.orders
	m.tickets = snap.tickets
}

func cloneWallet(w *domain.Wallet) *domain.Wallet {
	c := *w
	return &c
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	c.Metadata = maps.Clone(t.Metadata)
	return &c
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	return &c
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	c := *t
	return &c
}

// MockGatewayClient returns canned happy-path responses, keeps per-method
// call counters, and takes Fn overrides.
type MockGatewayClient struct {
	mu    sync.Mutex
	calls map[string]int

	CreatePaymentFn func(ctx context.Context, req application.CreatePaymentRequest) (*application.CreatePaymentResponse, error)
	VerifyPaymentFn func(ctx context.Context, trackID string) (*application.VerifyPaymentResponse, error)
	RefundFn        func(ctx context.Context, req application.RefundRequest) (*application.RefundResponse, error)
}

func (m *MockGatewayClient) inc(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

func (m *MockGatewayClient) GetCalls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockGatewayClient) CreatePayment(ctx context.Context, req application.CreatePaymentRequest) (*application.CreatePaymentResponse, error) {
	m.inc("CreatePayment")
	if m.CreatePaymentFn != nil {
		return m.CreatePaymentFn(ctx, req)
	}
	return &application.CreatePaymentResponse{
		Result:     application.GatewayResultOK,
		TrackID:    "track-123",
		PaymentURL: "https://gateway.example/pay/track-123",
	}, nil
}

func (m *MockGatewayClient) VerifyPayment(ctx context.Context, trackID string) (*application.VerifyPaymentResponse, error) {
	m.inc("VerifyPayment")
	if m.VerifyPaymentFn != nil {
		return m.VerifyPaymentFn(ctx, trackID)
	}
	return &application.VerifyPaymentResponse{
		Result:    application.GatewayResultOK,
		RefNumber: "ref-123",
		Status:    "verified",
	}, nil
}

func (m *MockGatewayClient) Refund(ctx context.Context, req application.RefundRequest) (*application.RefundResponse, error) {
	m.inc("Refund")
	if m.RefundFn != nil {
		return m.RefundFn(ctx, req)
	}
	return &application.RefundResponse{Result: application.GatewayResultOK, Message: "refunded"}, nil
}
