package application

import (
	"context"
	"time"

	"github.com/soukmarket/settlement/internal/domain"
)

// GatewayResultOK is the gateway's success code for create/verify/refund
// responses. Anything else is treated as failure; the core does not interpret
// gateway error taxonomies further.
const GatewayResultOK = 100

type CreatePaymentRequest struct {
	Amount      int64  `json:"amount"`
	CallbackURL string `json:"callbackUrl"`
	Description string `json:"description"`
	UserID      string `json:"userId"`
	OrderID     string `json:"orderId"`
}

type CreatePaymentResponse struct {
	Result     int    `json:"result"`
	TrackID    string `json:"trackId"`
	PaymentURL string `json:"paymentUrl"`
}

type VerifyPaymentResponse struct {
	Result    int    `json:"result"`
	RefNumber string `json:"refNumber"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

type RefundRequest struct {
	TrackID string `json:"trackId"`
	Amount  int64  `json:"amount"`
}

type RefundResponse struct {
	Result  int    `json:"result"`
	Message string `json:"message"`
}

// GatewayClient is the port for the external payment gateway.
type GatewayClient interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error)
	VerifyPayment(ctx context.Context, trackID string) (*VerifyPaymentResponse, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error)
}

// WalletLedger is the port for balance mutation. Every method runs against
// the session its store is bound to, so callers compose ledger calls with
// order and transaction updates in one atomic unit. No balance mutation
// happens outside these primitives.
type WalletLedger interface {
	Get(ctx context.Context, owner domain.WalletOwner) (*domain.Wallet, error)
	Credit(ctx context.Context, owner domain.WalletOwner, amount int64, meta domain.EntryMeta) error
	Debit(ctx context.Context, owner domain.WalletOwner, amount int64, meta domain.EntryMeta) error
	Transfer(ctx context.Context, from, to domain.WalletOwner, amount int64, meta domain.EntryMeta) error
	Block(ctx context.Context, owner domain.WalletOwner, amount int64, meta domain.EntryMeta) error
	Release(ctx context.Context, from, to domain.WalletOwner, amount int64, meta domain.EntryMeta, refund bool) error
	BlockedAmountForTicket(ctx context.Context, ticketID string) (int64, error)
}

// TransactionPatch is the write applied by TransitionIfStatus.
type TransactionPatch struct {
	Status     domain.TransactionStatus
	RefNumber  *string
	VerifiedAt *time.Time
	RefundedAt *time.Time
}

// TransactionStore is the port for the gateway transaction log.
type TransactionStore interface {
	Create(ctx context.Context, txn *domain.Transaction) error
	AttachGatewayID(ctx context.Context, correlationID, trackID string) error
	FindByID(ctx context.Context, id string) (*domain.Transaction, error)
	FindByGatewayID(ctx context.Context, trackID string) (*domain.Transaction, error)

	// TransitionIfStatus performs a single conditional update: the patch is
	// written only if the row's status still equals expected. A (nil, nil)
	// return means another caller already transitioned the row; the caller
	// must treat that as idempotent success, not an error.
	TransitionIfStatus(ctx context.Context, trackID string, expected domain.TransactionStatus, patch TransactionPatch) (*domain.Transaction, error)
}

// OrderStore is the port to the order collaborator. Order creation and
// catalog concerns live outside this core.
type OrderStore interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	Update(ctx context.Context, order *domain.Order) error
	MarkAsPaid(ctx context.Context, orderID string) error
	FindSettleable(ctx context.Context, deliveredBefore time.Time, limit int) ([]*domain.Order, error)
}

// TicketStore is the port for support tickets.
type TicketStore interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	FindByID(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) error
	FindStale(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.Ticket, error)
}

// Stores bundles the four stores bound to one session.
type Stores struct {
	Wallets      WalletLedger
	Transactions TransactionStore
	Orders       OrderStore
	Tickets      TicketStore
}

// UnitOfWork supplies the ambient transactional session. WithTransaction runs
// fn with stores bound to a single database transaction: commit when fn
// returns nil, roll back everything otherwise. Stores returns session-less
// stores for plain reads and single-statement writes.
type UnitOfWork interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
	Stores() Stores
}
