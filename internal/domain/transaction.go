package domain

import (
	"slices"
	"time"
)

// TransactionStatus represents the current state of a gateway transaction in its lifecycle
type TransactionStatus string

const (
	TxnPending           TransactionStatus = "PENDING"
	TxnCompleted         TransactionStatus = "COMPLETED"
	TxnFailed            TransactionStatus = "FAILED"
	TxnRefunded          TransactionStatus = "REFUNDED"
	TxnPartiallyRefunded TransactionStatus = "PARTIALLY_REFUNDED"
)

// PaymentMethod records how a transaction was funded.
type PaymentMethod string

const (
	MethodGateway PaymentMethod = "gateway"
	MethodWallet  PaymentMethod = "wallet"
)

// Transaction is the local record of a payment. Its ID is the correlation id,
// generated before the gateway ever sees the payment; GatewayTrackID is
// assigned by the gateway after initiation and is the key callbacks are
// correlated by.
type Transaction struct {
	ID             string
	GatewayTrackID *string
	UserID         string
	OrderID        *string
	Amount         int64
	Currency       string
	Method         PaymentMethod
	Status         TransactionStatus
	RefNumber      *string
	Description    string
	Metadata       map[string]string

	CreatedAt  time.Time
	VerifiedAt *time.Time
	RefundedAt *time.Time
}

// NewGatewayTransaction builds the PENDING record created at payment
// initiation, before the gateway call.
func NewGatewayTransaction(id, userID, orderID string, amount int64, currency, description string) (*Transaction, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("transaction id")
	}
	if userID == "" {
		return nil, NewMissingRequiredFieldError("user id")
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}

	var order *string
	if orderID != "" {
		order = &orderID
	}
	return &Transaction{
		ID:          id,
		UserID:      userID,
		OrderID:     order,
		Amount:      amount,
		Currency:    currency,
		Method:      MethodGateway,
		Status:      TxnPending,
		Description: description,
		Metadata:    map[string]string{},
		CreatedAt:   time.Now(),
	}, nil
}

// NewWalletTransaction records an internal wallet payment. There is no
// gateway round trip to wait for, so the record is COMPLETED from the start.
func NewWalletTransaction(id, userID, orderID string, amount int64, currency string) (*Transaction, error) {
	txn, err := NewGatewayTransaction(id, userID, orderID, amount, currency, "wallet payment")
	if err != nil {
		return nil, err
	}
	now := time.Now()
	txn.Method = MethodWallet
	txn.Status = TxnCompleted
	txn.VerifiedAt = &now
	return txn, nil
}

// AttachGatewayID records the tracking id the gateway assigned. One-time
// write; it must land before any callback can be correlated back.
func (t *Transaction) AttachGatewayID(trackID string) error {
	if trackID == "" {
		return NewMissingRequiredFieldError("gateway track id")
	}
	t.GatewayTrackID = &trackID
	return nil
}

// Complete transitions PENDING -> COMPLETED and records the verification
// reference.
func (t *Transaction) Complete(refNumber string, verifiedAt time.Time) error {
	if err := t.transition(TxnCompleted); err != nil {
		return err
	}
	t.RefNumber = &refNumber
	t.VerifiedAt = &verifiedAt
	return nil
}

func (t *Transaction) Fail() error {
	return t.transition(TxnFailed)
}

// Refund transitions COMPLETED -> REFUNDED and stamps the refund time.
func (t *Transaction) Refund(refundedAt time.Time) error {
	if err := t.transition(TxnRefunded); err != nil {
		return err
	}
	t.RefundedAt = &refundedAt
	return nil
}

func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case TxnFailed, TxnRefunded:
		return true
	default:
		return false
	}
}

func (t *Transaction) transition(target TransactionStatus) error {
	if err := t.canTransitionTo(target); err != nil {
		return err
	}
	t.Status = target
	return nil
}

// Status transitions are monotonic: PENDING is the only state COMPLETED or
// FAILED can be reached from, and a COMPLETED transaction only moves towards
// refunds.
func (t *Transaction) canTransitionTo(target TransactionStatus) error {
	switch t.Status {
	case TxnPending:
		return t.allow(target, TxnCompleted, TxnFailed)
	case TxnCompleted:
		return t.allow(target, TxnRefunded, TxnPartiallyRefunded)
	case TxnPartiallyRefunded:
		return t.allow(target, TxnRefunded)
	}
	return NewInvalidTransitionError("transaction", string(t.Status), string(target))
}

func (t *Transaction) allow(target TransactionStatus, allowed ...TransactionStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError("transaction", string(t.Status), string(target))
}
