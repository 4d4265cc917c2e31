package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Domain validation errors
const (
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeInsufficientFunds    = "INSUFFICIENT_FUNDS"
	ErrCodeWalletNotFound       = "WALLET_NOT_FOUND"
	ErrCodeOrderNotFound        = "ORDER_NOT_FOUND"
	ErrCodeTransactionNotFound  = "TRANSACTION_NOT_FOUND"
	ErrCodeTicketNotFound       = "TICKET_NOT_FOUND"
	ErrCodeNotOrderOwner        = "NOT_ORDER_OWNER"
	ErrCodeOrderNotDelivered    = "ORDER_NOT_DELIVERED"
	ErrCodeTicketWindowClosed   = "TICKET_WINDOW_CLOSED"
	ErrCodeTicketAlreadyOpen    = "TICKET_ALREADY_OPEN"
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
)

func NewInvalidAmountError(amount int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %d", amount),
	}
}

func NewInsufficientFundsError(owner WalletOwner, amount int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInsufficientFunds,
		Message: fmt.Sprintf("wallet %s/%s cannot cover debit of %d", owner.Type, owner.ID, amount),
	}
}

func NewWalletNotFoundError(owner WalletOwner) *DomainError {
	return &DomainError{
		Code:    ErrCodeWalletNotFound,
		Message: fmt.Sprintf("no wallet for owner %s/%s", owner.Type, owner.ID),
	}
}

func NewOrderNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeOrderNotFound,
		Message: fmt.Sprintf("order %s not found", id),
	}
}

func NewTransactionNotFoundError(ref string) *DomainError {
	return &DomainError{
		Code:    ErrCodeTransactionNotFound,
		Message: fmt.Sprintf("transaction %s not found", ref),
	}
}

func NewTicketNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeTicketNotFound,
		Message: fmt.Sprintf("ticket %s not found", id),
	}
}

func NewNotOrderOwnerError(orderID, userID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotOrderOwner,
		Message: fmt.Sprintf("order %s does not belong to user %s", orderID, userID),
	}
}

func NewOrderNotDeliveredError(orderID string, status OrderStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeOrderNotDelivered,
		Message: fmt.Sprintf("order %s is %s, expected DELIVERED", orderID, status),
	}
}

func NewTicketWindowClosedError(orderID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeTicketWindowClosed,
		Message: fmt.Sprintf("dispute window for order %s has closed", orderID),
	}
}

func NewTicketAlreadyOpenError(orderID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeTicketAlreadyOpen,
		Message: fmt.Sprintf("order %s already has an open ticket", orderID),
	}
}

func NewInvalidTransitionError(entity, from, to string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("%s cannot transition from %s to %s", entity, from, to),
	}
}

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
