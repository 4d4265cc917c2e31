package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

// ServiceError is the small stable set of caller-facing errors every public
// settlement operation translates into. Internal details stay in Err for
// server-side logs and are never serialized to callers.
type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeValidation          = "VALIDATION"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	ErrCodeGateway             = "GATEWAY_ERROR"
	ErrCodePaymentFailed       = "PAYMENT_FAILED"
	ErrCodeVerificationFailed  = "VERIFICATION_FAILED"
	ErrCodeWalletPaymentFailed = "WALLET_PAYMENT_FAILED"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

func NewValidationError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeValidation,
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewNotFoundError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}

func NewInsufficientFundsError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInsufficientFunds,
		Message:    "Insufficient wallet balance",
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

func NewGatewayError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeGateway,
		Message:    "Payment gateway request failed",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewPaymentFailedError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePaymentFailed,
		Message:    "Payment was not successful",
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

func NewVerificationFailedError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeVerificationFailed,
		Message:    "Payment verification failed",
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

func NewWalletPaymentFailedError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeWalletPaymentFailed,
		Message:    "Wallet payment failed",
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

func NewInvalidStateError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidState,
		Message:    "Invalid state",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "Payment processing failed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
