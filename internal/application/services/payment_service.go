package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/soukmarket/settlement/internal/application"
	"github.com/soukmarket/settlement/internal/config"
	"github.com/soukmarket/settlement/internal/domain"
)

// PaymentService coordinates gateway-initiated and wallet payments. Gateway
// payments credit the escrow wallet only; the buyer's money lives at the
// gateway, so debiting their internal wallet as well would double-charge.
type PaymentService struct {
	uow         application.UnitOfWork
	gateway     application.GatewayClient
	escrow      domain.WalletOwner
	callbackURL string
	currency    string
	logger      *slog.Logger
}

func NewPaymentService(
	uow application.UnitOfWork,
	gateway application.GatewayClient,
	gatewayCfg config.GatewayConfig,
	ledgerCfg config.LedgerConfig,
	logger *slog.Logger,
) (*PaymentService, error) {
	// Fail closed at construction: initiating payments without a callback URL
	// would orphan every transaction the gateway answers.
	if gatewayCfg.CallbackURL == "" {
		return nil, domain.NewMissingRequiredFieldError("gateway callback url")
	}
	if ledgerCfg.EscrowOwnerID == "" {
		return nil, domain.NewMissingRequiredFieldError("escrow owner id")
	}

	return &PaymentService{
		uow:         uow,
		gateway:     gateway,
		escrow:      domain.WalletOwner{ID: ledgerCfg.EscrowOwnerID, Type: domain.OwnerIntermediary},
		callbackURL: gatewayCfg.CallbackURL,
		currency:    ledgerCfg.Currency,
		logger:      logger,
	}, nil
}

// InitiateResult is returned to the caller so they can redirect the buyer to
// the gateway.
type InitiateResult struct {
	CorrelationID string
	TrackID       string
	PaymentURL    string
}

// InitiatePayment creates a PENDING transaction, opens a payment session at
// the gateway, and records the gateway tracking id before returning. No
// database transaction is held across the gateway call; the id-attach is a
// separate write that lands immediately after the gateway responds, so a fast
// callback can always be correlated.
func (s *PaymentService) InitiatePayment(ctx context.Context, userID, orderID string, amount int64) (*InitiateResult, error) {
	stores := s.uow.Stores()

	order, err := stores.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, application.NewNotFoundError(err)
	}
	if order.Status != domain.OrderPending {
		return nil, application.NewValidationError(domain.NewInvalidTransitionError("order", string(order.Status), string(domain.OrderPaid)))
	}
	if order.UserID != userID {
		return nil, application.NewValidationError(domain.NewNotOrderOwnerError(orderID, userID))
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, application.NewValidationError(err)
	}

	txn, err := domain.NewGatewayTransaction(uuid.New().String(), userID, orderID, amount, s.currency, "order payment")
	if err != nil {
		return nil, application.NewValidationError(err)
	}
	if err := stores.Transactions.Create(ctx, txn); err != nil {
		return nil, application.NewInternalError(err)
	}

	resp, err := s.gateway.CreatePayment(ctx, application.CreatePaymentRequest{
		Amount:      amount,
		CallbackURL: s.callbackURL,
		Description: txn.Description,
		UserID:      userID,
		OrderID:     orderID,
	})
	if err != nil {
		s.logger.Error("gateway payment creation failed", "correlation_id", txn.ID, "error", err)
		return nil, application.NewGatewayError(err)
	}
	if resp.Result != application.GatewayResultOK {
		s.logger.Error("gateway rejected payment creation", "correlation_id", txn.ID, "result", resp.Result)
		return nil, application.NewGatewayError(nil)
	}

	if err := stores.Transactions.AttachGatewayID(ctx, txn.ID, resp.TrackID); err != nil {
		s.logger.Error("failed to attach gateway track id", "correlation_id", txn.ID, "track_id", resp.TrackID, "error", err)
		return nil, application.NewInternalError(err)
	}

	return &InitiateResult{
		CorrelationID: txn.ID,
		TrackID:       resp.TrackID,
		PaymentURL:    resp.PaymentURL,
	}, nil
}

// HandleCallback processes a gateway callback. Repeat deliveries are
// expected: a transaction that is already COMPLETED short-circuits to the
// existing record, and losing the PENDING -> COMPLETED race against a
// concurrent delivery is also treated as success. The funding work
// (conditional completion, escrow credit, order paid) runs in one database
// transaction so no interleaving can leave the transaction status and the
// wallet balance inconsistent.
func (s *PaymentService) HandleCallback(ctx context.Context, trackID string, success bool) (*domain.Transaction, error) {
	stores := s.uow.Stores()

	txn, err := stores.Transactions.FindByGatewayID(ctx, trackID)
	if err != nil {
		return nil, application.NewNotFoundError(err)
	}
	if txn.Status == domain.TxnCompleted {
		return txn, nil
	}

	if !success {
		s.failPayment(ctx, txn)
		return nil, application.NewPaymentFailedError(nil)
	}

	// Verification is an external HTTP call; it happens before the settlement
	// transaction opens so no database transaction spans it.
	verify, err := s.gateway.VerifyPayment(ctx, trackID)
	if err != nil {
		s.logger.Error("gateway verification failed", "track_id", trackID, "error", err)
		s.failPayment(ctx, txn)
		return nil, application.NewVerificationFailedError(err)
	}
	if verify.Result != application.GatewayResultOK {
		s.logger.Warn("gateway verification rejected", "track_id", trackID, "result", verify.Result)
		s.failPayment(ctx, txn)
		return nil, application.NewVerificationFailedError(nil)
	}

	var result *domain.Transaction
	err = s.uow.WithTransaction(ctx, func(ctx context.Context, st application.Stores) error {
		now := time.Now()
		refNumber := verify.RefNumber
		updated, err := st.Transactions.TransitionIfStatus(ctx, trackID, domain.TxnPending, application.TransactionPatch{
			Status:     domain.TxnCompleted,
			RefNumber:  &refNumber,
			VerifiedAt: &now,
		})
		if err != nil {
			return err
		}
		if updated == nil {
			// A concurrent delivery won the race and already funded the
			// wallets; return its record unchanged.
			existing, err := st.Transactions.FindByGatewayID(ctx, trackID)
			if err != nil {
				return err
			}
			result = existing
			return nil
		}

		meta := domain.EntryMeta{
			CorrelationID: updated.ID,
			OrderID:       updated.OrderID,
			Reason:        "gateway payment",
		}
		if err := st.Wallets.Credit(ctx, s.escrow, updated.Amount, meta); err != nil {
			return err
		}
		if updated.OrderID != nil {
			if err := st.Orders.MarkAsPaid(ctx, *updated.OrderID); err != nil {
				return err
			}
		}

		result = updated
		return nil
	})
	if err != nil {
		s.logger.Error("callback settlement failed", "track_id", trackID, "error", err)
		return nil, application.NewInternalError(err)
	}

	return result, nil
}

// PayWithWallet settles an order from the buyer's internal wallet. The debit,
// the escrow credit, and the order update share one transaction, so an
// underflowing debit leaves nothing behind.
func (s *PaymentService) PayWithWallet(ctx context.Context, userID, orderID string, amount int64) (*domain.Transaction, error) {
	stores := s.uow.Stores()

	order, err := stores.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, application.NewNotFoundError(err)
	}
	if order.Status != domain.OrderPending {
		return nil, application.NewInvalidStateError(domain.NewInvalidTransitionError("order", string(order.Status), string(domain.OrderPaid)))
	}
	if order.UserID != userID {
		return nil, application.NewValidationError(domain.NewNotOrderOwnerError(orderID, userID))
	}
	if amount != order.TotalPrice {
		return nil, application.NewValidationError(domain.NewInvalidAmountError(amount))
	}

	var txn *domain.Transaction
	err = s.uow.WithTransaction(ctx, func(ctx context.Context, st application.Stores) error {
		// The check above ran against the pool; a concurrent payment may
		// have settled the order since. The conditional MarkAsPaid below is
		// the authoritative guard, this read just fails the retry early.
		current, txErr := st.Orders.FindByID(ctx, orderID)
		if txErr != nil {
			return txErr
		}
		if current.Status != domain.OrderPending {
			return domain.NewInvalidTransitionError("order", string(current.Status), string(domain.OrderPaid))
		}

		txn, txErr = domain.NewWalletTransaction(uuid.New().String(), userID, orderID, amount, s.currency)
		if txErr != nil {
			return txErr
		}
		if err := st.Transactions.Create(ctx, txn); err != nil {
			return err
		}

		buyer := domain.WalletOwner{ID: userID, Type: domain.OwnerUser}
		meta := domain.EntryMeta{
			CorrelationID: txn.ID,
			OrderID:       &orderID,
			Reason:        "wallet payment",
		}
		if err := st.Wallets.Transfer(ctx, buyer, s.escrow, amount, meta); err != nil {
			return err
		}
		return st.Orders.MarkAsPaid(ctx, orderID)
	})
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeInsufficientFunds) {
			return nil, application.NewInsufficientFundsError(err)
		}
		if domain.IsErrorCode(err, domain.ErrCodeWalletNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		if domain.IsErrorCode(err, domain.ErrCodeInvalidTransition) {
			return nil, application.NewInvalidStateError(err)
		}
		s.logger.Error("wallet payment failed", "order_id", orderID, "error", err)
		return nil, application.NewWalletPaymentFailedError(err)
	}

	return txn, nil
}

// RefundTransaction refunds a completed gateway transaction at the gateway,
// then moves the local record to REFUNDED and debits escrow in one
// transaction.
func (s *PaymentService) RefundTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	stores := s.uow.Stores()

	txn, err := stores.Transactions.FindByID(ctx, transactionID)
	if err != nil {
		return nil, application.NewNotFoundError(err)
	}
	if txn.Status != domain.TxnCompleted {
		return nil, application.NewInvalidStateError(domain.NewInvalidTransitionError("transaction", string(txn.Status), string(domain.TxnRefunded)))
	}
	if txn.GatewayTrackID == nil {
		return nil, application.NewInvalidStateError(domain.NewMissingRequiredFieldError("gateway track id"))
	}
	trackID := *txn.GatewayTrackID

	resp, err := s.gateway.Refund(ctx, application.RefundRequest{TrackID: trackID, Amount: txn.Amount})
	if err != nil {
		s.logger.Error("gateway refund failed", "transaction_id", transactionID, "error", err)
		return nil, application.NewGatewayError(err)
	}
	if resp.Result != application.GatewayResultOK {
		s.logger.Error("gateway rejected refund", "transaction_id", transactionID, "result", resp.Result)
		return nil, application.NewGatewayError(nil)
	}

	var result *domain.Transaction
	err = s.uow.WithTransaction(ctx, func(ctx context.Context, st application.Stores) error {
		now := time.Now()
		updated, err := st.Transactions.TransitionIfStatus(ctx, trackID, domain.TxnCompleted, application.TransactionPatch{
			Status:     domain.TxnRefunded,
			RefundedAt: &now,
		})
		if err != nil {
			return err
		}
		if updated == nil {
			existing, err := st.Transactions.FindByGatewayID(ctx, trackID)
			if err != nil {
				return err
			}
			result = existing
			return nil
		}

		meta := domain.EntryMeta{
			CorrelationID: updated.ID,
			OrderID:       updated.OrderID,
			Reason:        "gateway refund",
		}
		if err := st.Wallets.Debit(ctx, s.escrow, updated.Amount, meta); err != nil {
			return err
		}

		result = updated
		return nil
	})
	if err != nil {
		s.logger.Error("refund settlement failed", "transaction_id", transactionID, "error", err)
		return nil, application.NewInternalError(err)
	}

	return result, nil
}

// failPayment records the failure outcome: the linked order moves to FAILED
// and the transaction leaves PENDING through the conditional update. These
// writes commit on their own so they survive the aborted success path.
func (s *PaymentService) failPayment(ctx context.Context, txn *domain.Transaction) {
	err := s.uow.WithTransaction(ctx, func(ctx context.Context, st application.Stores) error {
		if txn.OrderID != nil {
			order, err := st.Orders.FindByID(ctx, *txn.OrderID)
			if err != nil {
				return err
			}
			if order.Status == domain.OrderPending {
				if err := order.MarkFailed(); err != nil {
					return err
				}
				if err := st.Orders.Update(ctx, order); err != nil {
					return err
				}
			}
		}

		if txn.GatewayTrackID != nil {
			// Losing this race means another caller settled the transaction;
			// the order write above still stands on its own merits.
			_, err := st.Transactions.TransitionIfStatus(ctx, *txn.GatewayTrackID, domain.TxnPending, application.TransactionPatch{
				Status: domain.TxnFailed,
			})
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to record payment failure", "correlation_id", txn.ID, "error", err)
	}
}
