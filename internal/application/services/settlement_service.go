package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/soukmarket/settlement/internal/application"
	"github.com/soukmarket/settlement/internal/config"
	"github.com/soukmarket/settlement/internal/domain"
)

// SettlementService runs the automatic order sweep: delivered orders whose
// confirmation deadline has passed without a dispute get completed and their
// escrowed funds paid out to the seller.
type SettlementService struct {
	uow         application.UnitOfWork
	escrow      domain.WalletOwner
	settleAfter time.Duration
	batchSize   int
	logger      *slog.Logger
}

func NewSettlementService(uow application.UnitOfWork, ledgerCfg config.LedgerConfig, workerCfg config.WorkerConfig, logger *slog.Logger) (*SettlementService, error) {
	if ledgerCfg.EscrowOwnerID == "" {
		return nil, domain.NewMissingRequiredFieldError("escrow owner id")
	}
	return &SettlementService{
		uow:         uow,
		escrow:      domain.WalletOwner{ID: ledgerCfg.EscrowOwnerID, Type: domain.OwnerIntermediary},
		settleAfter: workerCfg.SettleAfter,
		batchSize:   workerCfg.BatchSize,
		logger:      logger,
	}, nil
}

// SettleDeliveredOrders sweeps one batch of settleable orders. Each order
// settles in its own transaction so one failure never poisons the rest of the
// batch; failures are logged and retried on the next sweep.
func (s *SettlementService) SettleDeliveredOrders(ctx context.Context, now time.Time) (int, error) {
	orders, err := s.uow.Stores().Orders.FindSettleable(ctx, now.Add(-s.settleAfter), s.batchSize)
	if err != nil {
		return 0, application.NewInternalError(err)
	}

	settled := 0
	for _, order := range orders {
		done, err := s.settleOrder(ctx, order.ID, now)
		if err != nil {
			s.logger.Error("order settlement failed", "order_id", order.ID, "error", err)
			continue
		}
		if done {
			settled++
		}
	}
	return settled, nil
}

// settleOrder completes a single order and pays the seller from escrow. The
// order is re-read inside the transaction so a dispute opened after the batch
// query ran makes the settlement back off.
func (s *SettlementService) settleOrder(ctx context.Context, orderID string, now time.Time) (bool, error) {
	settled := false
	err := s.uow.WithTransaction(ctx, func(ctx context.Context, st application.Stores) error {
		order, err := st.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderDelivered || order.TicketID != nil || order.ConfirmedAt != nil {
			return nil
		}

		if err := order.Complete(now); err != nil {
			return err
		}
		if err := st.Orders.Update(ctx, order); err != nil {
			return err
		}

		seller := domain.WalletOwner{ID: order.CompanyID, Type: domain.OwnerCompany}
		meta := domain.EntryMeta{
			CorrelationID: order.ID,
			OrderID:       &order.ID,
			Reason:        "auto settlement",
		}
		if err := st.Wallets.Transfer(ctx, s.escrow, seller, order.TotalPrice, meta); err != nil {
			return err
		}
		settled = true
		return nil
	})
	return settled, err
}
