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

// TicketService handles support tickets and the ticket-driven settlement
// path. Urgent order-linked tickets block the order's funds in escrow at
// creation; resolution releases them to the buyer (refund) or the seller
// (payout).
type TicketService struct {
	uow        application.UnitOfWork
	escrow     domain.WalletOwner
	staleAfter time.Duration
	logger     *slog.Logger
}

func NewTicketService(uow application.UnitOfWork, ledgerCfg config.LedgerConfig, workerCfg config.WorkerConfig, logger *slog.Logger) (*TicketService, error) {
	if ledgerCfg.EscrowOwnerID == "" {
		return nil, domain.NewMissingRequiredFieldError("escrow owner id")
	}
	staleAfter := workerCfg.StaleTicketAfter
	if staleAfter <= 0 {
		staleAfter = domain.StaleTicketAge
	}
	return &TicketService{
		uow:        uow,
		escrow:     domain.WalletOwner{ID: ledgerCfg.EscrowOwnerID, Type: domain.OwnerIntermediary},
		staleAfter: staleAfter,
		logger:     logger,
	}, nil
}

type CreateTicketInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	OrderID     *string
}

// CreateOrderTicket opens a support ticket. For order-linked tickets the
// creator must own the order, the order must be DELIVERED, still inside the
// dispute window, and not already disputed. An urgent order-linked ticket
// additionally blocks the order's funds, with the ticket row, the block, and
// the order link written in one transaction.
func (s *TicketService) CreateOrderTicket(ctx context.Context, creatorID string, in CreateTicketInput) (*domain.Ticket, error) {
	stores := s.uow.Stores()

	ticket, err := domain.NewTicket(uuid.New().String(), in.Title, in.Description, creatorID, in.Priority, in.OrderID)
	if err != nil {
		return nil, application.NewValidationError(err)
	}

	if in.OrderID == nil {
		if err := stores.Tickets.Create(ctx, ticket); err != nil {
			return nil, application.NewInternalError(err)
		}
		return ticket, nil
	}

	order, err := stores.Orders.FindByID(ctx, *in.OrderID)
	if err != nil {
		return nil, application.NewNotFoundError(err)
	}
	if order.UserID != creatorID {
		return nil, application.NewValidationError(domain.NewNotOrderOwnerError(order.ID, creatorID))
	}
	if err := order.CanOpenTicket(time.Now()); err != nil {
		return nil, application.NewInvalidStateError(err)
	}

	if !ticket.BlocksFunds() {
		if err := stores.Tickets.Create(ctx, ticket); err != nil {
			return nil, application.NewInternalError(err)
		}
		return ticket, nil
	}

	err = s.uow.WithTransaction(ctx, func(ctx context.Context, st application.Stores) error {
		if err := st.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		meta := domain.EntryMeta{
			CorrelationID: ticket.ID,
			OrderID:       &order.ID,
			TicketID:      &ticket.ID,
			Reason:        "urgent dispute hold",
		}
		if err := st.Wallets.Block(ctx, s.escrow, order.TotalPrice, meta); err != nil {
			return err
		}
		if err := order.AttachTicket(ticket.ID); err != nil {
			return err
		}
		return st.Orders.Update(ctx, order)
	})
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeInsufficientFunds) {
			// Escrow should always cover a paid order; an underflow here means
			// the ledger is already inconsistent and deserves loud failure.
			s.logger.Error("escrow underflow while blocking dispute funds", "order_id", order.ID, "error", err)
		}
		s.logger.Error("urgent ticket creation failed", "order_id", order.ID, "error", err)
		return nil, application.NewInternalError(err)
	}

	return ticket, nil
}

// ResolveTicket settles a ticket. When the ticket holds order funds, the
// resolution verdict decides where they go: refund=true sends them back to
// the buyer and refunds the order, refund=false pays the seller and completes
// the order. Ticket, ledger, and order all move in one transaction.
func (s *TicketService) ResolveTicket(ctx context.Context, ticketID string, refund bool) (*domain.Ticket, error) {
	stores := s.uow.Stores()

	ticket, err := stores.Tickets.FindByID(ctx, ticketID)
	if err != nil {
		return nil, application.NewNotFoundError(err)
	}
	if !ticket.IsSettleable() {
		return nil, application.NewInvalidStateError(domain.NewInvalidTransitionError("ticket", string(ticket.Status), string(domain.TicketResolved)))
	}

	if !ticket.BlocksFunds() {
		if err := ticket.Resolve(); err != nil {
			return nil, application.NewInvalidStateError(err)
		}
		if err := stores.Tickets.Update(ctx, ticket); err != nil {
			return nil, application.NewInternalError(err)
		}
		return ticket, nil
	}

	err = s.uow.WithTransaction(ctx, func(ctx context.Context, st application.Stores) error {
		order, err := st.Orders.FindByID(ctx, *ticket.OrderID)
		if err != nil {
			return err
		}
		if order.TicketID == nil || *order.TicketID != ticket.ID {
			return domain.NewTicketNotFoundError(ticket.ID)
		}

		if err := ticket.Resolve(); err != nil {
			return err
		}
		if err := st.Tickets.Update(ctx, ticket); err != nil {
			return err
		}

		meta := domain.EntryMeta{
			CorrelationID: ticket.ID,
			OrderID:       &order.ID,
			TicketID:      &ticket.ID,
		}
		if refund {
			meta.Reason = "dispute refund"
			buyer := domain.WalletOwner{ID: order.UserID, Type: domain.OwnerUser}
			if err := st.Wallets.Release(ctx, s.escrow, buyer, order.TotalPrice, meta, true); err != nil {
				return err
			}
			if err := order.MarkRefunded(); err != nil {
				return err
			}
		} else {
			meta.Reason = "dispute payout"
			seller := domain.WalletOwner{ID: order.CompanyID, Type: domain.OwnerCompany}
			if err := st.Wallets.Release(ctx, s.escrow, seller, order.TotalPrice, meta, false); err != nil {
				return err
			}
			if err := order.Complete(time.Now()); err != nil {
				return err
			}
		}

		order.ClearTicket()
		return st.Orders.Update(ctx, order)
	})
	if err != nil {
		s.logger.Error("ticket resolution failed", "ticket_id", ticketID, "refund", refund, "error", err)
		if domain.IsErrorCode(err, domain.ErrCodeInvalidTransition) {
			return nil, application.NewInvalidStateError(err)
		}
		return nil, application.NewInternalError(err)
	}

	return ticket, nil
}

// EscalateStale bumps tickets that have sat without updates past the stale
// cutoff. Each ticket is escalated independently; a single bad row does not
// stop the sweep.
func (s *TicketService) EscalateStale(ctx context.Context, now time.Time, limit int) (int, error) {
	stores := s.uow.Stores()

	stale, err := stores.Tickets.FindStale(ctx, now.Add(-s.staleAfter), limit)
	if err != nil {
		return 0, application.NewInternalError(err)
	}

	escalated := 0
	for _, ticket := range stale {
		if err := ticket.Escalate(); err != nil {
			s.logger.Warn("skipping unescalatable ticket", "ticket_id", ticket.ID, "status", ticket.Status)
			continue
		}
		if err := stores.Tickets.Update(ctx, ticket); err != nil {
			s.logger.Error("failed to escalate ticket", "ticket_id", ticket.ID, "error", err)
			continue
		}
		escalated++
	}
	return escalated, nil
}
