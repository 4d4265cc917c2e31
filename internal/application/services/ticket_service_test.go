package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soukmarket/settlement/internal/application"
	"github.com/soukmarket/settlement/internal/domain"
)

func urgentTicketInput(orderID string) CreateTicketInput {
	return CreateTicketInput{
		Title:       "item arrived broken",
		Description: "screen cracked out of the box",
		Priority:    domain.PriorityUrgent,
		OrderID:     &orderID,
	}
}

func TestTicketService_CreateOrderTicket_UrgentBlocksFunds(t *testing.T) {
	// Setup
	uow := NewMockUnitOfWork()
	svc := newTicketService(t, uow)
	uow.State.PutWallet(walletFor(escrowOwner(), 5000))
	uow.State.PutOrder(deliveredOrder("order-1", "user-1", "company-1", 3000, time.Now().Add(-24*time.Hour)))

	// Action
	ticket, err := svc.CreateOrderTicket(context.Background(), "user-1", urgentTicketInput("order-1"))

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := mustBalance(t, uow.State, escrowOwner()); got != 2000 {
		t.Errorf("expected escrow balance 2000 after block, got %d", got)
	}
	order, _ := uow.State.FindOrderByID(context.Background(), "order-1")
	if order.TicketID == nil || *order.TicketID != ticket.ID {
		t.Error("expected ticket linked to order")
	}
	blocked, _ := uow.State.BlockedAmountForTicket(context.Background(), ticket.ID)
	if blocked != 3000 {
		t.Errorf("expected 3000 blocked for ticket, got %d", blocked)
	}
}

func TestTicketService_CreateOrderTicket_NonUrgentDoesNotTouchLedger(t *testing.T) {
	// Setup
	uow := NewMockUnitOfWork()
	svc := newTicketService(t, uow)
	uow.State.PutWallet(walletFor(escrowOwner(), 5000))
	uow.State.PutOrder(deliveredOrder("order-1", "user-1", "company-1", 3000, time.Now().Add(-24*time.Hour)))
	in := urgentTicketInput("order-1")
	in.Priority = domain.PriorityMedium

	// Action
	_, err := svc.CreateOrderTicket(context.Background(), "user-1", in)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := mustBalance(t, uow.State, escrowOwner()); got != 5000 {
		t.Errorf("expected escrow untouched, got %d", got)
	}
	order, _ := uow.State.FindOrderByID(context.Background(), "order-1")
	if order.TicketID != nil {
		t.Error("non-urgent tickets must not be linked to the order")
	}
}

func TestTicketService_CreateOrderTicket_WindowClosed(t *testing.T) {
	// Setup
	uow := NewMockUnitOfWork()
	svc := newTicketService(t, uow)
	uow.State.PutOrder(deliveredOrder("order-1", "user-1", "company-1", 3000, time.Now().Add(-4*24*time.Hour)))

	// Action
	_, err := svc.CreateOrderTicket(context.Background(), "user-1", urgentTicketInput("order-1"))

	// Assert
	svcErr, ok := application.IsServiceError(err)
	if !ok || svcErr.Code != application.ErrCodeInvalidState {
		t.Fatalf("expected invalid state error, got %v", err)
	}
	if !domain.IsErrorCode(err, domain.ErrCodeTicketWindowClosed) {
		t.Errorf("expected ticket window closed cause, got %v", err)
	}
}

func TestTicketService_CreateOrderTicket_NotDelivered(t *testing.T) {
	// Setup
	uow := NewMockUnitOfWork()
	svc := newTicketService(t, uow)
	uow.State.PutOrder(pendingOrder("order-1", "user-1", "company-1", 3000))

	// Action
	_, err := svc.CreateOrderTicket(context.Background(), "user-1", urgentTicketInput("order-1"))

	// Assert
	if !domain.IsErrorCode(err, domain.ErrCodeOrderNotDelivered) {
		t.Fatalf("expected order not delivered cause, got %v", err)
	}
}

func TestTicketService_CreateOrderTicket_AlreadyDisputed(t *testing.T) {
	// Setup
	uow := NewMockUnitOfWork()
	svc := newTicketService(t, uow)
	order := deliveredOrder("order-1", "user-1", "company-1", 3000, time.Now().Add(-24*time.Hour))
	existing := "ticket-0"
	order.TicketID = &existing
	uow.State.PutOrder(order)

	// Action
	_, err := svc.CreateOrderTicket(context.Background(), "user-1", urgentTicketInput("order-1"))

	// Assert
	if !domain.IsErrorCode(err, domain.ErrCodeTicketAlreadyOpen) {
		t.Fatalf("expected ticket already open cause, got %v", err)
	}
}

func TestTicketService_CreateOrderTicket_NotOwner(t *testing.T) {
	// Setup
	uow := NewMockUnitOfWork()
	svc := newTicketService(t, uow)
	uow.State.PutOrder(deliveredOrder("order-1", "user-1", "company-1", 3000, time.Now().Add(-24*time.Hour)))

	// Action
	_, err := svc.CreateOrderTicket(context.Background(), "user-2", urgentTicketInput("order-1"))

	// Assert
	svcErr, ok := application.IsServiceError(err)
	if !ok || svcErr.Code != application.ErrCodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTicketService_CreateOrderTicket_BlockFailureRollsBack(t *testing.T) {
	// Setup
	uow := NewMockUnitOfWork()
	svc := newTicketService(t, uow)
	// No escrow wallet seeded, so the block fails.
	uow.State.PutOrder(deliveredOrder("order-1", "user-1", "company-1", 3000, time.Now().Add(-24*time.Hour)))

	// Action
	_, err := svc.CreateOrderTicket(context.Background(), "user-1", urgentTicketInput("order-1"))

	// Assert
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	order, _ := uow.State.FindOrderByID(context.Background(), "order-1")
	if order.TicketID != nil {
		t.Error("order link must roll back with the failed block")
	}
	if len(uow.State.Entries()) != 0 {
		t.Errorf("no ledger entries may survive the rollback, got %d", len(uow.State.Entries()))
	}
}

func seedDisputedOrder(t *testing.T, uow *MockUnitOfWork) *domain.Ticket {
	t.Helper()
	uow.State.PutWallet(walletFor(escrowOwner(), 5000))
	uow.State.PutOrder(deliveredOrder("order-1", "user-1", "company-1", 3000, time.Now().Add(-24*time.Hour)))
	svc := newTicketService(t, uow)
	ticket, err := svc.CreateOrderTicket(context.Background(), "user-1", urgentTicketInput("order-1"))
	if err != nil {
		t.Fatalf("failed to open dispute: %v", err)
	}
	return ticket
}

func TestTicketService_ResolveTicket_RefundPaysBuyer(t *testing.T) {
	// Setup
	uow := NewMockUnitOfWork()
	ticket := seedDisputedOrder(t, uow)
	svc := newTicketService(t, uow)

	// Action
	resolved, err := svc.ResolveTicket(context.Background(), ticket.ID, true)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resolved.Status != domain.TicketResolved {
		t.Errorf("expected ticket Resolved, got %s", resolved.Status)
	}
	buyer := domain.WalletOwner{ID: "user-1", Type: domain.OwnerUser}
	if got := mustBalance(t, uow.State, buyer); got != 3000 {
		t.Errorf("expected buyer refunded 3000, got %d", got)
	}
	order, _ := uow.State.FindOrderByID(context.Background(), "order-1")
	if order.Status != domain.OrderRefunded {
		t.Errorf("expected order REFUNDED, got %s", order.Status)
	}
	if order.TicketID != nil {
		t.Error("expected ticket link cleared")
	}
	blocked, _ := uow.State.BlockedAmountForTicket(context.Background(), ticket.ID)
	if blocked != 0 {
		t.Errorf("expected no funds left blocked for ticket, got %d", blocked)
	}
}

func TestTicketService_ResolveTicket_NoRefundPaysSeller(t *testing.T) {
	// Setup
	uow := NewMockUnitOfWork()
	ticket := seedDisputedOrder(t, uow)
	svc := newTicketService(t, uow)

	// Action
	_, err := svc.ResolveTicket(context.Background(), ticket.ID, false)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	seller := domain.WalletOwner{ID: "company-1", Type: domain.OwnerCompany}
	if got := mustBalance(t, uow.State, seller); got != 3000 {
		t.Errorf("expected seller paid 3000, got %d", got)
	}
	order, _ := uow.State.FindOrderByID(context.Background(), "order-1")
	if order.Status != domain.OrderCompleted {
		t.Errorf("expected order COMPLETED, got %s", order.Status)
	}
	if order.ConfirmedAt == nil {
		t.Error("expected confirmation timestamp set")
	}
}

func TestTicketService_ResolveTicket_AlreadyResolved(t *testing.T) {
	// Setup
	uow := NewMockUnitOfWork()
	ticket := seedDisputedOrder(t, uow)
	svc := newTicketService(t, uow)
	if _, err := svc.ResolveTicket(context.Background(), ticket.ID, false); err != nil {
		t.Fatalf("first resolution failed: %v", err)
	}

	// Action
	_, err := svc.ResolveTicket(context.Background(), ticket.ID, false)

	// Assert
	svcErr, ok := application.IsServiceError(err)
	if !ok || svcErr.Code != application.ErrCodeInvalidState {
		t.Fatalf("expected invalid state error, got %v", err)
	}
	seller := domain.WalletOwner{ID: "company-1", Type: domain.OwnerCompany}
	if got := mustBalance(t, uow.State, seller); got != 3000 {
		t.Errorf("funds must move exactly once, seller balance %d", got)
	}
}

func TestTicketService_ResolveTicket_ReleaseFailureRollsBack(t *testing.T) {
	// Setup
	uow := NewMockUnitOfWork()
	ticket := seedDisputedOrder(t, uow)
	svc := newTicketService(t, uow)
	uow.State.UpdateOrderFn = func(ctx context.Context, order *domain.Order) error {
		return errors.New("write failed")
	}

	// Action
	_, err := svc.ResolveTicket(context.Background(), ticket.ID, true)

	// Assert
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	stored, findErr := uow.State.FindTicketByID(context.Background(), ticket.ID)
	if findErr != nil {
		t.Fatalf("expected ticket still present: %v", findErr)
	}
	if stored.Status != domain.TicketOpen {
		t.Errorf("ticket resolution must roll back, got %s", stored.Status)
	}
	buyer := domain.WalletOwner{ID: "user-1", Type: domain.OwnerUser}
	if _, err := uow.State.Get(context.Background(), buyer); err == nil {
		t.Error("refund credit must roll back with the order write")
	}
}

func TestTicketService_EscalateStale(t *testing.T) {
	// Setup
	uow := NewMockUnitOfWork()
	svc := newTicketService(t, uow)
	now := time.Now()

	stale, _ := domain.NewTicket("ticket-1", "no reply", "", "user-1", domain.PriorityLow, nil)
	stale.UpdatedAt = now.Add(-6 * time.Hour)
	uow.State.PutTicket(stale)

	fresh, _ := domain.NewTicket("ticket-2", "checking in", "", "user-2", domain.PriorityLow, nil)
	fresh.UpdatedAt = now.Add(-time.Hour)
	uow.State.PutTicket(fresh)

	// Action
	escalated, err := svc.EscalateStale(context.Background(), now, 10)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if escalated != 1 {
		t.Fatalf("expected 1 escalation, got %d", escalated)
	}
	got, _ := uow.State.FindTicketByID(context.Background(), "ticket-1")
	if got.Status != domain.TicketEscalated {
		t.Errorf("expected stale ticket Escalated, got %s", got.Status)
	}
	untouched, _ := uow.State.FindTicketByID(context.Background(), "ticket-2")
	if untouched.Status != domain.TicketOpen {
		t.Errorf("fresh ticket must stay Open, got %s", untouched.Status)
	}
}
