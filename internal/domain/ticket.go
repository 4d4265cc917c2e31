package domain

import (
	"slices"
	"time"
)

type TicketStatus string

const (
	TicketOpen       TicketStatus = "Open"
	TicketInProgress TicketStatus = "InProgress"
	TicketResolved   TicketStatus = "Resolved"
	TicketClosed     TicketStatus = "Closed"
	TicketReopened   TicketStatus = "Reopened"
	TicketEscalated  TicketStatus = "Escalated"
)

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// StaleTicketAge is how long a ticket may sit without an update before the
// hourly sweep escalates it.
const StaleTicketAge = 4 * time.Hour

// Ticket is a support ticket, optionally tied to an order. An urgent
// order-linked ticket holds the order's funds in escrow from creation until
// resolution.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	CreatorID   string
	AssigneeID  *string
	OrderID     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewTicket(id, title, description, creatorID string, priority TicketPriority, orderID *string) (*Ticket, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("ticket id")
	}
	if title == "" {
		return nil, NewMissingRequiredFieldError("title")
	}
	if creatorID == "" {
		return nil, NewMissingRequiredFieldError("creator id")
	}
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
	default:
		return nil, NewMissingRequiredFieldError("priority")
	}

	now := time.Now()
	return &Ticket{
		ID:          id,
		Title:       title,
		Description: description,
		Status:      TicketOpen,
		Priority:    priority,
		CreatorID:   creatorID,
		OrderID:     orderID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// BlocksFunds reports whether creating this ticket must block the linked
// order's total price in escrow.
func (t *Ticket) BlocksFunds() bool {
	return t.Priority == PriorityUrgent && t.OrderID != nil
}

func (t *Ticket) Resolve() error {
	return t.transition(TicketResolved)
}

func (t *Ticket) Close() error {
	return t.transition(TicketClosed)
}

func (t *Ticket) Escalate() error {
	return t.transition(TicketEscalated)
}

func (t *Ticket) Reopen() error {
	return t.transition(TicketReopened)
}

func (t *Ticket) Start() error {
	return t.transition(TicketInProgress)
}

// IsSettleable reports whether resolving this ticket should drive a
// settlement (release or refund of blocked funds).
func (t *Ticket) IsSettleable() bool {
	switch t.Status {
	case TicketOpen, TicketInProgress, TicketEscalated, TicketReopened:
		return true
	default:
		return false
	}
}

func (t *Ticket) transition(target TicketStatus) error {
	if err := t.canTransitionTo(target); err != nil {
		return err
	}
	t.Status = target
	t.UpdatedAt = time.Now()
	return nil
}

func (t *Ticket) canTransitionTo(target TicketStatus) error {
	switch t.Status {
	case TicketOpen:
		return t.allow(target, TicketInProgress, TicketEscalated, TicketResolved, TicketClosed)
	case TicketInProgress:
		return t.allow(target, TicketEscalated, TicketResolved, TicketClosed)
	case TicketEscalated:
		return t.allow(target, TicketResolved, TicketClosed)
	case TicketResolved:
		return t.allow(target, TicketReopened, TicketClosed)
	case TicketReopened:
		return t.allow(target, TicketInProgress, TicketEscalated, TicketResolved, TicketClosed)
	}
	return NewInvalidTransitionError("ticket", string(t.Status), string(target))
}

func (t *Ticket) allow(target TicketStatus, allowed ...TicketStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError("ticket", string(t.Status), string(target))
}
