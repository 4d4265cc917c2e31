package domain

import (
	"slices"
	"time"
)

// OrderStatus represents where an order is in its settlement lifecycle.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderShipped   OrderStatus = "SHIPPED"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderRefunded  OrderStatus = "REFUNDED"
	OrderFailed    OrderStatus = "FAILED"
)

// TicketWindow is how long after delivery a buyer may still open a dispute
// ticket against the order.
const TicketWindow = 3 * 24 * time.Hour

// Order is the settlement view of a marketplace order. Catalog and checkout
// details live elsewhere; this core only needs the parties, the price, and
// the status machine. A non-nil TicketID means an urgent ticket currently
// holds this order's funds in escrow.
type Order struct {
	ID             string
	UserID         string
	CompanyID      string
	TotalPrice     int64
	Currency       string
	Status         OrderStatus
	PaymentMethod  string
	ShippingMethod string
	TicketID       *string

	CreatedAt   time.Time
	DeliveredAt *time.Time
	ConfirmedAt *time.Time
}

func (o *Order) MarkPaid() error {
	return o.transition(OrderPaid)
}

func (o *Order) MarkFailed() error {
	return o.transition(OrderFailed)
}

// Complete finalizes the order and stamps the confirmation time. Used by both
// the cron sweep and the no-refund ticket resolution path.
func (o *Order) Complete(confirmedAt time.Time) error {
	if err := o.transition(OrderCompleted); err != nil {
		return err
	}
	o.ConfirmedAt = &confirmedAt
	return nil
}

func (o *Order) MarkRefunded() error {
	return o.transition(OrderRefunded)
}

// CanOpenTicket enforces the dispute rules: the order must be DELIVERED and
// the request must land within TicketWindow of delivery.
func (o *Order) CanOpenTicket(now time.Time) error {
	if o.Status != OrderDelivered {
		return NewOrderNotDeliveredError(o.ID, o.Status)
	}
	if o.TicketID != nil {
		return NewTicketAlreadyOpenError(o.ID)
	}
	if o.DeliveredAt == nil || now.After(o.DeliveredAt.Add(TicketWindow)) {
		return NewTicketWindowClosedError(o.ID)
	}
	return nil
}

// AttachTicket links an urgent ticket to the order. The caller blocks the
// order's funds in the same transaction.
func (o *Order) AttachTicket(ticketID string) error {
	if o.TicketID != nil {
		return NewTicketAlreadyOpenError(o.ID)
	}
	o.TicketID = &ticketID
	return nil
}

// ClearTicket detaches the ticket once its blocked funds have been released
// or refunded.
func (o *Order) ClearTicket() {
	o.TicketID = nil
}

func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderCompleted, OrderRefunded, OrderFailed:
		return true
	default:
		return false
	}
}

func (o *Order) transition(target OrderStatus) error {
	if err := o.canTransitionTo(target); err != nil {
		return err
	}
	o.Status = target
	return nil
}

func (o *Order) canTransitionTo(target OrderStatus) error {
	switch o.Status {
	case OrderPending:
		return o.allow(target, OrderPaid, OrderFailed)
	case OrderPaid:
		return o.allow(target, OrderShipped, OrderFailed)
	case OrderShipped:
		return o.allow(target, OrderDelivered)
	case OrderDelivered:
		return o.allow(target, OrderCompleted, OrderRefunded)
	}
	return NewInvalidTransitionError("order", string(o.Status), string(target))
}

func (o *Order) allow(target OrderStatus, allowed ...OrderStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError("order", string(o.Status), string(target))
}
