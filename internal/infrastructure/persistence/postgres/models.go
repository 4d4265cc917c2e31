package postgres

import "time"

// Row models mirror the table shapes; mappers.go converts to and from the
// domain types.

type walletModel struct {
	ID        string
	OwnerID   string
	OwnerType string
	Balance   int64
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type transactionModel struct {
	ID             string
	GatewayTrackID *string
	UserID         string
	OrderID        *string
	Amount         int64
	Currency       string
	Method         string
	Status         string
	RefNumber      *string
	Description    string
	Metadata       map[string]string
	CreatedAt      time.Time
	VerifiedAt     *time.Time
	RefundedAt     *time.Time
}

type orderModel struct {
	ID             string
	UserID         string
	CompanyID      string
	TotalPrice     int64
	Currency       string
	Status         string
	PaymentMethod  string
	ShippingMethod string
	TicketID       *string
	CreatedAt      time.Time
	DeliveredAt    *time.Time
	ConfirmedAt    *time.Time
}

type ticketModel struct {
	ID          string
	Title       string
	Description string
	Status      string
	Priority    string
	CreatorID   string
	AssigneeID  *string
	OrderID     *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
