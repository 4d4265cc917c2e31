package postgres

import (
	"github.com/soukmarket/settlement/internal/domain"
)

func walletToDomain(m walletModel) *domain.Wallet {
	return &domain.Wallet{
		ID: m.ID,
		Owner: domain.WalletOwner{
			ID:   m.OwnerID,
			Type: domain.OwnerType(m.OwnerType),
		},
		Balance:   m.Balance,
		Currency:  m.Currency,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func transactionToDomain(m transactionModel) *domain.Transaction {
	meta := m.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	return &domain.Transaction{
		ID:             m.ID,
		GatewayTrackID: m.GatewayTrackID,
		UserID:         m.UserID,
		OrderID:        m.OrderID,
		Amount:         m.Amount,
		Currency:       m.Currency,
		Method:         domain.PaymentMethod(m.Method),
		Status:         domain.TransactionStatus(m.Status),
		RefNumber:      m.RefNumber,
		Description:    m.Description,
		Metadata:       meta,
		CreatedAt:      m.CreatedAt,
		VerifiedAt:     m.VerifiedAt,
		RefundedAt:     m.RefundedAt,
	}
}

func orderToDomain(m orderModel) *domain.Order {
	return &domain.Order{
		ID:             m.ID,
		UserID:         m.UserID,
		CompanyID:      m.CompanyID,
		TotalPrice:     m.TotalPrice,
		Currency:       m.Currency,
		Status:         domain.OrderStatus(m.Status),
		PaymentMethod:  m.PaymentMethod,
		ShippingMethod: m.ShippingMethod,
		TicketID:       m.TicketID,
		CreatedAt:      m.CreatedAt,
		DeliveredAt:    m.DeliveredAt,
		ConfirmedAt:    m.ConfirmedAt,
	}
}

func ticketToDomain(m ticketModel) *domain.Ticket {
	return &domain.Ticket{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Status:      domain.TicketStatus(m.Status),
		Priority:    domain.TicketPriority(m.Priority),
		CreatorID:   m.CreatorID,
		AssigneeID:  m.AssigneeID,
		OrderID:     m.OrderID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
