package rest

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soukmarket/settlement/internal/application"
	"github.com/soukmarket/settlement/internal/application/services"
	"github.com/soukmarket/settlement/internal/domain"
)

// Handler adapts HTTP to the settlement services. It holds no logic beyond
// binding, translation, and response shaping.
type Handler struct {
	payments *services.PaymentService
	tickets  *services.TicketService
	stores   application.Stores
	logger   *slog.Logger
}

func NewHandler(
	payments *services.PaymentService,
	tickets *services.TicketService,
	uow application.UnitOfWork,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		payments: payments,
		tickets:  tickets,
		stores:   uow.Stores(),
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/payments", h.initiatePayment)
		v1.POST("/payments/callback", h.paymentCallback)
		v1.POST("/payments/wallet", h.payWithWallet)
		v1.POST("/transactions/:id/refund", h.refundTransaction)
		v1.GET("/transactions/:id", h.getTransaction)
		v1.GET("/wallets/:type/:id", h.getWallet)
		v1.POST("/tickets", h.createTicket)
		v1.POST("/tickets/:id/resolve", h.resolveTicket)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type initiatePaymentRequest struct {
	UserID  string `json:"userId" binding:"required"`
	OrderID string `json:"orderId" binding:"required"`
	Amount  int64  `json:"amount" binding:"required,gt=0"`
}

func (h *Handler) initiatePayment(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, application.NewValidationError(err))
		return
	}

	result, err := h.payments.InitiatePayment(c.Request.Context(), req.UserID, req.OrderID, req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"correlationId": result.CorrelationID,
		"trackId":       result.TrackID,
		"paymentUrl":    result.PaymentURL,
	})
}

type callbackRequest struct {
	TrackID string `json:"trackId" binding:"required"`
	Success *int   `json:"success" binding:"required"`
}

// paymentCallback is the gateway's landing point. Repeat deliveries and lost
// races come back as 200 with the settled record so the gateway stops
// retrying.
func (h *Handler) paymentCallback(c *gin.Context) {
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, application.NewValidationError(err))
		return
	}

	txn, err := h.payments.HandleCallback(c.Request.Context(), req.TrackID, *req.Success == 1)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, transactionResponse(txn))
}

type walletPaymentRequest struct {
	UserID  string `json:"userId" binding:"required"`
	OrderID string `json:"orderId" binding:"required"`
	Amount  int64  `json:"amount" binding:"required,gt=0"`
}

func (h *Handler) payWithWallet(c *gin.Context) {
	var req walletPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, application.NewValidationError(err))
		return
	}

	txn, err := h.payments.PayWithWallet(c.Request.Context(), req.UserID, req.OrderID, req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, transactionResponse(txn))
}

func (h *Handler) refundTransaction(c *gin.Context) {
	txn, err := h.payments.RefundTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, transactionResponse(txn))
}

func (h *Handler) getTransaction(c *gin.Context) {
	txn, err := h.stores.Transactions.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, application.NewNotFoundError(err))
		return
	}

	c.JSON(http.StatusOK, transactionResponse(txn))
}

func (h *Handler) getWallet(c *gin.Context) {
	owner, err := domain.NewWalletOwner(c.Param("id"), domain.OwnerType(strings.ToUpper(c.Param("type"))))
	if err != nil {
		respondError(c, h.logger, application.NewValidationError(err))
		return
	}

	wallet, err := h.stores.Wallets.Get(c.Request.Context(), owner)
	if err != nil {
		respondError(c, h.logger, application.NewNotFoundError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ownerId":   wallet.Owner.ID,
		"ownerType": wallet.Owner.Type,
		"balance":   wallet.Balance,
		"currency":  wallet.Currency,
	})
}

type createTicketRequest struct {
	CreatorID   string  `json:"creatorId" binding:"required"`
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Priority    string  `json:"priority" binding:"required"`
	OrderID     *string `json:"orderId"`
}

func (h *Handler) createTicket(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, application.NewValidationError(err))
		return
	}

	ticket, err := h.tickets.CreateOrderTicket(c.Request.Context(), req.CreatorID, services.CreateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.TicketPriority(req.Priority),
		OrderID:     req.OrderID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, ticketResponse(ticket))
}

type resolveTicketRequest struct {
	Refund *bool `json:"refund" binding:"required"`
}

func (h *Handler) resolveTicket(c *gin.Context) {
	var req resolveTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, application.NewValidationError(err))
		return
	}

	ticket, err := h.tickets.ResolveTicket(c.Request.Context(), c.Param("id"), *req.Refund)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ticketResponse(ticket))
}

func transactionResponse(txn *domain.Transaction) gin.H {
	resp := gin.H{
		"id":        txn.ID,
		"userId":    txn.UserID,
		"amount":    txn.Amount,
		"currency":  txn.Currency,
		"method":    txn.Method,
		"status":    txn.Status,
		"createdAt": txn.CreatedAt.Format(time.RFC3339),
	}
	if txn.GatewayTrackID != nil {
		resp["trackId"] = *txn.GatewayTrackID
	}
	if txn.OrderID != nil {
		resp["orderId"] = *txn.OrderID
	}
	if txn.RefNumber != nil {
		resp["refNumber"] = *txn.RefNumber
	}
	if txn.VerifiedAt != nil {
		resp["verifiedAt"] = txn.VerifiedAt.Format(time.RFC3339)
	}
	if txn.RefundedAt != nil {
		resp["refundedAt"] = txn.RefundedAt.Format(time.RFC3339)
	}
	return resp
}

func ticketResponse(ticket *domain.Ticket) gin.H {
	resp := gin.H{
		"id":        ticket.ID,
		"title":     ticket.Title,
		"status":    ticket.Status,
		"priority":  ticket.Priority,
		"creatorId": ticket.CreatorID,
		"createdAt": ticket.CreatedAt.Format(time.RFC3339),
	}
	if ticket.OrderID != nil {
		resp["orderId"] = *ticket.OrderID
	}
	return resp
}
