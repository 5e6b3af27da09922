package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	billingapp "github.com/skyfare/backend/internal/application/billing"
)

// PaymentHandler handles direct payment and stored card endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *billingapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *billingapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// Charge handles POST /orders/:id/payments, charging a card nonce or a
// stored card for the order total
func (h *PaymentHandler) Charge(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	var req billingapp.DirectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	tx, err := h.paymentService.ProcessDirectPayment(c.Request.Context(), orderID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, tx)
}

// ListByOrder handles GET /orders/:id/payments
func (h *PaymentHandler) ListByOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	txs, err := h.paymentService.ListTransactions(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, txs)
}

// ListCards handles GET /clients/:id/cards
func (h *PaymentHandler) ListCards(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid client ID format")
		return
	}

	cards, err := h.paymentService.ListStoredCards(c.Request.Context(), clientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, cards)
}

// SetDefaultCard handles POST /clients/:id/cards/:cardId/default
func (h *PaymentHandler) SetDefaultCard(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid client ID format")
		return
	}
	cardID, err := uuid.Parse(c.Param("cardId"))
	if err != nil {
		h.BadRequest(c, "Invalid card ID format")
		return
	}

	if err := h.paymentService.SetDefaultCard(c.Request.Context(), clientID, cardID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// DeleteCard handles DELETE /clients/:id/cards/:cardId
func (h *PaymentHandler) DeleteCard(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid client ID format")
		return
	}
	cardID, err := uuid.Parse(c.Param("cardId"))
	if err != nil {
		h.BadRequest(c, "Invalid card ID format")
		return
	}

	if err := h.paymentService.DeleteStoredCard(c.Request.Context(), clientID, cardID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
