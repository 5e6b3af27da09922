package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	billingapp "github.com/skyfare/backend/internal/application/billing"
)

// InvoiceHandler handles invoice lifecycle endpoints
type InvoiceHandler struct {
	BaseHandler
	orchestrator *billingapp.InvoiceOrchestrator
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(orchestrator *billingapp.InvoiceOrchestrator) *InvoiceHandler {
	return &InvoiceHandler{orchestrator: orchestrator}
}

// Create handles POST /orders/:id/invoices. Creating an invoice for an
// order that already has an unsettled one returns the existing invoice.
func (h *InvoiceHandler) Create(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	var req billingapp.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.orchestrator.CreateInvoice(c.Request.Context(), orderID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// ListByOrder handles GET /orders/:id/invoices
func (h *InvoiceHandler) ListByOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	invoices, err := h.orchestrator.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoices)
}

// SendEmail handles POST /orders/:id/invoices/send, resending the
// invoice to an explicit recipient under a fresh gateway invoice id
func (h *InvoiceHandler) SendEmail(c *gin.Context) {
	if _, err := uuid.Parse(c.Param("id")); err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	var req billingapp.SendInvoiceEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	invoice, err := h.orchestrator.SendInvoiceEmail(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// Publish handles POST /invoices/:id/publish
func (h *InvoiceHandler) Publish(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	invoice, err := h.orchestrator.PublishInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// Cancel handles POST /invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	invoice, err := h.orchestrator.CancelInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}
