package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	billingapp "github.com/skyfare/backend/internal/application/billing"
	"github.com/skyfare/backend/internal/domain/shared"
)

// squareSignatureHeader carries the base64 HMAC-SHA256 signature Square
// computes over the raw request body
const squareSignatureHeader = "x-square-signature"

// WebhookHandler receives payment gateway event notifications. These
// endpoints are called by Square and do not require authentication;
// authenticity comes from the signature check.
type WebhookHandler struct {
	BaseHandler
	webhookService *billingapp.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhookService *billingapp.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

// HandleSquareEvent handles POST /webhooks/square. Unknown event types
// are acknowledged with 200 so the gateway stops redelivering them.
func (h *WebhookHandler) HandleSquareEvent(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}

	signature := c.GetHeader(squareSignatureHeader)
	if err := h.webhookService.VerifySignature(body, signature); err != nil {
		h.Unauthorized(c, "Invalid webhook signature")
		return
	}

	if err := h.webhookService.HandleEvent(c.Request.Context(), body); err != nil {
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "VALIDATION_ERROR" {
			h.BadRequest(c, domainErr.Message)
			return
		}
		// Non-2xx makes Square redeliver, which is what we want for
		// transient failures
		h.InternalError(c, "Failed to process webhook event")
		return
	}

	h.Success(c, gin.H{"received": true})
}
