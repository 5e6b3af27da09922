package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skyfare/backend/internal/domain/billing"
	"github.com/skyfare/backend/internal/domain/shared"
	"github.com/skyfare/backend/internal/domain/shared/valueobject"
)

// eventDedupTTL bounds how long processed event ids are remembered.
// Square retries deliveries for about 72 hours.
const eventDedupTTL = 72 * time.Hour

// WebhookService verifies and reconciles inbound Square webhook events.
// Unknown event types are accepted and logged so the gateway never
// disables the subscription over repeated non-2xx responses.
type WebhookService struct {
	signatureKey string
	invoiceRepo  billing.InvoiceRepository
	payments     *PaymentService
	dedupStore   shared.EventDedupStore
	logger       *zap.Logger
}

// NewWebhookService creates a new WebhookService. dedupStore may be nil;
// the ledger's payment-id uniqueness then remains the only redelivery
// guard. An empty signatureKey disables verification, which is insecure
// and logged loudly at construction.
func NewWebhookService(
	signatureKey string,
	invoiceRepo billing.InvoiceRepository,
	payments *PaymentService,
	dedupStore shared.EventDedupStore,
	logger *zap.Logger,
) *WebhookService {
	if signatureKey == "" {
		logger.Warn("square webhook signature key not configured, accepting unsigned events")
	}
	return &WebhookService{
		signatureKey: signatureKey,
		invoiceRepo:  invoiceRepo,
		payments:     payments,
		dedupStore:   dedupStore,
		logger:       logger,
	}
}

// VerifySignature checks the base64 HMAC-SHA256 signature over the raw
// body. With no key configured every payload is accepted.
func (s *WebhookService) VerifySignature(body []byte, signature string) error {
	if s.signatureKey == "" {
		s.logger.Warn("accepting webhook without signature verification")
		return nil
	}

	mac := hmac.New(sha256.New, []byte(s.signatureKey))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return shared.ErrUnauthorized
	}
	return nil
}

// HandleEvent processes one verified event payload. Malformed or
// unmatchable payment events return a VALIDATION_ERROR domain error;
// unknown event types return nil so the handler responds 200.
func (s *WebhookService) HandleEvent(ctx context.Context, body []byte) error {
	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return shared.NewDomainError("VALIDATION_ERROR", "Malformed webhook payload")
	}
	if event.Type == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Webhook payload has no event type")
	}

	if s.alreadyProcessed(ctx, event.EventID) {
		s.logger.Info("duplicate webhook event dropped",
			zap.String("event_id", event.EventID),
			zap.String("type", event.Type))
		return nil
	}

	switch {
	case event.Type == "invoice.payment.fulfilled" || event.Type == "invoice.payment_made":
		return s.handleInvoicePayment(ctx, &event)
	case strings.HasPrefix(event.Type, "invoice."),
		strings.HasPrefix(event.Type, "payment."),
		strings.HasPrefix(event.Type, "customer."),
		strings.HasPrefix(event.Type, "order."):
		s.logger.Info("webhook event acknowledged without processing",
			zap.String("type", event.Type),
			zap.String("event_id", event.EventID))
		return nil
	default:
		s.logger.Info("unknown webhook event type acknowledged",
			zap.String("type", event.Type),
			zap.String("event_id", event.EventID))
		return nil
	}
}

// handleInvoicePayment reconciles a fulfilled invoice payment into the
// ledger and the order state machine
func (s *WebhookService) handleInvoicePayment(ctx context.Context, event *webhookEvent) error {
	inv := event.Data.Object.Invoice
	if inv == nil || inv.ID == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Payment event carries no invoice")
	}

	invoice, err := s.invoiceRepo.FindBySquareInvoiceID(ctx, inv.ID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		// Fall back to the reference id the orchestrator embedded
		invoice, err = s.findByReference(ctx, inv.ReferenceID)
		if err != nil {
			s.logger.Warn("payment event matches no invoice",
				zap.String("square_invoice_id", inv.ID),
				zap.String("reference_id", inv.ReferenceID))
			return shared.NewDomainError("VALIDATION_ERROR", "Payment event matches no known invoice")
		}
	}

	paymentID, amount := extractPayment(event, inv, invoice.AmountMoney())
	if paymentID == "" {
		// No gateway payment id on the event; derive a stable synthetic
		// one so redeliveries still collapse onto a single ledger row
		paymentID = "invoice-" + inv.ID
	}

	if err := s.payments.ProcessInvoicePayment(ctx, invoice, paymentID, amount); err != nil {
		return err
	}

	s.markProcessed(ctx, event.EventID)
	return nil
}

// findByReference resolves an invoice through the order id the
// orchestrator stored as the gateway reference id
func (s *WebhookService) findByReference(ctx context.Context, referenceID string) (*billing.Invoice, error) {
	if referenceID == "" {
		return nil, shared.ErrNotFound
	}
	orderID, err := uuid.Parse(referenceID)
	if err != nil {
		return nil, shared.ErrNotFound
	}
	return s.invoiceRepo.FindUnsettledByOrderID(ctx, orderID)
}

// extractPayment pulls the gateway payment id and paid amount out of the
// event. The amount comes from the payment object when present, then the
// invoice's completed payment requests, then the frozen local amount.
func extractPayment(event *webhookEvent, inv *webhookInvoice, fallback valueobject.Money) (string, valueobject.Money) {
	payment := event.Data.Object.InvoicePayment

	reported := inv.completedAmount()
	if payment != nil && payment.Amount != nil && payment.Amount.Amount > 0 {
		reported = payment.Amount
	}

	amount := fallback
	if reported != nil {
		currency := valueobject.Currency(reported.Currency)
		if currency == "" {
			currency = fallback.Currency()
		}
		amount = valueobject.NewMoneyFromCents(reported.Amount, currency)
	}

	if payment == nil {
		return "", amount
	}
	return payment.PaymentID, amount
}

// alreadyProcessed consults the optional dedup store. Store errors fail
// open; the ledger uniqueness still prevents double-booking.
func (s *WebhookService) alreadyProcessed(ctx context.Context, eventID string) bool {
	if s.dedupStore == nil || eventID == "" {
		return false
	}
	seen, err := s.dedupStore.IsProcessed(ctx, eventID)
	if err != nil {
		s.logger.Warn("event dedup check failed", zap.Error(err))
		return false
	}
	return seen
}

func (s *WebhookService) markProcessed(ctx context.Context, eventID string) {
	if s.dedupStore == nil || eventID == "" {
		return
	}
	if _, err := s.dedupStore.MarkProcessed(ctx, eventID, eventDedupTTL); err != nil {
		s.logger.Warn("failed to mark event as processed", zap.Error(err))
	}
}
