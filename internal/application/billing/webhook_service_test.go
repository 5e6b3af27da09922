package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skyfare/backend/internal/domain/billing"
	"github.com/skyfare/backend/internal/domain/shared"
)

// fakeDedupStore is an in-process stand-in for the Redis event dedup store
type fakeDedupStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeDedupStore() *fakeDedupStore {
	return &fakeDedupStore{seen: make(map[string]bool)}
}

func (s *fakeDedupStore) MarkProcessed(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[eventID] {
		return false, nil
	}
	s.seen[eventID] = true
	return true, nil
}

func (s *fakeDedupStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[eventID], nil
}

type webhookFixture struct {
	*paymentFixture
	service *WebhookService
	dedup   *fakeDedupStore
}

func newWebhookFixture(signatureKey string) *webhookFixture {
	pf := newPaymentFixture()
	dedup := newFakeDedupStore()
	return &webhookFixture{
		paymentFixture: pf,
		dedup:          dedup,
		service:        NewWebhookService(signatureKey, pf.invoiceRepo, pf.service, dedup, zap.NewNop()),
	}
}

func signBody(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func fulfilledPayload(eventID, squareInvoiceID, referenceID, paymentID string, amountCents int64) []byte {
	return []byte(fmt.Sprintf(`{
		"type": "invoice.payment.fulfilled",
		"event_id": %q,
		"data": {"object": {
			"invoice": {"id": %q, "reference_id": %q, "status": "PAID"},
			"invoice_payment": {"payment_id": %q, "amount_money": {"amount": %d, "currency": "USD"}}
		}}
	}`, eventID, squareInvoiceID, referenceID, paymentID, amountCents))
}

func TestVerifySignature(t *testing.T) {
	f := newWebhookFixture("wh-secret")
	body := []byte(`{"type":"invoice.created"}`)

	assert.NoError(t, f.service.VerifySignature(body, signBody("wh-secret", body)))
	assert.ErrorIs(t, f.service.VerifySignature(body, signBody("wrong-key", body)), shared.ErrUnauthorized)
	assert.ErrorIs(t, f.service.VerifySignature(body, ""), shared.ErrUnauthorized)
}

func TestVerifySignatureWithoutKeyAcceptsEverything(t *testing.T) {
	f := newWebhookFixture("")
	assert.NoError(t, f.service.VerifySignature([]byte(`{}`), "garbage"))
}

func TestHandleEventMalformedPayload(t *testing.T) {
	f := newWebhookFixture("wh-secret")

	err := f.service.HandleEvent(context.Background(), []byte(`{not json`))
	require.Error(t, err)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "VALIDATION_ERROR", de.Code)
}

func TestHandleEventMissingType(t *testing.T) {
	f := newWebhookFixture("wh-secret")

	err := f.service.HandleEvent(context.Background(), []byte(`{"event_id":"evt-1"}`))
	require.Error(t, err)
}

func TestHandleEventUnknownTypeAcknowledged(t *testing.T) {
	f := newWebhookFixture("wh-secret")

	err := f.service.HandleEvent(context.Background(), []byte(`{"type":"team.updated","event_id":"evt-1"}`))
	assert.NoError(t, err)

	err = f.service.HandleEvent(context.Background(), []byte(`{"type":"invoice.created","event_id":"evt-2"}`))
	assert.NoError(t, err)

	f.invoiceRepo.AssertNotCalled(t, "FindBySquareInvoiceID", mock.Anything, mock.Anything)
}

func TestHandleEventFulfilledReconcilesPayment(t *testing.T) {
	f := newWebhookFixture("wh-secret")
	ctx := context.Background()

	order, invoice := newInvoicedOrder(t)

	f.invoiceRepo.On("FindBySquareInvoiceID", ctx, "SQ-INV-1").Return(invoice, nil)
	f.invoiceRepo.On("Save", ctx, invoice).Return(nil)
	f.txRepo.On("Save", ctx, mock.MatchedBy(func(tx *billing.PaymentTransaction) bool {
		return tx.SquarePaymentID == "SQ-PAY-1" && tx.Amount.String() == "100" && tx.IsCompleted()
	})).Return(nil)
	f.orderRepo.On("FindByID", ctx, invoice.OrderID).Return(order, nil)
	f.orderRepo.On("Save", ctx, order).Return(nil)

	body := fulfilledPayload("evt-1", "SQ-INV-1", order.ID.String(), "SQ-PAY-1", 10000)
	require.NoError(t, f.service.HandleEvent(ctx, body))

	assert.True(t, invoice.IsPaid())
	assert.True(t, order.IsPaid())
}

func TestHandleEventRedeliveryCollapsesOntoSingleRow(t *testing.T) {
	f := newWebhookFixture("wh-secret")
	ctx := context.Background()

	order, invoice := newInvoicedOrder(t)

	f.invoiceRepo.On("FindBySquareInvoiceID", ctx, "SQ-INV-1").Return(invoice, nil)
	// The ledger's unique square_payment_id column rejects the second row
	f.txRepo.On("Save", ctx, mock.AnythingOfType("*billing.PaymentTransaction")).
		Return(shared.ErrAlreadyExists)

	body := fulfilledPayload("evt-2", "SQ-INV-1", order.ID.String(), "SQ-PAY-1", 10000)
	require.NoError(t, f.service.HandleEvent(ctx, body))

	f.invoiceRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.orderRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestHandleEventDedupStoreDropsDuplicateEventID(t *testing.T) {
	f := newWebhookFixture("wh-secret")
	ctx := context.Background()

	order, invoice := newInvoicedOrder(t)

	f.invoiceRepo.On("FindBySquareInvoiceID", ctx, "SQ-INV-1").Return(invoice, nil).Once()
	f.invoiceRepo.On("Save", ctx, invoice).Return(nil)
	f.txRepo.On("Save", ctx, mock.AnythingOfType("*billing.PaymentTransaction")).Return(nil).Once()
	f.orderRepo.On("FindByID", ctx, invoice.OrderID).Return(order, nil)
	f.orderRepo.On("Save", ctx, order).Return(nil)

	body := fulfilledPayload("evt-3", "SQ-INV-1", order.ID.String(), "SQ-PAY-1", 10000)
	require.NoError(t, f.service.HandleEvent(ctx, body))
	// Same event id redelivered; the dedup store drops it before any lookup
	require.NoError(t, f.service.HandleEvent(ctx, body))

	f.invoiceRepo.AssertNumberOfCalls(t, "FindBySquareInvoiceID", 1)
	f.txRepo.AssertNumberOfCalls(t, "Save", 1)
}

func TestHandleEventFallsBackToReferenceID(t *testing.T) {
	f := newWebhookFixture("wh-secret")
	ctx := context.Background()

	order, invoice := newInvoicedOrder(t)

	f.invoiceRepo.On("FindBySquareInvoiceID", ctx, "SQ-INV-UNKNOWN").Return(nil, shared.ErrNotFound)
	f.invoiceRepo.On("FindUnsettledByOrderID", ctx, order.ID).Return(invoice, nil)
	f.invoiceRepo.On("Save", ctx, invoice).Return(nil)
	f.txRepo.On("Save", ctx, mock.AnythingOfType("*billing.PaymentTransaction")).Return(nil)
	f.orderRepo.On("FindByID", ctx, invoice.OrderID).Return(order, nil)
	f.orderRepo.On("Save", ctx, order).Return(nil)

	body := fulfilledPayload("evt-4", "SQ-INV-UNKNOWN", order.ID.String(), "SQ-PAY-1", 10000)
	require.NoError(t, f.service.HandleEvent(ctx, body))

	assert.True(t, invoice.IsPaid())
}

func TestHandleEventUnmatchableInvoice(t *testing.T) {
	f := newWebhookFixture("wh-secret")
	ctx := context.Background()

	f.invoiceRepo.On("FindBySquareInvoiceID", ctx, "SQ-INV-GHOST").Return(nil, shared.ErrNotFound)

	body := fulfilledPayload("evt-5", "SQ-INV-GHOST", "not-a-uuid", "SQ-PAY-1", 10000)
	err := f.service.HandleEvent(ctx, body)
	require.Error(t, err)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "VALIDATION_ERROR", de.Code)
}

func TestHandleEventWithoutPaymentIDUsesSyntheticID(t *testing.T) {
	f := newWebhookFixture("wh-secret")
	ctx := context.Background()

	order, invoice := newInvoicedOrder(t)

	f.invoiceRepo.On("FindBySquareInvoiceID", ctx, "SQ-INV-1").Return(invoice, nil)
	f.invoiceRepo.On("Save", ctx, invoice).Return(nil)
	f.txRepo.On("Save", ctx, mock.MatchedBy(func(tx *billing.PaymentTransaction) bool {
		// Falls back to the invoice's frozen amount as well
		return tx.SquarePaymentID == "invoice-SQ-INV-1" && tx.Amount.String() == "100"
	})).Return(nil)
	f.orderRepo.On("FindByID", ctx, invoice.OrderID).Return(order, nil)
	f.orderRepo.On("Save", ctx, order).Return(nil)

	body := []byte(fmt.Sprintf(`{
		"type": "invoice.payment_made",
		"event_id": "evt-6",
		"data": {"object": {"invoice": {"id": "SQ-INV-1", "reference_id": %q}}}
	}`, order.ID.String()))
	require.NoError(t, f.service.HandleEvent(ctx, body))
}

func TestHandleEventAmountFromPaymentRequests(t *testing.T) {
	f := newWebhookFixture("wh-secret")
	ctx := context.Background()

	order, invoice := newInvoicedOrder(t)

	f.invoiceRepo.On("FindBySquareInvoiceID", ctx, "SQ-INV-1").Return(invoice, nil)
	f.invoiceRepo.On("Save", ctx, invoice).Return(nil)
	f.txRepo.On("Save", ctx, mock.MatchedBy(func(tx *billing.PaymentTransaction) bool {
		// The completed total on the invoice beats the frozen local amount
		return tx.SquarePaymentID == "invoice-SQ-INV-1" && tx.Amount.String() == "95.5"
	})).Return(nil)
	f.orderRepo.On("FindByID", ctx, invoice.OrderID).Return(order, nil)
	f.orderRepo.On("Save", ctx, order).Return(nil)

	body := []byte(fmt.Sprintf(`{
		"type": "invoice.payment.fulfilled",
		"event_id": "evt-7",
		"data": {"object": {"invoice": {
			"id": "SQ-INV-1",
			"reference_id": %q,
			"payment_requests": [
				{"total_completed_amount_money": {"amount": 9550, "currency": "USD"}}
			]
		}}}
	}`, order.ID.String()))
	require.NoError(t, f.service.HandleEvent(ctx, body))

	assert.True(t, invoice.IsPaid())
}
