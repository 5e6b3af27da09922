package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skyfare/backend/internal/domain/billing"
	"github.com/skyfare/backend/internal/domain/ordering"
	"github.com/skyfare/backend/internal/domain/shared"
	"github.com/skyfare/backend/internal/domain/shared/valueobject"
)

type orchestratorFixture struct {
	orchestrator *InvoiceOrchestrator
	orderRepo    *MockOrderRepository
	invoiceRepo  *MockInvoiceRepository
	clientRepo   *MockClientRepository
	gateway      *MockGateway
	emailSender  *stubEmailSender
}

type stubEmailSender struct {
	sent    []string
	failFor map[string]error
}

func (s *stubEmailSender) SendInvoiceEmail(ctx context.Context, invoice *billing.Invoice, recipient string) error {
	if err, ok := s.failFor[recipient]; ok {
		return err
	}
	s.sent = append(s.sent, recipient)
	return nil
}

func newOrchestratorFixture() *orchestratorFixture {
	orderRepo := new(MockOrderRepository)
	invoiceRepo := new(MockInvoiceRepository)
	clientRepo := new(MockClientRepository)
	gateway := new(MockGateway)
	emailSender := &stubEmailSender{failFor: map[string]error{}}
	resolver := NewCustomerResolver(clientRepo, gateway, zap.NewNop())

	return &orchestratorFixture{
		orchestrator: NewInvoiceOrchestrator(
			DefaultInvoiceOrchestratorConfig(),
			orderRepo, invoiceRepo, clientRepo, resolver, gateway, emailSender, zap.NewNop()),
		orderRepo:   orderRepo,
		invoiceRepo: invoiceRepo,
		clientRepo:  clientRepo,
		gateway:     gateway,
		emailSender: emailSender,
	}
}

func newInvoicedOrder(t *testing.T) (*ordering.Order, *billing.Invoice) {
	t.Helper()
	order, err := ordering.NewOrder("KA000007", uuid.New())
	require.NoError(t, err)
	_, err = order.AddItem("Crew meal", "", "Individual", decimal.RequireFromString("100.00"), 1)
	require.NoError(t, err)

	invoice, err := billing.NewInvoice(order.ID, "SQ-INV-1", "KA000007",
		billing.DeliveryMethodShareManually,
		valueobject.NewMoneyFromCents(10000, valueobject.USD), "")
	require.NoError(t, err)
	return order, invoice
}

func TestCreateInvoiceFirstTime(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	order, _ := newInvoicedOrder(t)
	require.NoError(t, order.SetFees(ordering.Fees{Delivery: decimal.RequireFromString("25.00")}))

	client := newTestClient(t, "ops@apex.example", "")
	client.CacheCustomerID("CUST1")

	f.orderRepo.On("FindByID", ctx, order.ID).Return(order, nil)
	f.clientRepo.On("FindByID", ctx, order.ClientID).Return(client, nil)
	f.invoiceRepo.On("FindUnsettledByOrderID", ctx, order.ID).Return(nil, shared.ErrNotFound)
	f.invoiceRepo.On("CountByOrderID", ctx, order.ID).Return(int64(0), nil)
	f.invoiceRepo.On("Save", ctx, mock.AnythingOfType("*billing.Invoice")).Return(nil)

	f.gateway.On("CreateSalesOrder", ctx, mock.MatchedBy(func(p billing.CreateSalesOrderParams) bool {
		// One item plus the single non-zero fee, in minor units
		return len(p.LineItems) == 2 &&
			p.LineItems[0].AmountCents == 10000 &&
			p.LineItems[1].Name == "Delivery Fee" &&
			p.LineItems[1].AmountCents == 2500 &&
			p.ReferenceID == order.ID.String()
	})).Return(&billing.SalesOrder{ID: "GW-ORD", Version: 1}, nil)
	f.gateway.On("CreateInvoice", ctx, mock.MatchedBy(func(p billing.CreateInvoiceParams) bool {
		return p.InvoiceNumber == "KA000007" &&
			p.CustomerID == "CUST1" &&
			p.ScheduledAt.After(time.Now().Add(29*time.Second))
	})).Return(&billing.GatewayInvoice{ID: "SQ-INV-NEW", Version: 0, Status: billing.GatewayInvoiceStatusDraft}, nil)
	f.gateway.On("PublishInvoice", ctx, "SQ-INV-NEW", 0).
		Return(&billing.GatewayInvoice{
			ID: "SQ-INV-NEW", Version: 1,
			Status:    billing.GatewayInvoiceStatusUnpaid,
			PublicURL: "https://squareup.example/pay/SQ-INV-NEW",
		}, nil)

	resp, err := f.orchestrator.CreateInvoice(ctx, order.ID, CreateInvoiceRequest{
		DeliveryMethod: "EMAIL",
	})
	require.NoError(t, err)

	assert.Equal(t, "KA000007", resp.Invoice.InvoiceNumber)
	assert.Equal(t, "SQ-INV-NEW", resp.Invoice.SquareInvoiceID)
	assert.Equal(t, "pending", resp.Invoice.Status)
	assert.Equal(t, "125", resp.Invoice.Amount.String())
	assert.Equal(t, "https://squareup.example/pay/SQ-INV-NEW", resp.PublicURL)
	assert.Equal(t, order.ID.String(), mockSavedInvoice(f.invoiceRepo).ReferenceID)
}

func mockSavedInvoice(repo *MockInvoiceRepository) *billing.Invoice {
	for _, call := range repo.Calls {
		if call.Method == "Save" {
			return call.Arguments.Get(1).(*billing.Invoice)
		}
	}
	return nil
}

func TestCreateInvoiceReusesUnsettled(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	order, invoice := newInvoicedOrder(t)

	f.orderRepo.On("FindByID", ctx, order.ID).Return(order, nil)
	f.invoiceRepo.On("FindUnsettledByOrderID", ctx, order.ID).Return(invoice, nil)
	f.invoiceRepo.On("Save", ctx, invoice).Return(nil)
	f.gateway.On("GetInvoice", ctx, "SQ-INV-1").
		Return(&billing.GatewayInvoice{
			ID: "SQ-INV-1", Version: 2,
			Status:    billing.GatewayInvoiceStatusUnpaid,
			PublicURL: "https://squareup.example/pay/SQ-INV-1",
		}, nil)

	resp, err := f.orchestrator.CreateInvoice(ctx, order.ID, CreateInvoiceRequest{
		DeliveryMethod: "SHARE_MANUALLY",
	})
	require.NoError(t, err)

	assert.Equal(t, invoice.ID, resp.Invoice.ID)
	assert.Equal(t, "https://squareup.example/pay/SQ-INV-1", resp.PublicURL)
	f.gateway.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything)
	f.gateway.AssertNotCalled(t, "CreateSalesOrder", mock.Anything, mock.Anything)
	f.gateway.AssertNotCalled(t, "PublishInvoice", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateInvoiceRepublishesDraft(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	order, invoice := newInvoicedOrder(t)

	f.orderRepo.On("FindByID", ctx, order.ID).Return(order, nil)
	f.invoiceRepo.On("FindUnsettledByOrderID", ctx, order.ID).Return(invoice, nil)
	f.invoiceRepo.On("Save", ctx, invoice).Return(nil)
	f.gateway.On("GetInvoice", ctx, "SQ-INV-1").
		Return(&billing.GatewayInvoice{ID: "SQ-INV-1", Version: 0, Status: billing.GatewayInvoiceStatusDraft}, nil)
	f.gateway.On("PublishInvoice", ctx, "SQ-INV-1", 0).
		Return(&billing.GatewayInvoice{
			ID: "SQ-INV-1", Version: 1,
			Status:    billing.GatewayInvoiceStatusUnpaid,
			PublicURL: "https://squareup.example/pay/SQ-INV-1",
		}, nil)

	resp, err := f.orchestrator.CreateInvoice(ctx, order.ID, CreateInvoiceRequest{
		DeliveryMethod: "SHARE_MANUALLY",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://squareup.example/pay/SQ-INV-1", resp.PublicURL)
}

func TestCreateInvoiceNumberSuffixAfterSettledInvoices(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	order, _ := newInvoicedOrder(t)
	client := newTestClient(t, "ops@apex.example", "")
	client.CacheCustomerID("CUST1")

	f.orderRepo.On("FindByID", ctx, order.ID).Return(order, nil)
	f.clientRepo.On("FindByID", ctx, order.ClientID).Return(client, nil)
	f.invoiceRepo.On("FindUnsettledByOrderID", ctx, order.ID).Return(nil, shared.ErrNotFound)
	f.invoiceRepo.On("CountByOrderID", ctx, order.ID).Return(int64(1), nil)
	f.invoiceRepo.On("Save", ctx, mock.AnythingOfType("*billing.Invoice")).Return(nil)

	f.gateway.On("CreateSalesOrder", ctx, mock.Anything).Return(&billing.SalesOrder{ID: "GW-ORD"}, nil)
	f.gateway.On("CreateInvoice", ctx, mock.MatchedBy(func(p billing.CreateInvoiceParams) bool {
		return p.InvoiceNumber == "KA000007-2"
	})).Return(&billing.GatewayInvoice{ID: "SQ-INV-2", Version: 0}, nil)
	f.gateway.On("PublishInvoice", ctx, "SQ-INV-2", 0).
		Return(&billing.GatewayInvoice{ID: "SQ-INV-2", Version: 1, Status: billing.GatewayInvoiceStatusUnpaid}, nil)

	resp, err := f.orchestrator.CreateInvoice(ctx, order.ID, CreateInvoiceRequest{
		DeliveryMethod: "SHARE_MANUALLY",
	})
	require.NoError(t, err)
	assert.Equal(t, "KA000007-2", resp.Invoice.InvoiceNumber)
}

func TestCreateInvoiceEmailWithoutRecipient(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	order, _ := newInvoicedOrder(t)
	client := newTestClient(t, "", "")

	f.orderRepo.On("FindByID", ctx, order.ID).Return(order, nil)
	f.clientRepo.On("FindByID", ctx, order.ClientID).Return(client, nil)
	f.invoiceRepo.On("FindUnsettledByOrderID", ctx, order.ID).Return(nil, shared.ErrNotFound)

	_, err := f.orchestrator.CreateInvoice(ctx, order.ID, CreateInvoiceRequest{
		DeliveryMethod: "EMAIL",
	})
	require.Error(t, err)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
}

func TestCreateInvoiceLosingRaceReturnsWinner(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	order, winner := newInvoicedOrder(t)
	client := newTestClient(t, "ops@apex.example", "")
	client.CacheCustomerID("CUST1")

	f.orderRepo.On("FindByID", ctx, order.ID).Return(order, nil)
	f.clientRepo.On("FindByID", ctx, order.ClientID).Return(client, nil)
	f.invoiceRepo.On("FindUnsettledByOrderID", ctx, order.ID).Return(nil, shared.ErrNotFound).Once()
	f.invoiceRepo.On("CountByOrderID", ctx, order.ID).Return(int64(0), nil)
	// The partial unique index rejects the second unsettled invoice
	f.invoiceRepo.On("Save", ctx, mock.AnythingOfType("*billing.Invoice")).Return(shared.ErrAlreadyExists).Once()
	f.invoiceRepo.On("FindUnsettledByOrderID", ctx, order.ID).Return(winner, nil).Once()
	f.invoiceRepo.On("Save", ctx, winner).Return(nil)

	f.gateway.On("CreateSalesOrder", ctx, mock.Anything).Return(&billing.SalesOrder{ID: "GW-ORD"}, nil)
	f.gateway.On("CreateInvoice", ctx, mock.Anything).
		Return(&billing.GatewayInvoice{ID: "SQ-INV-LOSER", Version: 0}, nil)
	f.gateway.On("PublishInvoice", ctx, "SQ-INV-LOSER", 0).
		Return(&billing.GatewayInvoice{ID: "SQ-INV-LOSER", Version: 1, Status: billing.GatewayInvoiceStatusUnpaid}, nil)
	f.gateway.On("GetInvoice", ctx, "SQ-INV-1").
		Return(&billing.GatewayInvoice{ID: "SQ-INV-1", Version: 1, Status: billing.GatewayInvoiceStatusUnpaid}, nil)

	resp, err := f.orchestrator.CreateInvoice(ctx, order.ID, CreateInvoiceRequest{
		DeliveryMethod: "SHARE_MANUALLY",
	})
	require.NoError(t, err)
	assert.Equal(t, winner.ID, resp.Invoice.ID)
}

func TestCreateInvoiceAdditionalEmailFanOut(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	order, invoice := newInvoicedOrder(t)
	f.emailSender.failFor["bad@apex.example"] = errors.New("mailbox full")

	f.orderRepo.On("FindByID", ctx, order.ID).Return(order, nil)
	f.invoiceRepo.On("FindUnsettledByOrderID", ctx, order.ID).Return(invoice, nil)
	f.invoiceRepo.On("Save", ctx, invoice).Return(nil)
	f.gateway.On("GetInvoice", ctx, "SQ-INV-1").
		Return(&billing.GatewayInvoice{ID: "SQ-INV-1", Version: 1, Status: billing.GatewayInvoiceStatusUnpaid}, nil)

	resp, err := f.orchestrator.CreateInvoice(ctx, order.ID, CreateInvoiceRequest{
		DeliveryMethod:   "SHARE_MANUALLY",
		AdditionalEmails: []string{"crew@apex.example", "bad@apex.example"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"crew@apex.example"}, resp.AdditionalEmailsSent)
	assert.Contains(t, resp.AdditionalEmailsFailed, "bad@apex.example")
	assert.Equal(t, "mailbox full", resp.AdditionalEmailsFailed["bad@apex.example"])
}

func TestCancelInvoicePaidConflicts(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	_, invoice := newInvoicedOrder(t)
	require.NoError(t, invoice.MarkPaid(time.Now()))

	f.invoiceRepo.On("FindByID", ctx, invoice.ID).Return(invoice, nil)

	_, err := f.orchestrator.CancelInvoice(ctx, invoice.ID)
	require.Error(t, err)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONFLICT", domainErr.Code)
	f.gateway.AssertNotCalled(t, "CancelInvoice", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelInvoiceAlreadyCancelledIsNoOp(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	_, invoice := newInvoicedOrder(t)
	require.NoError(t, invoice.MarkCancelled())

	f.invoiceRepo.On("FindByID", ctx, invoice.ID).Return(invoice, nil)

	resp, err := f.orchestrator.CancelInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", resp.Status)
	f.gateway.AssertNotCalled(t, "GetInvoice", mock.Anything, mock.Anything)
	f.gateway.AssertNotCalled(t, "CancelInvoice", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelInvoicePending(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	_, invoice := newInvoicedOrder(t)

	f.invoiceRepo.On("FindByID", ctx, invoice.ID).Return(invoice, nil)
	f.invoiceRepo.On("Save", ctx, invoice).Return(nil)
	f.gateway.On("GetInvoice", ctx, "SQ-INV-1").
		Return(&billing.GatewayInvoice{ID: "SQ-INV-1", Version: 3, Status: billing.GatewayInvoiceStatusUnpaid}, nil)
	f.gateway.On("CancelInvoice", ctx, "SQ-INV-1", 3).Return(nil)

	resp, err := f.orchestrator.CancelInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", resp.Status)
}

func TestSendInvoiceEmailSupersedes(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	order, invoice := newInvoicedOrder(t)
	client := newTestClient(t, "ops@apex.example", "")
	client.CacheCustomerID("CUST1")

	f.invoiceRepo.On("FindByID", ctx, invoice.ID).Return(invoice, nil)
	f.orderRepo.On("FindByID", ctx, invoice.OrderID).Return(order, nil)
	f.clientRepo.On("FindByID", ctx, order.ClientID).Return(client, nil)
	f.gateway.On("GetInvoice", ctx, "SQ-INV-1").
		Return(&billing.GatewayInvoice{ID: "SQ-INV-1", Version: 2, Status: billing.GatewayInvoiceStatusUnpaid}, nil)
	f.gateway.On("CancelInvoice", ctx, "SQ-INV-1", 2).Return(nil)
	f.invoiceRepo.On("Save", ctx, invoice).Return(nil).Once()
	f.invoiceRepo.On("CountByOrderID", ctx, order.ID).Return(int64(1), nil)
	f.gateway.On("CreateSalesOrder", ctx, mock.Anything).Return(&billing.SalesOrder{ID: "GW-ORD-2"}, nil)
	f.gateway.On("CreateInvoice", ctx, mock.MatchedBy(func(p billing.CreateInvoiceParams) bool {
		return p.InvoiceNumber == "KA000007-2" &&
			p.DeliveryMethod == billing.DeliveryMethodEmail &&
			p.RecipientEmail == "ops@apex.example"
	})).Return(&billing.GatewayInvoice{ID: "SQ-INV-2", Version: 0, Status: billing.GatewayInvoiceStatusDraft}, nil)
	f.gateway.On("PublishInvoice", ctx, "SQ-INV-2", 0).
		Return(&billing.GatewayInvoice{
			ID: "SQ-INV-2", Version: 1,
			Status:    billing.GatewayInvoiceStatusUnpaid,
			PublicURL: "https://squareup.example/pay/SQ-INV-2",
		}, nil)
	f.invoiceRepo.On("Save", ctx, mock.AnythingOfType("*billing.Invoice")).Return(nil)

	resp, err := f.orchestrator.SendInvoiceEmail(ctx, SendInvoiceEmailRequest{
		InvoiceID:      invoice.ID,
		RecipientEmail: "ops@apex.example",
	})
	require.NoError(t, err)

	assert.Equal(t, "SQ-INV-2", resp.SquareInvoiceID)
	assert.Equal(t, "KA000007-2", resp.InvoiceNumber)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "https://squareup.example/pay/SQ-INV-2", resp.PublicURL)
	assert.NotNil(t, resp.EmailSentAt)
	assert.True(t, invoice.IsCancelled(), "the superseded invoice is retired, never deleted")
	// Resending goes through the gateway's own delivery, not SMTP
	assert.Empty(t, f.emailSender.sent)
}

func TestSendInvoiceEmailWorksWithoutSMTPSender(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	invoiceRepo := new(MockInvoiceRepository)
	clientRepo := new(MockClientRepository)
	gateway := new(MockGateway)
	resolver := NewCustomerResolver(clientRepo, gateway, zap.NewNop())
	orchestrator := NewInvoiceOrchestrator(DefaultInvoiceOrchestratorConfig(),
		orderRepo, invoiceRepo, clientRepo, resolver, gateway, nil, zap.NewNop())
	ctx := context.Background()

	order, invoice := newInvoicedOrder(t)
	client := newTestClient(t, "ops@apex.example", "")
	client.CacheCustomerID("CUST1")

	invoiceRepo.On("FindByID", ctx, invoice.ID).Return(invoice, nil)
	orderRepo.On("FindByID", ctx, invoice.OrderID).Return(order, nil)
	clientRepo.On("FindByID", ctx, order.ClientID).Return(client, nil)
	invoiceRepo.On("Save", ctx, mock.AnythingOfType("*billing.Invoice")).Return(nil)
	invoiceRepo.On("CountByOrderID", ctx, order.ID).Return(int64(1), nil)
	gateway.On("GetInvoice", ctx, "SQ-INV-1").
		Return(&billing.GatewayInvoice{ID: "SQ-INV-1", Version: 1, Status: billing.GatewayInvoiceStatusUnpaid}, nil)
	gateway.On("CancelInvoice", ctx, "SQ-INV-1", 1).Return(nil)
	gateway.On("CreateSalesOrder", ctx, mock.Anything).Return(&billing.SalesOrder{ID: "GW-ORD-2"}, nil)
	gateway.On("CreateInvoice", ctx, mock.Anything).
		Return(&billing.GatewayInvoice{ID: "SQ-INV-2", Version: 0}, nil)
	gateway.On("PublishInvoice", ctx, "SQ-INV-2", 0).
		Return(&billing.GatewayInvoice{ID: "SQ-INV-2", Version: 1, Status: billing.GatewayInvoiceStatusUnpaid}, nil)

	resp, err := orchestrator.SendInvoiceEmail(ctx, SendInvoiceEmailRequest{
		InvoiceID:      invoice.ID,
		RecipientEmail: "ops@apex.example",
	})
	require.NoError(t, err)
	assert.Equal(t, "SQ-INV-2", resp.SquareInvoiceID)
}

func TestSendInvoiceEmailPaidInvoiceRejected(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	_, invoice := newInvoicedOrder(t)
	require.NoError(t, invoice.MarkPaid(time.Now()))

	f.invoiceRepo.On("FindByID", ctx, invoice.ID).Return(invoice, nil)

	_, err := f.orchestrator.SendInvoiceEmail(ctx, SendInvoiceEmailRequest{
		InvoiceID:      invoice.ID,
		RecipientEmail: "ops@apex.example",
	})
	require.Error(t, err)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_STATE", domainErr.Code)
	f.gateway.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything)
	f.gateway.AssertNotCalled(t, "CancelInvoice", mock.Anything, mock.Anything, mock.Anything)
}
