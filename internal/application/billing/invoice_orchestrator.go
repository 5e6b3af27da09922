package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/skyfare/backend/internal/domain/billing"
	"github.com/skyfare/backend/internal/domain/ordering"
	"github.com/skyfare/backend/internal/domain/partner"
	"github.com/skyfare/backend/internal/domain/shared"
	"github.com/skyfare/backend/internal/domain/shared/valueobject"
)

// InvoiceEmailSender delivers invoice emails to recipients beyond the
// gateway's own primary delivery
type InvoiceEmailSender interface {
	SendInvoiceEmail(ctx context.Context, invoice *billing.Invoice, recipient string) error
}

// InvoiceOrchestratorConfig holds invoicing policy knobs
type InvoiceOrchestratorConfig struct {
	// DueDays is how far out the invoice due date lands
	DueDays int
	// ScheduleOffset pushes the gateway's scheduledAt strictly into the
	// future; it must be large enough to survive clock skew
	ScheduleOffset time.Duration
}

// DefaultInvoiceOrchestratorConfig returns default invoicing policy
func DefaultInvoiceOrchestratorConfig() InvoiceOrchestratorConfig {
	return InvoiceOrchestratorConfig{
		DueDays:        30,
		ScheduleOffset: 90 * time.Second,
	}
}

// InvoiceOrchestrator turns a confirmed order into a collectible gateway
// invoice. Creation is idempotent per order: while an unsettled invoice
// exists it is refreshed and returned instead of creating a second one.
type InvoiceOrchestrator struct {
	config      InvoiceOrchestratorConfig
	orderRepo   ordering.OrderRepository
	invoiceRepo billing.InvoiceRepository
	clientRepo  partner.ClientRepository
	resolver    *CustomerResolver
	gateway     billing.Gateway
	emailSender InvoiceEmailSender
	logger      *zap.Logger
}

// NewInvoiceOrchestrator creates a new InvoiceOrchestrator. emailSender
// may be nil, in which case additional-recipient fan-out reports failure
// per address instead of sending.
func NewInvoiceOrchestrator(
	config InvoiceOrchestratorConfig,
	orderRepo ordering.OrderRepository,
	invoiceRepo billing.InvoiceRepository,
	clientRepo partner.ClientRepository,
	resolver *CustomerResolver,
	gateway billing.Gateway,
	emailSender InvoiceEmailSender,
	logger *zap.Logger,
) *InvoiceOrchestrator {
	if config.DueDays <= 0 {
		config.DueDays = 30
	}
	if config.ScheduleOffset < 30*time.Second {
		config.ScheduleOffset = 90 * time.Second
	}
	return &InvoiceOrchestrator{
		config:      config,
		orderRepo:   orderRepo,
		invoiceRepo: invoiceRepo,
		clientRepo:  clientRepo,
		resolver:    resolver,
		gateway:     gateway,
		emailSender: emailSender,
		logger:      logger,
	}
}

// CreateInvoice creates (or reuses) the collectible invoice for an order.
// Steps: reuse any unsettled invoice after refreshing it from the
// gateway; otherwise resolve the payer identity, mirror the order lines
// into a gateway sales order, create and publish a gateway invoice, and
// persist the local record with reference_id = order id.
func (o *InvoiceOrchestrator) CreateInvoice(ctx context.Context, orderID uuid.UUID, req CreateInvoiceRequest) (*CreateInvoiceResponse, error) {
	order, err := o.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	method := billing.DeliveryMethod(req.DeliveryMethod)
	if !method.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Unknown delivery method: "+req.DeliveryMethod)
	}

	// Duplicate admin requests and retried clicks land here
	if existing, err := o.invoiceRepo.FindUnsettledByOrderID(ctx, orderID); err == nil {
		return o.reuseUnsettled(ctx, existing, req)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	client, err := o.clientRepo.FindByID(ctx, order.ClientID)
	if err != nil {
		return nil, err
	}

	// An explicit recipient overrides the client's stored email
	recipientEmail := req.RecipientEmail
	if recipientEmail == "" {
		recipientEmail = client.Email
	}
	if method == billing.DeliveryMethodEmail && recipientEmail == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Email delivery requires a recipient email")
	}

	customerID, err := o.resolver.Resolve(ctx, order.ClientID, req.RecipientEmail)
	if err != nil {
		if errors.Is(err, shared.ErrNoPayerIdentity) {
			return nil, err
		}
		return nil, fmt.Errorf("resolving payer identity: %w", err)
	}

	invoiceNumber, err := o.nextInvoiceNumber(ctx, order)
	if err != nil {
		return nil, err
	}

	published, err := o.issueGatewayInvoice(ctx, order, customerID, invoiceNumber, method, recipientEmail)
	if err != nil {
		return nil, err
	}

	amount, err := valueobject.NewMoney(order.Total, valueobject.DefaultCurrency)
	if err != nil {
		return nil, err
	}

	invoice, err := billing.NewInvoice(order.ID, published.ID, invoiceNumber, method, amount, recipientEmail)
	if err != nil {
		return nil, err
	}
	invoice.SetPublicURL(published.PublicURL)
	if method == billing.DeliveryMethodEmail {
		invoice.MarkEmailSent(time.Now())
	}

	if err := o.invoiceRepo.Save(ctx, invoice); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// A concurrent request won the one-unsettled-invoice race;
			// return its invoice instead of failing the caller
			winner, findErr := o.invoiceRepo.FindUnsettledByOrderID(ctx, orderID)
			if findErr == nil {
				return o.reuseUnsettled(ctx, winner, req)
			}
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	o.logger.Info("invoice created",
		zap.String("order_id", order.ID.String()),
		zap.String("invoice_number", invoiceNumber),
		zap.String("square_invoice_id", invoice.SquareInvoiceID))

	resp := &CreateInvoiceResponse{
		Invoice:   ToInvoiceResponse(invoice),
		PublicURL: invoice.PublicURL,
	}
	o.fanOutAdditionalEmails(ctx, invoice, req.AdditionalEmails, resp)
	return resp, nil
}

// reuseUnsettled refreshes an existing unsettled invoice from the gateway,
// republishing it if it never left draft, and returns it
func (o *InvoiceOrchestrator) reuseUnsettled(ctx context.Context, invoice *billing.Invoice, req CreateInvoiceRequest) (*CreateInvoiceResponse, error) {
	current, err := o.gateway.GetInvoice(ctx, invoice.SquareInvoiceID)
	if err != nil {
		o.logger.Warn("failed to refresh unsettled invoice from gateway",
			zap.String("square_invoice_id", invoice.SquareInvoiceID),
			zap.Error(err))
	} else {
		if !current.Status.IsPublished() {
			if republished, err := o.gateway.PublishInvoice(ctx, current.ID, current.Version); err != nil {
				o.logger.Warn("failed to republish unsettled invoice",
					zap.String("square_invoice_id", current.ID),
					zap.Error(err))
			} else {
				current = republished
			}
		}
		invoice.SetPublicURL(current.PublicURL)
		if err := o.invoiceRepo.Save(ctx, invoice); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
		}
	}

	o.logger.Info("unsettled invoice reused",
		zap.String("order_id", invoice.OrderID.String()),
		zap.String("square_invoice_id", invoice.SquareInvoiceID))

	resp := &CreateInvoiceResponse{
		Invoice:   ToInvoiceResponse(invoice),
		PublicURL: invoice.PublicURL,
	}
	o.fanOutAdditionalEmails(ctx, invoice, req.AdditionalEmails, resp)
	return resp, nil
}

// PublishInvoice makes an invoice payable at the gateway. Publishing an
// already-published invoice is not an error.
func (o *InvoiceOrchestrator) PublishInvoice(ctx context.Context, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	invoice, err := o.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	current, err := o.gateway.GetInvoice(ctx, invoice.SquareInvoiceID)
	if err != nil {
		return nil, fmt.Errorf("fetching gateway invoice: %w", err)
	}

	if current.Status.IsPublished() {
		o.logger.Info("invoice already published",
			zap.String("square_invoice_id", invoice.SquareInvoiceID))
	} else {
		published, err := o.gateway.PublishInvoice(ctx, current.ID, current.Version)
		if err != nil {
			return nil, fmt.Errorf("publishing gateway invoice: %w", err)
		}
		current = published
	}

	invoice.SetPublicURL(current.PublicURL)
	if err := o.invoiceRepo.Save(ctx, invoice); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	resp := ToInvoiceResponse(invoice)
	return &resp, nil
}

// CancelInvoice cancels an invoice locally and at the gateway. Cancelling
// a paid invoice is a conflict; an already-cancelled one is a no-op that
// never reaches the gateway.
func (o *InvoiceOrchestrator) CancelInvoice(ctx context.Context, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	invoice, err := o.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if invoice.IsCancelled() {
		resp := ToInvoiceResponse(invoice)
		return &resp, nil
	}
	if err := invoice.MarkCancelled(); err != nil {
		return nil, err
	}

	current, err := o.gateway.GetInvoice(ctx, invoice.SquareInvoiceID)
	if err != nil {
		return nil, fmt.Errorf("fetching gateway invoice: %w", err)
	}
	if err := o.gateway.CancelInvoice(ctx, current.ID, current.Version); err != nil {
		return nil, fmt.Errorf("cancelling gateway invoice: %w", err)
	}

	if err := o.invoiceRepo.Save(ctx, invoice); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	o.logger.Info("invoice cancelled",
		zap.String("square_invoice_id", invoice.SquareInvoiceID))

	resp := ToInvoiceResponse(invoice)
	return &resp, nil
}

// SendInvoiceEmail resends an invoice to one recipient by superseding it:
// the old invoice is cancelled and a fresh gateway invoice with EMAIL
// delivery to the requested recipient is created and published. The
// gateway sends the email as part of publishing. The cancelled record is
// kept; invoices are never deleted.
func (o *InvoiceOrchestrator) SendInvoiceEmail(ctx context.Context, req SendInvoiceEmailRequest) (*InvoiceResponse, error) {
	invoice, err := o.invoiceRepo.FindByID(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.IsCancelled() {
		return nil, shared.NewDomainError("CONFLICT", "Cannot resend a cancelled invoice")
	}
	if invoice.IsPaid() {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot resend a paid invoice")
	}

	order, err := o.orderRepo.FindByID(ctx, invoice.OrderID)
	if err != nil {
		return nil, err
	}

	recipient := req.RecipientEmail
	if recipient == "" {
		recipient = invoice.RecipientEmail
	}
	if recipient == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Resending requires a recipient email")
	}

	customerID, err := o.resolver.Resolve(ctx, order.ClientID, recipient)
	if err != nil {
		if errors.Is(err, shared.ErrNoPayerIdentity) {
			return nil, err
		}
		return nil, fmt.Errorf("resolving payer identity: %w", err)
	}

	// Retire the superseded invoice first so the fresh one can take the
	// order's single unsettled slot. Gateway-side cancel failures are
	// logged only; the abandoned invoice collects into the same ledger.
	if current, gwErr := o.gateway.GetInvoice(ctx, invoice.SquareInvoiceID); gwErr != nil {
		o.logger.Warn("failed to fetch superseded invoice from gateway",
			zap.String("square_invoice_id", invoice.SquareInvoiceID),
			zap.Error(gwErr))
	} else if gwErr := o.gateway.CancelInvoice(ctx, current.ID, current.Version); gwErr != nil {
		o.logger.Warn("failed to cancel superseded invoice at gateway",
			zap.String("square_invoice_id", invoice.SquareInvoiceID),
			zap.Error(gwErr))
	}
	if err := invoice.MarkCancelled(); err != nil {
		return nil, err
	}
	if err := o.invoiceRepo.Save(ctx, invoice); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	invoiceNumber, err := o.nextInvoiceNumber(ctx, order)
	if err != nil {
		return nil, err
	}

	published, err := o.issueGatewayInvoice(ctx, order, customerID, invoiceNumber, billing.DeliveryMethodEmail, recipient)
	if err != nil {
		return nil, err
	}

	amount, err := valueobject.NewMoney(order.Total, valueobject.DefaultCurrency)
	if err != nil {
		return nil, err
	}

	fresh, err := billing.NewInvoice(order.ID, published.ID, invoiceNumber, billing.DeliveryMethodEmail, amount, recipient)
	if err != nil {
		return nil, err
	}
	fresh.SetPublicURL(published.PublicURL)
	fresh.MarkEmailSent(time.Now())

	if err := o.invoiceRepo.Save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	o.logger.Info("invoice resent under fresh gateway id",
		zap.String("order_id", order.ID.String()),
		zap.String("superseded_square_invoice_id", invoice.SquareInvoiceID),
		zap.String("square_invoice_id", fresh.SquareInvoiceID),
		zap.String("recipient", recipient))

	resp := ToInvoiceResponse(fresh)
	return &resp, nil
}

// ListByOrder returns every invoice ever issued for an order
func (o *InvoiceOrchestrator) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]InvoiceResponse, error) {
	invoices, err := o.invoiceRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		out[i] = ToInvoiceResponse(&invoices[i])
	}
	return out, nil
}

// nextInvoiceNumber returns the order number for the first invoice and a
// "-<n>" suffixed number for each later one, satisfying the gateway's
// per-order uniqueness constraint
func (o *InvoiceOrchestrator) nextInvoiceNumber(ctx context.Context, order *ordering.Order) (string, error) {
	count, err := o.invoiceRepo.CountByOrderID(ctx, order.ID)
	if err != nil {
		return "", err
	}
	if count == 0 {
		return order.OrderNumber, nil
	}
	return fmt.Sprintf("%s-%d", order.OrderNumber, count+1), nil
}

// issueGatewayInvoice mirrors the order into a gateway sales order, then
// creates and publishes a gateway invoice against it. A publish failure
// leaves the draft at the gateway and is logged rather than returned;
// the caller persists the local record so a later call can republish.
func (o *InvoiceOrchestrator) issueGatewayInvoice(ctx context.Context, order *ordering.Order, customerID, invoiceNumber string, method billing.DeliveryMethod, recipientEmail string) (*billing.GatewayInvoice, error) {
	salesOrder, err := o.gateway.CreateSalesOrder(ctx, billing.CreateSalesOrderParams{
		ReferenceID: order.ID.String(),
		LineItems:   buildLineItems(order),
	})
	if err != nil {
		return nil, fmt.Errorf("creating gateway sales order: %w", err)
	}

	now := time.Now()
	gwInvoice, err := o.gateway.CreateInvoice(ctx, billing.CreateInvoiceParams{
		SalesOrderID:   salesOrder.ID,
		CustomerID:     customerID,
		InvoiceNumber:  invoiceNumber,
		Title:          "Inflight Catering " + order.OrderNumber,
		DeliveryMethod: method,
		RecipientEmail: recipientEmail,
		DueDate:        now.AddDate(0, 0, o.config.DueDays),
		ScheduledAt:    now.Add(o.config.ScheduleOffset),
	})
	if err != nil {
		return nil, fmt.Errorf("creating gateway invoice: %w", err)
	}

	published, err := o.gateway.PublishInvoice(ctx, gwInvoice.ID, gwInvoice.Version)
	if err != nil {
		o.logger.Error("gateway invoice publish failed",
			zap.String("order_id", order.ID.String()),
			zap.String("square_invoice_id", gwInvoice.ID),
			zap.Error(err))
		published = gwInvoice
	}
	return published, nil
}

// fanOutAdditionalEmails sends the invoice to extra recipients on a
// best-effort basis; per-address failures are reported, never fatal
func (o *InvoiceOrchestrator) fanOutAdditionalEmails(ctx context.Context, invoice *billing.Invoice, recipients []string, resp *CreateInvoiceResponse) {
	resp.AdditionalEmailsSent = make([]string, 0, len(recipients))
	resp.AdditionalEmailsFailed = make(map[string]string)

	for _, addr := range recipients {
		if o.emailSender == nil {
			resp.AdditionalEmailsFailed[addr] = "invoice email delivery is not configured"
			continue
		}
		if err := o.emailSender.SendInvoiceEmail(ctx, invoice, addr); err != nil {
			o.logger.Warn("additional invoice email failed",
				zap.String("recipient", addr),
				zap.Error(err))
			resp.AdditionalEmailsFailed[addr] = err.Error()
			continue
		}
		resp.AdditionalEmailsSent = append(resp.AdditionalEmailsSent, addr)
	}
}

// buildLineItems mirrors the order's items plus every non-zero fee into
// gateway line items in integer minor units
func buildLineItems(order *ordering.Order) []billing.LineItem {
	items := make([]billing.LineItem, 0, len(order.Items)+7)
	for _, item := range order.Items {
		items = append(items, billing.LineItem{
			Name:        item.Name,
			Quantity:    "1",
			AmountCents: valueobject.NewMoneyUSD(item.Price).Cents(),
			Currency:    valueobject.DefaultCurrency,
		})
	}

	fees := []struct {
		name   string
		amount decimal.Decimal
	}{
		{"Service Fee", order.Fees.Service},
		{"Delivery Fee", order.Fees.Delivery},
		{"Coordination Fee", order.Fees.Coordination},
		{"Airport Fee", order.Fees.Airport},
		{"FBO Fee", order.Fees.FBO},
		{"Shopping Fee", order.Fees.Shopping},
		{"Pickup Fee", order.Fees.Pickup},
	}
	for _, fee := range fees {
		if fee.amount.IsZero() || fee.amount.IsNegative() {
			continue
		}
		items = append(items, billing.LineItem{
			Name:        fee.name,
			Quantity:    "1",
			AmountCents: valueobject.NewMoneyUSD(fee.amount).Cents(),
			Currency:    valueobject.DefaultCurrency,
		})
	}
	return items
}
