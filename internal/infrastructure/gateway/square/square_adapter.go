package square

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skyfare/backend/internal/domain/billing"
	"github.com/skyfare/backend/internal/domain/shared"
	"github.com/skyfare/backend/internal/domain/shared/valueobject"
)

const (
	customersPath       = "/v2/customers"
	customersSearchPath = "/v2/customers/search"
	ordersPath          = "/v2/orders"
	invoicesPath        = "/v2/invoices"
	invoicePath         = "/v2/invoices/%s"
	invoicePublishPath  = "/v2/invoices/%s/publish"
	invoiceCancelPath   = "/v2/invoices/%s/cancel"
	paymentsPath        = "/v2/payments"
	cardsPath           = "/v2/cards"
)

// Adapter implements billing.Gateway against the Square REST API
type Adapter struct {
	config     *Config
	httpClient *http.Client
}

var _ billing.Gateway = (*Adapter)(nil)

// NewAdapter creates a new Square adapter
func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// CreateCustomer creates a customer record in Square
func (a *Adapter) CreateCustomer(ctx context.Context, params billing.CreateCustomerParams) (*billing.Customer, error) {
	body := createCustomerRequest{
		IdempotencyKey: uuid.NewString(),
		GivenName:      params.DisplayName,
		EmailAddress:   params.Email,
		PhoneNumber:    params.Phone,
		ReferenceID:    params.ReferenceID,
	}

	var resp createCustomerResponse
	if err := a.doJSON(ctx, http.MethodPost, customersPath, body, &resp); err != nil {
		return nil, err
	}
	if resp.Customer == nil || resp.Customer.ID == "" {
		return nil, fmt.Errorf("%w: create customer returned no customer", billing.ErrGatewayInvalidResponse)
	}
	return toCustomer(resp.Customer), nil
}

// SearchCustomerByEmail looks up a customer by exact email match. Returns
// shared.ErrNotFound when no customer matches.
func (a *Adapter) SearchCustomerByEmail(ctx context.Context, email string) (*billing.Customer, error) {
	body := searchCustomersRequest{
		Query: searchCustomersQuery{
			Filter: searchCustomersFilter{
				EmailAddress: &exactFilter{Exact: email},
			},
		},
		Limit: 1,
	}

	var resp searchCustomersResponse
	if err := a.doJSON(ctx, http.MethodPost, customersSearchPath, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Customers) == 0 {
		return nil, shared.ErrNotFound
	}
	return toCustomer(&resp.Customers[0]), nil
}

// CreateSalesOrder creates the line-item order an invoice bills against
func (a *Adapter) CreateSalesOrder(ctx context.Context, params billing.CreateSalesOrderParams) (*billing.SalesOrder, error) {
	items := make([]squareOrderLineItem, 0, len(params.LineItems))
	for _, li := range params.LineItems {
		items = append(items, squareOrderLineItem{
			Name:     li.Name,
			Quantity: li.Quantity,
			BasePriceMoney: squareMoney{
				Amount:   li.AmountCents,
				Currency: string(li.Currency),
			},
		})
	}

	body := createOrderRequest{
		IdempotencyKey: uuid.NewString(),
		Order: squareOrder{
			LocationID:  a.config.LocationID,
			ReferenceID: params.ReferenceID,
			LineItems:   items,
		},
	}

	var resp createOrderResponse
	if err := a.doJSON(ctx, http.MethodPost, ordersPath, body, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil || resp.Order.ID == "" {
		return nil, fmt.Errorf("%w: create order returned no order", billing.ErrGatewayInvalidResponse)
	}
	return &billing.SalesOrder{ID: resp.Order.ID, Version: resp.Order.Version}, nil
}

// CreateInvoice creates a draft invoice for a previously created order
func (a *Adapter) CreateInvoice(ctx context.Context, params billing.CreateInvoiceParams) (*billing.GatewayInvoice, error) {
	recipient := &squareInvoiceRecipient{CustomerID: params.CustomerID}
	if params.DeliveryMethod == billing.DeliveryMethodEmail {
		recipient.EmailAddress = params.RecipientEmail
	}

	inv := squareInvoice{
		LocationID:       a.config.LocationID,
		OrderID:          params.SalesOrderID,
		InvoiceNumber:    params.InvoiceNumber,
		Title:            params.Title,
		DeliveryMethod:   string(params.DeliveryMethod),
		ScheduledAt:      params.ScheduledAt.UTC().Format(time.RFC3339),
		PrimaryRecipient: recipient,
		PaymentRequests: []squarePaymentRequest{{
			RequestType: "BALANCE",
			DueDate:     params.DueDate.UTC().Format("2006-01-02"),
		}},
		AcceptedPaymentMethods: &squareAcceptedPaymentMethods{Card: true},
	}

	body := createInvoiceRequest{
		IdempotencyKey: uuid.NewString(),
		Invoice:        inv,
	}

	var resp invoiceEnvelope
	if err := a.doJSON(ctx, http.MethodPost, invoicesPath, body, &resp); err != nil {
		return nil, err
	}
	return resolveInvoice(&resp)
}

// PublishInvoice moves a draft invoice to its payable state
func (a *Adapter) PublishInvoice(ctx context.Context, invoiceID string, version int) (*billing.GatewayInvoice, error) {
	body := publishInvoiceRequest{
		Version:        version,
		IdempotencyKey: uuid.NewString(),
	}

	var resp invoiceEnvelope
	path := fmt.Sprintf(invoicePublishPath, invoiceID)
	if err := a.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return resolveInvoice(&resp)
}

// CancelInvoice cancels an invoice at the gateway
func (a *Adapter) CancelInvoice(ctx context.Context, invoiceID string, version int) error {
	body := cancelInvoiceRequest{Version: version}
	path := fmt.Sprintf(invoiceCancelPath, invoiceID)

	var resp invoiceEnvelope
	return a.doJSON(ctx, http.MethodPost, path, body, &resp)
}

// GetInvoice fetches the current gateway state of an invoice
func (a *Adapter) GetInvoice(ctx context.Context, invoiceID string) (*billing.GatewayInvoice, error) {
	var resp invoiceEnvelope
	path := fmt.Sprintf(invoicePath, invoiceID)
	if err := a.doJSONRetry(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resolveInvoice(&resp)
}

// CreatePayment charges a payment source. The caller supplies the
// idempotency key so a retried application request cannot double charge.
func (a *Adapter) CreatePayment(ctx context.Context, params billing.CreatePaymentParams) (*billing.Payment, error) {
	key := params.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	body := createPaymentRequest{
		IdempotencyKey: key,
		SourceID:       params.SourceID,
		CustomerID:     params.CustomerID,
		LocationID:     a.config.LocationID,
		AmountMoney: squareMoney{
			Amount:   params.AmountCents,
			Currency: string(params.Currency),
		},
		ReferenceID:  params.ReferenceID,
		Note:         params.Note,
		Autocomplete: true,
	}

	var resp createPaymentResponse
	if err := a.doJSON(ctx, http.MethodPost, paymentsPath, body, &resp); err != nil {
		return nil, err
	}
	if resp.Payment == nil || resp.Payment.ID == "" {
		return nil, fmt.Errorf("%w: create payment returned no payment", billing.ErrGatewayInvalidResponse)
	}

	payment := &billing.Payment{
		ID:          resp.Payment.ID,
		Status:      resp.Payment.Status,
		AmountCents: resp.Payment.AmountMoney.Amount,
		Currency:    valueobject.Currency(resp.Payment.AmountMoney.Currency),
		ReceiptURL:  resp.Payment.ReceiptURL,
	}
	if resp.Payment.CardDetails != nil && resp.Payment.CardDetails.Card != nil {
		payment.CardBrand = resp.Payment.CardDetails.Card.CardBrand
		payment.CardLast4 = resp.Payment.CardDetails.Card.Last4
	}
	return payment, nil
}

// CreateCard stores a card on file for a customer
func (a *Adapter) CreateCard(ctx context.Context, params billing.CreateCardParams) (*billing.Card, error) {
	body := createCardRequest{
		IdempotencyKey: uuid.NewString(),
		SourceID:       params.SourceID,
		Card: squareCard{
			CustomerID: params.CustomerID,
		},
	}

	var resp createCardResponse
	if err := a.doJSON(ctx, http.MethodPost, cardsPath, body, &resp); err != nil {
		return nil, err
	}
	if resp.Card == nil || resp.Card.ID == "" {
		return nil, fmt.Errorf("%w: create card returned no card", billing.ErrGatewayInvalidResponse)
	}
	return &billing.Card{
		ID:         resp.Card.ID,
		CustomerID: resp.Card.CustomerID,
		Brand:      resp.Card.CardBrand,
		Last4:      resp.Card.Last4,
		ExpMonth:   resp.Card.ExpMonth,
		ExpYear:    resp.Card.ExpYear,
	}, nil
}

// doJSON performs one request and decodes the response into out
func (a *Adapter) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	respBody, statusCode, err := a.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return a.decodeResponse(path, statusCode, respBody, out)
}

// doJSONRetry is doJSON with a single retry, used only for idempotent reads
func (a *Adapter) doJSONRetry(ctx context.Context, method, path string, body, out interface{}) error {
	respBody, statusCode, err := a.doRequest(ctx, method, path, body)
	if err != nil || statusCode >= http.StatusInternalServerError {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
		respBody, statusCode, err = a.doRequest(ctx, method, path, body)
	}
	if err != nil {
		return err
	}
	return a.decodeResponse(path, statusCode, respBody, out)
}

// doRequest performs an HTTP request to the Square API
func (a *Adapter) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.config.AccessToken)
	req.Header.Set("Square-Version", a.config.APIVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", billing.ErrGatewayRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// decodeResponse maps the API status and error envelope to domain errors
// and unmarshals successful payloads
func (a *Adapter) decodeResponse(path string, statusCode int, respBody []byte, out interface{}) error {
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		var errResp squareErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && len(errResp.Errors) > 0 {
			first := errResp.Errors[0]
			if statusCode == http.StatusNotFound || first.Code == "NOT_FOUND" {
				return fmt.Errorf("%w: %s", notFoundError(path), first.Detail)
			}
			return fmt.Errorf("%w: %s %s: %s", billing.ErrGatewayRequestFailed, first.Category, first.Code, first.Detail)
		}
		return fmt.Errorf("%w: status %d", billing.ErrGatewayRequestFailed, statusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %v", billing.ErrGatewayInvalidResponse, err)
	}
	return nil
}

// notFoundError picks the missing-resource sentinel by request path
func notFoundError(path string) error {
	if strings.HasPrefix(path, invoicesPath) {
		return billing.ErrGatewayInvoiceMissing
	}
	if strings.HasPrefix(path, customersPath) {
		return billing.ErrGatewayCustomerMissing
	}
	return billing.ErrGatewayRequestFailed
}

func toCustomer(c *squareCustomer) *billing.Customer {
	name := c.GivenName
	if name == "" {
		name = c.CompanyName
	}
	return &billing.Customer{
		ID:          c.ID,
		Email:       c.EmailAddress,
		Phone:       c.PhoneNumber,
		DisplayName: name,
	}
}

// resolveInvoice normalizes every invoice-bearing response to one shape
func resolveInvoice(resp *invoiceEnvelope) (*billing.GatewayInvoice, error) {
	if resp.Invoice == nil || resp.Invoice.ID == "" {
		return nil, fmt.Errorf("%w: response carried no invoice", billing.ErrGatewayInvalidResponse)
	}
	inv := resp.Invoice

	out := &billing.GatewayInvoice{
		ID:            inv.ID,
		Version:       inv.Version,
		Status:        billing.GatewayInvoiceStatus(inv.Status),
		InvoiceNumber: inv.InvoiceNumber,
		PublicURL:     inv.PublicURL,
	}
	if inv.PrimaryRecipient != nil {
		out.RecipientEmail = inv.PrimaryRecipient.EmailAddress
	}
	if inv.NextPaymentAmountMoney != nil {
		out.AmountCents = inv.NextPaymentAmountMoney.Amount
		out.Currency = valueobject.Currency(inv.NextPaymentAmountMoney.Currency)
	}
	return out, nil
}
