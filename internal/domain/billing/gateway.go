package billing

import (
	"context"
	"errors"
	"time"

	"github.com/skyfare/backend/internal/domain/shared/valueobject"
)

// Gateway errors. Adapters wrap transport and API failures in these so
// callers never inspect raw gateway responses.
var (
	ErrGatewayRequestFailed   = errors.New("gateway: request failed")
	ErrGatewayInvalidResponse = errors.New("gateway: invalid response")
	ErrGatewayCustomerMissing = errors.New("gateway: customer not found")
	ErrGatewayInvoiceMissing  = errors.New("gateway: invoice not found")
)

// GatewayInvoiceStatus is the gateway-side invoice lifecycle status,
// normalized across response shapes
type GatewayInvoiceStatus string

const (
	GatewayInvoiceStatusDraft     GatewayInvoiceStatus = "DRAFT"
	GatewayInvoiceStatusScheduled GatewayInvoiceStatus = "SCHEDULED"
	GatewayInvoiceStatusUnpaid    GatewayInvoiceStatus = "UNPAID"
	GatewayInvoiceStatusPaid      GatewayInvoiceStatus = "PAID"
	GatewayInvoiceStatusCanceled  GatewayInvoiceStatus = "CANCELED"
	GatewayInvoiceStatusFailed    GatewayInvoiceStatus = "FAILED"
)

// IsPublished returns true once the invoice is payable (scheduled or sent)
func (s GatewayInvoiceStatus) IsPublished() bool {
	return s == GatewayInvoiceStatusScheduled || s == GatewayInvoiceStatusUnpaid || s == GatewayInvoiceStatusPaid
}

// Customer is the normalized gateway customer record
type Customer struct {
	ID          string
	Email       string
	Phone       string
	DisplayName string
}

// CreateCustomerParams are the inputs for creating a gateway customer
type CreateCustomerParams struct {
	DisplayName string
	Email       string
	Phone       string
	ReferenceID string
}

// SalesOrder is the normalized gateway sales order (the line-item
// container an invoice bills against)
type SalesOrder struct {
	ID      string
	Version int
}

// LineItem is one gateway order line in integer minor units
type LineItem struct {
	Name        string
	Quantity    string
	AmountCents int64
	Currency    valueobject.Currency
}

// CreateSalesOrderParams are the inputs for creating a gateway sales order
type CreateSalesOrderParams struct {
	ReferenceID string
	LineItems   []LineItem
}

// GatewayInvoice is the normalized gateway invoice record. Every invoice
// operation returns this one shape; the adapter resolves the SDK's
// multi-path response nesting centrally.
type GatewayInvoice struct {
	ID             string
	Version        int
	Status         GatewayInvoiceStatus
	InvoiceNumber  string
	PublicURL      string
	RecipientEmail string
	AmountCents    int64
	Currency       valueobject.Currency
}

// CreateInvoiceParams are the inputs for creating a gateway invoice
type CreateInvoiceParams struct {
	SalesOrderID   string
	CustomerID     string
	InvoiceNumber  string
	Title          string
	DeliveryMethod DeliveryMethod
	RecipientEmail string
	DueDate        time.Time
	// ScheduledAt must be strictly in the future; callers pick an offset
	// large enough to survive clock skew
	ScheduledAt time.Time
}

// Payment is the normalized gateway payment record
type Payment struct {
	ID          string
	Status      string
	AmountCents int64
	Currency    valueobject.Currency
	CardBrand   string
	CardLast4   string
	ReceiptURL  string
}

// CreatePaymentParams are the inputs for charging a payment source
type CreatePaymentParams struct {
	SourceID    string
	CustomerID  string
	AmountCents int64
	Currency    valueobject.Currency
	ReferenceID string
	Note        string
	// IdempotencyKey guards the non-retryable create against duplicates
	IdempotencyKey string
}

// Card is the normalized stored card record
type Card struct {
	ID         string
	CustomerID string
	Brand      string
	Last4      string
	ExpMonth   int
	ExpYear    int
}

// CreateCardParams are the inputs for saving a card on file
type CreateCardParams struct {
	CustomerID string
	SourceID   string
}

// Gateway is the single port to the external billing/payment processor.
// One normalized response shape per operation; ambiguity in the remote
// API is resolved inside the adapter, never by callers.
type Gateway interface {
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)
	// SearchCustomerByEmail returns shared.ErrNotFound when no customer
	// matches the exact email
	SearchCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	CreateSalesOrder(ctx context.Context, params CreateSalesOrderParams) (*SalesOrder, error)
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*GatewayInvoice, error)
	PublishInvoice(ctx context.Context, invoiceID string, version int) (*GatewayInvoice, error)
	CancelInvoice(ctx context.Context, invoiceID string, version int) error
	GetInvoice(ctx context.Context, invoiceID string) (*GatewayInvoice, error)
	CreatePayment(ctx context.Context, params CreatePaymentParams) (*Payment, error)
	CreateCard(ctx context.Context, params CreateCardParams) (*Card, error)
}
