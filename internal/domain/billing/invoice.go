package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skyfare/backend/internal/domain/shared"
	"github.com/skyfare/backend/internal/domain/shared/valueobject"
)

// InvoiceStatus represents the local status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
	InvoiceStatusFailed    InvoiceStatus = "failed"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusCancelled, InvoiceStatusFailed:
		return true
	}
	return false
}

// IsUnsettled returns true while the invoice is still collectible:
// not yet paid and not yet cancelled
func (s InvoiceStatus) IsUnsettled() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusFailed
}

// DeliveryMethod represents how the invoice reaches the payer
type DeliveryMethod string

const (
	DeliveryMethodEmail         DeliveryMethod = "EMAIL"
	DeliveryMethodShareManually DeliveryMethod = "SHARE_MANUALLY"
)

// IsValid checks if the delivery method is valid
func (m DeliveryMethod) IsValid() bool {
	return m == DeliveryMethodEmail || m == DeliveryMethodShareManually
}

// Invoice represents a billing document issued against an order through
// the Square gateway. An order may accumulate several invoices over time
// (resends get a fresh external id) but at most one may be unsettled.
// Amount and currency are frozen at creation. Invoices are never deleted,
// only superseded.
type Invoice struct {
	shared.BaseEntity
	OrderID         uuid.UUID `gorm:"type:uuid;index"`
	SquareInvoiceID string    `gorm:"uniqueIndex"`
	InvoiceNumber   string
	DeliveryMethod  DeliveryMethod
	Status          InvoiceStatus   `gorm:"index"`
	Amount          decimal.Decimal `gorm:"type:numeric"`
	Currency        valueobject.Currency
	RecipientEmail  string
	PublicURL       string
	// ReferenceID maps gateway payment events back to the order
	ReferenceID string `gorm:"index"`
	EmailSentAt *time.Time
	PaidAt      *time.Time
}

// NewInvoice creates a new pending invoice for an order
func NewInvoice(orderID uuid.UUID, squareInvoiceID, invoiceNumber string, method DeliveryMethod, amount valueobject.Money, recipientEmail string) (*Invoice, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Order ID cannot be empty")
	}
	if squareInvoiceID == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Square invoice ID cannot be empty")
	}
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Invoice number cannot be empty")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Unknown delivery method: "+string(method))
	}
	if method == DeliveryMethodEmail && recipientEmail == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Email delivery requires a recipient email")
	}

	return &Invoice{
		BaseEntity:      shared.NewBaseEntity(),
		OrderID:         orderID,
		SquareInvoiceID: squareInvoiceID,
		InvoiceNumber:   invoiceNumber,
		DeliveryMethod:  method,
		Status:          InvoiceStatusPending,
		Amount:          amount.Amount(),
		Currency:        amount.Currency(),
		RecipientEmail:  recipientEmail,
		ReferenceID:     orderID.String(),
	}, nil
}

// IsUnsettled returns true while the invoice is pending or failed
func (i *Invoice) IsUnsettled() bool {
	return i.Status.IsUnsettled()
}

// IsPaid returns true if the invoice was settled
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// IsCancelled returns true if the invoice was cancelled
func (i *Invoice) IsCancelled() bool {
	return i.Status == InvoiceStatusCancelled
}

// MarkPaid settles the invoice
func (i *Invoice) MarkPaid(at time.Time) error {
	if i.Status == InvoiceStatusCancelled {
		return shared.NewDomainError("CONFLICT", "Cannot pay a cancelled invoice")
	}

	i.Status = InvoiceStatusPaid
	i.PaidAt = &at
	i.UpdatedAt = time.Now()

	return nil
}

// MarkCancelled cancels the invoice. Cancelling a paid invoice is a
// conflict; cancelling an already-cancelled one is a no-op.
func (i *Invoice) MarkCancelled() error {
	if i.Status == InvoiceStatusPaid {
		return shared.NewDomainError("CONFLICT", "Cannot cancel a paid invoice")
	}
	if i.Status == InvoiceStatusCancelled {
		return nil
	}

	i.Status = InvoiceStatusCancelled
	i.UpdatedAt = time.Now()

	return nil
}

// MarkFailed records a delivery or collection failure; the invoice
// remains unsettled and reusable by the orchestrator
func (i *Invoice) MarkFailed() {
	i.Status = InvoiceStatusFailed
	i.UpdatedAt = time.Now()
}

// SetPublicURL records the gateway-hosted payment page URL
func (i *Invoice) SetPublicURL(url string) {
	if url == "" {
		return
	}
	i.PublicURL = url
	i.UpdatedAt = time.Now()
}

// MarkEmailSent records when the invoice email went out
func (i *Invoice) MarkEmailSent(at time.Time) {
	i.EmailSentAt = &at
	i.UpdatedAt = time.Now()
}

// AmountMoney returns the frozen amount as a Money value
func (i *Invoice) AmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(i.Amount, i.Currency)
	return m
}
