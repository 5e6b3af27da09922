package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skyfare/backend/internal/domain/shared"
	"github.com/skyfare/backend/internal/domain/shared/valueobject"
)

// TransactionStatus represents the status of a payment transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// IsValid checks if the status is a valid TransactionStatus
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusRefunded:
		return true
	}
	return false
}

// PaymentMethod represents how a payment was taken
type PaymentMethod string

const (
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodInvoice PaymentMethod = "invoice"
)

// PaymentTransaction is the single ledger of money movement against an
// order: direct charges and invoice-driven payments both land here.
// Identity (gateway payment id, order, amount) is immutable once created;
// only the status may change. The gateway payment id is unique across the
// ledger, which is what makes webhook redelivery safe.
type PaymentTransaction struct {
	shared.BaseEntity
	OrderID         uuid.UUID       `gorm:"type:uuid;index"`
	SquarePaymentID string          `gorm:"uniqueIndex"`
	Amount          decimal.Decimal `gorm:"type:numeric"`
	Currency        valueobject.Currency
	Method          PaymentMethod
	CardBrand       string
	CardLast4       string
	Status          TransactionStatus `gorm:"index"`
	ProcessedBy     string
	Note            string
}

// NewPaymentTransaction creates a new ledger entry
func NewPaymentTransaction(orderID uuid.UUID, squarePaymentID string, amount valueobject.Money, method PaymentMethod, status TransactionStatus, processedBy string) (*PaymentTransaction, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Order ID cannot be empty")
	}
	if squarePaymentID == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Square payment ID cannot be empty")
	}
	if !status.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Unknown transaction status: "+string(status))
	}

	return &PaymentTransaction{
		BaseEntity:      shared.NewBaseEntity(),
		OrderID:         orderID,
		SquarePaymentID: squarePaymentID,
		Amount:          amount.Amount(),
		Currency:        amount.Currency(),
		Method:          method,
		Status:          status,
		ProcessedBy:     processedBy,
	}, nil
}

// SetCardDetails records the card metadata from the gateway response
func (t *PaymentTransaction) SetCardDetails(brand, last4 string) {
	t.CardBrand = brand
	t.CardLast4 = last4
	t.UpdatedAt = time.Now()
}

// UpdateStatus moves the transaction to a new status. Identity fields
// never change after creation.
func (t *PaymentTransaction) UpdateStatus(status TransactionStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", "Unknown transaction status: "+string(status))
	}

	t.Status = status
	t.UpdatedAt = time.Now()

	return nil
}

// IsCompleted returns true if the payment settled successfully
func (t *PaymentTransaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted
}

// AmountMoney returns the transaction amount as a Money value
func (t *PaymentTransaction) AmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(t.Amount, t.Currency)
	return m
}
