package billing

import (
	"context"

	"github.com/google/uuid"
)

// InvoiceRepository defines persistence operations for invoices
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindBySquareInvoiceID(ctx context.Context, squareInvoiceID string) (*Invoice, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]Invoice, error)
	// FindUnsettledByOrderID returns the order's pending-or-failed invoice,
	// or shared.ErrNotFound. At most one can exist; the schema enforces it.
	FindUnsettledByOrderID(ctx context.Context, orderID uuid.UUID) (*Invoice, error)
	CountByOrderID(ctx context.Context, orderID uuid.UUID) (int64, error)
	Save(ctx context.Context, invoice *Invoice) error
}

// PaymentTransactionRepository defines persistence operations for the
// payment ledger
type PaymentTransactionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentTransaction, error)
	FindBySquarePaymentID(ctx context.Context, squarePaymentID string) (*PaymentTransaction, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]PaymentTransaction, error)
	// HasCompletedForOrder reports whether any completed transaction exists
	// for the order (the double-payment guard for direct charges)
	HasCompletedForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	// Save inserts or updates a transaction. Inserting a duplicate gateway
	// payment id must fail with shared.ErrAlreadyExists; a unique column
	// backs this, not a read-then-write check.
	Save(ctx context.Context, tx *PaymentTransaction) error
}

// StoredCardRepository defines persistence operations for stored cards
type StoredCardRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StoredCard, error)
	FindByClientID(ctx context.Context, clientID uuid.UUID) ([]StoredCard, error)
	Save(ctx context.Context, card *StoredCard) error
	// SetDefault makes the given card the client's only default by
	// unsetting every other card first, atomically
	SetDefault(ctx context.Context, clientID, cardID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}
