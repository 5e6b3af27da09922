package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skyfare/backend/internal/domain/billing"
)

// CreateInvoiceRequest represents a request to invoice an order
type CreateInvoiceRequest struct {
	DeliveryMethod   string   `json:"delivery_method" binding:"required,oneof=EMAIL SHARE_MANUALLY"`
	RecipientEmail   string   `json:"recipient_email" binding:"omitempty,email"`
	AdditionalEmails []string `json:"additional_emails" binding:"omitempty,dive,email"`
}

// CreateInvoiceResponse returns the invoice plus the best-effort fan-out
// results for additional recipients
type CreateInvoiceResponse struct {
	Invoice                InvoiceResponse   `json:"invoice"`
	PublicURL              string            `json:"public_url,omitempty"`
	AdditionalEmailsSent   []string          `json:"additional_emails_sent"`
	AdditionalEmailsFailed map[string]string `json:"additional_emails_failed"`
}

// SendInvoiceEmailRequest represents a request to resend an invoice email
type SendInvoiceEmailRequest struct {
	InvoiceID      uuid.UUID `json:"invoice_id" binding:"required"`
	RecipientEmail string    `json:"recipient_email" binding:"required,email"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"order_id"`
	SquareInvoiceID string          `json:"square_invoice_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	DeliveryMethod  string          `json:"delivery_method"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	RecipientEmail  string          `json:"recipient_email,omitempty"`
	PublicURL       string          `json:"public_url,omitempty"`
	EmailSentAt     *time.Time      `json:"email_sent_at,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ToInvoiceResponse converts a domain invoice to a response DTO
func ToInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:              inv.ID,
		OrderID:         inv.OrderID,
		SquareInvoiceID: inv.SquareInvoiceID,
		InvoiceNumber:   inv.InvoiceNumber,
		DeliveryMethod:  string(inv.DeliveryMethod),
		Status:          string(inv.Status),
		Amount:          inv.Amount,
		Currency:        string(inv.Currency),
		RecipientEmail:  inv.RecipientEmail,
		PublicURL:       inv.PublicURL,
		EmailSentAt:     inv.EmailSentAt,
		PaidAt:          inv.PaidAt,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
	}
}

// DirectPaymentRequest represents an admin-initiated charge against an
// order using a card nonce or a stored card
type DirectPaymentRequest struct {
	// SourceID is a one-time card nonce from the payment form
	SourceID string `json:"source_id"`
	// StoredCardID charges a saved card instead of a nonce
	StoredCardID *uuid.UUID `json:"stored_card_id"`
	// StoreCard saves the charged card on file for future use
	StoreCard   bool   `json:"store_card"`
	Note        string `json:"note"`
	ProcessedBy string `json:"processed_by" binding:"required"`
}

// TransactionResponse represents a ledger entry in API responses
type TransactionResponse struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"order_id"`
	SquarePaymentID string          `json:"square_payment_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Method          string          `json:"method"`
	CardBrand       string          `json:"card_brand,omitempty"`
	CardLast4       string          `json:"card_last_4,omitempty"`
	Status          string          `json:"status"`
	ProcessedBy     string          `json:"processed_by,omitempty"`
	Note            string          `json:"note,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ToTransactionResponse converts a ledger entry to a response DTO
func ToTransactionResponse(tx *billing.PaymentTransaction) TransactionResponse {
	return TransactionResponse{
		ID:              tx.ID,
		OrderID:         tx.OrderID,
		SquarePaymentID: tx.SquarePaymentID,
		Amount:          tx.Amount,
		Currency:        string(tx.Currency),
		Method:          string(tx.Method),
		CardBrand:       tx.CardBrand,
		CardLast4:       tx.CardLast4,
		Status:          string(tx.Status),
		ProcessedBy:     tx.ProcessedBy,
		Note:            tx.Note,
		CreatedAt:       tx.CreatedAt,
	}
}

// StoredCardResponse represents a saved card in API responses
type StoredCardResponse struct {
	ID        uuid.UUID `json:"id"`
	ClientID  uuid.UUID `json:"client_id"`
	Brand     string    `json:"brand"`
	Last4     string    `json:"last_4"`
	ExpMonth  int       `json:"exp_month"`
	ExpYear   int       `json:"exp_year"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// ToStoredCardResponse converts a stored card to a response DTO
func ToStoredCardResponse(card *billing.StoredCard) StoredCardResponse {
	return StoredCardResponse{
		ID:        card.ID,
		ClientID:  card.ClientID,
		Brand:     card.Brand,
		Last4:     card.Last4,
		ExpMonth:  card.ExpMonth,
		ExpYear:   card.ExpYear,
		IsDefault: card.IsDefault,
		CreatedAt: card.CreatedAt,
	}
}

// webhookEvent is the gateway's event envelope
type webhookEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
	Data    struct {
		Object struct {
			Invoice        *webhookInvoice        `json:"invoice"`
			InvoicePayment *webhookInvoicePayment `json:"invoice_payment"`
		} `json:"object"`
	} `json:"data"`
}

// webhookInvoice is the invoice object embedded in invoice events
type webhookInvoice struct {
	ID              string `json:"id"`
	ReferenceID     string `json:"reference_id"`
	Status          string `json:"status"`
	PaymentRequests []struct {
		TotalCompletedAmountMoney *webhookMoney `json:"total_completed_amount_money"`
	} `json:"payment_requests"`
}

// completedAmount returns the total the gateway reports as collected
// across the invoice's payment requests, or nil if none is present
func (i *webhookInvoice) completedAmount() *webhookMoney {
	for _, pr := range i.PaymentRequests {
		if pr.TotalCompletedAmountMoney != nil && pr.TotalCompletedAmountMoney.Amount > 0 {
			return pr.TotalCompletedAmountMoney
		}
	}
	return nil
}

// webhookInvoicePayment carries the payment id for fulfilled events
type webhookInvoicePayment struct {
	PaymentID string        `json:"payment_id"`
	Amount    *webhookMoney `json:"amount_money"`
}

// webhookMoney is an amount in integer minor units
type webhookMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}
