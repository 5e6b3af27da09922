package square

// squareError is one entry in an API error envelope
type squareError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail,omitempty"`
	Field    string `json:"field,omitempty"`
}

// squareErrorResponse is the error envelope returned on non-2xx statuses
type squareErrorResponse struct {
	Errors []squareError `json:"errors"`
}

// squareMoney is an amount in integer minor units
type squareMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// --- Customers ---

type squareCustomer struct {
	ID           string `json:"id"`
	GivenName    string `json:"given_name,omitempty"`
	FamilyName   string `json:"family_name,omitempty"`
	CompanyName  string `json:"company_name,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	ReferenceID  string `json:"reference_id,omitempty"`
}

type createCustomerRequest struct {
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	GivenName      string `json:"given_name,omitempty"`
	CompanyName    string `json:"company_name,omitempty"`
	EmailAddress   string `json:"email_address,omitempty"`
	PhoneNumber    string `json:"phone_number,omitempty"`
	ReferenceID    string `json:"reference_id,omitempty"`
}

type createCustomerResponse struct {
	Customer *squareCustomer `json:"customer"`
}

type searchCustomersRequest struct {
	Query searchCustomersQuery `json:"query"`
	Limit int                  `json:"limit,omitempty"`
}

type searchCustomersQuery struct {
	Filter searchCustomersFilter `json:"filter"`
}

type searchCustomersFilter struct {
	EmailAddress *exactFilter `json:"email_address,omitempty"`
}

type exactFilter struct {
	Exact string `json:"exact"`
}

type searchCustomersResponse struct {
	Customers []squareCustomer `json:"customers"`
}

// --- Orders ---

type squareOrderLineItem struct {
	Name           string       `json:"name"`
	Quantity       string       `json:"quantity"`
	BasePriceMoney squareMoney  `json:"base_price_money"`
	TotalMoney     *squareMoney `json:"total_money,omitempty"`
}

type squareOrder struct {
	ID          string                `json:"id"`
	LocationID  string                `json:"location_id"`
	ReferenceID string                `json:"reference_id,omitempty"`
	Version     int                   `json:"version"`
	State       string                `json:"state,omitempty"`
	LineItems   []squareOrderLineItem `json:"line_items,omitempty"`
	TotalMoney  *squareMoney          `json:"total_money,omitempty"`
}

type createOrderRequest struct {
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
	Order          squareOrder `json:"order"`
}

type createOrderResponse struct {
	Order *squareOrder `json:"order"`
}

// --- Invoices ---

type squareInvoiceRecipient struct {
	CustomerID   string `json:"customer_id,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
	GivenName    string `json:"given_name,omitempty"`
	CompanyName  string `json:"company_name,omitempty"`
}

type squarePaymentRequest struct {
	RequestType string `json:"request_type"`
	DueDate     string `json:"due_date,omitempty"`
}

type squareAcceptedPaymentMethods struct {
	Card           bool `json:"card"`
	BankAccount    bool `json:"bank_account"`
	SquareGiftCard bool `json:"square_gift_card"`
}

type squareInvoice struct {
	ID                     string                        `json:"id"`
	Version                int                           `json:"version"`
	Status                 string                        `json:"status,omitempty"`
	LocationID             string                        `json:"location_id,omitempty"`
	OrderID                string                        `json:"order_id,omitempty"`
	InvoiceNumber          string                        `json:"invoice_number,omitempty"`
	Title                  string                        `json:"title,omitempty"`
	DeliveryMethod         string                        `json:"delivery_method,omitempty"`
	ScheduledAt            string                        `json:"scheduled_at,omitempty"`
	PublicURL              string                        `json:"public_url,omitempty"`
	PrimaryRecipient       *squareInvoiceRecipient       `json:"primary_recipient,omitempty"`
	PaymentRequests        []squarePaymentRequest        `json:"payment_requests,omitempty"`
	AcceptedPaymentMethods *squareAcceptedPaymentMethods `json:"accepted_payment_methods,omitempty"`
	NextPaymentAmountMoney *squareMoney                  `json:"next_payment_amount_money,omitempty"`
}

type createInvoiceRequest struct {
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	Invoice        squareInvoice `json:"invoice"`
}

type publishInvoiceRequest struct {
	Version        int    `json:"version"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type cancelInvoiceRequest struct {
	Version int `json:"version"`
}

// invoiceEnvelope covers create, publish, get and cancel responses,
// which all wrap the same invoice object
type invoiceEnvelope struct {
	Invoice *squareInvoice `json:"invoice"`
}

// --- Payments ---

type squareCardDetails struct {
	Status string      `json:"status,omitempty"`
	Card   *squareCard `json:"card,omitempty"`
}

type squarePayment struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	AmountMoney squareMoney        `json:"amount_money"`
	ReceiptURL  string             `json:"receipt_url,omitempty"`
	CardDetails *squareCardDetails `json:"card_details,omitempty"`
	ReferenceID string             `json:"reference_id,omitempty"`
	Note        string             `json:"note,omitempty"`
}

type createPaymentRequest struct {
	IdempotencyKey string      `json:"idempotency_key"`
	SourceID       string      `json:"source_id"`
	CustomerID     string      `json:"customer_id,omitempty"`
	LocationID     string      `json:"location_id,omitempty"`
	AmountMoney    squareMoney `json:"amount_money"`
	ReferenceID    string      `json:"reference_id,omitempty"`
	Note           string      `json:"note,omitempty"`
	Autocomplete   bool        `json:"autocomplete"`
}

type createPaymentResponse struct {
	Payment *squarePayment `json:"payment"`
}

// --- Cards ---

type squareCard struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id,omitempty"`
	CardBrand  string `json:"card_brand,omitempty"`
	Last4      string `json:"last_4,omitempty"`
	ExpMonth   int    `json:"exp_month,omitempty"`
	ExpYear    int    `json:"exp_year,omitempty"`
	Enabled    bool   `json:"enabled,omitempty"`
}

type createCardRequest struct {
	IdempotencyKey string     `json:"idempotency_key"`
	SourceID       string     `json:"source_id"`
	Card           squareCard `json:"card"`
}

type createCardResponse struct {
	Card *squareCard `json:"card"`
}
