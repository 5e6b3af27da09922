package ordering

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skyfare/backend/internal/domain/shared"
)

// OrderStatus represents the status of a catering order
type OrderStatus string

const (
	OrderStatusAwaitingQuote          OrderStatus = "awaiting_quote"
	OrderStatusAwaitingClientApproval OrderStatus = "awaiting_client_approval"
	OrderStatusAwaitingCaterer        OrderStatus = "awaiting_caterer"
	OrderStatusCatererConfirmed       OrderStatus = "caterer_confirmed"
	OrderStatusInPreparation          OrderStatus = "in_preparation"
	OrderStatusReadyForDelivery       OrderStatus = "ready_for_delivery"
	OrderStatusDelivered              OrderStatus = "delivered"
	OrderStatusPaid                   OrderStatus = "paid"
	OrderStatusCancelled              OrderStatus = "cancelled"
	OrderStatusOrderChanged           OrderStatus = "order_changed"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusAwaitingQuote, OrderStatusAwaitingClientApproval,
		OrderStatusAwaitingCaterer, OrderStatusCatererConfirmed,
		OrderStatusInPreparation, OrderStatusReadyForDelivery,
		OrderStatusDelivered, OrderStatusPaid,
		OrderStatusCancelled, OrderStatusOrderChanged:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal returns true for statuses from which no further progress is expected
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled || s == OrderStatusOrderChanged
}

// StampsCompletion returns true for statuses that record the completion time
func (s OrderStatus) StampsCompletion() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Next returns the next status in the regular preparation flow, or empty
// if the status has no automatic successor. Used by the auto-transition
// scheduler; billing transitions (delivered -> paid) never happen here.
func (s OrderStatus) Next() OrderStatus {
	switch s {
	case OrderStatusCatererConfirmed:
		return OrderStatusInPreparation
	case OrderStatusInPreparation:
		return OrderStatusReadyForDelivery
	case OrderStatusReadyForDelivery:
		return OrderStatusDelivered
	}
	return ""
}

// OrderItem represents a catering line item in an order
type OrderItem struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID      uuid.UUID `gorm:"type:uuid;index"`
	Name         string
	Description  string
	Portion      string
	Price        decimal.Decimal `gorm:"type:numeric"`
	DisplayOrder int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewOrderItem creates a new order item
func NewOrderItem(orderID uuid.UUID, name, description, portion string, price decimal.Decimal, displayOrder int) (*OrderItem, error) {
	if name == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Item name cannot be empty")
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Item price must be positive")
	}

	now := time.Now()
	return &OrderItem{
		ID:           uuid.New(),
		OrderID:      orderID,
		Name:         name,
		Description:  description,
		Portion:      portion,
		Price:        price,
		DisplayOrder: displayOrder,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Fees holds the per-order fee amounts
type Fees struct {
	Service      decimal.Decimal `gorm:"type:numeric"`
	Delivery     decimal.Decimal `gorm:"type:numeric"`
	Coordination decimal.Decimal `gorm:"type:numeric"`
	Airport      decimal.Decimal `gorm:"type:numeric"`
	FBO          decimal.Decimal `gorm:"type:numeric;column:fbo_fee"`
	Shopping     decimal.Decimal `gorm:"type:numeric"`
	Pickup       decimal.Decimal `gorm:"type:numeric"`
}

// Validate checks that no fee is negative
func (f Fees) Validate() error {
	for _, fee := range []decimal.Decimal{f.Service, f.Delivery, f.Coordination, f.Airport, f.FBO, f.Shopping, f.Pickup} {
		if fee.IsNegative() {
			return shared.NewDomainError("VALIDATION_ERROR", "Fees cannot be negative")
		}
	}
	return nil
}

// Sum returns the total of all fees
func (f Fees) Sum() decimal.Decimal {
	return f.Service.
		Add(f.Delivery).
		Add(f.Coordination).
		Add(f.Airport).
		Add(f.FBO).
		Add(f.Shopping).
		Add(f.Pickup)
}

// Order represents an inflight-catering order aggregate root.
// Subtotal is always the sum of item prices and Total is always
// Subtotal plus all fees; every mutation re-establishes both.
type Order struct {
	shared.BaseEntity
	OrderNumber   string          `gorm:"uniqueIndex"`
	ClientID      uuid.UUID       `gorm:"type:uuid;index"`
	Status        OrderStatus     `gorm:"index"`
	Items         []OrderItem     `gorm:"foreignKey:OrderID"`
	Fees          Fees            `gorm:"embedded;embeddedPrefix:fee_"`
	Subtotal      decimal.Decimal `gorm:"type:numeric"`
	Total         decimal.Decimal `gorm:"type:numeric"`
	RevisionCount int
	DeliveryAt    *time.Time
	CompletedAt   *time.Time
	Remark        string
}

// NewOrder creates a new order in the awaiting_quote status
func NewOrder(orderNumber string, clientID uuid.UUID) (*Order, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Order number cannot be empty")
	}
	if clientID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Client ID cannot be empty")
	}

	return &Order{
		BaseEntity:  shared.NewBaseEntity(),
		OrderNumber: orderNumber,
		ClientID:    clientID,
		Status:      OrderStatusAwaitingQuote,
		Items:       make([]OrderItem, 0),
		Subtotal:    decimal.Zero,
		Total:       decimal.Zero,
	}, nil
}

// AddItem adds a line item and recomputes the totals
func (o *Order) AddItem(name, description, portion string, price decimal.Decimal, displayOrder int) (*OrderItem, error) {
	item, err := NewOrderItem(o.ID, name, description, portion, price, displayOrder)
	if err != nil {
		return nil, err
	}

	o.Items = append(o.Items, *item)
	o.recalculateTotals()
	o.bumpRevision()

	return item, nil
}

// ReplaceItems swaps the full item list and recomputes the totals
func (o *Order) ReplaceItems(items []OrderItem) error {
	for i := range items {
		if items[i].Name == "" {
			return shared.NewDomainError("VALIDATION_ERROR", "Item name cannot be empty")
		}
		if items[i].Price.LessThanOrEqual(decimal.Zero) {
			return shared.NewDomainError("VALIDATION_ERROR", "Item price must be positive")
		}
		items[i].OrderID = o.ID
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}

	o.Items = items
	o.recalculateTotals()
	o.bumpRevision()

	return nil
}

// RemoveItem removes a line item and recomputes the totals
func (o *Order) RemoveItem(itemID uuid.UUID) error {
	for idx, item := range o.Items {
		if item.ID == itemID {
			o.Items = append(o.Items[:idx], o.Items[idx+1:]...)
			o.recalculateTotals()
			o.bumpRevision()
			return nil
		}
	}
	return shared.NewDomainError("NOT_FOUND", "Order item not found")
}

// SetFees replaces the fee amounts and recomputes the total
func (o *Order) SetFees(fees Fees) error {
	if err := fees.Validate(); err != nil {
		return err
	}

	o.Fees = fees
	o.recalculateTotals()
	o.bumpRevision()

	return nil
}

// TransitionTo overwrites the order status. Any status may move to any
// other; staff use this to correct mistakes, so there is deliberately no
// predecessor check. Delivered and cancelled stamp the completion time.
func (o *Order) TransitionTo(status OrderStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", "Unknown order status: "+string(status))
	}

	now := time.Now()
	o.Status = status
	if status.StampsCompletion() {
		o.CompletedAt = &now
	}
	o.UpdatedAt = now

	return nil
}

// MarkPaid moves the order to the paid status
func (o *Order) MarkPaid() {
	o.Status = OrderStatusPaid
	o.UpdatedAt = time.Now()
}

// SetDeliveryTime sets the scheduled delivery time
func (o *Order) SetDeliveryTime(t time.Time) {
	o.DeliveryAt = &t
	o.UpdatedAt = time.Now()
}

// SetRemark sets the order remark
func (o *Order) SetRemark(remark string) {
	o.Remark = remark
	o.UpdatedAt = time.Now()
}

// IsPaid returns true if the order has been paid
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}

// IsTerminal returns true if the order is in a terminal state
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// ItemCount returns the number of line items
func (o *Order) ItemCount() int {
	return len(o.Items)
}

// recalculateTotals re-establishes subtotal == sum(items) and
// total == subtotal + sum(fees)
func (o *Order) recalculateTotals() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.Price)
	}
	o.Subtotal = subtotal
	o.Total = subtotal.Add(o.Fees.Sum())
}

func (o *Order) bumpRevision() {
	o.RevisionCount++
	o.UpdatedAt = time.Now()
}
