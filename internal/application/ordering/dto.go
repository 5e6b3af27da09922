package ordering

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skyfare/backend/internal/domain/ordering"
)

// CreateOrderRequest represents a request to create a catering order
type CreateOrderRequest struct {
	ClientID   uuid.UUID        `json:"client_id" binding:"required"`
	Items      []OrderItemInput `json:"items"`
	Fees       *FeesInput       `json:"fees"`
	DeliveryAt *time.Time       `json:"delivery_at"`
	Remark     string           `json:"remark"`
}

// OrderItemInput represents one line item in create/update requests
type OrderItemInput struct {
	Name         string          `json:"name" binding:"required,min=1,max=200"`
	Description  string          `json:"description"`
	Portion      string          `json:"portion" binding:"max=100"`
	Price        decimal.Decimal `json:"price" binding:"required"`
	DisplayOrder int             `json:"display_order"`
}

// FeesInput carries the per-order fee amounts
type FeesInput struct {
	Service      decimal.Decimal `json:"service_fee"`
	Delivery     decimal.Decimal `json:"delivery_fee"`
	Coordination decimal.Decimal `json:"coordination_fee"`
	Airport      decimal.Decimal `json:"airport_fee"`
	FBO          decimal.Decimal `json:"fbo_fee"`
	Shopping     decimal.Decimal `json:"shopping_fee"`
	Pickup       decimal.Decimal `json:"pickup_fee"`
}

func (f FeesInput) toDomain() ordering.Fees {
	return ordering.Fees{
		Service:      f.Service,
		Delivery:     f.Delivery,
		Coordination: f.Coordination,
		Airport:      f.Airport,
		FBO:          f.FBO,
		Shopping:     f.Shopping,
		Pickup:       f.Pickup,
	}
}

// UpdateItemsRequest replaces all line items of an order
type UpdateItemsRequest struct {
	Items []OrderItemInput `json:"items" binding:"required"`
}

// UpdateFeesRequest replaces the fee amounts of an order
type UpdateFeesRequest struct {
	Fees FeesInput `json:"fees" binding:"required"`
}

// TransitionStatusRequest moves an order to a new status
type TransitionStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// OrderListFilter represents filter options for the order list
type OrderListFilter struct {
	Search    string     `form:"search"`
	ClientID  *uuid.UUID `form:"client_id"`
	Status    string     `form:"status"`
	Statuses  []string   `form:"statuses"`
	StartDate *time.Time `form:"start_date"`
	EndDate   *time.Time `form:"end_date"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string     `form:"order_by"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// OrderResponse represents a catering order in API responses
type OrderResponse struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	ClientID      uuid.UUID           `json:"client_id"`
	Status        string              `json:"status"`
	Items         []OrderItemResponse `json:"items"`
	ItemCount     int                 `json:"item_count"`
	Fees          FeesResponse        `json:"fees"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Total         decimal.Decimal     `json:"total"`
	RevisionCount int                 `json:"revision_count"`
	DeliveryAt    *time.Time          `json:"delivery_at,omitempty"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
	Remark        string              `json:"remark,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// OrderItemResponse represents an order line item in API responses
type OrderItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Portion      string          `json:"portion,omitempty"`
	Price        decimal.Decimal `json:"price"`
	DisplayOrder int             `json:"display_order"`
}

// FeesResponse carries the fee amounts in API responses
type FeesResponse struct {
	Service      decimal.Decimal `json:"service_fee"`
	Delivery     decimal.Decimal `json:"delivery_fee"`
	Coordination decimal.Decimal `json:"coordination_fee"`
	Airport      decimal.Decimal `json:"airport_fee"`
	FBO          decimal.Decimal `json:"fbo_fee"`
	Shopping     decimal.Decimal `json:"shopping_fee"`
	Pickup       decimal.Decimal `json:"pickup_fee"`
}

// OrderListItemResponse represents an order in list responses
type OrderListItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	OrderNumber string          `json:"order_number"`
	ClientID    uuid.UUID       `json:"client_id"`
	Status      string          `json:"status"`
	ItemCount   int             `json:"item_count"`
	Total       decimal.Decimal `json:"total"`
	DeliveryAt  *time.Time      `json:"delivery_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ToOrderResponse converts a domain order to a response DTO
func ToOrderResponse(order *ordering.Order) OrderResponse {
	items := make([]OrderItemResponse, len(order.Items))
	for i := range order.Items {
		items[i] = OrderItemResponse{
			ID:           order.Items[i].ID,
			Name:         order.Items[i].Name,
			Description:  order.Items[i].Description,
			Portion:      order.Items[i].Portion,
			Price:        order.Items[i].Price,
			DisplayOrder: order.Items[i].DisplayOrder,
		}
	}

	return OrderResponse{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		ClientID:    order.ClientID,
		Status:      string(order.Status),
		Items:       items,
		ItemCount:   order.ItemCount(),
		Fees: FeesResponse{
			Service:      order.Fees.Service,
			Delivery:     order.Fees.Delivery,
			Coordination: order.Fees.Coordination,
			Airport:      order.Fees.Airport,
			FBO:          order.Fees.FBO,
			Shopping:     order.Fees.Shopping,
			Pickup:       order.Fees.Pickup,
		},
		Subtotal:      order.Subtotal,
		Total:         order.Total,
		RevisionCount: order.RevisionCount,
		DeliveryAt:    order.DeliveryAt,
		CompletedAt:   order.CompletedAt,
		Remark:        order.Remark,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

// ToOrderListItemResponse converts a domain order to a list item DTO
func ToOrderListItemResponse(order *ordering.Order) OrderListItemResponse {
	return OrderListItemResponse{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		ClientID:    order.ClientID,
		Status:      string(order.Status),
		ItemCount:   order.ItemCount(),
		Total:       order.Total,
		DeliveryAt:  order.DeliveryAt,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}
