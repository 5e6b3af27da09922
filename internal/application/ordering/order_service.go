package ordering

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skyfare/backend/internal/domain/ordering"
	"github.com/skyfare/backend/internal/domain/shared"
)

// advanceStatuses are the states the scheduler moves orders through as
// the delivery window approaches
var advanceStatuses = []ordering.OrderStatus{
	ordering.OrderStatusCatererConfirmed,
	ordering.OrderStatusInPreparation,
	ordering.OrderStatusReadyForDelivery,
}

// defaultAdvanceWindow is how close to the delivery time an order must
// be before the scheduler advances it one preparation step
const defaultAdvanceWindow = 4 * time.Hour

// OrderService handles catering order business operations
type OrderService struct {
	orderRepo     ordering.OrderRepository
	advanceWindow time.Duration
	logger        *zap.Logger
}

// OrderServiceOption customizes an OrderService
type OrderServiceOption func(*OrderService)

// WithAdvanceWindow overrides the scheduler's advance window
func WithAdvanceWindow(window time.Duration) OrderServiceOption {
	return func(s *OrderService) {
		if window > 0 {
			s.advanceWindow = window
		}
	}
}

// NewOrderService creates a new OrderService
func NewOrderService(orderRepo ordering.OrderRepository, logger *zap.Logger, opts ...OrderServiceOption) *OrderService {
	s := &OrderService{
		orderRepo:     orderRepo,
		advanceWindow: defaultAdvanceWindow,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create creates a new catering order
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error) {
	orderNumber, err := s.orderRepo.GenerateOrderNumber(ctx)
	if err != nil {
		return nil, err
	}

	order, err := ordering.NewOrder(orderNumber, req.ClientID)
	if err != nil {
		return nil, err
	}

	for i, item := range req.Items {
		displayOrder := item.DisplayOrder
		if displayOrder == 0 {
			displayOrder = i + 1
		}
		if _, err := order.AddItem(item.Name, item.Description, item.Portion, item.Price, displayOrder); err != nil {
			return nil, err
		}
	}

	if req.Fees != nil {
		if err := order.SetFees(req.Fees.toDomain()); err != nil {
			return nil, err
		}
	}
	if req.DeliveryAt != nil {
		order.SetDeliveryTime(*req.DeliveryAt)
	}
	if req.Remark != "" {
		order.SetRemark(req.Remark)
	}

	if err := s.orderRepo.Save(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber))

	response := ToOrderResponse(order)
	return &response, nil
}

// GetByID retrieves an order by ID
func (s *OrderService) GetByID(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	response := ToOrderResponse(order)
	return &response, nil
}

// List retrieves orders with filtering and pagination
func (s *OrderService) List(ctx context.Context, filter OrderListFilter) (*shared.Paginated[OrderListItemResponse], error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	domainFilter := shared.DefaultFilter()
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize
	domainFilter.Search = filter.Search
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}
	if filter.ClientID != nil {
		domainFilter.Filters["client_id"] = *filter.ClientID
	}
	if filter.Status != "" {
		domainFilter.Filters["status"] = filter.Status
	}
	if len(filter.Statuses) > 0 {
		domainFilter.Filters["statuses"] = filter.Statuses
	}
	if filter.StartDate != nil {
		domainFilter.Filters["start_date"] = *filter.StartDate
	}
	if filter.EndDate != nil {
		domainFilter.Filters["end_date"] = *filter.EndDate
	}

	orders, err := s.orderRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.orderRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	items := make([]OrderListItemResponse, len(orders))
	for i := range orders {
		items[i] = ToOrderListItemResponse(&orders[i])
	}

	result := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &result, nil
}

// UpdateItems replaces the full item list of an order
func (s *OrderService) UpdateItems(ctx context.Context, orderID uuid.UUID, req UpdateItemsRequest) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	items := make([]ordering.OrderItem, len(req.Items))
	for i, in := range req.Items {
		displayOrder := in.DisplayOrder
		if displayOrder == 0 {
			displayOrder = i + 1
		}
		items[i] = ordering.OrderItem{
			Name:         in.Name,
			Description:  in.Description,
			Portion:      in.Portion,
			Price:        in.Price,
			DisplayOrder: displayOrder,
		}
	}

	if err := order.ReplaceItems(items); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		return nil, err
	}

	response := ToOrderResponse(order)
	return &response, nil
}

// UpdateFees replaces the fee amounts of an order
func (s *OrderService) UpdateFees(ctx context.Context, orderID uuid.UUID, req UpdateFeesRequest) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := order.SetFees(req.Fees.toDomain()); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		return nil, err
	}

	response := ToOrderResponse(order)
	return &response, nil
}

// TransitionStatus moves an order to the requested status. Staff may
// move to any status; delivered and cancelled stamp the completion time.
func (s *OrderService) TransitionStatus(ctx context.Context, orderID uuid.UUID, req TransitionStatusRequest) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	previous := order.Status
	if err := order.TransitionTo(ordering.OrderStatus(req.Status)); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(order.Status)))

	response := ToOrderResponse(order)
	return &response, nil
}

// Delete removes an order
func (s *OrderService) Delete(ctx context.Context, orderID uuid.UUID) error {
	if _, err := s.orderRepo.FindByID(ctx, orderID); err != nil {
		return err
	}
	return s.orderRepo.Delete(ctx, orderID)
}

// AdvanceScheduled moves orders with a near delivery time one step along
// the preparation chain. Returns the number of orders advanced.
func (s *OrderService) AdvanceScheduled(ctx context.Context, now time.Time) (int, error) {
	due, err := s.orderRepo.FindDueForAdvance(ctx, advanceStatuses, now.Add(s.advanceWindow))
	if err != nil {
		return 0, err
	}

	advanced := 0
	for i := range due {
		order := &due[i]
		next := order.Status.Next()
		if next == "" {
			continue
		}
		if err := order.TransitionTo(next); err != nil {
			s.logger.Warn("order advance skipped",
				zap.String("order_id", order.ID.String()),
				zap.Error(err))
			continue
		}
		if err := s.orderRepo.Save(ctx, order); err != nil {
			s.logger.Error("failed to save advanced order",
				zap.String("order_id", order.ID.String()),
				zap.Error(err))
			continue
		}
		advanced++
	}

	return advanced, nil
}
