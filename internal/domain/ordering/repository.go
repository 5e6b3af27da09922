package ordering

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/skyfare/backend/internal/domain/shared"
)

// OrderRepository defines persistence operations for catering orders
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Order, error)
	// FindDueForAdvance returns non-terminal orders in the given statuses
	// whose delivery time falls before the cutoff. Used by the scheduler.
	FindDueForAdvance(ctx context.Context, statuses []OrderStatus, cutoff time.Time) ([]Order, error)
	Save(ctx context.Context, order *Order) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	GenerateOrderNumber(ctx context.Context) (string, error)
}
