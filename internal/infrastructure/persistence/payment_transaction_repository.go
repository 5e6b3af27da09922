package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skyfare/backend/internal/domain/billing"
	"github.com/skyfare/backend/internal/domain/shared"
)

// GormPaymentTransactionRepository implements
// billing.PaymentTransactionRepository using GORM
type GormPaymentTransactionRepository struct {
	db *gorm.DB
}

// NewGormPaymentTransactionRepository creates a new repository
func NewGormPaymentTransactionRepository(db *gorm.DB) *GormPaymentTransactionRepository {
	return &GormPaymentTransactionRepository{db: db}
}

// FindByID finds a transaction by its ID
func (r *GormPaymentTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PaymentTransaction, error) {
	var tx billing.PaymentTransaction
	if err := r.db.WithContext(ctx).First(&tx, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// FindBySquarePaymentID finds a transaction by its gateway payment id
func (r *GormPaymentTransactionRepository) FindBySquarePaymentID(ctx context.Context, squarePaymentID string) (*billing.PaymentTransaction, error) {
	var tx billing.PaymentTransaction
	if err := r.db.WithContext(ctx).
		Where("square_payment_id = ?", squarePaymentID).
		First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// FindByOrderID returns the ledger rows for an order, newest first
func (r *GormPaymentTransactionRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]billing.PaymentTransaction, error) {
	var txs []billing.PaymentTransaction
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// HasCompletedForOrder reports whether any completed transaction exists
// for the order
func (r *GormPaymentTransactionRepository) HasCompletedForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&billing.PaymentTransaction{}).
		Where("order_id = ? AND status = ?", orderID, billing.TransactionStatusCompleted).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save inserts or updates a transaction. The unique column on the gateway
// payment id turns a duplicate insert into shared.ErrAlreadyExists; this
// is the enforced redelivery guard, not a read-then-write check.
func (r *GormPaymentTransactionRepository) Save(ctx context.Context, tx *billing.PaymentTransaction) error {
	if err := r.db.WithContext(ctx).Save(tx).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// isUniqueViolation detects unique-constraint failures across the
// Postgres (23505) and sqlite drivers
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// Ensure GormPaymentTransactionRepository implements the interface
var _ billing.PaymentTransactionRepository = (*GormPaymentTransactionRepository)(nil)
