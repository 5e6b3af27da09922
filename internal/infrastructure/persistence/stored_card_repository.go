package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skyfare/backend/internal/domain/billing"
	"github.com/skyfare/backend/internal/domain/shared"
)

// GormStoredCardRepository implements billing.StoredCardRepository using GORM
type GormStoredCardRepository struct {
	db *gorm.DB
}

// NewGormStoredCardRepository creates a new GormStoredCardRepository
func NewGormStoredCardRepository(db *gorm.DB) *GormStoredCardRepository {
	return &GormStoredCardRepository{db: db}
}

// FindByID finds a stored card by its ID
func (r *GormStoredCardRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.StoredCard, error) {
	var card billing.StoredCard
	if err := r.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &card, nil
}

// FindByClientID returns all of a client's stored cards, default first
func (r *GormStoredCardRepository) FindByClientID(ctx context.Context, clientID uuid.UUID) ([]billing.StoredCard, error) {
	var cards []billing.StoredCard
	if err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("is_default DESC, created_at DESC").
		Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// Save creates or updates a stored card
func (r *GormStoredCardRepository) Save(ctx context.Context, card *billing.StoredCard) error {
	return r.db.WithContext(ctx).Save(card).Error
}

// SetDefault makes the given card the client's only default. All cards
// are unset first, then the one card set, inside one transaction, so the
// single-default invariant holds at every commit point.
func (r *GormStoredCardRepository) SetDefault(ctx context.Context, clientID, cardID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&billing.StoredCard{}).
			Where("client_id = ?", clientID).
			Update("is_default", false).Error; err != nil {
			return err
		}

		result := tx.Model(&billing.StoredCard{}).
			Where("id = ? AND client_id = ?", cardID, clientID).
			Update("is_default", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// Delete deletes a stored card
func (r *GormStoredCardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&billing.StoredCard{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormStoredCardRepository implements StoredCardRepository
var _ billing.StoredCardRepository = (*GormStoredCardRepository)(nil)
