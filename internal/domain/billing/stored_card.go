package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/skyfare/backend/internal/domain/shared"
)

// StoredCard is a saved, tokenized payment instrument linked to a client.
// At most one card per client may be the default; repositories enforce
// this by unsetting all others before setting a new default.
type StoredCard struct {
	shared.BaseEntity
	ClientID         uuid.UUID `gorm:"type:uuid;index"`
	SquareCustomerID string
	SquareCardID     string `gorm:"uniqueIndex"`
	Brand            string
	Last4            string
	ExpMonth         int
	ExpYear          int
	IsDefault        bool
}

// NewStoredCard creates a new stored card record
func NewStoredCard(clientID uuid.UUID, squareCustomerID, squareCardID, brand, last4 string, expMonth, expYear int) (*StoredCard, error) {
	if clientID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Client ID cannot be empty")
	}
	if squareCardID == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Square card ID cannot be empty")
	}

	return &StoredCard{
		BaseEntity:       shared.NewBaseEntity(),
		ClientID:         clientID,
		SquareCustomerID: squareCustomerID,
		SquareCardID:     squareCardID,
		Brand:            brand,
		Last4:            last4,
		ExpMonth:         expMonth,
		ExpYear:          expYear,
	}, nil
}

// MakeDefault flags this card as the client's default
func (c *StoredCard) MakeDefault() {
	c.IsDefault = true
	c.UpdatedAt = time.Now()
}

// ClearDefault removes the default flag
func (c *StoredCard) ClearDefault() {
	c.IsDefault = false
	c.UpdatedAt = time.Now()
}
