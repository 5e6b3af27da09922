package partner

import (
	"time"

	"github.com/google/uuid"

	"github.com/skyfare/backend/internal/domain/partner"
)

// CreateClientRequest is the request body for registering a client
type CreateClientRequest struct {
	CompanyName string `json:"company_name" binding:"required,min=1,max=200"`
	ContactName string `json:"contact_name" binding:"max=100"`
	Email       string `json:"email" binding:"omitempty,email,max=200"`
	Phone       string `json:"phone" binding:"max=50"`
}

// UpdateClientRequest is the request body for updating a client's
// contact details. Nil fields are left unchanged.
type UpdateClientRequest struct {
	CompanyName *string `json:"company_name" binding:"omitempty,min=1,max=200"`
	ContactName *string `json:"contact_name" binding:"omitempty,max=100"`
	Email       *string `json:"email" binding:"omitempty,email,max=200"`
	Phone       *string `json:"phone" binding:"omitempty,max=50"`
}

// ClientListFilter holds list query parameters
type ClientListFilter struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Search   string `form:"search"`
}

// ClientResponse is the API representation of a client
type ClientResponse struct {
	ID               uuid.UUID `json:"id"`
	CompanyName      string    `json:"company_name"`
	ContactName      string    `json:"contact_name,omitempty"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	SquareCustomerID string    `json:"square_customer_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ToClientResponse converts a client entity to its API representation
func ToClientResponse(c *partner.Client) ClientResponse {
	return ClientResponse{
		ID:               c.ID,
		CompanyName:      c.CompanyName,
		ContactName:      c.ContactName,
		Email:            c.Email,
		Phone:            c.Phone,
		SquareCustomerID: c.SquareCustomerID,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}
