package partner

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/skyfare/backend/internal/domain/shared"
)

// Client represents a charter operator or broker that places catering
// orders. The Square customer id is cached after first resolution so
// repeated invoicing does not search the gateway again.
type Client struct {
	shared.BaseEntity
	CompanyName      string
	ContactName      string
	Email            string `gorm:"index"`
	Phone            string
	SquareCustomerID string `gorm:"index"`
}

// NewClient creates a new client
func NewClient(companyName, contactName, email, phone string) (*Client, error) {
	if companyName == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Company name cannot be empty")
	}

	return &Client{
		BaseEntity:  shared.NewBaseEntity(),
		CompanyName: companyName,
		ContactName: contactName,
		Email:       email,
		Phone:       phone,
	}, nil
}

// DisplayName returns the name used for the gateway customer record
func (c *Client) DisplayName() string {
	if c.ContactName != "" {
		return c.ContactName
	}
	return c.CompanyName
}

// HasCachedCustomer returns true if a gateway customer id is cached
func (c *Client) HasCachedCustomer() bool {
	return c.SquareCustomerID != ""
}

// CacheCustomerID stores the resolved gateway customer id
func (c *Client) CacheCustomerID(customerID string) {
	c.SquareCustomerID = customerID
	c.UpdatedAt = time.Now()
}

// UpdateContact updates the contact details
func (c *Client) UpdateContact(contactName, email, phone string) {
	c.ContactName = contactName
	c.Email = email
	c.Phone = phone
	c.UpdatedAt = time.Now()
}

// ClientRepository defines persistence operations for clients
type ClientRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Client, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Client, error)
	Save(ctx context.Context, client *Client) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}
