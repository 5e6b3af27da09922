package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skyfare/backend/internal/domain/billing"
	"github.com/skyfare/backend/internal/domain/partner"
	"github.com/skyfare/backend/internal/domain/shared"
)

// CustomerResolver maps an internal client to a Square customer identity,
// creating one when absent. Resolution never deletes or merges gateway
// customers; a client invoiced at several different addresses can
// accumulate several gateway identities. That tradeoff is accepted so a
// billing address override never rewrites an existing identity.
type CustomerResolver struct {
	clientRepo partner.ClientRepository
	gateway    billing.Gateway
	logger     *zap.Logger
}

// NewCustomerResolver creates a new CustomerResolver
func NewCustomerResolver(clientRepo partner.ClientRepository, gateway billing.Gateway, logger *zap.Logger) *CustomerResolver {
	return &CustomerResolver{
		clientRepo: clientRepo,
		gateway:    gateway,
		logger:     logger,
	}
}

// Resolve returns the Square customer id for the client, optionally with
// an override email. Returns shared.ErrNoPayerIdentity when the client
// has neither an email nor a phone to anchor an identity on.
func (r *CustomerResolver) Resolve(ctx context.Context, clientID uuid.UUID, overrideEmail string) (string, error) {
	client, err := r.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return "", err
	}

	email := client.Email
	if overrideEmail != "" {
		email = overrideEmail
	}

	// The cached id is only trusted when the effective email is the one
	// it was resolved for; an override address forces a fresh search
	if client.HasCachedCustomer() && (overrideEmail == "" || overrideEmail == client.Email) {
		return client.SquareCustomerID, nil
	}

	if email != "" {
		customer, err := r.gateway.SearchCustomerByEmail(ctx, email)
		if err == nil {
			r.cacheCustomer(ctx, client, customer.ID)
			return customer.ID, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return "", err
		}
	}

	if email == "" && client.Phone == "" {
		return "", shared.ErrNoPayerIdentity
	}

	displayName := client.DisplayName()
	if displayName == "" {
		displayName = fmt.Sprintf("Catering Client %s", client.ID)
	}

	customer, err := r.gateway.CreateCustomer(ctx, billing.CreateCustomerParams{
		DisplayName: displayName,
		Email:       email,
		Phone:       client.Phone,
		ReferenceID: client.ID.String(),
	})
	if err != nil {
		return "", err
	}

	r.logger.Info("square customer created",
		zap.String("client_id", client.ID.String()),
		zap.String("customer_id", customer.ID))

	r.cacheCustomer(ctx, client, customer.ID)
	return customer.ID, nil
}

// cacheCustomer persists the resolved id on the client. A cache write
// failure is logged and swallowed; resolution already succeeded.
func (r *CustomerResolver) cacheCustomer(ctx context.Context, client *partner.Client, customerID string) {
	client.CacheCustomerID(customerID)
	if err := r.clientRepo.Save(ctx, client); err != nil {
		r.logger.Warn("failed to cache square customer id",
			zap.String("client_id", client.ID.String()),
			zap.Error(err))
	}
}
