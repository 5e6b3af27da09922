package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skyfare/backend/internal/domain/billing"
	"github.com/skyfare/backend/internal/domain/partner"
	"github.com/skyfare/backend/internal/domain/shared"
)

func newTestClient(t *testing.T, email, phone string) *partner.Client {
	t.Helper()
	client, err := partner.NewClient("Apex Charters", "Dana Ops", email, phone)
	require.NoError(t, err)
	return client
}

func TestResolverReturnsCachedID(t *testing.T) {
	clientRepo := new(MockClientRepository)
	gateway := new(MockGateway)
	resolver := NewCustomerResolver(clientRepo, gateway, zap.NewNop())
	ctx := context.Background()

	client := newTestClient(t, "ops@apex.example", "")
	client.CacheCustomerID("CUST-CACHED")
	clientRepo.On("FindByID", ctx, client.ID).Return(client, nil)

	id, err := resolver.Resolve(ctx, client.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "CUST-CACHED", id)

	// Same email override still hits the cache
	id, err = resolver.Resolve(ctx, client.ID, "ops@apex.example")
	require.NoError(t, err)
	assert.Equal(t, "CUST-CACHED", id)

	gateway.AssertNotCalled(t, "SearchCustomerByEmail", mock.Anything, mock.Anything)
	gateway.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestResolverSearchHitCachesID(t *testing.T) {
	clientRepo := new(MockClientRepository)
	gateway := new(MockGateway)
	resolver := NewCustomerResolver(clientRepo, gateway, zap.NewNop())
	ctx := context.Background()

	client := newTestClient(t, "ops@apex.example", "")
	clientRepo.On("FindByID", ctx, client.ID).Return(client, nil)
	clientRepo.On("Save", ctx, client).Return(nil)
	gateway.On("SearchCustomerByEmail", ctx, "ops@apex.example").
		Return(&billing.Customer{ID: "CUST-FOUND", Email: "ops@apex.example"}, nil)

	id, err := resolver.Resolve(ctx, client.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "CUST-FOUND", id)
	assert.Equal(t, "CUST-FOUND", client.SquareCustomerID)
	gateway.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestResolverCreatesCustomerOnMiss(t *testing.T) {
	clientRepo := new(MockClientRepository)
	gateway := new(MockGateway)
	resolver := NewCustomerResolver(clientRepo, gateway, zap.NewNop())
	ctx := context.Background()

	client := newTestClient(t, "ops@apex.example", "+15550100")
	clientRepo.On("FindByID", ctx, client.ID).Return(client, nil)
	clientRepo.On("Save", ctx, client).Return(nil)
	gateway.On("SearchCustomerByEmail", ctx, "ops@apex.example").Return(nil, shared.ErrNotFound)
	gateway.On("CreateCustomer", ctx, mock.MatchedBy(func(p billing.CreateCustomerParams) bool {
		return p.Email == "ops@apex.example" && p.DisplayName == "Dana Ops" && p.ReferenceID == client.ID.String()
	})).Return(&billing.Customer{ID: "CUST-NEW"}, nil)

	id, err := resolver.Resolve(ctx, client.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "CUST-NEW", id)
	assert.Equal(t, "CUST-NEW", client.SquareCustomerID)
}

func TestResolverOverrideEmailBypassesCache(t *testing.T) {
	clientRepo := new(MockClientRepository)
	gateway := new(MockGateway)
	resolver := NewCustomerResolver(clientRepo, gateway, zap.NewNop())
	ctx := context.Background()

	client := newTestClient(t, "ops@apex.example", "")
	client.CacheCustomerID("CUST-CACHED")
	clientRepo.On("FindByID", ctx, client.ID).Return(client, nil)
	clientRepo.On("Save", ctx, client).Return(nil)
	gateway.On("SearchCustomerByEmail", ctx, "billing@apex.example").
		Return(&billing.Customer{ID: "CUST-OTHER"}, nil)

	id, err := resolver.Resolve(ctx, client.ID, "billing@apex.example")
	require.NoError(t, err)
	assert.Equal(t, "CUST-OTHER", id)
}

func TestResolverNoIdentityAvailable(t *testing.T) {
	clientRepo := new(MockClientRepository)
	gateway := new(MockGateway)
	resolver := NewCustomerResolver(clientRepo, gateway, zap.NewNop())
	ctx := context.Background()

	client := newTestClient(t, "", "")
	clientRepo.On("FindByID", ctx, client.ID).Return(client, nil)

	_, err := resolver.Resolve(ctx, client.ID, "")
	assert.ErrorIs(t, err, shared.ErrNoPayerIdentity)
	gateway.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
	gateway.AssertNotCalled(t, "SearchCustomerByEmail", mock.Anything, mock.Anything)
}

func TestResolverPhoneOnlyCreatesCustomer(t *testing.T) {
	clientRepo := new(MockClientRepository)
	gateway := new(MockGateway)
	resolver := NewCustomerResolver(clientRepo, gateway, zap.NewNop())
	ctx := context.Background()

	client := newTestClient(t, "", "+15550100")
	clientRepo.On("FindByID", ctx, client.ID).Return(client, nil)
	clientRepo.On("Save", ctx, client).Return(nil)
	gateway.On("CreateCustomer", ctx, mock.MatchedBy(func(p billing.CreateCustomerParams) bool {
		return p.Phone == "+15550100" && p.Email == ""
	})).Return(&billing.Customer{ID: "CUST-PHONE"}, nil)

	id, err := resolver.Resolve(ctx, client.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "CUST-PHONE", id)
}

func TestResolverCacheWriteFailureStillResolves(t *testing.T) {
	clientRepo := new(MockClientRepository)
	gateway := new(MockGateway)
	resolver := NewCustomerResolver(clientRepo, gateway, zap.NewNop())
	ctx := context.Background()

	client := newTestClient(t, "ops@apex.example", "")
	clientRepo.On("FindByID", ctx, client.ID).Return(client, nil)
	clientRepo.On("Save", ctx, client).Return(assertAnError())
	gateway.On("SearchCustomerByEmail", ctx, "ops@apex.example").
		Return(&billing.Customer{ID: "CUST-FOUND"}, nil)

	id, err := resolver.Resolve(ctx, client.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "CUST-FOUND", id)
}

func TestResolverUnknownClient(t *testing.T) {
	clientRepo := new(MockClientRepository)
	gateway := new(MockGateway)
	resolver := NewCustomerResolver(clientRepo, gateway, zap.NewNop())
	ctx := context.Background()
	clientID := uuid.New()

	clientRepo.On("FindByID", ctx, clientID).Return(nil, shared.ErrNotFound)

	_, err := resolver.Resolve(ctx, clientID, "")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func assertAnError() error {
	return shared.NewDomainError("PERSISTENCE_ERROR", "write failed")
}
