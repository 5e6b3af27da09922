package square

import (
	"errors"
	"time"
)

// Config contains configuration for the Square REST API
type Config struct {
	// BaseURL is the API host, e.g. https://connect.squareup.com
	BaseURL string
	// AccessToken is the bearer token for all requests
	AccessToken string
	// LocationID scopes orders, invoices and payments to one location
	LocationID string
	// Timeout bounds every HTTP round trip
	Timeout time.Duration
	// APIVersion is sent as the Square-Version header
	APIVersion string
}

// Errors for configuration validation
var (
	ErrMissingBaseURL     = errors.New("square: missing base URL")
	ErrMissingAccessToken = errors.New("square: missing access token")
	ErrMissingLocationID  = errors.New("square: missing location ID")
)

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.AccessToken == "" {
		return ErrMissingAccessToken
	}
	if c.LocationID == "" {
		return ErrMissingLocationID
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.APIVersion == "" {
		c.APIVersion = "2025-01-23"
	}
	return nil
}
