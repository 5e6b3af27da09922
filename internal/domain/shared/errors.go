package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound        = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists   = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrConflict        = NewDomainError("CONFLICT", "Operation conflicts with current resource state")
	ErrUnauthorized    = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrGatewayFailure  = NewDomainError("GATEWAY_ERROR", "Payment gateway request failed")
	ErrPersistence     = NewDomainError("PERSISTENCE_ERROR", "Local write failed after external call succeeded")
	ErrAlreadyPaid     = NewDomainError("ALREADY_PAID", "Order has already been paid")
	ErrNoPayerIdentity = NewDomainError("NO_PAYER_IDENTITY", "Client has no email or phone to resolve a billing customer; add contact details and retry")
)
