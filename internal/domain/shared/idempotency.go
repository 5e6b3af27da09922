package shared

import (
	"context"
	"time"
)

// EventDedupStore remembers which external event IDs have already been
// handled. It is a best-effort fast path; durable uniqueness constraints
// in the ledger remain the hard guarantee.
type EventDedupStore interface {
	// MarkProcessed records an event ID with a TTL. Returns true if the
	// event was newly marked, false if it had been seen before.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	// IsProcessed reports whether an event ID has been seen
	IsProcessed(ctx context.Context, eventID string) (bool, error)
}
