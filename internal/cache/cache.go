// Package cache provides the fingerprint-keyed response cache used to
// short-circuit repeated non-monetary requests.
package cache

import (
	"context"
	"time"

	"github.com/vanshika/finbridge/internal/domain"
)

// DefaultTTL is applied to entries stored without an explicit TTL.
const DefaultTTL = 300 * time.Second

// Cache is the contract shared by the in-process and redis backends.
// Implementations must be safe for concurrent use; an entry is never
// returned past its expiry.
type Cache interface {
	// Get returns the cached response for the fingerprint, or ok=false on a
	// miss. A read past expiry is a miss and removes the entry.
	Get(ctx context.Context, fingerprint string) (map[string]any, bool)
	// Put stores the response under the fingerprint for the given TTL.
	// Concurrent writers for the same fingerprint race last-writer-wins.
	Put(ctx context.Context, fingerprint string, response map[string]any, ttl time.Duration)
	// PurgeExpired removes all entries whose expiry has passed, independent
	// of reads, and returns how many were removed.
	PurgeExpired(ctx context.Context) int
	// Clear drops every entry.
	Clear(ctx context.Context)
}

// Cacheable reports whether a request may be served from or stored into the
// cache. Monetary transaction types are excluded unconditionally, overriding
// the request's cacheable flag.
func Cacheable(req domain.TransactionRequest) bool {
	return req.Cacheable && !domain.IsMonetary(req.TransactionType)
}
