// Package cache is the optional read-through cache for code->Link
// lookups: a real backend and a null backend implementing the same
// interface, so callers never branch on whether caching is enabled.
package cache

import (
	"context"
	"time"

	"github.com/shortenlabs/shortener/cmn"
)

// Cache is the code->Link lookup cache. Every method is
// best-effort: implementations never return an error that should abort
// the caller's request, they log and degrade to a miss/no-op instead.
type Cache interface {
	// Get returns the cached link and true on a hit, or a zero Link and
	// false on a miss (including any backend failure).
	Get(ctx context.Context, code string) (cmn.Link, bool)

	// Set populates the cache entry for code with ttl. Failures are
	// swallowed; callers don't need a return value to act on.
	Set(ctx context.Context, code string, link cmn.Link, ttl time.Duration)

	// Del invalidates the cache entry for code.
	Del(ctx context.Context, code string)

	// Close releases any underlying connection.
	Close() error
}

// DefaultTTL is used whenever the caller doesn't have a more specific
// value in hand.
const DefaultTTL = time.Hour

// pinger is implemented by cache backends that can round-trip a liveness
// check; the null cache deliberately doesn't implement it.
type pinger interface {
	Ping(ctx context.Context) error
}

// Ping reports connectivity for the /health handler. A cache that
// doesn't support pinging (the null cache) is always reported healthy —
// there's nothing to be unhealthy about.
func Ping(ctx context.Context, c Cache) error {
	if p, ok := c.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
