// Package store is the storage engine abstraction. One contract, three
// conforming backends (embedded sqlite, postgres, mysql — see sqlstore/)
// plus an in-memory fake for tests (memstore/). Callers depend only on
// the Store interface; the backend differences (placeholder style,
// unique-violation detection, timestamp encoding, pool shape) are localized
// inside each implementation.
package store

import (
	"context"

	"github.com/shortenlabs/shortener/cmn"
)

// Store is the durable CRUD contract for links and access events.
// Every method is safe for concurrent use; the SQL implementations push
// concurrency control down to the backing engine (row-level locking, unique
// indexes), while the in-memory fake guards its state with one mutex.
type Store interface {
	// CreateLink inserts a new link under l.Code, which the caller always
	// supplies (explicit, or generated by the service layer's retry loop); CreateLink never
	// generates a code and never pre-checks uniqueness — it relies on the
	// backend's unique index and surfaces cmn/errors.KindCodeTaken when
	// that index rejects the insert.
	CreateLink(ctx context.Context, l cmn.Link) (cmn.Link, error)

	// GetByCode returns cmn/errors.KindNotFound when absent.
	GetByCode(ctx context.Context, code string) (cmn.Link, error)

	// ListLinks returns the filtered/paginated rows and the total matching
	// count (ignoring pagination) for the Meta envelope.
	ListLinks(ctx context.Context, filter cmn.LinkFilter, page cmn.Page) ([]cmn.Link, int, error)

	// UpdateLink applies patch to the link named by code, bumping
	// updated_at only if something actually changed. Returns
	// cmn/errors.KindNotFound if the code doesn't exist.
	UpdateLink(ctx context.Context, code string, patch cmn.LinkPatch) (cmn.Link, error)

	// DeleteLink removes a single link by code. Returns
	// cmn/errors.KindNotFound if absent.
	DeleteLink(ctx context.Context, code string) error

	// DeleteLinks bulk-deletes by id and returns the number of rows
	// actually removed (an empty ids slice removes nothing and returns 0).
	DeleteLinks(ctx context.Context, ids []int64) (int, error)

	// CodesForIDs resolves ids to their codes before a bulk delete, so the
	// caller can invalidate the corresponding cache keys.
	CodesForIDs(ctx context.Context, ids []int64) (map[int64]string, error)

	// InsertEvent appends an access event. Failures here are never fatal
	// to the redirect path; the caller decides how to log/drop them.
	InsertEvent(ctx context.Context, e cmn.AccessEvent) error

	ListEvents(ctx context.Context, filter cmn.EventFilter, page cmn.Page) ([]cmn.AccessEvent, int, error)
	DeleteEvents(ctx context.Context, ids []int64) (int, error)

	// Ping is used by the health endpoint and must return quickly:
	// implementations apply ctx's deadline directly to a trivial
	// round-trip, never a full connectivity probe.
	Ping(ctx context.Context) error

	// Close releases the backend's connection pool during shutdown.
	Close() error
}
