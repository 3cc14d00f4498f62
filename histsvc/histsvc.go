// Package histsvc is a thin wrapper over the storage engine's access
// event operations. It has no cache involvement (history is read far less
// often than link lookups, and the cache contract only covers the
// code->Link mapping) and no business rules beyond delegation.
package histsvc

import (
	"context"

	"github.com/shortenlabs/shortener/cmn"
	"github.com/shortenlabs/shortener/store"
)

// Service queries and bulk-deletes access events.
type Service struct {
	store store.Store
}

func New(st store.Store) *Service {
	return &Service{store: st}
}

// List delegates filtering and pagination straight to storage.
func (s *Service) List(ctx context.Context, filter cmn.EventFilter, page cmn.Page) ([]cmn.AccessEvent, int, error) {
	return s.store.ListEvents(ctx, filter, page)
}

// DeleteMany bulk-removes events by id, returning
// the count actually removed. An empty ids slice removes nothing.
func (s *Service) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.store.DeleteEvents(ctx, ids)
}
