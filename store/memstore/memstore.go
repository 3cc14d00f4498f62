// Package memstore is an in-memory store.Store fake used by tests across
// the rest of the tree: no real database required to exercise linksvc,
// redirect or the HTTP surface.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shortenlabs/shortener/cmn"
	cerrors "github.com/shortenlabs/shortener/cmn/errors"
	"github.com/shortenlabs/shortener/store"
)

// Store is a mutex-guarded map-backed implementation of store.Store.
type Store struct {
	mu        sync.RWMutex
	links     map[string]cmn.Link // keyed by code
	nextID    int64
	events    []cmn.AccessEvent
	nextEvtID int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{links: make(map[string]cmn.Link)}
}

func (s *Store) CreateLink(_ context.Context, l cmn.Link) (cmn.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[l.Code]; exists {
		return cmn.Link{}, cerrors.CodeTaken(l.Code)
	}
	s.nextID++
	l.ID = s.nextID
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	s.links[l.Code] = l
	return l, nil
}

func (s *Store) GetByCode(_ context.Context, code string) (cmn.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[code]
	if !ok {
		return cmn.Link{}, cerrors.NotFound("link not found: " + code)
	}
	return l, nil
}

func (s *Store) ListLinks(_ context.Context, filter cmn.LinkFilter, page cmn.Page) ([]cmn.Link, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page = page.Normalize("created_at")

	var matched []cmn.Link
	for _, l := range s.links {
		if filter.Code != "" && l.Code != filter.Code {
			continue
		}
		if filter.OriginalURL != "" && !strings.Contains(l.OriginalURL, filter.OriginalURL) {
			continue
		}
		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		matched = append(matched, l)
	}

	less := sortLess(page)
	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })

	total := len(matched)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.PerPage
	if end > total {
		end = total
	}
	return append([]cmn.Link(nil), matched[start:end]...), total, nil
}

func sortLess(page cmn.Page) func(a, b cmn.Link) bool {
	asc := page.Order == cmn.SortAsc
	key := func(l cmn.Link) interface{} {
		switch page.SortBy {
		case "id":
			return l.ID
		case "updated_at":
			return l.UpdatedAt
		case "code":
			return l.Code
		default:
			return l.CreatedAt
		}
	}
	return func(a, b cmn.Link) bool {
		ka, kb := key(a), key(b)
		var eq, less bool
		switch x := ka.(type) {
		case int64:
			y := kb.(int64)
			eq, less = x == y, x < y
		case string:
			y := kb.(string)
			eq, less = x == y, x < y
		case time.Time:
			y := kb.(time.Time)
			eq, less = x.Equal(y), x.Before(y)
		}
		if eq {
			if asc {
				return a.ID < b.ID
			}
			return a.ID > b.ID
		}
		if asc {
			return less
		}
		return !less
	}
}

func (s *Store) UpdateLink(_ context.Context, code string, patch cmn.LinkPatch) (cmn.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.links[code]
	if !ok {
		return cmn.Link{}, cerrors.NotFound("link not found: " + code)
	}

	changed := false
	if patch.OriginalURL != nil && *patch.OriginalURL != l.OriginalURL {
		l.OriginalURL = *patch.OriginalURL
		changed = true
	}
	if patch.Description != nil && *patch.Description != l.Description {
		l.Description = *patch.Description
		changed = true
	}
	if patch.Status != nil && *patch.Status != l.Status {
		l.Status = *patch.Status
		changed = true
	}
	if changed {
		l.UpdatedAt = time.Now().UTC()
	}
	s.links[code] = l
	return l, nil
}

func (s *Store) DeleteLink(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[code]; !ok {
		return cerrors.NotFound("link not found: " + code)
	}
	delete(s.links, code)
	return nil
}

func (s *Store) DeleteLinks(_ context.Context, ids []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	n := 0
	for code, l := range s.links {
		if want[l.ID] {
			delete(s.links, code)
			n++
		}
	}
	return n, nil
}

func (s *Store) CodesForIDs(_ context.Context, ids []int64) (map[int64]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[int64]string, len(ids))
	for _, l := range s.links {
		if want[l.ID] {
			out[l.ID] = l.Code
		}
	}
	return out, nil
}

func (s *Store) InsertEvent(_ context.Context, e cmn.AccessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEvtID++
	e.ID = s.nextEvtID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.events = append(s.events, e)
	return nil
}

func (s *Store) ListEvents(_ context.Context, filter cmn.EventFilter, page cmn.Page) ([]cmn.AccessEvent, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page = page.Normalize("accessed_at")

	var matched []cmn.AccessEvent
	for _, e := range s.events {
		if filter.Code != "" && e.Code != filter.Code {
			continue
		}
		if filter.IP != "" && e.IP != filter.IP {
			continue
		}
		if filter.From != nil && e.AccessedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.AccessedAt.After(*filter.To) {
			continue
		}
		matched = append(matched, e)
	}

	asc := page.Order == cmn.SortAsc
	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch page.SortBy {
		case "id":
			less = matched[i].ID < matched[j].ID
		case "created_at":
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		default:
			less = matched[i].AccessedAt.Before(matched[j].AccessedAt)
		}
		if asc {
			return less
		}
		return !less
	})

	total := len(matched)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.PerPage
	if end > total {
		end = total
	}
	return append([]cmn.AccessEvent(nil), matched[start:end]...), total, nil
}

func (s *Store) DeleteEvents(_ context.Context, ids []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	kept := s.events[:0]
	n := 0
	for _, e := range s.events {
		if want[e.ID] {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return n, nil
}

func (s *Store) Ping(_ context.Context) error { return nil }
func (s *Store) Close() error                 { return nil }
