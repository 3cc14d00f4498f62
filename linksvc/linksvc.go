// Package linksvc holds the business rules sitting between the HTTP
// surface and the storage/cache layers: code generation with collision
// retry, validation, and the write-through/invalidate cache policy.
package linksvc

import (
	"context"
	"time"

	"github.com/asaskevich/govalidator"
	"go.uber.org/zap"

	"github.com/shortenlabs/shortener/cache"
	"github.com/shortenlabs/shortener/cmn"
	"github.com/shortenlabs/shortener/cmn/debug"
	cerrors "github.com/shortenlabs/shortener/cmn/errors"
	"github.com/shortenlabs/shortener/codegen"
	"github.com/shortenlabs/shortener/store"
)

// maxCodeAttempts bounds the generate-then-insert retry loop.
const maxCodeAttempts = 5

// Service owns link create/read/update/delete and listing.
type Service struct {
	store store.Store
	cache cache.Cache
	gen   *codegen.Generator
	ttl   time.Duration
	log   *zap.SugaredLogger
}

func New(st store.Store, ca cache.Cache, gen *codegen.Generator, ttl time.Duration, logger *zap.SugaredLogger) *Service {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Service{store: st, cache: ca, gen: gen, ttl: ttl, log: logger}
}

func validateURL(raw string) error {
	if raw == "" || !govalidator.IsRequestURL(raw) {
		return cerrors.InvalidURL("original_url must be a syntactically valid absolute URL")
	}
	return nil
}

// Create stores a new link under either an explicit code (validated
// against the generator's alphabet/length and inserted directly, surfacing
// CodeTaken on collision) or up to maxCodeAttempts generate-then-insert
// tries before CodeExhausted.
func (s *Service) Create(ctx context.Context, originalURL, code, description string) (cmn.Link, error) {
	if err := validateURL(originalURL); err != nil {
		return cmn.Link{}, err
	}

	if code != "" {
		if !s.gen.ValidCustom(code) {
			return cmn.Link{}, cerrors.InvalidCode("code must use the configured alphabet and be at most 16 characters")
		}
		return s.createWithCode(ctx, code, originalURL, description)
	}

	var lastErr error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		gen, err := s.gen.Generate()
		if err != nil {
			return cmn.Link{}, err
		}
		link, err := s.createWithCode(ctx, gen, originalURL, description)
		if err == nil {
			return link, nil
		}
		if !cerrors.Is(err, cerrors.KindCodeTaken) {
			return cmn.Link{}, err
		}
		lastErr = err
	}
	if s.log != nil {
		s.log.Warnw("code generation exhausted retry budget", "attempts", maxCodeAttempts, "last_error", lastErr)
	}
	return cmn.Link{}, cerrors.CodeExhausted()
}

func (s *Service) createWithCode(ctx context.Context, code, originalURL, description string) (cmn.Link, error) {
	link, err := s.store.CreateLink(ctx, cmn.Link{Code: code, OriginalURL: originalURL, Description: description, Status: cmn.StatusEnabled})
	if err != nil {
		return cmn.Link{}, err
	}
	debug.Assert(link.ID > 0, "created link without an assigned id")
	s.cache.Set(ctx, link.Code, link, s.ttl)
	return link, nil
}

// Get is cache-first, populating the cache on a storage hit.
func (s *Service) Get(ctx context.Context, code string) (cmn.Link, error) {
	if link, ok := s.cache.Get(ctx, code); ok {
		return link, nil
	}
	link, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return cmn.Link{}, err
	}
	s.cache.Set(ctx, code, link, s.ttl)
	return link, nil
}

// Update applies the patch in storage, then
// invalidate+repopulate the cache. Code is immutable via this path.
func (s *Service) Update(ctx context.Context, code string, patch cmn.LinkPatch) (cmn.Link, error) {
	if patch.OriginalURL != nil {
		if err := validateURL(*patch.OriginalURL); err != nil {
			return cmn.Link{}, err
		}
	}
	link, err := s.store.UpdateLink(ctx, code, patch)
	if err != nil {
		return cmn.Link{}, err
	}
	s.cache.Del(ctx, code)
	s.cache.Set(ctx, code, link, s.ttl)
	return link, nil
}

// Delete removes from storage and invalidates the cache entry.
func (s *Service) Delete(ctx context.Context, code string) error {
	if err := s.store.DeleteLink(ctx, code); err != nil {
		return err
	}
	s.cache.Del(ctx, code)
	return nil
}

// DeleteMany bulk-deletes by id. It
// always resolves ids -> codes before deleting, so every corresponding
// cache entry is invalidated immediately rather than left to expire via
// TTL.
func (s *Service) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	codes, err := s.store.CodesForIDs(ctx, ids)
	if err != nil {
		return 0, err
	}
	n, err := s.store.DeleteLinks(ctx, ids)
	if err != nil {
		return 0, err
	}
	for _, code := range codes {
		s.cache.Del(ctx, code)
	}
	return n, nil
}

// List delegates straight to storage, no cache
// involvement.
func (s *Service) List(ctx context.Context, filter cmn.LinkFilter, page cmn.Page) ([]cmn.Link, int, error) {
	return s.store.ListLinks(ctx, filter, page)
}
