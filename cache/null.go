package cache

import (
	"context"
	"time"

	"github.com/shortenlabs/shortener/cmn"
)

// nullCache is the disabled-cache / cache-unreachable fallback: every
// Get misses, every Set/Del is a no-op. Used directly when config
// disables caching and substituted in by the owning component when a
// real backend fails to connect at startup, so callers never branch on
// cache-present.
type nullCache struct{}

// NewNull returns the no-op Cache.
func NewNull() Cache { return nullCache{} }

func (nullCache) Get(context.Context, string) (cmn.Link, bool) { return cmn.Link{}, false }
func (nullCache) Set(context.Context, string, cmn.Link, time.Duration) {}
func (nullCache) Del(context.Context, string)                         {}
func (nullCache) Close() error                                        { return nil }
