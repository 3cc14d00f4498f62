// Package enrich holds two independent, never-raising enrichment
// functions used by the redirect pipeline to attach geo/device context to
// an access event without ever being able to fail that request.
package enrich

import (
	"net"
	"os"
	"sync"

	"github.com/oschwald/maxminddb-golang"
	"go.uber.org/zap"

	"github.com/shortenlabs/shortener/cmn"
)

// GeoCachePolicy selects how GeoLookup holds the underlying MaxMind
// database in memory.
type GeoCachePolicy int

const (
	// GeoCacheNone memory-maps the database once, exactly as GeoCacheIndex
	// does; lookups do not re-read the file.
	GeoCacheNone GeoCachePolicy = iota
	// GeoCacheIndex memory-maps the database once and lets the OS page
	// cache serve repeat reads — the recommended default.
	GeoCacheIndex
	// GeoCacheFull reads the entire database into process memory at
	// startup.
	GeoCacheFull
)

// GeoLookup resolves an IP to GeoInfo. It never returns an error: any
// failure (missing database, malformed IP, lookup miss) yields a zero
// GeoInfo.
type GeoLookup struct {
	mu     sync.RWMutex
	db     *maxminddb.Reader
	log    *zap.SugaredLogger
	policy GeoCachePolicy
}

// NewGeoLookup opens dbPath under the given cache policy. A failure to
// open the database is logged and degrades to an always-empty lookup
// rather than failing startup — geo enrichment is optional decoration,
// never a hard dependency.
func NewGeoLookup(dbPath string, policy GeoCachePolicy, logger *zap.SugaredLogger) *GeoLookup {
	g := &GeoLookup{log: logger, policy: policy}
	if dbPath == "" {
		return g
	}

	var (
		db  *maxminddb.Reader
		err error
	)
	switch policy {
	case GeoCacheFull:
		var buf []byte
		buf, err = os.ReadFile(dbPath)
		if err == nil {
			db, err = maxminddb.FromBytes(buf)
		}
	default:
		// GeoCacheNone and GeoCacheIndex both mmap the file; the
		// distinction between "per-call file IO" and "index cached in
		// memory" is the OS page cache's job once the file is mmapped,
		// not this package's.
		db, err = maxminddb.Open(dbPath)
	}
	if err != nil {
		if logger != nil {
			logger.Warnw("geo database unavailable, lookups will be empty", "path", dbPath, "error", err)
		}
		return g
	}
	g.db = db
	return g
}

// Lookup resolves ip to GeoInfo, returning a zero value on any failure.
func (g *GeoLookup) Lookup(ip string) cmn.GeoInfo {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return cmn.GeoInfo{}
	}

	g.mu.RLock()
	db := g.db
	g.mu.RUnlock()
	if db == nil {
		return cmn.GeoInfo{}
	}

	var rec struct {
		Country struct {
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"country"`
		Subdivisions []struct {
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"subdivisions"`
		City struct {
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"city"`
		Traits struct {
			ISP string `maxminddb:"isp"`
		} `maxminddb:"traits"`
	}
	if err := db.Lookup(parsed, &rec); err != nil {
		if g.log != nil {
			g.log.Warnw("geo lookup failed", "ip", ip, "error", err)
		}
		return cmn.GeoInfo{}
	}

	info := cmn.GeoInfo{
		Country: rec.Country.Names["en"],
		City:    rec.City.Names["en"],
		ISP:     rec.Traits.ISP,
	}
	if len(rec.Subdivisions) > 0 {
		info.Region = rec.Subdivisions[0].Names["en"]
	}
	if len(rec.Subdivisions) > 1 {
		info.Province = rec.Subdivisions[1].Names["en"]
	}
	return info
}

// Close releases the underlying database file, if one was opened.
func (g *GeoLookup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db == nil {
		return nil
	}
	return g.db.Close()
}
