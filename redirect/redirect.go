// Package redirect is the hot path: resolve a code, answer with a 3xx
// or a 404-equivalent, then fire-and-forget an AccessEvent off the
// request's critical path. The background recorder is a small bounded
// worker pool built on errgroup.
package redirect

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shortenlabs/shortener/cmn"
	cerrors "github.com/shortenlabs/shortener/cmn/errors"
	"github.com/shortenlabs/shortener/enrich"
	"github.com/shortenlabs/shortener/linksvc"
	"github.com/shortenlabs/shortener/store"
)

// RequestMeta is the handler-supplied context for an access event; kept
// free of net/http.Request in its storage shape so the recording path
// doesn't hold the request alive longer than necessary.
type RequestMeta struct {
	IP        string
	UserAgent string
	Referer   string
}

// Config sizes the background recorder.
type Config struct {
	Workers            int
	QueueSize          int
	EventDeadline      time.Duration // default 5s
	TrustedProxyHeader string        // e.g. "X-Forwarded-For"; empty disables
}

// Pipeline resolves codes and records access events.
type Pipeline struct {
	links *linksvc.Service
	store store.Store
	geo   *enrich.GeoLookup
	log   *zap.SugaredLogger

	cfg  Config
	jobs chan job
	grp  *errgroup.Group
}

type job struct {
	code string
	meta RequestMeta
	at   time.Time
}

func New(links *linksvc.Service, st store.Store, geo *enrich.GeoLookup, cfg Config, logger *zap.SugaredLogger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.EventDeadline <= 0 {
		cfg.EventDeadline = 5 * time.Second
	}

	p := &Pipeline{
		links: links,
		store: st,
		geo:   geo,
		log:   logger,
		cfg:   cfg,
		jobs:  make(chan job, cfg.QueueSize),
	}

	grp := &errgroup.Group{}
	for i := 0; i < cfg.Workers; i++ {
		grp.Go(p.worker)
	}
	p.grp = grp
	return p
}

// Resolve looks the code up and classifies it as
// servable, not-found, or disabled. The caller (HTTP surface) decides the
// exact response; this keeps the pipeline free of net/http concerns.
func (p *Pipeline) Resolve(ctx context.Context, code string) (cmn.Link, error) {
	link, err := p.links.Get(ctx, code)
	if err != nil {
		return cmn.Link{}, err
	}
	if link.Status == cmn.StatusDisabled {
		return cmn.Link{}, cerrors.NotFound("link disabled: " + code)
	}
	return link, nil
}

// RecordAsync enqueues an AccessEvent build+insert for code/meta without
// blocking the caller. A full queue drops the event and logs
// a warning rather than applying backpressure to the redirect response;
// the return value reports whether the event was accepted, so the caller
// can count drops.
func (p *Pipeline) RecordAsync(code string, meta RequestMeta) bool {
	select {
	case p.jobs <- job{code: code, meta: meta, at: time.Now().UTC()}:
		return true
	default:
		if p.log != nil {
			p.log.Warnw("access event queue full, dropping event", "code", code)
		}
		return false
	}
}

func (p *Pipeline) worker() error {
	for j := range p.jobs {
		p.record(j)
	}
	return nil
}

func (p *Pipeline) record(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.EventDeadline)
	defer cancel()

	link, err := p.links.Get(ctx, j.code)
	if err != nil {
		if p.log != nil {
			p.log.Warnw("access event dropped: link resolution failed", "code", j.code, "error", err)
		}
		return
	}

	geo := cmn.GeoInfo{}
	if p.geo != nil {
		geo = p.geo.Lookup(j.meta.IP)
	}
	ua := enrich.ParseUA(j.meta.UserAgent)

	event := cmn.AccessEvent{
		LinkID:     link.ID,
		Code:       j.code,
		IP:         j.meta.IP,
		UserAgent:  j.meta.UserAgent,
		Referer:    j.meta.Referer,
		Country:    geo.Country,
		Region:     geo.Region,
		Province:   geo.Province,
		City:       geo.City,
		ISP:        geo.ISP,
		DeviceType: ua.DeviceType,
		OS:         ua.OS,
		Browser:    ua.Browser,
		AccessedAt: j.at,
	}
	if err := p.store.InsertEvent(ctx, event); err != nil {
		if p.log != nil {
			p.log.Warnw("access event insert failed", "code", j.code, "error", err)
		}
	}
}

// Close stops accepting new jobs and waits for in-flight ones to drain,
// part of the shutdown sequence.
func (p *Pipeline) Close() error {
	close(p.jobs)
	return p.grp.Wait()
}

// ClientIP extracts the caller's address: the configured
// trusted-proxy header when set and present, otherwise the direct peer.
func ClientIP(r *http.Request, trustedProxyHeader string) string {
	if trustedProxyHeader != "" {
		if v := r.Header.Get(trustedProxyHeader); v != "" {
			parts := strings.Split(v, ",")
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
