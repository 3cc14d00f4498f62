// Package httpsrv is the HTTP surface: route registration, JSON
// request/response codecs, the pagination envelope, and the access log.
package httpsrv

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shortenlabs/shortener/authn"
	"github.com/shortenlabs/shortener/cache"
	"github.com/shortenlabs/shortener/cmn/debug"
	"github.com/shortenlabs/shortener/histsvc"
	"github.com/shortenlabs/shortener/linksvc"
	"github.com/shortenlabs/shortener/redirect"
	"github.com/shortenlabs/shortener/store"
)

// NotFoundPage is the configurable body returned for an absent or disabled
// code.
type NotFoundPage struct {
	ContentType string
	Body        []byte
}

func defaultNotFoundPage() NotFoundPage {
	return NotFoundPage{ContentType: "text/plain; charset=utf-8", Body: []byte("404 page not found\n")}
}

// Deps wires every service the HTTP surface depends on.
type Deps struct {
	Links              *linksvc.Service
	History            *histsvc.Service
	Auth               *authn.Gate
	Redirect           *redirect.Pipeline
	Store              store.Store
	Cache              cache.Cache
	CacheEnabled       bool
	TrustedProxyHeader string
	AdminTimeout       time.Duration // request deadline for /api/*; default 30s
	RedirectTimeout    time.Duration // request deadline for GET /{code}; default 5s
	NotFound           NotFoundPage
	Registry           *prometheus.Registry
	Log                *zap.SugaredLogger
}

// Server holds the wired chi.Mux plus the bits shutdown needs.
type Server struct {
	mux           *chi.Mux
	metrics       *metrics
	log           *zap.SugaredLogger
	trustedHeader string
}

func New(deps Deps) *Server {
	if deps.NotFound.Body == nil {
		deps.NotFound = defaultNotFoundPage()
	}
	if deps.AdminTimeout <= 0 {
		deps.AdminTimeout = 30 * time.Second
	}
	if deps.RedirectTimeout <= 0 {
		deps.RedirectTimeout = 5 * time.Second
	}
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	s := &Server{metrics: newMetrics(reg), log: deps.Log, trustedHeader: deps.TrustedProxyHeader}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.accessLog)
	r.Use(s.instrument)

	h := &handlers{deps: deps, metrics: s.metrics, log: deps.Log}

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// pprof/expvar, present only in -tags debug builds.
	for path, handler := range debug.Handlers() {
		r.HandleFunc(path, handler)
	}
	r.With(chimw.Timeout(deps.RedirectTimeout)).Get("/{code}", h.redirectCode)

	r.Route("/api", func(api chi.Router) {
		api.Use(chimw.Timeout(deps.AdminTimeout))
		api.Post("/account/login", h.login)

		api.Group(func(admin chi.Router) {
			admin.Use(s.requireAuth(deps.Auth))

			admin.Post("/account/logout", h.logout)
			admin.Get("/users/current", h.currentUser)

			admin.Post("/shortens", h.createLink)
			admin.Get("/shortens", h.listLinks)
			admin.Get("/shortens/{code}", h.getLink)
			admin.Put("/shortens/{code}", h.updateLink)
			admin.Delete("/shortens/{code}", h.deleteLink)
			admin.Post("/shortens/batch-delete", h.batchDeleteLinks)

			admin.Get("/histories", h.listHistory)
			admin.Post("/histories/batch-delete", h.batchDeleteHistory)
		})
	})

	s.mux = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// accessLog emits one structured log line per request (method, path,
// status, duration, client IP).
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if s.log != nil {
			s.log.Infow("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", redirect.ClientIP(r, s.trustedHeader),
			)
		}
	})
}

// instrument records the prometheus request counters/histogram. The
// route label uses chi's matched pattern, not the raw path, so /shortens/{code}
// doesn't explode into one series per code.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		s.metrics.observeRequest(route, r.Method, ww.Status(), time.Since(start))
	})
}

// requireAuth gates everything under /api/* except
// login: either scheme authenticates, failure is a single generic 401
//.
func (s *Server) requireAuth(gate *authn.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-KEY")
			bearer := bearerToken(r)
			if !gate.Authenticate(apiKey, bearer) {
				writeError(w, authUnauthorized())
				return
			}
			ctx := context.WithValue(r.Context(), authMethodKey{}, gate.AuthMethod(apiKey, bearer))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type authMethodKey struct{}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
