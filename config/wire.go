// wire.go builds the dependency graph (storage -> cache -> services ->
// HTTP surface) and manages process lifecycle: an errgroup fans out the
// listener and a signal watcher, and shutdown drains and closes in
// dependency order.
package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shortenlabs/shortener/authn"
	"github.com/shortenlabs/shortener/cache"
	"github.com/shortenlabs/shortener/codegen"
	"github.com/shortenlabs/shortener/enrich"
	"github.com/shortenlabs/shortener/histsvc"
	"github.com/shortenlabs/shortener/httpsrv"
	"github.com/shortenlabs/shortener/linksvc"
	"github.com/shortenlabs/shortener/redirect"
	"github.com/shortenlabs/shortener/store"
	"github.com/shortenlabs/shortener/store/sqlstore"
)

// App is the fully wired process: an HTTP server plus every background
// resource shutdown needs to close in order.
type App struct {
	cfg      Config
	log      *zap.SugaredLogger
	http     *http.Server
	st       store.Store
	ca       cache.Cache
	geo      *enrich.GeoLookup
	pipeline *redirect.Pipeline
}

// Build wires the full component graph from a validated Config. It does
// not start listening; call Run for that.
func Build(cfg Config, logger *zap.SugaredLogger) (*App, error) {
	st, err := openStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open storage backend %s: %w", cfg.Database.Type, err)
	}

	ca := openCache(cfg.Cache, logger)

	geo := enrich.NewGeoLookup(cfg.GeoIP.Path, geoCachePolicy(cfg.GeoIP.CachePolicy), logger)
	if !cfg.GeoIP.Enabled {
		geo = enrich.NewGeoLookup("", enrich.GeoCacheNone, logger)
	}

	gen := codegen.New(cfg.Shortener.CodeCharset, cfg.Shortener.CodeLength)

	passwordHash, err := authn.HashPassword(cfg.Admin.Password)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	jwtSecret := cfg.Server.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = randomSecret()
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		logger.Warnw("server.jwt_secret not configured, generated an ephemeral one; outstanding sessions will not survive a restart")
	}
	gate := authn.New(authn.Config{
		APIKey:            cfg.Server.APIKey,
		AdminUsername:     cfg.Admin.Username,
		AdminPasswordHash: passwordHash,
		JWTSecret:         jwtSecret,
		SessionTTL:        cfg.Server.SessionTTL.Std(),
	}, logger)

	ttl := time.Duration(cfg.Cache.Expire) * time.Second
	links := linksvc.New(st, ca, gen, ttl, logger)
	hist := histsvc.New(st)

	pipeline := redirect.New(links, st, geo, redirect.Config{
		EventDeadline:      cfg.Server.RedirectTimeout.Std(),
		TrustedProxyHeader: cfg.Server.TrustedPlatformHeader,
	}, logger)

	srv := httpsrv.New(httpsrv.Deps{
		Links:              links,
		History:            hist,
		Auth:               gate,
		Redirect:           pipeline,
		Store:              st,
		Cache:              ca,
		CacheEnabled:       cfg.Cache.Enabled,
		TrustedProxyHeader: cfg.Server.TrustedPlatformHeader,
		AdminTimeout:       cfg.Server.AdminTimeout.Std(),
		RedirectTimeout:    cfg.Server.RedirectTimeout.Std(),
		Log:                logger,
	})

	logger.Infow("shortener wired",
		"storage", cfg.Database.Type,
		"cache", cacheSummary(cfg.Cache),
		"code_length", cfg.Shortener.CodeLength,
		"code_charset", cfg.Shortener.CodeCharset,
		"address", cfg.Server.Address,
	)

	return &App{
		cfg:      cfg,
		log:      logger,
		st:       st,
		ca:       ca,
		geo:      geo,
		pipeline: pipeline,
		http:     &http.Server{Addr: cfg.Server.Address, Handler: srv},
	}, nil
}

func cacheSummary(cfg CacheConfig) string {
	if !cfg.Enabled {
		return "disabled"
	}
	return cfg.Type
}

// Run starts the HTTP listener and blocks until ctx is cancelled (SIGINT/
// SIGTERM via WithSignals, or a caller-supplied context in tests), then
// drains in-flight requests within server.shutdown_timeout and closes
// the background recorder, cache, geo database, and storage in that order.
func (a *App) Run(ctx context.Context) error {
	grp, grpCtx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		a.log.Infow("listening", "address", a.cfg.Server.Address)
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	grp.Go(func() error {
		<-grpCtx.Done()
		return a.shutdown()
	})

	return grp.Wait()
}

func (a *App) shutdown() error {
	a.log.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.log.Warnw("http server shutdown did not complete cleanly", "error", err)
	}
	if err := a.pipeline.Close(); err != nil {
		a.log.Warnw("access event recorder shutdown did not complete cleanly", "error", err)
	}
	if err := a.ca.Close(); err != nil {
		a.log.Warnw("cache close failed", "error", err)
	}
	if err := a.geo.Close(); err != nil {
		a.log.Warnw("geo database close failed", "error", err)
	}
	if err := a.st.Close(); err != nil {
		a.log.Warnw("storage close failed", "error", err)
	}
	return nil
}

// WithSignals returns a context cancelled on SIGINT/SIGTERM, for wiring
// into Run from main().
func WithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func openStore(cfg DatabaseConfig) (store.Store, error) {
	switch cfg.Type {
	case "sqlite":
		return sqlstore.Open(sqlstore.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			MaxReaders:  cfg.SQLite.MaxReaders,
			BusyTimeout: cfg.SQLite.BusyTimeout.Std(),
		})
	case "postgres":
		return sqlstore.OpenPostgres(sqlstore.PostgresConfig{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime.Std(),
		})
	case "mysql":
		return sqlstore.OpenMySQL(sqlstore.MySQLConfig{
			DSN:             cfg.MySQL.DSN,
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime.Std(),
		})
	default:
		return nil, fmt.Errorf("unknown database.type %q", cfg.Type)
	}
}

// openCache never fails startup — a bad redis
// address degrades to an always-miss cache with a warning, not a refusal
// to start.
func openCache(cfg CacheConfig, logger *zap.SugaredLogger) cache.Cache {
	if !cfg.Enabled {
		return cache.NewNull()
	}
	switch cfg.Type {
	case "redis":
		rc := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Prefix,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.Ping(pingCtx, rc); err != nil {
			logger.Warnw("cache unreachable at startup, falling back to no-op cache", "error", err)
			return cache.NewNull()
		}
		return rc
	default:
		logger.Warnw("unknown cache.type, caching disabled", "type", cfg.Type)
		return cache.NewNull()
	}
}

func geoCachePolicy(s string) enrich.GeoCachePolicy {
	switch s {
	case "none":
		return enrich.GeoCacheNone
	case "full":
		return enrich.GeoCacheFull
	default:
		return enrich.GeoCacheIndex
	}
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
