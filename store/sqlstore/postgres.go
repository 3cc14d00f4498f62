package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	// pgx used through its database/sql driver so it shares sqlstore's
	// generic query layer with the other two backends.
	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresDialect struct{}

func (postgresDialect) Name() string             { return "postgres" }
func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) IsUniqueViolation(err error) bool {
	// pgx/v5's pgconn.PgError exposes Code "23505", but sqlstore is kept
	// driver-agnostic at this layer; the SQLSTATE also appears verbatim in
	// the wrapped error text, which is what every database/sql caller sees.
	return err != nil && strings.Contains(err.Error(), "23505")
}

func (postgresDialect) Schema() string {
	return `
CREATE TABLE IF NOT EXISTS links (
	id BIGSERIAL PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	original_url TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status SMALLINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_links_created_at ON links(created_at);
CREATE TABLE IF NOT EXISTS access_events (
	id BIGSERIAL PRIMARY KEY,
	link_id BIGINT NOT NULL DEFAULT 0,
	code TEXT NOT NULL,
	ip TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	referer TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	region TEXT NOT NULL DEFAULT '',
	province TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	isp TEXT NOT NULL DEFAULT '',
	device_type TEXT NOT NULL DEFAULT 'unknown',
	os TEXT NOT NULL DEFAULT '',
	browser TEXT NOT NULL DEFAULT '',
	accessed_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_code ON access_events(code);
CREATE INDEX IF NOT EXISTS idx_events_ip ON access_events(ip);
`
}

// PostgresConfig configures the bounded network pool.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func OpenPostgres(cfg PostgresConfig) (*Store, error) {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 30 * time.Minute
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := applySchema(context.Background(), db, postgresDialect{}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{dialect: postgresDialect{}, write: db, read: db}, nil
}
