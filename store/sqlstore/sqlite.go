package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	// Embedded single-file backend: one writer, many readers.
	_ "github.com/mattn/go-sqlite3"
)

type sqliteDialect struct{}

func (sqliteDialect) Name() string             { return "sqlite" }
func (sqliteDialect) Placeholder(_ int) string { return "?" }
func (sqliteDialect) IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (sqliteDialect) Schema() string {
	return `
CREATE TABLE IF NOT EXISTS links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	code TEXT NOT NULL UNIQUE,
	original_url TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_links_created_at ON links(created_at);
CREATE TABLE IF NOT EXISTS access_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	link_id INTEGER NOT NULL DEFAULT 0,
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
	accessed_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_code ON access_events(code);
CREATE INDEX IF NOT EXISTS idx_events_ip ON access_events(ip);
`
}

// SQLiteConfig configures the embedded backend's one-writer/N-reader pool.
type SQLiteConfig struct {
	Path        string
	MaxReaders  int // default 4
	BusyTimeout time.Duration
}

// Open opens the embedded sqlite backend. A single dedicated write
// connection plus a bounded pool of read connections keeps one writer and
// N readers — sqlite serializes writers internally,
// so a larger write pool only adds lock-contention latency.
func Open(cfg SQLiteConfig) (*Store, error) {
	if cfg.MaxReaders <= 0 {
		cfg.MaxReaders = 4
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	dsn := cfg.Path + "?_busy_timeout=" + strconv.Itoa(int(cfg.BusyTimeout.Milliseconds())) + "&_journal_mode=WAL"

	writeDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		writeDB.Close()
		return nil, err
	}
	readDB.SetMaxOpenConns(cfg.MaxReaders)

	if err := applySchema(context.Background(), writeDB, sqliteDialect{}); err != nil {
		writeDB.Close()
		readDB.Close()
		return nil, err
	}

	return &Store{
		dialect: sqliteDialect{},
		write:   writeDB,
		read:    readDB,
	}, nil
}
