package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Network SQL backend.
	_ "github.com/go-sql-driver/mysql"
)

type mysqlDialect struct{}

func (mysqlDialect) Name() string              { return "mysql" }
func (mysqlDialect) Placeholder(_ int) string  { return "?" }

func (mysqlDialect) IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Error 1062")
}

func (mysqlDialect) Schema() string {
	return `
CREATE TABLE IF NOT EXISTS links (
	id BIGINT PRIMARY KEY AUTO_INCREMENT,
	code VARCHAR(16) NOT NULL UNIQUE,
	original_url TEXT NOT NULL,
	description TEXT,
	status TINYINT NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	INDEX idx_links_created_at (created_at)
) ENGINE=InnoDB;
CREATE TABLE IF NOT EXISTS access_events (
	id BIGINT PRIMARY KEY AUTO_INCREMENT,
	link_id BIGINT NOT NULL DEFAULT 0,
	code VARCHAR(16) NOT NULL,
	ip VARCHAR(64) NOT NULL DEFAULT '',
	user_agent TEXT,
	referer TEXT,
	country VARCHAR(128) NOT NULL DEFAULT '',
	region VARCHAR(128) NOT NULL DEFAULT '',
	province VARCHAR(128) NOT NULL DEFAULT '',
	city VARCHAR(128) NOT NULL DEFAULT '',
	isp VARCHAR(128) NOT NULL DEFAULT '',
	device_type VARCHAR(16) NOT NULL DEFAULT 'unknown',
	os VARCHAR(64) NOT NULL DEFAULT '',
	browser VARCHAR(64) NOT NULL DEFAULT '',
	accessed_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL,
	INDEX idx_events_code (code),
	INDEX idx_events_ip (ip)
) ENGINE=InnoDB;
`
}

// MySQLConfig configures the bounded network pool.
type MySQLConfig struct {
	DSN             string // parseTime=true is appended when the DSN has no parseTime setting
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func OpenMySQL(cfg MySQLConfig) (*Store, error) {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 30 * time.Minute
	}
	dsn := cfg.DSN
	if !strings.Contains(dsn, "parseTime=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := applySchema(context.Background(), db, mysqlDialect{}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{dialect: mysqlDialect{}, write: db, read: db}, nil
}
