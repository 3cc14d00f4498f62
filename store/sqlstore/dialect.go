// Package sqlstore implements the Store contract once over database/sql,
// parameterized by a small Dialect so the three SQL backends (sqlite,
// postgres, mysql) differ only in parameter
// binding style, unique-violation detection and bootstrap schema.
// Everything else — the queries, the
// uniqueness-constraint-is-the-source-of-truth collision handling, the
// pagination — is written once in sqlstore.go.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect isolates the per-backend differences: connection
// pooling is configured by the caller (Open, OpenPostgres, OpenMySQL);
// parameter binding, unique-violation detection and the bootstrap schema
// are supplied here.
type Dialect interface {
	// Name identifies the backend for error messages and structured logs.
	Name() string

	// Placeholder returns the bind-parameter marker for the nth (1-based)
	// positional argument: "?" for sqlite/mysql, "$1"/"$2"/... for postgres.
	Placeholder(n int) string

	// IsUniqueViolation reports whether err is a unique-constraint failure
	// on the links.code column — the sole source of truth for code
	// collision (never a pre-check).
	IsUniqueViolation(err error) bool

	// Schema returns the idempotent bootstrap DDL for this dialect. A full
	// migration runner is out of scope; this is the minimal
	// CREATE-TABLE-IF-NOT-EXISTS every backend needs to be runnable
	// standalone.
	Schema() string
}

// placeholders renders n sequential placeholders starting at offset start,
// e.g. placeholders(pg, 2, 3) -> "$2, $3, $4".
func placeholders(d Dialect, start, n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ", "
		}
		s += d.Placeholder(start + i)
	}
	return s
}

func inClause(d Dialect, start, n int) string {
	return fmt.Sprintf("(%s)", placeholders(d, start, n))
}

// applySchema executes the dialect's bootstrap DDL one statement at a
// time: neither the mysql driver nor pgx's database/sql adapter accepts a
// multi-statement Exec by default.
func applySchema(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, stmt := range strings.Split(d.Schema(), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s schema: %w", d.Name(), err)
		}
	}
	return nil
}
