package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shortenlabs/shortener/cmn"
	"github.com/shortenlabs/shortener/cmn/debug"
	cerrors "github.com/shortenlabs/shortener/cmn/errors"
	"github.com/shortenlabs/shortener/store"
	"github.com/pkg/errors"
)

// Store is the single database/sql-backed implementation of store.Store,
// shared by all three SQL backends; only the embedded Dialect and the
// read/write *sql.DB handles differ per backend.
type Store struct {
	dialect Dialect
	write   *sql.DB
	read    *sql.DB
}

var _ store.Store = (*Store)(nil)

func (s *Store) Close() error {
	if s.write == s.read {
		return s.write.Close()
	}
	we := s.write.Close()
	re := s.read.Close()
	if we != nil {
		return we
	}
	return re
}

func (s *Store) Ping(ctx context.Context) error {
	return s.read.PingContext(ctx)
}

func statusOf(st cmn.Status) int { return int(st) }

func (s *Store) CreateLink(ctx context.Context, l cmn.Link) (cmn.Link, error) {
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now

	q := fmt.Sprintf(
		`INSERT INTO links (code, original_url, description, status, created_at, updated_at) VALUES (%s)`,
		placeholders(s.dialect, 1, 6))

	if s.dialect.Name() == "postgres" {
		q += " RETURNING id"
		var id int64
		err := s.write.QueryRowContext(ctx, q, l.Code, l.OriginalURL, l.Description, statusOf(l.Status), l.CreatedAt, l.UpdatedAt).Scan(&id)
		if err != nil {
			if s.dialect.IsUniqueViolation(err) {
				return cmn.Link{}, cerrors.CodeTaken(l.Code)
			}
			return cmn.Link{}, cerrors.Storage("create link", err)
		}
		l.ID = id
		return l, nil
	}

	res, err := s.write.ExecContext(ctx, q, l.Code, l.OriginalURL, l.Description, statusOf(l.Status), l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return cmn.Link{}, cerrors.CodeTaken(l.Code)
		}
		return cmn.Link{}, cerrors.Storage("create link", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return cmn.Link{}, cerrors.Storage("create link: read generated id", err)
	}
	l.ID = id
	return l, nil
}

func scanLink(row interface{ Scan(...interface{}) error }) (cmn.Link, error) {
	var l cmn.Link
	var status int
	if err := row.Scan(&l.ID, &l.Code, &l.OriginalURL, &l.Description, &status, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return cmn.Link{}, err
	}
	l.Status = cmn.Status(status)
	return l, nil
}

const linkCols = "id, code, original_url, description, status, created_at, updated_at"

func (s *Store) GetByCode(ctx context.Context, code string) (cmn.Link, error) {
	q := fmt.Sprintf(`SELECT %s FROM links WHERE code = %s`, linkCols, s.dialect.Placeholder(1))
	row := s.read.QueryRowContext(ctx, q, code)
	l, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cmn.Link{}, cerrors.NotFound("link not found: " + code)
		}
		return cmn.Link{}, cerrors.Storage("get link", err)
	}
	return l, nil
}

func (s *Store) ListLinks(ctx context.Context, filter cmn.LinkFilter, page cmn.Page) ([]cmn.Link, int, error) {
	page = page.Normalize("created_at")
	debug.Assert(page.PerPage > 0 && page.Page > 0, "unnormalized page reached storage")
	if !validSortKey(page.SortBy, "id", "created_at", "updated_at", "code") {
		page.SortBy = "created_at"
	}

	var (
		where []string
		args  []interface{}
		n     = 1
	)
	if filter.Code != "" {
		where = append(where, fmt.Sprintf("code = %s", s.dialect.Placeholder(n)))
		args = append(args, filter.Code)
		n++
	}
	if filter.OriginalURL != "" {
		where = append(where, fmt.Sprintf("original_url LIKE %s", s.dialect.Placeholder(n)))
		args = append(args, "%"+filter.OriginalURL+"%")
		n++
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = %s", s.dialect.Placeholder(n)))
		args = append(args, statusOf(*filter.Status))
		n++
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQ := "SELECT COUNT(*) FROM links" + whereSQL
	if err := s.read.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, cerrors.Storage("count links", err)
	}

	// id is always the deterministic tiebreaker.
	orderSQL := fmt.Sprintf(" ORDER BY %s %s, id %s", page.SortBy, sqlDir(page.Order), sqlDir(page.Order))
	limitSQL := fmt.Sprintf(" LIMIT %s OFFSET %s", s.dialect.Placeholder(n), s.dialect.Placeholder(n+1))
	args = append(args, page.PerPage, page.Offset())

	q := fmt.Sprintf("SELECT %s FROM links%s%s%s", linkCols, whereSQL, orderSQL, limitSQL)
	rows, err := s.read.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, cerrors.Storage("list links", err)
	}
	defer rows.Close()

	var out []cmn.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, 0, cerrors.Storage("scan link", err)
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func validSortKey(key string, allowed ...string) bool {
	for _, a := range allowed {
		if key == a {
			return true
		}
	}
	return false
}

func sqlDir(o cmn.SortOrder) string {
	if o == cmn.SortAsc {
		return "ASC"
	}
	return "DESC"
}

func (s *Store) UpdateLink(ctx context.Context, code string, patch cmn.LinkPatch) (cmn.Link, error) {
	cur, err := s.GetByCode(ctx, code)
	if err != nil {
		return cmn.Link{}, err
	}

	changed := false
	if patch.OriginalURL != nil && *patch.OriginalURL != cur.OriginalURL {
		cur.OriginalURL = *patch.OriginalURL
		changed = true
	}
	if patch.Description != nil && *patch.Description != cur.Description {
		cur.Description = *patch.Description
		changed = true
	}
	if patch.Status != nil && *patch.Status != cur.Status {
		cur.Status = *patch.Status
		changed = true
	}
	if !changed {
		// Declared choice: an
		// empty-effect patch does not bump updated_at.
		return cur, nil
	}

	cur.UpdatedAt = time.Now().UTC()
	q := fmt.Sprintf(`UPDATE links SET original_url = %s, description = %s, status = %s, updated_at = %s WHERE code = %s`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3), s.dialect.Placeholder(4), s.dialect.Placeholder(5))
	res, err := s.write.ExecContext(ctx, q, cur.OriginalURL, cur.Description, statusOf(cur.Status), cur.UpdatedAt, code)
	if err != nil {
		return cmn.Link{}, cerrors.Storage("update link", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cmn.Link{}, cerrors.NotFound("link not found: " + code)
	}
	return cur, nil
}

func (s *Store) DeleteLink(ctx context.Context, code string) error {
	q := fmt.Sprintf(`DELETE FROM links WHERE code = %s`, s.dialect.Placeholder(1))
	res, err := s.write.ExecContext(ctx, q, code)
	if err != nil {
		return cerrors.Storage("delete link", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cerrors.NotFound("link not found: " + code)
	}
	return nil
}

func (s *Store) DeleteLinks(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := fmt.Sprintf(`DELETE FROM links WHERE id IN %s`, inClause(s.dialect, 1, len(ids)))
	res, err := s.write.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, cerrors.Storage("bulk delete links", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) CodesForIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := fmt.Sprintf(`SELECT id, code FROM links WHERE id IN %s`, inClause(s.dialect, 1, len(ids)))
	rows, err := s.read.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, cerrors.Storage("resolve codes for ids", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var code string
		if err := rows.Scan(&id, &code); err != nil {
			return nil, cerrors.Storage("scan code", err)
		}
		out[id] = code
	}
	return out, rows.Err()
}

func (s *Store) InsertEvent(ctx context.Context, e cmn.AccessEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	q := fmt.Sprintf(`INSERT INTO access_events
		(link_id, code, ip, user_agent, referer, country, region, province, city, isp, device_type, os, browser, accessed_at, created_at)
		VALUES (%s)`, placeholders(s.dialect, 1, 15))
	_, err := s.write.ExecContext(ctx, q,
		e.LinkID, e.Code, e.IP, e.UserAgent, e.Referer,
		e.Country, e.Region, e.Province, e.City, e.ISP,
		string(e.DeviceType), e.OS, e.Browser, e.AccessedAt, e.CreatedAt)
	if err != nil {
		return cerrors.EventRecord("insert access event", err)
	}
	return nil
}

const eventCols = "id, link_id, code, ip, user_agent, referer, country, region, province, city, isp, device_type, os, browser, accessed_at, created_at"

func scanEvent(row interface{ Scan(...interface{}) error }) (cmn.AccessEvent, error) {
	var e cmn.AccessEvent
	var device string
	if err := row.Scan(&e.ID, &e.LinkID, &e.Code, &e.IP, &e.UserAgent, &e.Referer,
		&e.Country, &e.Region, &e.Province, &e.City, &e.ISP,
		&device, &e.OS, &e.Browser, &e.AccessedAt, &e.CreatedAt); err != nil {
		return cmn.AccessEvent{}, err
	}
	e.DeviceType = cmn.DeviceType(device)
	return e, nil
}

func (s *Store) ListEvents(ctx context.Context, filter cmn.EventFilter, page cmn.Page) ([]cmn.AccessEvent, int, error) {
	page = page.Normalize("accessed_at")
	if !validSortKey(page.SortBy, "id", "accessed_at", "created_at") {
		page.SortBy = "accessed_at"
	}

	var (
		where []string
		args  []interface{}
		n     = 1
	)
	if filter.Code != "" {
		where = append(where, fmt.Sprintf("code = %s", s.dialect.Placeholder(n)))
		args = append(args, filter.Code)
		n++
	}
	if filter.IP != "" {
		where = append(where, fmt.Sprintf("ip = %s", s.dialect.Placeholder(n)))
		args = append(args, filter.IP)
		n++
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("accessed_at >= %s", s.dialect.Placeholder(n)))
		args = append(args, *filter.From)
		n++
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("accessed_at <= %s", s.dialect.Placeholder(n)))
		args = append(args, *filter.To)
		n++
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.read.QueryRowContext(ctx, "SELECT COUNT(*) FROM access_events"+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, cerrors.Storage("count events", err)
	}

	orderSQL := fmt.Sprintf(" ORDER BY %s %s, id %s", page.SortBy, sqlDir(page.Order), sqlDir(page.Order))
	limitSQL := fmt.Sprintf(" LIMIT %s OFFSET %s", s.dialect.Placeholder(n), s.dialect.Placeholder(n+1))
	args = append(args, page.PerPage, page.Offset())

	q := fmt.Sprintf("SELECT %s FROM access_events%s%s%s", eventCols, whereSQL, orderSQL, limitSQL)
	rows, err := s.read.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, cerrors.Storage("list events", err)
	}
	defer rows.Close()

	var out []cmn.AccessEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, cerrors.Storage("scan event", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (s *Store) DeleteEvents(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := fmt.Sprintf(`DELETE FROM access_events WHERE id IN %s`, inClause(s.dialect, 1, len(ids)))
	res, err := s.write.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, cerrors.Storage("bulk delete events", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
