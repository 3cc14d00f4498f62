package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shortenlabs/shortener/cmn"
	cerrors "github.com/shortenlabs/shortener/cmn/errors"
	"github.com/shortenlabs/shortener/store/sqlstore"
)

// openTest opens a file-backed sqlite store in a temp dir. A real file
// (rather than ":memory:") is required here because Open keeps separate
// write/read *sql.DB handles and sqlite's in-memory databases are
// per-connection.
func openTest(t *testing.T) *sqlstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := sqlstore.Open(sqlstore.SQLiteConfig{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetByCode(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	l, err := s.CreateLink(ctx, cmn.Link{Code: "abcd", OriginalURL: "https://example.com"})
	require.NoError(t, err)
	require.NotZero(t, l.ID)

	got, err := s.GetByCode(ctx, "abcd")
	require.NoError(t, err)
	require.Equal(t, l.Code, got.Code)
	require.Equal(t, l.OriginalURL, got.OriginalURL)
}

func TestCreateLinkCodeTaken(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	_, err := s.CreateLink(ctx, cmn.Link{Code: "dupe", OriginalURL: "https://a.example"})
	require.NoError(t, err)

	_, err = s.CreateLink(ctx, cmn.Link{Code: "dupe", OriginalURL: "https://b.example"})
	require.True(t, cerrors.Is(err, cerrors.KindCodeTaken))
}

func TestGetByCodeNotFound(t *testing.T) {
	s := openTest(t)
	_, err := s.GetByCode(context.Background(), "missing")
	require.True(t, cerrors.Is(err, cerrors.KindNotFound))
}

func TestUpdateAndDeleteLink(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	_, err := s.CreateLink(ctx, cmn.Link{Code: "code1", OriginalURL: "https://example.com"})
	require.NoError(t, err)

	newURL := "https://new.example.com"
	updated, err := s.UpdateLink(ctx, "code1", cmn.LinkPatch{OriginalURL: &newURL})
	require.NoError(t, err)
	require.Equal(t, newURL, updated.OriginalURL)

	require.NoError(t, s.DeleteLink(ctx, "code1"))
	_, err = s.GetByCode(ctx, "code1")
	require.True(t, cerrors.Is(err, cerrors.KindNotFound))
}

func TestListLinksPaginatesAndFilters(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	for _, code := range []string{"aa", "bb", "cc"} {
		_, err := s.CreateLink(ctx, cmn.Link{Code: code, OriginalURL: "https://example.com/" + code})
		require.NoError(t, err)
	}

	links, total, err := s.ListLinks(ctx, cmn.LinkFilter{}, cmn.Page{Page: 1, PerPage: 2, SortBy: "code", Order: cmn.SortAsc})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, links, 2)
	require.Equal(t, "aa", links[0].Code)

	filtered, total, err := s.ListLinks(ctx, cmn.LinkFilter{Code: "bb"}, cmn.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "bb", filtered[0].Code)
}

func TestInsertAndListEvents(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.InsertEvent(ctx, cmn.AccessEvent{Code: "c1", IP: "1.2.3.4"}))

	events, total, err := s.ListEvents(ctx, cmn.EventFilter{Code: "c1"}, cmn.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "1.2.3.4", events[0].IP)
}

func TestPing(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.Ping(context.Background()))
}
