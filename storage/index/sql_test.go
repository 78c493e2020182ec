package index

import (
	"context"
	"database/sql/driver"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/indieinfra/pantry/asset"
	"github.com/indieinfra/pantry/config"
)

func newSQLTestIndex(t *testing.T, driver string, prefix *string) (*SQLIndex, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	idx, err := newSQLIndexWithDB(&config.SQLIndexStrategy{Driver: driver, DSN: "ignored", TablePrefix: prefix}, db)
	if err != nil {
		t.Fatalf("index setup: %v", err)
	}

	return idx, mock
}

type jsonContains string

func (m jsonContains) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && strings.Contains(s, string(m))
}

func TestSQLIndex_PostgresInsertUsesDollarPlaceholders(t *testing.T) {
	idx, mock := newSQLTestIndex(t, "postgres", nil)
	a := localAsset("a.jpg", 0)

	if !strings.Contains(idx.insertQuery(), "$5") || idx.table != "pantry_media" {
		t.Fatalf("unexpected query or table: %s / %s", idx.insertQuery(), idx.table)
	}

	mock.ExpectExec(regexp.QuoteMeta(idx.insertQuery())).
		WithArgs(a.ID, "local", "image", a.CreatedAt.UnixMicro(), jsonContains(`"url":"https://example.com/uploads/a.jpg"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := idx.Insert(context.Background(), a); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLIndex_DuplicateDetection(t *testing.T) {
	tests := []struct {
		driver string
		err    error
	}{
		{"postgres", &pgconn.PgError{Code: "23505"}},
		{"mysql", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}},
		{"sqlite", errors.New("constraint failed: UNIQUE constraint failed: pantry_media.id (1555)")},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			idx, mock := newSQLTestIndex(t, tt.driver, nil)
			mock.ExpectExec(regexp.QuoteMeta(idx.insertQuery())).WillReturnError(tt.err)

			err := idx.Insert(context.Background(), localAsset("a.jpg", 0))
			if !errors.Is(err, asset.ErrDuplicateID) {
				t.Fatalf("expected ErrDuplicateID, got %v", err)
			}
		})
	}
}

func TestSQLIndex_InsertOtherErrorIsNotDuplicate(t *testing.T) {
	idx, mock := newSQLTestIndex(t, "mysql", nil)
	mock.ExpectExec(regexp.QuoteMeta(idx.insertQuery())).WillReturnError(errors.New("connection refused"))

	err := idx.Insert(context.Background(), localAsset("a.jpg", 0))
	if err == nil || errors.Is(err, asset.ErrDuplicateID) {
		t.Fatalf("expected plain insert error, got %v", err)
	}
}

func TestSQLIndex_ListQueryFilters(t *testing.T) {
	idx, _ := newSQLTestIndex(t, "postgres", strPtr(""))

	query, args := idx.listQuery(Filter{Source: asset.SourceRemote, Type: asset.KindVideo})
	want := "SELECT doc FROM media WHERE source = $1 AND type = $2 ORDER BY created_at DESC, id ASC"
	if query != want {
		t.Fatalf("unexpected query:\n got %s\nwant %s", query, want)
	}
	if len(args) != 2 || args[0] != "remote" || args[1] != "video" {
		t.Fatalf("unexpected args %v", args)
	}

	query, args = idx.listQuery(Filter{Type: asset.KindImage})
	if !strings.Contains(query, "WHERE type = $1 ORDER") || len(args) != 1 {
		t.Fatalf("unexpected type-only query %s %v", query, args)
	}
}

func TestSQLIndex_MySQLSchemaInlinesIndex(t *testing.T) {
	idx, mock := newSQLTestIndex(t, "mysql", strPtr("site"))

	mock.ExpectExec(regexp.QuoteMeta(idx.schemaQuery())).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := idx.initSchema(context.Background()); err != nil {
		t.Fatalf("initSchema: %v", err)
	}
	if !strings.Contains(idx.schemaQuery(), "INDEX site_media_created_idx") {
		t.Fatalf("expected inline index in mysql schema: %s", idx.schemaQuery())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLIndex_UpdateTagsNotFound(t *testing.T) {
	idx, mock := newSQLTestIndex(t, "postgres", nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(idx.selectForUpdateQuery())).
		WithArgs("local-missing.jpg").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))
	mock.ExpectRollback()

	if _, err := idx.UpdateTags(context.Background(), "local-missing.jpg", []string{"x"}); !errors.Is(err, asset.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResolveSQLDriverName(t *testing.T) {
	for in, want := range map[string]string{"postgres": "pgx", "MySQL": "mysql", "sqlite": "sqlite"} {
		got, err := resolveSQLDriverName(in)
		if err != nil || got != want {
			t.Fatalf("resolve %q: got %q, %v", in, got, err)
		}
	}
	if _, err := resolveSQLDriverName("oracle"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func newSQLiteIndex(t *testing.T) *SQLIndex {
	t.Helper()

	idx, err := NewSQLIndex(&config.SQLIndexStrategy{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "index.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close(context.Background()) })

	return idx
}

func TestSQLIndex_SQLiteRoundTrip(t *testing.T) {
	idx := newSQLiteIndex(t)
	ctx := context.Background()

	a := localAsset("a.jpg", 0, "patio")
	if err := idx.Insert(ctx, a); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := idx.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.URL != a.URL || !got.CreatedAt.Equal(a.CreatedAt) || got.Dimensions.Width != 640 || got.Tags[0] != "patio" {
		t.Fatalf("unexpected record %+v", got)
	}

	if err := idx.Insert(ctx, localAsset("a.jpg", time.Hour)); !errors.Is(err, asset.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	if _, err := idx.Get(ctx, "local-missing.jpg"); !errors.Is(err, asset.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLIndex_SQLiteListAndTags(t *testing.T) {
	idx := newSQLiteIndex(t)
	ctx := context.Background()

	for _, a := range []*asset.MediaAsset{
		localAsset("old.jpg", 2*time.Hour),
		remoteVideo("clip.mp4", time.Hour),
		localAsset("new.jpg", 0),
	} {
		if err := idx.Insert(ctx, a); err != nil {
			t.Fatalf("Insert %s: %v", a.ID, err)
		}
	}

	all, err := idx.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	requireIDs(t, all, "local-new.jpg", "remote-clip.mp4", "local-old.jpg")

	remote, _ := idx.List(ctx, Filter{Source: asset.SourceRemote})
	requireIDs(t, remote, "remote-clip.mp4")
	if remote[0].RemoteKey == nil || *remote[0].RemoteKey != "clip.mp4" {
		t.Fatalf("expected remote key to survive round trip, got %v", remote[0].RemoteKey)
	}

	empty, _ := idx.List(ctx, Filter{Type: asset.KindVideo, Source: asset.SourceLocal})
	requireIDs(t, empty)

	updated, err := idx.UpdateTags(ctx, "remote-clip.mp4", []string{"tour"})
	if err != nil {
		t.Fatalf("UpdateTags: %v", err)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "tour" {
		t.Fatalf("unexpected tags %v", updated.Tags)
	}

	reread, _ := idx.Get(ctx, "remote-clip.mp4")
	if len(reread.Tags) != 1 || reread.URL != "https://cdn.example.com/clip.mp4" {
		t.Fatalf("unexpected reread %+v", reread)
	}

	if err := idx.Remove(ctx, "remote-clip.mp4"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := idx.Remove(ctx, "remote-clip.mp4"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	rest, _ := idx.List(ctx, Filter{})
	requireIDs(t, rest, "local-new.jpg", "local-old.jpg")
}
