package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/indieinfra/pantry/asset"
	"github.com/indieinfra/pantry/config"
	storageutil "github.com/indieinfra/pantry/storage/util"
)

type placeholderStyle int

const (
	placeholderQuestion placeholderStyle = iota
	placeholderDollar
)

// SQLIndex keeps each record as a JSON document alongside the columns that
// filtering and ordering need. The primary key on id is the duplicate check.
type SQLIndex struct {
	db          *sql.DB
	driver      string
	table       string
	placeholder placeholderStyle
}

func NewSQLIndex(cfg *config.SQLIndexStrategy) (*SQLIndex, error) {
	idx, err := newSQLIndexWithDB(cfg, nil)
	if err != nil {
		return nil, err
	}

	driverName, err := resolveSQLDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, err
	}

	idx.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := idx.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return idx, nil
}

func newSQLIndexWithDB(cfg *config.SQLIndexStrategy, db *sql.DB) (*SQLIndex, error) {
	if cfg == nil {
		return nil, fmt.Errorf("index sql config is nil")
	}

	driverName, err := resolveSQLDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	placeholder := placeholderQuestion
	if driverName == "pgx" {
		placeholder = placeholderDollar
	}

	return &SQLIndex{
		db:          db,
		driver:      strings.ToLower(cfg.Driver),
		table:       storageutil.DeriveTableName(cfg.TablePrefix, "media"),
		placeholder: placeholder,
	}, nil
}

func resolveSQLDriverName(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "postgres":
		return "pgx", nil
	case "mysql":
		return "mysql", nil
	case "sqlite":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported sql driver %q", driver)
	}
}

func (s *SQLIndex) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.schemaQuery()); err != nil {
		return fmt.Errorf("create media table: %w", err)
	}

	// MySQL has no CREATE INDEX IF NOT EXISTS; it gets the index inline.
	if s.driver == "mysql" {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, s.orderIndexQuery()); err != nil {
		return fmt.Errorf("create media index: %w", err)
	}
	return nil
}

func (s *SQLIndex) schemaQuery() string {
	if s.driver == "mysql" {
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
id VARCHAR(512) PRIMARY KEY,
source VARCHAR(16) NOT NULL,
type VARCHAR(16) NOT NULL,
created_at BIGINT NOT NULL,
doc TEXT NOT NULL,
INDEX %s_created_idx (created_at)
)`, s.table, s.table)
	}

	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
id VARCHAR(512) PRIMARY KEY,
source VARCHAR(16) NOT NULL,
type VARCHAR(16) NOT NULL,
created_at BIGINT NOT NULL,
doc TEXT NOT NULL
)`, s.table)
}

func (s *SQLIndex) orderIndexQuery() string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_created_idx ON %s (created_at)", s.table, s.table)
}

func (s *SQLIndex) Insert(ctx context.Context, a *asset.MediaAsset) error {
	doc, err := encodeDoc(a)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.insertQuery(), a.ID, string(a.Source), string(a.Type), a.CreatedAt.UnixMicro(), doc)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", asset.ErrDuplicateID, a.ID)
		}
		return fmt.Errorf("sql insert: %w", err)
	}

	return nil
}

func (s *SQLIndex) Get(ctx context.Context, id string) (*asset.MediaAsset, error) {
	var raw string
	if err := s.db.QueryRowContext(ctx, s.selectQuery(), id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", asset.ErrNotFound, id)
		}
		return nil, fmt.Errorf("sql get: %w", err)
	}

	return decodeDoc(raw)
}

func (s *SQLIndex) List(ctx context.Context, filter Filter) ([]*asset.MediaAsset, error) {
	query, args := s.listQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sql list: %w", err)
	}
	defer rows.Close()

	out := []*asset.MediaAsset{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("sql list: %w", err)
		}
		a, err := decodeDoc(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sql list: %w", err)
	}

	return out, nil
}

// UpdateTags rewrites the document inside a transaction so a concurrent tag
// edit cannot interleave between the read and the write.
func (s *SQLIndex) UpdateTags(ctx context.Context, id string, tags []string) (*asset.MediaAsset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sql update tags: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var raw string
	if err := tx.QueryRowContext(ctx, s.selectForUpdateQuery(), id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", asset.ErrNotFound, id)
		}
		return nil, fmt.Errorf("sql update tags: %w", err)
	}

	a, err := decodeDoc(raw)
	if err != nil {
		return nil, err
	}

	a.Tags = append([]string{}, tags...)
	doc, err := encodeDoc(a)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, s.updateQuery(), doc, id); err != nil {
		return nil, fmt.Errorf("sql update tags: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sql update tags: %w", err)
	}

	return a, nil
}

func (s *SQLIndex) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteQuery(), id); err != nil {
		return fmt.Errorf("sql remove: %w", err)
	}
	return nil
}

func (s *SQLIndex) Close(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLIndex) insertQuery() string {
	return fmt.Sprintf("INSERT INTO %s (id, source, type, created_at, doc) VALUES (%s, %s, %s, %s, %s)",
		s.table,
		s.placeholderFor(1),
		s.placeholderFor(2),
		s.placeholderFor(3),
		s.placeholderFor(4),
		s.placeholderFor(5),
	)
}

func (s *SQLIndex) selectQuery() string {
	return fmt.Sprintf("SELECT doc FROM %s WHERE id = %s", s.table, s.placeholderFor(1))
}

func (s *SQLIndex) selectForUpdateQuery() string {
	if s.driver == "sqlite" {
		return s.selectQuery()
	}
	return s.selectQuery() + " FOR UPDATE"
}

func (s *SQLIndex) updateQuery() string {
	return fmt.Sprintf("UPDATE %s SET doc = %s WHERE id = %s", s.table, s.placeholderFor(1), s.placeholderFor(2))
}

func (s *SQLIndex) deleteQuery() string {
	return fmt.Sprintf("DELETE FROM %s WHERE id = %s", s.table, s.placeholderFor(1))
}

func (s *SQLIndex) listQuery(filter Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Source != "" {
		args = append(args, string(filter.Source))
		clauses = append(clauses, "source = "+s.placeholderFor(len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		clauses = append(clauses, "type = "+s.placeholderFor(len(args)))
	}

	query := fmt.Sprintf("SELECT doc FROM %s", s.table)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"

	return query, args
}

func (s *SQLIndex) placeholderFor(index int) string {
	if s.placeholder == placeholderDollar {
		return fmt.Sprintf("$%d", index)
	}

	return "?"
}

func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return true
		}
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
