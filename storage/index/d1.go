package index

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	cloudflare "github.com/cloudflare/cloudflare-go/v6"
	cfd1 "github.com/cloudflare/cloudflare-go/v6/d1"
	"github.com/cloudflare/cloudflare-go/v6/option"

	"github.com/indieinfra/pantry/asset"
	"github.com/indieinfra/pantry/config"
	storageutil "github.com/indieinfra/pantry/storage/util"
)

// D1Index implements Index on Cloudflare D1 over the HTTP API. It shares the
// SQLIndex schema; since the API offers no interactive transactions, every
// write is a single statement.
type D1Index struct {
	cfg    *config.D1IndexStrategy
	client *cloudflare.Client
	table  string
}

// NewD1Index builds an index and ensures the schema exists.
func NewD1Index(cfg *config.D1IndexStrategy) (*D1Index, error) {
	return newD1IndexWithClient(cfg, nil)
}

// newD1IndexWithClient lets tests point the index at a fake API.
func newD1IndexWithClient(cfg *config.D1IndexStrategy, httpClient *http.Client) (*D1Index, error) {
	if cfg == nil {
		return nil, fmt.Errorf("d1 index config is nil")
	}

	idx := &D1Index{
		cfg:    cfg,
		client: buildD1Client(cfg, httpClient),
		table:  storageutil.DeriveTableName(cfg.TablePrefix, "media"),
	}

	if err := idx.initSchema(context.Background()); err != nil {
		return nil, err
	}

	return idx, nil
}

func buildD1Client(cfg *config.D1IndexStrategy, httpClient *http.Client) *cloudflare.Client {
	opts := []option.RequestOption{option.WithAPIToken(strings.TrimSpace(cfg.APIToken))}

	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	if base := strings.TrimSpace(cfg.Endpoint); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}

	return cloudflare.NewClient(opts...)
}

// initSchema doubles as a connectivity and credentials check.
func (d *D1Index) initSchema(ctx context.Context) error {
	if _, err := d.executeQuery(ctx, d.schemaQuery(), nil); err != nil {
		return fmt.Errorf("d1 initialization failed (check account_id, database_id, and api_token): %w", err)
	}
	if _, err := d.executeQuery(ctx, d.orderIndexQuery(), nil); err != nil {
		return fmt.Errorf("d1 index creation failed: %w", err)
	}
	return nil
}

func (d *D1Index) schemaQuery() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
id TEXT PRIMARY KEY,
source TEXT NOT NULL,
type TEXT NOT NULL,
created_at INTEGER NOT NULL,
doc TEXT NOT NULL
)`, d.table)
}

func (d *D1Index) orderIndexQuery() string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_created_idx ON %s (created_at)", d.table, d.table)
}

// insertQuery returns the id only when a row was written, which is how a
// duplicate is told apart from success.
func (d *D1Index) insertQuery() string {
	return fmt.Sprintf("INSERT INTO %s (id, source, type, created_at, doc) VALUES (?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING RETURNING id", d.table)
}

func (d *D1Index) selectQuery() string {
	return fmt.Sprintf("SELECT doc FROM %s WHERE id = ? LIMIT 1", d.table)
}

func (d *D1Index) updateTagsQuery() string {
	return fmt.Sprintf("UPDATE %s SET doc = json_set(doc, '$.tags', json(?)) WHERE id = ? RETURNING doc", d.table)
}

func (d *D1Index) deleteQuery() string {
	return fmt.Sprintf("DELETE FROM %s WHERE id = ?", d.table)
}

func (d *D1Index) listQuery(filter Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(filter.Type))
	}

	query := fmt.Sprintf("SELECT doc FROM %s", d.table)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	return query + " ORDER BY created_at DESC, id ASC", args
}

func (d *D1Index) Insert(ctx context.Context, a *asset.MediaAsset) error {
	doc, err := encodeDoc(a)
	if err != nil {
		return err
	}

	rows, err := d.executeQuery(ctx, d.insertQuery(), []any{a.ID, string(a.Source), string(a.Type), a.CreatedAt.UnixMicro(), doc})
	if err != nil {
		return fmt.Errorf("d1 insert: %w", err)
	}

	if len(rows) == 0 {
		return fmt.Errorf("%w: %s", asset.ErrDuplicateID, a.ID)
	}

	return nil
}

func (d *D1Index) Get(ctx context.Context, id string) (*asset.MediaAsset, error) {
	rows, err := d.executeQuery(ctx, d.selectQuery(), []any{id})
	if err != nil {
		return nil, fmt.Errorf("d1 get: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", asset.ErrNotFound, id)
	}

	return docFromRow(rows[0])
}

func (d *D1Index) List(ctx context.Context, filter Filter) ([]*asset.MediaAsset, error) {
	query, args := d.listQuery(filter)

	rows, err := d.executeQuery(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("d1 list: %w", err)
	}

	out := make([]*asset.MediaAsset, 0, len(rows))
	for _, row := range rows {
		a, err := docFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	return out, nil
}

func (d *D1Index) UpdateTags(ctx context.Context, id string, tags []string) (*asset.MediaAsset, error) {
	if tags == nil {
		tags = []string{}
	}

	payload, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}

	rows, err := d.executeQuery(ctx, d.updateTagsQuery(), []any{string(payload), id})
	if err != nil {
		return nil, fmt.Errorf("d1 update tags: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", asset.ErrNotFound, id)
	}

	return docFromRow(rows[0])
}

func (d *D1Index) Remove(ctx context.Context, id string) error {
	if _, err := d.executeQuery(ctx, d.deleteQuery(), []any{id}); err != nil {
		return fmt.Errorf("d1 remove: %w", err)
	}
	return nil
}

func (d *D1Index) Close(ctx context.Context) error {
	return nil
}

func docFromRow(row map[string]any) (*asset.MediaAsset, error) {
	raw, ok := row["doc"].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected doc column type %T", row["doc"])
	}
	return decodeDoc(raw)
}

// executeQuery runs a single statement and returns its rows.
func (d *D1Index) executeQuery(ctx context.Context, sql string, params []any) ([]map[string]any, error) {
	body := cfd1.DatabaseQueryParamsBodyD1SingleQuery{Sql: cloudflare.F(sql)}
	if len(params) > 0 {
		body.Params = cloudflare.F(convertParams(params))
	}

	resp, err := d.client.D1.Database.Query(ctx, d.cfg.DatabaseID, cfd1.DatabaseQueryParams{
		AccountID: cloudflare.F(strings.TrimSpace(d.cfg.AccountID)),
		Body:      body,
	})
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Result) == 0 {
		return nil, fmt.Errorf("d1 returned no result for the statement")
	}

	result := resp.Result[0]
	if !result.Success {
		return nil, fmt.Errorf("d1 query execution failed")
	}

	rows := make([]map[string]any, 0, len(result.Results))
	for _, r := range result.Results {
		m, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected row type %T", r)
		}
		rows = append(rows, m)
	}

	return rows, nil
}

// convertParams renders parameters in D1's string form.
func convertParams(params []any) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		out = append(out, fmt.Sprint(p))
	}
	return out
}
