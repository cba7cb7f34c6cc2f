// Package dbstore keeps page definitions and widget fragments in a SQL
// database through bun. Definitions are stored as JSON blobs keyed by path;
// the schema is created on first use.
package dbstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-pages/domain"
	"github.com/goliatone/go-pages/internal/logging"
	"github.com/goliatone/go-pages/internal/runtimeconfig"
	"github.com/goliatone/go-pages/store"
)

type pageRow struct {
	bun.BaseModel `bun:"table:pages,alias:p"`

	Path         string    `bun:"path,pk"`
	Data         []byte    `bun:"data,notnull"`
	LastModified time.Time `bun:"last_modified,nullzero"`
}

type elementRow struct {
	bun.BaseModel `bun:"table:elements,alias:e"`

	Path string `bun:"path,pk"`
	HTML string `bun:"html"`
	CSS  string `bun:"css"`
	Data []byte `bun:"data,nullzero"`
}

// Store is the database-backed store variant.
type Store struct {
	name string
	tags []string
	db   *bun.DB
	log  logging.Logger
}

var _ store.Store = (*Store)(nil)

// New opens (or creates) the SQLite database at cfg.URL and ensures the
// schema exists.
func New(cfg runtimeconfig.StoreConfig, provider logging.Provider) (*Store, error) {
	sqlDB, err := sql.Open("sqlite3", cfg.URL)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation,
			fmt.Sprintf("db store %q: open %q", cfg.Name, cfg.URL))
	}

	s := &Store{
		name: cfg.Name,
		tags: cfg.Tags,
		db:   bun.NewDB(sqlDB, sqlitedialect.New()),
		log:  logging.StoreLogger(provider, cfg.Name),
	}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing bun handle, ensuring the schema exists. Used
// when the host application shares one database across services.
func NewWithDB(name string, tags []string, db *bun.DB, provider logging.Provider) (*Store, error) {
	s := &Store{name: name, tags: tags, db: db, log: logging.StoreLogger(provider, name)}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, model := range []any{(*pageRow)(nil), (*elementRow)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Name() string   { return s.name }
func (s *Store) Tags() []string { return s.tags }

// LoadPageDefinition fetches and decodes the JSON definition stored under
// path.
func (s *Store) LoadPageDefinition(ctx context.Context, path string) (*domain.Page, error) {
	row := new(pageRow)
	err := s.db.NewSelect().Model(row).Where("path = ?", path).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var page domain.Page
	if err := json.Unmarshal(row.Data, &page); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation,
			fmt.Sprintf("db store %q: page %q: corrupt definition", s.name, path))
	}
	if page.LastModified == nil && !row.LastModified.IsZero() {
		ts := row.LastModified.UTC()
		page.LastModified = &ts
	}
	return &page, nil
}

// SavePageDefinition upserts the JSON definition, stamping last_modified.
func (s *Store) SavePageDefinition(ctx context.Context, path string, page *domain.Page) error {
	page.EnsureIDs()
	data, err := json.Marshal(page)
	if err != nil {
		return err
	}
	row := &pageRow{Path: path, Data: data, LastModified: time.Now().UTC()}

	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (path) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("last_modified = EXCLUDED.last_modified").
		Exec(ctx)
	if err != nil {
		return err
	}
	s.log.Info("saved page definition", "path", path)
	return nil
}

// DeletePageDefinition removes the row, reporting whether one existed.
func (s *Store) DeletePageDefinition(ctx context.Context, path string) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*pageRow)(nil)).
		Where("path = ?", path).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) element(ctx context.Context, path string) (*elementRow, error) {
	row := new(elementRow)
	err := s.db.NewSelect().Model(row).Where("path = ?", path).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// LoadHTML returns the stored HTML fragment for an element type.
func (s *Store) LoadHTML(ctx context.Context, path string, _ map[string]any, _ map[string]any) (string, bool, error) {
	row, err := s.element(ctx, path)
	if err != nil {
		return "", false, err
	}
	if row == nil {
		return "", false, store.WrapNotFound(
			fmt.Errorf("widget %q in store %q: %w", path, s.name, store.ErrNotFound), "unknown widget")
	}
	return row.HTML, row.HTML != "", nil
}

// LoadCSS returns the stored CSS fragment for an element type.
func (s *Store) LoadCSS(ctx context.Context, path string, _ map[string]any, _ map[string]any) (string, bool, error) {
	row, err := s.element(ctx, path)
	if err != nil || row == nil {
		return "", false, err
	}
	return row.CSS, row.CSS != "", nil
}

// LoadContext exposes an element row's JSON data blob, when present, as
// static context for the element's subtree.
func (s *Store) LoadContext(ctx context.Context, path string, _ map[string]any, _ map[string]any) (map[string]any, error) {
	row, err := s.element(ctx, path)
	if err != nil || row == nil || len(row.Data) == 0 {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(row.Data, &out); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation,
			fmt.Sprintf("db store %q: element %q: corrupt context", s.name, path))
	}
	return out, nil
}

// SaveElement upserts a widget row. Exposed for seeding and authoring tools.
func (s *Store) SaveElement(ctx context.Context, path, html, css string, data map[string]any) error {
	row := &elementRow{Path: path, HTML: html, CSS: css}
	if len(data) > 0 {
		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		row.Data = encoded
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (path) DO UPDATE").
		Set("html = EXCLUDED.html").
		Set("css = EXCLUDED.css").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	return err
}

// WidgetList enumerates the elements table.
func (s *Store) WidgetList(ctx context.Context) ([]domain.Widget, error) {
	var rows []elementRow
	if err := s.db.NewSelect().Model(&rows).Order("path ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Widget, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Widget{Name: row.Path, HTML: row.HTML, CSS: row.CSS})
	}
	return out, nil
}

// WidgetDefinition resolves one elements row.
func (s *Store) WidgetDefinition(ctx context.Context, name string) (*domain.Widget, error) {
	row, err := s.element(ctx, name)
	if err != nil || row == nil {
		return nil, err
	}
	return &domain.Widget{Name: row.Path, HTML: row.HTML, CSS: row.CSS}, nil
}

// CSSClassList is empty: class catalogs live in file store config, not rows.
func (s *Store) CSSClassList(context.Context) ([]domain.CSSClass, error) {
	return []domain.CSSClass{}, nil
}

// CSSClassDefinition always reports the class unknown.
func (s *Store) CSSClassDefinition(context.Context, string) (*domain.CSSClass, error) {
	return nil, nil
}

// PageList pages through the stored definitions ordered by path. The
// template/page type filter matches on the final path segment's underscore
// prefix, so it is applied after the scan.
func (s *Store) PageList(ctx context.Context, offset, limit int, filter domain.ListFilter) (domain.PageListResult, error) {
	var rows []pageRow
	if err := s.db.NewSelect().Model(&rows).Order("path ASC").Scan(ctx); err != nil {
		return domain.PageListResult{}, err
	}

	matched := make([]pageRow, 0, len(rows))
	for _, row := range rows {
		if matchesTypeFilter(row.Path, filter.Type) {
			matched = append(matched, row)
		}
	}

	result := domain.PageListResult{Count: len(matched), Results: []domain.PageInfo{}}
	if offset < 0 {
		offset = 0
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	for _, row := range matched[offset:] {
		if limit >= 0 && len(result.Results) >= limit {
			break
		}
		info := domain.PageInfo{ID: row.Path, Title: row.Path, URL: row.Path}
		var page domain.Page
		if err := json.Unmarshal(row.Data, &page); err == nil {
			if page.Title != "" {
				info.Title = page.Title
			}
			if page.URL != "" {
				info.URL = page.URL
			}
		}
		result.Results = append(result.Results, info)
	}
	return result, nil
}

func matchesTypeFilter(path, filterType string) bool {
	base := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		base = path[i+1:]
	}
	isTemplate := strings.HasPrefix(base, "_")
	switch filterType {
	case "template":
		return isTemplate
	case "page":
		return !isTemplate
	default:
		return true
	}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
