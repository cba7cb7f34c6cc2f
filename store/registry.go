package store

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-pages/domain"
)

// Registry resolves store-prefixed paths ("<store>/<path>", legacy
// "<store>://<path>") to a registered store. Stores are shared, read-mostly
// singletons; registration happens once at construction and the registry is
// immutable afterwards, so lookups need no locking.
type Registry struct {
	order  []string
	stores map[string]Store
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: map[string]Store{}}
}

// Register adds a store under its configured name. Later registrations of
// the same name replace the earlier store but keep its original position.
func (r *Registry) Register(s Store) {
	name := s.Name()
	if _, ok := r.stores[name]; !ok {
		r.order = append(r.order, name)
	}
	r.stores[name] = s
}

// Get resolves a store by name, returning a NotFoundError listing known
// stores when the name is unknown.
func (r *Registry) Get(name string) (Store, error) {
	if s, ok := r.stores[name]; ok {
		return s, nil
	}
	return nil, WrapNotFound(&NotFoundError{Store: name, Known: r.Names()}, "unknown store")
}

// Names returns the registered store names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Stores returns the registered stores in registration order.
func (r *Registry) Stores() []Store {
	out := make([]Store, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.stores[name])
	}
	return out
}

// SplitPath splits "<store>/<path>" into its store and path parts. The
// legacy "<store>://<path>" form routes through the same prefix stripping.
// A path with no prefix returns an empty store name.
func SplitPath(path string) (string, string) {
	if i := strings.Index(path, "://"); i >= 0 {
		return path[:i], path[i+3:]
	}
	if i := strings.Index(path, "/"); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}

// LoadPageDefinition resolves a page by prefixed path. The store part may be
// a pipe-separated fallback chain ("draft|published/home"): stores are tried
// in order and the first hit wins. A path without a prefix falls back to
// searching every store.
func (r *Registry) LoadPageDefinition(ctx context.Context, path string) (*domain.Page, error) {
	storePart, subpath := SplitPath(path)
	if storePart == "" {
		return r.LoadPageDefinitionAnyStore(ctx, subpath)
	}

	for _, name := range strings.Split(storePart, "|") {
		s, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		page, err := s.LoadPageDefinition(ctx, subpath)
		if err != nil {
			return nil, err
		}
		if page != nil {
			return page, nil
		}
	}
	return nil, nil
}

// LoadPageDefinitionAnyStore tries every registered store in registration
// order and returns the first hit. Stores that do not implement page loading
// are skipped; other errors propagate. Used for legacy paths that carry no
// store prefix.
func (r *Registry) LoadPageDefinitionAnyStore(ctx context.Context, path string) (*domain.Page, error) {
	for _, s := range r.Stores() {
		page, err := s.LoadPageDefinition(ctx, path)
		if err != nil {
			if errors.Is(err, ErrNotSupported) {
				continue
			}
			return nil, err
		}
		if page != nil {
			return page, nil
		}
	}
	return nil, nil
}

// SavePageDefinition routes an upsert to the prefixed store. Paths without a
// prefix go to the "default" store.
func (r *Registry) SavePageDefinition(ctx context.Context, path string, page *domain.Page) error {
	storeName, subpath := SplitPath(path)
	if storeName == "" {
		storeName = "default"
	}
	s, err := r.Get(storeName)
	if err != nil {
		return err
	}
	return s.SavePageDefinition(ctx, subpath, page)
}

// DeletePageDefinition routes a delete to the prefixed store, reporting
// whether anything was removed.
func (r *Registry) DeletePageDefinition(ctx context.Context, path string) (bool, error) {
	storeName, subpath := SplitPath(path)
	if storeName == "" {
		storeName = "default"
	}
	s, err := r.Get(storeName)
	if err != nil {
		return false, err
	}
	return s.DeletePageDefinition(ctx, subpath)
}

// PageList fans a paginated listing out across every registered store. The
// combined count accumulates across all stores while at most limit rows are
// materialized, adjusting offset and remaining limit as each store is
// drained. Ordering is registration order, then within-store order; there is
// no global sort.
func (r *Registry) PageList(ctx context.Context, offset, limit int, filter domain.ListFilter) (domain.PageListResult, error) {
	result := domain.PageListResult{Results: []domain.PageInfo{}}
	pending := limit

	for _, s := range r.Stores() {
		if filter.Store != "" && filter.Store != s.Name() {
			continue
		}
		storeResult, err := s.PageList(ctx, offset, pending, filter)
		if err != nil {
			return domain.PageListResult{}, err
		}
		for i := range storeResult.Results {
			storeResult.Results[i].Store = s.Name()
		}
		result.Results = append(result.Results, storeResult.Results...)
		result.Count += storeResult.Count

		offset -= storeResult.Count
		if offset < 0 {
			offset = 0
		}
		pending -= len(storeResult.Results)
		if pending < 0 {
			pending = 0
		}
	}
	return result, nil
}

// CSSClassList aggregates every store's class catalog, prefixing class names
// with the store name and blanking the CSS bodies, the same discovery shape
// WidgetList uses. An empty storeName queries every store; a named store that
// is not registered is a not-found error.
func (r *Registry) CSSClassList(ctx context.Context, storeName string) ([]domain.CSSClass, error) {
	stores := r.Stores()
	if storeName != "" {
		s, err := r.Get(storeName)
		if err != nil {
			return nil, err
		}
		stores = []Store{s}
	}

	out := []domain.CSSClass{}
	for _, s := range stores {
		classes, err := s.CSSClassList(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range classes {
			c.Name = s.Name() + "/" + c.Name
			c.CSS = ""
			out = append(out, c)
		}
	}
	return out, nil
}

// CSSClassDefinition resolves a class by prefixed name ("<store>/<class>").
// A name without a prefix fans out across every store in registration order
// and returns the first hit. nil means no store knows the class.
func (r *Registry) CSSClassDefinition(ctx context.Context, name string) (*domain.CSSClass, error) {
	storeName, className := SplitPath(name)
	if storeName == "" {
		for _, s := range r.Stores() {
			def, err := s.CSSClassDefinition(ctx, className)
			if err != nil {
				return nil, err
			}
			if def != nil {
				return def, nil
			}
		}
		return nil, nil
	}

	s, err := r.Get(storeName)
	if err != nil {
		return nil, err
	}
	return s.CSSClassDefinition(ctx, className)
}

// WidgetList aggregates every store's catalog, prefixing widget names with
// the store name and blanking fragment bodies: listings are for discovery,
// fragments stay store-internal.
func (r *Registry) WidgetList(ctx context.Context) ([]domain.Widget, error) {
	var out []domain.Widget
	for _, s := range r.Stores() {
		widgets, err := s.WidgetList(ctx)
		if err != nil {
			return nil, err
		}
		for _, w := range widgets {
			w.Name = s.Name() + "/" + w.Name
			w.HTML = ""
			w.CSS = ""
			out = append(out, w)
		}
	}
	return out, nil
}
