// Package store defines the backend contract for page and widget resolution
// plus the registry that routes store-prefixed paths to a concrete backend.
package store

import (
	"context"

	"github.com/goliatone/go-pages/domain"
)

// Store is the polymorphic capability every backend variant implements.
// A missing page or fragment is reported as absent (nil page, ok=false),
// never as an error; errors are reserved for genuine failures.
type Store interface {
	// Name returns the registry name the store was configured with.
	Name() string

	// Tags returns the behavioral flags from configuration (e.g. "jinja2",
	// "pages", "widgets", "post:json", "get:qs").
	Tags() []string

	// LoadPageDefinition fetches a page or template definition by path.
	// Returns (nil, nil) when the path does not exist.
	LoadPageDefinition(ctx context.Context, path string) (*domain.Page, error)

	// SavePageDefinition upserts a page definition. Read-only variants
	// return ErrNotSupported.
	SavePageDefinition(ctx context.Context, path string, page *domain.Page) error

	// DeletePageDefinition removes a page definition, reporting whether
	// anything was deleted. Read-only variants return ErrNotSupported.
	DeletePageDefinition(ctx context.Context, path string) (bool, error)

	// LoadHTML fetches the raw, pre-evaluation HTML fragment for an element
	// type. ok is false when the type has no HTML fragment.
	LoadHTML(ctx context.Context, path string, data map[string]any, pageCtx map[string]any) (string, bool, error)

	// LoadCSS fetches the raw CSS fragment for an element type.
	LoadCSS(ctx context.Context, path string, data map[string]any, pageCtx map[string]any) (string, bool, error)

	// LoadContext lets an element type inject context variables visible to
	// its children before they render. Returns nil when the type provides
	// no context.
	LoadContext(ctx context.Context, path string, data map[string]any, pageCtx map[string]any) (map[string]any, error)

	// WidgetList returns the store's element-type catalog.
	WidgetList(ctx context.Context) ([]domain.Widget, error)

	// WidgetDefinition returns one catalog entry, or nil when unknown.
	WidgetDefinition(ctx context.Context, name string) (*domain.Widget, error)

	// CSSClassList returns the store's named-class catalog. Stores without
	// one return an empty slice.
	CSSClassList(ctx context.Context) ([]domain.CSSClass, error)

	// CSSClassDefinition returns one class by name, or nil when unknown.
	CSSClassDefinition(ctx context.Context, name string) (*domain.CSSClass, error)

	// PageList returns a paginated listing. Count reflects the total number
	// of matches, not the returned slice length.
	PageList(ctx context.Context, offset, limit int, filter domain.ListFilter) (domain.PageListResult, error)
}

// Behavior tags stores may be configured with.
const (
	// TagJinja2 enables template evaluation of fragments and string data.
	TagJinja2 = "jinja2"
	// TagPages marks a store that serves page definitions.
	TagPages = "pages"
	// TagWidgets marks a store that serves widget fragments.
	TagWidgets = "widgets"
	// TagCSSClasses marks a store that serves a named-class catalog.
	TagCSSClasses = "css_classes"
	// TagPostJSON makes an HTTP store send element data as a JSON POST body.
	TagPostJSON = "post:json"
	// TagGetQS makes an HTTP store send element data as GET query params.
	TagGetQS = "get:qs"
)

// HasTag reports whether a store carries the given configuration tag.
func HasTag(s Store, tag string) bool {
	for _, t := range s.Tags() {
		if t == tag {
			return true
		}
	}
	return false
}
