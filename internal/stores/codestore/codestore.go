// Package codestore serves a small set of built-in element types from
// embedded fragments: plain text, raw html, a children slot, markdown, and a
// static context provider. It holds no pages and is read-only.
package codestore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/goliatone/go-pages/domain"
	"github.com/goliatone/go-pages/internal/logging"
	"github.com/goliatone/go-pages/internal/runtimeconfig"
	"github.com/goliatone/go-pages/store"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var builtins = []domain.Widget{
	{
		Name:        "text",
		Description: "Plain text paragraph",
		HTML:        `<p id="@@id@@">{{ data.text }}</p>`,
		Editor:      []domain.EditorField{{Type: "text", Label: "Text", Name: "text"}},
	},
	{
		Name:        "html",
		Description: "Raw HTML passthrough",
	},
	{
		Name:        "children",
		Description: "Slot for nested blocks, used by layout templates",
		HTML:        `<div id="@@id@@">{{ context.children }}</div>`,
		Children:    true,
	},
	{
		Name:        "markdown",
		Description: "Markdown rendered to HTML",
		Editor:      []domain.EditorField{{Type: "textarea", Label: "Markdown", Name: "markdown"}},
	},
	{
		Name:        "static_context",
		Description: "Inject fixed values into the context of child blocks",
		Children:    true,
		HTML:        `{{ children }}`,
	},
}

// Store is the built-in widget store variant.
type Store struct {
	name    string
	tags    []string
	widgets map[string]domain.Widget
	log     logging.Logger
}

var _ store.Store = (*Store)(nil)

// New builds the code store. It always carries the jinja2 tag: its fragments
// are written against the template engine regardless of configuration.
func New(cfg runtimeconfig.StoreConfig, provider logging.Provider) (*Store, error) {
	tags := cfg.Tags
	if !hasString(tags, store.TagJinja2) {
		tags = append(append([]string{}, tags...), store.TagJinja2)
	}

	widgets := make(map[string]domain.Widget, len(builtins))
	for _, w := range builtins {
		widgets[w.Name] = w
	}
	return &Store{
		name:    cfg.Name,
		tags:    tags,
		widgets: widgets,
		log:     logging.StoreLogger(provider, cfg.Name),
	}, nil
}

func hasString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func (s *Store) Name() string   { return s.name }
func (s *Store) Tags() []string { return s.tags }

// LoadPageDefinition always reports absent: built-ins are widgets, not pages.
func (s *Store) LoadPageDefinition(context.Context, string) (*domain.Page, error) {
	return nil, nil
}

// SavePageDefinition is not supported.
func (s *Store) SavePageDefinition(context.Context, string, *domain.Page) error {
	return fmt.Errorf("code store %q: save: %w", s.name, store.ErrNotSupported)
}

// DeletePageDefinition is not supported.
func (s *Store) DeletePageDefinition(context.Context, string) (bool, error) {
	return false, fmt.Errorf("code store %q: delete: %w", s.name, store.ErrNotSupported)
}

// LoadHTML returns the built-in fragment. The html and markdown widgets
// compute theirs from the element payload instead of a stored template.
func (s *Store) LoadHTML(_ context.Context, path string, data map[string]any, _ map[string]any) (string, bool, error) {
	switch path {
	case "html":
		raw, _ := data["html"].(string)
		return raw, true, nil
	case "markdown":
		src, _ := data["markdown"].(string)
		var buf bytes.Buffer
		if err := markdown.Convert([]byte(src), &buf); err != nil {
			return "", false, err
		}
		return buf.String(), true, nil
	}

	w, ok := s.widgets[path]
	if !ok {
		return "", false, store.WrapNotFound(
			fmt.Errorf("widget %q in store %q: %w", path, s.name, store.ErrNotFound), "unknown widget")
	}
	return w.HTML, w.HTML != "", nil
}

// LoadCSS reports absent: built-ins carry no styling of their own.
func (s *Store) LoadCSS(context.Context, string, map[string]any, map[string]any) (string, bool, error) {
	return "", false, nil
}

// LoadContext answers the static_context widget: every data value becomes a
// context key visible to the element's subtree.
func (s *Store) LoadContext(_ context.Context, path string, data map[string]any, _ map[string]any) (map[string]any, error) {
	if path != "static_context" || len(data) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out, nil
}

// WidgetList returns the built-in catalog.
func (s *Store) WidgetList(context.Context) ([]domain.Widget, error) {
	out := make([]domain.Widget, len(builtins))
	copy(out, builtins)
	return out, nil
}

// WidgetDefinition resolves one built-in.
func (s *Store) WidgetDefinition(_ context.Context, name string) (*domain.Widget, error) {
	w, ok := s.widgets[name]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// CSSClassList is empty: built-ins carry no class catalog.
func (s *Store) CSSClassList(context.Context) ([]domain.CSSClass, error) {
	return []domain.CSSClass{}, nil
}

// CSSClassDefinition always reports the class unknown.
func (s *Store) CSSClassDefinition(context.Context, string) (*domain.CSSClass, error) {
	return nil, nil
}

// PageList is empty: the store holds no pages.
func (s *Store) PageList(context.Context, int, int, domain.ListFilter) (domain.PageListResult, error) {
	return domain.PageListResult{Results: []domain.PageInfo{}}, nil
}
