// Package filestore serves page definitions and widget fragments from a
// directory tree. Pages live at {root}/{path}.yaml, with .html and .md files
// loading as single-element pages. The widget catalog comes from
// {root}/config.yaml, fragment files resolved eagerly at construction.
package filestore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/frontmatter"
	goerrors "github.com/goliatone/go-errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-pages/domain"
	"github.com/goliatone/go-pages/internal/logging"
	"github.com/goliatone/go-pages/internal/runtimeconfig"
	"github.com/goliatone/go-pages/store"
)

// rawWidget is the implicit element type used by .html and .md pages. Its
// fragment is the element's own data payload, so the store answers it without
// a catalog entry.
const rawWidget = "raw-html"

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Store is the file-backed store variant.
type Store struct {
	name       string
	tags       []string
	root       string
	widgets    map[string]domain.Widget
	order      []string
	classes    map[string]domain.CSSClass
	classOrder []string
	log        logging.Logger
}

var _ store.Store = (*Store)(nil)

// catalog is the on-disk shape of {root}/config.yaml. Widget html/css values
// are file paths relative to the root, resolved to fragment text at load.
type catalog struct {
	Widgets []catalogWidget `yaml:"widgets"`
	// CSSClasses hold their stylesheet text inline; unlike widget fragments
	// they are not file references.
	CSSClasses []domain.CSSClass `yaml:"css_classes"`
}

type catalogWidget struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Icon        string               `yaml:"icon"`
	HTML        string               `yaml:"html"`
	CSS         string               `yaml:"css"`
	Children    bool                 `yaml:"children"`
	Editor      []domain.EditorField `yaml:"editor"`
}

// New builds a file store rooted at cfg.Path. The widget catalog is resolved
// eagerly: a catalog entry pointing at a missing fragment file fails
// construction rather than the first render that needs it.
func New(cfg runtimeconfig.StoreConfig, provider logging.Provider) (*Store, error) {
	info, err := os.Stat(cfg.Path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation,
			fmt.Sprintf("file store %q: root %q not accessible", cfg.Name, cfg.Path))
	}
	if !info.IsDir() {
		return nil, goerrors.New(fmt.Sprintf("file store %q: root %q is not a directory", cfg.Name, cfg.Path),
			goerrors.CategoryValidation)
	}

	s := &Store{
		name:    cfg.Name,
		tags:    cfg.Tags,
		root:    cfg.Path,
		widgets: map[string]domain.Widget{},
		classes: map[string]domain.CSSClass{},
		log:     logging.StoreLogger(provider, cfg.Name),
	}

	if err := s.loadCatalog(); err != nil {
		return nil, err
	}
	for _, w := range cfg.Widgets {
		s.register(w)
	}
	for _, c := range cfg.CSSClasses {
		s.registerClass(c)
	}
	return s, nil
}

func (s *Store) loadCatalog() error {
	raw, err := os.ReadFile(filepath.Join(s.root, "config.yaml"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var cat catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation,
			fmt.Sprintf("file store %q: invalid config.yaml", s.name))
	}

	for _, entry := range cat.Widgets {
		w := domain.Widget{
			Name:        entry.Name,
			Description: entry.Description,
			Icon:        entry.Icon,
			Children:    entry.Children,
			Editor:      entry.Editor,
		}
		if entry.HTML != "" {
			w.HTML, err = s.readFragment(entry.HTML)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryValidation,
					fmt.Sprintf("file store %q: widget %q html fragment", s.name, entry.Name))
			}
		}
		if entry.CSS != "" {
			w.CSS, err = s.readFragment(entry.CSS)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryValidation,
					fmt.Sprintf("file store %q: widget %q css fragment", s.name, entry.Name))
			}
		}
		s.register(w)
	}
	for _, c := range cat.CSSClasses {
		s.registerClass(c)
	}
	s.log.Debug("catalog loaded", "widgets", len(s.order), "css_classes", len(s.classOrder))
	return nil
}

func (s *Store) readFragment(rel string) (string, error) {
	abs, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *Store) register(w domain.Widget) {
	if _, ok := s.widgets[w.Name]; !ok {
		s.order = append(s.order, w.Name)
	}
	s.widgets[w.Name] = w
}

func (s *Store) registerClass(c domain.CSSClass) {
	if _, ok := s.classes[c.Name]; !ok {
		s.classOrder = append(s.classOrder, c.Name)
	}
	s.classes[c.Name] = c
}

// resolve joins a store-relative path onto the root, rejecting traversal out
// of the tree.
func (s *Store) resolve(rel string) (string, error) {
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	rootAbs, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	full, err := filepath.Abs(abs)
	if err != nil {
		return "", err
	}
	if full != rootAbs && !strings.HasPrefix(full, rootAbs+string(filepath.Separator)) {
		return "", goerrors.New(fmt.Sprintf("path %q escapes store root", rel), goerrors.CategoryValidation)
	}
	return full, nil
}

func (s *Store) Name() string   { return s.name }
func (s *Store) Tags() []string { return s.tags }

// LoadPageDefinition reads a page by path. Extensionless paths try
// {path}.yaml, then {path}.html, then {path}.md.
func (s *Store) LoadPageDefinition(_ context.Context, path string) (*domain.Page, error) {
	candidates := []string{path}
	if filepath.Ext(path) == "" {
		candidates = []string{path + ".yaml", path + ".html", path + ".md"}
	}

	for _, candidate := range candidates {
		abs, err := s.resolve(candidate)
		if err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(abs)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}

		page, err := s.decodePage(candidate, raw)
		if err != nil {
			return nil, err
		}
		if page.LastModified == nil {
			if info, statErr := os.Stat(abs); statErr == nil {
				mtime := info.ModTime().UTC()
				page.LastModified = &mtime
			}
		}
		return page, nil
	}
	return nil, nil
}

func (s *Store) decodePage(path string, raw []byte) (*domain.Page, error) {
	switch filepath.Ext(path) {
	case ".html":
		return &domain.Page{
			Title: pageTitle(path),
			Children: []domain.Element{
				{Type: s.name + "/" + rawWidget, Data: map[string]any{"html": string(raw)}},
			},
		}, nil

	case ".md":
		var matter struct {
			Title        string            `yaml:"title"`
			Template     string            `yaml:"template"`
			Cache        []string          `yaml:"cache"`
			Meta         []domain.Meta     `yaml:"meta"`
			CSSVariables map[string]string `yaml:"css_variables"`
		}
		body, err := frontmatter.Parse(bytes.NewReader(raw), &matter)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation,
				fmt.Sprintf("page %q: invalid front matter", path))
		}
		var buf bytes.Buffer
		if err := markdown.Convert(body, &buf); err != nil {
			return nil, err
		}
		title := matter.Title
		if title == "" {
			title = pageTitle(path)
		}
		return &domain.Page{
			Title:        title,
			Template:     matter.Template,
			Cache:        matter.Cache,
			Meta:         matter.Meta,
			CSSVariables: matter.CSSVariables,
			Children: []domain.Element{
				{Type: s.name + "/" + rawWidget, Data: map[string]any{"html": buf.String()}},
			},
		}, nil

	default:
		var page domain.Page
		if err := yaml.Unmarshal(raw, &page); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation,
				fmt.Sprintf("page %q: invalid definition", path))
		}
		return &page, nil
	}
}

func pageTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SavePageDefinition writes a page definition as YAML, assigning ids to
// elements that lack one so they stay stable across renders.
func (s *Store) SavePageDefinition(_ context.Context, path string, page *domain.Page) error {
	if filepath.Ext(path) == "" {
		path += ".yaml"
	}
	abs, err := s.resolve(path)
	if err != nil {
		return err
	}

	page.EnsureIDs()
	raw, err := yaml.Marshal(page)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	s.log.Info("saving page definition", "path", path)
	return os.WriteFile(abs, raw, 0o644)
}

// DeletePageDefinition removes a page definition, reporting whether the file
// existed.
func (s *Store) DeletePageDefinition(_ context.Context, path string) (bool, error) {
	if filepath.Ext(path) == "" {
		path += ".yaml"
	}
	abs, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	s.log.Info("deleted page definition", "path", path)
	return true, nil
}

// LoadHTML returns a widget's HTML fragment. The implicit raw-html widget
// echoes the element's own payload.
func (s *Store) LoadHTML(_ context.Context, path string, data map[string]any, _ map[string]any) (string, bool, error) {
	if path == rawWidget {
		html, _ := data["html"].(string)
		return html, true, nil
	}
	w, ok := s.widgets[path]
	if !ok {
		return "", false, store.WrapNotFound(
			fmt.Errorf("widget %q in store %q: %w", path, s.name, store.ErrNotFound), "unknown widget")
	}
	return w.HTML, w.HTML != "", nil
}

// LoadCSS returns a widget's CSS fragment, absent when the catalog entry
// carries none.
func (s *Store) LoadCSS(_ context.Context, path string, _ map[string]any, _ map[string]any) (string, bool, error) {
	w, ok := s.widgets[path]
	if !ok {
		return "", false, nil
	}
	return w.CSS, w.CSS != "", nil
}

// LoadContext is a no-op: file widgets are pure fragments.
func (s *Store) LoadContext(context.Context, string, map[string]any, map[string]any) (map[string]any, error) {
	return nil, nil
}

// WidgetList returns the catalog in registration order.
func (s *Store) WidgetList(context.Context) ([]domain.Widget, error) {
	out := make([]domain.Widget, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.widgets[name])
	}
	return out, nil
}

// WidgetDefinition returns one catalog entry, or nil when unknown.
func (s *Store) WidgetDefinition(_ context.Context, name string) (*domain.Widget, error) {
	w, ok := s.widgets[name]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// CSSClassList returns the class catalog in registration order, empty unless
// the store carries the css_classes tag.
func (s *Store) CSSClassList(context.Context) ([]domain.CSSClass, error) {
	if !store.HasTag(s, store.TagCSSClasses) {
		return []domain.CSSClass{}, nil
	}
	out := make([]domain.CSSClass, 0, len(s.classOrder))
	for _, name := range s.classOrder {
		out = append(out, s.classes[name])
	}
	return out, nil
}

// CSSClassDefinition returns one class entry, or nil when unknown or the
// store does not serve classes.
func (s *Store) CSSClassDefinition(_ context.Context, name string) (*domain.CSSClass, error) {
	if !store.HasTag(s, store.TagCSSClasses) {
		return nil, nil
	}
	c, ok := s.classes[name]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// PageList scans the tree for page definitions. Paths whose final segment
// starts with an underscore are templates; ListFilter.Type selects between
// "template" and "page" entries.
func (s *Store) PageList(_ context.Context, offset, limit int, filter domain.ListFilter) (domain.PageListResult, error) {
	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(strings.TrimSuffix(rel, ".yaml"))
		if rel == "config" {
			return nil
		}
		if !matchesTypeFilter(rel, filter.Type) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return domain.PageListResult{}, err
	}
	sort.Strings(paths)

	result := domain.PageListResult{Count: len(paths), Results: []domain.PageInfo{}}
	for _, rel := range paths[clamp(offset, len(paths)):] {
		if limit >= 0 && len(result.Results) >= limit {
			break
		}
		info := domain.PageInfo{ID: rel, Title: pageTitle(rel), URL: rel}
		if page, err := s.LoadPageDefinition(context.Background(), rel); err == nil && page != nil {
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

func matchesTypeFilter(rel, filterType string) bool {
	isTemplate := strings.HasPrefix(filepath.Base(rel), "_")
	switch filterType {
	case "template":
		return isTemplate
	case "page":
		return !isTemplate
	default:
		return true
	}
}

func clamp(offset, length int) int {
	if offset < 0 {
		return 0
	}
	if offset > length {
		return length
	}
	return offset
}
