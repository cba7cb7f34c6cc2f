// Package httpstore proxies widget fragments and context data from a remote
// HTTP service. Element data travels as query parameters or a JSON body
// depending on the store's tags. The variant is read-only: page definitions
// cannot be saved or deleted through it.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-pages/domain"
	"github.com/goliatone/go-pages/internal/logging"
	"github.com/goliatone/go-pages/internal/runtimeconfig"
	"github.com/goliatone/go-pages/store"
)

// Built-in element types answered locally instead of being proxied.
const (
	// widgetAPIContext fetches a JSON document and exposes it to the
	// element's subtree under the configured name.
	widgetAPIContext = "apicontext"
	// widgetEmbed fetches raw HTML (and optionally CSS) from explicit URLs.
	widgetEmbed = "embed"
)

// testContextURL short-circuits apicontext fetches in authoring and tests.
const testContextURL = "test"

// testContextDocument is the fixed payload returned for the "test" URL.
func testContextDocument() map[string]any {
	return map[string]any{
		"title": "Test JSON Data",
		"array": []any{
			map[string]any{"name": "test1"},
			map[string]any{"name": "test2"},
			map[string]any{"name": "test3"},
		},
	}
}

// Store is the HTTP-backed store variant.
type Store struct {
	name            string
	tags            []string
	baseURL         string
	allowedPrefixes []string
	client          *http.Client
	log             logging.Logger
}

var _ store.Store = (*Store)(nil)

// New builds an HTTP store against cfg.BaseURL.
func New(cfg runtimeconfig.StoreConfig, provider logging.Provider) (*Store, error) {
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation,
			fmt.Sprintf("http store %q: invalid base_url", cfg.Name))
	}
	return &Store{
		name:            cfg.Name,
		tags:            cfg.Tags,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		allowedPrefixes: cfg.AllowedPrefixes,
		client:          &http.Client{Timeout: 10 * time.Second},
		log:             logging.StoreLogger(provider, cfg.Name),
	}, nil
}

func (s *Store) Name() string   { return s.name }
func (s *Store) Tags() []string { return s.tags }

// LoadPageDefinition fetches a JSON page definition from the remote service.
// 404 maps to absent.
func (s *Store) LoadPageDefinition(ctx context.Context, path string) (*domain.Page, error) {
	body, status, err := s.fetch(ctx, s.baseURL+"/"+path, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("http store %q: page %q: status %d", s.name, path, status)
	}
	var page domain.Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation,
			fmt.Sprintf("http store %q: page %q: invalid definition", s.name, path))
	}
	return &page, nil
}

// SavePageDefinition is not supported: the remote service owns its content.
func (s *Store) SavePageDefinition(context.Context, string, *domain.Page) error {
	return fmt.Errorf("http store %q: save: %w", s.name, store.ErrNotSupported)
}

// DeletePageDefinition is not supported.
func (s *Store) DeletePageDefinition(context.Context, string) (bool, error) {
	return false, fmt.Errorf("http store %q: delete: %w", s.name, store.ErrNotSupported)
}

// LoadHTML fetches an element's HTML fragment. Any non-200 response maps to
// absent: a missing remote fragment degrades the block, not the page.
func (s *Store) LoadHTML(ctx context.Context, path string, data map[string]any, _ map[string]any) (string, bool, error) {
	if path == widgetEmbed {
		return s.loadEmbed(ctx, data, "url")
	}
	if path == widgetAPIContext {
		// The widget itself is a pure container: its output is whatever its
		// children render against the fetched context.
		return "@@children@@", true, nil
	}
	body, status, err := s.fetch(ctx, s.fragmentURL(path, "html"), data)
	if err != nil {
		return "", false, err
	}
	if status != http.StatusOK {
		s.log.Debug("html fragment absent", "path", path, "status", status)
		return "", false, nil
	}
	return string(body), true, nil
}

// LoadCSS fetches an element's CSS fragment with the same degradation rule
// as LoadHTML.
func (s *Store) LoadCSS(ctx context.Context, path string, data map[string]any, _ map[string]any) (string, bool, error) {
	if path == widgetEmbed {
		return s.loadEmbed(ctx, data, "css_url")
	}
	if path == widgetAPIContext {
		return "", false, nil
	}
	body, status, err := s.fetch(ctx, s.fragmentURL(path, "css"), data)
	if err != nil {
		return "", false, err
	}
	if status != http.StatusOK {
		return "", false, nil
	}
	return string(body), true, nil
}

// LoadContext answers the apicontext element: it fetches a JSON document
// from data["url"] and exposes it under data["name"]. Unlike fragments, a
// failing context fetch is an error, because children render against it.
func (s *Store) LoadContext(ctx context.Context, path string, data map[string]any, _ map[string]any) (map[string]any, error) {
	if path != widgetAPIContext {
		return nil, nil
	}

	name, _ := data["name"].(string)
	if name == "" {
		name = "data"
	}
	target, _ := data["url"].(string)

	if target == testContextURL {
		return map[string]any{name: testContextDocument()}, nil
	}
	if err := s.checkAllowed(target); err != nil {
		return nil, err
	}

	body, status, err := s.fetch(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("http store %q: context %q: status %d", s.name, target, status)
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation,
			fmt.Sprintf("http store %q: context %q: invalid json", s.name, target))
	}
	return map[string]any{name: doc}, nil
}

func (s *Store) loadEmbed(ctx context.Context, data map[string]any, key string) (string, bool, error) {
	target, _ := data[key].(string)
	if target == "" {
		return "", false, nil
	}
	if err := s.checkAllowed(target); err != nil {
		return "", false, err
	}
	body, status, err := s.fetch(ctx, target, nil)
	if err != nil {
		return "", false, err
	}
	if status != http.StatusOK {
		return "", false, nil
	}
	return string(body), true, nil
}

// checkAllowed enforces the configured URL allow-list for element-supplied
// URLs. Store-relative fragment URLs are always allowed; this guards only
// absolute URLs coming from page data.
func (s *Store) checkAllowed(target string) error {
	if len(s.allowedPrefixes) == 0 {
		return nil
	}
	for _, prefix := range s.allowedPrefixes {
		if strings.HasPrefix(target, prefix) {
			return nil
		}
	}
	return goerrors.New(fmt.Sprintf("http store %q: url %q not in allowed prefixes", s.name, target),
		goerrors.CategoryValidation)
}

func (s *Store) fragmentURL(path, kind string) string {
	return s.baseURL + "/" + path + "." + kind
}

// fetch performs one request, GET with query-string or POST with JSON body
// per the store's tags. Transport errors propagate; HTTP status handling is
// the caller's.
func (s *Store) fetch(ctx context.Context, target string, data map[string]any) ([]byte, int, error) {
	method := http.MethodGet
	var body io.Reader

	if store.HasTag(s, store.TagPostJSON) {
		method = http.MethodPost
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, 0, err
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	} else if len(data) > 0 {
		q := req.URL.Query()
		for k, v := range data {
			q.Set(k, fmt.Sprint(v))
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return raw, resp.StatusCode, nil
}

// WidgetList advertises the built-in element types. Remote fragment types
// are not enumerable; the service owns its own catalog.
func (s *Store) WidgetList(context.Context) ([]domain.Widget, error) {
	return []domain.Widget{
		{
			Name:        widgetAPIContext,
			Description: "Fetch a JSON document and expose it to child blocks",
			Children:    true,
			Editor: []domain.EditorField{
				{Type: "text", Label: "URL", Name: "url"},
				{Type: "text", Label: "Context name", Name: "name"},
			},
		},
		{
			Name:        widgetEmbed,
			Description: "Embed remote HTML and CSS",
			Editor: []domain.EditorField{
				{Type: "text", Label: "HTML URL", Name: "url"},
				{Type: "text", Label: "CSS URL", Name: "css_url"},
			},
		},
	}, nil
}

// WidgetDefinition resolves one built-in type.
func (s *Store) WidgetDefinition(ctx context.Context, name string) (*domain.Widget, error) {
	widgets, _ := s.WidgetList(ctx)
	for i := range widgets {
		if widgets[i].Name == name {
			return &widgets[i], nil
		}
	}
	return nil, nil
}

// CSSClassList is empty: the remote service serves no class catalog.
func (s *Store) CSSClassList(context.Context) ([]domain.CSSClass, error) {
	return []domain.CSSClass{}, nil
}

// CSSClassDefinition always reports the class unknown.
func (s *Store) CSSClassDefinition(context.Context, string) (*domain.CSSClass, error) {
	return nil, nil
}

// PageList is not supported: the remote service is not enumerable.
func (s *Store) PageList(context.Context, int, int, domain.ListFilter) (domain.PageListResult, error) {
	return domain.PageListResult{Results: []domain.PageInfo{}}, nil
}
