package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-pages/domain"
	"github.com/goliatone/go-pages/render"
	"github.com/goliatone/go-pages/store"
)

type stubStore struct {
	name    string
	tags    []string
	pages   map[string]*domain.Page
	html    map[string]string
	classes map[string]domain.CSSClass
}

func (s *stubStore) Name() string   { return s.name }
func (s *stubStore) Tags() []string { return s.tags }

func (s *stubStore) LoadPageDefinition(_ context.Context, path string) (*domain.Page, error) {
	page, ok := s.pages[path]
	if !ok {
		return nil, nil
	}
	clone := *page
	return &clone, nil
}

func (s *stubStore) SavePageDefinition(_ context.Context, path string, page *domain.Page) error {
	s.pages[path] = page
	return nil
}

func (s *stubStore) DeletePageDefinition(_ context.Context, path string) (bool, error) {
	_, ok := s.pages[path]
	delete(s.pages, path)
	return ok, nil
}

func (s *stubStore) LoadHTML(_ context.Context, path string, _, _ map[string]any) (string, bool, error) {
	html, ok := s.html[path]
	if !ok {
		return "", false, store.WrapNotFound(store.ErrNotFound, "unknown widget "+path)
	}
	return html, true, nil
}

func (s *stubStore) LoadCSS(context.Context, string, map[string]any, map[string]any) (string, bool, error) {
	return "", false, nil
}

func (s *stubStore) LoadContext(context.Context, string, map[string]any, map[string]any) (map[string]any, error) {
	return nil, nil
}

func (s *stubStore) WidgetList(context.Context) ([]domain.Widget, error) {
	out := make([]domain.Widget, 0, len(s.html))
	for name, html := range s.html {
		out = append(out, domain.Widget{Name: name, HTML: html})
	}
	return out, nil
}

func (s *stubStore) WidgetDefinition(context.Context, string) (*domain.Widget, error) {
	return nil, nil
}

func (s *stubStore) CSSClassList(context.Context) ([]domain.CSSClass, error) {
	out := make([]domain.CSSClass, 0, len(s.classes))
	for _, c := range s.classes {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubStore) CSSClassDefinition(_ context.Context, name string) (*domain.CSSClass, error) {
	c, ok := s.classes[name]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *stubStore) PageList(_ context.Context, offset, limit int, _ domain.ListFilter) (domain.PageListResult, error) {
	result := domain.PageListResult{Count: len(s.pages), Results: []domain.PageInfo{}}
	for path, page := range s.pages {
		result.Results = append(result.Results, domain.PageInfo{ID: path, Title: page.Title, URL: path})
	}
	return result, nil
}

func newTestMux(t *testing.T) (*http.ServeMux, *stubStore) {
	t.Helper()
	st := &stubStore{
		name: "default",
		tags: []string{store.TagJinja2, store.TagPages},
		pages: map[string]*domain.Page{
			"home": {
				Title: "Home",
				Children: []domain.Element{
					{Type: "default/text", Data: map[string]any{"text": "Hello, world!"}},
				},
			},
		},
		html: map[string]string{"text": `<p>{{ data.text }}</p>`},
		classes: map[string]domain.CSSClass{
			"primary": {Name: "primary", Description: "Primary accent", CSS: ".primary { color: blue; }"},
		},
	}
	registry := store.NewRegistry()
	registry.Register(st)

	renderer, err := render.New(registry, render.Options{ETagSalt: "2006-01-02"})
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	mux := http.NewServeMux()
	New(registry, renderer, false, nil).Routes(mux)
	return mux, st
}

func do(t *testing.T, mux *http.ServeMux, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestViewHTML(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/view/default/home", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<p>Hello, world!</p>") {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "<title>Home</title>") {
		t.Fatalf("body missing title: %q", rec.Body.String())
	}
}

func TestViewJSON(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/view/default/home?format=json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var doc render.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Title != "Home" {
		t.Fatalf("title = %q", doc.Title)
	}
	if doc.Body != "<p>Hello, world!</p>" {
		t.Fatalf("body = %q", doc.Body)
	}
	if doc.HTTP.ResponseCode != 200 {
		t.Fatalf("response code = %d", doc.HTTP.ResponseCode)
	}
}

func TestViewUnknownFormat(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/view/default/home?format=xml", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestViewNotFound(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/view/default/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestViewETagRoundTrip(t *testing.T) {
	mux, st := newTestMux(t)
	st.pages["home"].Cache = []string{domain.CacheETag}

	first := do(t, mux, http.MethodGet, "/api/v1/view/default/home", "")
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/view/default/home", nil)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("304 carried body %q", rec.Body.String())
	}
}

func TestPageCRUD(t *testing.T) {
	mux, _ := newTestMux(t)

	payload := `{"title":"New Page","children":[{"type":"default/text","data":{"text":"hi"}}]}`
	rec := do(t, mux, http.MethodPost, "/api/v1/page/default/fresh", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, mux, http.MethodGet, "/api/v1/page/default/fresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var page domain.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Title != "New Page" {
		t.Fatalf("title = %q", page.Title)
	}

	rec = do(t, mux, http.MethodDelete, "/api/v1/page/default/fresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	var deleted struct {
		Deleted bool `json:"deleted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &deleted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !deleted.Deleted {
		t.Fatal("expected deleted=true")
	}

	// Second delete reports false without an error status.
	rec = do(t, mux, http.MethodDelete, "/api/v1/page/default/fresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("second delete status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &deleted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if deleted.Deleted {
		t.Fatal("expected deleted=false for missing page")
	}
}

func TestSavePageInvalidJSON(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/v1/page/default/bad", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListPages(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/page/?offset=0&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result domain.PageListResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Count != 1 || len(result.Results) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.Results[0].Store != "default" {
		t.Fatalf("store = %q", result.Results[0].Store)
	}
}

func TestViewJSFormatHasEmptyBody(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/view/default/home?format=js", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/javascript") {
		t.Fatalf("content type = %q", ct)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("js body = %q, want empty", rec.Body.String())
	}
}

func TestRenderPostPreview(t *testing.T) {
	mux, _ := newTestMux(t)

	payload := `{"title":"Preview","children":[{"type":"default/text","data":{"text":"draft"}}]}`
	rec := do(t, mux, http.MethodPost, "/api/v1/render/", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "<p>draft</p>") {
		t.Fatalf("body = %q", rec.Body.String())
	}

	rec = do(t, mux, http.MethodPost, "/api/v1/render/?format=json", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("json status = %d", rec.Code)
	}
	var doc render.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Title != "Preview" || doc.Body != "<p>draft</p>" {
		t.Fatalf("doc = %+v", doc)
	}

	// Nothing was persisted.
	rec = do(t, mux, http.MethodGet, "/api/v1/page/default/Preview", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("preview leaked into the store: status = %d", rec.Code)
	}

	rec = do(t, mux, http.MethodPost, "/api/v1/render/", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid body status = %d, want 400", rec.Code)
	}
}

func TestListClasses(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/class/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result domain.CSSClassListResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Count != 1 || len(result.Results) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.Results[0].Name != "default/primary" {
		t.Fatalf("name = %q, want store-prefixed", result.Results[0].Name)
	}
	if result.Results[0].CSS != "" {
		t.Fatal("class listing must omit css bodies")
	}

	rec = do(t, mux, http.MethodGet, "/api/v1/class/?store=ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown store status = %d, want 404", rec.Code)
	}
}

func TestGetClassDefinition(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/class/default/primary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var def domain.CSSClass
	if err := json.Unmarshal(rec.Body.Bytes(), &def); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if def.Name != "primary" || def.CSS != ".primary { color: blue; }" {
		t.Fatalf("def = %+v", def)
	}

	rec = do(t, mux, http.MethodGet, "/api/v1/class/default/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing class status = %d, want 404", rec.Code)
	}
}

func TestListWidgets(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/widget/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var widgets []domain.Widget
	if err := json.Unmarshal(rec.Body.Bytes(), &widgets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(widgets) != 1 {
		t.Fatalf("widgets = %+v", widgets)
	}
	if widgets[0].Name != "default/text" {
		t.Fatalf("name = %q, want store-prefixed", widgets[0].Name)
	}
	if widgets[0].HTML != "" {
		t.Fatal("catalog listing must omit fragment bodies")
	}
}
