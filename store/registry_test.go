package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/goliatone/go-pages/domain"
)

type fakeStore struct {
	name     string
	pages    map[string]*domain.Page
	listing  []domain.PageInfo
	readOnly bool
	widgets  []domain.Widget
	classes  []domain.CSSClass
}

func (f *fakeStore) Name() string   { return f.name }
func (f *fakeStore) Tags() []string { return nil }

func (f *fakeStore) LoadPageDefinition(_ context.Context, path string) (*domain.Page, error) {
	page, ok := f.pages[path]
	if !ok {
		return nil, nil
	}
	return page, nil
}

func (f *fakeStore) SavePageDefinition(_ context.Context, path string, page *domain.Page) error {
	if f.readOnly {
		return fmt.Errorf("%s: %w", f.name, ErrNotSupported)
	}
	f.pages[path] = page
	return nil
}

func (f *fakeStore) DeletePageDefinition(_ context.Context, path string) (bool, error) {
	if f.readOnly {
		return false, fmt.Errorf("%s: %w", f.name, ErrNotSupported)
	}
	_, ok := f.pages[path]
	delete(f.pages, path)
	return ok, nil
}

func (f *fakeStore) LoadHTML(context.Context, string, map[string]any, map[string]any) (string, bool, error) {
	return "", false, nil
}

func (f *fakeStore) LoadCSS(context.Context, string, map[string]any, map[string]any) (string, bool, error) {
	return "", false, nil
}

func (f *fakeStore) LoadContext(context.Context, string, map[string]any, map[string]any) (map[string]any, error) {
	return nil, nil
}

func (f *fakeStore) WidgetList(context.Context) ([]domain.Widget, error) {
	return f.widgets, nil
}

func (f *fakeStore) WidgetDefinition(context.Context, string) (*domain.Widget, error) {
	return nil, nil
}

func (f *fakeStore) CSSClassList(context.Context) ([]domain.CSSClass, error) {
	return f.classes, nil
}

func (f *fakeStore) CSSClassDefinition(_ context.Context, name string) (*domain.CSSClass, error) {
	for _, c := range f.classes {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) PageList(_ context.Context, offset, limit int, _ domain.ListFilter) (domain.PageListResult, error) {
	result := domain.PageListResult{Count: len(f.listing), Results: []domain.PageInfo{}}
	if offset < 0 {
		offset = 0
	}
	if offset > len(f.listing) {
		offset = len(f.listing)
	}
	for _, info := range f.listing[offset:] {
		if len(result.Results) >= limit {
			break
		}
		result.Results = append(result.Results, info)
	}
	return result, nil
}

func listing(prefix string, n int) []domain.PageInfo {
	out := make([]domain.PageInfo, n)
	for i := range out {
		out[i] = domain.PageInfo{ID: fmt.Sprintf("%s-%d", prefix, i), Title: prefix}
	}
	return out
}

func TestSplitPath(t *testing.T) {
	cases := []struct {
		in, store, path string
	}{
		{"default/home", "default", "home"},
		{"default/nested/page", "default", "nested/page"},
		{"db://drafts/one", "db", "drafts/one"},
		{"bare", "", "bare"},
	}
	for _, tc := range cases {
		gotStore, gotPath := SplitPath(tc.in)
		if gotStore != tc.store || gotPath != tc.path {
			t.Errorf("SplitPath(%q) = (%q, %q), want (%q, %q)", tc.in, gotStore, gotPath, tc.store, tc.path)
		}
	}
}

func TestRegistryGetUnknownStore(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeStore{name: "one"})

	_, err := r.Get("two")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %T, want *NotFoundError", err)
	}
	if len(nf.Known) != 1 || nf.Known[0] != "one" {
		t.Fatalf("known = %v", nf.Known)
	}
}

func TestLoadPageDefinitionPipeFallback(t *testing.T) {
	draft := &fakeStore{name: "draft", pages: map[string]*domain.Page{}}
	published := &fakeStore{name: "published", pages: map[string]*domain.Page{
		"home": {Title: "Published Home"},
	}}
	r := NewRegistry()
	r.Register(draft)
	r.Register(published)

	page, err := r.LoadPageDefinition(context.Background(), "draft|published/home")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if page == nil || page.Title != "Published Home" {
		t.Fatalf("page = %+v", page)
	}

	draft.pages["home"] = &domain.Page{Title: "Draft Home"}
	page, err = r.LoadPageDefinition(context.Background(), "draft|published/home")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if page.Title != "Draft Home" {
		t.Fatalf("first store in the chain must win, got %q", page.Title)
	}
}

func TestLoadPageDefinitionAnyStore(t *testing.T) {
	a := &fakeStore{name: "a", pages: map[string]*domain.Page{}}
	b := &fakeStore{name: "b", pages: map[string]*domain.Page{"legacy": {Title: "Legacy"}}}
	r := NewRegistry()
	r.Register(a)
	r.Register(b)

	page, err := r.LoadPageDefinition(context.Background(), "legacy")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if page == nil || page.Title != "Legacy" {
		t.Fatalf("page = %+v", page)
	}
}

func TestPageListFanOut(t *testing.T) {
	one := &fakeStore{name: "one", listing: listing("one", 7)}
	two := &fakeStore{name: "two", listing: listing("two", 5)}
	r := NewRegistry()
	r.Register(one)
	r.Register(two)

	result, err := r.PageList(context.Background(), 0, 10, domain.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Count != 12 {
		t.Fatalf("count = %d, want 12", result.Count)
	}
	if len(result.Results) != 10 {
		t.Fatalf("rows = %d, want 10", len(result.Results))
	}
	for i := 0; i < 7; i++ {
		if result.Results[i].Store != "one" {
			t.Fatalf("row %d from store %q, want one", i, result.Results[i].Store)
		}
	}
	for i := 7; i < 10; i++ {
		if result.Results[i].Store != "two" {
			t.Fatalf("row %d from store %q, want two", i, result.Results[i].Store)
		}
	}

	// Offset past the first store drains only the second.
	page2, err := r.PageList(context.Background(), 10, 10, domain.ListFilter{})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if page2.Count != 12 || len(page2.Results) != 2 {
		t.Fatalf("page2 = count %d rows %d", page2.Count, len(page2.Results))
	}
	if page2.Results[0].Store != "two" {
		t.Fatalf("page2 first row store = %q", page2.Results[0].Store)
	}

	// Store filter restricts the fan-out.
	onlyTwo, err := r.PageList(context.Background(), 0, 10, domain.ListFilter{Store: "two"})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if onlyTwo.Count != 5 || len(onlyTwo.Results) != 5 {
		t.Fatalf("filtered = count %d rows %d", onlyTwo.Count, len(onlyTwo.Results))
	}
}

func TestWidgetListPrefixesAndStripsFragments(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeStore{name: "code", widgets: []domain.Widget{
		{Name: "text", HTML: "<p></p>", CSS: "p {}"},
	}})

	widgets, err := r.WidgetList(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(widgets) != 1 || widgets[0].Name != "code/text" {
		t.Fatalf("widgets = %+v", widgets)
	}
	if widgets[0].HTML != "" || widgets[0].CSS != "" {
		t.Fatal("fragments must be stripped from listings")
	}
}

func TestCSSClassListPrefixesAndStripsCSS(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeStore{name: "theme", classes: []domain.CSSClass{
		{Name: "primary", Description: "Primary accent", CSS: ".primary { color: blue; }"},
	}})
	r.Register(&fakeStore{name: "bare"})

	classes, err := r.CSSClassList(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(classes) != 1 || classes[0].Name != "theme/primary" {
		t.Fatalf("classes = %+v", classes)
	}
	if classes[0].CSS != "" {
		t.Fatal("css bodies must be stripped from listings")
	}

	scoped, err := r.CSSClassList(context.Background(), "bare")
	if err != nil {
		t.Fatalf("scoped list: %v", err)
	}
	if len(scoped) != 0 {
		t.Fatalf("scoped classes = %+v", scoped)
	}

	if _, err := r.CSSClassList(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown store err = %v, want ErrNotFound", err)
	}
}

func TestCSSClassDefinitionRouting(t *testing.T) {
	a := &fakeStore{name: "a"}
	b := &fakeStore{name: "b", classes: []domain.CSSClass{
		{Name: "primary", CSS: ".primary { color: blue; }"},
	}}
	r := NewRegistry()
	r.Register(a)
	r.Register(b)
	ctx := context.Background()

	def, err := r.CSSClassDefinition(ctx, "b/primary")
	if err != nil {
		t.Fatalf("prefixed lookup: %v", err)
	}
	if def == nil || def.CSS == "" {
		t.Fatalf("def = %+v", def)
	}

	// Bare names fan out across stores, first hit wins.
	def, err = r.CSSClassDefinition(ctx, "primary")
	if err != nil {
		t.Fatalf("bare lookup: %v", err)
	}
	if def == nil || def.Name != "primary" {
		t.Fatalf("def = %+v", def)
	}

	def, err = r.CSSClassDefinition(ctx, "a/primary")
	if err != nil {
		t.Fatalf("miss lookup: %v", err)
	}
	if def != nil {
		t.Fatalf("def = %+v, want nil", def)
	}
}

func TestSaveAndDeleteRouting(t *testing.T) {
	def := &fakeStore{name: "default", pages: map[string]*domain.Page{}}
	ro := &fakeStore{name: "remote", readOnly: true}
	r := NewRegistry()
	r.Register(def)
	r.Register(ro)
	ctx := context.Background()

	if err := r.SavePageDefinition(ctx, "bare-path", &domain.Page{Title: "x"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := def.pages["bare-path"]; !ok {
		t.Fatal("bare path must route to the default store")
	}

	if err := r.SavePageDefinition(ctx, "remote/x", &domain.Page{}); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("save to read-only store err = %v, want ErrNotSupported", err)
	}

	deleted, err := r.DeletePageDefinition(ctx, "default/bare-path")
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
}
