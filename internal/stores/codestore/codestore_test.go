package codestore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-pages/domain"
	"github.com/goliatone/go-pages/internal/runtimeconfig"
	"github.com/goliatone/go-pages/store"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(runtimeconfig.StoreConfig{Name: "code", Type: runtimeconfig.StoreTypeCode}, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestCodeStoreAlwaysTemplated(t *testing.T) {
	s := newStore(t)
	if !store.HasTag(s, store.TagJinja2) {
		t.Fatal("code store must carry the jinja2 tag")
	}
}

func TestTextWidget(t *testing.T) {
	s := newStore(t)

	html, ok, err := s.LoadHTML(context.Background(), "text", nil, nil)
	if err != nil || !ok {
		t.Fatalf("load html: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(html, "{{ data.text }}") {
		t.Fatalf("html = %q", html)
	}
}

func TestHTMLWidgetEchoesPayload(t *testing.T) {
	s := newStore(t)

	html, ok, err := s.LoadHTML(context.Background(), "html",
		map[string]any{"html": "<section>raw</section>"}, nil)
	if err != nil || !ok {
		t.Fatalf("load html: ok=%v err=%v", ok, err)
	}
	if html != "<section>raw</section>" {
		t.Fatalf("html = %q", html)
	}
}

func TestMarkdownWidgetConverts(t *testing.T) {
	s := newStore(t)

	html, ok, err := s.LoadHTML(context.Background(), "markdown",
		map[string]any{"markdown": "# Title\n\n- item"}, nil)
	if err != nil || !ok {
		t.Fatalf("load html: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(html, "<h1>Title</h1>") || !strings.Contains(html, "<li>item</li>") {
		t.Fatalf("html = %q", html)
	}
}

func TestStaticContextWidget(t *testing.T) {
	s := newStore(t)

	injected, err := s.LoadContext(context.Background(), "static_context",
		map[string]any{"site": map[string]any{"name": "Demo"}}, nil)
	if err != nil {
		t.Fatalf("load context: %v", err)
	}
	site, _ := injected["site"].(map[string]any)
	if site["name"] != "Demo" {
		t.Fatalf("context = %+v", injected)
	}

	injected, err = s.LoadContext(context.Background(), "text", map[string]any{"x": 1}, nil)
	if err != nil || injected != nil {
		t.Fatalf("non-context widget injected %+v err=%v", injected, err)
	}
}

func TestUnknownWidget(t *testing.T) {
	s := newStore(t)

	_, _, err := s.LoadHTML(context.Background(), "ghost", nil, nil)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReadOnly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.SavePageDefinition(ctx, "x", &domain.Page{}); !errors.Is(err, store.ErrNotSupported) {
		t.Fatalf("save err = %v, want ErrNotSupported", err)
	}
	if _, err := s.DeletePageDefinition(ctx, "x"); !errors.Is(err, store.ErrNotSupported) {
		t.Fatalf("delete err = %v, want ErrNotSupported", err)
	}
	if page, err := s.LoadPageDefinition(ctx, "anything"); err != nil || page != nil {
		t.Fatalf("load page: page=%v err=%v", page, err)
	}
}
