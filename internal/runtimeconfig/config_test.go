package runtimeconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
stores:
  - name: builtin
    type: code
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8006" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.ETagSalt != "2006-01-02" {
		t.Fatalf("etag salt = %q", cfg.Server.ETagSalt)
	}
	if cfg.Render.TemplateCache != 512 || cfg.Render.MaxTemplateDepth != 16 {
		t.Fatalf("render = %+v", cfg.Render)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
debug: true
server:
  addr: ":9000"
  etag_salt: "2006-01-02 15"
logging:
  level: debug
  format: json
stores:
  - name: default
    type: file
    path: /tmp
    tags: [pages, widgets, jinja2]
  - name: api
    type: http
    base_url: "https://api.example.com"
    tags: ["get:qs"]
    allowed_prefixes: ["https://api.example.com/"]
  - name: db
    type: db
    url: "file:pages.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Debug || cfg.Server.Addr != ":9000" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Stores) != 3 {
		t.Fatalf("stores = %d", len(cfg.Stores))
	}
	if !cfg.Stores[0].HasTag(TagJinja2) {
		t.Fatal("missing jinja2 tag")
	}
	if cfg.Stores[1].AllowedPrefixes[0] != "https://api.example.com/" {
		t.Fatalf("allowed prefixes = %v", cfg.Stores[1].AllowedPrefixes)
	}
}

func TestValidateRejectsUnknownStoreType(t *testing.T) {
	path := writeConfig(t, `
stores:
  - name: weird
    type: carrier-pigeon
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidateRejectsDuplicateStoreNames(t *testing.T) {
	path := writeConfig(t, `
stores:
  - name: dup
    type: code
  - name: dup
    type: code
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("err = %v, want duplicate name error", err)
	}
}

func TestValidateRequiresVariantFields(t *testing.T) {
	cases := map[string]string{
		"file without path": `
stores:
  - name: f
    type: file
`,
		"http without base_url": `
stores:
  - name: h
    type: http
`,
		"http with bad scheme": `
stores:
  - name: h
    type: http
    base_url: "ftp://example.com"
`,
		"db without url": `
stores:
  - name: d
    type: db
`,
	}
	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
