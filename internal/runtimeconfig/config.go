// Package runtimeconfig loads and validates the process configuration. The
// config file is read once at startup and treated as immutable afterwards;
// there is no hot reload.
package runtimeconfig

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-pages/domain"
	"github.com/goliatone/go-pages/store"
)

// Store type selectors.
const (
	StoreTypeFile = "file"
	StoreTypeHTTP = "http"
	StoreTypeDB   = "db"
	StoreTypeCode = "code"
)

// Store behavior tags consulted by the renderer and the stores themselves.
const (
	TagJinja2     = store.TagJinja2
	TagPages      = store.TagPages
	TagWidgets    = store.TagWidgets
	TagCSSClasses = store.TagCSSClasses
	TagPostJSON   = store.TagPostJSON
	TagGetQS      = store.TagGetQS
)

// Config is the root process configuration.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Render  RenderConfig  `yaml:"render"`
	Stores  []StoreConfig `yaml:"stores"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// ETagSalt is a Go time layout; the formatted current time is mixed
	// into every ETag so validators rotate at the bucket boundary even for
	// unchanged content. Default is day granularity.
	ETagSalt string `yaml:"etag_salt"`
}

// LoggingConfig selects the go-logger output.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// RenderConfig tunes the renderer.
type RenderConfig struct {
	// TemplateCache bounds the compiled-template LRU per engine.
	TemplateCache int `yaml:"template_cache"`
	// MaxTemplateDepth caps template layering so cyclic template
	// references fail fast instead of recursing unbounded.
	MaxTemplateDepth int `yaml:"max_template_depth"`
}

// StoreConfig is the immutable descriptor for one store. Name doubles as the
// URL prefix in page paths.
type StoreConfig struct {
	Name            string          `yaml:"name"`
	Type            string          `yaml:"type"`
	Path            string          `yaml:"path"`
	URL             string          `yaml:"url"`
	BaseURL         string          `yaml:"base_url"`
	Tags            []string          `yaml:"tags"`
	Widgets         []domain.Widget   `yaml:"widgets"`
	CSSClasses      []domain.CSSClass `yaml:"css_classes"`
	AllowedPrefixes []string          `yaml:"allowed_prefixes"`
}

// HasTag reports whether the descriptor carries a behavior tag.
func (c StoreConfig) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DefaultConfig returns a runnable baseline configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:     ":8006",
			ETagSalt: "2006-01-02",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Render: RenderConfig{
			TemplateCache:    512,
			MaxTemplateDepth: 16,
		},
	}
}

// Load reads and validates a YAML config file. Any validation failure is
// fatal at startup by design.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the whole configuration tree.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Render),
	); err != nil {
		return err
	}

	seen := map[string]bool{}
	for i, sc := range c.Stores {
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("stores[%d] (%s): %w", i, sc.Name, err)
		}
		if seen[sc.Name] {
			return fmt.Errorf("stores[%d]: duplicate store name %q", i, sc.Name)
		}
		seen[sc.Name] = true
	}
	return nil
}

// Validate checks the server section.
func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.ETagSalt, validation.Required),
	)
}

// Validate checks the render section.
func (r RenderConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TemplateCache, validation.Min(1)),
		validation.Field(&r.MaxTemplateDepth, validation.Min(1)),
	)
}

// Validate checks one store descriptor. Unknown types and malformed URLs are
// configuration errors: the process must not start with them.
func (c StoreConfig) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Type, validation.Required,
			validation.In(StoreTypeFile, StoreTypeHTTP, StoreTypeDB, StoreTypeCode)),
	)
	if err != nil {
		return err
	}

	switch c.Type {
	case StoreTypeFile:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("file store requires a path")
		}
	case StoreTypeHTTP:
		if strings.TrimSpace(c.BaseURL) == "" {
			return fmt.Errorf("http store requires a base_url")
		}
		parsed, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("http store base_url: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("http store base_url: unsupported scheme %q", parsed.Scheme)
		}
	case StoreTypeDB:
		if strings.TrimSpace(c.URL) == "" {
			return fmt.Errorf("db store requires a url")
		}
	}
	return nil
}
