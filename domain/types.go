package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Element is a typed node in a page's content tree. The Type carries a store
// prefix (e.g. "default/text") naming the store that owns the widget
// definition. Data is an untyped payload handed to the widget template.
type Element struct {
	Type     string            `json:"type" yaml:"type"`
	ID       string            `json:"id,omitempty" yaml:"id,omitempty"`
	Data     map[string]any    `json:"data,omitempty" yaml:"data,omitempty"`
	Children []Element         `json:"children,omitempty" yaml:"children,omitempty"`
	Style    map[string]string `json:"style,omitempty" yaml:"style,omitempty"`
	Classes  []string          `json:"classes,omitempty" yaml:"classes,omitempty"`
}

// Meta is a single name/content pair emitted into the document head.
type Meta struct {
	Name    string `json:"name" yaml:"name"`
	Content string `json:"content" yaml:"content"`
}

// Page is the unit of storage: one store entry holds one page or one
// template page. Template references another page acting as a layout,
// addressed as "store/path".
type Page struct {
	Title        string            `json:"title" yaml:"title"`
	URL          string            `json:"url,omitempty" yaml:"url,omitempty"`
	Template     string            `json:"template,omitempty" yaml:"template,omitempty"`
	Children     []Element         `json:"children,omitempty" yaml:"children,omitempty"`
	Cache        []string          `json:"cache,omitempty" yaml:"cache,omitempty"`
	LastModified *time.Time        `json:"last_modified,omitempty" yaml:"last_modified,omitempty"`
	Meta         []Meta            `json:"meta,omitempty" yaml:"meta,omitempty"`
	CSSVariables map[string]string `json:"css_variables,omitempty" yaml:"css_variables,omitempty"`
}

// Cache strategies a page may opt into.
const (
	CacheETag         = "etag"
	CacheLastModified = "last-modified"
)

// HasCache reports whether the page declares the given conditional-request
// strategy.
func (p *Page) HasCache(strategy string) bool {
	for _, c := range p.Cache {
		if c == strategy {
			return true
		}
	}
	return false
}

// EnsureIDs assigns a stable identifier to every element missing one. Called
// on the save path so stored definitions keep idempotent ids across renders.
func (p *Page) EnsureIDs() {
	for i := range p.Children {
		ensureElementID(&p.Children[i])
	}
}

func ensureElementID(el *Element) {
	if el.ID == "" {
		el.ID = SanitizeID(uuid.NewString())
	}
	for i := range el.Children {
		ensureElementID(&el.Children[i])
	}
}

// SanitizeID makes a string usable as an HTML identifier: path separators
// collapse to dashes and a leading digit gets an "id-" prefix.
func SanitizeID(raw string) string {
	id := strings.NewReplacer("/", "-", ":", "-", ".", "-", " ", "-").Replace(raw)
	id = strings.Trim(id, "-")
	if id == "" {
		return "id"
	}
	if id[0] >= '0' && id[0] <= '9' {
		return "id-" + id
	}
	return id
}

// EditorOption is a selectable value for a "select" editor field.
type EditorOption struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
	Icon  string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// EditorField describes one input in a widget's editor schema.
type EditorField struct {
	Type        string         `json:"type" yaml:"type"`
	Label       string         `json:"label" yaml:"label"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Placeholder string         `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Options     []EditorOption `json:"options,omitempty" yaml:"options,omitempty"`
}

// Widget is a per-store catalog entry tying an element type to its HTML and
// CSS fragments plus the editor schema used by authoring tools. File-backed
// stores list fragment paths in config and resolve them to text at startup.
type Widget struct {
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Icon        string        `json:"icon,omitempty" yaml:"icon,omitempty"`
	HTML        string        `json:"html,omitempty" yaml:"html,omitempty"`
	CSS         string        `json:"css,omitempty" yaml:"css,omitempty"`
	Children    bool          `json:"children,omitempty" yaml:"children,omitempty"`
	Editor      []EditorField `json:"editor,omitempty" yaml:"editor,omitempty"`
}

// CSSClass is a named, reusable stylesheet fragment from a store's class
// catalog. Elements opt in by listing class names; the renderer folds each
// referenced class's CSS into the page output exactly once.
type CSSClass struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	CSS         string   `json:"css,omitempty" yaml:"css,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// CSSClassListResult carries a class catalog listing with its total count.
type CSSClassListResult struct {
	Count   int        `json:"count"`
	Results []CSSClass `json:"results"`
}

// PageInfo is a listing row for one stored page.
type PageInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Store string `json:"store"`
}

// PageListResult carries a listing slice together with the total match count
// across the queried range.
type PageListResult struct {
	Count   int        `json:"count"`
	Results []PageInfo `json:"results"`
}

// ListFilter narrows page listings. Type selects "page" or "template"
// entries; by convention template paths start with an underscore.
type ListFilter struct {
	Type  string
	Store string
}
