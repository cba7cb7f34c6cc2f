package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/goliatone/go-pages/domain"
)

// RenderedPage accumulates the output of one top-level render call. The
// renderer owns it exclusively for the duration of that call; it is never
// shared across requests.
type RenderedPage struct {
	Path    string
	Title   string
	Content string

	// Classes maps a selector or content hash to a CSS rule block. Keying
	// identical widget CSS by its content hash deduplicates repeated blocks
	// of the same type.
	Classes map[string]string

	// Context holds the values visible to blocks while rendering. It grows
	// via merges and never shrinks within a render pass; moving into a
	// template layer snapshots the accumulated content under "children".
	Context map[string]any

	Headers      map[string]string
	ResponseCode int
	Meta         []domain.Meta
	CSSVariables map[string]string
	Errors       []BlockError

	sequence int
}

// BlockError records a single block failure kept in debug renders.
type BlockError struct {
	BlockType string `json:"block_type"`
	BlockID   string `json:"block_id"`
	Err       error  `json:"-"`
	Message   string `json:"error"`
}

// NewRenderedPage builds an empty accumulator.
func NewRenderedPage() *RenderedPage {
	return &RenderedPage{
		Classes:      map[string]string{},
		Context:      map[string]any{},
		Headers:      map[string]string{},
		ResponseCode: 200,
		CSSVariables: map[string]string{},
		sequence:     1,
	}
}

// AppendContent appends a rendered block to the page body.
func (rp *RenderedPage) AppendContent(content string) {
	rp.Content += content
}

// NextID resolves the identifier for an element: the explicit id when
// present, otherwise "<sanitized type>-<sequence>". The sequence advances
// for every element so generated ids are deterministic in document order.
func (rp *RenderedPage) NextID(elementType, explicit string) string {
	seq := rp.sequence
	rp.sequence++
	if explicit != "" {
		return domain.SanitizeID(explicit)
	}
	return domain.SanitizeID(elementType) + "-" + strconv.Itoa(seq)
}

// RegisterCSS stores a CSS rule block keyed by a fast content hash, so
// repeated blocks of the same type register exactly one entry.
func (rp *RenderedPage) RegisterCSS(css string) {
	if strings.TrimSpace(css) == "" {
		return
	}
	key := strconv.FormatUint(xxhash.Sum64String(css), 16)
	rp.Classes[key] = css
}

// RegisterStyle synthesizes a #id rule from an element's inline style map.
func (rp *RenderedPage) RegisterStyle(id string, style map[string]string) {
	if len(style) == 0 {
		return
	}
	props := make([]string, 0, len(style))
	for k := range style {
		props = append(props, k)
	}
	sort.Strings(props)

	var b strings.Builder
	fmt.Fprintf(&b, "#%s {\n", id)
	for _, k := range props {
		fmt.Fprintf(&b, "  %s: %s;\n", k, style[k])
	}
	b.WriteString("}")
	rp.Classes["#"+id] = b.String()
}

// MergeCSSVariables adds variables from a later template layer. Existing
// names win: layers may add but never remove or override.
func (rp *RenderedPage) MergeCSSVariables(vars map[string]string) {
	for k, v := range vars {
		if _, ok := rp.CSSVariables[k]; !ok {
			rp.CSSVariables[k] = v
		}
	}
}

// CSS flattens the accumulated variables and rule blocks into a stylesheet.
// Output ordering is stable: variables first, then rules sorted by key.
func (rp *RenderedPage) CSS() string {
	var b strings.Builder

	if len(rp.CSSVariables) > 0 {
		names := make([]string, 0, len(rp.CSSVariables))
		for k := range rp.CSSVariables {
			names = append(names, k)
		}
		sort.Strings(names)
		b.WriteString(":root {\n")
		for _, k := range names {
			fmt.Fprintf(&b, "  --%s: %s;\n", strings.TrimPrefix(k, "--"), rp.CSSVariables[k])
		}
		b.WriteString("}\n")
	}

	keys := make([]string, 0, len(rp.Classes))
	for k := range rp.Classes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(rp.Classes[k])
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders the full standalone document.
func (rp *RenderedPage) HTML() string {
	if rp.ResponseCode == 304 {
		return ""
	}

	var meta strings.Builder
	for _, m := range rp.Meta {
		fmt.Fprintf(&meta, "<meta name=%q content=%q>\n", m.Name, m.Content)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s</title>
%s<style>
%s</style>
</head>
<body>
%s
</body>
</html>
`, rp.Title, meta.String(), rp.CSS(), rp.Content)
}

// Document is the JSON projection of a rendered page.
type Document struct {
	Title string       `json:"title"`
	Body  string       `json:"body"`
	Head  DocumentHead `json:"head"`
	HTTP  DocumentHTTP `json:"http"`
}

// DocumentHead groups the head assets of a rendered page. JS is part of the
// boundary shape but always empty: no store contributes script fragments, so
// script delivery stays with the hosting application.
type DocumentHead struct {
	CSS  string        `json:"css"`
	JS   string        `json:"js"`
	Meta []domain.Meta `json:"meta"`
}

// DocumentHTTP carries the transport metadata computed during the render.
type DocumentHTTP struct {
	Headers      map[string]string `json:"headers"`
	ResponseCode int               `json:"response_code"`
}

// Document projects the accumulator into its JSON boundary shape.
func (rp *RenderedPage) Document() Document {
	meta := rp.Meta
	if meta == nil {
		meta = []domain.Meta{}
	}
	return Document{
		Title: rp.Title,
		Body:  rp.Content,
		Head: DocumentHead{
			CSS:  rp.CSS(),
			Meta: meta,
		},
		HTTP: DocumentHTTP{
			Headers:      rp.Headers,
			ResponseCode: rp.ResponseCode,
		},
	}
}
