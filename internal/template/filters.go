package template

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var filterSetup sync.Once

// registerFilters installs the go-pages filter pipeline. pongo2 keeps filter
// registrations process-wide, so this runs exactly once regardless of how
// many engines exist. Autoescaping is disabled to match the fragment
// semantics: widget templates emit HTML, and escaping is the template
// author's call via the escape filter.
func registerFilters() {
	filterSetup.Do(func() {
		pongo2.SetAutoescape(false)
		pongo2.RegisterFilter("markdown", filterMarkdown)
		pongo2.RegisterFilter("json", filterJSON)
	})
}

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// filterMarkdown converts a markdown value into HTML.
func filterMarkdown(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(in.String()), &buf); err != nil {
		return nil, &pongo2.Error{Sender: "filter:markdown", OrigError: err}
	}
	return pongo2.AsSafeValue(buf.String()), nil
}

// filterJSON serializes any value as JSON, useful for feeding rendered data
// into inline scripts.
func filterJSON(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	raw, err := json.Marshal(in.Interface())
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:json", OrigError: err}
	}
	return pongo2.AsSafeValue(string(raw)), nil
}
