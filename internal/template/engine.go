// Package template wraps the pongo2 expression language used to evaluate
// widget HTML/CSS fragments and string-valued element data. Evaluation is
// side-effect free and idempotent; unknown variables render empty so a
// partially-specified context never fails a page.
package template

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/flosch/pongo2/v6"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the compiled-template cache when the config does
// not override it.
const DefaultCacheSize = 512

// Engine compiles and evaluates fragment templates. Compiled templates are
// memoized in a bounded LRU owned by the engine instance, never in process
// globals, so one renderer cannot leak entries into another.
type Engine struct {
	set   *pongo2.TemplateSet
	cache *lru.Cache[string, *pongo2.Template]
}

// New builds an engine with a compiled-template cache of the given capacity.
// A non-positive capacity falls back to DefaultCacheSize.
func New(cacheSize int) (*Engine, error) {
	registerFilters()

	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *pongo2.Template](cacheSize)
	if err != nil {
		return nil, err
	}

	set := pongo2.NewSet("go-pages", pongo2.MustNewLocalFileSystemLoader(""))
	return &Engine{set: set, cache: cache}, nil
}

// HasMarkers reports whether a string contains template syntax worth
// evaluating. Plain strings skip compilation entirely.
func HasMarkers(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%")
}

// Evaluate renders a fragment source against the given bindings.
func (e *Engine) Evaluate(src string, bindings map[string]any) (string, error) {
	tpl, err := e.compile(src)
	if err != nil {
		return "", err
	}
	return tpl.Execute(pongo2.Context(bindings))
}

// EvaluateData walks an element's data payload and evaluates string values
// that contain template markers, including strings nested inside maps and
// slices. Non-string values pass through untouched.
func (e *Engine) EvaluateData(data map[string]any, bindings map[string]any) (map[string]any, error) {
	if len(data) == 0 {
		return data, nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		evaluated, err := e.evaluateValue(v, bindings)
		if err != nil {
			return nil, err
		}
		out[k] = evaluated
	}
	return out, nil
}

func (e *Engine) evaluateValue(v any, bindings map[string]any) (any, error) {
	switch value := v.(type) {
	case string:
		if !HasMarkers(value) {
			return value, nil
		}
		return e.Evaluate(value, bindings)
	case map[string]any:
		return e.EvaluateData(value, bindings)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			evaluated, err := e.evaluateValue(item, bindings)
			if err != nil {
				return nil, err
			}
			out[i] = evaluated
		}
		return out, nil
	default:
		return v, nil
	}
}

func (e *Engine) compile(src string) (*pongo2.Template, error) {
	key := strconv.FormatUint(xxhash.Sum64String(src), 16)
	if tpl, ok := e.cache.Get(key); ok {
		return tpl, nil
	}
	tpl, err := e.set.FromString(src)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, tpl)
	return tpl, nil
}
