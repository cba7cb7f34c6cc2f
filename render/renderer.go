// Package render walks a page's element tree, resolves widget fragments
// through the store registry, evaluates templated fragments, and folds the
// result through the page's template chain into a RenderedPage.
package render

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-pages/domain"
	"github.com/goliatone/go-pages/internal/logging"
	"github.com/goliatone/go-pages/internal/template"
	"github.com/goliatone/go-pages/store"
)

// DefaultMaxTemplateDepth bounds the template chain when the config does not
// override it.
const DefaultMaxTemplateDepth = 16

// TemplateNone disables template layering for one request when passed as the
// template override.
const TemplateNone = "none"

// Conditional request header keys understood by RenderPage.
const (
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
)

// Options configures a Renderer.
type Options struct {
	// Debug keeps rendering on block failures, recording each error and
	// emitting an inline marker instead of the block's output.
	Debug bool

	// ETagSalt is the Go time layout mixed into ETag fingerprints.
	ETagSalt string

	// MaxTemplateDepth bounds the page -> template -> template chain.
	MaxTemplateDepth int

	// TemplateCacheSize bounds the compiled fragment cache.
	TemplateCacheSize int

	Logger logging.Provider
}

// Renderer turns page definitions into rendered documents. It is safe for
// concurrent use; all per-request state lives in the RenderedPage.
type Renderer struct {
	registry *store.Registry
	engine   *template.Engine
	debug    bool
	saltFmt  string
	maxDepth int
	log      logging.Logger
	now      func() time.Time
}

// New builds a Renderer over the given store registry.
func New(registry *store.Registry, opts Options) (*Renderer, error) {
	engine, err := template.New(opts.TemplateCacheSize)
	if err != nil {
		return nil, err
	}
	maxDepth := opts.MaxTemplateDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxTemplateDepth
	}
	return &Renderer{
		registry: registry,
		engine:   engine,
		debug:    opts.Debug,
		saltFmt:  opts.ETagSalt,
		maxDepth: maxDepth,
		log:      logging.ModuleLogger(opts.Logger, logging.RenderModule),
		now:      time.Now,
	}, nil
}

// RenderPage loads a page by store-prefixed path and renders it, honoring
// the page's conditional-request strategies against the supplied request
// headers. templateOverride replaces the page's template reference;
// TemplateNone disables layering entirely.
func (r *Renderer) RenderPage(ctx context.Context, path string, headers map[string]string, templateOverride string) (*RenderedPage, error) {
	page, err := r.registry.LoadPageDefinition(ctx, path)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, store.WrapNotFound(
			fmt.Errorf("page %q: %w", path, store.ErrNotFound), "page not found")
	}

	switch templateOverride {
	case "":
	case TemplateNone:
		page.Template = ""
	default:
		page.Template = templateOverride
	}

	responseHeaders := map[string]string{}

	if page.HasCache(domain.CacheETag) {
		etag := computeETag(page, r.saltFmt, r.now())
		if etag != "" {
			responseHeaders[HeaderETag] = etag
			if headers[HeaderIfNoneMatch] == etag {
				r.log.Debug("etag match, skipping render", "path", path)
				return notModified(path, responseHeaders), nil
			}
		}
	}

	if page.HasCache(domain.CacheLastModified) {
		modified := lastModified(page, r.now())
		responseHeaders[HeaderLastModified] = modified
		if since := headers[HeaderIfModifiedSince]; since != "" && since == modified {
			r.log.Debug("last-modified match, skipping render", "path", path)
			return notModified(path, responseHeaders), nil
		}
	}

	rendered, err := r.Render(ctx, page)
	if err != nil {
		return nil, err
	}
	rendered.Path = path
	for k, v := range responseHeaders {
		rendered.Headers[k] = v
	}
	return rendered, nil
}

// notModified builds the empty 304 stub: validator headers only, no body and
// no title.
func notModified(path string, headers map[string]string) *RenderedPage {
	rp := NewRenderedPage()
	rp.Path = path
	rp.ResponseCode = 304
	for k, v := range headers {
		rp.Headers[k] = v
	}
	return rp
}

// Render renders an in-memory page definition, including its template chain.
func (r *Renderer) Render(ctx context.Context, page *domain.Page) (*RenderedPage, error) {
	rp := NewRenderedPage()
	rp.Title = page.Title
	rp.Meta = append(rp.Meta, page.Meta...)
	rp.MergeCSSVariables(page.CSSVariables)

	if err := r.renderPageData(ctx, rp, page); err != nil {
		return nil, err
	}

	templateRef := page.Template
	for depth := 0; templateRef != ""; depth++ {
		if depth >= r.maxDepth {
			return nil, fmt.Errorf("%w: %d levels via %q", ErrTemplateDepth, depth, templateRef)
		}
		next, err := r.renderInTemplate(ctx, rp, templateRef)
		if err != nil {
			return nil, err
		}
		templateRef = next
	}
	return rp, nil
}

// renderPageData renders a page's top-level children into the accumulator.
func (r *Renderer) renderPageData(ctx context.Context, rp *RenderedPage, page *domain.Page) error {
	for i := range page.Children {
		content, err := r.renderElementSafe(ctx, rp, &page.Children[i], rp.Context)
		if err != nil {
			return err
		}
		rp.AppendContent(content)
	}
	return nil
}

// renderInTemplate wraps the accumulated content in one template layer: the
// content so far becomes context["children"], the body resets, and the
// template's own blocks render. Returns the template's parent reference, if
// any. A missing template is always fatal, debug mode included; a page that
// names a template it cannot have is a configuration error, not a block
// error.
func (r *Renderer) renderInTemplate(ctx context.Context, rp *RenderedPage, templateRef string) (string, error) {
	tpl, err := r.registry.LoadPageDefinition(ctx, templateRef)
	if err != nil {
		return "", err
	}
	if tpl == nil {
		return "", store.WrapNotFound(
			fmt.Errorf("template %q: %w", templateRef, store.ErrNotFound), "template not found")
	}

	r.log.Debug("layering template", "template", templateRef)

	rp.Context["children"] = rp.Content
	rp.Content = ""
	if rp.Title == "" {
		rp.Title = tpl.Title
	}
	rp.Meta = append(rp.Meta, tpl.Meta...)
	rp.MergeCSSVariables(tpl.CSSVariables)

	if err := r.renderPageData(ctx, rp, tpl); err != nil {
		return "", err
	}
	return tpl.Template, nil
}

// renderElementSafe applies the debug error-containment policy around a
// single element render.
func (r *Renderer) renderElementSafe(ctx context.Context, rp *RenderedPage, el *domain.Element, pageCtx map[string]any) (string, error) {
	content, err := r.renderElement(ctx, rp, el, pageCtx)
	if err == nil {
		return content, nil
	}
	if !r.debug {
		return "", err
	}

	r.log.Warn("block failed, continuing in debug mode", "type", el.Type, "id", el.ID, "error", err)
	rp.Errors = append(rp.Errors, BlockError{
		BlockType: el.Type,
		BlockID:   el.ID,
		Err:       err,
		Message:   err.Error(),
	})
	return fmt.Sprintf(`<pre style="color: red;">%s</pre>`, html.EscapeString(err.Error())), nil
}

// renderElement renders one element and, post-order, its children. The
// returned fragment is fully evaluated; side effects on the accumulator are
// the id sequence, registered CSS, and context injected by the element's
// store.
func (r *Renderer) renderElement(ctx context.Context, rp *RenderedPage, el *domain.Element, pageCtx map[string]any) (string, error) {
	storeName, elementType := store.SplitPath(el.Type)
	if storeName == "" {
		return "", wrapElement(el, "", fmt.Errorf("%w: %q", ErrInvalidElementType, el.Type))
	}
	st, err := r.registry.Get(storeName)
	if err != nil {
		return "", wrapElement(el, "", err)
	}

	id := rp.NextID(elementType, el.ID)

	// Context injected by this element is visible to the element itself and
	// its subtree, never to siblings.
	elementCtx := pageCtx
	injected, err := st.LoadContext(ctx, elementType, el.Data, pageCtx)
	if err != nil {
		return "", wrapElement(el, id, err)
	}
	if len(injected) > 0 {
		elementCtx = make(map[string]any, len(pageCtx)+len(injected))
		for k, v := range pageCtx {
			elementCtx[k] = v
		}
		for k, v := range injected {
			elementCtx[k] = v
		}
	}

	childFragments := make([]string, 0, len(el.Children))
	for i := range el.Children {
		fragment, err := r.renderElementSafe(ctx, rp, &el.Children[i], elementCtx)
		if err != nil {
			return "", err
		}
		childFragments = append(childFragments, fragment)
	}
	children := strings.Join(childFragments, "\n")

	// Named classes resolve through the registry: each referenced class
	// registers its stylesheet once and the resolved names become visible to
	// the element's own template under context.classes. An unknown class is a
	// definition error, handled like a missing widget.
	if len(el.Classes) > 0 {
		classNames := make([]string, 0, len(el.Classes))
		for _, class := range el.Classes {
			def, err := r.registry.CSSClassDefinition(ctx, class)
			if err != nil {
				return "", wrapElement(el, id, err)
			}
			if def == nil {
				return "", wrapElement(el, id, store.WrapNotFound(
					fmt.Errorf("css class %q: %w", class, store.ErrNotFound), "css class not found"))
			}
			rp.RegisterCSS(def.CSS)
			classNames = append(classNames, def.Name)
		}
		withClasses := make(map[string]any, len(elementCtx)+1)
		for k, v := range elementCtx {
			withClasses[k] = v
		}
		withClasses["classes"] = classNames
		elementCtx = withClasses
	}

	fragment, hasHTML, err := st.LoadHTML(ctx, elementType, el.Data, elementCtx)
	if err != nil {
		return "", wrapElement(el, id, err)
	}
	css, hasCSS, err := st.LoadCSS(ctx, elementType, el.Data, elementCtx)
	if err != nil {
		return "", wrapElement(el, id, err)
	}
	if !hasHTML {
		fragment = ""
	}

	if store.HasTag(st, store.TagJinja2) {
		pageBindings := map[string]any{"title": rp.Title, "path": rp.Path, "meta": rp.Meta}
		dataBindings := map[string]any{
			"data":    el.Data,
			"context": elementCtx,
			"page":    pageBindings,
		}
		data, err := r.engine.EvaluateData(el.Data, dataBindings)
		if err != nil {
			return "", wrapElement(el, id, goerrors.Wrap(err, goerrors.CategoryValidation, "evaluate element data").WithTextCode("TEMPLATE_DATA"))
		}
		bindings := map[string]any{
			"id":       id,
			"data":     data,
			"context":  elementCtx,
			"children": children,
			"page":     pageBindings,
		}
		if hasHTML && template.HasMarkers(fragment) {
			fragment, err = r.engine.Evaluate(fragment, bindings)
			if err != nil {
				return "", wrapElement(el, id, goerrors.Wrap(err, goerrors.CategoryValidation, "evaluate widget html").WithTextCode("TEMPLATE_HTML"))
			}
		}
		if hasCSS && template.HasMarkers(css) {
			css, err = r.engine.Evaluate(css, bindings)
			if err != nil {
				return "", wrapElement(el, id, goerrors.Wrap(err, goerrors.CategoryValidation, "evaluate widget css").WithTextCode("TEMPLATE_CSS"))
			}
		}
	}

	// Stores without template evaluation still get child content via a
	// literal marker; it also survives in templated fragments.
	fragment = strings.ReplaceAll(fragment, "@@children@@", children)
	fragment = strings.ReplaceAll(fragment, "@@class@@", id)
	fragment = strings.ReplaceAll(fragment, "@@id@@", id)

	if hasCSS {
		rp.RegisterCSS(css)
	}
	rp.RegisterStyle(id, el.Style)

	return fragment, nil
}

func wrapElement(el *domain.Element, id string, err error) error {
	if id == "" {
		id = el.ID
	}
	return &ElementError{ElementType: el.Type, ElementID: id, Err: err}
}
