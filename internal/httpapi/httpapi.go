// Package httpapi exposes the renderer and stores over HTTP. Routes mount on
// a stdlib mux; error mapping is mechanical from the store and render error
// taxonomy.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/goliatone/go-pages/domain"
	"github.com/goliatone/go-pages/internal/logging"
	"github.com/goliatone/go-pages/render"
	"github.com/goliatone/go-pages/store"
)

// API wires the render and store surfaces onto HTTP routes.
type API struct {
	registry *store.Registry
	renderer *render.Renderer
	debug    bool
	log      logging.Logger
}

// New builds the API surface.
func New(registry *store.Registry, renderer *render.Renderer, debug bool, provider logging.Provider) *API {
	return &API{
		registry: registry,
		renderer: renderer,
		debug:    debug,
		log:      logging.ModuleLogger(provider, logging.HTTPModule),
	}
}

// Routes mounts the API on mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/view/{path...}", a.handleView)
	mux.HandleFunc("GET /api/v1/page/{$}", a.handleListPages)
	mux.HandleFunc("GET /api/v1/page/{path...}", a.handleGetPage)
	mux.HandleFunc("POST /api/v1/page/{path...}", a.handleSavePage)
	mux.HandleFunc("DELETE /api/v1/page/{path...}", a.handleDeletePage)
	mux.HandleFunc("GET /api/v1/widget/{$}", a.handleListWidgets)
	mux.HandleFunc("GET /api/v1/class/{$}", a.handleListClasses)
	mux.HandleFunc("GET /api/v1/class/{path...}", a.handleGetClass)
	mux.HandleFunc("POST /api/v1/render/{$}", a.handleRenderPost)
}

func (a *API) handleView(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	query := r.URL.Query()

	headers := map[string]string{}
	if v := r.Header.Get(render.HeaderIfNoneMatch); v != "" {
		headers[render.HeaderIfNoneMatch] = v
	}
	if v := r.Header.Get(render.HeaderIfModifiedSince); v != "" {
		headers[render.HeaderIfModifiedSince] = v
	}

	rendered, err := a.renderer.RenderPage(r.Context(), path, headers, query.Get("template"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	for k, v := range rendered.Headers {
		w.Header().Set(k, v)
	}
	if rendered.ResponseCode == http.StatusNotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	a.writeRendered(w, query.Get("format"), rendered)
}

// handleRenderPost renders a page definition posted in the request body
// without persisting it, the preview path for authoring tools.
func (a *API) handleRenderPost(w http.ResponseWriter, r *http.Request) {
	var page domain.Page
	if err := json.NewDecoder(r.Body).Decode(&page); err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page definition: " + err.Error()})
		return
	}

	rendered, err := a.renderer.Render(r.Context(), &page)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeRendered(w, r.URL.Query().Get("format"), rendered)
}

// writeRendered serializes a rendered page in the requested boundary format.
// The js body is always empty; see render.DocumentHead.
func (a *API) writeRendered(w http.ResponseWriter, format string, rendered *render.RenderedPage) {
	switch format {
	case "", "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(rendered.ResponseCode)
		w.Write([]byte(rendered.HTML()))
	case "json":
		a.writeJSON(w, rendered.ResponseCode, rendered.Document())
	case "css":
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.WriteHeader(rendered.ResponseCode)
		w.Write([]byte(rendered.CSS()))
	case "js":
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.WriteHeader(rendered.ResponseCode)
	default:
		a.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown format " + strconv.Quote(format),
		})
	}
}

func (a *API) handleListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := a.registry.CSSClassList(r.Context(), r.URL.Query().Get("store"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, domain.CSSClassListResult{Count: len(classes), Results: classes})
}

func (a *API) handleGetClass(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("path")
	def, err := a.registry.CSSClassDefinition(r.Context(), name)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if def == nil {
		a.writeJSON(w, http.StatusNotFound, map[string]string{"error": "css class not found"})
		return
	}
	a.writeJSON(w, http.StatusOK, def)
}

func (a *API) handleGetPage(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	page, err := a.registry.LoadPageDefinition(r.Context(), path)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if page == nil {
		a.writeJSON(w, http.StatusNotFound, map[string]string{"error": "page not found"})
		return
	}
	a.writeJSON(w, http.StatusOK, page)
}

func (a *API) handleSavePage(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	var page domain.Page
	if err := json.NewDecoder(r.Body).Decode(&page); err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page definition: " + err.Error()})
		return
	}
	if err := a.registry.SavePageDefinition(r.Context(), path, &page); err != nil {
		a.writeError(w, err)
		return
	}
	a.log.Info("page saved", "path", path)
	a.writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (a *API) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	deleted, err := a.registry.DeletePageDefinition(r.Context(), path)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"path": path, "deleted": deleted})
}

func (a *API) handleListPages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	offset := intParam(query.Get("offset"), 0)
	limit := intParam(query.Get("limit"), 20)

	result, err := a.registry.PageList(r.Context(), offset, limit, domain.ListFilter{
		Type:  query.Get("type"),
		Store: query.Get("store"),
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}

func (a *API) handleListWidgets(w http.ResponseWriter, r *http.Request) {
	widgets, err := a.registry.WidgetList(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	if widgets == nil {
		widgets = []domain.Widget{}
	}
	a.writeJSON(w, http.StatusOK, widgets)
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func (a *API) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.log.Error("encoding response", "error", err)
	}
}

// writeError maps the error taxonomy onto status codes: not found -> 404,
// unsupported operation -> 405, anything else -> 500. Debug mode leaks the
// error text; production responses stay opaque.
func (a *API) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrNotSupported):
		status = http.StatusMethodNotAllowed
	}

	message := http.StatusText(status)
	if a.debug || status != http.StatusInternalServerError {
		message = err.Error()
	}
	if status == http.StatusInternalServerError {
		a.log.Error("request failed", "error", err)
	}
	a.writeJSON(w, status, map[string]string{"error": message})
}
