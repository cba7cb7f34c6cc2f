// Package pages assembles the block-based page engine: stores resolve page
// definitions and widget fragments, the renderer folds a page through its
// template chain, and the HTTP API exposes both.
package pages

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-pages/internal/httpapi"
	"github.com/goliatone/go-pages/internal/logging"
	"github.com/goliatone/go-pages/internal/logging/gologger"
	"github.com/goliatone/go-pages/internal/runtimeconfig"
	"github.com/goliatone/go-pages/internal/stores/codestore"
	"github.com/goliatone/go-pages/internal/stores/dbstore"
	"github.com/goliatone/go-pages/internal/stores/filestore"
	"github.com/goliatone/go-pages/internal/stores/httpstore"
	"github.com/goliatone/go-pages/render"
	"github.com/goliatone/go-pages/store"
)

// App is the composed engine. Construction wires every configured store into
// the registry and fails fast on any misconfiguration.
type App struct {
	cfg      Config
	registry *store.Registry
	renderer *render.Renderer
	api      *httpapi.API
	provider logging.Provider
	log      logging.Logger
}

// New builds the engine from a validated configuration.
func New(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := gologger.NewProvider(gologger.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return nil, err
	}

	registry := store.NewRegistry()
	for _, sc := range cfg.Stores {
		s, err := buildStore(sc, provider)
		if err != nil {
			return nil, err
		}
		registry.Register(s)
	}

	renderer, err := render.New(registry, render.Options{
		Debug:             cfg.Debug,
		ETagSalt:          cfg.Server.ETagSalt,
		MaxTemplateDepth:  cfg.Render.MaxTemplateDepth,
		TemplateCacheSize: cfg.Render.TemplateCache,
		Logger:            provider,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		registry: registry,
		renderer: renderer,
		api:      httpapi.New(registry, renderer, cfg.Debug, provider),
		provider: provider,
		log:      logging.ModuleLogger(provider, logging.RootModule),
	}, nil
}

func buildStore(sc StoreConfig, provider logging.Provider) (store.Store, error) {
	switch sc.Type {
	case runtimeconfig.StoreTypeFile:
		return filestore.New(sc, provider)
	case runtimeconfig.StoreTypeHTTP:
		return httpstore.New(sc, provider)
	case runtimeconfig.StoreTypeDB:
		return dbstore.New(sc, provider)
	case runtimeconfig.StoreTypeCode:
		return codestore.New(sc, provider)
	default:
		return nil, goerrors.New(
			fmt.Sprintf("store %q: unknown type %q", sc.Name, sc.Type),
			goerrors.CategoryValidation)
	}
}

// Registry exposes the store registry for embedding hosts.
func (a *App) Registry() *store.Registry {
	return a.registry
}

// Renderer exposes the renderer for embedding hosts.
func (a *App) Renderer() *render.Renderer {
	return a.renderer
}

// RenderPage renders a store-prefixed path with optional conditional-request
// headers and template override.
func (a *App) RenderPage(ctx context.Context, path string, headers map[string]string, templateOverride string) (*render.RenderedPage, error) {
	return a.renderer.RenderPage(ctx, path, headers, templateOverride)
}

// Handler returns the HTTP surface mounted on a fresh mux.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.api.Routes(mux)
	return mux
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts
// down gracefully.
func (a *App) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.cfg.Server.Addr,
		Handler: a.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", "addr", a.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
