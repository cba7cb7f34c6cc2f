// Command gopages runs the page engine: an HTTP server over the configured
// stores, plus a one-shot render mode for scripting and debugging.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	pages "github.com/goliatone/go-pages"
)

var (
	configPath string
	addr       string
	format     string
	template   string
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:           "gopages",
		Short:         "Block-based page rendering engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug rendering (inline block errors)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the rendering API over HTTP",
		RunE:  runServe,
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address, overrides the config value")

	render := &cobra.Command{
		Use:   "render <store/path>",
		Short: "Render one page to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  runRender,
	}
	render.Flags().StringVarP(&format, "format", "f", "html", "output format: html, json or css")
	render.Flags().StringVarP(&template, "template", "t", "", `template override, "none" disables layering`)

	root.AddCommand(serve, render)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadApp() (*pages.App, error) {
	cfg, err := pages.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Debug = true
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	return pages.New(cfg)
}

func runServe(cmd *cobra.Command, _ []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.ListenAndServe(ctx)
}

func runRender(cmd *cobra.Command, args []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}

	rendered, err := app.RenderPage(context.Background(), args[0], nil, template)
	if err != nil {
		return err
	}

	switch format {
	case "html":
		fmt.Fprint(cmd.OutOrStdout(), rendered.HTML())
	case "css":
		fmt.Fprint(cmd.OutOrStdout(), rendered.CSS())
	case "json":
		raw, err := json.MarshalIndent(rendered.Document(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}
