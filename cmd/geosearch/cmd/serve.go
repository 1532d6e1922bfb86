package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/api"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/logging"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP search API",
		Long: `Serve dataset search over HTTP.

Endpoints:
  GET /api/v1/search?q=...        hybrid search (filters: organism, tech_type,
                                  from, to, min_samples; toggles: semantic,
                                  lexical, mesh; top_k)
  GET /api/v1/series/{accession}  one series with its MeSH terms
  GET /api/v1/mesh/expand?q=...   query expansion
  GET /healthz                    liveness and dictionary state
  GET /metrics                    Prometheus metrics`,
		Example: `  geosearch serve
  geosearch serve --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.http_addr)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, addr string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.HTTPAddr
	}

	if !debugMode {
		cleanup, err := logging.SetupDefault(logging.Config{
			Level:         cfg.Server.LogLevel,
			Format:        "json",
			WriteToStderr: true,
		})
		if err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}
		defer cleanup()
	}

	a, err := openApp(ctx, cfg, appOptions{indexes: true})
	if err != nil {
		return err
	}
	defer a.Close()
	a.watchDictionary(ctx)

	engine, err := a.engine()
	if err != nil {
		return err
	}

	srv := api.NewServer(engine, a.store, a.terms, api.Config{
		DefaultTopK: cfg.Search.FinalTopK,
		Expander:    expanderConfig(cfg),
	})
	fmt.Fprintf(cmd.ErrOrStderr(), "GEOSearch API listening on %s\n", addr)
	return srv.ListenAndServe(ctx, addr)
}

func newMCPCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve dataset search to AI assistants over MCP",
		Long: `Start a Model Context Protocol server exposing the search_datasets,
get_dataset and expand_query tools, plus status and dictionary resources.

stdout carries JSON-RPC only: logs go to ~/.geosearch/logs/geosearch.log.`,
		Example: `  geosearch mcp
  geosearch mcp --config-dir ~/geo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMCP(ctx, cmd, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport (default: server.transport)")

	return cmd
}

func runMCP(ctx context.Context, cmd *cobra.Command, transport string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if transport == "" {
		transport = cfg.Server.Transport
	}

	// Nothing may reach stdout before the transport starts.
	if !debugMode {
		cleanup, err := logging.SetupServerMode(cfg.Server.LogLevel, "")
		if err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}
		defer cleanup()
	}

	a, err := openApp(ctx, cfg, appOptions{indexes: true})
	if err != nil {
		return err
	}
	defer a.Close()
	a.watchDictionary(ctx)

	engine, err := a.engine()
	if err != nil {
		return err
	}

	srv, err := mcp.NewServer(engine, a.store, a.terms, expanderConfig(cfg))
	if err != nil {
		return err
	}
	return srv.Serve(ctx, strings.ToLower(transport))
}
