// Package cmd provides the CLI commands for GEOSearch.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/config"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/logging"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/profiling"
	"github.com/raghaviCJanaswamy/GEOSearch/pkg/version"
)

// Debug logging and profiling flags
var (
	debugMode      bool
	loggingCleanup func()

	profileOpts    profiling.Options
	profileSession *profiling.Session
)

// NewRootCmd creates the root command for the geosearch CLI.
func NewRootCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "geosearch",
		Short: "Hybrid search over GEO gene expression datasets",
		Long: `GEOSearch finds GEO series by combining semantic (embedding) retrieval,
keyword (BM25) retrieval and MeSH controlled vocabulary expansion.

Typical workflow:
  geosearch mesh sample            # or: geosearch mesh load desc2025.xml
  geosearch index series.jsonl.gz  # store and index GEO series
  geosearch tag                    # annotate series with MeSH terms
  geosearch search "breast cancer rna-seq"`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("geosearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory containing .geosearch.yaml and .env")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.geosearch/logs/")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")
	_ = cmd.PersistentFlags().MarkHidden("profile-trace")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newTagCmd())
	cmd.AddCommand(newMeshCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts any requested profiles and enables debug
// logging when --debug is set.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if profileOpts.Enabled() {
		s, err := profiling.Start(profileOpts)
		if err != nil {
			return err
		}
		profileSession = s
	}

	if !debugMode {
		return nil
	}
	cleanup, err := logging.SetupDefault(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Info("debug_logging_enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Short()))
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profileSession != nil {
		err = profileSession.Stop()
		slog.Debug("profiling_stopped",
			slog.String("heap_in_use", profiling.FormatBytes(profiling.HeapInUse())))
		profileSession = nil
	}

	if loggingCleanup != nil {
		slog.Info("debug_logging_stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// loadConfig loads configuration for the --config-dir of cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, err := cmd.Flags().GetString("config-dir")
	if err != nil || dir == "" {
		dir = "."
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
