package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/raghaviCJanaswamy/GEOSearch/configs"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/config"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage GEOSearch configuration files.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/geosearch/config.yaml)
  3. Project config (.geosearch.yaml in --config-dir)
  4. .env in --config-dir
  5. Environment variables (GEOSEARCH_*, OPENAI_API_KEY, DATABASE_URL)`,
		Example: `  # Create user config from template
  geosearch config init

  # Show effective configuration
  geosearch config show

  # Print user config file path
  geosearch config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force   bool
		project bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from the template",
		Long: `Create a configuration file from the built-in template.

By default the user config is created at ~/.config/geosearch/config.yaml
(or $XDG_CONFIG_HOME/geosearch/config.yaml). With --project the file is
.geosearch.yaml in --config-dir. An existing file is backed up before
--force overwrites it.`,
		Example: `  geosearch config init
  geosearch config init --project
  geosearch config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.GetUserConfigPath()
			if project {
				dir, _ := cmd.Flags().GetString("config-dir")
				if dir == "" {
					dir = "."
				}
				path = filepath.Join(dir, ".geosearch.yaml")
			}
			return runConfigInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (a backup is kept)")
	cmd.Flags().BoolVar(&project, "project", false, "Create .geosearch.yaml in --config-dir instead")

	return cmd
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("📁", "Location: %s", path)
			out.Status("💡", "Use --force to replace it with the template")
			return nil
		}
		backup, err := config.BackupFile(path)
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
		out.Statusf("💾", "Backup: %s", backup)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Edit the file to customize settings")
	out.Status("", "  2. Run 'geosearch config show' to verify")
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		defaults   bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging every source.

Secrets (postgres_dsn, openai_api_key) are never printed.`,
		Example: `  geosearch config show
  geosearch config show --json
  geosearch config show --defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.NewConfig()
			source := "defaults"
			if !defaults {
				loaded, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				cfg = loaded
				source = "merged (defaults + user + project + .env + env)"
			}
			return printConfig(cmd, cfg, source, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Show built-in defaults only")

	return cmd
}

func printConfig(cmd *cobra.Command, cfg *config.Config, source string, jsonOutput bool) error {
	// Work on a copy so secrets never reach the terminal.
	redacted := *cfg
	if redacted.Storage.PostgresDSN != "" {
		redacted.Storage.PostgresDSN = "<redacted>"
	}
	if redacted.Embeddings.OpenAIAPIKey != "" {
		redacted.Embeddings.OpenAIAPIKey = "<redacted>"
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(redacted)
	}

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("📋", "Source: %s", source)
	out.Newline()
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
