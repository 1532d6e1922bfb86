package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/config"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/mesh"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/output"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

func newMeshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mesh",
		Short: "Manage the MeSH dictionary",
		Long: `Load, inspect and try out the MeSH controlled vocabulary used for
query expansion and series tagging.

Terms are stored in the record store unless mesh.dictionary_path points
at a descriptor file, in which case that file is read directly.`,
	}

	cmd.AddCommand(newMeshLoadCmd())
	cmd.AddCommand(newMeshSampleCmd())
	cmd.AddCommand(newMeshInfoCmd())
	cmd.AddCommand(newMeshExpandCmd())

	return cmd
}

func newMeshLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Load MeSH descriptors from XML or JSON",
		Long: `Load MeSH descriptors into the record store.

Accepts the NLM descriptor XML (desc20XX.xml) or a JSON
array of {"id", "preferred_name", "synonyms", "tree_numbers"} objects.
Existing terms with the same ID are replaced.`,
		Example: `  geosearch mesh load desc2025.xml
  geosearch mesh load terms.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			terms, err := mesh.LoadFile(args[0])
			if err != nil {
				return err
			}
			return saveTerms(cmd, terms, start)
		},
	}
}

func newMeshSampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Load a small built-in MeSH sample",
		Long:  `Load a handful of common disease and tissue descriptors for trying GEOSearch without the full MeSH release.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return saveTerms(cmd, mesh.SampleTerms(), time.Now())
		},
	}
}

func saveTerms(cmd *cobra.Command, terms []*store.Term, start time.Time) error {
	out := output.NewAuto(cmd.OutOrStdout())
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(terms) == 0 {
		out.Warning("No terms found")
		return nil
	}

	a, err := openApp(ctx, cfg, appOptions{writer: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.SaveTerms(ctx, terms); err != nil {
		return fmt.Errorf("failed to save terms: %w", err)
	}

	out.Successf("Loaded %d MeSH terms in %s", len(terms), time.Since(start).Round(time.Millisecond))
	if cfg.Mesh.DictionaryPath != "" {
		out.Warningf("mesh.dictionary_path is set, searches read %s instead of the stored terms", cfg.Mesh.DictionaryPath)
	}
	out.Status("💡", "Run 'geosearch tag' to annotate stored series")
	return nil
}

func newMeshInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the loaded dictionary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.NewAuto(cmd.OutOrStdout())

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			idx := a.terms.Current()
			out.Header("MeSH Dictionary")
			out.KeyValue("Source", dictionarySource(cfg))
			if idx.Empty() {
				out.Warning("No terms loaded")
				return nil
			}
			out.KeyValue("Terms", idx.TermCount())
			out.KeyValue("Surface forms", idx.Len())
			out.KeyValue("Min phrase", idx.MinPhraseLength())
			out.KeyValue("Built", idx.BuiltAt().Format(time.RFC3339))
			return nil
		},
	}
}

func dictionarySource(cfg *config.Config) string {
	if cfg.Mesh.DictionaryPath != "" {
		return cfg.Mesh.DictionaryPath
	}
	return "record store (" + cfg.Storage.Backend + ")"
}

func newMeshExpandCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "expand <query>",
		Short: "Show how a query is expanded with MeSH terms",
		Example: `  geosearch mesh expand "breast cancer"
  geosearch mesh expand "lung tumor" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("invalid format %q: use text or json", format)
			}
			exp, err := expandQuery(cmd.Context(), cmd, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := output.NewAuto(cmd.OutOrStdout())
			if format == "json" {
				return out.JSON(exp)
			}
			out.Expansion(exp)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}

func expandQuery(ctx context.Context, cmd *cobra.Command, query string) (mesh.Expansion, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return mesh.Expansion{}, err
	}
	a, err := openApp(ctx, cfg, appOptions{})
	if err != nil {
		return mesh.Expansion{}, err
	}
	defer a.Close()

	if !a.terms.Available() {
		return mesh.Expansion{}, fmt.Errorf("MeSH dictionary not loaded: run 'geosearch mesh load <file>' or 'geosearch mesh sample'")
	}
	return mesh.NewExpander(a.terms.Current(), expanderConfig(cfg)).ExpandDefault(query), nil
}
