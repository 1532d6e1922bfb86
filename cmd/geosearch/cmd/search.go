package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/output"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/search"
)

type searchFlags struct {
	limit      int
	format     string
	organisms  []string
	techType   string
	from       string
	to         string
	minSamples int
	noSemantic bool
	noLexical  bool
	noMesh     bool
}

func newSearchCmd() *cobra.Command {
	var f searchFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed GEO series",
		Long: `Search indexed GEO series with hybrid retrieval.

The query is expanded with matching MeSH terms for semantic retrieval,
searched verbatim for keyword retrieval, and the two ranked lists are
fused with reciprocal rank fusion. Series tagged with the query's MeSH
terms get a small boost.`,
		Example: `  geosearch search "breast cancer"
  geosearch search "t cell exhaustion" --organism "Homo sapiens" --tech-type rna-seq
  geosearch search "liver fibrosis" --from 2018-01-01 --min-samples 10 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			opts, err := f.options(cmd)
			if err != nil {
				return err
			}
			return runSearch(cmd.Context(), cmd, query, opts, f.format)
		},
	}

	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "Maximum results (default: search.final_top_k)")
	cmd.Flags().StringVar(&f.format, "format", "text", "Output format: text or json")
	cmd.Flags().StringSliceVar(&f.organisms, "organism", nil, "Keep series from any of these organisms (repeatable)")
	cmd.Flags().StringVar(&f.techType, "tech-type", "", "Keep series with this technology type (e.g. rna-seq, microarray)")
	cmd.Flags().StringVar(&f.from, "from", "", "Keep series submitted on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "Keep series submitted on or before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.minSamples, "min-samples", 0, "Keep series with at least this many samples")
	cmd.Flags().BoolVar(&f.noSemantic, "no-semantic", false, "Disable semantic retrieval")
	cmd.Flags().BoolVar(&f.noLexical, "no-lexical", false, "Disable keyword retrieval")
	cmd.Flags().BoolVar(&f.noMesh, "no-mesh", false, "Disable MeSH expansion and boosting")

	return cmd
}

// options converts flags to search options. Filters are validated here so
// bad input fails before any store is opened.
func (f *searchFlags) options(cmd *cobra.Command) (search.SearchOptions, error) {
	if f.format != "text" && f.format != "json" {
		return search.SearchOptions{}, fmt.Errorf("invalid format %q: use text or json", f.format)
	}
	if f.limit < 0 {
		return search.SearchOptions{}, fmt.Errorf("limit must be positive")
	}

	opts := search.SearchOptions{
		UseSemantic: !f.noSemantic,
		UseLexical:  !f.noLexical,
		UseMesh:     !f.noMesh,
		TopK:        f.limit,
	}
	opts.Filters.Organisms = f.organisms
	opts.Filters.TechType = f.techType

	from, err := search.ParseDate(f.from)
	if err != nil {
		return opts, err
	}
	to, err := search.ParseDate(f.to)
	if err != nil {
		return opts, err
	}
	if from != nil || to != nil {
		opts.Filters.DateRange = &search.DateRange{Start: from, End: to}
	}

	if cmd.Flags().Changed("min-samples") {
		n := f.minSamples
		opts.Filters.MinSamples = &n
	}

	return opts, opts.Filters.Validate()
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts search.SearchOptions, format string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg, appOptions{indexes: true})
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.engine()
	if err != nil {
		return err
	}

	resp, err := engine.Search(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := output.NewAuto(cmd.OutOrStdout())
	if format == "json" {
		return out.JSON(resp)
	}
	out.SearchResults(resp)
	return nil
}
