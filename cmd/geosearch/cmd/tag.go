package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/mesh"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/output"
)

func newTagCmd() *cobra.Command {
	var (
		threshold float64
		overwrite bool
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "tag [accession...]",
		Short: "Annotate stored series with MeSH terms",
		Long: `Match the loaded MeSH dictionary against series titles, summaries and
overall designs, and store the terms found as automatic associations.

Without arguments every stored series is tagged. Terms curated manually
for a series are never replaced.`,
		Example: `  geosearch tag
  geosearch tag GSE10 GSE11 --threshold 0.5
  geosearch tag --overwrite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.NewAuto(cmd.OutOrStdout())
			ctx := cmd.Context()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = cfg.Mesh.MatchThreshold
			}
			if !cmd.Flags().Changed("overwrite") {
				overwrite = cfg.Tagging.Overwrite
			}
			if workers <= 0 {
				workers = cfg.Tagging.Workers
			}

			a, err := openApp(ctx, cfg, appOptions{writer: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.terms.Available() {
				return fmt.Errorf("MeSH dictionary not loaded: run 'geosearch mesh load <file>' or 'geosearch mesh sample'")
			}

			tagger, err := mesh.NewTagger(a.terms, a.store, matcherConfig(cfg), workers)
			if err != nil {
				return err
			}
			defer tagger.Release()

			start := time.Now()
			var n int
			if len(args) > 0 {
				n, err = tagger.TagBatch(ctx, args, threshold, overwrite)
			} else {
				n, err = tagger.TagAll(ctx, threshold, overwrite)
			}
			if err != nil {
				return fmt.Errorf("tagging failed: %w", err)
			}

			out.Successf("Wrote %d MeSH association(s) in %s", n, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum match confidence (default: mesh.match_threshold)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing automatic associations")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent matchers (default: tagging.workers)")

	return cmd
}
