package cmd

import (
	"github.com/spf13/cobra"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/index"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/output"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show corpus, index and dictionary status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := output.NewAuto(cmd.OutOrStdout())

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(ctx, cfg, appOptions{indexes: true})
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.store.Stats(ctx)
			if err != nil {
				return err
			}

			out.Header("GEOSearch Status")
			out.KeyValue("Data dir", cfg.DataDir)
			out.KeyValue("Storage", cfg.Storage.Backend)
			out.KeyValue("Series", stats.Series)
			out.KeyValue("Terms", stats.Terms)
			out.KeyValue("Associations", stats.Associations)
			out.Newline()

			out.Header("Indexes")
			if ls := a.lexical.Stats(); ls != nil {
				out.KeyValue("Lexical", ls.DocumentCount)
			}
			out.KeyValue("Lexical backend", cfg.Search.LexicalBackend)
			out.KeyValue("Vectors", a.vectors.Count())
			if comp, ok := a.vectors.(store.Compactor); ok {
				out.KeyValue("Orphan nodes", comp.Orphans())
			}
			out.KeyValue("Vector backend", cfg.Storage.VectorBackend)
			out.KeyValue("Embedder", a.embedder.ModelName())
			out.Newline()

			idx := a.terms.Current()
			if idx.Empty() {
				out.Warning("MeSH dictionary not loaded, query expansion is disabled")
			} else {
				out.KeyValue("MeSH terms", idx.TermCount())
			}

			consistent, err := index.NewConsistencyChecker(a.store, a.lexical, a.vectors).QuickCheck(ctx)
			if err != nil {
				return err
			}
			if consistent {
				out.Success("Indexes match the record store")
			} else {
				out.Warning("Index counts differ from the record store (run 'geosearch index --check')")
			}
			return nil
		},
	}
}
