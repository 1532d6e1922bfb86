package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/index"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/mesh"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/output"
)

type indexFlags struct {
	rebuild   bool
	batchSize int
	check     bool
	repair    bool
	tag       bool
}

func newIndexCmd() *cobra.Command {
	var f indexFlags

	cmd := &cobra.Command{
		Use:   "index [series.jsonl[.gz]]",
		Short: "Store and index GEO series",
		Long: `Store GEO series records and build the keyword and semantic indexes.

Input is JSON Lines, one series per line, optionally gzip-compressed.
Records with an accession already stored are replaced.

With --check, no input is read: the record store, lexical index and
vector index are compared and inconsistencies are reported.`,
		Example: `  geosearch index series.jsonl.gz
  geosearch index series.jsonl --rebuild --tag
  geosearch index --check --repair`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if f.check {
				return runIndexCheck(ctx, cmd, f.repair)
			}
			if len(args) == 0 {
				return fmt.Errorf("an input file is required (or use --check)")
			}
			return runIndex(ctx, cmd, args[0], f)
		},
	}

	cmd.Flags().BoolVar(&f.rebuild, "rebuild", false, "Discard existing lexical and vector indexes first")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "Embedding batch size (default: embeddings.batch_size)")
	cmd.Flags().BoolVar(&f.check, "check", false, "Check index consistency instead of indexing")
	cmd.Flags().BoolVar(&f.repair, "repair", false, "With --check, remove orphaned index entries")
	cmd.Flags().BoolVar(&f.tag, "tag", false, "Tag the indexed series with MeSH terms afterwards")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, f indexFlags) error {
	out := output.NewAuto(cmd.OutOrStdout())

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	read, err := index.ReadFile(path)
	if err != nil {
		return err
	}
	if read.Skipped > 0 {
		out.Warningf("Skipped %d malformed line(s)", read.Skipped)
	}
	if len(read.Series) == 0 {
		out.Warning("No series found in input")
		return nil
	}
	out.Statusf("📥", "Read %d series from %s", len(read.Series), path)

	a, err := openApp(ctx, cfg, appOptions{writer: true, indexes: true, rebuild: f.rebuild})
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := index.NewRunner(index.RunnerDependencies{
		Store:    a.store,
		Lexical:  a.lexical,
		Vectors:  a.vectors,
		Embedder: a.embedder,
		Progress: newProgressReporter(out).report,
	})
	if err != nil {
		return err
	}

	batchSize := f.batchSize
	if batchSize <= 0 {
		batchSize = cfg.Embeddings.BatchSize
	}
	result, err := runner.Run(ctx, read.Series, index.RunnerConfig{
		BatchSize:   batchSize,
		LexicalPath: cfg.LexicalIndexPath(),
		VectorPath:  cfg.VectorIndexPath(),
		Compaction:  compactionPolicy(cfg),
	})
	if err != nil {
		return err
	}

	out.Newline()
	out.Successf("Indexed %d series in %s", result.Series, result.Duration.Round(time.Millisecond))
	out.KeyValue("Lexical", result.Lexical)
	out.KeyValue("Vectors", result.Vectors)
	if result.Empty > 0 {
		out.KeyValue("No text", result.Empty)
	}
	if result.Compacted > 0 {
		out.KeyValue("Compacted", result.Compacted)
	}

	if !f.tag {
		return nil
	}
	if !a.terms.Available() {
		out.Warning("MeSH dictionary not loaded, skipping tagging (run 'geosearch mesh load')")
		return nil
	}
	accessions := make([]string, len(read.Series))
	for i, s := range read.Series {
		accessions[i] = s.Accession
	}
	tagger, err := mesh.NewTagger(a.terms, a.store, matcherConfig(cfg), cfg.Tagging.Workers)
	if err != nil {
		return err
	}
	defer tagger.Release()

	n, err := tagger.TagBatch(ctx, accessions, cfg.Mesh.MatchThreshold, cfg.Tagging.Overwrite)
	if err != nil {
		return fmt.Errorf("tagging failed: %w", err)
	}
	out.Successf("Tagged %d series with %d MeSH association(s)", len(accessions), n)
	return nil
}

func runIndexCheck(ctx context.Context, cmd *cobra.Command, repair bool) error {
	out := output.NewAuto(cmd.OutOrStdout())

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg, appOptions{writer: repair, indexes: true})
	if err != nil {
		return err
	}
	defer a.Close()

	checker := index.NewConsistencyChecker(a.store, a.lexical, a.vectors)
	result, err := checker.Check(ctx)
	if err != nil {
		return err
	}

	out.Header("Index Consistency")
	out.KeyValue("Series checked", result.Checked)
	for _, t := range []index.InconsistencyType{
		index.InconsistencyOrphanLexical,
		index.InconsistencyOrphanVector,
		index.InconsistencyMissingLexical,
		index.InconsistencyMissingVector,
	} {
		out.KeyValue(t.String(), result.Count(t))
	}
	out.KeyValue("orphan_nodes", result.OrphanNodes)
	out.Newline()

	if len(result.Inconsistencies) == 0 && result.OrphanNodes == 0 {
		out.Success("Indexes are consistent")
		return nil
	}
	if !repair {
		if len(result.Inconsistencies) > 0 {
			out.Warningf("%d inconsistencies found (use --repair to remove orphans)", len(result.Inconsistencies))
		}
		if result.OrphanNodes > 0 {
			out.Warningf("%d orphaned vector nodes (use --repair to compact)", result.OrphanNodes)
		}
		return nil
	}

	if err := checker.Repair(ctx, result.Inconsistencies); err != nil {
		return err
	}
	if err := a.vectors.Save(cfg.VectorIndexPath()); err != nil {
		return fmt.Errorf("failed to save vector index: %w", err)
	}
	if missing := result.Count(index.InconsistencyMissingLexical) + result.Count(index.InconsistencyMissingVector); missing > 0 {
		out.Warningf("%d missing entries need 'geosearch index --rebuild'", missing)
	}
	out.Success("Orphaned entries removed")
	return nil
}

// progressReporter serializes runner progress onto one writer and only
// redraws when a stage crosses a ten percent step.
type progressReporter struct {
	mu   sync.Mutex
	out  *output.Writer
	last map[string]int
}

func newProgressReporter(out *output.Writer) *progressReporter {
	return &progressReporter{out: out, last: make(map[string]int)}
}

func (p *progressReporter) report(stage string, done, total int) {
	if total <= 0 {
		return
	}
	step := done * 10 / total

	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.last[stage]; ok && step == prev {
		return
	}
	p.last[stage] = step
	p.out.Progress(done, total, stageLabel(stage))
}

func stageLabel(stage string) string {
	switch stage {
	case index.StageSave:
		return "saving records"
	case index.StageLexical:
		return "keyword index"
	case index.StageEmbed:
		return "embeddings"
	default:
		return stage
	}
}
