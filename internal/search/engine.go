package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	geoerrors "github.com/raghaviCJanaswamy/GEOSearch/internal/errors"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/mesh"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/metrics"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// errNotConfigured marks a source that was requested but has no retriever.
var errNotConfigured = errors.New("retriever not configured")

// EngineConfig holds the fusion constants. It is read-only once passed to
// NewEngine.
type EngineConfig struct {
	SemanticTopK int
	LexicalTopK  int
	FinalTopK    int

	// RRFK is the RRF smoothing constant.
	RRFK int

	// BoostPerTerm is added per matched term association, up to BoostCap.
	BoostPerTerm float64
	BoostCap     float64

	// CandidateMultiplier × top_k candidates are fetched and filtered.
	CandidateMultiplier int

	// RetrievalTimeout bounds each source call (0 = caller deadline only).
	RetrievalTimeout time.Duration

	// SnippetLength bounds result snippets.
	SnippetLength int

	Expander mesh.ExpanderConfig
}

// DefaultEngineConfig returns the default constants.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SemanticTopK:        100,
		LexicalTopK:         100,
		FinalTopK:           50,
		RRFK:                DefaultRRFConstant,
		BoostPerTerm:        0.1,
		BoostCap:            0.5,
		CandidateMultiplier: 2,
		RetrievalTimeout:    10 * time.Second,
		SnippetLength:       DefaultSnippetLength,
		Expander:            mesh.DefaultExpanderConfig(),
	}
}

// Engine runs hybrid searches. It is safe for concurrent use.
type Engine struct {
	records  RecordStore
	semantic SemanticRetriever
	lexical  LexicalRetriever
	terms    *mesh.Registry
	fusion   *RRFFusion
	config   EngineConfig
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSemantic sets the semantic retriever.
func WithSemantic(r SemanticRetriever) EngineOption {
	return func(e *Engine) { e.semantic = r }
}

// WithLexical sets the lexical retriever.
func WithLexical(r LexicalRetriever) EngineOption {
	return func(e *Engine) { e.lexical = r }
}

// WithTermRegistry sets the source of TermIndex snapshots used for query
// expansion, boosting and evidence.
func WithTermRegistry(reg *mesh.Registry) EngineOption {
	return func(e *Engine) { e.terms = reg }
}

// NewEngine creates a search engine over records.
func NewEngine(records RecordStore, config EngineConfig, opts ...EngineOption) (*Engine, error) {
	if records == nil {
		return nil, fmt.Errorf("record store: %w", ErrNilDependency)
	}

	defaults := DefaultEngineConfig()
	if config.FinalTopK <= 0 {
		config.FinalTopK = defaults.FinalTopK
	}
	if config.CandidateMultiplier <= 0 {
		config.CandidateMultiplier = defaults.CandidateMultiplier
	}
	if config.SnippetLength <= 0 {
		config.SnippetLength = defaults.SnippetLength
	}

	e := &Engine{
		records: records,
		fusion:  NewRRFFusionWithK(config.RRFK),
		config:  config,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine constants.
func (e *Engine) Config() EngineConfig {
	return e.config
}

// snapshot returns the current TermIndex, or nil without a dictionary.
func (e *Engine) snapshot() *mesh.TermIndex {
	if e.terms == nil {
		return nil
	}
	idx := e.terms.Current()
	if idx == nil || idx.Empty() {
		return nil
	}
	return idx
}

// Search ranks series against query.
//
// Invalid filters and an already expired context fail before any retrieval.
// A failing source degrades to the other; both failing yields an empty,
// successful response.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	start := time.Now()

	if err := opts.Filters.Validate(); err != nil {
		metrics.ObserveSearch(metrics.OutcomeInvalid, time.Since(start))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		metrics.ObserveSearch(metrics.OutcomeError, time.Since(start))
		return nil, err
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = e.config.FinalTopK
	}

	idx := e.snapshot()
	resp := &SearchResponse{
		Results: []*SearchResult{},
		Metadata: SearchMetadata{
			RequestID:           uuid.NewString(),
			Query:               query,
			ExpandedQuery:       query,
			MatchedTerms:        []*store.Term{},
			ExpansionTokens:     []string{},
			DictionaryAvailable: idx != nil,
			Filters:             opts.Filters,
		},
	}
	meta := &resp.Metadata

	if strings.TrimSpace(query) == "" {
		meta.DurationMS = durationMS(time.Since(start))
		metrics.ObserveSearch(metrics.OutcomeOK, time.Since(start))
		return resp, nil
	}

	// Step 1: expansion against one snapshot for the whole request.
	var matchedIDs []string
	if opts.UseMesh {
		if idx == nil {
			err := geoerrors.DictionaryUnavailable(nil)
			slog.Warn("query_expansion_skipped",
				slog.String("request_id", meta.RequestID),
				slog.String("code", err.Code))
		} else {
			exp := mesh.NewExpander(idx, e.config.Expander).ExpandDefault(query)
			meta.ExpandedQuery = exp.ExpandedQuery
			meta.MatchedTerms = exp.MatchedTerms
			meta.ExpansionTokens = exp.ExpansionTokens
			matchedIDs = exp.MatchedTermIDs()
			slog.Debug("query_expanded",
				slog.String("request_id", meta.RequestID),
				slog.String("expanded", exp.ExpandedQuery),
				slog.Int("matched_terms", len(matchedIDs)))
		}
	}

	// Steps 2-3: concurrent retrieval.
	semantic, lexical, degraded := e.retrieve(ctx, query, meta.ExpandedQuery, opts)
	meta.SemanticCount = len(semantic)
	meta.LexicalCount = len(lexical)
	meta.Degraded = degraded

	// Step 4: fusion.
	items := e.fusion.Fuse(semantic, lexical)
	meta.CandidateCount = len(items)

	// Step 5: term boost.
	if len(matchedIDs) > 0 && len(items) > 0 {
		e.boost(ctx, meta.RequestID, items, matchedIDs)
	}

	// Step 6-7: rank and keep the candidate pool.
	Rank(items)
	if limit := e.config.CandidateMultiplier * topK; len(items) > limit {
		items = items[:limit]
	}

	results, err := e.collect(ctx, query, items, opts.Filters, topK)
	if err != nil {
		metrics.ObserveSearch(metrics.OutcomeError, time.Since(start))
		return nil, err
	}

	// Step 9: evidence.
	if len(matchedIDs) > 0 && len(results) > 0 {
		e.attachEvidence(ctx, meta.RequestID, results, matchedIDs, idx)
	}

	resp.Results = results
	meta.TotalResults = len(results)
	elapsed := time.Since(start)
	meta.DurationMS = durationMS(elapsed)

	outcome := metrics.OutcomeOK
	if len(degraded) > 0 {
		outcome = metrics.OutcomeDegraded
	}
	metrics.ObserveSearch(outcome, elapsed)

	slog.Info("search_completed",
		slog.String("request_id", meta.RequestID),
		slog.String("query", query),
		slog.Int("semantic", meta.SemanticCount),
		slog.Int("lexical", meta.LexicalCount),
		slog.Int("candidates", meta.CandidateCount),
		slog.Int("results", meta.TotalResults),
		slog.Any("degraded", degraded),
		slog.Duration("duration", elapsed))

	return resp, nil
}

// retrieve runs the enabled sources concurrently. Failures are logged and
// reported as degraded sources; they never fail the search.
func (e *Engine) retrieve(ctx context.Context, query, expanded string, opts SearchOptions) (semantic, lexical []Hit, degraded []string) {
	g, gctx := errgroup.WithContext(ctx)

	var semErr, lexErr error

	if opts.UseSemantic {
		g.Go(func() error {
			if e.semantic == nil {
				semErr = errNotConfigured
				return nil
			}
			rctx, cancel := e.retrievalContext(gctx)
			defer cancel()
			semantic, semErr = e.semantic.SearchSemantic(rctx, expanded, e.config.SemanticTopK)
			return nil // Don't fail the group
		})
	}

	if opts.UseLexical {
		g.Go(func() error {
			if e.lexical == nil {
				lexErr = errNotConfigured
				return nil
			}
			rctx, cancel := e.retrievalContext(gctx)
			defer cancel()
			lexical, lexErr = e.lexical.SearchLexical(rctx, query, opts.Filters, e.config.LexicalTopK)
			return nil
		})
	}

	_ = g.Wait()

	if semErr != nil {
		semantic = nil
		degraded = append(degraded, SourceSemantic)
		e.logRetrievalFailure(SourceSemantic, semErr)
	} else if opts.UseSemantic {
		metrics.ObserveRetrieval(SourceSemantic, len(semantic))
	}

	if lexErr != nil {
		lexical = nil
		degraded = append(degraded, SourceLexical)
		e.logRetrievalFailure(SourceLexical, lexErr)
	} else if opts.UseLexical {
		metrics.ObserveRetrieval(SourceLexical, len(lexical))
	}

	return semantic, lexical, degraded
}

func (e *Engine) retrievalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.RetrievalTimeout > 0 {
		return context.WithTimeout(ctx, e.config.RetrievalTimeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) logRetrievalFailure(source string, cause error) {
	metrics.RetrievalFailed(source)
	err := geoerrors.RetrievalFailure(source, cause)
	slog.Warn("retrieval_failed",
		slog.String("source", source),
		slog.String("code", err.Code),
		slog.String("error", cause.Error()))
}

// boost adds the capped association boost. A failed lookup leaves every
// boost at zero.
func (e *Engine) boost(ctx context.Context, requestID string, items []*FusedItem, termIDs []string) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}

	counts, err := e.records.CountAssociations(ctx, ids, termIDs)
	if err != nil {
		gerr := geoerrors.AssociationLookupFailure(err)
		slog.Warn("term_boost_skipped",
			slog.String("request_id", requestID),
			slog.String("code", gerr.Code),
			slog.String("error", err.Error()))
		return
	}
	ApplyBoost(items, counts, e.config.BoostPerTerm, e.config.BoostCap)
}

// collect fetches records for the candidate pool, filters them in rank
// order and truncates to topK. Filtering never changes scores.
func (e *Engine) collect(ctx context.Context, query string, items []*FusedItem, filters Filters, topK int) ([]*SearchResult, error) {
	results := []*SearchResult{}
	if len(items) == 0 {
		return results, nil
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}

	records, err := e.records.GetSeries(ctx, ids)
	if err != nil {
		return nil, geoerrors.DatabaseError("failed to fetch series records", err)
	}

	for _, it := range items {
		s, ok := records[it.ID]
		if !ok || !filters.Matches(s) {
			continue
		}
		results = append(results, &SearchResult{
			Accession:    it.ID,
			Score:        it.Score,
			RRFScore:     it.RRFScore,
			Boost:        it.Boost,
			SemanticRank: it.SemanticRank,
			LexicalRank:  it.LexicalRank,
			Series:       s,
			MatchedTerms: []MatchedTerm{},
			Snippet:      MakeSnippet(s.Summary, query, e.config.SnippetLength),
			GEOURL:       GEOURL(it.ID),
		})
		if len(results) >= topK {
			break
		}
	}
	return results, nil
}

// attachEvidence lists each result's associations with the matched terms.
func (e *Engine) attachEvidence(ctx context.Context, requestID string, results []*SearchResult, termIDs []string, idx *mesh.TermIndex) {
	accessions := make([]string, len(results))
	byAccession := make(map[string]*SearchResult, len(results))
	for i, r := range results {
		accessions[i] = r.Accession
		byAccession[r.Accession] = r
	}

	assocs, err := e.records.GetAssociations(ctx, accessions, termIDs)
	if err != nil {
		gerr := geoerrors.AssociationLookupFailure(err)
		slog.Warn("term_evidence_skipped",
			slog.String("request_id", requestID),
			slog.String("code", gerr.Code),
			slog.String("error", err.Error()))
		return
	}

	for _, a := range assocs {
		r, ok := byAccession[a.Accession]
		if !ok {
			continue
		}
		name := a.TermID
		if t := idx.Term(a.TermID); t != nil {
			name = t.PreferredName
		}
		r.MatchedTerms = append(r.MatchedTerms, MatchedTerm{
			TermID:        a.TermID,
			PreferredName: name,
			Confidence:    a.Confidence,
			Source:        a.Source,
		})
	}
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
