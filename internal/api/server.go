// Package api serves dataset search over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	geoerrors "github.com/raghaviCJanaswamy/GEOSearch/internal/errors"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/mesh"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/metrics"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/search"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
	"github.com/raghaviCJanaswamy/GEOSearch/pkg/version"
)

const (
	maxQueryLength = 1000
	maxTopK        = 500
)

// Searcher runs a hybrid search.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.SearchOptions) (*search.SearchResponse, error)
}

// Records reads series and their term associations.
type Records interface {
	GetSeries(ctx context.Context, accessions []string) (map[string]*store.Series, error)
	GetAssociations(ctx context.Context, accessions, termIDs []string) ([]*store.Association, error)
}

// Server handles the HTTP API.
type Server struct {
	searcher Searcher
	records  Records
	terms    *mesh.Registry
	expander mesh.ExpanderConfig
	finalTop int
}

// Config holds server options.
type Config struct {
	// DefaultTopK is used when a request has no top_k.
	DefaultTopK int
	Expander    mesh.ExpanderConfig
}

// NewServer creates a server. terms may be nil when no dictionary is configured.
func NewServer(searcher Searcher, records Records, terms *mesh.Registry, cfg Config) *Server {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = search.DefaultEngineConfig().FinalTopK
	}
	if cfg.Expander.MaxTerms <= 0 {
		cfg.Expander = mesh.DefaultExpanderConfig()
	}
	return &Server{
		searcher: searcher,
		records:  records,
		terms:    terms,
		expander: cfg.Expander,
		finalTop: cfg.DefaultTopK,
	}
}

// Router returns the route tree with middleware attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/series/{accession}", s.handleSeries)
		r.Get("/mesh/expand", s.handleExpand)
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http_server_started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return geoerrors.NetworkError("http server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("http_server_stopped")
	return nil
}

type healthResponse struct {
	Status              string `json:"status"`
	Version             string `json:"version"`
	DictionaryAvailable bool   `json:"dictionary_available"`
	Terms               int    `json:"terms"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Version: version.Short()}
	if s.terms != nil {
		resp.DictionaryAvailable = s.terms.Available()
		resp.Terms = s.terms.Current().TermCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, r, geoerrors.New(geoerrors.ErrCodeQueryEmpty, "query parameter q is required", nil))
		return
	}
	if len(query) > maxQueryLength {
		writeError(w, r, geoerrors.New(geoerrors.ErrCodeQueryTooLong, "query is too long", nil).
			WithDetail("max_length", strconv.Itoa(maxQueryLength)))
		return
	}

	opts, err := s.searchOptions(q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := s.searcher.Search(r.Context(), query, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp.Metadata.RequestID = firstNonEmpty(middleware.GetReqID(r.Context()), resp.Metadata.RequestID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) searchOptions(q map[string][]string) (search.SearchOptions, error) {
	get := func(key string) string {
		if v := q[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	opts := search.DefaultSearchOptions()
	opts.TopK = s.finalTop

	if v := get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxTopK {
			return opts, geoerrors.New(geoerrors.ErrCodeInvalidInput, "top_k must be between 1 and "+strconv.Itoa(maxTopK), err)
		}
		opts.TopK = n
	}

	for _, o := range q["organism"] {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				opts.Filters.Organisms = append(opts.Filters.Organisms, part)
			}
		}
	}
	opts.Filters.TechType = get("tech_type")

	from, err := search.ParseDate(get("from"))
	if err != nil {
		return opts, err
	}
	to, err := search.ParseDate(get("to"))
	if err != nil {
		return opts, err
	}
	if from != nil || to != nil {
		opts.Filters.DateRange = &search.DateRange{Start: from, End: to}
	}

	if v := get("min_samples"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, geoerrors.InvalidFilter("min_samples must be an integer")
		}
		opts.Filters.MinSamples = &n
	}

	for key, dst := range map[string]*bool{
		"semantic": &opts.UseSemantic,
		"lexical":  &opts.UseLexical,
		"mesh":     &opts.UseMesh,
	} {
		v := get(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, geoerrors.New(geoerrors.ErrCodeInvalidInput, key+" must be a boolean", err)
		}
		*dst = b
	}

	return opts, opts.Filters.Validate()
}

type seriesResponse struct {
	*store.Series
	GEOURL       string               `json:"geo_url"`
	MatchedTerms []search.MatchedTerm `json:"mesh_terms"`
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	acc := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "accession")))

	found, err := s.records.GetSeries(r.Context(), []string{acc})
	if err != nil {
		writeError(w, r, geoerrors.DatabaseError("failed to load series", err))
		return
	}
	series, ok := found[acc]
	if !ok {
		writeError(w, r, geoerrors.NotFound("series", acc))
		return
	}

	resp := seriesResponse{Series: series, GEOURL: search.GEOURL(acc), MatchedTerms: []search.MatchedTerm{}}
	assocs, err := s.records.GetAssociations(r.Context(), []string{acc}, nil)
	if err != nil {
		slog.Warn("series_terms_skipped",
			slog.String("accession", acc),
			slog.String("error", err.Error()))
	}
	var idx *mesh.TermIndex
	if s.terms != nil {
		idx = s.terms.Current()
	}
	for _, a := range assocs {
		name := a.TermID
		if t := idx.Term(a.TermID); t != nil {
			name = t.PreferredName
		}
		resp.MatchedTerms = append(resp.MatchedTerms, search.MatchedTerm{
			TermID:        a.TermID,
			PreferredName: name,
			Confidence:    a.Confidence,
			Source:        a.Source,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, r, geoerrors.New(geoerrors.ErrCodeQueryEmpty, "query parameter q is required", nil))
		return
	}
	if s.terms == nil || !s.terms.Available() {
		writeError(w, r, geoerrors.DictionaryUnavailable(nil))
		return
	}
	exp := mesh.NewExpander(s.terms.Current(), s.expander).ExpandDefault(query)
	writeJSON(w, http.StatusOK, exp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := geoerrors.HTTPStatus(err)
	attrs := []any{
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error_code", geoerrors.GetCode(err)),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		slog.Error("http_request_failed", attrs...)
	} else {
		slog.Debug("http_request_rejected", attrs...)
	}

	body, marshalErr := geoerrors.FormatJSON(err)
	if marshalErr != nil {
		body = []byte(`{"code":"ERR_501_INTERNAL","message":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
