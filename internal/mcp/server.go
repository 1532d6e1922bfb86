package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/mesh"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/search"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
	"github.com/raghaviCJanaswamy/GEOSearch/pkg/version"
)

const (
	serverName   = "GEOSearch"
	defaultLimit = 10
	maxLimit     = 100
)

// Searcher runs a hybrid search.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.SearchOptions) (*search.SearchResponse, error)
}

// Records reads series, their term associations and store counts.
type Records interface {
	GetSeries(ctx context.Context, accessions []string) (map[string]*store.Series, error)
	GetAssociations(ctx context.Context, accessions, termIDs []string) ([]*store.Association, error)
	Stats(ctx context.Context) (*store.Stats, error)
}

// Server is the MCP server for GEOSearch.
// It exposes dataset search to AI clients.
type Server struct {
	mcp      *mcp.Server
	searcher Searcher
	records  Records
	terms    *mesh.Registry
	expander mesh.ExpanderConfig
	logger   *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name: "search_datasets",
		Description: "Find NCBI GEO gene-expression datasets (series) matching a natural-language description. " +
			"Combines embedding similarity, keyword matching and MeSH vocabulary expansion. " +
			"Supports organism, technology, submission date and sample count filters.",
	},
	{
		Name:        "get_dataset",
		Description: "Fetch the full record of one GEO series by accession, including its MeSH term annotations.",
	},
	{
		Name:        "expand_query",
		Description: "Show which MeSH descriptors are recognized in a query and how it would be expanded with their synonyms.",
	},
}

// NewServer creates a new MCP server. terms may be nil when no dictionary is configured.
func NewServer(searcher Searcher, records Records, terms *mesh.Registry, expander mesh.ExpanderConfig) (*Server, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if records == nil {
		return nil, errors.New("record store is required")
	}
	if expander.MaxTerms <= 0 {
		expander = mesh.DefaultExpanderConfig()
	}

	s := &Server{
		searcher: searcher,
		records:  records,
		terms:    terms,
		expander: expander,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return tools
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchDatasetsHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpGetDatasetHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpExpandQueryHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// CallTool invokes a tool by name with JSON-decoded arguments and returns
// its markdown or structured result.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search_datasets":
		input, err := searchInputFromArgs(args)
		if err != nil {
			return nil, err
		}
		resp, err := s.searchDatasets(ctx, input)
		if err != nil {
			return nil, err
		}
		return FormatSearchResults(resp), nil
	case "get_dataset":
		acc, _ := args["accession"].(string)
		return s.getDataset(ctx, GetDatasetInput{Accession: acc})
	case "expand_query":
		q, _ := args["query"].(string)
		return s.expandQuery(ExpandQueryInput{Query: q})
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func searchInputFromArgs(args map[string]any) (SearchDatasetsInput, error) {
	var input SearchDatasetsInput
	query, ok := args["query"].(string)
	if !ok {
		return input, NewInvalidParamsError("query parameter is required and must be a string")
	}
	input.Query = query
	if l, ok := args["limit"].(float64); ok {
		input.Limit = int(l)
	}
	if orgs, ok := args["organisms"].([]any); ok {
		for _, o := range orgs {
			if str, ok := o.(string); ok {
				input.Organisms = append(input.Organisms, str)
			}
		}
	}
	input.TechType, _ = args["tech_type"].(string)
	input.From, _ = args["from"].(string)
	input.To, _ = args["to"].(string)
	if n, ok := args["min_samples"].(float64); ok {
		v := int(n)
		input.MinSamples = &v
	}
	for key, dst := range map[string]**bool{
		"semantic": &input.Semantic,
		"lexical":  &input.Lexical,
		"mesh":     &input.Mesh,
	} {
		if b, ok := args[key].(bool); ok {
			*dst = &b
		}
	}
	return input, nil
}

func (s *Server) searchDatasets(ctx context.Context, input SearchDatasetsInput) (*search.SearchResponse, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	opts := search.DefaultSearchOptions()
	opts.TopK = clampLimit(input.Limit, defaultLimit, 1, maxLimit)
	opts.Filters.Organisms = input.Organisms
	opts.Filters.TechType = strings.TrimSpace(input.TechType)
	opts.Filters.MinSamples = input.MinSamples

	from, err := search.ParseDate(input.From)
	if err != nil {
		return nil, MapError(err)
	}
	to, err := search.ParseDate(input.To)
	if err != nil {
		return nil, MapError(err)
	}
	if from != nil || to != nil {
		opts.Filters.DateRange = &search.DateRange{Start: from, End: to}
	}
	if input.Semantic != nil {
		opts.UseSemantic = *input.Semantic
	}
	if input.Lexical != nil {
		opts.UseLexical = *input.Lexical
	}
	if input.Mesh != nil {
		opts.UseMesh = *input.Mesh
	}

	start := time.Now()
	requestID := uuid.NewString()
	s.logger.Info("search_datasets started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("limit", opts.TopK))

	resp, err := s.searcher.Search(ctx, query, opts)
	if err != nil {
		s.logger.Error("search_datasets failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("search_datasets completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(resp.Results)))
	return resp, nil
}

func (s *Server) getDataset(ctx context.Context, input GetDatasetInput) (*DatasetOutput, error) {
	acc := strings.ToUpper(strings.TrimSpace(input.Accession))
	if acc == "" {
		return nil, NewInvalidParamsError("accession parameter is required")
	}

	found, err := s.records.GetSeries(ctx, []string{acc})
	if err != nil {
		return nil, MapError(err)
	}
	series, ok := found[acc]
	if !ok {
		return nil, &MCPError{Code: ErrCodeNotFound, Message: fmt.Sprintf("Dataset '%s' not found.", acc)}
	}

	assocs, err := s.records.GetAssociations(ctx, []string{acc}, nil)
	if err != nil {
		s.logger.Warn("dataset_terms_skipped",
			slog.String("accession", acc),
			slog.String("error", err.Error()))
	}

	out := ToDatasetOutput(series, assocs, s.currentIndex())
	return &out, nil
}

func (s *Server) expandQuery(input ExpandQueryInput) (*ExpandQueryOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, NewInvalidParamsError("query parameter is required")
	}
	idx := s.currentIndex()
	if idx == nil {
		return nil, &MCPError{
			Code:    ErrCodeDictionaryUnavailable,
			Message: "MeSH dictionary not loaded. Run 'geosearch mesh load' or 'geosearch mesh sample'.",
		}
	}
	out := ToExpandOutput(mesh.NewExpander(idx, s.expander).ExpandDefault(query))
	return &out, nil
}

func (s *Server) currentIndex() *mesh.TermIndex {
	if s.terms == nil {
		return nil
	}
	return s.terms.Current()
}

// mcpSearchDatasetsHandler is the MCP SDK handler for the search_datasets tool.
func (s *Server) mcpSearchDatasetsHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchDatasetsInput) (
	*mcp.CallToolResult,
	SearchDatasetsOutput,
	error,
) {
	resp, err := s.searchDatasets(ctx, input)
	if err != nil {
		return nil, SearchDatasetsOutput{}, err
	}
	return nil, ToSearchOutput(resp), nil
}

// mcpGetDatasetHandler is the MCP SDK handler for the get_dataset tool.
func (s *Server) mcpGetDatasetHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetDatasetInput) (
	*mcp.CallToolResult,
	*DatasetOutput,
	error,
) {
	out, err := s.getDataset(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

// mcpExpandQueryHandler is the MCP SDK handler for the expand_query tool.
func (s *Server) mcpExpandQueryHandler(_ context.Context, _ *mcp.CallToolRequest, input ExpandQueryInput) (
	*mcp.CallToolResult,
	*ExpandQueryOutput,
	error,
) {
	out, err := s.expandQuery(input)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
