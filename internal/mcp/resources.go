package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	statusURI     = "geosearch://status"
	dictionaryURI = "geosearch://mesh/dictionary"
)

// StatusOutput summarizes the corpus and dictionary.
type StatusOutput struct {
	Series       int `json:"series"`
	Terms        int `json:"terms"`
	Associations int `json:"associations"`

	DictionaryAvailable bool   `json:"dictionary_available"`
	DictionaryTerms     int    `json:"dictionary_terms"`
	DictionaryVersion   uint64 `json:"dictionary_version,omitempty"`
	DictionaryBuiltAt   string `json:"dictionary_built_at,omitempty"`
}

// DictionaryEntry is one term in the dictionary listing.
type DictionaryEntry struct {
	ID            string `json:"id"`
	PreferredName string `json:"preferred_name"`
}

func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "status",
			URI:         statusURI,
			Description: "Number of indexed datasets, stored terms and associations, and the loaded dictionary version",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.readStatus(ctx)
		},
	)
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "mesh-dictionary",
			URI:         dictionaryURI,
			Description: "MeSH descriptors currently used for query expansion",
			MIMEType:    "application/json",
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.readDictionary()
		},
	)
}

// Status returns store counts and dictionary state.
func (s *Server) Status(ctx context.Context) (*StatusOutput, error) {
	stats, err := s.records.Stats(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	out := &StatusOutput{
		Series:       stats.Series,
		Terms:        stats.Terms,
		Associations: stats.Associations,
	}
	if idx := s.currentIndex(); !idx.Empty() {
		out.DictionaryAvailable = true
		out.DictionaryTerms = idx.TermCount()
		out.DictionaryVersion = idx.Version()
		out.DictionaryBuiltAt = idx.BuiltAt().UTC().Format(time.RFC3339)
	}
	return out, nil
}

func (s *Server) readStatus(ctx context.Context) (*mcp.ReadResourceResult, error) {
	out, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(statusURI, out)
}

func (s *Server) readDictionary() (*mcp.ReadResourceResult, error) {
	terms := s.currentIndex().Terms()
	entries := make([]DictionaryEntry, len(terms))
	for i, t := range terms {
		entries[i] = DictionaryEntry{ID: t.ID, PreferredName: t.PreferredName}
	}
	return jsonResource(dictionaryURI, entries)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
