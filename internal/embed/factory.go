package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	geoerrors "github.com/raghaviCJanaswamy/GEOSearch/internal/errors"
)

// ProviderType names an embedding provider.
type ProviderType string

const (
	// ProviderLocal is the offline hashing embedder.
	ProviderLocal ProviderType = "local"

	// ProviderOpenAI calls an OpenAI-compatible embeddings API.
	ProviderOpenAI ProviderType = "openai"
)

// Options selects and configures the embedder built by NewEmbedder.
type Options struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	BatchSize  int
	CacheSize  int
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
}

// NewEmbedder builds the configured provider and wraps it in a query
// cache. Set GEOSEARCH_EMBED_CACHE=false to disable the cache.
func NewEmbedder(_ context.Context, opts Options) (Embedder, error) {
	var embedder Embedder

	switch opts.Provider {
	case ProviderLocal, "":
		embedder = NewStaticEmbedder(opts.Dimensions)

	case ProviderOpenAI:
		cfg := DefaultOpenAIConfig(opts.APIKey)
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		cfg.BaseURL = opts.BaseURL
		cfg.Dimensions = opts.Dimensions
		if opts.BatchSize > 0 {
			cfg.BatchSize = opts.BatchSize
		}
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
		oe, err := NewOpenAIEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		embedder = oe

	default:
		return nil, geoerrors.ConfigError(
			fmt.Sprintf("unknown embedding provider %q (valid: %s)", opts.Provider, strings.Join(ValidProviders(), ", ")), nil)
	}

	slog.Debug("embedder_created",
		slog.String("provider", string(opts.Provider)),
		slog.String("model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()))

	if isCacheDisabled() {
		return embedder, nil
	}
	return NewCachedEmbedder(embedder, opts.CacheSize), nil
}

func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("GEOSEARCH_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// ParseProvider maps a case-insensitive name to a provider. Unknown names
// are returned as-is so NewEmbedder can reject them.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "local", "static":
		return ProviderLocal
	case "openai":
		return ProviderOpenAI
	default:
		return ProviderType(s)
	}
}

// ValidProviders lists the accepted provider names.
func ValidProviders() []string {
	return []string{string(ProviderLocal), string(ProviderOpenAI)}
}

// IsValidProvider reports whether s names a provider.
func IsValidProvider(s string) bool {
	p := ParseProvider(s)
	return p == ProviderLocal || p == ProviderOpenAI
}

// Info describes an embedder for status output.
type Info struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Available  bool   `json:"available"`
	Cached     bool   `json:"cached"`
}

// GetInfo reports the embedder's identity and availability.
func GetInfo(ctx context.Context, e Embedder) Info {
	info := Info{
		Model:      e.ModelName(),
		Dimensions: e.Dimensions(),
		Available:  e.Available(ctx),
	}

	inner := e
	if c, ok := e.(*CachedEmbedder); ok {
		info.Cached = true
		inner = c.Inner()
	}
	switch inner.(type) {
	case *StaticEmbedder:
		info.Provider = string(ProviderLocal)
	case *OpenAIEmbedder:
		info.Provider = string(ProviderOpenAI)
	default:
		info.Provider = "unknown"
	}
	return info
}
