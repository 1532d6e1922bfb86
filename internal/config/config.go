package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete GEOSearch configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	DataDir    string           `yaml:"data_dir" json:"data_dir"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Mesh       MeshConfig       `yaml:"mesh" json:"mesh"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Tagging    TaggingConfig    `yaml:"tagging" json:"tagging"`
	Compaction CompactionConfig `yaml:"compaction" json:"compaction"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// StorageConfig selects where records, associations and vectors live.
type StorageConfig struct {
	// Backend is "sqlite" (default, file under DataDir) or "postgres".
	Backend string `yaml:"backend" json:"backend"`
	// PostgresDSN is the connection string for the postgres backend.
	// DATABASE_URL overrides it.
	PostgresDSN string `yaml:"postgres_dsn" json:"-"`
	// VectorBackend is "hnsw" (local file) or "pgvector".
	VectorBackend string `yaml:"vector_backend" json:"vector_backend"`
	// SQLiteCacheMB sizes the SQLite page cache.
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// SearchConfig configures hybrid retrieval and fusion.
type SearchConfig struct {
	SemanticTopK int `yaml:"semantic_top_k" json:"semantic_top_k"`
	LexicalTopK  int `yaml:"lexical_top_k" json:"lexical_top_k"`
	FinalTopK    int `yaml:"final_top_k" json:"final_top_k"`

	// RRFK is the reciprocal rank fusion constant (k).
	RRFK int `yaml:"rrf_k" json:"rrf_k"`

	// BoostPerTerm is added per matched term association, capped at BoostCap.
	BoostPerTerm float64 `yaml:"boost_per_term" json:"boost_per_term"`
	BoostCap     float64 `yaml:"boost_cap" json:"boost_cap"`

	// CandidateMultiplier sizes the pre-filter candidate pool as a multiple of top_k.
	CandidateMultiplier int `yaml:"candidate_multiplier" json:"candidate_multiplier"`

	// RetrievalTimeout bounds each semantic or lexical call.
	RetrievalTimeout time.Duration `yaml:"retrieval_timeout" json:"retrieval_timeout"`

	// LexicalBackend is "sqlite" (FTS5 BM25), "bleve" (BM25) or "like"
	// (substring match over the record store).
	LexicalBackend string `yaml:"lexical_backend" json:"lexical_backend"`
}

// MeshConfig configures the controlled vocabulary layer.
type MeshConfig struct {
	// DictionaryPath is a MeSH descriptor XML or JSON term file. Empty
	// loads terms from the store.
	DictionaryPath string `yaml:"dictionary_path" json:"dictionary_path"`
	// Watch reloads the dictionary when DictionaryPath changes.
	Watch bool `yaml:"watch" json:"watch"`

	MinPhraseLength int     `yaml:"min_phrase_length" json:"min_phrase_length"`
	MatchThreshold  float64 `yaml:"match_threshold" json:"match_threshold"`
	TitleWeight     float64 `yaml:"title_weight" json:"title_weight"`
	SummaryWeight   float64 `yaml:"summary_weight" json:"summary_weight"`
	DesignWeight    float64 `yaml:"design_weight" json:"design_weight"`

	MaxTerms        int  `yaml:"max_terms" json:"max_terms"`
	SynonymsPerTerm int  `yaml:"synonyms_per_term" json:"synonyms_per_term"`
	IncludeSynonyms bool `yaml:"include_synonyms" json:"include_synonyms"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "local" (static hashing embedder) or "openai".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`

	OpenAIAPIKey  string        `yaml:"openai_api_key" json:"-"`
	OpenAIBaseURL string        `yaml:"openai_base_url" json:"openai_base_url"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
}

// TaggingConfig configures batch term tagging.
type TaggingConfig struct {
	Workers   int  `yaml:"workers" json:"workers"`
	Overwrite bool `yaml:"overwrite" json:"overwrite"`
}

// CompactionConfig configures reclaiming HNSW nodes orphaned when series
// are re-indexed or deleted. Compaction runs at the end of 'geosearch index'.
type CompactionConfig struct {
	// Enabled turns compaction on (default: true).
	Enabled bool `yaml:"enabled" json:"enabled"`
	// OrphanThreshold is the orphan share of all nodes above which the
	// graph is rebuilt. Range 0.0-1.0, default 0.2.
	OrphanThreshold float64 `yaml:"orphan_threshold" json:"orphan_threshold"`
	// MinOrphanCount skips compaction for fewer orphans (default: 1).
	MinOrphanCount int `yaml:"min_orphan_count" json:"min_orphan_count"`
}

// ServerConfig configures the HTTP API and MCP server.
type ServerConfig struct {
	HTTPAddr  string `yaml:"http_addr" json:"http_addr"`
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Storage: StorageConfig{
			Backend:       "sqlite",
			VectorBackend: "hnsw",
			SQLiteCacheMB: 64,
		},
		Search: SearchConfig{
			SemanticTopK:        100,
			LexicalTopK:         100,
			FinalTopK:           50,
			RRFK:                60,
			BoostPerTerm:        0.1,
			BoostCap:            0.5,
			CandidateMultiplier: 2,
			RetrievalTimeout:    10 * time.Second,
			LexicalBackend:      "sqlite",
		},
		Mesh: MeshConfig{
			MinPhraseLength: 4,
			MatchThreshold:  0.3,
			TitleWeight:     2.0,
			SummaryWeight:   1.5,
			DesignWeight:    1.0,
			MaxTerms:        5,
			SynonymsPerTerm: 2,
			IncludeSynonyms: true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "local",
			Model:      "text-embedding-3-small",
			Dimensions: 384,
			BatchSize:  32,
			CacheSize:  1000,
			Timeout:    30 * time.Second,
		},
		Tagging: TaggingConfig{
			Workers: 4,
		},
		Compaction: CompactionConfig{
			Enabled:         true,
			OrphanThreshold: 0.2,
			MinOrphanCount:  1,
		},
		Server: ServerConfig{
			HTTPAddr:  ":8080",
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// defaultDataDir returns ~/.geosearch/data.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".geosearch", "data")
	}
	return filepath.Join(home, ".geosearch", "data")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/geosearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/geosearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "geosearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "geosearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "geosearch", "config.yaml")
}

// Load loads configuration for the project in dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/geosearch/config.yaml)
//  3. Project config (.geosearch.yaml in dir)
//  4. .env in dir (never overrides variables already set)
//  5. Environment variables (GEOSEARCH_*, OPENAI_API_KEY, DATABASE_URL)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.Mesh.DictionaryPath = expandHome(cfg.Mesh.DictionaryPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads .geosearch.yaml or .geosearch.yml from dir if present.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".geosearch.yaml", ".geosearch.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes path over the current values. yaml.v3 leaves fields
// absent from the document untouched, so explicit false and zero values
// in the file still take effect.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GEOSEARCH_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("GEOSEARCH_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("GEOSEARCH_VECTOR_BACKEND"); v != "" {
		c.Storage.VectorBackend = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.PostgresDSN = v
	}

	if v := os.Getenv("GEOSEARCH_RRF_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFK = k
		}
	}
	if v := os.Getenv("GEOSEARCH_FINAL_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.FinalTopK = k
		}
	}
	if v := os.Getenv("GEOSEARCH_BOOST_CAP"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 {
			c.Search.BoostCap = f
		}
	}
	if v := os.Getenv("GEOSEARCH_LEXICAL_BACKEND"); v != "" {
		c.Search.LexicalBackend = v
	}

	if v := os.Getenv("GEOSEARCH_MESH_DICTIONARY"); v != "" {
		c.Mesh.DictionaryPath = v
	}
	if v := os.Getenv("GEOSEARCH_MESH_THRESHOLD"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 {
			c.Mesh.MatchThreshold = f
		}
	}

	if v := os.Getenv("GEOSEARCH_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("GEOSEARCH_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Embeddings.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Embeddings.OpenAIBaseURL = v
	}

	if v := os.Getenv("GEOSEARCH_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv("GEOSEARCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Backend) {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn (or DATABASE_URL) is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend must be 'sqlite' or 'postgres', got %s", c.Storage.Backend)
	}

	switch strings.ToLower(c.Storage.VectorBackend) {
	case "hnsw":
	case "pgvector":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn (or DATABASE_URL) is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("storage.vector_backend must be 'hnsw' or 'pgvector', got %s", c.Storage.VectorBackend)
	}

	s := c.Search
	if s.SemanticTopK <= 0 || s.LexicalTopK <= 0 || s.FinalTopK <= 0 {
		return fmt.Errorf("search top_k values must be positive")
	}
	if s.RRFK <= 0 {
		return fmt.Errorf("search.rrf_k must be positive, got %d", s.RRFK)
	}
	if s.BoostPerTerm < 0 || s.BoostCap < 0 {
		return fmt.Errorf("search boost values must be non-negative")
	}
	if s.CandidateMultiplier < 1 {
		return fmt.Errorf("search.candidate_multiplier must be at least 1, got %d", s.CandidateMultiplier)
	}
	validLexical := map[string]bool{"sqlite": true, "bleve": true, "like": true}
	if !validLexical[strings.ToLower(s.LexicalBackend)] {
		return fmt.Errorf("search.lexical_backend must be 'sqlite', 'bleve' or 'like', got %s", s.LexicalBackend)
	}

	m := c.Mesh
	if m.MinPhraseLength < 1 {
		return fmt.Errorf("mesh.min_phrase_length must be positive, got %d", m.MinPhraseLength)
	}
	if m.MatchThreshold < 0 {
		return fmt.Errorf("mesh.match_threshold must be non-negative, got %f", m.MatchThreshold)
	}
	if m.TitleWeight < 0 || m.SummaryWeight < 0 || m.DesignWeight < 0 {
		return fmt.Errorf("mesh field weights must be non-negative")
	}
	if m.MaxTerms < 0 || m.SynonymsPerTerm < 0 {
		return fmt.Errorf("mesh.max_terms and mesh.synonyms_per_term must be non-negative")
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "local", "static":
	case "openai":
		if c.Embeddings.OpenAIAPIKey == "" {
			return fmt.Errorf("embeddings.openai_api_key (or OPENAI_API_KEY) is required for the openai provider")
		}
	default:
		return fmt.Errorf("embeddings.provider must be 'local' or 'openai', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}

	if c.Tagging.Workers < 1 {
		return fmt.Errorf("tagging.workers must be at least 1, got %d", c.Tagging.Workers)
	}

	if c.Compaction.OrphanThreshold < 0 || c.Compaction.OrphanThreshold > 1 {
		return fmt.Errorf("compaction.orphan_threshold must be between 0 and 1, got %f", c.Compaction.OrphanThreshold)
	}
	if c.Compaction.MinOrphanCount < 0 {
		return fmt.Errorf("compaction.min_orphan_count must be non-negative, got %d", c.Compaction.MinOrphanCount)
	}

	if !strings.EqualFold(c.Server.Transport, "stdio") {
		return fmt.Errorf("server.transport must be 'stdio', got %s (use 'geosearch serve' for HTTP)", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DatabasePath is the SQLite record store file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "geosearch.db")
}

// LexicalIndexPath is the FTS5 or Bleve lexical index location.
func (c *Config) LexicalIndexPath() string {
	if strings.EqualFold(c.Search.LexicalBackend, "bleve") {
		return filepath.Join(c.DataDir, "lexical.bleve")
	}
	return filepath.Join(c.DataDir, "lexical.db")
}

// VectorIndexPath is the HNSW vector index file.
func (c *Config) VectorIndexPath() string {
	return filepath.Join(c.DataDir, "vectors.hnsw")
}
