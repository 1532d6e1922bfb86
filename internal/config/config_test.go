package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config at an empty temp dir and clears the
// environment variables Load reads.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{
		"GEOSEARCH_DATA_DIR", "GEOSEARCH_STORAGE_BACKEND", "GEOSEARCH_VECTOR_BACKEND",
		"DATABASE_URL", "GEOSEARCH_RRF_K", "GEOSEARCH_FINAL_TOP_K", "GEOSEARCH_BOOST_CAP",
		"GEOSEARCH_LEXICAL_BACKEND", "GEOSEARCH_MESH_DICTIONARY", "GEOSEARCH_MESH_THRESHOLD",
		"GEOSEARCH_EMBEDDINGS_PROVIDER", "GEOSEARCH_EMBEDDINGS_MODEL", "OPENAI_API_KEY",
		"OPENAI_BASE_URL", "GEOSEARCH_HTTP_ADDR", "GEOSEARCH_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	return t.TempDir()
}

// =============================================================================
// Defaults
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 100, cfg.Search.SemanticTopK)
	assert.Equal(t, 100, cfg.Search.LexicalTopK)
	assert.Equal(t, 50, cfg.Search.FinalTopK)
	assert.Equal(t, 60, cfg.Search.RRFK)
	assert.Equal(t, 0.1, cfg.Search.BoostPerTerm)
	assert.Equal(t, 0.5, cfg.Search.BoostCap)
	assert.Equal(t, 2, cfg.Search.CandidateMultiplier)
	assert.Equal(t, 10*time.Second, cfg.Search.RetrievalTimeout)

	assert.Equal(t, 4, cfg.Mesh.MinPhraseLength)
	assert.Equal(t, 0.3, cfg.Mesh.MatchThreshold)
	assert.Equal(t, 2.0, cfg.Mesh.TitleWeight)
	assert.Equal(t, 1.5, cfg.Mesh.SummaryWeight)
	assert.Equal(t, 1.0, cfg.Mesh.DesignWeight)
	assert.Equal(t, 5, cfg.Mesh.MaxTerms)
	assert.Equal(t, 2, cfg.Mesh.SynonymsPerTerm)
	assert.True(t, cfg.Mesh.IncludeSynonyms)

	assert.Equal(t, "local", cfg.Embeddings.Provider)
	assert.Equal(t, 384, cfg.Embeddings.Dimensions)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Contains(t, cfg.DataDir, ".geosearch")

	assert.True(t, cfg.Compaction.Enabled)
	assert.Equal(t, 0.2, cfg.Compaction.OrphanThreshold)
	assert.Equal(t, 1, cfg.Compaction.MinOrphanCount)

	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// Precedence
// =============================================================================

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
}

func TestLoad_ProjectFileOverridesUserFile(t *testing.T) {
	// Given: a user config and a project config
	dir := isolate(t)
	userPath := GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte("search:\n  rrf_k: 30\n  final_top_k: 10\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".geosearch.yaml"),
		[]byte("search:\n  rrf_k: 90\nmesh:\n  include_synonyms: false\n"), 0o644))

	// When: loading
	cfg, err := Load(dir)

	// Then: project wins, user values survive where the project is silent
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Search.RRFK)
	assert.Equal(t, 10, cfg.Search.FinalTopK)
	assert.False(t, cfg.Mesh.IncludeSynonyms)
	assert.Equal(t, 100, cfg.Search.SemanticTopK)
}

func TestLoad_CompactionCanBeDisabled(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".geosearch.yaml"),
		[]byte("compaction:\n  enabled: false\n"), 0o644))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.False(t, cfg.Compaction.Enabled)
	assert.Equal(t, 0.2, cfg.Compaction.OrphanThreshold)
}

func TestLoad_YmlFallback(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".geosearch.yml"),
		[]byte("search:\n  retrieval_timeout: 2s\n"), 0o644))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Search.RetrievalTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".geosearch.yaml"),
		[]byte("search:\n  rrf_k: 90\n"), 0o644))
	t.Setenv("GEOSEARCH_RRF_K", "42")
	t.Setenv("GEOSEARCH_MESH_THRESHOLD", "0.5")
	t.Setenv("GEOSEARCH_DATA_DIR", "/tmp/geo-data")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Search.RRFK)
	assert.Equal(t, 0.5, cfg.Mesh.MatchThreshold)
	assert.Equal(t, "/tmp/geo-data", cfg.DataDir)
}

func TestLoad_InvalidEnvNumberIgnored(t *testing.T) {
	dir := isolate(t)
	t.Setenv("GEOSEARCH_RRF_K", "not-a-number")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Search.RRFK)
}

func TestLoad_DotEnvSuppliesSecrets(t *testing.T) {
	// Given: a .env with an OpenAI key and a provider switch in YAML
	dir := isolate(t)
	require.NoError(t, os.Unsetenv("OPENAI_API_KEY"))
	t.Cleanup(func() { _ = os.Unsetenv("OPENAI_API_KEY") })
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=sk-test\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".geosearch.yaml"),
		[]byte("embeddings:\n  provider: openai\n"), 0o644))

	// When: loading
	cfg, err := Load(dir)

	// Then: the key comes from .env and validation passes
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Embeddings.OpenAIAPIKey)
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".geosearch.yaml"), []byte("search: [\n"), 0o644))

	_, err := Load(dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

// =============================================================================
// Validation
// =============================================================================

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "mysql" }, "storage.backend"},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }, "postgres_dsn"},
		{"pgvector without dsn", func(c *Config) { c.Storage.VectorBackend = "pgvector" }, "postgres_dsn"},
		{"zero rrf k", func(c *Config) { c.Search.RRFK = 0 }, "rrf_k"},
		{"negative boost", func(c *Config) { c.Search.BoostCap = -1 }, "boost"},
		{"multiplier", func(c *Config) { c.Search.CandidateMultiplier = 0 }, "candidate_multiplier"},
		{"lexical backend", func(c *Config) { c.Search.LexicalBackend = "solr" }, "lexical_backend"},
		{"phrase length", func(c *Config) { c.Mesh.MinPhraseLength = 0 }, "min_phrase_length"},
		{"openai without key", func(c *Config) { c.Embeddings.Provider = "openai" }, "openai_api_key"},
		{"provider", func(c *Config) { c.Embeddings.Provider = "ollama" }, "embeddings.provider"},
		{"workers", func(c *Config) { c.Tagging.Workers = 0 }, "tagging.workers"},
		{"orphan threshold", func(c *Config) { c.Compaction.OrphanThreshold = 1.5 }, "compaction.orphan_threshold"},
		{"min orphans", func(c *Config) { c.Compaction.MinOrphanCount = -1 }, "compaction.min_orphan_count"},
		{"transport", func(c *Config) { c.Server.Transport = "sse" }, "transport"},
		{"log level", func(c *Config) { c.Server.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// =============================================================================
// Files
// =============================================================================

func TestWriteYAML_RoundTrips(t *testing.T) {
	dir := isolate(t)
	cfg := NewConfig()
	cfg.Search.RRFK = 77
	cfg.Mesh.IncludeSynonyms = false

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ".geosearch.yaml")))
	loaded, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 77, loaded.Search.RRFK)
	assert.False(t, loaded.Mesh.IncludeSynonyms)
}

func TestBackupFile_KeepsNewest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	backup, err := BackupFile(path)
	require.NoError(t, err)
	assert.Empty(t, backup, "missing file needs no backup")

	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))
	for i := 0; i < MaxBackups+2; i++ {
		_, err := BackupFile(path)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
}

func TestDerivedPaths(t *testing.T) {
	cfg := NewConfig()
	cfg.DataDir = "/data"

	assert.Equal(t, "/data/geosearch.db", cfg.DatabasePath())
	assert.Equal(t, "/data/lexical.db", cfg.LexicalIndexPath())
	assert.Equal(t, "/data/vectors.hnsw", cfg.VectorIndexPath())

	cfg.Search.LexicalBackend = "bleve"
	assert.Equal(t, "/data/lexical.bleve", cfg.LexicalIndexPath())
}
