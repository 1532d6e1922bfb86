package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raghaviCJanaswamy/GEOSearch/configs"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/config"
)

func TestConfigInit_CreatesUserConfig(t *testing.T) {
	// Given: no user config
	dir := isolateConfig(t)

	// When: running config init
	out, err := runCLI(t, dir, "config", "init")

	// Then: the template is written to the user config path
	require.NoError(t, err, out)
	data, err := os.ReadFile(config.GetUserConfigPath())
	require.NoError(t, err)
	assert.Equal(t, configs.ConfigTemplate, string(data))
	assert.Contains(t, out, "Created configuration")
}

func TestConfigInit_ExistingWithoutForce(t *testing.T) {
	dir := isolateConfig(t)
	path := filepath.Join(dir, ".geosearch.yaml")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	out, err := runCLI(t, dir, "config", "init", "--project")

	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestConfigInit_ForceKeepsBackup(t *testing.T) {
	// Given: an existing project config
	dir := isolateConfig(t)
	path := filepath.Join(dir, ".geosearch.yaml")

	// When: forcing init
	out, err := runCLI(t, dir, "config", "init", "--project", "--force")

	// Then: the template replaces it and one backup exists
	require.NoError(t, err, out)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, configs.ConfigTemplate, string(data))

	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigTemplate_LoadsAndValidates(t *testing.T) {
	// Given: the template as the project config
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".geosearch.yaml"), []byte(configs.ConfigTemplate), 0o644))

	// When: loading it
	cfg, err := config.Load(dir)

	// Then: it is valid and keeps the defaults it leaves commented out
	require.NoError(t, err)
	defaults := config.NewConfig()
	assert.Equal(t, defaults.Search, cfg.Search)
	assert.Equal(t, defaults.Mesh, cfg.Mesh)
	assert.Equal(t, defaults.Tagging, cfg.Tagging)
	assert.Equal(t, defaults.Compaction, cfg.Compaction)
}

func TestConfigShow_JSONHidesSecrets(t *testing.T) {
	dir := isolateConfig(t)
	t.Setenv("OPENAI_API_KEY", "sk-test-secret")

	out, err := runCLI(t, dir, "config", "show", "--json")

	require.NoError(t, err, out)
	assert.NotContains(t, out, "sk-test-secret")

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
}

func TestConfigShow_YAMLRedactsSecrets(t *testing.T) {
	dir := isolateConfig(t)
	t.Setenv("OPENAI_API_KEY", "sk-test-secret")

	out, err := runCLI(t, dir, "config", "show")

	require.NoError(t, err, out)
	assert.NotContains(t, out, "sk-test-secret")
	assert.Contains(t, out, "<redacted>")
	assert.Contains(t, out, "rrf_k: 60")
}

func TestConfigShow_Defaults(t *testing.T) {
	dir := isolateConfig(t)

	out, err := runCLI(t, dir, "config", "show", "--defaults")

	require.NoError(t, err, out)
	assert.Contains(t, out, "Source: defaults")
}

func TestConfigPath(t *testing.T) {
	dir := isolateConfig(t)

	out, err := runCLI(t, dir, "config", "path")

	require.NoError(t, err)
	assert.Contains(t, out, config.GetUserConfigPath())
}
