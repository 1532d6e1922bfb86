package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath_UnderGeosearchDir(t *testing.T) {
	path := DefaultLogPath()

	assert.Equal(t, "geosearch.log", filepath.Base(path))
	assert.Contains(t, path, ".geosearch")
	assert.Equal(t, DefaultLogDir(), filepath.Dir(path))
}

func TestDefaultConfig_StderrOnly(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Empty(t, cfg.FilePath)
	assert.True(t, cfg.WriteToStderr)

	debug := DebugConfig()
	assert.Equal(t, "debug", debug.Level)
	assert.Equal(t, DefaultLogPath(), debug.FilePath)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: a file-only config
	path := filepath.Join(t.TempDir(), "logs", "geosearch.log")
	cfg := Config{Level: "debug", FilePath: path, MaxSizeMB: 1, MaxFiles: 2}

	// When: logging an event
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Info("search_completed", slog.String("query", "breast cancer"), slog.Int("results", 3))
	cleanup()

	// Then: the file holds one JSON record with the attributes
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &rec))
	assert.Equal(t, "search_completed", rec["msg"])
	assert.Equal(t, "breast cancer", rec["query"])
	assert.Equal(t, float64(3), rec["results"])
}

func TestSetup_FiltersBelowLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geosearch.log")
	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestRotatingWriter_RotatesWhenFull(t *testing.T) {
	// Given: a 1 MB writer keeping 2 files
	dir := t.TempDir()
	path := filepath.Join(dir, "geosearch.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// When: writing more than three files' worth
	chunk := []byte(strings.Repeat("x", 512*1024))
	for i := 0; i < 8; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	// Then: rotated files exist and the oldest beyond the limit are gone
	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, fmt.Sprintf("%s.%d", path, 4))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(1024*1024))
}
