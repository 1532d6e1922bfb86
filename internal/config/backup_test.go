package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupFile_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".geosearch.yaml")

	backup, err := BackupFile(path)

	require.NoError(t, err)
	assert.Empty(t, backup)
}

func TestBackupFile_CopiesContent(t *testing.T) {
	// Given: an existing config
	path := filepath.Join(t.TempDir(), ".geosearch.yaml")
	content := "version: 1\nsearch:\n  rrf_k: 30\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// When: backing it up
	backup, err := BackupFile(path)

	// Then: a sibling with the same content exists
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(backup), ".geosearch.yaml"+BackupSuffix+"."))
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestBackupFile_PrunesOldBackups(t *testing.T) {
	// Given: a config backed up more times than MaxBackups
	path := filepath.Join(t.TempDir(), ".geosearch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	var last string
	for i := 0; i < MaxBackups+2; i++ {
		b, err := BackupFile(path)
		require.NoError(t, err)
		last = b
		time.Sleep(5 * time.Millisecond)
	}

	// When: listing backups
	backups, err := ListBackups(path)

	// Then: only the newest MaxBackups remain, newest first
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
	assert.Equal(t, last, backups[0])
}

func TestListBackups_MissingDir(t *testing.T) {
	backups, err := ListBackups(filepath.Join(t.TempDir(), "nope", ".geosearch.yaml"))

	require.NoError(t, err)
	assert.Empty(t, backups)
}
