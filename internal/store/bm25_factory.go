package store

import (
	"fmt"
	"os"
	"strings"
)

// LexicalBackend names a ranked lexical index implementation.
type LexicalBackend string

const (
	// LexicalBackendSQLite is an SQLite FTS5 index (default).
	LexicalBackendSQLite LexicalBackend = "sqlite"

	// LexicalBackendBleve is a Bleve v2 index directory.
	LexicalBackendBleve LexicalBackend = "bleve"
)

// NewLexicalIndex opens the BM25 index for backend at path.
// An empty path creates an in-memory index.
func NewLexicalIndex(path string, config BM25Config, backend string) (BM25Index, error) {
	switch LexicalBackend(strings.ToLower(backend)) {
	case LexicalBackendSQLite, "":
		return NewSQLiteBM25Index(path, config)
	case LexicalBackendBleve:
		return NewBleveBM25Index(path, config)
	default:
		return nil, fmt.Errorf("unknown lexical backend: %s (valid options: sqlite, bleve)", backend)
	}
}

// DetectLexicalBackend reports which backend built the index at path, or ""
// when nothing exists there. FTS5 indexes are files, Bleve indexes directories.
func DetectLexicalBackend(path string) LexicalBackend {
	switch {
	case fileExists(path):
		return LexicalBackendSQLite
	case dirExists(path):
		return LexicalBackendBleve
	default:
		return ""
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
