package logging

import (
	"log/slog"
)

// SetupServerMode initializes logging for the MCP stdio server.
// Logs go to the file only: any stray write to stdout or stderr would
// corrupt the JSON-RPC stream.
func SetupServerMode(level, path string) (func(), error) {
	if path == "" {
		path = DefaultLogPath()
	}
	cfg := Config{
		Level:         level,
		Format:        "json",
		FilePath:      path,
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	cleanup, err := SetupDefault(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("server_logging_initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}
