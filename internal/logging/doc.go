// Package logging configures slog for GEOSearch.
//
// CLI commands log to stderr; with --debug they also write JSON logs to a
// size-rotated file under ~/.geosearch/logs/. The MCP server logs to the file
// only, because stdout carries the protocol stream.
package logging
