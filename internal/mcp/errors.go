// Package mcp implements the Model Context Protocol (MCP) server for GEOSearch.
package mcp

import (
	"context"
	"errors"
	"fmt"

	geoerrors "github.com/raghaviCJanaswamy/GEOSearch/internal/errors"
)

// Custom MCP error codes for GEOSearch.
const (
	// ErrCodeDictionaryUnavailable indicates no MeSH dictionary is loaded.
	ErrCodeDictionaryUnavailable = -32001

	// ErrCodeRetrievalFailed indicates search could not read its stores.
	ErrCodeRetrievalFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeNotFound indicates a dataset does not exist.
	ErrCodeNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("invalid parameters")
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var ge *geoerrors.GeoError
	if errors.As(err, &ge) {
		return mapGeoError(ge)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: "Tool not found.",
		}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{
			Code:    ErrCodeInvalidParams,
			Message: "Invalid parameters.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// mapGeoError converts a GeoError to an MCPError.
func mapGeoError(ge *geoerrors.GeoError) *MCPError {
	message := ge.Message
	if ge.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", ge.Message, ge.Suggestion)
	}

	switch ge.Code {
	case geoerrors.ErrCodeNotFound:
		return &MCPError{Code: ErrCodeNotFound, Message: message}
	case geoerrors.ErrCodeDictionaryUnavailable:
		return &MCPError{Code: ErrCodeDictionaryUnavailable, Message: message}
	case geoerrors.ErrCodeDatabase, geoerrors.ErrCodeRetrievalFailed, geoerrors.ErrCodeCorruptIndex:
		return &MCPError{Code: ErrCodeRetrievalFailed, Message: message}
	}

	switch ge.Category {
	case geoerrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case geoerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
