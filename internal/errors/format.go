package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// asGeoError returns err as a GeoError, wrapping foreign errors as internal.
func asGeoError(err error) *GeoError {
	var ge *GeoError
	if errors.As(err, &ge) {
		return ge
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ge := asGeoError(err)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", ge.Message))
	if ge.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ge.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", ge.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
// Used as the body of HTTP API error responses.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	ge := asGeoError(err)
	je := jsonError{
		Code:       ge.Code,
		Message:    ge.Message,
		Category:   string(ge.Category),
		Severity:   string(ge.Severity),
		Details:    ge.Details,
		Suggestion: ge.Suggestion,
		Retryable:  ge.Retryable,
	}
	if ge.Cause != nil {
		je.Cause = ge.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error as slog-friendly key-value pairs.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	var ge *GeoError
	if !errors.As(err, &ge) {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_code": ge.Code,
		"message":    ge.Message,
		"category":   string(ge.Category),
		"severity":   string(ge.Severity),
		"retryable":  ge.Retryable,
	}
	if ge.Cause != nil {
		result["cause"] = ge.Cause.Error()
	}
	for k, v := range ge.Details {
		result["detail_"+k] = v
	}

	return result
}

// HTTPStatus maps an error to the status code the HTTP API answers with.
func HTTPStatus(err error) int {
	var ge *GeoError
	if !errors.As(err, &ge) {
		return http.StatusInternalServerError
	}
	switch {
	case ge.Code == ErrCodeNotFound:
		return http.StatusNotFound
	case ge.Code == ErrCodeDictionaryUnavailable:
		return http.StatusServiceUnavailable
	case ge.Category == CategoryValidation:
		return http.StatusBadRequest
	case ge.Category == CategoryNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
