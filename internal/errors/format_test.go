package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	// Given: a dictionary error with a suggestion
	err := DictionaryUnavailable(nil)

	// When: formatting for CLI
	out := FormatForCLI(err)

	// Then: message, hint and code are shown
	assert.Contains(t, out, "Error: term dictionary unavailable")
	assert.Contains(t, out, "Hint: Load a dictionary")
	assert.Contains(t, out, "Code: ERR_207_DICTIONARY_UNAVAILABLE")
}

func TestFormatForCLI_StandardErrorIsInternal(t *testing.T) {
	out := FormatForCLI(errors.New("something went wrong"))

	assert.Contains(t, out, "something went wrong")
	assert.Contains(t, out, ErrCodeInternal)
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON_RoundTripsFields(t *testing.T) {
	err := InvalidFilter("start date after end date").WithDetail("start", "2024-01-01")

	data, ferr := FormatJSON(err)
	require.NoError(t, ferr)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ErrCodeInvalidFilter, got["code"])
	assert.Equal(t, "VALIDATION", got["category"])
	assert.Equal(t, false, got["retryable"])
	assert.Equal(t, "2024-01-01", got["details"].(map[string]any)["start"])
}

func TestFormatForLog_FlattensDetails(t *testing.T) {
	fields := FormatForLog(RetrievalFailure("semantic", errors.New("timeout")))

	assert.Equal(t, ErrCodeRetrievalFailed, fields["error_code"])
	assert.Equal(t, "semantic", fields["detail_source"])
	assert.Equal(t, "timeout", fields["cause"])

	plain := FormatForLog(errors.New("plain"))
	assert.Equal(t, "plain", plain["error"])
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid filter", InvalidFilter("bad"), http.StatusBadRequest},
		{"not found", NotFound("series", "GSE1"), http.StatusNotFound},
		{"dictionary", DictionaryUnavailable(nil), http.StatusServiceUnavailable},
		{"network", NetworkError("down", nil), http.StatusBadGateway},
		{"plain", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
