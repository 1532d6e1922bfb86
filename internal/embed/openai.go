package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	geoerrors "github.com/raghaviCJanaswamy/GEOSearch/internal/errors"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/metrics"
)

const providerOpenAI = "openai"

// DefaultOpenAIModel is the default remote embedding model.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIConfig configures the OpenAI-compatible embedding provider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions requests shortened vectors from models that support it.
	// Zero accepts the model's native size.
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	Retry      geoerrors.RetryConfig
	HTTPClient *http.Client
}

// DefaultOpenAIConfig returns defaults for key.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:    apiKey,
		Model:     DefaultOpenAIModel,
		BatchSize: DefaultBatchSize,
		Timeout:   DefaultTimeout,
		Retry:     geoerrors.DefaultRetryConfig(),
	}
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. Requests
// are retried with backoff and guarded by a circuit breaker.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	batchSize int
	timeout   time.Duration
	retry     geoerrors.RetryConfig
	breaker   *geoerrors.CircuitBreaker
	sendDims  bool

	mu         sync.RWMutex
	dimensions int
	closed     bool
}

// NewOpenAIEmbedder creates a remote embedder. It does not contact the API.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, geoerrors.ConfigError("OpenAI API key is not set", nil).
			WithSuggestion("Set OPENAI_API_KEY or embeddings.openai_api_key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize < MinBatchSize || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Retry.ShouldRetry = isRetryableOpenAIError

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		timeout:    cfg.Timeout,
		retry:      cfg.Retry,
		breaker:    geoerrors.NewCircuitBreaker("openai-embeddings"),
		sendDims:   cfg.Dimensions > 0 && strings.HasPrefix(cfg.Model, "text-embedding-3"),
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in requests of at most BatchSize inputs.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))

		vecs, err := geoerrors.RetryWithResult(ctx, e.retry, func() ([][]float32, error) {
			return geoerrors.CircuitExecute(e.breaker, func() ([][]float32, error) {
				return e.request(ctx, texts[start:end])
			})
		})
		if err != nil {
			return nil, geoerrors.New(geoerrors.ErrCodeEmbeddingFailed, "embedding request failed", err).
				WithDetail("model", e.model)
		}
		results = append(results, vecs...)
	}
	return results, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	// The API rejects empty strings.
	input := make([]string, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			t = " "
		}
		input[i] = t
	}

	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.sendDims {
		req.Dimensions = e.Dimensions()
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(reqCtx, req)
	metrics.ObserveEmbedding(providerOpenAI, e.model, time.Since(start), resp.Usage.TotalTokens, err)
	if err != nil {
		return nil, describeOpenAIError(err)
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(input))
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if err := e.checkDimensions(len(d.Embedding)); err != nil {
			return nil, err
		}
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// checkDimensions adopts the first observed size when none was configured.
func (e *OpenAIEmbedder) checkDimensions(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimensions == 0 {
		e.dimensions = n
		return nil
	}
	if n != e.dimensions {
		return geoerrors.New(geoerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("model returned %d dimensions, expected %d", n, e.dimensions), nil)
	}
	return nil
}

// describeOpenAIError maps API failures to coded errors so retry and the
// HTTP layer can classify them.
func describeOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusError(reqErr.HTTPStatusCode, strings.TrimSpace(string(reqErr.Body)), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return geoerrors.NetworkError("embedding request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return geoerrors.New(geoerrors.ErrCodeNetworkUnavailable, "embedding API unreachable", err)
}

func statusError(status int, detail string, cause error) error {
	msg := fmt.Sprintf("embedding API error %d", status)
	if detail != "" {
		msg += ": " + detail
	}
	switch {
	case status == http.StatusTooManyRequests:
		return geoerrors.New(geoerrors.ErrCodeRateLimited, msg, cause)
	case status >= 500:
		return geoerrors.New(geoerrors.ErrCodeNetworkUnavailable, msg, cause)
	default:
		return geoerrors.New(geoerrors.ErrCodeEmbeddingFailed, msg, cause)
	}
}

func isRetryableOpenAIError(err error) bool {
	return geoerrors.IsRetryable(err)
}

// Dimensions returns the configured or first observed vector size.
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimensions
}

// ModelName returns the remote model name.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// Available lists models to confirm the API is reachable and the key valid.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed || !e.breaker.Allow() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := e.client.ListModels(ctx); err != nil {
		slog.Debug("embedding_api_unavailable", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Close marks the embedder closed.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
