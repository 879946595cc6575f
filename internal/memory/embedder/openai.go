package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/uspq/neko-ai/internal/types"
)

// OpenAIEmbedder generates embeddings via an OpenAI-compatible /embeddings
// endpoint. Transient HTTP failures are retried with exponential backoff.
type OpenAIEmbedder struct {
	config EmbedderConfig
	client *http.Client
}

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible API.
func NewOpenAIEmbedder(config EmbedderConfig) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		config.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	return &OpenAIEmbedder{
		config: config,
		client: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Embed generates an embedding vector for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	body, err := json.Marshal(embeddingRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, types.WrapError(ErrCodeEmbeddingBatchFailed,
			"failed to encode embedding request", err)
	}

	var lastErr error
	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Backoff: 500ms * 2^(attempt-1)
			delay := 500 * time.Millisecond * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, types.WrapError(ErrCodeEmbeddingBatchFailed,
					"embedding request cancelled", ctx.Err())
			}
		}

		embeddings, retryable, err := e.request(ctx, body, len(texts))
		if err == nil {
			return embeddings, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, types.WrapRetryableError(ErrCodeEmbeddingBatchFailed,
		fmt.Sprintf("embedding failed after %d attempts", e.config.MaxRetries+1), lastErr)
}

func (e *OpenAIEmbedder) request(ctx context.Context, body []byte, want int) ([][]float64, bool, error) {
	url := strings.TrimSuffix(e.config.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, types.WrapError(ErrCodeEmbeddingFailed,
			"failed to build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, true, types.WrapRetryableError(ErrCodeEmbedderUnavailable,
			"embedding request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, types.WrapRetryableError(ErrCodeEmbeddingFailed,
			"failed to read embedding response", err)
	}

	if resp.StatusCode != http.StatusOK {
		// 429 and 5xx are transient; anything else is a caller error.
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, types.NewError(ErrCodeEmbeddingFailed,
			fmt.Sprintf("embedding API returned %d: %s", resp.StatusCode, truncate(string(payload), 200)))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, false, types.WrapError(ErrCodeEmbeddingFailed,
			"failed to decode embedding response", err)
	}
	if parsed.Error != nil {
		return nil, false, types.NewError(ErrCodeEmbeddingFailed,
			"embedding API error: "+parsed.Error.Message)
	}
	if len(parsed.Data) != want {
		return nil, false, types.NewError(ErrCodeEmbeddingFailed,
			fmt.Sprintf("embedding API returned %d vectors, expected %d", len(parsed.Data), want))
	}

	embeddings := make([][]float64, want)
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= want {
			return nil, false, types.NewError(ErrCodeEmbeddingFailed,
				fmt.Sprintf("embedding API returned out-of-range index %d", item.Index))
		}
		embeddings[item.Index] = item.Embedding
	}
	return embeddings, false, nil
}

// Dimensions returns the configured vector dimensionality.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// Model returns the embedding model name.
func (e *OpenAIEmbedder) Model() string {
	return e.config.Model
}

// Health probes the API with a minimal embedding request.
func (e *OpenAIEmbedder) Health(ctx context.Context) types.HealthStatus {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := e.Embed(healthCtx, "ping"); err != nil {
		return types.Unhealthy(fmt.Sprintf("embedding probe failed: %v", err))
	}
	return types.Healthy("embedding API reachable")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
