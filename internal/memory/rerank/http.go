package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/uspq/neko-ai/internal/types"
)

// HTTPReranker calls a /rerank-style API (Cohere, Jina, SiliconFlow and
// compatible services share this request shape).
type HTTPReranker struct {
	config RerankConfig
	client *http.Client
}

// NewHTTPReranker creates a reranker backed by an HTTP rerank API.
func NewHTTPReranker(config RerankConfig) (*HTTPReranker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &HTTPReranker{
		config: config,
		client: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Rerank scores documents against the query via the remote API.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]Ranked, error) {
	if len(documents) == 0 {
		return []Ranked{}, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.config.Model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, types.WrapError(ErrCodeRerankFailed,
			"failed to encode rerank request", err)
	}

	url := strings.TrimSuffix(r.config.BaseURL, "/") + "/rerank"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, types.WrapError(ErrCodeRerankFailed,
			"failed to build rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, types.WrapRetryableError(ErrCodeRerankUnavailable,
			"rerank request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.WrapRetryableError(ErrCodeRerankFailed,
			"failed to read rerank response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewError(ErrCodeRerankFailed,
			fmt.Sprintf("rerank API returned %d", resp.StatusCode))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, types.WrapError(ErrCodeRerankFailed,
			"failed to decode rerank response", err)
	}
	if parsed.Error != nil {
		return nil, types.NewError(ErrCodeRerankFailed,
			"rerank API error: "+parsed.Error.Message)
	}

	ranked := make([]Ranked, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		if result.Index < 0 || result.Index >= len(documents) {
			return nil, types.NewError(ErrCodeRerankFailed,
				fmt.Sprintf("rerank API returned out-of-range index %d", result.Index))
		}
		ranked = append(ranked, Ranked{Index: result.Index, Score: result.RelevanceScore})
	}
	return ranked, nil
}

// Model returns the rerank model name.
func (r *HTTPReranker) Model() string {
	return r.config.Model
}

// Health probes the rerank API with a minimal request.
func (r *HTTPReranker) Health(ctx context.Context) types.HealthStatus {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.Rerank(healthCtx, "ping", []string{"pong"}, 1); err != nil {
		return types.Unhealthy(fmt.Sprintf("rerank probe failed: %v", err))
	}
	return types.Healthy("rerank API reachable")
}
