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

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// Ensure HTTPScorer implements the interface.
var _ driven.RelevanceScorer = (*HTTPScorer)(nil)

// DefaultTimeout bounds one rerank request.
const DefaultTimeout = 30 * time.Second

// HTTPScorer calls a text-embeddings-inference compatible /rerank endpoint.
type HTTPScorer struct {
	client  *http.Client
	baseURL string
	model   string
}

// rerankRequest is the /rerank request format.
type rerankRequest struct {
	Model string   `json:"model,omitempty"`
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

// rerankResult is one element of the /rerank response.
type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// NewHTTPScorer creates a scorer for the endpoint at baseURL.
func NewHTTPScorer(baseURL, model string, timeout time.Duration) *HTTPScorer {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &HTTPScorer{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
	}
}

// ScorePairs sends every passage in one request and returns scores in input order.
func (s *HTTPScorer) ScorePairs(ctx context.Context, query string, passages []string) ([]float64, error) {
	jsonBody, err := json.Marshal(rerankRequest{Model: s.model, Query: query, Texts: passages})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rerank", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &domain.ProviderStatusError{Provider: "rerank", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	scores := make([]float64, len(passages))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(passages) {
			return nil, fmt.Errorf("%w: rerank index %d out of range", domain.ErrProviderError, r.Index)
		}
		scores[r.Index] = r.Score
	}
	return scores, nil
}
