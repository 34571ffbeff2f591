// Package scorer holds the two LLM-backed analyzers: the fallback category
// classifier and the web-search court-count question.
package scorer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"squash-venue-enrichment/pkg/metrics"
)

const system = "openai"

// ChatClient is the part of *openai.Client the analyzers use.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var _ ChatClient = (*openai.Client)(nil)

// NewOpenAIClient builds a client with a request timeout. An empty baseURL
// keeps the public API endpoint.
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

// IsPermanent reports API errors caused by the request itself. Rate limits
// and server errors count against the breaker; a rejected prompt does not.
func IsPermanent(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.HTTPStatusCode
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout
}

func firstContent(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// CostTracker tracks OpenAI API usage and costs
type CostTracker struct {
	mu               sync.RWMutex
	totalTokens      int
	totalRequests    int
	estimatedCostUSD float64
	startTime        time.Time

	mTokens *metrics.Counter
}

func NewCostTracker() *CostTracker {
	return &CostTracker{
		startTime: time.Now(),
		mTokens:   metrics.Default.Counter("openai_tokens_total", "OpenAI tokens consumed"),
	}
}

func (c *CostTracker) AddUsage(u openai.Usage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalTokens += u.PromptTokens + u.CompletionTokens
	c.totalRequests++

	// gpt-4o-mini list price: $0.15/1M prompt tokens, $0.60/1M completion tokens
	c.estimatedCostUSD += float64(u.PromptTokens)*0.15/1e6 + float64(u.CompletionTokens)*0.60/1e6
	if c.mTokens != nil {
		c.mTokens.Inc(int64(u.PromptTokens + u.CompletionTokens))
	}
}

// CostStats is a snapshot of CostTracker.
type CostStats struct {
	TotalTokens      int           `json:"total_tokens"`
	TotalRequests    int           `json:"total_requests"`
	EstimatedCostUSD float64       `json:"estimated_cost_usd"`
	Duration         time.Duration `json:"duration_ns"`
}

func (c *CostTracker) Stats() CostStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CostStats{
		TotalTokens:      c.totalTokens,
		TotalRequests:    c.totalRequests,
		EstimatedCostUSD: c.estimatedCostUSD,
		Duration:         time.Since(c.startTime),
	}
}
