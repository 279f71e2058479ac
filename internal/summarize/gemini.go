// Package summarize calls the Gemini generateContent API to summarize and
// classify article abstracts, with a deterministic extractive fallback when
// the model is unavailable.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/oncobrief/oncobrief/internal/domain"
	"github.com/oncobrief/oncobrief/internal/observability"
)

// Default values for the Gemini client.
const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel      = "gemini-2.0-flash"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3

	// articleMaxTokens bounds a single-article summary response.
	articleMaxTokens = 1500
	// topicMaxTokens bounds a meta-analysis response.
	topicMaxTokens = 2000
)

// generateRequest represents the Gemini generateContent request body.
type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

// content is a single conversation turn.
type content struct {
	Parts []part `json:"parts"`
}

// part carries the prompt or response text.
type part struct {
	Text string `json:"text"`
}

// generationConfig controls sampling.
type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// generateResponse represents the Gemini generateContent response body.
type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

// candidate is one generated completion.
type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// ArticleSummary is the outcome of summarizing one abstract. Fallback marks
// summaries produced by the extractive heuristic after the model failed.
type ArticleSummary struct {
	Summary  string
	Type     domain.ArticleType
	Fallback bool
}

// Config holds the parameters needed to create a Gemini client.
// Defined here to avoid importing the config package.
type Config struct {
	// APIKey is the Gemini API key.
	APIKey string
	// Model is the model identifier (e.g. "gemini-2.0-flash").
	Model string
	// BaseURL is the API base URL (empty means default).
	BaseURL string
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// MaxRetries is the total number of attempts before falling back.
	MaxRetries int
	// Temperature controls generation randomness.
	Temperature float64
	// Metrics records retry counters when non-nil.
	Metrics *observability.Metrics
}

// Client calls the Gemini generateContent endpoint.
//
// Failed requests are retried with exponential backoff plus jitter; when all
// attempts fail the client degrades to an extractive summary rather than
// returning an error, so summarization never aborts a digest run.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxRetries  int
	metrics     *observability.Metrics

	// sleep is replaceable in tests to skip real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new Gemini client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		metrics:     cfg.Metrics,
		sleep:       sleepCtx,
	}
}

// Model returns the model identifier being used.
func (c *Client) Model() string {
	return c.model
}

// SummarizeArticle produces a 3-5 sentence summary and a classification for
// one abstract. It never returns an error for model failures: after
// exhausting retries it falls back to an extractive summary classified as
// Other. Only context cancellation aborts the call.
func (c *Client) SummarizeArticle(ctx context.Context, title, abstract string) (*ArticleSummary, error) {
	prompt := buildArticlePrompt(title, abstract)

	text, err := c.generateWithRetry(ctx, prompt, articleMaxTokens)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &ArticleSummary{
			Summary:  ExtractiveSummary(abstract),
			Type:     domain.ArticleTypeOther,
			Fallback: true,
		}, nil
	}

	summary, rawClassification := parseArticleResponse(text)
	if summary == "" {
		summary = ExtractiveSummary(abstract)
	}

	return &ArticleSummary{
		Summary: summary,
		Type:    domain.NormalizeArticleType(rawClassification),
	}, nil
}

// SummarizeTopic produces a sectioned meta-analysis over a collection of
// article abstracts. Like SummarizeArticle it degrades to a static summary
// after exhausting retries instead of failing.
func (c *Client) SummarizeTopic(ctx context.Context, req TopicRequest) (*domain.TopicSummary, error) {
	prompt := buildTopicPrompt(req)

	text, err := c.generateWithRetry(ctx, prompt, topicMaxTokens)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return fallbackTopicSummary(req), nil
	}

	return &domain.TopicSummary{
		FullText:             text,
		Overview:             extractSection(text, "OVERVIEW"),
		KeyFindings:          extractSection(text, "KEY FINDINGS"),
		ResearchTrends:       extractSection(text, "RESEARCH TRENDS"),
		ClinicalImplications: extractSection(text, "CLINICAL IMPLICATIONS"),
		FutureDirections:     extractSection(text, "FUTURE DIRECTIONS"),
	}, nil
}

// generateWithRetry calls generateContent up to maxRetries times with
// exponential backoff plus jitter (random(0,1s) + 1s*2^attempt).
func (c *Client) generateWithRetry(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		text, err := c.generate(ctx, prompt, maxTokens)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if c.metrics != nil {
			c.metrics.SummaryRetries.Inc()
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if attempt < c.maxRetries-1 {
			backoff := time.Duration(rand.Intn(1000))*time.Millisecond +
				time.Second*(1<<attempt)
			if err := c.sleep(ctx, backoff); err != nil {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("gemini: exhausted %d attempts: %w", c.maxRetries, lastErr)
}

// generate performs a single generateContent request and returns the first
// candidate's text.
func (c *Client) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reqBody := generateRequest{
		Contents: []content{
			{Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: maxTokens,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini: failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("gemini: failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", domain.NewExternalAPIError("Gemini", resp.StatusCode, string(respBody), nil)
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("gemini: failed to unmarshal response: %w", err)
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: unexpected response structure")
	}

	text := genResp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", fmt.Errorf("gemini: empty candidate text")
	}

	return text, nil
}

// sleepCtx waits for d, respecting context cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
