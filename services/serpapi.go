package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ─── SerpAPI Client ───────────────────────────────────────────────────────────

type SerpConfig struct {
	APIKey     string
	BaseURL    string
	RatePerSec float64
	Burst      int
}

// SerpClient is a keyed client for the SerpAPI search endpoint. Calls are
// throttled process-wide but never retried.
type SerpClient struct {
	apiKey     string
	baseURL    string
	limiter    *rate.Limiter
	httpClient *http.Client
}

func NewSerpClient(cfg SerpConfig) *SerpClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://serpapi.com"
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	return &SerpClient{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, burst),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Search runs one query and returns the decoded top-level object. Numbers are
// kept as json.Number so prices render exactly as the provider sent them.
func (c *SerpClient) Search(ctx context.Context, params url.Values) (map[string]any, error) {
	engine := params.Get("engine")
	start := time.Now()

	result, err := c.search(ctx, params)

	providerRequests.WithLabelValues(engine, outcome(err)).Inc()
	providerDuration.WithLabelValues(engine).Observe(time.Since(start).Seconds())
	return result, err
}

func (c *SerpClient) search(ctx context.Context, params url.Values) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read serpapi response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("serpapi error (%d): %s", resp.StatusCode, string(body))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var result map[string]any
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse serpapi response: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("serpapi returned an empty document")
	}
	// A 200 with an "error" field means "no results" and assembles to an empty list.
	return result, nil
}
