// Package search wraps the Brave Search API used for optional grounding.
// The backend is a black box; failures surface as errors the pipeline
// converts into empty grounding, never into a failed request.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tutorgate/internal/logging"
)

// GroundingLimit is how many hits are rendered into the prompt.
const GroundingLimit = 5

// Result is one web hit.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Results is the provider-shaped payload returned to the caller alongside
// the reply.
type Results struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Config configures the client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client is the Brave Search client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a search client. An empty API key is allowed; the
// capability then reports unconfigured and searches return an error.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.search.brave.com/res/v1/web/search"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search queries the backend and returns up to GroundingLimit hits.
func (c *Client) Search(ctx context.Context, query string) (*Results, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("search backend not configured")
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search backend returned status %d", resp.StatusCode)
	}

	var br braveResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	out := &Results{Query: query}
	for _, r := range br.Web.Results {
		out.Results = append(out.Results, Result{Title: r.Title, URL: r.URL, Description: r.Description})
		if len(out.Results) == GroundingLimit {
			break
		}
	}

	logging.Search("query %q returned %d hits in %v", query, len(out.Results), time.Since(start))
	return out, nil
}

// RenderGrounding formats hits as prompt grounding text.
func RenderGrounding(res *Results) string {
	if res == nil || len(res.Results) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, r := range res.Results {
		fmt.Fprintf(&sb, "%d. %s (%s)\n   %s\n", i+1, r.Title, r.URL, r.Description)
	}
	return sb.String()
}
