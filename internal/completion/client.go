// Package completion talks to the external text-completion backend over
// HTTP. The backend is a black box: several response shapes are normalized
// into one string, an unconfigured backend yields a fixed sentinel, and
// transport failures come back as descriptive strings so the request
// pipeline always has a reply to return.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tutorgate/internal/logging"
)

// NotConfiguredSentinel is returned when no API key is configured.
const NotConfiguredSentinel = "Completion backend is not configured. Set LLM_API_KEY to enable replies."

// rawResponseLimit bounds the fallback serialization of unrecognized
// response shapes.
const rawResponseLimit = 400

// Options are the per-call sampling parameters chosen by the heuristics.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Config configures the client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client is the completion backend client.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a completion client. An empty API key is allowed; calls
// then return the not-configured sentinel.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type request struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// response covers the known backend reply shapes: a nested output-text
// field, a choices array (text or message content), and a flat text field.
type response struct {
	Output *struct {
		Text string `json:"text"`
	} `json:"output"`
	Choices []struct {
		Text    string `json:"text"`
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Text string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the prompt and returns a reply string. It never returns an
// error: collaborator failure is a degraded, user-visible string by design.
func (c *Client) Complete(ctx context.Context, prompt string, opts Options) string {
	if !c.Configured() {
		logging.API("completion skipped: backend not configured")
		return NotConfiguredSentinel
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	start := time.Now()
	logging.APIDebug("completion call: model=%s prompt_len=%d max_tokens=%d temp=%.2f",
		c.model, len(prompt), opts.MaxTokens, opts.Temperature)

	body, err := json.Marshal(request{
		Model:       c.model,
		Prompt:      prompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return fmt.Sprintf("Completion request could not be encoded: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Sprintf("Completion request could not be created: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.APIError("completion transport failure: %v", err)
		return fmt.Sprintf("Completion backend unreachable: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logging.APIError("completion read failure: %v", err)
		return fmt.Sprintf("Completion response could not be read: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.APIError("completion backend status %d: %s", resp.StatusCode, truncate(string(raw), rawResponseLimit))
		return fmt.Sprintf("Completion backend returned status %d: %s", resp.StatusCode, truncate(string(raw), rawResponseLimit))
	}

	reply := Normalize(raw)
	logging.API("completion ok in %v: reply_len=%d", time.Since(start), len(reply))
	return reply
}

// Normalize extracts the reply text from any of the known response shapes.
// Unrecognized shapes fall back to a bounded serialization of the raw body
// so failures stay diagnosable.
func Normalize(raw []byte) string {
	var r response
	if err := json.Unmarshal(raw, &r); err == nil {
		if r.Error != nil && r.Error.Message != "" {
			return fmt.Sprintf("Completion backend error: %s", r.Error.Message)
		}
		if r.Output != nil && strings.TrimSpace(r.Output.Text) != "" {
			return strings.TrimSpace(r.Output.Text)
		}
		if len(r.Choices) > 0 {
			choice := r.Choices[0]
			if choice.Message != nil && strings.TrimSpace(choice.Message.Content) != "" {
				return strings.TrimSpace(choice.Message.Content)
			}
			if strings.TrimSpace(choice.Text) != "" {
				return strings.TrimSpace(choice.Text)
			}
		}
		if strings.TrimSpace(r.Text) != "" {
			return strings.TrimSpace(r.Text)
		}
	}
	return truncate(strings.TrimSpace(string(raw)), rawResponseLimit)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
