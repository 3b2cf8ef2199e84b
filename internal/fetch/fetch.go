// Package fetch retrieves page content for grounding. The rich path drives
// a headless browser (go-rod) when a browser binary is configured; any
// failure there falls back to a plain HTTP GET. Both paths reduce the page
// to visible text.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"tutorgate/internal/logging"
)

// Fetcher retrieves the visible text of a page.
type Fetcher interface {
	FetchText(ctx context.Context, pageURL, cookies string) (string, error)
	// RichAvailable reports whether the headless-browser path is enabled.
	RichAvailable() bool
}

// Config configures the page fetcher.
type Config struct {
	// BrowserBin is the headless browser executable. Empty disables the
	// rich path.
	BrowserBin     string
	NavTimeout     time.Duration
	PersistCookies bool
}

// PageFetcher implements the two-step fetch strategy.
type PageFetcher struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a page fetcher.
func New(cfg Config) *PageFetcher {
	if cfg.NavTimeout == 0 {
		cfg.NavTimeout = 25 * time.Second
	}
	return &PageFetcher{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// RichAvailable reports whether the browser path is configured.
func (f *PageFetcher) RichAvailable() bool {
	return f.cfg.BrowserBin != ""
}

// FetchText fetches the page and extracts its visible text. The rich
// browser path runs first when available; an error from it is the fallback
// trigger for the plain GET.
func (f *PageFetcher) FetchText(ctx context.Context, pageURL, cookies string) (string, error) {
	if f.RichAvailable() {
		text, err := f.fetchRich(ctx, pageURL, cookies)
		if err == nil {
			return text, nil
		}
		logging.Browser("rich fetch of %s failed, falling back to simple fetch: %v", pageURL, err)
	}
	return f.fetchSimple(ctx, pageURL, cookies)
}

// fetchSimple is the non-interactive path: one GET with the forwarded
// cookie header.
func (f *PageFetcher) fetchSimple(ctx context.Context, pageURL, cookies string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create fetch request: %w", err)
	}
	req.Header.Set("User-Agent", "tutorgate/1.0")
	if cookies != "" {
		req.Header.Set("Cookie", cookies)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("page fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read page body: %w", err)
	}

	text := ExtractText(body)
	logging.BrowserDebug("simple fetch of %s: %d chars of text", pageURL, len(text))
	return text, nil
}
