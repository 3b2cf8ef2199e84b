package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"tutorgate/internal/logging"
)

// fetchRich drives a headless browser to render the page, which handles
// script-built content the simple path cannot see. The whole interaction is
// bounded by the navigation timeout.
func (f *PageFetcher) fetchRich(ctx context.Context, pageURL, cookies string) (text string, err error) {
	defer func() {
		// rod surfaces some failures as panics; convert them into the
		// fallback trigger.
		if r := recover(); r != nil {
			err = fmt.Errorf("browser panic: %v", r)
		}
	}()

	start := time.Now()
	launchURL, err := launcher.New().
		Bin(f.cfg.BrowserBin).
		Headless(true).
		Launch()
	if err != nil {
		return "", fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer browser.Close()

	if cookies != "" {
		if params := cookieParams(pageURL, cookies); len(params) > 0 {
			if err := browser.SetCookies(params); err != nil {
				logging.BrowserDebug("failed to set cookies: %v", err)
			}
		}
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	page = page.Timeout(f.cfg.NavTimeout)

	if err := page.Navigate(pageURL); err != nil {
		return "", fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page load failed: %w", err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page html: %w", err)
	}

	if f.cfg.PersistCookies {
		if got, err := page.Cookies(nil); err == nil {
			logging.Store("page %s set %d cookie(s)", pageURL, len(got))
		}
	}

	text = ExtractText([]byte(html))
	logging.Browser("rich fetch of %s: %d chars in %v", pageURL, len(text), time.Since(start))
	return text, nil
}

// cookieParams parses a "k=v; k2=v2" header string into cookies scoped to
// the target URL's host.
func cookieParams(pageURL, cookies string) []*proto.NetworkCookieParam {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil
	}

	var params []*proto.NetworkCookieParam
	for _, pair := range strings.Split(cookies, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			continue
		}
		params = append(params, &proto.NetworkCookieParam{
			Name:   name,
			Value:  value,
			Domain: u.Hostname(),
			Path:   "/",
		})
	}
	return params
}
