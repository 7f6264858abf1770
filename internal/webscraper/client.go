// Package webscraper is a thin JSON client for the headless-browser
// component the engine calls out to for PageTarget trackers, shaped like
// IshaanNene-ScrapeGoat-And-ArchEnemy/internal/fetcher's HTTPFetcher:
// configurable timeout, single entry point, status-code branching into
// client vs transport errors.
package webscraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/retrack-engine/retrack/internal/domain"
)

// Client calls the page-render component's execute endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client targeting baseURL with the given request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type executeRequest struct {
	URL       string            `json:"url"`
	UserAgent string            `json:"user_agent,omitempty"`
	Engine    string            `json:"engine,omitempty"`
	Extractor string            `json:"extractor,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

type executeErrorResponse struct {
	Message string `json:"message"`
}

// Render implements fetch.WebScraperClient: it POSTs the page target to
// the component's /api/web_page/execute endpoint and returns the raw
// response body alongside its media type.
func (c *Client) Render(ctx context.Context, target domain.PageTarget) ([]byte, string, error) {
	payload, err := json.Marshal(executeRequest{
		URL:       target.URL,
		UserAgent: target.UserAgent,
		Engine:    target.Engine,
		Extractor: target.ExtractorScript,
	})
	if err != nil {
		return nil, "", domain.NewEngineError(domain.KindUnknown, fmt.Errorf("marshal render request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/web_page/execute", bytes.NewReader(payload))
	if err != nil {
		return nil, "", domain.NewEngineError(domain.KindUnknown, fmt.Errorf("build render request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", domain.NewEngineError(domain.KindFetch, fmt.Errorf("render request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", domain.NewEngineError(domain.KindFetch, fmt.Errorf("read render response: %w", err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		mediaType := resp.Header.Get("Content-Type")
		if mediaType == "" {
			mediaType = "text/html"
		}
		return body, mediaType, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var errResp executeErrorResponse
		msg := string(body)
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			msg = errResp.Message
		}
		return nil, "", domain.NewEngineError(domain.KindClient, fmt.Errorf("render rejected: %s", msg))
	default:
		return nil, "", domain.NewEngineError(domain.KindFetch, fmt.Errorf("render failed with status %d", resp.StatusCode))
	}
}
