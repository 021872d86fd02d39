package scrape

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pepdex-hq/pepdex-price-harvester/internal/logger"
	"github.com/pepdex-hq/pepdex-price-harvester/pkg/httpclient"
)

// Package scrape retrieves product pages as normalized text suitable for the
// extraction backend. The primary path uses the Firecrawl scrape API; without
// a key it falls back to a plain fetch with HTML-to-text reduction.

const (
	defaultEndpoint = "https://api.firecrawl.dev/v1/scrape"
	requestTimeout  = 60 * time.Second
	fallbackUA      = "Mozilla/5.0 (compatible; PepdexPriceBot/1.0)"
)

// PageCache is the optional content cache consulted before the backend.
type PageCache interface {
	GetPage(url string) (string, bool, error)
	PutPage(url, content string) error
}

// Client fetches page content. Absence of content is reported as an empty
// string with a nil error; the cause is logged, never classified for callers.
type Client struct {
	http     httpclient.Client
	endpoint string
	apiKey   string
	cache    PageCache
}

// NewClient builds a fetcher. An empty apiKey selects the plain-fetch
// fallback path. A nil http client gets the default resty-backed one.
func NewClient(apiKey string, http httpclient.Client) *Client {
	if http == nil {
		http = httpclient.NewRestyClient(requestTimeout)
	}
	return &Client{
		http:     http,
		endpoint: defaultEndpoint,
		apiKey:   apiKey,
	}
}

// WithEndpoint overrides the backend URL. Used by tests.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

// WithCache attaches a page-content cache.
func (c *Client) WithCache(cache PageCache) *Client {
	c.cache = cache
	return c
}

type firecrawlRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type firecrawlResponse struct {
	Data struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
}

// Fetch returns the page at url as normalized text, or "" when the page
// could not be retrieved. No retries; a failed fetch surfaces as the pair's
// error outcome and the pair re-queues by staleness on the next run.
func (c *Client) Fetch(ctx context.Context, url string) string {
	if c.cache != nil {
		if content, found, err := c.cache.GetPage(url); err != nil {
			logger.WarnObj("page cache lookup failed", "cache_error", map[string]any{
				"url":   url,
				"error": err.Error(),
			})
		} else if found {
			return content
		}
	}

	var content string
	if strings.TrimSpace(c.apiKey) != "" {
		content = c.fetchFirecrawl(ctx, url)
	} else {
		content = c.fetchPlain(ctx, url)
	}

	if content != "" && c.cache != nil {
		if err := c.cache.PutPage(url, content); err != nil {
			logger.WarnObj("page cache store failed", "cache_error", map[string]any{
				"url":   url,
				"error": err.Error(),
			})
		}
	}

	return content
}

// fetchFirecrawl asks the scrape backend for a markdown rendition.
func (c *Client) fetchFirecrawl(ctx context.Context, url string) string {
	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}
	body := firecrawlRequest{URL: url, Formats: []string{"markdown"}}

	resp, err := c.http.PostJSON(ctx, c.endpoint, headers, body)
	if err != nil {
		logger.WarnObj("scrape backend request failed", "scrape_error", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
		return ""
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		logger.WarnObj("scrape backend returned error status", "scrape_error", map[string]any{
			"url":    url,
			"status": resp.StatusCode(),
			"body":   bodySnippet(resp.Body()),
		})
		return ""
	}

	var parsed firecrawlResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		logger.WarnObj("scrape backend response malformed", "scrape_error", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
		return ""
	}

	return strings.TrimSpace(parsed.Data.Markdown)
}

// fetchPlain GETs the page directly and reduces the HTML to visible text.
// JS-heavy storefronts may render poorly through this path.
func (c *Client) fetchPlain(ctx context.Context, url string) string {
	headers := map[string]string{
		"User-Agent": fallbackUA,
	}

	resp, err := c.http.Get(ctx, url, headers)
	if err != nil {
		logger.WarnObj("plain fetch failed", "scrape_error", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
		return ""
	}
	if resp.StatusCode() != 200 {
		logger.WarnObj("plain fetch returned error status", "scrape_error", map[string]any{
			"url":    url,
			"status": resp.StatusCode(),
		})
		return ""
	}

	text, err := htmlToText(resp.Body())
	if err != nil {
		logger.WarnObj("html text extraction failed", "scrape_error", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
		return ""
	}
	return text
}

func bodySnippet(body []byte) string {
	if len(body) > 512 {
		body = body[:512]
	}
	return strings.TrimSpace(string(body))
}
