package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pepdex-hq/pepdex-price-harvester/internal/domain"
	"github.com/pepdex-hq/pepdex-price-harvester/pkg/httpclient"
)

// Package search locates a reseller's product page for a peptide via the
// Brave Web Search API with a site-restricted query.

const (
	defaultEndpoint = "https://api.search.brave.com/res/v1/web/search"
	resultLimit     = 5
	requestTimeout  = 15 * time.Second
)

// Client issues product-locate queries against the search backend.
type Client struct {
	http     httpclient.Client
	endpoint string
	apiKey   string
}

// NewClient builds a locator client. A nil http client gets the default
// resty-backed one.
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

// Configured reports whether a backend credential is present. Checked before
// any batch work begins; a missing key is a fatal configuration error, never
// a per-pair failure.
func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.apiKey) != ""
}

// braveResponse mirrors the slice of the Brave payload we consume.
type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Locate searches for a buy page for the peptide on the reseller's domain and
// returns the top-ranked hit. A nil hit with nil error means the search
// produced no results; the caller records that pair as skipped, not failed.
// No retries: a failed pair simply stays stale and re-queues next run.
func (c *Client) Locate(ctx context.Context, peptideName, resellerDomain string) (*domain.SearchHit, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("search backend credential not configured")
	}

	query := buildQuery(peptideName, resellerDomain)

	requestURL := fmt.Sprintf("%s?q=%s&count=%d", c.endpoint, url.QueryEscape(query), resultLimit)
	headers := map[string]string{
		"Accept":               "application/json",
		"X-Subscription-Token": c.apiKey,
	}

	resp, err := c.http.Get(ctx, requestURL, headers)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("search backend status %d", resp.StatusCode())
	}

	var parsed braveResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if len(parsed.Web.Results) == 0 {
		return nil, nil
	}

	top := parsed.Web.Results[0]
	return &domain.SearchHit{
		Title:       top.Title,
		URL:         top.URL,
		Description: top.Description,
	}, nil
}

// buildQuery combines buy intent, the product name, and a site restriction.
func buildQuery(peptideName, resellerDomain string) string {
	host := normalizeHost(resellerDomain)
	if host == "" {
		return fmt.Sprintf("buy %s peptide", peptideName)
	}
	return fmt.Sprintf("buy %s site:%s", peptideName, host)
}

// normalizeHost reduces a base URL to the bare host for the site: filter.
func normalizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return strings.TrimSuffix(strings.TrimPrefix(raw, "www."), "/")
}
