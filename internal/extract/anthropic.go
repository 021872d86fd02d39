package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pepdex-hq/pepdex-price-harvester/internal/domain"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/logger"
	"github.com/pepdex-hq/pepdex-price-harvester/pkg/httpclient"
)

// Package extract turns scraped page content into a structured price record
// via the Anthropic messages API. The backend's output is fundamentally
// approximate, so every deviation from the strict payload shape is treated
// as absence rather than propagated into the store.

const (
	defaultEndpoint = "https://api.anthropic.com/v1/messages"
	defaultModel    = "claude-sonnet-4-20250514"
	apiVersion      = "2023-06-01"
	maxTokens       = 1024
	requestTimeout  = 60 * time.Second
	defaultMaxChars = 8000
)

const promptTemplate = `Extract the price information for the peptide %q from this content scraped from %s's website.

Return a JSON object with:
- product_name: The full product name/description (e.g., "BPC-157 5mg")
- price_cents: The current price in cents (e.g., 3999 for $39.99)
- original_price_cents: The original price in cents if there's a discount (optional)
- sale_info: Any active promotion or discount code (optional)
- bulk_pricing: Bulk or quantity discount details (optional)
- shipping: Shipping information if available (optional)
- return_policy: Return policy details if available (optional)

If you cannot find price information for this peptide, return null.

Content:
%s

Respond with ONLY the JSON object or null, no other text.`

// Client calls the extraction backend.
type Client struct {
	http     httpclient.Client
	endpoint string
	apiKey   string
	model    string
	maxChars int
}

// NewClient builds an extractor client. A nil http client gets the default
// resty-backed one.
func NewClient(apiKey string, maxChars int, http httpclient.Client) *Client {
	if http == nil {
		http = httpclient.NewRestyClient(requestTimeout)
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Client{
		http:     http,
		endpoint: defaultEndpoint,
		apiKey:   apiKey,
		model:    defaultModel,
		maxChars: maxChars,
	}
}

// WithEndpoint overrides the backend URL. Used by tests.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

// Configured reports whether a backend credential is present.
func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.apiKey) != ""
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Extract asks the backend to locate pricing for the named peptide inside the
// reseller's page content. Content beyond the configured prefix is never
// submitted. A nil result with nil error means the backend found no price or
// produced an unusable payload; only transport/backend failures are errors.
func (c *Client) Extract(ctx context.Context, content, peptideName, resellerName string) (*domain.ExtractedPrice, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("extraction backend credential not configured")
	}

	if len(content) > c.maxChars {
		// Back off to a rune boundary so the cut never produces invalid UTF-8.
		cut := c.maxChars
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}

	reqBody := messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []message{{
			Role:    "user",
			Content: fmt.Sprintf(promptTemplate, peptideName, resellerName, content),
		}},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": apiVersion,
	}

	resp, err := c.http.PostJSON(ctx, c.endpoint, headers, reqBody)
	if err != nil {
		return nil, fmt.Errorf("extraction request: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("extraction backend status %d", resp.StatusCode())
	}

	var parsed messagesResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	price := ParsePayload(text)
	if price == nil {
		logger.DebugObj("extraction produced no usable payload", "extract_miss", map[string]any{
			"peptide":  peptideName,
			"reseller": resellerName,
		})
	}
	return price, nil
}

// ParsePayload scans the raw model response for the first top-level JSON
// object and validates it against the strict payload shape. A textual
// "null", a missing JSON span, unparsable JSON, missing required fields,
// and a non-positive price all yield nil.
func ParsePayload(text string) *domain.ExtractedPrice {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if strings.Contains(strings.ToLower(trimmed), "null") && !strings.Contains(trimmed, "{") {
		return nil
	}

	span := firstJSONObject(trimmed)
	if span == "" {
		return nil
	}

	var price domain.ExtractedPrice
	if err := json.Unmarshal([]byte(span), &price); err != nil {
		return nil
	}

	// Required fields are present together or the result is absent entirely.
	if strings.TrimSpace(price.ProductName) == "" || price.PriceCents <= 0 {
		return nil
	}
	if price.OriginalPriceCents < 0 {
		return nil
	}

	return &price
}

// firstJSONObject returns the first balanced top-level {...} span, honoring
// string literals and escapes.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
