package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pepdex-hq/pepdex-price-harvester/internal/domain"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/logger"
	"github.com/pepdex-hq/pepdex-price-harvester/pkg/httpclient"
)

// Package notify posts a completed run summary to configured webhook sinks.
// Delivery is best effort; failures are logged and never surfaced to the
// refresh pipeline.

// Event is the payload delivered to each webhook.
type Event struct {
	Event   string            `json:"event"`
	Summary domain.RunSummary `json:"summary"`
	SentAt  time.Time         `json:"sent_at"`
}

const eventRefreshCompleted = "price_refresh_completed"

type webhook struct {
	id      string
	method  string
	url     string
	headers map[string]string
	client  *resty.Client
}

func newWebhook(cfg WebhookConfig) *webhook {
	return &webhook{
		id:      cfg.ID,
		method:  cfg.Method,
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  httpclient.NewRestyHTTPClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
	}
}

func (w *webhook) publish(ctx context.Context, evt Event) error {
	req := w.client.R().
		SetContext(ctx).
		SetBody(evt)

	if len(w.headers) > 0 {
		req.SetHeaders(w.headers)
	}
	req.SetHeader("Content-Type", "application/json")

	resp, err := req.Execute(w.method, w.url)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("http response status %d: %s", resp.StatusCode(), bodySnippet(resp.Body()))
	}
	return nil
}

func bodySnippet(body []byte) string {
	if len(body) > 512 {
		body = body[:512]
	}
	return strings.TrimSpace(string(body))
}

// Notifier fans a run summary out to every configured webhook.
type Notifier struct {
	webhooks []*webhook
}

// NewNotifier builds a notifier from active webhook configs.
func NewNotifier(cfgs []WebhookConfig) *Notifier {
	hooks := make([]*webhook, 0, len(cfgs))
	for _, cfg := range cfgs {
		hooks = append(hooks, newWebhook(cfg))
	}
	return &Notifier{webhooks: hooks}
}

// Size returns the number of active webhooks.
func (n *Notifier) Size() int {
	if n == nil {
		return 0
	}
	return len(n.webhooks)
}

// PublishSummary delivers the summary to every webhook sequentially. Each
// sink fails or succeeds on its own.
func (n *Notifier) PublishSummary(ctx context.Context, summary domain.RunSummary) {
	if n == nil || len(n.webhooks) == 0 {
		return
	}

	evt := Event{
		Event:   eventRefreshCompleted,
		Summary: summary,
		SentAt:  time.Now().UTC(),
	}

	for _, hook := range n.webhooks {
		if err := hook.publish(ctx, evt); err != nil {
			logger.WarnObj("webhook delivery failed", "webhook_error", map[string]any{
				"webhook": hook.id,
				"error":   err.Error(),
			})
			continue
		}
		logger.DebugObj("webhook delivered", "webhook_meta", map[string]any{
			"webhook": hook.id,
		})
	}
}
