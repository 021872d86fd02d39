package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pepdex-hq/pepdex-price-harvester/internal/domain"
)

func writeWebhooksFile(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "webhooks.yaml")
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write webhooks file: %v", err)
	}
	return file
}

func TestLoadWebhooksDefaultsAndFiltering(t *testing.T) {
	file := writeWebhooksFile(t, `
webhooks:
  - id: ops
    url: https://hooks.example/ops
    headers:
      Authorization: "Bearer token"
  - id: disabled-sink
    url: https://hooks.example/old
    enabled: false
`)

	cfgs, err := LoadWebhooks(file)
	if err != nil {
		t.Fatalf("LoadWebhooks: %v", err)
	}
	if len(cfgs) != 1 {
		t.Fatalf("disabled sinks must be dropped, got %d entries", len(cfgs))
	}
	cfg := cfgs[0]
	if cfg.Method != "POST" || cfg.TimeoutSeconds != 5 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Headers["Authorization"] != "Bearer token" {
		t.Fatalf("headers not preserved: %+v", cfg.Headers)
	}
}

func TestLoadWebhooksDuplicateID(t *testing.T) {
	file := writeWebhooksFile(t, `
webhooks:
  - id: ops
    url: https://hooks.example/a
  - id: ops
    url: https://hooks.example/b
`)

	if _, err := LoadWebhooks(file); err == nil {
		t.Fatalf("expected duplicate webhook error, got nil")
	}
}

func TestLoadWebhooksRequiresURL(t *testing.T) {
	file := writeWebhooksFile(t, `
webhooks:
  - id: ops
`)

	if _, err := LoadWebhooks(file); err == nil {
		t.Fatalf("expected validation error, got nil")
	}
}

func TestPublishSummaryDeliversEvent(t *testing.T) {
	var received Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.Header.Get("X-Token") != "secret" {
			t.Errorf("configured header missing")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("decode event: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier([]WebhookConfig{{
		ID:             "ops",
		URL:            srv.URL,
		Method:         "POST",
		Headers:        map[string]string{"X-Token": "secret"},
		TimeoutSeconds: 5,
	}})

	summary := domain.RunSummary{Total: 3, Success: 2, Errors: 1}
	n.PublishSummary(context.Background(), summary)

	if received.Event != "price_refresh_completed" {
		t.Fatalf("unexpected event name %q", received.Event)
	}
	if received.Summary.Total != 3 || received.Summary.Errors != 1 {
		t.Fatalf("unexpected summary payload: %+v", received.Summary)
	}
}

func TestPublishSummaryOneFailingSinkDoesNotBlockOthers(t *testing.T) {
	deliveries := 0
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		deliveries++
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	n := NewNotifier([]WebhookConfig{
		{ID: "bad", URL: bad.URL, Method: "POST", TimeoutSeconds: 5},
		{ID: "good", URL: good.URL, Method: "POST", TimeoutSeconds: 5},
	})

	n.PublishSummary(context.Background(), domain.RunSummary{Total: 1})

	if deliveries != 1 {
		t.Fatalf("healthy sink must still receive the event, got %d deliveries", deliveries)
	}
}

func TestPublishSummaryNoSinksIsANoop(t *testing.T) {
	var n *Notifier
	n.PublishSummary(context.Background(), domain.RunSummary{})
	if n.Size() != 0 {
		t.Fatalf("nil notifier must report zero sinks")
	}
}
