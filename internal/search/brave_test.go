package search

import (
	"context"
	"strings"
	"testing"

	"github.com/pepdex-hq/pepdex-price-harvester/pkg/httpclient"
)

type fakeResponse struct {
	body   []byte
	status int
}

func (f fakeResponse) Body() []byte    { return f.body }
func (f fakeResponse) StatusCode() int { return f.status }

type fakeHTTP struct {
	lastURL     string
	lastHeaders map[string]string
	resp        fakeResponse
	err         error
}

func (f *fakeHTTP) Get(_ context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	f.lastURL = url
	f.lastHeaders = headers
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeHTTP) PostJSON(_ context.Context, url string, headers map[string]string, _ any) (httpclient.Response, error) {
	return f.Get(context.Background(), url, headers)
}

func TestLocateReturnsTopHit(t *testing.T) {
	http := &fakeHTTP{resp: fakeResponse{
		status: 200,
		body: []byte(`{"web":{"results":[
			{"title":"BPC-157 5mg","url":"https://alphalabs.example/bpc-157","description":"Buy BPC-157"},
			{"title":"Other","url":"https://alphalabs.example/other","description":"second"}
		]}}`),
	}}

	client := NewClient("test-key", http)
	hit, err := client.Locate(context.Background(), "BPC-157", "https://www.alphalabs.example")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if hit == nil {
		t.Fatalf("expected a hit")
	}
	if hit.URL != "https://alphalabs.example/bpc-157" {
		t.Fatalf("expected top-ranked hit, got %s", hit.URL)
	}

	if got := http.lastHeaders["X-Subscription-Token"]; got != "test-key" {
		t.Fatalf("missing credential header, got %q", got)
	}
	if !strings.Contains(http.lastURL, "buy+BPC-157+site%3Awww.alphalabs.example") {
		t.Fatalf("query should carry buy intent and site restriction: %s", http.lastURL)
	}
	if !strings.Contains(http.lastURL, "count=5") {
		t.Fatalf("expected fixed result limit in %s", http.lastURL)
	}
}

func TestLocateZeroResultsIsNotAnError(t *testing.T) {
	http := &fakeHTTP{resp: fakeResponse{status: 200, body: []byte(`{"web":{"results":[]}}`)}}

	hit, err := NewClient("test-key", http).Locate(context.Background(), "Selank", "betachems.example")
	if err != nil {
		t.Fatalf("zero results must not be an error: %v", err)
	}
	if hit != nil {
		t.Fatalf("expected nil hit, got %+v", hit)
	}
}

func TestLocateBackendFailureIsAnError(t *testing.T) {
	http := &fakeHTTP{resp: fakeResponse{status: 429, body: []byte(`rate limited`)}}

	if _, err := NewClient("test-key", http).Locate(context.Background(), "Selank", "betachems.example"); err == nil {
		t.Fatalf("expected error for non-200 backend status")
	}
}

func TestLocateWithoutCredentialFails(t *testing.T) {
	client := NewClient("", &fakeHTTP{})
	if client.Configured() {
		t.Fatalf("client without key must report unconfigured")
	}
	if _, err := client.Locate(context.Background(), "Selank", "x.example"); err == nil {
		t.Fatalf("expected configuration error")
	}
}
