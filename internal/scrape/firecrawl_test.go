package scrape

import (
	"context"
	"errors"
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
	getCalls  int
	postCalls int
	lastURL   string
	resp      fakeResponse
	err       error
}

func (f *fakeHTTP) Get(_ context.Context, url string, _ map[string]string) (httpclient.Response, error) {
	f.getCalls++
	f.lastURL = url
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeHTTP) PostJSON(_ context.Context, url string, _ map[string]string, _ any) (httpclient.Response, error) {
	f.postCalls++
	f.lastURL = url
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestFetchUsesScrapeBackendWhenKeyed(t *testing.T) {
	http := &fakeHTTP{resp: fakeResponse{
		status: 200,
		body:   []byte(`{"data":{"markdown":"# BPC-157 5mg\n$39.99"}}`),
	}}

	content := NewClient("fc-key", http).Fetch(context.Background(), "https://alphalabs.example/bpc-157")
	if content != "# BPC-157 5mg\n$39.99" {
		t.Fatalf("unexpected content: %q", content)
	}
	if http.postCalls != 1 || http.getCalls != 0 {
		t.Fatalf("expected one backend POST, got post=%d get=%d", http.postCalls, http.getCalls)
	}
}

func TestFetchBackendFailureYieldsAbsence(t *testing.T) {
	http := &fakeHTTP{resp: fakeResponse{status: 500, body: []byte(`oops`)}}

	if content := NewClient("fc-key", http).Fetch(context.Background(), "https://x.example"); content != "" {
		t.Fatalf("expected empty content on backend failure, got %q", content)
	}
}

func TestFetchTransportErrorYieldsAbsence(t *testing.T) {
	http := &fakeHTTP{err: errors.New("connection refused")}

	if content := NewClient("fc-key", http).Fetch(context.Background(), "https://x.example"); content != "" {
		t.Fatalf("expected empty content on transport error, got %q", content)
	}
}

func TestFetchFallsBackToPlainFetchWithoutKey(t *testing.T) {
	http := &fakeHTTP{resp: fakeResponse{
		status: 200,
		body: []byte(`<html><head><title>BPC-157 5mg</title><style>p{}</style></head>
			<body><script>var x=1;</script><p>BPC-157 5mg</p><span>$39.99</span></body></html>`),
	}}

	content := NewClient("", http).Fetch(context.Background(), "https://alphalabs.example/bpc-157")
	if http.getCalls != 1 || http.postCalls != 0 {
		t.Fatalf("expected one plain GET, got post=%d get=%d", http.postCalls, http.getCalls)
	}
	if !strings.Contains(content, "BPC-157 5mg") || !strings.Contains(content, "$39.99") {
		t.Fatalf("fallback should keep visible text: %q", content)
	}
	if strings.Contains(content, "var x=1") {
		t.Fatalf("fallback must drop script content: %q", content)
	}
}

type fakeCache struct {
	pages map[string]string
	puts  int
}

func (f *fakeCache) GetPage(url string) (string, bool, error) {
	content, ok := f.pages[url]
	return content, ok, nil
}

func (f *fakeCache) PutPage(url, content string) error {
	if f.pages == nil {
		f.pages = map[string]string{}
	}
	f.pages[url] = content
	f.puts++
	return nil
}

func TestFetchPrefersCachedPage(t *testing.T) {
	http := &fakeHTTP{resp: fakeResponse{status: 200, body: []byte(`{"data":{"markdown":"fresh"}}`)}}
	cache := &fakeCache{pages: map[string]string{"https://x.example": "cached"}}

	client := NewClient("fc-key", http).WithCache(cache)
	if content := client.Fetch(context.Background(), "https://x.example"); content != "cached" {
		t.Fatalf("expected cached content, got %q", content)
	}
	if http.postCalls != 0 {
		t.Fatalf("cache hit must not reach the backend")
	}

	// Miss populates the cache.
	if content := client.Fetch(context.Background(), "https://y.example"); content != "fresh" {
		t.Fatalf("expected fresh content, got %q", content)
	}
	if cache.puts != 1 {
		t.Fatalf("expected fetched content to be cached")
	}
}
