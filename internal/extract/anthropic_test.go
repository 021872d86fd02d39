package extract

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pepdex-hq/pepdex-price-harvester/pkg/httpclient"
)

func TestParsePayloadStrictShape(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"valid payload", `{"product_name":"BPC-157 5mg","price_cents":3999}`, true},
		{"payload with prose around it", "Here you go:\n{\"product_name\":\"TB-500 2mg\",\"price_cents\":3299}\nDone.", true},
		{"textual null", `null`, false},
		{"empty response", ``, false},
		{"no json span", `the price is $39.99`, false},
		{"unparsable span", `{"product_name":"BPC-157 5mg","price_cents":}`, false},
		{"missing product name", `{"price_cents":3999}`, false},
		{"missing price", `{"product_name":"BPC-157 5mg"}`, false},
		{"zero price", `{"product_name":"BPC-157 5mg","price_cents":0}`, false},
		{"wrong price type", `{"product_name":"BPC-157 5mg","price_cents":"3999"}`, false},
		{"negative original price", `{"product_name":"BPC-157 5mg","price_cents":3999,"original_price_cents":-1}`, false},
	}

	for _, tc := range cases {
		got := ParsePayload(tc.text)
		if tc.want && got == nil {
			t.Fatalf("%s: expected payload, got nil", tc.name)
		}
		if !tc.want && got != nil {
			t.Fatalf("%s: expected nil, got %+v", tc.name, got)
		}
	}
}

func TestParsePayloadPreservesIntegerCents(t *testing.T) {
	price := ParsePayload(`{"product_name":"BPC-157 5mg","price_cents":3999,"original_price_cents":4999,"sale_info":"20% off"}`)
	if price == nil {
		t.Fatalf("expected payload")
	}
	if price.PriceCents != 3999 {
		t.Fatalf("price must round-trip as integer cents, got %d", price.PriceCents)
	}
	if price.OriginalPriceCents != 4999 {
		t.Fatalf("original price mismatch: %d", price.OriginalPriceCents)
	}
	if price.SaleInfo != "20% off" {
		t.Fatalf("sale info mismatch: %q", price.SaleInfo)
	}
}

func TestFirstJSONObjectHandlesNestedAndStrings(t *testing.T) {
	span := firstJSONObject(`noise {"a":{"b":"} tricky"},"c":1} trailing {"d":2}`)
	if span != `{"a":{"b":"} tricky"},"c":1}` {
		t.Fatalf("unexpected span: %s", span)
	}
}

type fakeResponse struct {
	body   []byte
	status int
}

func (f fakeResponse) Body() []byte    { return f.body }
func (f fakeResponse) StatusCode() int { return f.status }

type fakeHTTP struct {
	lastBody any
	resp     fakeResponse
}

func (f *fakeHTTP) Get(_ context.Context, _ string, _ map[string]string) (httpclient.Response, error) {
	return f.resp, nil
}

func (f *fakeHTTP) PostJSON(_ context.Context, _ string, _ map[string]string, body any) (httpclient.Response, error) {
	f.lastBody = body
	return f.resp, nil
}

func TestExtractTruncatesContentBeforeSubmission(t *testing.T) {
	http := &fakeHTTP{resp: fakeResponse{
		status: 200,
		body:   []byte(`{"content":[{"type":"text","text":"{\"product_name\":\"BPC-157 5mg\",\"price_cents\":3999}"}]}`),
	}}

	client := NewClient("sk-test", 100, http)
	longContent := strings.Repeat("x", 5000)

	price, err := client.Extract(context.Background(), longContent, "BPC-157", "Alpha Labs")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if price == nil || price.PriceCents != 3999 {
		t.Fatalf("unexpected result: %+v", price)
	}

	req, ok := http.lastBody.(messagesRequest)
	if !ok {
		t.Fatalf("unexpected request body type %T", http.lastBody)
	}
	prompt := req.Messages[0].Content
	if !strings.Contains(prompt, strings.Repeat("x", 100)) {
		t.Fatalf("prompt should carry the content prefix")
	}
	if strings.Contains(prompt, strings.Repeat("x", 101)) {
		t.Fatalf("content must be truncated to the configured bound")
	}
	if !strings.Contains(prompt, `"BPC-157"`) || !strings.Contains(prompt, "Alpha Labs") {
		t.Fatalf("prompt must name the peptide and reseller")
	}
}

func TestExtractTruncatesOnRuneBoundary(t *testing.T) {
	http := &fakeHTTP{resp: fakeResponse{
		status: 200,
		body:   []byte(`{"content":[{"type":"text","text":"null"}]}`),
	}}

	// 100 bytes lands inside the 34th three-byte rune, so the cut must back
	// off to the 33-rune prefix instead of submitting a torn byte sequence.
	client := NewClient("sk-test", 100, http)
	content := strings.Repeat("€", 50)

	if _, err := client.Extract(context.Background(), content, "BPC-157", "Alpha Labs"); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	req, ok := http.lastBody.(messagesRequest)
	if !ok {
		t.Fatalf("unexpected request body type %T", http.lastBody)
	}
	prompt := req.Messages[0].Content
	if !utf8.ValidString(prompt) {
		t.Fatalf("prompt must stay valid UTF-8 after truncation")
	}
	if got := strings.Count(prompt, "€"); got != 33 {
		t.Fatalf("expected 33 whole runes to survive truncation, got %d", got)
	}
}

func TestExtractNoResultIsNotAnError(t *testing.T) {
	http := &fakeHTTP{resp: fakeResponse{
		status: 200,
		body:   []byte(`{"content":[{"type":"text","text":"null"}]}`),
	}}

	price, err := NewClient("sk-test", 0, http).Extract(context.Background(), "content", "Selank", "Beta Chems")
	if err != nil {
		t.Fatalf("no-result must not be an error: %v", err)
	}
	if price != nil {
		t.Fatalf("expected nil price, got %+v", price)
	}
}

func TestExtractBackendFailureIsAnError(t *testing.T) {
	http := &fakeHTTP{resp: fakeResponse{status: 529, body: []byte(`overloaded`)}}

	if _, err := NewClient("sk-test", 0, http).Extract(context.Background(), "content", "Selank", "Beta Chems"); err == nil {
		t.Fatalf("expected error for backend failure status")
	}
}

func TestExtractWithoutCredentialFails(t *testing.T) {
	client := NewClient("", 0, &fakeHTTP{})
	if client.Configured() {
		t.Fatalf("client without key must report unconfigured")
	}
	if _, err := client.Extract(context.Background(), "c", "p", "r"); err == nil {
		t.Fatalf("expected configuration error")
	}
}
