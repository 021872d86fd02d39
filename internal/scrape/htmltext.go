package scrape

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxHTMLBodyBytes = 1 << 20 // 1 MiB

// htmlToText reduces an HTML document to its visible text, dropping script,
// style, and navigation chrome. It is a rough substitute for the markdown
// the scrape backend produces, good enough for price extraction on
// server-rendered pages.
func htmlToText(body []byte) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("empty body")
	}
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, iframe, svg").Remove()

	var b strings.Builder
	doc.Find("title, h1, h2, h3, h4, p, li, td, th, span, div, a").Each(func(_ int, sel *goquery.Selection) {
		// Only leaf-ish nodes; containers repeat their children's text.
		if sel.Children().Length() > 0 {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		b.WriteString(text)
		b.WriteByte('\n')
	})

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("no visible text")
	}
	return out, nil
}
