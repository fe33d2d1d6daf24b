// Package cors verifies that the JSON endpoints a story fetches at runtime
// answer both same-origin and cache-origin requests.
package cors

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/storylint/internal/lint"
)

// SourceOriginParam is the query parameter the AMP runtime appends to every
// cross-origin request.
const SourceOriginParam = "__amp_source_origin"

// Endpoints returns the endpoint references declared by doc, in declaration
// order: every amp-list source, then the bookend sources. Empty values are
// dropped; references are returned unresolved.
func Endpoints(doc *lint.Document) []string {
	var out []string
	doc.Find("amp-list[src]").Each(func(_ int, s *goquery.Selection) {
		if src, _ := s.Attr("src"); strings.TrimSpace(src) != "" {
			out = append(out, src)
		}
	})
	if v, _ := doc.Attr("amp-story amp-story-bookend", "src"); strings.TrimSpace(v) != "" {
		out = append(out, v)
	}
	if v, _ := doc.Attr("amp-story", "bookend-config-src"); strings.TrimSpace(v) != "" {
		out = append(out, v)
	}
	return out
}

// BookendSource returns the bookend reference of the story, preferring the
// amp-story-bookend element over the bookend-config-src attribute.
func BookendSource(doc *lint.Document) string {
	if v, _ := doc.Attr("amp-story amp-story-bookend", "src"); strings.TrimSpace(v) != "" {
		return v
	}
	if v, _ := doc.Attr("amp-story", "bookend-config-src"); strings.TrimSpace(v) != "" {
		return v
	}
	return ""
}

// SourceOrigin returns scheme://host of rawURL.
func SourceOrigin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%q has no origin", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// AddSourceOrigin sets the source-origin query parameter on rawURL,
// replacing any existing value.
func AddSourceOrigin(rawURL, origin string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set(SourceOriginParam, origin)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
