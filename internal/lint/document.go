package lint

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is the immutable context handed to every check: the page URL,
// its parsed DOM, and the headers used to request it. It is shared by
// reference across concurrently running checks and must not be mutated.
type Document struct {
	url     string
	base    *url.URL
	dom     *goquery.Document
	html    string
	headers http.Header
}

// NewDocument parses html into a Document for pageURL.
func NewDocument(pageURL string, html string, headers http.Header) (*Document, error) {
	return FromReader(pageURL, strings.NewReader(html), headers)
}

// FromReader parses an HTML stream into a Document for pageURL.
func FromReader(pageURL string, r io.Reader, headers http.Header) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse document url: %w", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{
		url:     pageURL,
		base:    base,
		dom:     dom,
		html:    string(raw),
		headers: cloneHeader(headers),
	}, nil
}

// URL returns the page URL as supplied.
func (d *Document) URL() string {
	return d.url
}

// Find runs a CSS selector against the document root.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.dom.Find(selector)
}

// HTML returns the markup the document was parsed from.
func (d *Document) HTML() string {
	return d.html
}

// Headers returns a copy of the request headers.
func (d *Document) Headers() http.Header {
	return cloneHeader(d.headers)
}

// Resolve turns ref into an absolute URL relative to the document URL.
// It returns the empty string when ref is empty or unparsable.
func (d *Document) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return d.base.ResolveReference(u).String()
}

// Attr returns the value of attr on the first element matching selector.
func (d *Document) Attr(selector, attr string) (string, bool) {
	return d.dom.Find(selector).First().Attr(attr)
}

func cloneHeader(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for k, values := range src {
		dst[k] = append([]string(nil), values...)
	}
	return dst
}
