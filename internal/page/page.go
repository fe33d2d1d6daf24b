// Package page loads the story under test into a lint.Document.
package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/storylint/internal/lint"
)

// ErrNoURL is returned when the target URL is missing or not absolute.
var ErrNoURL = errors.New("target url is required")

// FetchRequest describes one page fetch.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the loaded page.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// Fetcher retrieves a page.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// ValidateURL checks that rawURL is an absolute http(s) URL.
func ValidateURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, ErrNoURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) url", ErrNoURL, rawURL)
	}
	return u, nil
}

// Load fetches rawURL and parses it. The document keeps the requested URL
// and the request headers, which checks reuse on their own requests.
func Load(ctx context.Context, fetcher Fetcher, rawURL string, headers http.Header) (*lint.Document, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := fetcher.Fetch(ctx, FetchRequest{URL: u.String(), Headers: headers})
	if err != nil {
		return nil, fmt.Errorf("couldn't load [%s]: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("couldn't load [%s]: %w", u, &lint.StatusError{URL: resp.URL, Code: resp.StatusCode})
	}
	doc, err := lint.NewDocument(u.String(), string(resp.Body), headers)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse [%s]: %w", u, err)
	}
	return doc, nil
}

// FromReader parses a page read from r, such as stdin, as if it had been
// served from baseURL.
func FromReader(baseURL string, r io.Reader, headers http.Header) (*lint.Document, error) {
	u, err := ValidateURL(baseURL)
	if err != nil {
		return nil, err
	}
	doc, err := lint.FromReader(u.String(), r, headers)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse input: %w", err)
	}
	return doc, nil
}

// ParseHeaders turns "Name: value" pairs into a header set.
func ParseHeaders(pairs []string) (http.Header, error) {
	headers := http.Header{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Name: value'", pair)
		}
		headers.Add(name, strings.TrimSpace(value))
	}
	return headers, nil
}
