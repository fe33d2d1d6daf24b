// Package detector decides when a story needs a headless render before it
// can be linted, and wraps a plain fetcher with that decision.
package detector

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/storylint/internal/page"
)

const (
	defaultBodyThreshold = 2048
	// scriptSharePercent is the share of a short body that client scripts
	// must cover before it counts as an unrendered shell.
	scriptSharePercent = 25
)

// Heuristic promotes pages that look like client-rendered shells.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector. A zero threshold uses 2048 bytes.
func NewHeuristic(threshold int) *Heuristic {
	if threshold == 0 {
		threshold = defaultBodyThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var (
	storyMarker = []byte("<amp-story")
	rootMarkers = [][]byte{
		[]byte("__next"),
		[]byte(`id="root"`),
		[]byte(`id="app"`),
		[]byte("data-reactroot"),
	}
)

// ShouldPromote reports whether resp looks like a client-rendered shell
// rather than a served story. Pages that already carry an amp-story element
// are never promoted, nor are responses that were already rendered.
func (h *Heuristic) ShouldPromote(resp page.FetchResponse) bool {
	if resp.StatusCode != 200 || resp.Rendered {
		return false
	}
	body := resp.Body
	switch {
	case len(body) == 0:
		return true
	case bytes.Contains(bytes.ToLower(body), storyMarker):
		return false
	case hasRootMarker(body):
		return true
	case len(body) < h.BodyLengthThreshold:
		return clientScriptShare(body) >= scriptSharePercent
	}
	return false
}

func hasRootMarker(body []byte) bool {
	for _, marker := range rootMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// clientScriptShare returns the percentage of body taken by script elements
// that build the page on the client. The AMP runtime and extensions, and
// structured data blocks, are part of every served story and are ignored.
func clientScriptShare(body []byte) int {
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0
	}
	covered := 0
	dom.Find("script").Each(func(_ int, s *goquery.Selection) {
		if !isClientScript(s) {
			return
		}
		html, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		covered += len(html)
	})
	return covered * 100 / len(body)
}

func isClientScript(s *goquery.Selection) bool {
	kind := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
	if strings.HasSuffix(kind, "json") {
		return false
	}
	src := strings.ToLower(s.AttrOr("src", ""))
	return !strings.HasPrefix(src, "https://cdn.ampproject.org/")
}
