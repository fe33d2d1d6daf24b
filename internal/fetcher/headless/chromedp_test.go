package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/storylint/internal/page"
)

func TestNewChromedpDefaults(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1}, nil)
	require.Error(t, err)

	fetcher, err := NewChromedp(Config{MaxParallel: 2}, nil)
	require.NoError(t, err)
	t.Cleanup(fetcher.Close)
	require.Equal(t, 2, cap(fetcher.limiter))
	require.Equal(t, 45*time.Second, fetcher.cfg.NavigationTimeout)
	require.Equal(t, "body", fetcher.cfg.WaitSelector)
	require.Equal(t, 500*time.Millisecond, fetcher.cfg.Settle)

	unbounded, err := NewChromedp(Config{WaitSelector: "amp-story", Settle: time.Second}, nil)
	require.NoError(t, err)
	t.Cleanup(unbounded.Close)
	require.Nil(t, unbounded.limiter)
	require.Equal(t, "amp-story", unbounded.cfg.WaitSelector)
	require.Equal(t, time.Second, unbounded.cfg.Settle)
}

func TestAcquireHonoursContext(t *testing.T) {
	t.Parallel()

	fetcher := &Fetcher{limiter: make(chan struct{}, 1)}
	require.NoError(t, fetcher.acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, fetcher.acquire(ctx), context.Canceled)

	fetcher.release()
	require.NoError(t, fetcher.acquire(context.Background()))
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	headers := toNetworkHeaders(http.Header{
		"X-Multi":  {"a", "b"},
		"X-Single": {"c"},
		"X-Empty":  {},
	})
	require.Equal(t, []string{"a", "b"}, headers["X-Multi"])
	require.Equal(t, "c", headers["X-Single"])
	require.NotContains(t, headers, "X-Empty")
}

func TestDocumentResponseKeepsFirstDocument(t *testing.T) {
	t.Parallel()

	doc := &documentResponse{headers: http.Header{}}
	doc.listen(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 404, URL: "https://cdn.ampproject.org/v0.js"},
	})
	doc.listen(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  203,
			URL:     "https://example.com/story.html",
			Headers: network.Headers{"Content-Type": "text/html", "Link": []any{"a", "b"}},
		},
	})
	doc.listen(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 500, URL: "https://example.com/frame.html"},
	})

	status, headers, url := doc.resolve("https://req", "https://location")
	require.Equal(t, 203, status)
	require.Equal(t, "https://example.com/story.html", url)
	require.Equal(t, "text/html", headers.Get("Content-Type"))
	require.Equal(t, []string{"a", "b"}, headers.Values("Link"))
}

func TestDocumentResponseFallbacks(t *testing.T) {
	t.Parallel()

	doc := &documentResponse{headers: http.Header{}}
	status, _, url := doc.resolve("https://req", "https://final")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://final", url)

	_, _, url = doc.resolve("https://req", "")
	require.Equal(t, "https://req", url)
}

func TestNoopFetcherError(t *testing.T) {
	t.Parallel()

	_, err := NewNoop().Fetch(context.Background(), page.FetchRequest{URL: "https://example.com"})
	require.ErrorIs(t, err, ErrNotConfigured)
}
