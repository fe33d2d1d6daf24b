package cors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/storylint/internal/ampcache"
	"github.com/JakeFAU/storylint/internal/fetchpool"
	"github.com/JakeFAU/storylint/internal/httpclient"
	"github.com/JakeFAU/storylint/internal/lint"
)

const storyWithEndpoints = `<!doctype html><html><body>
<amp-story standalone bookend-config-src="/bookend.json">
  <amp-list src="/list.json"></amp-list>
  <amp-list src=""></amp-list>
</amp-story>
</body></html>`

type fakeGetter struct {
	mu    sync.Mutex
	calls []http.Header
	fn    func(rawURL string, headers http.Header) (*httpclient.Response, error)
}

func (f *fakeGetter) Get(_ context.Context, rawURL string, headers http.Header) (*httpclient.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, headers.Clone())
	f.mu.Unlock()
	return f.fn(rawURL, headers)
}

func jsonResponse(rawURL string, acao string) *httpclient.Response {
	header := http.Header{}
	header.Set("Content-Type", "application/json; charset=utf-8")
	if acao != "" {
		header.Set("Access-Control-Allow-Origin", acao)
	}
	return &httpclient.Response{URL: rawURL, StatusCode: http.StatusOK, Header: header, Body: []byte(`{"items":[]}`)}
}

func mustDocument(t *testing.T, pageURL, html string) *lint.Document {
	t.Helper()
	doc, err := lint.NewDocument(pageURL, html, http.Header{"Accept-Language": {"en"}})
	require.NoError(t, err)
	return doc
}

func TestEndpointsOrderAndFiltering(t *testing.T) {
	t.Parallel()

	doc := mustDocument(t, "https://example.com/story.html", `<html><body>
<amp-list src="/a.json"></amp-list>
<amp-story bookend-config-src="/config.json"><amp-story-bookend src="/bookend.json"></amp-story-bookend>
<amp-list src="/b.json"></amp-list></amp-story></body></html>`)
	require.Equal(t, []string{"/a.json", "/b.json", "/bookend.json", "/config.json"}, Endpoints(doc))
	require.Equal(t, "/bookend.json", BookendSource(doc))
}

func TestAddSourceOrigin(t *testing.T) {
	t.Parallel()

	got, err := AddSourceOrigin("https://api.example.com/data.json?page=2", "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/data.json?__amp_source_origin=https%3A%2F%2Fexample.com&page=2", got)

	origin, err := SourceOrigin("https://example.com:8443/story/a.html?x=1")
	require.NoError(t, err)
	require.Equal(t, "https://example.com:8443", origin)
}

func TestCacheCheckCartesianExpansion(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Query().Get(SourceOriginParam) == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		origin := r.Header.Get("Origin")
		if r.URL.Path == "/list.json" && strings.HasSuffix(origin, ".amp.cloudflare.com") {
			origin = "https://wrong.example"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := httpclient.New(httpclient.Config{}, fetchpool.New(fetchpool.DefaultSize), nil)
	v := NewValidator(client, ampcache.Defaults(), nil)
	doc := mustDocument(t, srv.URL+"/story.html", storyWithEndpoints)

	out := v.CacheCheck().Run(context.Background(), doc)
	require.True(t, out.IsList())
	require.EqualValues(t, 6, requests.Load())
	verdicts := out.Verdicts()
	require.Len(t, verdicts, 1)
	require.Equal(t, lint.StatusFail, verdicts[0].Status)
	msg := verdicts[0].Message.String()
	require.True(t, strings.HasPrefix(msg, "can't XHR ["+srv.URL+"/list.json]: "), msg)
	require.Contains(t, msg, "access-control-allow-origin header is [https://wrong.example]")
	require.Contains(t, msg, "[debug: curl -i ")
}

func TestSameOriginCheckSendsHeaders(t *testing.T) {
	t.Parallel()

	getter := &fakeGetter{fn: func(rawURL string, _ http.Header) (*httpclient.Response, error) {
		return jsonResponse(rawURL, ""), nil
	}}
	v := NewValidator(getter, nil, nil)
	doc := mustDocument(t, "https://example.com/story.html", storyWithEndpoints)

	out := v.SameOriginCheck().Run(context.Background(), doc)
	require.True(t, out.Passed())
	require.Len(t, getter.calls, 2)
	for _, h := range getter.calls {
		require.Equal(t, "true", h.Get("AMP-Same-Origin"))
		require.Equal(t, "en", h.Get("Accept-Language"))
	}
}

func TestSameOriginFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp func(rawURL string) (*httpclient.Response, error)
		want string
	}{
		{
			name: "status",
			resp: func(rawURL string) (*httpclient.Response, error) {
				r := jsonResponse(rawURL, "")
				r.StatusCode = http.StatusNotFound
				return r, nil
			},
			want: "expected status code: [2xx], actual [404]",
		},
		{
			name: "content type",
			resp: func(rawURL string) (*httpclient.Response, error) {
				r := jsonResponse(rawURL, "")
				r.Header.Set("Content-Type", "text/html")
				return r, nil
			},
			want: "expected content-type: [application/json]; actual: [text/html]",
		},
		{
			name: "invalid body",
			resp: func(rawURL string) (*httpclient.Response, error) {
				r := jsonResponse(rawURL, "")
				r.Body = []byte("<html>" + strings.Repeat("x", 200))
				return r, nil
			},
			want: "couldn't parse body as JSON: <html>" + strings.Repeat("x", 94),
		},
		{
			name: "transport",
			resp: func(string) (*httpclient.Response, error) {
				return nil, errors.New("dial tcp: connection refused")
			},
			want: "dial tcp: connection refused",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			getter := &fakeGetter{fn: func(rawURL string, _ http.Header) (*httpclient.Response, error) {
				return tt.resp(rawURL)
			}}
			v := NewValidator(getter, nil, nil)
			doc := mustDocument(t, "https://example.com/story.html", storyWithEndpoints)
			got := v.SameOrigin(context.Background(), doc, "/list.json")
			require.Equal(t, lint.StatusFail, got.Status)
			require.Contains(t, got.Message.String(), "can't XHR [https://example.com/list.json]: "+tt.want)
		})
	}
}

func TestCacheOriginAcceptsWildcard(t *testing.T) {
	t.Parallel()

	getter := &fakeGetter{fn: func(rawURL string, _ http.Header) (*httpclient.Response, error) {
		return jsonResponse(rawURL, "*"), nil
	}}
	v := NewValidator(getter, nil, nil)
	doc := mustDocument(t, "https://example.com/story.html", storyWithEndpoints)
	got := v.CacheOrigin(context.Background(), doc, "/list.json", ampcache.Defaults()[0])
	require.True(t, got.IsPass())
	require.Equal(t, "https://example-com.cdn.ampproject.org", getter.calls[0].Get("Origin"))
}

func TestNoEndpointsWarns(t *testing.T) {
	t.Parallel()

	getter := &fakeGetter{fn: func(string, http.Header) (*httpclient.Response, error) {
		t.Error("no request expected")
		return nil, errors.New("unexpected")
	}}
	v := NewValidator(getter, ampcache.Defaults(), nil)
	doc := mustDocument(t, "https://example.com/story.html", `<html><body><amp-story standalone></amp-story></body></html>`)

	for _, check := range []lint.Check{v.SameOriginCheck(), v.CacheCheck()} {
		verdicts := check.Run(context.Background(), doc).Verdicts()
		require.Len(t, verdicts, 1)
		require.Equal(t, lint.StatusWarn, verdicts[0].Status)
	}
	for _, check := range []lint.Check{v.BookendSameOriginCheck(), v.BookendCacheCheck()} {
		got := check.Run(context.Background(), doc).Verdict()
		require.Equal(t, lint.Warn("amp-story-bookend missing"), got)
	}
}
