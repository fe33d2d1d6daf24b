package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/storylint/internal/config"
	"github.com/JakeFAU/storylint/internal/lint"
	"github.com/JakeFAU/storylint/internal/page"
)

type mockLinter struct {
	mock.Mock
}

func (m *mockLinter) Lint(ctx context.Context, url string, headers http.Header) (*lint.Report, error) {
	args := m.Called(ctx, url, headers)
	report, _ := args.Get(0).(*lint.Report)
	return report, args.Error(1)
}

type fixedRequestIDs struct{}

func (fixedRequestIDs) NewRequestID() string { return "req-1" }

func sampleReport() *lint.Report {
	return lint.NewReport(map[string]lint.Outcome{
		"ampstory":  lint.One(lint.Pass()),
		"canonical": lint.One(lint.FailDiff("https://a.example/", "https://b.example/")),
		"corscache": lint.Many(nil),
	})
}

func baseConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 8080, Origin: "https://storylint.example", LintTimeoutSeconds: 5},
	}
}

func serve(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestLintReturnsReport(t *testing.T) {
	t.Parallel()

	linter := &mockLinter{}
	linter.On("Lint", mock.Anything, "https://example.com/story.html", mock.Anything).Return(sampleReport(), nil).Once()
	s := NewServer(linter, fixedRequestIDs{}, baseConfig(), zap.NewNop())

	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/lint?url=https%3A%2F%2Fexample.com%2Fstory.html", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t,
		`{"ampstory":{"status":"PASS"},"canonical":{"status":"FAIL","message":{"actual":"https://a.example/","expected":"https://b.example/"}},"corscache":[]}`,
		rec.Body.String(),
	)
	linter.AssertExpectations(t)
}

func TestLintSummary(t *testing.T) {
	t.Parallel()

	linter := &mockLinter{}
	linter.On("Lint", mock.Anything, "https://example.com/", mock.Anything).Return(sampleReport(), nil)
	s := NewServer(linter, fixedRequestIDs{}, baseConfig(), zap.NewNop())

	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/lint?url=https://example.com/&type=summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "canonical", rec.Body.String())
}

func TestLintErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     string
		lintErr    error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "missing url",
			target:     "/lint",
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"status":"error","message":"no [url] query string parameter provided"}`,
		},
		{
			name:       "page not loadable",
			target:     "/lint?url=https://down.example/",
			lintErr:    fmt.Errorf("couldn't load [https://down.example/]: %w", &lint.StatusError{Code: 404}),
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"error","message":"couldn't load [https://down.example/]"}`,
		},
		{
			name:       "not an absolute url",
			target:     "/lint?url=story.html",
			lintErr:    page.ErrNoURL,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"status":"error","message":"couldn't load [story.html]"}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			linter := &mockLinter{}
			linter.On("Lint", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.lintErr)
			s := NewServer(linter, fixedRequestIDs{}, baseConfig(), zap.NewNop())

			rec := serve(t, s, httptest.NewRequest(http.MethodGet, tt.target, nil))
			require.Equal(t, tt.wantStatus, rec.Code)
			require.JSONEq(t, tt.wantBody, rec.Body.String())
			if tt.lintErr == nil {
				linter.AssertNotCalled(t, "Lint", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	s := NewServer(&mockLinter{}, fixedRequestIDs{}, baseConfig(), zap.NewNop())
	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))

	rec = serve(t, s, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	notReady := NewServer(nil, fixedRequestIDs{}, baseConfig(), zap.NewNop())
	rec = serve(t, notReady, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := NewServer(&mockLinter{}, fixedRequestIDs{}, baseConfig(), zap.NewNop())
	serve(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	s := NewServer(&mockLinter{}, fixedRequestIDs{}, cfg, zap.NewNop())

	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "secret")
	require.Equal(t, http.StatusOK, serve(t, s, req).Code)

	rec = serve(t, s, httptest.NewRequest(http.MethodGet, "/healthz?api_key=secret", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitedServer(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.RateLimit = config.RateLimitConfig{RPS: 0.001, Burst: 1}
	s := NewServer(&mockLinter{}, fixedRequestIDs{}, cfg, zap.NewNop())

	require.Equal(t, http.StatusOK, serve(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestAMPCORSHeadersOnLint(t *testing.T) {
	t.Parallel()

	linter := &mockLinter{}
	linter.On("Lint", mock.Anything, mock.Anything, mock.Anything).Return(sampleReport(), nil)
	s := NewServer(linter, fixedRequestIDs{}, baseConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/lint?url=https://example.com/&__amp_source_origin=https%3A%2F%2Fstorylint.example", nil)
	req.Header.Set("AMP-Same-Origin", "true")
	rec := serve(t, s, req)
	require.Equal(t, "https://storylint.example", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "https://storylint.example", rec.Header().Get("AMP-Access-Control-Allow-Source-Origin"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	linter := &mockLinter{}
	linter.On("Lint", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("boom")
	})
	s := NewServer(linter, fixedRequestIDs{}, baseConfig(), zap.NewNop())

	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/lint?url=https://example.com/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"status":"error","message":"internal server error"}`, rec.Body.String())
}

func TestRequestIDFromContext(t *testing.T) {
	t.Parallel()

	require.Empty(t, RequestID(context.Background()))
	ctx := context.WithValue(context.Background(), requestIDKey{}, "abc")
	require.Equal(t, "abc", RequestID(ctx))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	require.EqualError(t, err, "hijacker not supported")

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	require.NoError(t, err)
	require.NotNil(t, buf)
	require.NoError(t, conn.Close())
	require.NoError(t, h.CloseClient())
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(server), bufio.NewWriter(server)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client == nil {
		return errors.New("no client")
	}
	return h.client.Close()
}
