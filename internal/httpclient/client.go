// Package httpclient issues every outbound request made by checks through
// a shared fetch pool.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/storylint/internal/fetchpool"
	"github.com/JakeFAU/storylint/internal/lint"
	"github.com/JakeFAU/storylint/internal/metrics"
)

// UserAgentGooglebotMobile is the crawler identity used for outbound calls.
const UserAgentGooglebotMobile = "Mozilla/5.0 (Linux; Android 6.0.1; Nexus 5X Build/MMB29P) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/41.0.2272.96 Mobile Safari/537.36 " +
	"(compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

const defaultMaxBodyBytes = 16 << 20

// Config controls client behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// Response is a fully read HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client performs pooled GET and HEAD requests.
type Client struct {
	cfg    Config
	pool   *fetchpool.Pool
	http   *http.Client
	logger *zap.Logger
}

// New builds a Client. A nil pool gets a default-sized one; a nil logger is
// replaced with a no-op logger.
func New(cfg Config, pool *fetchpool.Pool, logger *zap.Logger) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = UserAgentGooglebotMobile
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if pool == nil {
		pool = fetchpool.New(fetchpool.DefaultSize)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		pool:   pool,
		http:   &http.Client{Transport: newHTTPTransport(), Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Pool returns the pool gating this client.
func (c *Client) Pool() *fetchpool.Pool {
	return c.pool
}

// Get fetches rawURL and reads the body, up to Config.MaxBodyBytes.
func (c *Client) Get(ctx context.Context, rawURL string, headers http.Header) (*Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, headers, c.cfg.MaxBodyBytes)
}

// GetPrefix fetches rawURL and reads at most limit bytes of the body. The
// rest of the response is discarded when the connection closes.
func (c *Client) GetPrefix(ctx context.Context, rawURL string, headers http.Header, limit int64) (*Response, error) {
	if limit <= 0 || limit > c.cfg.MaxBodyBytes {
		limit = c.cfg.MaxBodyBytes
	}
	return c.do(ctx, http.MethodGet, rawURL, headers, limit)
}

// Head issues a HEAD request.
func (c *Client) Head(ctx context.Context, rawURL string, headers http.Header) (*Response, error) {
	return c.do(ctx, http.MethodHead, rawURL, headers, 0)
}

// FinalURL fetches rawURL following redirects and returns the URL of the
// last response. The body is not read.
func (c *Client) FinalURL(ctx context.Context, rawURL string, headers http.Header) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL, headers, 0)
	if err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (c *Client) do(
	ctx context.Context,
	method string,
	rawURL string,
	headers http.Header,
	bodyLimit int64,
) (*Response, error) {
	return fetchpool.Run(ctx, c.pool, func(ctx context.Context) (*Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request %s: %w", rawURL, err)
		}
		for key, values := range headers {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", c.cfg.UserAgent)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			metrics.ObserveOutbound(method, 0)
			c.logger.Debug("outbound request failed", zap.String("method", method), zap.String("url", rawURL), zap.Error(err))
			return nil, fmt.Errorf("%w: %s %s: %v", lint.ErrNetwork, method, rawURL, err)
		}
		defer func() {
			if cerr := resp.Body.Close(); cerr != nil {
				c.logger.Debug("close response body", zap.Error(cerr))
			}
		}()
		metrics.ObserveOutbound(method, resp.StatusCode)

		out := &Response{
			URL:        resp.Request.URL.String(),
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
		}
		if bodyLimit > 0 {
			body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
			if err != nil {
				return nil, fmt.Errorf("%w: read body %s: %v", lint.ErrNetwork, rawURL, err)
			}
			out.Body = body
		}
		c.logger.Debug("outbound request",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode),
		)
		return out, nil
	})
}

// Curl renders an equivalent curl command line for diagnostics. Headers are
// emitted in sorted order so the output is reproducible.
func Curl(rawURL string, headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []string{"curl -i"}
	for _, k := range keys {
		for _, v := range headers[k] {
			parts = append(parts, fmt.Sprintf("-H '%s: %s'", strings.ToLower(k), v))
		}
	}
	parts = append(parts, fmt.Sprintf("'%s'", rawURL))
	return strings.Join(parts, " ")
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
