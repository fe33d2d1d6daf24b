package cors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/storylint/internal/ampcache"
	"github.com/JakeFAU/storylint/internal/httpclient"
	"github.com/JakeFAU/storylint/internal/lint"
)

const bodyPreviewLimit = 100

// Getter is the subset of httpclient.Client the validator needs.
type Getter interface {
	Get(ctx context.Context, rawURL string, headers http.Header) (*httpclient.Response, error)
}

// Validator runs the same-origin and cache-origin policies.
type Validator struct {
	client  Getter
	domains []ampcache.Domain
	logger  *zap.Logger
}

// NewValidator builds a Validator probing every domain in domains.
func NewValidator(client Getter, domains []ampcache.Domain, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		client:  client,
		domains: append([]ampcache.Domain(nil), domains...),
		logger:  logger,
	}
}

// Domains returns the cache domains the validator probes.
func (v *Validator) Domains() []ampcache.Domain {
	return append([]ampcache.Domain(nil), v.domains...)
}

// SameOrigin checks that endpoint answers a same-origin request from doc.
func (v *Validator) SameOrigin(ctx context.Context, doc *lint.Document, endpoint string) lint.Verdict {
	resolved, target, err := v.target(doc, endpoint)
	if err != nil {
		return xhrFailure(endpoint, err, "")
	}
	headers := http.Header{}
	headers.Set("AMP-Same-Origin", "true")
	mergeHeaders(headers, doc.Headers())

	curl := httpclient.Curl(target, headers)
	resp, err := v.client.Get(ctx, target, headers)
	if err != nil {
		return xhrFailure(resolved, err, curl)
	}
	if err := requireOK(resp); err != nil {
		return xhrFailure(resolved, err, curl)
	}
	if err := requireJSON(resp); err != nil {
		return xhrFailure(resolved, err, curl)
	}
	v.logger.Debug("same-origin request passed", zap.String("url", target))
	return lint.Pass()
}

// CacheOrigin checks that endpoint answers a request issued by doc as served
// from the cache identified by domain.
func (v *Validator) CacheOrigin(
	ctx context.Context,
	doc *lint.Document,
	endpoint string,
	domain ampcache.Domain,
) lint.Verdict {
	resolved, target, err := v.target(doc, endpoint)
	if err != nil {
		return xhrFailure(endpoint, err, "")
	}
	origin, err := ampcache.Origin(domain.DomainSuffix, doc.URL())
	if err != nil {
		return xhrFailure(resolved, err, "")
	}
	headers := http.Header{}
	headers.Set("Origin", origin)
	mergeHeaders(headers, doc.Headers())

	curl := httpclient.Curl(target, headers)
	resp, err := v.client.Get(ctx, target, headers)
	if err != nil {
		return xhrFailure(resolved, err, curl)
	}
	if err := requireOK(resp); err != nil {
		return xhrFailure(resolved, err, curl)
	}
	if acao := resp.Header.Get("Access-Control-Allow-Origin"); acao != origin && acao != "*" {
		err := fmt.Errorf("%w: access-control-allow-origin header is [%s], expected [%s]", lint.ErrValidation, acao, origin)
		return xhrFailure(resolved, err, curl)
	}
	if err := requireJSON(resp); err != nil {
		return xhrFailure(resolved, err, curl)
	}
	v.logger.Debug("cache-origin request passed", zap.String("url", target), zap.String("cache", domain.ID))
	return lint.Pass()
}

// SameOriginCheck probes every declared endpoint with the same-origin policy.
func (v *Validator) SameOriginCheck() lint.Check {
	return lint.Multi("CorsSameOrigin", func(ctx context.Context, doc *lint.Document) ([]lint.Verdict, error) {
		endpoints := Endpoints(doc)
		if len(endpoints) == 0 {
			return []lint.Verdict{lint.Warn("no cors endpoints found")}, nil
		}
		return lint.FanOut(ctx, len(endpoints), func(ctx context.Context, i int) lint.Verdict {
			return v.SameOrigin(ctx, doc, endpoints[i])
		}), nil
	})
}

// CacheCheck probes every endpoint against every cache domain. Requests are
// issued endpoints-outer, domains-inner.
func (v *Validator) CacheCheck() lint.Check {
	return lint.Multi("CorsCache", func(ctx context.Context, doc *lint.Document) ([]lint.Verdict, error) {
		endpoints := Endpoints(doc)
		if len(endpoints) == 0 {
			return []lint.Verdict{lint.Warn("no cors endpoints found")}, nil
		}
		n := len(v.domains)
		return lint.FanOut(ctx, len(endpoints)*n, func(ctx context.Context, i int) lint.Verdict {
			return v.CacheOrigin(ctx, doc, endpoints[i/n], v.domains[i%n])
		}), nil
	})
}

// BookendSameOriginCheck applies the same-origin policy to the bookend.
func (v *Validator) BookendSameOriginCheck() lint.Check {
	return lint.Single("BookendSameOrigin", func(ctx context.Context, doc *lint.Document) (lint.Verdict, error) {
		src := BookendSource(doc)
		if src == "" {
			return lint.Warn("amp-story-bookend missing"), nil
		}
		return v.SameOrigin(ctx, doc, src), nil
	})
}

// BookendCacheCheck applies the cache-origin policy to the bookend using
// the Google cache.
func (v *Validator) BookendCacheCheck() lint.Check {
	return lint.Single("BookendCache", func(ctx context.Context, doc *lint.Document) (lint.Verdict, error) {
		src := BookendSource(doc)
		if src == "" {
			return lint.Warn("amp-story-bookend missing"), nil
		}
		return v.CacheOrigin(ctx, doc, src, ampcache.Defaults()[0]), nil
	})
}

// target resolves endpoint against doc and returns it with and without the
// source-origin parameter.
func (v *Validator) target(doc *lint.Document, endpoint string) (string, string, error) {
	resolved := doc.Resolve(endpoint)
	if resolved == "" {
		return "", "", fmt.Errorf("%w: invalid endpoint %q", lint.ErrParse, endpoint)
	}
	sourceOrigin, err := SourceOrigin(doc.URL())
	if err != nil {
		return "", "", err
	}
	target, err := AddSourceOrigin(resolved, sourceOrigin)
	if err != nil {
		return "", "", err
	}
	return resolved, target, nil
}

func mergeHeaders(dst, src http.Header) {
	for k, values := range src {
		dst[k] = append([]string(nil), values...)
	}
}

func requireOK(resp *httpclient.Response) error {
	if resp.OK() {
		return nil
	}
	return &lint.StatusError{URL: resp.URL, Code: resp.StatusCode}
}

func requireJSON(resp *httpclient.Response) error {
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	contentType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if contentType != "application/json" {
		return fmt.Errorf("%w: expected content-type: [application/json]; actual: [%s]", lint.ErrContentType, contentType)
	}
	if !json.Valid(resp.Body) {
		return fmt.Errorf("%w: couldn't parse body as JSON: %s", lint.ErrParse, preview(resp.Body))
	}
	return nil
}

func preview(body []byte) string {
	runes := []rune(string(body))
	if len(runes) > bodyPreviewLimit {
		runes = runes[:bodyPreviewLimit]
	}
	return string(runes)
}

// xhrFailure formats a failed probe. Sentinel prefixes are stripped so the
// message reads like the runtime's own XHR error.
func xhrFailure(target string, err error, curl string) lint.Verdict {
	msg := reason(err)
	if curl == "" {
		return lint.Failf("can't XHR [%s]: %s", target, msg)
	}
	return lint.Failf("can't XHR [%s]: %s [debug: %s]", target, msg, curl)
}

func reason(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{lint.ErrValidation, lint.ErrContentType, lint.ErrParse} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return msg
}
