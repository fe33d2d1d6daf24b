package checks

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/storylint/internal/httpclient"
	"github.com/JakeFAU/storylint/internal/lint"
)

// maxVideoBytes is the largest video a story should embed.
const maxVideoBytes = 4000000

// Fetcher is the outbound HTTP surface used by the canonical and video
// checks.
type Fetcher interface {
	FinalURL(ctx context.Context, rawURL string, headers http.Header) (string, error)
	Head(ctx context.Context, rawURL string, headers http.Header) (*httpclient.Response, error)
}

// Canonical requires the canonical link to point at the document itself and
// to be served without redirecting elsewhere.
func Canonical(fetcher Fetcher, logger *zap.Logger) lint.Check {
	if logger == nil {
		logger = zap.NewNop()
	}
	return lint.Single("Canonical", func(ctx context.Context, doc *lint.Document) (lint.Verdict, error) {
		href, _ := doc.Attr(`link[rel="canonical"]`, "href")
		if strings.TrimSpace(href) == "" {
			return lint.Fail("<link rel=canonical> not specified"), nil
		}
		canonical := doc.Resolve(href)
		if canonical != doc.URL() {
			return lint.FailDiff(canonical, doc.URL()), nil
		}
		final, err := fetcher.FinalURL(ctx, canonical, doc.Headers())
		if err != nil {
			logger.Debug("canonical fetch failed", zap.String("url", canonical), zap.Error(err))
			return lint.Failf("couldn't retrieve canonical %s", canonical), nil
		}
		if final != canonical {
			return lint.FailDiff(final, canonical), nil
		}
		return lint.Pass(), nil
	})
}

// VideoSize fails when any mp4 video is larger than 4MB.
func VideoSize(fetcher Fetcher) lint.Check {
	return lint.Single("VideoSize", func(ctx context.Context, doc *lint.Document) (lint.Verdict, error) {
		var videos []string
		seen := map[string]struct{}{}
		doc.Find(`amp-video source[type="video/mp4"][src], amp-video[src]`).Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			target := doc.Resolve(src)
			if target == "" {
				return
			}
			if _, dup := seen[target]; dup {
				return
			}
			seen[target] = struct{}{}
			videos = append(videos, target)
		})

		lengths := make([]int64, len(videos))
		errs := make([]error, len(videos))
		lint.FanOut(ctx, len(videos), func(ctx context.Context, i int) lint.Verdict {
			lengths[i], errs[i] = contentLength(ctx, fetcher, videos[i], doc.Headers())
			return lint.Pass()
		})

		var large []string
		for i, video := range videos {
			if errs[i] != nil {
				return lint.Verdict{}, errs[i]
			}
			if lengths[i] > maxVideoBytes {
				large = append(large, video)
			}
		}
		if len(large) > 0 {
			return lint.Failf("videos over 4MB: [%s]", strings.Join(large, ",")), nil
		}
		return lint.Pass(), nil
	})
}

func contentLength(ctx context.Context, fetcher Fetcher, rawURL string, headers http.Header) (int64, error) {
	resp, err := fetcher.Head(ctx, rawURL, headers)
	if err != nil {
		return 0, err
	}
	if !resp.OK() {
		return 0, fmt.Errorf("head %s: %w", rawURL, &lint.StatusError{URL: rawURL, Code: resp.StatusCode})
	}
	raw := resp.Header.Get("Content-Length")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: content-length %q of %s", lint.ErrParse, raw, rawURL)
	}
	return n, nil
}
