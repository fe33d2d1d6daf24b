package imagegeom

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/storylint/internal/lint"
)

// Validator runs the image checks of a story through a Prober.
type Validator struct {
	prober Prober
	logger *zap.Logger
}

// NewValidator builds a Validator.
func NewValidator(prober Prober, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{prober: prober, logger: logger}
}

type declaredImage struct {
	src      string
	expected Size
}

// AmpImgCheck compares every amp-img with numeric width and height against
// the fetched image.
func (v *Validator) AmpImgCheck() lint.Check {
	return lint.Multi("AmpImg", func(ctx context.Context, doc *lint.Document) ([]lint.Verdict, error) {
		images := declaredImages(doc)
		issues := make([][]lint.Verdict, len(images))
		slots := lint.FanOut(ctx, len(images), func(ctx context.Context, i int) lint.Verdict {
			img := images[i]
			actual, err := v.probe(ctx, doc, img.src)
			if err != nil {
				return probeFailure(img.src, err)
			}
			issues[i] = Compare(img.src, actual, img.expected)
			return lint.Pass()
		})
		var verdicts []lint.Verdict
		for i, slot := range slots {
			verdicts = append(verdicts, slot)
			verdicts = append(verdicts, issues[i]...)
		}
		return lint.NonPass(verdicts), nil
	})
}

func declaredImages(doc *lint.Document) []declaredImage {
	var images []declaredImage
	doc.Find("amp-img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		width, okW := dimension(s, "width")
		height, okH := dimension(s, "height")
		if strings.TrimSpace(src) == "" || !okW || !okH {
			return
		}
		images = append(images, declaredImage{src: src, expected: Size{Width: width, Height: height}})
	})
	return images
}

func dimension(s *goquery.Selection, attr string) (int, bool) {
	raw, ok := s.Attr(attr)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "px")))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func probeFailure(src string, err error) lint.Verdict {
	return lint.Failf("[%s] %s", src, probeReason(err))
}

// probeReason names the HTTP status of a failed probe when one was received,
// and the underlying error otherwise.
func probeReason(err error) string {
	var pe *ProbeError
	if errors.As(err, &pe) {
		if pe.StatusCode != 0 {
			return fmt.Sprintf("returned status %d", pe.StatusCode)
		}
		if pe.Err != nil {
			return pe.Err.Error()
		}
	}
	return err.Error()
}

type thumbnailRule struct {
	attr     string
	required bool
	shape    func(Size) bool
	problem  string
}

var thumbnailRules = []thumbnailRule{
	{attr: "publisher-logo-src", required: true, shape: IsSquare, problem: "is missing or not square (1:1)"},
	{attr: "poster-portrait-src", required: true, shape: IsPortrait, problem: "is missing or not portrait (3:4)"},
	{attr: "poster-square-src", shape: IsSquare, problem: "is not square (1x1)"},
	{attr: "poster-landscape-src", shape: IsLandscape, problem: "is not landscape (4:3)"},
}

// ThumbnailsCheck verifies the shape of the story's publisher logo and
// posters. The square and landscape posters are optional.
func (v *Validator) ThumbnailsCheck() lint.Check {
	return lint.Multi("Thumbnails", func(ctx context.Context, doc *lint.Document) ([]lint.Verdict, error) {
		var rules []thumbnailRule
		var values []string
		for _, rule := range thumbnailRules {
			value, _ := doc.Attr("amp-story", rule.attr)
			value = strings.TrimSpace(value)
			if value == "" && !rule.required {
				continue
			}
			rules = append(rules, rule)
			values = append(values, value)
		}
		return lint.FanOut(ctx, len(rules), func(ctx context.Context, i int) lint.Verdict {
			rule, value := rules[i], values[i]
			if value == "" {
				return lint.Failf("[%s] () %s", rule.attr, rule.problem)
			}
			size, err := v.probe(ctx, doc, value)
			if err != nil {
				v.logger.Debug("thumbnail probe failed", zap.String("attr", rule.attr), zap.Error(err))
				return lint.Failf("[%s] (%s) %s", rule.attr, value, probeReason(err))
			}
			if !rule.shape(size) {
				return lint.Failf("[%s] (%s) %s", rule.attr, value, rule.problem)
			}
			return lint.Pass()
		}), nil
	})
}

func (v *Validator) probe(ctx context.Context, doc *lint.Document, src string) (Size, error) {
	target := doc.Resolve(src)
	if target == "" {
		return Size{}, fmt.Errorf("%w: invalid image url %q", lint.ErrParse, src)
	}
	return v.prober.Probe(ctx, target, doc.Headers())
}
