package validator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	runtimeSrc         = "https://cdn.ampproject.org/v0.js"
	extensionPrefix    = "https://cdn.ampproject.org/"
	maxCustomStyleSize = 75000
)

var (
	doctypePattern = regexp.MustCompile(`(?i)^\s*<!doctype\s+html\s*>`)
	headPattern    = regexp.MustCompile(`(?i)<head[\s>]`)
	bodyPattern    = regexp.MustCompile(`(?i)<body[\s>]`)

	disallowedTags = []string{"img", "iframe", "frame", "frameset", "object", "param", "embed", "applet", "video", "audio"}

	dataScriptTypes = map[string]struct{}{
		"application/ld+json": {},
		"application/json":    {},
	}
)

// Structural is a baseline rule set for AMP documents covering the required
// document skeleton, runtime, boilerplate and the disallowed raw elements.
// The zero value is ready to use.
type Structural struct {
	logger *zap.Logger
}

// NewStructural builds a Structural validator.
func NewStructural(logger *zap.Logger) *Structural {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Structural{logger: logger}
}

type rule func(raw string, dom *goquery.Document) []Issue

// Validate applies every rule to html.
func (s *Structural) Validate(ctx context.Context, html string) (Result, error) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}
	rules := []rule{
		checkSkeleton,
		checkHTMLAttr,
		checkMeta,
		checkRuntime,
		checkBoilerplate,
		checkCanonical,
		checkDisallowedTags,
		checkScripts,
		checkCustomStyle,
	}
	issues := []Issue{}
	for _, r := range rules {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("validate: %w", err)
		}
		issues = append(issues, r(html, dom)...)
	}
	result := Result{Status: StatusPass, Errors: issues}
	if len(issues) > 0 {
		result.Status = StatusFail
	}
	if s.logger != nil {
		s.logger.Debug("markup validated", zap.String("status", result.Status), zap.Int("issues", len(issues)))
	}
	return result, nil
}

func checkSkeleton(raw string, _ *goquery.Document) []Issue {
	var issues []Issue
	if !doctypePattern.MatchString(raw) {
		issues = append(issues, Issue{Line: 1, Col: 1, Code: CodeMandatoryTagMissing, Message: "html doctype"})
	}
	if !headPattern.MatchString(raw) {
		issues = append(issues, Issue{Code: CodeMandatoryTagMissing, Message: "head"})
	}
	if !bodyPattern.MatchString(raw) {
		issues = append(issues, Issue{Code: CodeMandatoryTagMissing, Message: "body"})
	}
	return issues
}

func checkHTMLAttr(raw string, dom *goquery.Document) []Issue {
	html := dom.Find("html").First()
	if _, ok := html.Attr("⚡"); ok {
		return nil
	}
	if _, ok := html.Attr("amp"); ok {
		return nil
	}
	line, col := position(raw, "<html")
	return []Issue{{Line: line, Col: col, Code: CodeMandatoryAttrMissing, Message: "⚡ attribute on html"}}
}

func checkMeta(raw string, dom *goquery.Document) []Issue {
	var issues []Issue
	charset := dom.Find("head meta[charset]")
	switch {
	case charset.Length() == 0:
		issues = append(issues, Issue{Code: CodeMandatoryTagMissing, Message: "meta charset=utf-8"})
	case charset.Length() > 1:
		issues = append(issues, Issue{Code: CodeDuplicateUniqueTag, Message: "meta charset"})
	default:
		if v, _ := charset.Attr("charset"); !strings.EqualFold(strings.TrimSpace(v), "utf-8") {
			line, col := position(raw, "charset")
			issues = append(issues, Issue{Line: line, Col: col, Code: CodeInvalidAttrValue, Message: fmt.Sprintf("meta charset %q", v)})
		}
	}
	if dom.Find(`head meta[name="viewport"]`).Length() == 0 {
		issues = append(issues, Issue{Code: CodeMandatoryTagMissing, Message: "meta name=viewport"})
	}
	return issues
}

func checkRuntime(_ string, dom *goquery.Document) []Issue {
	runtime := dom.Find(fmt.Sprintf(`head script[src=%q]`, runtimeSrc))
	if runtime.Length() == 0 {
		return []Issue{{Code: CodeMandatoryTagMissing, Message: "amphtml engine v0.js script"}}
	}
	if _, async := runtime.Attr("async"); !async {
		return []Issue{{Code: CodeMandatoryAttrMissing, Message: "async on amphtml engine v0.js script"}}
	}
	return nil
}

func checkBoilerplate(_ string, dom *goquery.Document) []Issue {
	if dom.Find("head style[amp-boilerplate]").Length() == 0 {
		return []Issue{{Code: CodeMandatoryTagMissing, Message: "head > style[amp-boilerplate]"}}
	}
	return nil
}

func checkCanonical(_ string, dom *goquery.Document) []Issue {
	if dom.Find(`head link[rel="canonical"]`).Length() == 0 {
		return []Issue{{Code: CodeMandatoryTagMissing, Message: "link rel=canonical"}}
	}
	return nil
}

func checkDisallowedTags(raw string, dom *goquery.Document) []Issue {
	var issues []Issue
	for _, tag := range disallowedTags {
		dom.Find("body " + tag).Each(func(_ int, _ *goquery.Selection) {
			line, col := position(raw, "<"+tag)
			issues = append(issues, Issue{Line: line, Col: col, Code: CodeDisallowedTag, Message: tag})
		})
	}
	return issues
}

func checkScripts(raw string, dom *goquery.Document) []Issue {
	var issues []Issue
	dom.Find("script").Each(func(_ int, s *goquery.Selection) {
		if t, ok := s.Attr("type"); ok {
			if _, data := dataScriptTypes[strings.ToLower(strings.TrimSpace(t))]; data {
				return
			}
		}
		src, _ := s.Attr("src")
		if strings.HasPrefix(src, extensionPrefix) {
			return
		}
		needle := "<script"
		if src != "" {
			needle = src
		}
		line, col := position(raw, needle)
		msg := "inline script"
		if src != "" {
			msg = "script " + src
		}
		issues = append(issues, Issue{Line: line, Col: col, Code: CodeDisallowedScript, Message: msg})
	})
	return issues
}

func checkCustomStyle(_ string, dom *goquery.Document) []Issue {
	custom := dom.Find("style[amp-custom]")
	var issues []Issue
	if custom.Length() > 1 {
		issues = append(issues, Issue{Code: CodeDuplicateUniqueTag, Message: "style amp-custom"})
	}
	if size := len(custom.First().Text()); size > maxCustomStyleSize {
		issues = append(issues, Issue{
			Code:    CodeStylesheetTooLong,
			Message: fmt.Sprintf("style amp-custom is %d bytes, limit %d", size, maxCustomStyleSize),
		})
	}
	return issues
}

// position returns the 1-based line and column of the first
// case-insensitive occurrence of needle in raw, or zeros. Only ASCII letters
// are folded so byte offsets in raw stay valid; columns count runes.
func position(raw, needle string) (int, int) {
	idx := strings.Index(asciiLower(raw), asciiLower(needle))
	if idx < 0 {
		return 0, 0
	}
	before := raw[:idx]
	line := strings.Count(before, "\n") + 1
	col := utf8.RuneCountInString(before[strings.LastIndex(before, "\n")+1:]) + 1
	return line, col
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
