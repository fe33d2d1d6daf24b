package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/storylint/internal/lint"
)

const recentWindow = 30 * 24 * time.Hour

var articleTypes = map[string]struct{}{
	"Article":              {},
	"NewsArticle":          {},
	"ReportageNewsArticle": {},
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// schemaMetadata decodes the first ld+json block. A missing block yields an
// empty object; a JSON array yields its first object.
func schemaMetadata(doc *lint.Document) (map[string]any, error) {
	sel := doc.Find(`script[type="application/ld+json"]`).First()
	if sel.Length() == 0 {
		return map[string]any{}, nil
	}
	raw := strings.TrimSpace(sel.Text())
	if raw == "" {
		return map[string]any{}, nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("%w: ld+json metadata: %v", lint.ErrParse, err)
	}
	switch v := decoded.(type) {
	case map[string]any:
		return v, nil
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				return obj, nil
			}
		}
	}
	return map[string]any{}, nil
}

// SchemaMetadataType warns unless the ld+json @type is an article type.
func SchemaMetadataType() lint.Check {
	return lint.Single("SchemaMetadataType", func(_ context.Context, doc *lint.Document) (lint.Verdict, error) {
		metadata, err := schemaMetadata(doc)
		if err != nil {
			return lint.Verdict{}, err
		}
		t, _ := metadata["@type"].(string)
		if _, ok := articleTypes[t]; ok {
			return lint.Pass(), nil
		}
		return lint.Warn("@type is not 'Article' or 'NewsArticle' or 'ReportageNewsArticle'"), nil
	})
}

// SchemaMetadataRecent requires publication dates that are consistent and
// fall within the last 30 days.
func SchemaMetadataRecent(clock lint.Clock) lint.Check {
	return lint.Single("SchemaMetadataRecent", func(_ context.Context, doc *lint.Document) (lint.Verdict, error) {
		metadata, err := schemaMetadata(doc)
		if err != nil {
			return lint.Verdict{}, err
		}
		published := stringField(metadata, "datePublished")
		modified := stringField(metadata, "dateModified")
		if published == "" || modified == "" {
			return lint.Fail("datePublished or dateModified not found"), nil
		}
		timePublished, okP := parseDate(published)
		timeModified, okM := parseDate(modified)
		if !okP || !okM {
			return lint.Failf("couldn't parse datePublished [%s] or dateModified [%s]", published, modified), nil
		}
		if timeModified.Before(timePublished) {
			return lint.Failf("dateModified [%s] is earlier than datePublished [%s]", modified, published), nil
		}
		now := clock.Now()
		if recent(timePublished, now) && recent(timeModified, now) {
			return lint.Pass(), nil
		}
		return lint.Warnf("datePublished [%s] or dateModified [%s] is old or in the future", published, modified), nil
	})
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func recent(t, now time.Time) bool {
	return t.After(now.Add(-recentWindow)) && t.Before(now)
}
