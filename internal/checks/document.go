// Package checks holds the story rules and the registry that orders them.
package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/storylint/internal/lint"
)

const (
	storyRuntimeV1 = "https://cdn.ampproject.org/v0/amp-story-1.0.js"
	ampRuntime     = "https://cdn.ampproject.org/v0.js"
	minStoryText   = 100
)

var v1MetadataAttrs = []string{"title", "publisher", "publisher-logo-src", "poster-portrait-src"}

// AmpStory requires exactly one standalone amp-story in the body.
func AmpStory() lint.Check {
	return lint.Single("AmpStory", func(_ context.Context, doc *lint.Document) (lint.Verdict, error) {
		if doc.Find("body amp-story[standalone]").Length() == 1 {
			return lint.Pass(), nil
		}
		return lint.Fail("couldn't find <amp-story standalone> component"), nil
	})
}

func usesStoryV1(doc *lint.Document) bool {
	return doc.Find(fmt.Sprintf("script[src=%q]", storyRuntimeV1)).Length() > 0
}

// AmpStoryV1 warns when the story does not load the 1.0 extension.
func AmpStoryV1() lint.Check {
	return lint.Single("AmpStoryV1", func(_ context.Context, doc *lint.Document) (lint.Verdict, error) {
		if usesStoryV1(doc) {
			return lint.Pass(), nil
		}
		return lint.Warn("amp-story-1.0.js not used (probably 0.1?)"), nil
	})
}

// AmpStoryV1Metadata warns about v1 attributes missing from amp-story.
// Stories on older extensions are not checked.
func AmpStoryV1Metadata() lint.Check {
	return lint.Single("AmpStoryV1Metadata", func(_ context.Context, doc *lint.Document) (lint.Verdict, error) {
		if !usesStoryV1(doc) {
			return lint.Pass(), nil
		}
		var missing []string
		for _, attr := range v1MetadataAttrs {
			if doc.Find(fmt.Sprintf("amp-story[%s]", attr)).Length() == 0 {
				missing = append(missing, attr)
			}
		}
		if len(missing) == 0 {
			return lint.Pass(), nil
		}
		return lint.Warnf("<amp-story> is missing attribute(s) that will soon be mandatory: [%s]",
			strings.Join(missing, ", ")), nil
	})
}

// VideoSource fails when amp-video carries src instead of source children.
func VideoSource() lint.Check {
	return lint.Single("VideoSource", func(_ context.Context, doc *lint.Document) (lint.Verdict, error) {
		if doc.Find("amp-video[src]").Length() > 0 {
			return lint.Fail("<amp-video src> used instead of <amp-video><source/></amp-video>"), nil
		}
		return lint.Pass(), nil
	})
}

// MostlyText warns when the story carries little text.
func MostlyText() lint.Check {
	return lint.Single("MostlyText", func(_ context.Context, doc *lint.Document) (lint.Verdict, error) {
		text := doc.Find("amp-story").Text()
		if len([]rune(text)) > minStoryText {
			return lint.Pass(), nil
		}
		return lint.Warnf("minimal text in the story [%s]", text), nil
	})
}

// RuntimePreloaded warns when the runtime is not preloaded.
func RuntimePreloaded() lint.Check {
	return lint.Single("RuntimePreloaded", func(_ context.Context, doc *lint.Document) (lint.Verdict, error) {
		selector := fmt.Sprintf(`link[href=%q][rel="preload"][as="script"]`, ampRuntime)
		if doc.Find(selector).Length() > 0 {
			return lint.Pass(), nil
		}
		return lint.Warnf("<link href=%s rel=preload> is missing", ampRuntime), nil
	})
}

// MetaCharsetFirst requires <meta charset> as the first child of head.
func MetaCharsetFirst() lint.Check {
	return lint.Single("MetaCharsetFirst", func(_ context.Context, doc *lint.Document) (lint.Verdict, error) {
		if charset, _ := doc.Attr("head *:first-child", "charset"); charset != "" {
			return lint.Pass(), nil
		}
		return lint.Fail("<meta charset> not the first <meta> tag"), nil
	})
}
