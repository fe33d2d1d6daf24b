package checks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/storylint/internal/clock/system"
	"github.com/JakeFAU/storylint/internal/cors"
	"github.com/JakeFAU/storylint/internal/imagegeom"
	"github.com/JakeFAU/storylint/internal/lint"
	"github.com/JakeFAU/storylint/internal/validator"
)

// Validity fails when the markup validator reports any issue.
func Validity(v validator.Validator) lint.Check {
	return lint.Single("Validity", func(ctx context.Context, doc *lint.Document) (lint.Verdict, error) {
		res, err := v.Validate(ctx, doc.HTML())
		if err != nil {
			return lint.Verdict{}, fmt.Errorf("%w: %v", lint.ErrValidation, err)
		}
		if res.Passed() {
			return lint.Pass(), nil
		}
		return lint.Failf("%d validation error(s): %s", len(res.Errors), res.Describe()), nil
	})
}

// Deps are the collaborators the default registry is built from.
type Deps struct {
	Fetcher   Fetcher
	Validator validator.Validator
	CORS      *cors.Validator
	Images    *imagegeom.Validator
	Clock     lint.Clock
	Logger    *zap.Logger
}

// Default returns the story checks in registration order.
func Default(deps Deps) []lint.Check {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = system.New()
	}
	markup := deps.Validator
	if markup == nil {
		markup = validator.NewStructural(logger.Named("validator"))
	}
	return []lint.Check{
		Validity(markup),
		Canonical(deps.Fetcher, logger.Named("canonical")),
		AmpStory(),
		AmpStoryV1(),
		AmpStoryV1Metadata(),
		SchemaMetadataRecent(clk),
		SchemaMetadataType(),
		deps.CORS.BookendSameOriginCheck(),
		deps.CORS.BookendCacheCheck(),
		VideoSource(),
		VideoSize(deps.Fetcher),
		MostlyText(),
		RuntimePreloaded(),
		deps.Images.ThumbnailsCheck(),
		MetaCharsetFirst(),
		deps.Images.AmpImgCheck(),
		deps.CORS.SameOriginCheck(),
		deps.CORS.CacheCheck(),
	}
}
