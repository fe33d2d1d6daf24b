package detector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/storylint/internal/page"
)

// Fetcher probes a page with a plain HTTP fetch and re-fetches it through a
// renderer when the probe looks client-rendered.
type Fetcher struct {
	primary  page.Fetcher
	renderer page.Fetcher
	detector *Heuristic
	logger   *zap.Logger
}

// NewFetcher wraps primary and renderer. A nil detector uses the default
// heuristic.
func NewFetcher(primary, renderer page.Fetcher, detector *Heuristic, logger *zap.Logger) *Fetcher {
	if detector == nil {
		detector = NewHeuristic(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		primary:  primary,
		renderer: renderer,
		detector: detector,
		logger:   logger,
	}
}

// Fetch implements page.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, req page.FetchRequest) (page.FetchResponse, error) {
	probe, err := f.primary.Fetch(ctx, req)
	if err != nil {
		return page.FetchResponse{}, err
	}
	if !f.detector.ShouldPromote(probe) {
		return probe, nil
	}
	f.logger.Info("promoting to headless render", zap.String("url", req.URL), zap.Int("bytes", len(probe.Body)))
	rendered, err := f.renderer.Fetch(ctx, req)
	if err != nil {
		return page.FetchResponse{}, fmt.Errorf("headless render: %w", err)
	}
	return rendered, nil
}
