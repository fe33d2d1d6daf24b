package headless

import (
	"context"
	"errors"

	"github.com/JakeFAU/storylint/internal/page"
)

// ErrNotConfigured is returned by Noop.
var ErrNotConfigured = errors.New("headless fetcher not configured")

// Noop implements page.Fetcher for builds where rendering is disabled.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch always fails with ErrNotConfigured.
func (Noop) Fetch(_ context.Context, _ page.FetchRequest) (page.FetchResponse, error) {
	return page.FetchResponse{}, ErrNotConfigured
}
