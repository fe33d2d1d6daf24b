// Package imagegeom compares declared image dimensions with the dimensions
// of the fetched resource.
package imagegeom

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/JakeFAU/storylint/internal/lint"
)

const (
	ratioTolerance = 0.015
	// An image whose declared area is under this share of its real area is
	// wastefully large.
	largerFactor = 0.25
	// A declared area above this multiple of the real area is upscaled.
	smallerFactor = 1.5
)

// Size is the intrinsic size of an image resource.
type Size struct {
	Width  int
	Height int
	MIME   string
}

// Prober fetches an image and reports its intrinsic size.
type Prober interface {
	Probe(ctx context.Context, rawURL string, headers http.Header) (Size, error)
}

// ProbeError is returned when an image could not be fetched or decoded.
// StatusCode is zero when no HTTP response was received.
type ProbeError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ProbeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("probe %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("probe %s: %v", e.URL, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Ratio is width/height truncated to two decimals.
func Ratio(width, height int) float64 {
	if height == 0 {
		return 0
	}
	return math.Floor(float64(width)*100/float64(height)) / 100
}

// Compare checks actual against the declared dimensions of src and returns
// the issues found, if any. An aspect mismatch is a FAIL and an area far from
// the declared one is a WARN; the two are evaluated independently.
func Compare(src string, actual, expected Size) []lint.Verdict {
	return lint.NonPass([]lint.Verdict{
		compareRatio(src, actual, expected),
		compareArea(src, actual, expected),
	})
}

func compareRatio(src string, actual, expected Size) lint.Verdict {
	actualRatio := Ratio(actual.Width, actual.Height)
	expectedRatio := Ratio(expected.Width, expected.Height)
	if math.Abs(actualRatio-expectedRatio) <= ratioTolerance {
		return lint.Pass()
	}
	return lint.Failf("[%s]: actual ratio [%d/%d = %s] does not match specified [%d/%d = %s]",
		src,
		actual.Width, actual.Height, formatRatio(actualRatio),
		expected.Width, expected.Height, formatRatio(expectedRatio),
	)
}

// compareArea evaluates "much larger" before "much smaller"; both cannot
// hold at once.
func compareArea(src string, actual, expected Size) lint.Verdict {
	actualArea := float64(actual.Width) * float64(actual.Height)
	expectedArea := float64(expected.Width) * float64(expected.Height)
	switch {
	case expectedArea < largerFactor*actualArea:
		return lint.Warnf("[%s]: actual dimensions [%dx%d] are much larger than specified [%dx%d]",
			src, actual.Width, actual.Height, expected.Width, expected.Height)
	case expectedArea > smallerFactor*actualArea:
		return lint.Warnf("[%s]: actual dimensions [%dx%d] are much smaller than specified [%dx%d]",
			src, actual.Width, actual.Height, expected.Width, expected.Height)
	}
	return lint.Pass()
}

func formatRatio(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// IsSquare reports a 1:1 image.
func IsSquare(s Size) bool {
	return s.Width == s.Height
}

// IsPortrait reports a 3:4 image, within a narrow band.
func IsPortrait(s Size) bool {
	w, h := float64(s.Width), float64(s.Height)
	return w > 0.74*h && w < 0.76*h
}

// IsLandscape reports a 4:3 image, within a narrow band.
func IsLandscape(s Size) bool {
	w, h := float64(s.Width), float64(s.Height)
	return h > 0.74*w && h < 0.76*w
}
