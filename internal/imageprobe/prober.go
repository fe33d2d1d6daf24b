// Package imageprobe reads the intrinsic size of remote images by decoding
// only their headers.
package imageprobe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	// Registered decoders for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	_ "golang.org/x/image/webp"

	"github.com/JakeFAU/storylint/internal/httpclient"
	"github.com/JakeFAU/storylint/internal/imagegeom"
	"github.com/JakeFAU/storylint/internal/lint"
)

// headerBytes bounds the prefix read from each image. It covers the
// dimension fields of every supported format, including JPEGs that carry a
// full APP1 (EXIF) segment before the frame header.
const headerBytes = 256 << 10

// Getter is the subset of httpclient.Client the prober needs.
type Getter interface {
	GetPrefix(ctx context.Context, rawURL string, headers http.Header, limit int64) (*httpclient.Response, error)
}

// HTTPProber fetches images through the shared client.
type HTTPProber struct {
	client Getter
}

// New builds an HTTPProber.
func New(client Getter) *HTTPProber {
	return &HTTPProber{client: client}
}

// Probe fetches the start of rawURL and decodes its dimensions. Compressed
// transfer is refused so the prefix can be decoded as-is.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string, headers http.Header) (imagegeom.Size, error) {
	req := headers.Clone()
	if req == nil {
		req = http.Header{}
	}
	req.Del("Accept-Encoding")
	req.Set("Accept-Encoding", "identity")

	resp, err := p.client.GetPrefix(ctx, rawURL, req, headerBytes)
	if err != nil {
		return imagegeom.Size{}, &imagegeom.ProbeError{URL: rawURL, Err: err}
	}
	if !resp.OK() {
		return imagegeom.Size{}, &imagegeom.ProbeError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        &lint.StatusError{URL: rawURL, Code: resp.StatusCode},
		}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(resp.Body))
	if err != nil {
		return imagegeom.Size{}, &imagegeom.ProbeError{
			URL: rawURL,
			Err: fmt.Errorf("%w: decode image header: %v", lint.ErrParse, err),
		}
	}
	return imagegeom.Size{Width: cfg.Width, Height: cfg.Height, MIME: "image/" + format}, nil
}
