// Package synthetic renders deterministic placeholder artifacts locally so
// the whole pipeline stays usable without provider credentials.
package synthetic

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"time"

	"github.com/caabsu/outlight-img2img/internal/providers"
)

// Options configures the synthetic client.
type Options struct {
	Latency   time.Duration
	FailEvery int
}

// Client produces one placeholder image per request. FailEvery > 0 makes
// every nth call come back as a provider-style failure, which keeps failure
// paths demonstrable end to end.
type Client struct {
	latency   time.Duration
	failEvery int
	calls     atomic.Int64
}

func NewClient(opts Options) *Client {
	return &Client{latency: opts.Latency, failEvery: opts.FailEvery}
}

func (c *Client) Generate(ctx context.Context, req providers.Request) (providers.Result, error) {
	n := c.calls.Add(1)
	if c.latency > 0 {
		timer := time.NewTimer(c.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return providers.Result{}, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return providers.Result{}, err
	}
	if c.failEvery > 0 && n%int64(c.failEvery) == 0 {
		return providers.Fail(fmt.Sprintf("synthetic: simulated rejection for call %d", n), nil), nil
	}

	seed := deterministicSeed(req.Prompt, req.ReferenceURL)
	return providers.Result{
		ArtifactURL: "synthetic://" + seed + ".png",
		Data:        renderPlaceholder(seed),
		Format:      "image/png",
	}, nil
}

func deterministicSeed(parts ...string) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(part))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

// renderPlaceholder paints horizontal bands in colors derived from the seed,
// so the same prompt always yields the same image.
func renderPlaceholder(seed string) []byte {
	const size = 512
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	bands := 8
	bandHeight := size / bands
	for b := 0; b < bands; b++ {
		col := colorFromSeed(seed, b)
		for y := b * bandHeight; y < (b+1)*bandHeight; y++ {
			for x := 0; x < size; x++ {
				img.Set(x, y, col)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, index int) color.RGBA {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", seed, index)))
	return color.RGBA{R: sum[0], G: sum[1], B: sum[2], A: 0xff}
}

var _ providers.Client = (*Client)(nil)
