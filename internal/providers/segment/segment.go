// Package segment is the on-device background removal capability. It is
// backed by OpenCV GrabCut when the binary is built with the "opencv" tag and
// reports itself unavailable otherwise.
package segment

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"runtime"

	"closet/internal/domain"
	"closet/internal/infra"
)

// ProviderName identifies this provider in results, logs and the ledger.
const ProviderName = "on-device-grabcut"

var supportedOS = map[string]bool{"linux": true, "darwin": true, "windows": true}

// Options configures the segmenter.
type Options struct {
	Toggle     infra.Toggle
	Iterations int
	Store      domain.AssetStore
	Logger     *infra.Logger
}

// Segmenter cuts the garment out of a photo locally.
type Segmenter struct {
	toggle     infra.Toggle
	iterations int
	store      domain.AssetStore
	logger     *infra.Logger
	goos       string
	compiled   bool
}

// New constructs a Segmenter.
func New(opts Options) *Segmenter {
	iterations := opts.Iterations
	if iterations <= 0 {
		iterations = 5
	}
	return &Segmenter{
		toggle:     opts.Toggle,
		iterations: iterations,
		store:      opts.Store,
		logger:     infra.LoggerOrDiscard(opts.Logger),
		goos:       runtime.GOOS,
		compiled:   compiled,
	}
}

// Name returns the provider identifier.
func (s *Segmenter) Name() string {
	return ProviderName
}

// Available reports whether the capability can run in this process.
func (s *Segmenter) Available() bool {
	return s.compiled && s.toggle.Enabled() && supportedOS[s.goos]
}

// Attempt segments req.Primary() and stores a cropped transparent PNG.
func (s *Segmenter) Attempt(ctx context.Context, req domain.Request) (string, error) {
	if !s.Available() {
		return "", domain.NewProviderError(ProviderName, domain.ErrCapabilityUnavailable, "segmentation not available on "+s.goos)
	}
	if s.store == nil {
		return "", domain.NewProviderError(ProviderName, domain.ErrConfigurationMissing, "no asset store")
	}
	if err := ctx.Err(); err != nil {
		return "", domain.CancellationCause(err)
	}
	photo := req.Primary()
	if len(photo.Data) == 0 {
		return "", domain.NewProviderError(ProviderName, domain.ErrProviderFailure, "photo bytes not loaded")
	}

	src, fg, err := foregroundMask(photo.Data, s.iterations)
	if err != nil {
		return "", &domain.ProviderError{Provider: ProviderName, Class: domain.ErrProviderFailure, Message: "segment", Err: err}
	}
	// GrabCut is not interruptible; honour cancellation before writing.
	if err := ctx.Err(); err != nil {
		return "", domain.CancellationCause(err)
	}
	cut, ok := composite(src, fg)
	if !ok {
		return "", domain.NewProviderError(ProviderName, domain.ErrProviderFailure, "no foreground found")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, cut); err != nil {
		return "", &domain.ProviderError{Provider: ProviderName, Class: domain.ErrProviderFailure, Message: "encode png", Err: err}
	}
	path, err := s.store.WriteUnique(ctx, "cutouts", "background-removed", "", "image/png", buf.Bytes())
	if err != nil {
		return "", &domain.ProviderError{Provider: ProviderName, Class: domain.ErrProviderFailure, Message: "store cutout", Err: err}
	}
	s.logger.Debug().Str("path", path).Msg("segment: cutout stored")
	return path, nil
}

// composite copies foreground pixels of src into a transparent canvas cropped
// to the foreground bounding box. fg is row-major over src's bounds. It
// returns false when no pixel is foreground.
func composite(src image.Image, fg []bool) (*image.NRGBA, bool) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if len(fg) != w*h {
		return nil, false
	}
	minX, minY, maxX, maxY := w, h, -1, -1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !fg[y*w+x] {
				continue
			}
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
	}
	if maxX < 0 {
		return nil, false
	}
	out := image.NewNRGBA(image.Rect(0, 0, maxX-minX+1, maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if fg[y*w+x] {
				out.Set(x-minX, y-minY, src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	}
	return out, true
}
