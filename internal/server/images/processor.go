// Package images normalizes uploaded photos and stores them.
//
// Uploads are decoded (JPEG, PNG, GIF or WebP), downscaled so that the
// longest side fits the configured dimension, and re-encoded as JPEG. The
// work runs on a bounded pool of goroutines; the caller waits for its own
// result or gives up when its context ends.
package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"
)

const (
	jpegQuality = 80

	// DefaultMaxPixels caps the declared size of an upload before it is
	// decoded. The decoder allocates the whole pixel buffer up front.
	DefaultMaxPixels = 40_000_000
)

var (
	ErrInvalidImage = common.Validation("Arquivo de imagem inválido.")
	errInvalidKey   = errors.New("invalid image key")
)

type Processor struct {
	store     Store
	maxDim    int
	maxPixels int64
	sem       *semaphore.Weighted
	log    logging.Logger

	now   func() time.Time
	newID func() string
}

// Option tunes a Processor.
type Option func(*Processor)

// WithMaxPixels rejects uploads declaring more than n pixels. n <= 0 keeps
// DefaultMaxPixels.
func WithMaxPixels(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxPixels = int64(n)
		}
	}
}

func NewProcessor(store Store, maxDim, workers int, log logging.Logger, opts ...Option) *Processor {
	if workers < 1 {
		workers = 1
	}
	p := &Processor{
		store:     store,
		maxDim:    maxDim,
		maxPixels: DefaultMaxPixels,
		sem:       semaphore.NewWeighted(int64(workers)),
		log:       log.With("module", "images"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type result struct {
	key string
	err error
}

// Process reads the upload from r, normalizes it and stores it. It returns
// the storage key, of the form YYYY/MM/DD/<uuid>.jpg.
func (p *Processor) Process(ctx context.Context, r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(raw) == 0 {
		return "", ErrInvalidImage
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}

	done := make(chan result, 1)
	go func() {
		defer p.sem.Release(1)
		key, err := p.run(context.WithoutCancel(ctx), raw)
		done <- result{key: key, err: err}
	}()

	select {
	case res := <-done:
		return res.key, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Discard removes an image stored by Process that ended up unused.
func (p *Processor) Discard(ctx context.Context, key string) error {
	return p.store.Delete(ctx, key)
}

func (p *Processor) run(ctx context.Context, raw []byte) (string, error) {
	start := time.Now()

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", ErrInvalidImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > p.maxPixels {
		p.log.Warn(ctx, "image rejected", "width", cfg.Width, "height", cfg.Height, "max_pixels", p.maxPixels)
		return "", ErrInvalidImage
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", ErrInvalidImage
	}

	img := Fit(src, p.maxDim)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}

	key := p.key()
	if err := p.store.Save(ctx, key, buf.Bytes()); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}

	b := img.Bounds()
	p.log.Debug(ctx, "image stored",
		"key", key, "format", format,
		"width", b.Dx(), "height", b.Dy(),
		"bytes", buf.Len(), "duration", time.Since(start))
	return key, nil
}

func (p *Processor) key() string {
	return fmt.Sprintf("%s/%s.jpg", p.now().Format("2006/01/02"), p.newID())
}

// Fit scales src down so that neither side exceeds maxDim, keeping the
// aspect ratio. Smaller images and maxDim <= 0 return src unchanged.
func Fit(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return src
	}

	nw, nh := maxDim, maxDim
	if w >= h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
