package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder
	"time"

	_ "golang.org/x/image/bmp" // register decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

const (
	// DefaultTransformTimeout bounds a single decode/resize/encode
	DefaultTransformTimeout = 30 * time.Second
	// DefaultJPEGQuality is the quality of every produced image
	DefaultJPEGQuality = 85
	// OutputExtension is the file extension matching the output encoding
	OutputExtension = ".jpg"
	// MaxImagePixels caps the decoded size of an input image
	MaxImagePixels = 50_000_000
)

// ErrDimensionTooSmall is returned when halving would produce a zero-sized
// image. Such images are rejected, never clamped to one pixel.
var ErrDimensionTooSmall = errors.New("image dimension too small to halve")

// ErrImageTooLarge is returned before decoding an image whose header declares
// more than MaxImagePixels pixels
var ErrImageTooLarge = errors.New("image dimensions too large")

// TransformError is returned when an image cannot be decoded, resized or encoded
type TransformError struct {
	// Op is one of decode, resize, encode or timeout
	Op  string
	Err error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Op, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// Resizer halves both dimensions of an image and re-encodes it as JPEG
type Resizer struct {
	timeout time.Duration
	quality int
}

// NewResizer creates a Resizer; a non-positive timeout uses DefaultTransformTimeout
func NewResizer(timeout time.Duration) *Resizer {
	if timeout <= 0 {
		timeout = DefaultTransformTimeout
	}
	return &Resizer{timeout: timeout, quality: DefaultJPEGQuality}
}

type transformResult struct {
	data []byte
	err  error
}

// Transform runs HalveImage bounded by the resizer timeout and ctx
func (r *Resizer) Transform(ctx context.Context, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan transformResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- transformResult{err: &TransformError{Op: "decode", Err: fmt.Errorf("panic: %v", rec)}}
			}
		}()
		out, err := HalveImage(data, r.quality)
		done <- transformResult{data: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, &TransformError{Op: "timeout", Err: ctx.Err()}
	case res := <-done:
		return res.data, res.err
	}
}

// HalveImage decodes data, scales it to floor(w/2) x floor(h/2) and encodes
// the result as JPEG with the given quality
func HalveImage(data []byte, quality int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &TransformError{Op: "decode", Err: err}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, &TransformError{
			Op:  "decode",
			Err: fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height),
		}
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &TransformError{Op: "decode", Err: err}
	}

	bounds := src.Bounds()
	width, height := bounds.Dx()/2, bounds.Dy()/2
	if width == 0 || height == 0 {
		return nil, &TransformError{
			Op:  "resize",
			Err: fmt.Errorf("%w: %dx%d", ErrDimensionTooSmall, bounds.Dx(), bounds.Dy()),
		}
	}

	// JPEG has no alpha channel; transparent areas end up white.
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &TransformError{Op: "encode", Err: err}
	}
	return buf.Bytes(), nil
}
