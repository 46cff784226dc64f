// Package transform implements image resizing and encoding and video frame
// extraction for derivatives and posters.
package transform

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// DefaultPosterQuality is the JPEG quality used for video posters.
const DefaultPosterQuality = 85

// Imaging is a simplemedia.Transformer backed by disintegration/imaging.
type Imaging struct {
	filter        imaging.ResampleFilter
	posterQuality int
}

// ImagingOption configures an Imaging transformer
type ImagingOption func(*Imaging)

// WithFilter sets the resampling filter used for derivatives
func WithFilter(f imaging.ResampleFilter) ImagingOption {
	return func(t *Imaging) {
		t.filter = f
	}
}

// WithPosterQuality sets the JPEG quality used for posters
func WithPosterQuality(q int) ImagingOption {
	return func(t *Imaging) {
		t.posterQuality = q
	}
}

// NewImaging creates an imaging transformer
func NewImaging(options ...ImagingOption) *Imaging {
	t := &Imaging{
		filter:        imaging.Lanczos,
		posterQuality: DefaultPosterQuality,
	}
	for _, option := range options {
		option(t)
	}
	return t
}

func (t *Imaging) Transform(ctx context.Context, src []byte, opts simplemedia.TransformOptions) (*simplemedia.TransformResult, error) {
	if !opts.Format.IsValid() {
		return nil, fmt.Errorf("%w: %q", simplemedia.ErrUnsupportedFormat, opts.Format)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", simplemedia.ErrDecodeFailure, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := FitInside(b.Dx(), b.Dy(), opts.Width, opts.Height)
	if w != b.Dx() || h != b.Dy() {
		img = imaging.Resize(img, w, h, t.filter)
	}

	var buf bytes.Buffer
	if err := encode(&buf, img, opts.Format, opts.Quality); err != nil {
		return nil, err
	}

	return &simplemedia.TransformResult{
		Data:        buf.Bytes(),
		ContentType: opts.Format.ContentType(),
		Width:       w,
		Height:      h,
	}, nil
}

func (t *Imaging) EncodePoster(ctx context.Context, frame image.Image, maxWidth int) (*simplemedia.TransformResult, error) {
	if frame == nil {
		return nil, simplemedia.ErrFrameExtractionFailure
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if maxWidth > 0 && frame.Bounds().Dx() > maxWidth {
		frame = resize.Resize(uint(maxWidth), 0, frame, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := encode(&buf, frame, simplemedia.FormatJPEG, t.posterQuality); err != nil {
		return nil, err
	}

	b := frame.Bounds()
	return &simplemedia.TransformResult{
		Data:        buf.Bytes(),
		ContentType: simplemedia.FormatJPEG.ContentType(),
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

func encode(buf *bytes.Buffer, img image.Image, f simplemedia.Format, quality int) error {
	var err error
	switch f {
	case simplemedia.FormatWebP:
		err = webp.Encode(buf, img, webp.Options{Quality: quality})
	case simplemedia.FormatJPEG:
		err = imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case simplemedia.FormatPNG:
		err = imaging.Encode(buf, img, imaging.PNG)
	default:
		return fmt.Errorf("%w: %q", simplemedia.ErrUnsupportedFormat, f)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", f, err)
	}
	return nil
}

// FitInside returns the dimensions of a srcW x srcH image scaled to fit a
// maxW x maxH box with its aspect ratio kept. A zero bound leaves that axis
// unconstrained. The result never exceeds the source dimensions.
func FitInside(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return srcW, srcH
	}
	scale := 1.0
	if maxW > 0 && maxW < srcW {
		scale = float64(maxW) / float64(srcW)
	}
	if maxH > 0 && maxH < srcH {
		if s := float64(maxH) / float64(srcH); s < scale {
			scale = s
		}
	}
	if scale == 1.0 {
		return srcW, srcH
	}

	w := int(float64(srcW)*scale + 0.5)
	h := int(float64(srcH)*scale + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
