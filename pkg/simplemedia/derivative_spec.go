package simplemedia

import (
	"fmt"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia/objectkey"
)

// Format is a canonical encoder name for derivatives.
type Format string

const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

const (
	// DefaultFormat is used when a request does not name a format.
	DefaultFormat = FormatWebP
	// DefaultQuality is used when a request does not name a quality.
	DefaultQuality = 82
)

var formatAliases = map[string]Format{
	"webp": FormatWebP,
	"jpeg": FormatJPEG,
	"jpg":  FormatJPEG,
	"png":  FormatPNG,
}

// ParseFormat maps a requested format name, or alias, to its canonical encoder name.
// An empty name selects DefaultFormat.
func ParseFormat(raw string) (Format, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return DefaultFormat, nil
	}
	f, ok := formatAliases[raw]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
	return f, nil
}

// IsValid reports whether f is a canonical encoder name.
func (f Format) IsValid() bool {
	switch f {
	case FormatWebP, FormatJPEG, FormatPNG:
		return true
	}
	return false
}

// Extension returns the file extension used in derivative keys.
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type written with the encoded object.
func (f Format) ContentType() string {
	switch f {
	case FormatWebP:
		return "image/webp"
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// DerivativeSpec describes a transform of a source object. Width or Height of
// zero leaves that axis unconstrained; both zero means re-encode only.
type DerivativeSpec struct {
	SourceKey string
	Width     int
	Height    int
	Format    Format
	Quality   int
}

// Normalize returns the canonical form of the spec. Equivalent requests
// normalize to identical values and so share a derivative key.
func (s DerivativeSpec) Normalize() (DerivativeSpec, error) {
	out := s
	out.SourceKey = strings.TrimLeft(strings.TrimSpace(s.SourceKey), "/")
	if out.SourceKey == "" {
		return DerivativeSpec{}, fmt.Errorf("%w: source key", ErrMissingField)
	}
	if !objectkey.IsSafe(out.SourceKey) {
		return DerivativeSpec{}, fmt.Errorf("%w: source key %q", ErrInvalidReference, s.SourceKey)
	}
	if out.Width < 0 {
		out.Width = 0
	}
	if out.Height < 0 {
		out.Height = 0
	}

	f, err := ParseFormat(string(s.Format))
	if err != nil {
		return DerivativeSpec{}, err
	}
	out.Format = f

	switch {
	case out.Quality == 0:
		out.Quality = DefaultQuality
	case out.Quality < 1:
		out.Quality = 1
	case out.Quality > 100:
		out.Quality = 100
	}
	return out, nil
}

// Key returns the derivative key of an already normalized spec.
func (s DerivativeSpec) Key() string {
	return objectkey.DerivativeKey(s.SourceKey, s.Width, s.Height, s.Quality, s.Format.Extension())
}

// Resizes reports whether the spec bounds either axis.
func (s DerivativeSpec) Resizes() bool {
	return s.Width > 0 || s.Height > 0
}
