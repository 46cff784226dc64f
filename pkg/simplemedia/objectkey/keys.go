package objectkey

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Key layouts:
//
//	uploads:     {namespace}/{stamp}-{filename}
//	derivatives: optimized/{w}x{h}-q{q}/{sourceKey}.{ext}
//	posters:     thumbnails/{source basename}.jpg
const (
	DerivativePrefix = "optimized"
	PosterPrefix     = "thumbnails"
)

// Stamper hands out millisecond stamps that strictly increase within a
// process, even when the clock stalls or steps backwards.
type Stamper struct {
	mu    sync.Mutex
	clock func() time.Time
	last  int64
}

// NewStamper creates a stamper over clock. A nil clock uses time.Now.
func NewStamper(clock func() time.Time) *Stamper {
	if clock == nil {
		clock = time.Now
	}
	return &Stamper{clock: clock}
}

// Next returns the next stamp.
func (s *Stamper) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.clock().UnixMilli()
	if ms <= s.last {
		ms = s.last + 1
	}
	s.last = ms
	return ms
}

// UploadKey names an uploaded object.
func UploadKey(prefix string, stamp int64, filename string) string {
	return fmt.Sprintf("%s/%d-%s", prefix, stamp, Sanitize(filename))
}

// DerivativeKey names a derived image. The source key is kept whole so
// distinct sources never share a derivative.
func DerivativeKey(sourceKey string, width, height, quality int, ext string) string {
	return fmt.Sprintf("%s/%dx%d-q%d/%s.%s", DerivativePrefix, width, height, quality, sourceKey, ext)
}

// PosterKey names the poster frame of a video.
func PosterKey(sourceKey string) string {
	base := path.Base(sourceKey)
	base = strings.TrimSuffix(base, path.Ext(base))
	return fmt.Sprintf("%s/%s.jpg", PosterPrefix, base)
}

var whitespace = regexp.MustCompile(`\s+`)

// Sanitize reduces a client supplied filename to a single safe key segment.
func Sanitize(filename string) string {
	filename = strings.TrimSpace(filename)
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	filename = whitespace.ReplaceAllString(filename, "_")
	filename = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, filename)
	if filename == "" || filename == "." || filename == ".." {
		return "file"
	}
	return filename
}

// IsSafe reports whether key is a relative key without traversal segments.
func IsSafe(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
