package simplemedia

import (
	"strings"
	"time"
)

// Namespace is the closed set of content-type namespaces. Each namespace has
// its own index list and its own key prefix in the object store.
type Namespace string

const (
	NamespacePhotos   Namespace = "photos"
	NamespaceVideos   Namespace = "videos"
	NamespaceSponsors Namespace = "sponsors"
)

// namespaceRule describes how a namespace names and accepts objects.
type namespaceRule struct {
	prefix       string
	mimePrefixes []string
}

var namespaces = map[Namespace]namespaceRule{
	NamespacePhotos:   {prefix: "photos", mimePrefixes: []string{"image/"}},
	NamespaceVideos:   {prefix: "videos", mimePrefixes: []string{"video/"}},
	NamespaceSponsors: {prefix: "sponsors", mimePrefixes: []string{"image/"}},
}

// Namespaces returns every namespace in a stable order.
func Namespaces() []Namespace {
	return []Namespace{NamespacePhotos, NamespaceVideos, NamespaceSponsors}
}

// ParseNamespace validates a raw namespace name.
func ParseNamespace(raw string) (Namespace, error) {
	ns := Namespace(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := namespaces[ns]; !ok {
		return "", ErrInvalidType
	}
	return ns, nil
}

// IsValid reports whether the namespace is one of the known namespaces.
func (n Namespace) IsValid() bool {
	_, ok := namespaces[n]
	return ok
}

// KeyPrefix returns the object store prefix for the namespace.
func (n Namespace) KeyPrefix() string {
	return namespaces[n].prefix
}

// Accepts reports whether a declared MIME type may be stored in the namespace.
// Opaque binary uploads are always accepted since browsers do not always
// report a media type.
func (n Namespace) Accepts(mimeType string) bool {
	rule, ok := namespaces[n]
	if !ok {
		return false
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "application/octet-stream" {
		return true
	}
	for _, p := range rule.mimePrefixes {
		if strings.HasPrefix(mimeType, p) {
			return true
		}
	}
	return false
}

// MediaEntry is one uploaded or linked asset. JSON names follow the wire
// format the site front-end already reads.
type MediaEntry struct {
	ID              string    `json:"id"`
	Namespace       Namespace `json:"type,omitempty"`
	StorageKey      string    `json:"key,omitempty"`
	DisplayName     string    `json:"name,omitempty"`
	SourceURL       string    `json:"url,omitempty"`
	ContentType     string    `json:"contentType,omitempty"`
	CreatedAt       time.Time `json:"date"`
	PosterKey       string    `json:"posterKey,omitempty"`
	PosterURL       string    `json:"posterUrl,omitempty"`
	ExternalVideoID string    `json:"youtubeId,omitempty"`
}

// IsExternal reports whether the entry references an externally hosted video.
func (e *MediaEntry) IsExternal() bool {
	return e.ExternalVideoID != ""
}

// Clone returns a copy safe to hand across goroutines.
func (e *MediaEntry) Clone() *MediaEntry {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// UploadSlot is the result of a delegated-write request.
type UploadSlot struct {
	UploadURL  string    `json:"uploadUrl"`
	StorageKey string    `json:"key"`
	PublicURL  string    `json:"url"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Derivative is a resolved, ready-to-serve derived object.
type Derivative struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	ContentType  string `json:"contentType"`
	CacheControl string `json:"cacheControl"`
	// Generated is true when this call produced the object.
	Generated bool `json:"generated"`
}

// Poster is an extracted video still frame.
type Poster struct {
	SourceKey string `json:"sourceKey"`
	Key       string `json:"posterKey"`
	URL       string `json:"posterUrl"`
	EntryID   string `json:"entryId,omitempty"`
}

// ImmutableCacheControl is attached to every derivative and poster.
const ImmutableCacheControl = "public, max-age=31536000, immutable"
