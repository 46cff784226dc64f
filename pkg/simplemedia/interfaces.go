package simplemedia

import (
	"context"
	"image"
	"io"
	"time"
)

// PutOptions carries the headers stored alongside an object.
type PutOptions struct {
	ContentType  string
	CacheControl string
}

// ObjectStore defines the interface for key-addressed blob storage backends
type ObjectStore interface {
	// Put writes the reader to key, replacing any existing object
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) error

	// Get opens the object at key. Returns ErrObjectNotFound when absent
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Head reports whether an object exists without transferring its data
	Head(ctx context.Context, key string) (bool, error)

	// Delete removes the object at key
	Delete(ctx context.Context, key string) error

	// PresignPut issues a time-boxed URL authorizing one PUT of contentType to key
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}

// ObjectInfo describes a stored object without its data.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	CacheControl string
}

// ObjectStatter is implemented by stores that can serve objects through the
// application, such as the memory and filesystem backends.
type ObjectStatter interface {
	// Stat returns object headers. Returns ErrObjectNotFound when absent
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
}

// Index defines the interface for the per-namespace ordered entry lists
type Index interface {
	// List returns the namespace's entries, newest first
	List(ctx context.Context, ns Namespace) ([]*MediaEntry, error)

	// Insert places entry at the front of the namespace list
	Insert(ctx context.Context, ns Namespace, entry *MediaEntry) error

	// Remove deletes the entry with id and returns it. Returns ErrEntryNotFound when absent
	Remove(ctx context.Context, ns Namespace, id string) (*MediaEntry, error)

	// FindByID returns the entry with id. Returns ErrEntryNotFound when absent
	FindByID(ctx context.Context, ns Namespace, id string) (*MediaEntry, error)

	// FindByKey returns the entry stored at key. Returns ErrEntryNotFound when absent
	FindByKey(ctx context.Context, ns Namespace, key string) (*MediaEntry, error)

	// UpdatePoster attaches poster fields to the entry with id
	UpdatePoster(ctx context.Context, ns Namespace, id, posterKey, posterURL string) (*MediaEntry, error)
}

// EventKind names a completion event delivered to the analytics sink.
type EventKind string

const (
	EventUploadCompleted EventKind = "media.upload.completed"
	EventVideoLinked     EventKind = "media.video.linked"
	EventPosterExtracted EventKind = "media.poster.extracted"
	EventEntryDeleted    EventKind = "media.entry.deleted"
)

// Event is a discrete fact about a finished operation.
type Event struct {
	Kind       EventKind `json:"kind"`
	Namespace  Namespace `json:"type"`
	EntryID    string    `json:"id,omitempty"`
	StorageKey string    `json:"key,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventSink receives completion events. Delivery is fire-and-forget: a
// returned error is logged by the caller and never fails the operation.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

// TransformOptions describes a single image transform.
type TransformOptions struct {
	Width   int
	Height  int
	Format  Format
	Quality int
}

// TransformResult is a fully encoded image held in memory.
type TransformResult struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Transformer decodes, resizes and encodes still images
type Transformer interface {
	// Transform fits src inside the requested box without enlarging it and encodes it
	Transform(ctx context.Context, src []byte, opts TransformOptions) (*TransformResult, error)

	// EncodePoster scales frame down to maxWidth and encodes it as JPEG
	EncodePoster(ctx context.Context, frame image.Image, maxWidth int) (*TransformResult, error)
}

// FrameExtractor reads a single frame from a video file
type FrameExtractor interface {
	// ExtractFrame decodes the frame at offset. Returns ErrFrameExtractionFailure
	// when the stream has no frame there
	ExtractFrame(ctx context.Context, videoPath string, at time.Duration) (image.Image, error)
}

// URLStrategy derives public locators from storage keys
type URLStrategy interface {
	PublicURL(key string) string
}

// Metrics records cache and extraction outcomes
type Metrics interface {
	// ResolveObserved records one derivative resolution; result is hit, generated or error
	ResolveObserved(format Format, result string, d time.Duration)

	// PosterObserved records one poster extraction; result is extracted or error
	PosterObserved(result string, d time.Duration)

	// UploadCommitted records one committed index entry
	UploadCommitted(ns Namespace)
}

// IDGenerator returns a fresh, never reused entry id.
type IDGenerator func() string
