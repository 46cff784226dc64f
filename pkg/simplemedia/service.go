package simplemedia

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tendant/simple-media/pkg/simplemedia/objectkey"
)

// Service defines the main interface for the simple-media library
type Service interface {
	// Upload coordination
	RequestUploadSlot(ctx context.Context, req UploadSlotRequest) (*UploadSlot, error)
	CompleteUpload(ctx context.Context, req CompleteUploadRequest) (*MediaEntry, error)
	LinkExternalVideo(ctx context.Context, req LinkVideoRequest) (*MediaEntry, error)
	Upload(ctx context.Context, req UploadRequest) (*MediaEntry, error)

	// Index operations
	List(ctx context.Context, ns Namespace) ([]*MediaEntry, error)
	Get(ctx context.Context, ns Namespace, id string) (*MediaEntry, error)
	Delete(ctx context.Context, ns Namespace, id string) error

	// Derivatives
	Resolve(ctx context.Context, spec DerivativeSpec) (*Derivative, error)
	ExtractPoster(ctx context.Context, req ExtractPosterRequest) (*Poster, error)

	// PublicURL derives the public locator of a storage key
	PublicURL(key string) string
}

const (
	DefaultUploadTTL      = 15 * time.Minute
	DefaultImageTimeout   = 30 * time.Second
	DefaultVideoTimeout   = 2 * time.Minute
	DefaultMaxSourceBytes = 200 << 20
	DefaultPosterWidth    = 640
	DefaultPosterOffset   = 2 * time.Second
)

// service implements the Service interface
type service struct {
	store     ObjectStore
	index     Index
	sink      EventSink
	logger    *slog.Logger
	transform Transformer
	frames    FrameExtractor
	metrics   Metrics
	urls      URLStrategy
	stamper   *objectkey.Stamper
	newID     IDGenerator
	now       func() time.Time

	uploadTTL        time.Duration
	imageTimeout     time.Duration
	videoTimeout     time.Duration
	maxSourceBytes   int64
	posterWidth      int
	posterOffset     time.Duration
	strictCompletion bool

	inflight singleflight.Group
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithObjectStore sets the object store backend
func WithObjectStore(store ObjectStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithIndex sets the metadata index
func WithIndex(index Index) Option {
	return func(s *service) {
		s.index = index
	}
}

// WithEventSink sets the analytics sink
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.sink = sink
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithTransformer sets the image transformer
func WithTransformer(t Transformer) Option {
	return func(s *service) {
		s.transform = t
	}
}

// WithFrameExtractor sets the video frame extractor used for posters
func WithFrameExtractor(f FrameExtractor) Option {
	return func(s *service) {
		s.frames = f
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithURLStrategy sets how public URLs are derived from keys
func WithURLStrategy(u URLStrategy) Option {
	return func(s *service) {
		s.urls = u
	}
}

// WithStamper sets the upload key stamp source
func WithStamper(st *objectkey.Stamper) Option {
	return func(s *service) {
		s.stamper = st
	}
}

// WithIDGenerator sets the entry id source
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *service) {
		s.newID = gen
	}
}

// WithClock sets the clock used for entry timestamps
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithUploadTTL sets how long delegated write URLs stay valid
func WithUploadTTL(ttl time.Duration) Option {
	return func(s *service) {
		s.uploadTTL = ttl
	}
}

// WithTimeouts sets the fetch and transform deadlines for images and videos
func WithTimeouts(image, video time.Duration) Option {
	return func(s *service) {
		s.imageTimeout = image
		s.videoTimeout = video
	}
}

// WithMaxSourceBytes bounds how much of a source object is read into memory
func WithMaxSourceBytes(n int64) Option {
	return func(s *service) {
		s.maxSourceBytes = n
	}
}

// WithPoster sets the poster bounding width and frame offset
func WithPoster(width int, offset time.Duration) Option {
	return func(s *service) {
		s.posterWidth = width
		s.posterOffset = offset
	}
}

// WithStrictCompletion makes CompleteUpload verify the blob exists before committing
func WithStrictCompletion(strict bool) Option {
	return func(s *service) {
		s.strictCompletion = strict
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		uploadTTL:      DefaultUploadTTL,
		imageTimeout:   DefaultImageTimeout,
		videoTimeout:   DefaultVideoTimeout,
		maxSourceBytes: DefaultMaxSourceBytes,
		posterWidth:    DefaultPosterWidth,
		posterOffset:   DefaultPosterOffset,
	}

	for _, option := range options {
		option(s)
	}

	if s.store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if s.index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if s.transform == nil {
		return nil, fmt.Errorf("transformer is required")
	}
	if s.urls == nil {
		return nil, fmt.Errorf("url strategy is required")
	}
	if s.sink == nil {
		s.sink = NewNoopEventSink()
	}
	if s.metrics == nil {
		s.metrics = NewNoopMetrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.stamper == nil {
		s.stamper = objectkey.NewStamper(nil)
	}
	if s.newID == nil {
		s.newID = newEntryID
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.uploadTTL <= 0 {
		return nil, fmt.Errorf("upload ttl must be positive")
	}

	return s, nil
}

func (s *service) PublicURL(key string) string {
	return s.urls.PublicURL(key)
}

// newEntryID returns a time-ordered UUID so ids sort by creation.
func newEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// publish delivers an event without letting sink failures reach the caller.
func (s *service) publish(ctx context.Context, kind EventKind, ns Namespace, id, key string) {
	ev := Event{
		Kind:       kind,
		Namespace:  ns,
		EntryID:    id,
		StorageKey: key,
		OccurredAt: s.now().UTC(),
	}
	if err := s.sink.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn("event sink publish failed", "kind", kind, "type", ns, "id", id, "error", err)
	}
}
