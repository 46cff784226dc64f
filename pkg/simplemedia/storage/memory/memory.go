package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/presigned"
)

const backendName = "memory"

type object struct {
	data         []byte
	contentType  string
	cacheControl string
}

// CallCounts is a snapshot of how often each store operation ran.
type CallCounts struct {
	Put     int64
	Get     int64
	Head    int64
	Delete  int64
	Presign int64
}

// Backend is an in-memory implementation of the simplemedia.ObjectStore interface.
// It counts calls so tests can assert which round trips an operation made.
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	signer  *presigned.Signer

	puts, gets, heads, deletes, presigns atomic.Int64
}

// Option configures a Backend
type Option func(*Backend)

// WithSigner enables delegated PUT URLs served by the application's /blobs route
func WithSigner(s *presigned.Signer) Option {
	return func(b *Backend) {
		b.signer = s
	}
}

// New creates a new in-memory storage backend
func New(opts ...Option) *Backend {
	b := &Backend{objects: make(map[string]object)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Put stores the reader's content. The object becomes visible only after it is fully read.
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, opts simplemedia.PutOptions) error {
	b.puts.Add(1)
	data, err := io.ReadAll(r)
	if err != nil {
		return &simplemedia.StorageError{Backend: backendName, Key: key, Op: "put", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &simplemedia.StorageError{Backend: backendName, Key: key, Op: "put", Err: err}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = object{data: data, contentType: contentType, cacheControl: opts.CacheControl}
	return nil
}

// Get returns the object's content
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.gets.Add(1)
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, &simplemedia.StorageError{Backend: backendName, Key: key, Op: "get", Err: simplemedia.ErrObjectNotFound}
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Head reports whether the key exists
func (b *Backend) Head(ctx context.Context, key string) (bool, error) {
	b.heads.Add(1)
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.objects[key]
	return exists, nil
}

// Stat returns stored headers for key
func (b *Backend) Stat(ctx context.Context, key string) (*simplemedia.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, &simplemedia.StorageError{Backend: backendName, Key: key, Op: "stat", Err: simplemedia.ErrObjectNotFound}
	}
	return &simplemedia.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		CacheControl: obj.cacheControl,
	}, nil
}

// Delete removes the key. Deleting a missing key succeeds.
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.deletes.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, key)
	return nil
}

// PresignPut issues a signed application URL for one PUT of contentType to key
func (b *Backend) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	b.presigns.Add(1)
	if b.signer == nil {
		return "", &simplemedia.StorageError{Backend: backendName, Key: key, Op: "presign", Err: errors.New("no signer configured")}
	}
	u, err := b.signer.SignPut(key, contentType, ttl)
	if err != nil {
		return "", &simplemedia.StorageError{Backend: backendName, Key: key, Op: "presign", Err: err}
	}
	return u, nil
}

// Calls returns the operation counters
func (b *Backend) Calls() CallCounts {
	return CallCounts{
		Put:     b.puts.Load(),
		Get:     b.gets.Load(),
		Head:    b.heads.Load(),
		Delete:  b.deletes.Load(),
		Presign: b.presigns.Load(),
	}
}

// ResetCalls zeroes the operation counters
func (b *Backend) ResetCalls() {
	b.puts.Store(0)
	b.gets.Store(0)
	b.heads.Store(0)
	b.deletes.Store(0)
	b.presigns.Store(0)
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
