package simplemedia_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	memoryindex "github.com/tendant/simple-media/pkg/simplemedia/index/memory"
	"github.com/tendant/simple-media/pkg/simplemedia/presigned"
	memorystorage "github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
	"github.com/tendant/simple-media/pkg/simplemedia/transform"
	"github.com/tendant/simple-media/pkg/simplemedia/urlstrategy"
)

const testBaseURL = "http://media.test"

type fixture struct {
	service simplemedia.Service
	store   *memorystorage.Backend
	index   *memoryindex.Index
	events  *recordingSink
}

// newFixture wires a service over in-memory collaborators. Extra options
// are applied after the defaults.
func newFixture(t *testing.T, opts ...simplemedia.Option) *fixture {
	t.Helper()
	signer := presigned.New(presigned.WithSecretKey("test-secret"), presigned.WithBaseURL(testBaseURL))
	f := &fixture{
		store:  memorystorage.New(memorystorage.WithSigner(signer)),
		index:  memoryindex.New(),
		events: &recordingSink{},
	}

	base := []simplemedia.Option{
		simplemedia.WithObjectStore(f.store),
		simplemedia.WithIndex(f.index),
		simplemedia.WithTransformer(transform.NewImaging()),
		simplemedia.WithURLStrategy(urlstrategy.NewLocalStrategy(testBaseURL)),
		simplemedia.WithEventSink(f.events),
	}
	svc, err := simplemedia.New(append(base, opts...)...)
	require.NoError(t, err)
	f.service = svc
	return f
}

func (f *fixture) putPNG(t *testing.T, key string, w, h int) {
	t.Helper()
	require.NoError(t, f.store.Put(context.Background(), key, bytes.NewReader(encodePNG(t, w, h)), simplemedia.PutOptions{ContentType: "image/png"}))
}

func (f *fixture) read(t *testing.T, key string) []byte {
	t.Helper()
	rc, err := f.store.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 7 {
		for x := 0; x < w; x += 7 {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeConfig(t *testing.T, data []byte) (image.Config, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg, format
}

type recordingSink struct {
	mu     sync.Mutex
	events []simplemedia.Event
	err    error
}

func (r *recordingSink) Publish(ctx context.Context, ev simplemedia.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSink) kinds() []simplemedia.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]simplemedia.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

// failingDeleteStore refuses every delete.
type failingDeleteStore struct {
	*memorystorage.Backend
}

func (s failingDeleteStore) Delete(ctx context.Context, key string) error {
	return &simplemedia.StorageError{Backend: "memory", Key: key, Op: "delete", Err: errors.New("bucket is read-only")}
}

// stallingStore blocks reads until the caller gives up.
type stallingStore struct {
	*memorystorage.Backend
}

func (s stallingStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// brokenStore fails every probe with a transport error.
type brokenStore struct {
	*memorystorage.Backend
}

func (s brokenStore) Head(ctx context.Context, key string) (bool, error) {
	return false, errors.New("connection reset by peer")
}

// scriptedFrames returns a fixed frame, optionally only at offset zero.
type scriptedFrames struct {
	mu          sync.Mutex
	firstOnly   bool
	calls       []time.Duration
	paths       []string
	fail        error
	frameWidth  int
	frameHeight int
}

func (s *scriptedFrames) ExtractFrame(ctx context.Context, videoPath string, at time.Duration) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, at)
	s.paths = append(s.paths, videoPath)

	if s.fail != nil {
		return nil, s.fail
	}
	if s.firstOnly && at > 0 {
		return nil, simplemedia.ErrFrameExtractionFailure
	}
	w, h := s.frameWidth, s.frameHeight
	if w == 0 {
		w, h = 1280, 720
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

func stringsReader(s string) io.Reader {
	return bytes.NewReader([]byte(s))
}

func transformer() simplemedia.Transformer {
	return transform.NewImaging()
}

func urls() simplemedia.URLStrategy {
	return urlstrategy.NewLocalStrategy(testBaseURL)
}
