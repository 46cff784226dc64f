package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/api"
	memoryindex "github.com/tendant/simple-media/pkg/simplemedia/index/memory"
	"github.com/tendant/simple-media/pkg/simplemedia/presigned"
	memorystorage "github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
	"github.com/tendant/simple-media/pkg/simplemedia/transform"
	"github.com/tendant/simple-media/pkg/simplemedia/urlstrategy"
)

const baseURL = "http://media.test"

type stillFrames struct{}

func (stillFrames) ExtractFrame(ctx context.Context, videoPath string, at time.Duration) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1280, 720)), nil
}

type testEnv struct {
	handler http.Handler
	store   *memorystorage.Backend
	service simplemedia.Service
}

func setup(t *testing.T, opts ...api.Option) *testEnv {
	t.Helper()
	signer := presigned.New(presigned.WithSecretKey("test-secret"), presigned.WithBaseURL(baseURL))
	store := memorystorage.New(memorystorage.WithSigner(signer))

	svc, err := simplemedia.New(
		simplemedia.WithObjectStore(store),
		simplemedia.WithIndex(memoryindex.New()),
		simplemedia.WithTransformer(transform.NewImaging()),
		simplemedia.WithFrameExtractor(stillFrames{}),
		simplemedia.WithURLStrategy(urlstrategy.NewLocalStrategy(baseURL)),
	)
	require.NoError(t, err)

	opts = append([]api.Option{api.WithBlobStore(store, signer)}, opts...)
	return &testEnv{
		handler: api.New(svc, opts...).Routes(),
		store:   store,
		service: svc,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestDirectUploadFlow(t *testing.T) {
	env := setup(t)

	w := env.do(t, http.MethodPost, "/upload/presign/photos", api.PresignRequest{Filename: "cat.png", ContentType: "image/png"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var slot api.PresignResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &slot))
	assert.True(t, slot.Success)
	assert.Regexp(t, `^photos/\d+-cat\.png$`, slot.Key)
	assert.Equal(t, baseURL+"/blobs/"+slot.Key, slot.URL)

	// The client writes directly with the delegated URL.
	put := httptest.NewRequest(http.MethodPut, slot.UploadURL, bytes.NewReader(pngBytes(t, 200, 100)))
	put.Header.Set("Content-Type", "image/png")
	pw := httptest.NewRecorder()
	env.handler.ServeHTTP(pw, put)
	require.Equal(t, http.StatusOK, pw.Code, pw.Body.String())

	t.Run("delegated url is single use", func(t *testing.T) {
		again := httptest.NewRequest(http.MethodPut, slot.UploadURL, strings.NewReader("overwrite"))
		again.Header.Set("Content-Type", "image/png")
		aw := httptest.NewRecorder()
		env.handler.ServeHTTP(aw, again)
		assert.Equal(t, http.StatusForbidden, aw.Code)
	})

	w = env.do(t, http.MethodPost, "/upload/complete", api.CompleteRequest{Type: "photos", Key: slot.Key, ContentType: "image/png"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var completed api.EntryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &completed))
	assert.Equal(t, slot.Key, completed.Entry.StorageKey)
	assert.Equal(t, path.Base(slot.Key), completed.Entry.DisplayName)

	w = env.do(t, http.MethodGet, "/data/photos", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []simplemedia.MediaEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, completed.Entry.ID, list[0].ID)

	t.Run("blob served with headers", func(t *testing.T) {
		bw := env.do(t, http.MethodGet, "/blobs/"+slot.Key, nil)
		require.Equal(t, http.StatusOK, bw.Code)
		assert.Equal(t, "image/png", bw.Header().Get("Content-Type"))
		_, err := png.Decode(bw.Body)
		assert.NoError(t, err)
	})

	t.Run("image derivative redirects", func(t *testing.T) {
		iw := env.do(t, http.MethodGet, "/img/"+slot.Key+"?w=100&f=jpg&q=70", nil)
		require.Equal(t, http.StatusFound, iw.Code, iw.Body.String())
		assert.Equal(t, simplemedia.ImmutableCacheControl, iw.Header().Get("Cache-Control"))

		location := iw.Header().Get("Location")
		assert.Equal(t, baseURL+"/blobs/optimized/100x0-q70/"+slot.Key+".jpeg", location)

		dw := env.do(t, http.MethodGet, strings.TrimPrefix(location, baseURL), nil)
		require.Equal(t, http.StatusOK, dw.Code)
		assert.Equal(t, "image/jpeg", dw.Header().Get("Content-Type"))
		assert.Equal(t, simplemedia.ImmutableCacheControl, dw.Header().Get("Cache-Control"))
	})

	t.Run("explicit zero quality clamps to one", func(t *testing.T) {
		for query, want := range map[string]string{
			"?w=100&f=jpg&q=0":   "optimized/100x0-q1/",
			"?w=100&f=jpg&q=-4":  "optimized/100x0-q1/",
			"?w=100&f=jpg":       "optimized/100x0-q82/",
			"?w=100&f=jpg&q=abc": "optimized/100x0-q82/",
		} {
			iw := env.do(t, http.MethodGet, "/img/"+slot.Key+query, nil)
			require.Equal(t, http.StatusFound, iw.Code, iw.Body.String())
			assert.Equal(t, baseURL+"/blobs/"+want+slot.Key+".jpeg", iw.Header().Get("Location"), query)
		}
	})

	w = env.do(t, http.MethodDelete, "/delete/photos/"+completed.Entry.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/delete/photos/"+completed.Entry.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/blobs/"+slot.Key, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPresignValidation(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name     string
		target   string
		body     api.PresignRequest
		wantKind string
	}{
		{"invalid type", "/upload/presign/music", api.PresignRequest{Filename: "a.mp3", ContentType: "audio/mpeg"}, "InvalidType"},
		{"missing filename", "/upload/presign/photos", api.PresignRequest{ContentType: "image/png"}, "MissingField"},
		{"missing content type", "/upload/presign/photos", api.PresignRequest{Filename: "a.png"}, "MissingField"},
		{"type mismatch", "/upload/presign/videos", api.PresignRequest{Filename: "a.png", ContentType: "image/png"}, "InvalidType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantKind, resp.Kind)
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload/presign/photos", strings.NewReader("{"))
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListUnknownType(t *testing.T) {
	env := setup(t)

	w := env.do(t, http.MethodGet, "/data/unknown", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = env.do(t, http.MethodGet, "/data/videos", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestLinkExternalVideo(t *testing.T) {
	env := setup(t)

	w := env.do(t, http.MethodPost, "/upload/youtube", api.LinkVideoRequest{URL: "https://youtu.be/dQw4w9WgXcQ"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp api.EntryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "dQw4w9WgXcQ", resp.Entry.ExternalVideoID)
	assert.Empty(t, resp.Entry.StorageKey)

	gw := env.do(t, http.MethodGet, "/data/videos/"+resp.Entry.ID, nil)
	require.Equal(t, http.StatusOK, gw.Code)

	w = env.do(t, http.MethodPost, "/upload/youtube", api.LinkVideoRequest{URL: "https://example.com/watch"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProxiedUpload(t *testing.T) {
	env := setup(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="team logo.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t, 10, 10))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload/sponsors", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp api.EntryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Regexp(t, `^sponsors/\d+-team_logo\.png$`, resp.Entry.StorageKey)
	assert.Equal(t, "image/png", resp.Entry.ContentType)

	ok, err := env.store.Head(context.Background(), resp.Entry.StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("missing file part", func(t *testing.T) {
		var empty bytes.Buffer
		mw := multipart.NewWriter(&empty)
		require.NoError(t, mw.WriteField("name", "x"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/upload/photos", &empty)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestResolveImageMissingSource(t *testing.T) {
	env := setup(t)

	w := env.do(t, http.MethodGet, "/img/photos/404-missing.png?w=800", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, env.store.Len())

	w = env.do(t, http.MethodGet, "/img/photos/1-a.png?f=gif", nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestExtractPoster(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	require.NoError(t, env.store.Put(ctx, "videos/1-clip.mp4", strings.NewReader("not really a video"), simplemedia.PutOptions{ContentType: "video/mp4"}))
	entry, err := env.service.CompleteUpload(ctx, simplemedia.CompleteUploadRequest{Namespace: simplemedia.NamespaceVideos, StorageKey: "videos/1-clip.mp4"})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/video/poster", api.PosterRequest{Key: "videos/1-clip.mp4", ID: entry.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp api.PosterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "thumbnails/1-clip.jpg", resp.PosterKey)
	assert.Equal(t, baseURL+"/blobs/thumbnails/1-clip.jpg", resp.PosterURL)
	assert.Equal(t, entry.ID, resp.EntryID)

	w = env.do(t, http.MethodPost, "/video/poster", api.PosterRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	const secret = "jwt-secret"
	env := setup(t, api.WithJWTSecret(secret))

	w := env.do(t, http.MethodPost, "/upload/youtube", api.LinkVideoRequest{URL: "https://youtu.be/dQw4w9WgXcQ"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Read routes stay public.
	w = env.do(t, http.MethodGet, "/data/videos", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	_, token, err := jwtauth.New("HS256", []byte(secret), nil).Encode(map[string]interface{}{"sub": "admin"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(api.LinkVideoRequest{URL: "https://youtu.be/dQw4w9WgXcQ"}))
	req := httptest.NewRequest(http.MethodPost, "/upload/youtube", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	env := setup(t, api.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "# metrics")
	})))

	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics", w.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{simplemedia.ErrInvalidType, http.StatusBadRequest},
		{simplemedia.ErrMissingField, http.StatusBadRequest},
		{simplemedia.ErrInvalidReference, http.StatusBadRequest},
		{simplemedia.ErrSourceNotFound, http.StatusNotFound},
		{&simplemedia.EntryError{Op: "delete", Err: simplemedia.ErrEntryNotFound}, http.StatusNotFound},
		{simplemedia.ErrDuplicateKey, http.StatusConflict},
		{simplemedia.ErrSourceTooLarge, http.StatusRequestEntityTooLarge},
		{simplemedia.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{simplemedia.ErrDecodeFailure, http.StatusUnprocessableEntity},
		{simplemedia.ErrFrameExtractionFailure, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: bucket down", simplemedia.ErrStorageUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: %w", simplemedia.ErrTimeout, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, api.StatusFor(tt.err))
		})
	}
}
