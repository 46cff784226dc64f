package presigned_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia/presigned"
)

const secret = "test-secret-key-that-is-long-enough"

func putRequest(t *testing.T, signed, contentType string) *http.Request {
	t.Helper()
	u, err := url.Parse(signed)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, u.RequestURI(), nil)
	req.Header.Set("Content-Type", contentType)
	return req
}

func TestSignPut(t *testing.T) {
	now := time.Unix(1700000000, 0)
	signer := presigned.New(
		presigned.WithSecretKey(secret),
		presigned.WithBaseURL("http://localhost:3000/"),
		presigned.WithClock(func() time.Time { return now }),
	)

	signed, err := signer.SignPut("photos/1-cat.png", "image/png", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, signed, "http://localhost:3000/blobs/photos/1-cat.png?")
	assert.Contains(t, signed, "expires=1700000900")
	assert.Contains(t, signed, "signature=")

	t.Run("no secret", func(t *testing.T) {
		_, err := presigned.New().SignPut("photos/1-cat.png", "image/png", time.Minute)
		assert.ErrorIs(t, err, presigned.ErrNoSecretKey)
	})
}

func TestValidateRequest(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	signer := presigned.New(presigned.WithSecretKey(secret), presigned.WithClock(clock))

	sign := func(t *testing.T, key, contentType string) string {
		t.Helper()
		signed, err := signer.SignPut(key, contentType, 15*time.Minute)
		require.NoError(t, err)
		return signed
	}

	t.Run("accepts once", func(t *testing.T) {
		signed := sign(t, "photos/1-cat.png", "image/png")

		key, err := signer.ValidateRequest(putRequest(t, signed, "image/png"))
		require.NoError(t, err)
		assert.Equal(t, "photos/1-cat.png", key)

		_, err = signer.ValidateRequest(putRequest(t, signed, "image/png"))
		assert.ErrorIs(t, err, presigned.ErrAlreadyUsed)
	})

	t.Run("content type is bound", func(t *testing.T) {
		signed := sign(t, "photos/2-cat.png", "image/png")
		_, err := signer.ValidateRequest(putRequest(t, signed, "video/mp4"))
		assert.ErrorIs(t, err, presigned.ErrInvalidSignature)
	})

	t.Run("method is bound", func(t *testing.T) {
		signed := sign(t, "photos/3-cat.png", "image/png")
		req := putRequest(t, signed, "image/png")
		req.Method = http.MethodPost
		_, err := signer.ValidateRequest(req)
		assert.ErrorIs(t, err, presigned.ErrInvalidSignature)
	})

	t.Run("key is bound", func(t *testing.T) {
		signed := sign(t, "photos/4-cat.png", "image/png")
		u, _ := url.Parse(signed)
		u.Path = "/blobs/photos/5-dog.png"
		_, err := signer.ValidateRequest(putRequest(t, u.String(), "image/png"))
		assert.ErrorIs(t, err, presigned.ErrInvalidSignature)
	})

	t.Run("escaped keys round trip", func(t *testing.T) {
		signed := sign(t, "photos/6-café.png", "image/png")
		key, err := signer.ValidateRequest(putRequest(t, signed, "image/png"))
		require.NoError(t, err)
		assert.Equal(t, "photos/6-café.png", key)
	})

	t.Run("expired", func(t *testing.T) {
		signed := sign(t, "photos/7-cat.png", "image/png")
		later := presigned.New(presigned.WithSecretKey(secret), presigned.WithClock(func() time.Time {
			return now.Add(16 * time.Minute)
		}))
		_, err := later.ValidateRequest(putRequest(t, signed, "image/png"))
		assert.ErrorIs(t, err, presigned.ErrExpired)
	})

	t.Run("missing parameters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/blobs/photos/8-cat.png", nil)
		_, err := signer.ValidateRequest(req)
		assert.ErrorIs(t, err, presigned.ErrMissingSignature)

		req = httptest.NewRequest(http.MethodPut, "/blobs/photos/8-cat.png?signature=abc", nil)
		_, err = signer.ValidateRequest(req)
		assert.ErrorIs(t, err, presigned.ErrMissingExpiration)

		req = httptest.NewRequest(http.MethodPut, "/blobs/photos/8-cat.png?signature=abc&expires=soon", nil)
		_, err = signer.ValidateRequest(req)
		assert.ErrorIs(t, err, presigned.ErrInvalidExpiration)
		assert.True(t, presigned.IsAuthError(err))
	})
}

func TestValidateMiddleware(t *testing.T) {
	signer := presigned.New(presigned.WithSecretKey(secret))
	var gotKey string
	handler := presigned.ValidateMiddleware(signer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = presigned.ObjectKeyFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	signed, err := signer.SignPut("videos/1-clip.mp4", "video/mp4", time.Minute)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, putRequest(t, signed, "video/mp4"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "videos/1-clip.mp4", gotKey)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, putRequest(t, signed, "video/mp4"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/blobs/videos/1-clip.mp4", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
