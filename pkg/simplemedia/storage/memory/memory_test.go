package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/presigned"
	memorystorage "github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testKey := "photos/1-cat.png"
	testData := "not really a png"

	t.Run("Head missing", func(t *testing.T) {
		exists, err := backend.Head(ctx, testKey)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Get missing", func(t *testing.T) {
		_, err := backend.Get(ctx, testKey)
		assert.ErrorIs(t, err, simplemedia.ErrObjectNotFound)

		var storageErr *simplemedia.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, "memory", storageErr.Backend)
		assert.Equal(t, "get", storageErr.Op)
	})

	t.Run("Put", func(t *testing.T) {
		err := backend.Put(ctx, testKey, strings.NewReader(testData), simplemedia.PutOptions{
			ContentType:  "image/png",
			CacheControl: simplemedia.ImmutableCacheControl,
		})
		require.NoError(t, err)
	})

	t.Run("Get", func(t *testing.T) {
		rc, err := backend.Get(ctx, testKey)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, testData, string(data))
	})

	t.Run("Stat", func(t *testing.T) {
		info, err := backend.Stat(ctx, testKey)
		require.NoError(t, err)
		assert.Equal(t, "image/png", info.ContentType)
		assert.Equal(t, simplemedia.ImmutableCacheControl, info.CacheControl)
		assert.Equal(t, int64(len(testData)), info.Size)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, testKey))
		exists, err := backend.Head(ctx, testKey)
		require.NoError(t, err)
		assert.False(t, exists)

		assert.NoError(t, backend.Delete(ctx, testKey))
	})

	t.Run("Calls", func(t *testing.T) {
		calls := backend.Calls()
		assert.Equal(t, int64(1), calls.Put)
		assert.Equal(t, int64(2), calls.Get)
		assert.Equal(t, int64(2), calls.Head)
		assert.Equal(t, int64(2), calls.Delete)

		backend.ResetCalls()
		assert.Equal(t, memorystorage.CallCounts{}, backend.Calls())
	})
}

func TestMemoryPresignPut(t *testing.T) {
	ctx := context.Background()

	t.Run("without signer", func(t *testing.T) {
		_, err := memorystorage.New().PresignPut(ctx, "photos/1-cat.png", "image/png", time.Minute)
		assert.Error(t, err)
	})

	t.Run("with signer", func(t *testing.T) {
		signer := presigned.New(presigned.WithSecretKey("memory-test-secret"), presigned.WithBaseURL("http://localhost:3000"))
		backend := memorystorage.New(memorystorage.WithSigner(signer))

		u, err := backend.PresignPut(ctx, "photos/1-cat.png", "image/png", time.Minute)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(u, "http://localhost:3000/blobs/photos/1-cat.png?"))
	})
}
