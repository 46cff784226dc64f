package fs_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/presigned"
	fsstorage "github.com/tendant/simple-media/pkg/simplemedia/storage/fs"
)

func TestFSBackend(t *testing.T) {
	baseDir := t.TempDir()
	backend, err := fsstorage.New(fsstorage.Config{BaseDir: baseDir})
	require.NoError(t, err)

	ctx := context.Background()
	key := "optimized/800x0-q80/photos/1-cat.png.webp"
	data := "webp bytes"

	t.Run("Put and Get", func(t *testing.T) {
		err := backend.Put(ctx, key, strings.NewReader(data), simplemedia.PutOptions{
			ContentType:  "image/webp",
			CacheControl: simplemedia.ImmutableCacheControl,
		})
		require.NoError(t, err)

		rc, err := backend.Get(ctx, key)
		require.NoError(t, err)
		defer rc.Close()
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, data, string(got))
	})

	t.Run("Head", func(t *testing.T) {
		exists, err := backend.Head(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = backend.Head(ctx, "optimized/missing.webp")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Stat keeps headers", func(t *testing.T) {
		info, err := backend.Stat(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "image/webp", info.ContentType)
		assert.Equal(t, simplemedia.ImmutableCacheControl, info.CacheControl)
		assert.Equal(t, int64(len(data)), info.Size)
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Join(baseDir, "optimized", "800x0-q80", "photos"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "1-cat.png.webp", entries[0].Name())
	})

	t.Run("Walk", func(t *testing.T) {
		require.NoError(t, backend.Put(ctx, "photos/2-dog.png", strings.NewReader("x"), simplemedia.PutOptions{}))
		var keys []string
		require.NoError(t, backend.Walk("", func(k string) error {
			keys = append(keys, k)
			return nil
		}))
		assert.ElementsMatch(t, []string{key, "photos/2-dog.png"}, keys)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, key))
		_, err := backend.Get(ctx, key)
		assert.ErrorIs(t, err, simplemedia.ErrObjectNotFound)
		assert.NoError(t, backend.Delete(ctx, key))

		_, err = os.Stat(filepath.Join(baseDir, "optimized"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("rejects traversal", func(t *testing.T) {
		err := backend.Put(ctx, "../escape.txt", strings.NewReader("x"), simplemedia.PutOptions{})
		assert.Error(t, err)
		err = backend.Put(ctx, ".meta/photos/1.json", strings.NewReader("x"), simplemedia.PutOptions{})
		assert.Error(t, err)
	})
}

type failingReader struct{ n int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.n == 0 {
		return 0, errors.New("connection reset")
	}
	f.n--
	p[0] = 'x'
	return 1, nil
}

func TestFSBackendPartialWrite(t *testing.T) {
	backend, err := fsstorage.New(fsstorage.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	err = backend.Put(ctx, "photos/1-cat.png", &failingReader{n: 3}, simplemedia.PutOptions{ContentType: "image/png"})
	require.Error(t, err)

	exists, err := backend.Head(ctx, "photos/1-cat.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFSBackendNew(t *testing.T) {
	_, err := fsstorage.New(fsstorage.Config{})
	assert.Error(t, err)

	signer := presigned.New(presigned.WithSecretKey("fs-test-secret"))
	backend, err := fsstorage.New(fsstorage.Config{BaseDir: t.TempDir(), Signer: signer})
	require.NoError(t, err)
	u, err := backend.PresignPut(context.Background(), "videos/1-clip.mp4", "video/mp4", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "/blobs/videos/1-clip.mp4?"))
}
