// Package indextest holds behaviour tests shared by every Index backend.
package indextest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Run exercises an index implementation. newIndex must return an empty index.
func Run(t *testing.T, newIndex func(t *testing.T) simplemedia.Index) {
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	entry := func(id, key string) *simplemedia.MediaEntry {
		return &simplemedia.MediaEntry{
			ID:          id,
			StorageKey:  key,
			DisplayName: id,
			SourceURL:   "https://cdn.example.com/" + key,
			ContentType: "image/png",
			CreatedAt:   created,
		}
	}

	t.Run("insert at front", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Insert(ctx, simplemedia.NamespacePhotos, entry("1", "photos/1-a.png")))
		require.NoError(t, idx.Insert(ctx, simplemedia.NamespacePhotos, entry("2", "photos/2-b.png")))
		require.NoError(t, idx.Insert(ctx, simplemedia.NamespacePhotos, entry("3", "photos/3-c.png")))

		list, err := idx.List(ctx, simplemedia.NamespacePhotos)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "3", list[0].ID)
		assert.Equal(t, "2", list[1].ID)
		assert.Equal(t, "1", list[2].ID)
		assert.Equal(t, simplemedia.NamespacePhotos, list[0].Namespace)
		assert.True(t, created.Equal(list[0].CreatedAt))
	})

	t.Run("namespaces are independent", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Insert(ctx, simplemedia.NamespacePhotos, entry("1", "shared/1-a.png")))
		require.NoError(t, idx.Insert(ctx, simplemedia.NamespaceSponsors, entry("1", "shared/1-a.png")))

		videos, err := idx.List(ctx, simplemedia.NamespaceVideos)
		require.NoError(t, err)
		assert.Empty(t, videos)

		_, err = idx.FindByID(ctx, simplemedia.NamespaceVideos, "1")
		assert.ErrorIs(t, err, simplemedia.ErrEntryNotFound)
	})

	t.Run("find by id and key", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Insert(ctx, simplemedia.NamespacePhotos, entry("1", "photos/1-a.png")))

		got, err := idx.FindByID(ctx, simplemedia.NamespacePhotos, "1")
		require.NoError(t, err)
		assert.Equal(t, "photos/1-a.png", got.StorageKey)
		assert.Equal(t, "image/png", got.ContentType)

		got, err = idx.FindByKey(ctx, simplemedia.NamespacePhotos, "photos/1-a.png")
		require.NoError(t, err)
		assert.Equal(t, "1", got.ID)

		_, err = idx.FindByKey(ctx, simplemedia.NamespacePhotos, "photos/missing.png")
		assert.ErrorIs(t, err, simplemedia.ErrEntryNotFound)
	})

	t.Run("duplicate storage key", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Insert(ctx, simplemedia.NamespacePhotos, entry("1", "photos/1-a.png")))
		err := idx.Insert(ctx, simplemedia.NamespacePhotos, entry("2", "photos/1-a.png"))
		assert.ErrorIs(t, err, simplemedia.ErrDuplicateKey)

		list, err := idx.List(ctx, simplemedia.NamespacePhotos)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("external entries without key", func(t *testing.T) {
		idx := newIndex(t)
		a := &simplemedia.MediaEntry{ID: "1", ExternalVideoID: "dQw4w9WgXcQ", SourceURL: "https://youtu.be/dQw4w9WgXcQ", CreatedAt: created}
		b := &simplemedia.MediaEntry{ID: "2", ExternalVideoID: "aaaaaaaaaaa", SourceURL: "https://youtu.be/aaaaaaaaaaa", CreatedAt: created}
		require.NoError(t, idx.Insert(ctx, simplemedia.NamespaceVideos, a))
		require.NoError(t, idx.Insert(ctx, simplemedia.NamespaceVideos, b))

		got, err := idx.FindByID(ctx, simplemedia.NamespaceVideos, "1")
		require.NoError(t, err)
		assert.Equal(t, "dQw4w9WgXcQ", got.ExternalVideoID)
		assert.Empty(t, got.StorageKey)

		_, err = idx.FindByKey(ctx, simplemedia.NamespaceVideos, "")
		assert.ErrorIs(t, err, simplemedia.ErrEntryNotFound)
	})

	t.Run("remove", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Insert(ctx, simplemedia.NamespacePhotos, entry("1", "photos/1-a.png")))
		require.NoError(t, idx.Insert(ctx, simplemedia.NamespacePhotos, entry("2", "photos/2-b.png")))

		removed, err := idx.Remove(ctx, simplemedia.NamespacePhotos, "1")
		require.NoError(t, err)
		assert.Equal(t, "photos/1-a.png", removed.StorageKey)

		_, err = idx.FindByID(ctx, simplemedia.NamespacePhotos, "1")
		assert.ErrorIs(t, err, simplemedia.ErrEntryNotFound)

		_, err = idx.Remove(ctx, simplemedia.NamespacePhotos, "1")
		assert.ErrorIs(t, err, simplemedia.ErrEntryNotFound)

		list, err := idx.List(ctx, simplemedia.NamespacePhotos)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "2", list[0].ID)
	})

	t.Run("update poster", func(t *testing.T) {
		idx := newIndex(t)
		e := entry("1", "videos/1-clip.mp4")
		e.ContentType = "video/mp4"
		require.NoError(t, idx.Insert(ctx, simplemedia.NamespaceVideos, e))

		updated, err := idx.UpdatePoster(ctx, simplemedia.NamespaceVideos, "1", "thumbnails/1-clip.jpg", "https://cdn.example.com/thumbnails/1-clip.jpg")
		require.NoError(t, err)
		assert.Equal(t, "thumbnails/1-clip.jpg", updated.PosterKey)

		got, err := idx.FindByID(ctx, simplemedia.NamespaceVideos, "1")
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/thumbnails/1-clip.jpg", got.PosterURL)

		_, err = idx.UpdatePoster(ctx, simplemedia.NamespaceVideos, "missing", "k", "u")
		assert.ErrorIs(t, err, simplemedia.ErrEntryNotFound)
	})

	t.Run("returned entries are copies", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Insert(ctx, simplemedia.NamespacePhotos, entry("1", "photos/1-a.png")))

		got, err := idx.FindByID(ctx, simplemedia.NamespacePhotos, "1")
		require.NoError(t, err)
		got.DisplayName = "mutated"

		again, err := idx.FindByID(ctx, simplemedia.NamespacePhotos, "1")
		require.NoError(t, err)
		assert.Equal(t, "1", again.DisplayName)
	})

	t.Run("concurrent inserts are all kept", func(t *testing.T) {
		idx := newIndex(t)
		const n = 50
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ns := simplemedia.Namespaces()[i%3]
				id := fmt.Sprintf("%d", i)
				assert.NoError(t, idx.Insert(ctx, ns, entry(id, fmt.Sprintf("%s/%d-x.png", ns, i))))
			}(i)
		}
		wg.Wait()

		total := 0
		for _, ns := range simplemedia.Namespaces() {
			list, err := idx.List(ctx, ns)
			require.NoError(t, err)
			total += len(list)
		}
		assert.Equal(t, n, total)
	})
}
