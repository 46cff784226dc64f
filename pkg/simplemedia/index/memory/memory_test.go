package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/index/indextest"
	memoryindex "github.com/tendant/simple-media/pkg/simplemedia/index/memory"
)

func TestMemoryIndex(t *testing.T) {
	indextest.Run(t, func(t *testing.T) simplemedia.Index {
		return memoryindex.New()
	})
}

func TestMemoryIndexSnapshots(t *testing.T) {
	ctx := context.Background()
	idx := memoryindex.New()
	require.NoError(t, idx.Insert(ctx, simplemedia.NamespacePhotos, &simplemedia.MediaEntry{ID: "1", StorageKey: "photos/1-a.png"}))
	require.NoError(t, idx.Insert(ctx, simplemedia.NamespacePhotos, &simplemedia.MediaEntry{ID: "2", StorageKey: "photos/2-b.png"}))

	before, err := idx.List(ctx, simplemedia.NamespacePhotos)
	require.NoError(t, err)

	_, err = idx.Remove(ctx, simplemedia.NamespacePhotos, "2")
	require.NoError(t, err)

	require.Len(t, before, 2)
	assert.Equal(t, "2", before[0].ID)

	_, err = idx.List(ctx, simplemedia.Namespace("music"))
	assert.ErrorIs(t, err, simplemedia.ErrInvalidType)
}
