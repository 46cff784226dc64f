package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	boltindex "github.com/tendant/simple-media/pkg/simplemedia/index/bolt"
	"github.com/tendant/simple-media/pkg/simplemedia/index/indextest"
)

func TestBoltIndex(t *testing.T) {
	indextest.Run(t, func(t *testing.T) simplemedia.Index {
		idx, err := boltindex.Open(filepath.Join(t.TempDir(), "index.db"))
		require.NoError(t, err)
		t.Cleanup(func() { idx.Close() })
		return idx
	})
}

func TestBoltIndexPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := boltindex.Open(path)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(ctx, simplemedia.NamespaceSponsors, &simplemedia.MediaEntry{ID: "1", StorageKey: "sponsors/1-logo.png"}))
	require.NoError(t, idx.Insert(ctx, simplemedia.NamespaceSponsors, &simplemedia.MediaEntry{ID: "2", StorageKey: "sponsors/2-logo.png"}))
	require.NoError(t, idx.Close())

	idx, err = boltindex.Open(path)
	require.NoError(t, err)
	defer idx.Close()

	list, err := idx.List(ctx, simplemedia.NamespaceSponsors)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2", list[0].ID)
	assert.Equal(t, "1", list[1].ID)

	_, err = idx.List(ctx, simplemedia.Namespace("music"))
	assert.ErrorIs(t, err, simplemedia.ErrInvalidType)
}
