package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

func runCatalogTests(t *testing.T, newCatalog func(t *testing.T) Catalog) {
	ctx := context.Background()
	ref := retrieval.MessageRef{Peer: retrieval.PeerChannel, PeerID: 1001, AccessHash: 77, MessageID: 5}
	entry := &Entry{
		Ref:       ref,
		ContentID: "chan-1001/5.jpg",
		Kind:      retrieval.ContentPhoto,
		MimeType:  "image/jpeg",
		Size:      2048,
		AddedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("PutAndGet", func(t *testing.T) {
		c := newCatalog(t)
		require.NoError(t, c.Put(ctx, entry))

		got, err := c.Get(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, entry.ContentID, got.ContentID)
		assert.Equal(t, entry.Kind, got.Kind)
		assert.Equal(t, entry.MimeType, got.MimeType)
		assert.Equal(t, entry.Ref, got.Ref)
		assert.True(t, entry.AddedAt.Equal(got.AddedAt))
	})

	t.Run("Missing", func(t *testing.T) {
		c := newCatalog(t)
		_, err := c.Get(ctx, ref)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("AccessHash", func(t *testing.T) {
		c := newCatalog(t)
		require.NoError(t, c.Put(ctx, entry))

		wrong := ref
		wrong.AccessHash = 78
		_, err := c.Get(ctx, wrong)
		assert.ErrorIs(t, err, ErrAccessHashMismatch)

		unchecked := ref
		unchecked.AccessHash = 0
		_, err = c.Get(ctx, unchecked)
		assert.NoError(t, err)
	})

	t.Run("PeerKindIsPartOfKey", func(t *testing.T) {
		c := newCatalog(t)
		require.NoError(t, c.Put(ctx, entry))

		other := ref
		other.Peer = retrieval.PeerChat
		_, err := c.Get(ctx, other)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		c := newCatalog(t)
		require.NoError(t, c.Put(ctx, entry))
		require.NoError(t, c.Delete(ctx, ref))
		_, err := c.Get(ctx, ref)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, c.Delete(ctx, ref))
	})

	t.Run("ListInMessageOrder", func(t *testing.T) {
		c := newCatalog(t)
		for _, id := range []int64{30, 4, 100} {
			e := *entry
			e.Ref.MessageID = id
			require.NoError(t, c.Put(ctx, &e))
		}

		var ids []int64
		require.NoError(t, c.List(ctx, func(e *Entry) error {
			ids = append(ids, e.Ref.MessageID)
			return nil
		}))
		assert.Equal(t, []int64{4, 30, 100}, ids)
	})

	t.Run("ListStopsOnError", func(t *testing.T) {
		c := newCatalog(t)
		require.NoError(t, c.Put(ctx, entry))

		stop := errors.New("stop")
		err := c.List(ctx, func(*Entry) error { return stop })
		assert.ErrorIs(t, err, stop)
	})

	t.Run("RejectsEmptyContentID", func(t *testing.T) {
		c := newCatalog(t)
		err := c.Put(ctx, &Entry{Ref: ref})
		assert.Error(t, err)
	})
}

func TestMemoryCatalog(t *testing.T) {
	runCatalogTests(t, func(t *testing.T) Catalog {
		return NewMemoryCatalog()
	})
}

func TestBadgerCatalog(t *testing.T) {
	runCatalogTests(t, func(t *testing.T) Catalog {
		c, err := NewBadgerCatalog(context.Background(), BadgerConfig{DBPath: t.TempDir()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		return c
	})

	t.Run("Reopen", func(t *testing.T) {
		ctx := context.Background()
		dir := t.TempDir()
		ref := retrieval.MessageRef{PeerID: 1, MessageID: 2}

		c, err := NewBadgerCatalog(ctx, BadgerConfig{DBPath: dir})
		require.NoError(t, err)
		require.NoError(t, c.Put(ctx, &Entry{Ref: ref, ContentID: "x"}))
		require.NoError(t, c.Close())

		c, err = NewBadgerCatalog(ctx, BadgerConfig{DBPath: dir})
		require.NoError(t, err)
		defer func() { _ = c.Close() }()

		got, err := c.Get(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, "x", string(got.ContentID))
	})

	t.Run("RequiresPath", func(t *testing.T) {
		_, err := NewBadgerCatalog(context.Background(), BadgerConfig{})
		assert.Error(t, err)
	})
}
