package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]BlobStore {
	return map[string]BlobStore{
		"memory": NewMemoryStore(),
		"local":  NewLocalStore(t.TempDir()),
	}
}

func TestBlobStore_Lifecycle(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			data := []byte("hello world, this is a fragment")

			w, err := store.Create(ctx, "arr/__fragments/0001.frag")
			require.NoError(t, err)
			n, err := w.Write(data)
			require.NoError(t, err)
			require.Equal(t, len(data), n)
			require.NoError(t, w.Sync())
			require.NoError(t, w.Close())

			blob, err := store.Open(ctx, "arr/__fragments/0001.frag")
			require.NoError(t, err)
			defer blob.Close()
			assert.Equal(t, int64(len(data)), blob.Size())

			buf := make([]byte, 5)
			n, err = blob.ReadAt(ctx, buf, 6)
			require.NoError(t, err)
			assert.Equal(t, "world", string(buf[:n]))

			n, err = blob.ReadAt(ctx, make([]byte, 10), int64(len(data)-4))
			assert.ErrorIs(t, err, io.EOF)
			assert.Equal(t, 4, n)

			rc, err := blob.ReadRange(ctx, 0, 5)
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, "hello", string(got))

			all, err := ReadAll(ctx, blob)
			require.NoError(t, err)
			assert.Equal(t, data, all)

			require.NoError(t, store.Put(ctx, "arr/CURRENT", []byte("v1")))
			require.NoError(t, store.Put(ctx, "other/CURRENT", []byte("v1")))

			names, err := store.List(ctx, "arr/")
			require.NoError(t, err)
			assert.Equal(t, []string{"arr/CURRENT", "arr/__fragments/0001.frag"}, names)

			current, err := Get(ctx, store, "arr/CURRENT")
			require.NoError(t, err)
			assert.Equal(t, "v1", string(current))

			require.NoError(t, store.Delete(ctx, "arr/CURRENT"))
			require.NoError(t, store.Delete(ctx, "arr/CURRENT"))
			_, err = store.Open(ctx, "arr/CURRENT")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBlobStore_EmptyBlob(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "empty", nil))
			data, err := Get(ctx, store, "empty")
			require.NoError(t, err)
			assert.Empty(t, data)
		})
	}
}

func TestLocalStore_NoTempLeftovers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewLocalStore(dir)

	require.NoError(t, store.Put(ctx, "a/b", []byte("x")))

	entries, err := os.ReadDir(filepath.Join(dir, "a"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name())

	names, err := NewLocalStore(filepath.Join(dir, "missing")).List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMemoryStore_PutCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", data))
	data[0] = 'z'

	got, err := Get(ctx, store, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
