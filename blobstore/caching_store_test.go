package blobstore

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/arraystream/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts backend reads.
type countingStore struct {
	*MemoryStore
	reads atomic.Int64
}

func (s *countingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.MemoryStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &countingBlob{Blob: b, reads: &s.reads}, nil
}

type countingBlob struct {
	Blob
	reads *atomic.Int64
}

func (b *countingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	b.reads.Add(1)
	return b.Blob.ReadAt(ctx, p, off)
}

func TestCachingStore_ReadAt(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}

	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, inner.Put(ctx, "frag", data))

	store := NewCachingStore(inner, cache.NewLRU(1<<20, nil), 64)

	blob, err := store.Open(ctx, "frag")
	require.NoError(t, err)
	defer blob.Close()

	buf := make([]byte, 300)
	n, err := blob.ReadAt(ctx, buf, 100)
	require.NoError(t, err)
	assert.Equal(t, 300, n)
	assert.Equal(t, data[100:400], buf)
	assert.Equal(t, int64(1), inner.reads.Load())

	// Fully cached now.
	n, err = blob.ReadAt(ctx, buf[:200], 150)
	require.NoError(t, err)
	assert.Equal(t, 200, n)
	assert.Equal(t, data[150:350], buf[:200])
	assert.Equal(t, int64(1), inner.reads.Load())

	// Tail read past the end.
	n, err = blob.ReadAt(ctx, buf, 900)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 100, n)
	assert.Equal(t, data[900:], buf[:100])

	_, err = blob.ReadAt(ctx, buf, 1000)
	assert.ErrorIs(t, err, io.EOF)

	all, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, data, all)
}

func TestCachingStore_Invalidate(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	store := NewCachingStore(inner, cache.NewLRU(1<<20, nil), 4)

	require.NoError(t, store.Put(ctx, "k", []byte("old value")))
	got, err := Get(ctx, store, "k")
	require.NoError(t, err)
	assert.Equal(t, "old value", string(got))

	require.NoError(t, store.Put(ctx, "k", []byte("new value")))
	got, err = Get(ctx, store, "k")
	require.NoError(t, err)
	assert.Equal(t, "new value", string(got))

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Open(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}
