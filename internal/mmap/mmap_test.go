package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frag")
	require.NoError(t, os.WriteFile(path, []byte("hello fragment"), 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, int64(14), m.Size())
	assert.Equal(t, []byte("hello fragment"), m.Bytes())

	buf := make([]byte, 8)
	n, err := m.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "fragment", string(buf[:n]))

	n, err = m.ReadAt(buf, 10)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 4, n)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestOpen_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.Size())

	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, m.Close())
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
