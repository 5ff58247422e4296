package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_WriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	sink, err := store.OpenWrite(ctx, "incoming/report.txt")
	require.NoError(t, err)
	_, err = sink.Write([]byte("hello pesit"))
	require.NoError(t, err)
	require.NoError(t, sink.Sync())
	require.NoError(t, sink.Close())

	exists, err := store.Exists(ctx, "incoming/report.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	size, err := store.Len(ctx, "incoming/report.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)

	src, err := store.OpenRead(ctx, "incoming/report.txt")
	require.NoError(t, err)
	defer src.Close()

	data, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, "hello pesit", string(data))
}

func TestLocalStore_OpenReadMissingReturnsErrNotFound(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.OpenRead(context.Background(), "nope.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_ExistsFalseForMissing(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	exists, err := store.Exists(context.Background(), "nope.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStore_SeekForRestart(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	sink, err := store.OpenWrite(ctx, "f.bin")
	require.NoError(t, err)
	_, err = sink.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	src, err := store.OpenRead(ctx, "f.bin")
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Seek(5, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, "56789", string(rest))
}
