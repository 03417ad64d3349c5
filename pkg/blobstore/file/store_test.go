package file

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipyardlabs/cargohold/pkg/blobstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	return s
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	want := []byte("encrypted chunk envelope")
	require.NoError(t, s.Write(ctx, "releases/app.bin", 0, want))

	got, err := s.Read(ctx, "releases/app.bin", 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadMissingChunk(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Read(ctx, "releases/app.bin", 0)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	assert.True(t, blobstore.IsNotFound(err))

	// Existing path, missing index.
	require.NoError(t, s.Write(ctx, "releases/app.bin", 0, []byte("x")))
	_, err = s.Read(ctx, "releases/app.bin", 7)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Write(ctx, "releases/app.bin", 0, []byte("a")))
	require.NoError(t, s.Write(ctx, "releases/app.bin", 1, []byte("b")))

	require.NoError(t, s.Delete(ctx, "releases/app.bin"))

	exists, err := s.Exists(ctx, "releases/app.bin")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting an already-absent path is not an error.
	require.NoError(t, s.Delete(ctx, "releases/app.bin"))
	require.NoError(t, s.Delete(ctx, "never/written"))
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	exists, err := s.Exists(ctx, "releases/app.bin")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Write(ctx, "releases/app.bin", 0, []byte("a")))

	exists, err = s.Exists(ctx, "releases/app.bin")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPathTraversalRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, path := range []string{"", ".", "../outside", "a/../../b"} {
		err := s.Write(ctx, path, 0, []byte("x"))
		assert.Error(t, err, "path %q", path)
	}
}

func TestConfigValidate(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
