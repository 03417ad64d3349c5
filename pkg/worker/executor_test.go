package worker

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shipyardlabs/cargohold/pkg/blobstore"
	filestore "github.com/shipyardlabs/cargohold/pkg/blobstore/file"
	"github.com/shipyardlabs/cargohold/pkg/chunk"
	"github.com/shipyardlabs/cargohold/pkg/jobstore"
)

type testEnv struct {
	db    *sql.DB
	blobs blobstore.Store
	exec  *Executor
	spool string
}

func newTestEnv(t *testing.T, chunkSize int) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := jobstore.Open(ctx, jobstore.Config{Path: filepath.Join(t.TempDir(), "jobs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, jobstore.Migrate(ctx, db))

	blobs, err := filestore.New(filestore.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	key := make([]byte, 32)
	_, err = rand.Read(key)
	require.NoError(t, err)
	codec, err := chunk.NewCodec(key)
	require.NoError(t, err)

	exec, err := New(db, blobs, codec, Config{ChunkSize: chunkSize}, zap.NewNop())
	require.NoError(t, err)

	return &testEnv{db: db, blobs: blobs, exec: exec, spool: t.TempDir()}
}

func (env *testEnv) writeSource(t *testing.T, name string, size int) string {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)

	path := filepath.Join(env.spool, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func (env *testEnv) submit(t *testing.T, action jobstore.Action, target, sourceRef string) string {
	t.Helper()
	jobID, err := jobstore.Insert(context.Background(), env.db, &jobstore.JobRecord{
		Action:     action,
		TargetPath: target,
		SourceRef:  sourceRef,
		OwnerID:    "admin-1",
	})
	require.NoError(t, err)
	return jobID
}

func TestDrainUploadDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1024)

	src := env.writeSource(t, "payload.bin", 10*1024+137)
	want, err := os.ReadFile(src)
	require.NoError(t, err)

	upID := env.submit(t, jobstore.ActionUpload, "releases/payload.bin", src)

	n, err := env.exec.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	up, err := jobstore.Get(ctx, env.db, upID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusComplete, up.Status)
	require.NotNil(t, up.CompletedAt)
	assert.Equal(t, 11, up.ChunksTotal)
	assert.Equal(t, 11, up.ChunksDone)

	// Chunks land encrypted: the raw artifact never contains the plaintext.
	envelope, err := env.blobs.Read(ctx, "releases/payload.bin", 0)
	require.NoError(t, err)
	assert.NotContains(t, string(envelope), string(want[:64]))

	dest := filepath.Join(env.spool, "restored.bin")
	downID := env.submit(t, jobstore.ActionDownload, "releases/payload.bin", dest)

	n, err = env.exec.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	down, err := jobstore.Get(ctx, env.db, downID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusComplete, down.Status)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(want, got), "downloaded bytes match the original")
}

func TestUploadMissingSourceFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1024)

	jobID := env.submit(t, jobstore.ActionUpload, "releases/ghost.bin",
		filepath.Join(env.spool, "does-not-exist.bin"))

	_, err := env.exec.Drain(ctx)
	require.NoError(t, err)

	job, err := jobstore.Get(ctx, env.db, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "open source")
}

func TestDownloadMissingTargetFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1024)

	jobID := env.submit(t, jobstore.ActionDownload, "releases/never-uploaded.bin",
		filepath.Join(env.spool, "out.bin"))

	_, err := env.exec.Drain(ctx)
	require.NoError(t, err)

	job, err := jobstore.Get(ctx, env.db, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "no chunk artifacts")

	// A failed download leaves no destination file behind.
	_, err = os.Stat(filepath.Join(env.spool, "out.bin"))
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadTamperedChunkFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 512)

	src := env.writeSource(t, "payload.bin", 2048)
	env.submit(t, jobstore.ActionUpload, "releases/payload.bin", src)
	_, err := env.exec.Drain(ctx)
	require.NoError(t, err)

	// Corrupt one stored envelope.
	envelope, err := env.blobs.Read(ctx, "releases/payload.bin", 1)
	require.NoError(t, err)
	envelope[len(envelope)-1] ^= 0xff
	require.NoError(t, env.blobs.Write(ctx, "releases/payload.bin", 1, envelope))

	jobID := env.submit(t, jobstore.ActionDownload, "releases/payload.bin",
		filepath.Join(env.spool, "out.bin"))
	_, err = env.exec.Drain(ctx)
	require.NoError(t, err)

	job, err := jobstore.Get(ctx, env.db, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "integrity")
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 512)

	// Delete of a target that was never uploaded completes, not fails.
	jobID := env.submit(t, jobstore.ActionDelete, "releases/never-existed.bin", "")
	_, err := env.exec.Drain(ctx)
	require.NoError(t, err)

	job, err := jobstore.Get(ctx, env.db, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusComplete, job.Status)

	// Upload then delete removes the artifacts.
	src := env.writeSource(t, "payload.bin", 2048)
	env.submit(t, jobstore.ActionUpload, "releases/payload.bin", src)
	delID := env.submit(t, jobstore.ActionDelete, "releases/payload.bin", "")

	n, err := env.exec.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	del, err := jobstore.Get(ctx, env.db, delID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusComplete, del.Status)

	exists, err := env.blobs.Exists(ctx, "releases/payload.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDrainProcessesInSubmissionOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 512)

	src := env.writeSource(t, "a.bin", 600)
	first := env.submit(t, jobstore.ActionUpload, "releases/a.bin", src)
	time.Sleep(5 * time.Millisecond)
	second := env.submit(t, jobstore.ActionDelete, "releases/z.bin", "")

	n, err := env.exec.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a, err := jobstore.Get(ctx, env.db, first)
	require.NoError(t, err)
	b, err := jobstore.Get(ctx, env.db, second)
	require.NoError(t, err)

	require.NotNil(t, a.StartedAt)
	require.NotNil(t, b.StartedAt)
	assert.False(t, b.StartedAt.Before(*a.StartedAt))
}

func TestDrainEmptyStore(t *testing.T) {
	env := newTestEnv(t, 512)

	n, err := env.exec.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
