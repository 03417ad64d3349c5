// Package worker executes distribution jobs claimed from the job store.
//
// The executor is the only writer of job status after submission. It runs in
// its own process, launched by the dispatcher, and shares nothing with the
// request handlers except the durable store.
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/shipyardlabs/cargohold/pkg/blobstore"
	"github.com/shipyardlabs/cargohold/pkg/chunk"
	"github.com/shipyardlabs/cargohold/pkg/jobstore"
)

const (
	// DefaultPollInterval is the idle sleep between drain cycles in daemon mode.
	DefaultPollInterval = 5 * time.Second

	// DefaultClaimTimeout bounds how long a processing claim may go without
	// finishing before the sweep fails it.
	DefaultClaimTimeout = 1 * time.Hour
)

type Config struct {
	// ChunkSize is the fixed chunk size in bytes. It must not change while
	// chunk artifacts written with it are still live.
	ChunkSize int

	// PollInterval between drain cycles when running as a daemon.
	PollInterval time.Duration

	// ClaimTimeout for the stale-claim sweep.
	ClaimTimeout time.Duration
}

// Executor claims pending jobs and performs the chunked encrypt/decrypt I/O.
type Executor struct {
	db     *sql.DB
	blobs  blobstore.Store
	codec  *chunk.Codec
	cfg    Config
	logger *zap.Logger
}

func New(db *sql.DB, blobs blobstore.Store, codec *chunk.Codec, cfg Config, logger *zap.Logger) (*Executor, error) {
	if db == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("chunk codec is required")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunk.DefaultSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = DefaultClaimTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{db: db, blobs: blobs, codec: codec, cfg: cfg, logger: logger}, nil
}

// Drain claims and executes pending jobs until none remain, then returns the
// number of jobs processed. It first sweeps stale claims left by dead workers.
func (e *Executor) Drain(ctx context.Context) (int, error) {
	swept, err := jobstore.SweepStale(ctx, e.db, e.cfg.ClaimTimeout)
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		e.logger.Warn("Swept stale claims", zap.Int64("count", swept))
	}

	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		job, err := jobstore.ClaimNextPending(ctx, e.db)
		if err != nil {
			return processed, err
		}
		if job == nil {
			return processed, nil
		}

		e.Process(ctx, job)
		processed++
	}
}

// Run drains in a loop until the context is cancelled. Job execution itself
// is intentionally unbounded: chunked transfer duration is proportional to
// file size, and mid-job cancellation is not supported.
func (e *Executor) Run(ctx context.Context) error {
	for {
		if _, err := e.Drain(ctx); err != nil && ctx.Err() == nil {
			e.logger.Error("Drain cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.PollInterval):
		}
	}
}

// Process executes one claimed job and records its terminal state. Any error
// on any chunk aborts the whole job; there is no partial-success status, and
// a resubmitted job restarts chunking from chunk 0.
//
// The job must already hold the processing claim. Besides the drain loop,
// the synchronous submission path calls this directly.
func (e *Executor) Process(ctx context.Context, job *jobstore.JobRecord) {
	log := e.logger.With(
		zap.String("job_id", job.JobID),
		zap.String("action", string(job.Action)),
		zap.String("target_path", job.TargetPath))
	log.Info("Executing job")

	var err error
	switch job.Action {
	case jobstore.ActionUpload:
		err = e.runUpload(ctx, job)
	case jobstore.ActionDownload:
		err = e.runDownload(ctx, job)
	case jobstore.ActionDelete:
		err = e.runDelete(ctx, job)
	default:
		err = fmt.Errorf("unrecognized action %q", job.Action)
	}

	if err != nil {
		log.Error("Job failed", zap.Error(err))
		if markErr := jobstore.MarkFailed(ctx, e.db, job.JobID, err.Error()); markErr != nil {
			log.Error("Failed to record job failure", zap.Error(markErr))
		}
		return
	}

	if err := jobstore.MarkComplete(ctx, e.db, job.JobID); err != nil {
		log.Error("Failed to record job completion", zap.Error(err))
		return
	}
	log.Info("Job complete")
}

// runUpload streams the source file through the codec chunk-by-chunk, writing
// each envelope to the blob store before advancing.
func (e *Executor) runUpload(ctx context.Context, job *jobstore.JobRecord) error {
	src, err := os.Open(job.SourceRef)
	if err != nil {
		return fmt.Errorf("open source %s: %w", job.SourceRef, err)
	}
	defer func() { _ = src.Close() }()

	st, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	total := int((st.Size() + int64(e.cfg.ChunkSize) - 1) / int64(e.cfg.ChunkSize))
	_ = jobstore.SetChunkProgress(ctx, e.db, job.JobID, 0, total)

	splitter, err := chunk.NewSplitter(src, e.cfg.ChunkSize)
	if err != nil {
		return err
	}

	for {
		c, err := splitter.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		envelope, err := e.codec.Encrypt(c)
		if err != nil {
			return fmt.Errorf("encrypt chunk %d: %w", c.Index, err)
		}
		if err := e.blobs.Write(ctx, job.TargetPath, c.Index, envelope); err != nil {
			return fmt.Errorf("store chunk %d: %w", c.Index, err)
		}

		_ = jobstore.SetChunkProgress(ctx, e.db, job.JobID, c.Index+1, total)
	}
}

// runDownload reads sequential chunk envelopes until the store reports the
// next index missing, decrypting and reassembling into the destination file.
func (e *Executor) runDownload(ctx context.Context, job *jobstore.JobRecord) error {
	dest := job.SourceRef
	if dest == "" {
		return fmt.Errorf("download destination is required")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	// Assemble into a temp file so a failed download never leaves a
	// truncated destination behind.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	index := 0
	err = chunk.Reassemble(tmp, func() (*chunk.Chunk, error) {
		envelope, err := e.blobs.Read(ctx, job.TargetPath, index)
		if blobstore.IsNotFound(err) {
			if index == 0 {
				return nil, fmt.Errorf("no chunk artifacts for %s: %w", job.TargetPath, err)
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("fetch chunk %d: %w", index, err)
		}

		c, err := e.codec.Decrypt(envelope, index)
		if err != nil {
			return nil, err
		}

		index++
		_ = jobstore.SetChunkProgress(ctx, e.db, job.JobID, index, 0)
		return c, nil
	})
	if err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	return nil
}

// runDelete removes all chunk artifacts for the target. Missing artifacts
// are tolerated: deleting a target that was never uploaded completes cleanly.
func (e *Executor) runDelete(ctx context.Context, job *jobstore.JobRecord) error {
	if err := e.blobs.Delete(ctx, job.TargetPath); err != nil {
		if blobstore.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}
