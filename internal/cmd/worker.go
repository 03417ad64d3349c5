package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shipyardlabs/cargohold/internal/observability"
	"github.com/shipyardlabs/cargohold/pkg/worker"
)

var workerDrain bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the job executor",
	Long: `Run the worker that claims pending jobs and performs the chunked
encrypt/decrypt I/O. With --drain it exits once the queue is empty, which is
how dispatched workers run; without it, it polls as a daemon.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().BoolVar(&workerDrain, "drain", false,
		"Process pending jobs and exit when the queue is empty")
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log := observability.Logger

	db, err := openJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	blobs, err := buildBlobStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer func() { _ = blobs.Close() }()

	codec, err := buildCodec(cfg)
	if err != nil {
		return err
	}

	exec, err := worker.New(db, blobs, codec, worker.Config{
		ChunkSize:    cfg.Chunk.Size,
		PollInterval: cfg.Worker.PollInterval,
		ClaimTimeout: cfg.Worker.ClaimTimeout,
	}, log)
	if err != nil {
		return err
	}

	if workerDrain {
		n, err := exec.Drain(ctx)
		if err != nil {
			return err
		}
		log.Info("Worker drained queue", zap.Int("jobs_processed", n))
		return nil
	}

	log.Info("Worker polling for jobs",
		zap.Duration("poll_interval", cfg.Worker.PollInterval))
	if err := exec.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
