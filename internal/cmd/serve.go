package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shipyardlabs/cargohold/internal/observability"
	"github.com/shipyardlabs/cargohold/internal/server"
	"github.com/shipyardlabs/cargohold/internal/server/handlers"
	"github.com/shipyardlabs/cargohold/pkg/authz"
	"github.com/shipyardlabs/cargohold/pkg/dispatch"
	"github.com/shipyardlabs/cargohold/pkg/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the distribution API server",
	Long: `Run the HTTP API server: job submission, status polling, and worker
dispatch. The server never performs chunk I/O for asynchronous actions; it
records the job and signals a detached worker process.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	dispatcher, err := dispatch.New(dispatch.Config{
		RunDir: cfg.Worker.RunDir,
		Args:   workerArgs(),
	})
	if err != nil {
		return err
	}

	auth, err := authz.NewJWTAuthenticator(cfg.Auth.Secret)
	if err != nil {
		return err
	}

	health := handlers.NewHealthManager(version)
	health.RegisterChecker("jobstore", handlers.DBChecker{DB: db})

	jobs := handlers.NewJobs(db, exec, dispatcher, handlers.JobsConfig{
		SpoolDir:              cfg.Submit.SpoolDir,
		MaxPayloadBytes:       cfg.Submit.MaxPayloadBytes,
		SyncActions:           cfg.Submit.SyncActions,
		AllowedTargetPatterns: cfg.Submit.AllowedTargetPatterns,
	}, log)

	srv := server.New(cfg.Server, server.Options{
		Version:    version,
		Health:     health,
		Jobs:       jobs,
		Auth:       auth,
		RatePerSec: cfg.Server.RatePerSecond,
		RateBurst:  cfg.Server.RateBurst,
		Logger:     log,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown did not drain cleanly", zap.Error(err))
		return err
	}
	return nil
}

// workerArgs builds the argv for dispatched worker processes, forwarding the
// config file so the child sees the same settings.
func workerArgs() []string {
	args := []string{"worker", "--drain"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	return args
}
