package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipyardlabs/cargohold/pkg/chunk"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "data/cargohold.db", cfg.Store.Path)
		assert.Equal(t, chunk.DefaultSize, cfg.Chunk.Size)

		assert.Equal(t, "file", cfg.Storage.Kind)
		assert.Equal(t, "data/chunks", cfg.Storage.File.BaseDir)

		assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval)
		assert.Equal(t, time.Hour, cfg.Worker.ClaimTimeout)

		assert.Equal(t, []string{"delete"}, cfg.Submit.SyncActions)
		assert.Empty(t, cfg.Submit.AllowedTargetPatterns)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "console", cfg.Logging.Format)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("CARGOHOLD_SERVER_PORT", "9999")
		t.Setenv("CARGOHOLD_STORAGE_KIND", "s3")
		t.Setenv("CARGOHOLD_WORKER_POLL_INTERVAL", "250ms")

		cfg, err := Load(ctx, "")
		require.NoError(t, err)

		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, "s3", cfg.Storage.Kind)
		assert.Equal(t, 250*time.Millisecond, cfg.Worker.PollInterval)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cargohold.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
server:
  host: 0.0.0.0
  port: 8443
chunk:
  size: 1048576
storage:
  kind: s3
  s3:
    bucket: cargo-artifacts
    region: us-east-1
submit:
  sync_actions: [delete, download]
  allowed_target_patterns:
    - "releases/**"
`), 0644))

		cfg, err := Load(ctx, path)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8443, cfg.Server.Port)
		assert.Equal(t, 1048576, cfg.Chunk.Size)
		assert.Equal(t, "cargo-artifacts", cfg.Storage.S3.Bucket)
		assert.Equal(t, []string{"delete", "download"}, cfg.Submit.SyncActions)
		assert.Equal(t, []string{"releases/**"}, cfg.Submit.AllowedTargetPatterns)
	})

	t.Run("MissingConfigFile", func(t *testing.T) {
		_, err := Load(ctx, filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("InvalidChunkSize", func(t *testing.T) {
		t.Setenv("CARGOHOLD_CHUNK_SIZE", "-1")
		_, err := Load(ctx, "")
		assert.Error(t, err)
	})
}

func TestChunkConfigResolveKey(t *testing.T) {
	t.Run("HexKey", func(t *testing.T) {
		cfg := ChunkConfig{Key: "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"}
		key, err := cfg.ResolveKey()
		require.NoError(t, err)
		assert.Len(t, key, 32)
	})

	t.Run("Passphrase", func(t *testing.T) {
		cfg := ChunkConfig{Passphrase: "correct horse", Salt: "battery staple"}
		key, err := cfg.ResolveKey()
		require.NoError(t, err)
		assert.Len(t, key, 32)

		again, err := cfg.ResolveKey()
		require.NoError(t, err)
		assert.Equal(t, key, again)
	})

	t.Run("Unset", func(t *testing.T) {
		_, err := ChunkConfig{}.ResolveKey()
		assert.Error(t, err)
	})

	t.Run("BadHex", func(t *testing.T) {
		_, err := ChunkConfig{Key: "not-hex"}.ResolveKey()
		assert.Error(t, err)
	})
}
