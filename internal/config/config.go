// Package config loads service configuration from defaults, an optional YAML
// config file, and CARGOHOLD_-prefixed environment variables.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/shipyardlabs/cargohold/pkg/chunk"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Chunk   ChunkConfig   `mapstructure:"chunk"`
	Storage StorageConfig `mapstructure:"storage"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Submit  SubmitConfig  `mapstructure:"submit"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RatePerSecond bounds request throughput per instance; polling clients
	// are expected to back off on 429s.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	RateBurst     int     `mapstructure:"rate_burst"`
}

type StoreConfig struct {
	// Path is the local job database file.
	Path string `mapstructure:"path"`

	// URL is a libsql/Turso URL for remote deployments (cgo builds only).
	URL string `mapstructure:"url"`

	AuthToken string `mapstructure:"auth_token"`
}

type ChunkConfig struct {
	// Size is the fixed chunk size in bytes. Must not change while chunk
	// artifacts written with it are still live.
	Size int `mapstructure:"size"`

	// Key is a 64-character hex AES-256 key. Takes precedence over
	// passphrase derivation when set.
	Key string `mapstructure:"key"`

	// Passphrase and Salt derive the key via argon2id when Key is empty.
	Passphrase string `mapstructure:"passphrase"`
	Salt       string `mapstructure:"salt"`
}

// ResolveKey resolves the configured chunk encryption key.
func (c ChunkConfig) ResolveKey() ([]byte, error) {
	if strings.TrimSpace(c.Key) != "" {
		return chunk.ParseKey(c.Key)
	}
	if c.Passphrase != "" && c.Salt != "" {
		return chunk.DeriveKey([]byte(c.Passphrase), []byte(c.Salt)), nil
	}
	return nil, fmt.Errorf("chunk key or passphrase+salt is required")
}

type StorageConfig struct {
	// Kind selects the chunk storage destination: file or s3.
	Kind string `mapstructure:"kind"`

	// Account names a linked external account whose credentials are read
	// from the credential store (s3 only). Empty uses the SDK default chain.
	Account string `mapstructure:"account"`

	File FileStorageConfig `mapstructure:"file"`
	S3   S3StorageConfig   `mapstructure:"s3"`
}

type FileStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

type S3StorageConfig struct {
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	Profile        string `mapstructure:"profile"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

type WorkerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ClaimTimeout time.Duration `mapstructure:"claim_timeout"`

	// RunDir holds the dispatcher pidfile and worker logs.
	RunDir string `mapstructure:"run_dir"`
}

type SubmitConfig struct {
	// SpoolDir receives inline upload payloads before the worker picks
	// them up.
	SpoolDir string `mapstructure:"spool_dir"`

	// MaxPayloadBytes caps inline upload payloads.
	MaxPayloadBytes int64 `mapstructure:"max_payload_bytes"`

	// SyncActions are executed inline by the submission path instead of
	// being dispatched to a worker.
	SyncActions []string `mapstructure:"sync_actions"`

	// AllowedTargetPatterns restricts target paths to the given doublestar
	// globs. Empty means any well-formed path.
	AllowedTargetPatterns []string `mapstructure:"allowed_target_patterns"`
}

type AuthConfig struct {
	// Secret is the shared HS256 signing secret for bearer tokens.
	Secret string `mapstructure:"secret"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_per_second", 50.0)
	v.SetDefault("server.rate_burst", 100)

	v.SetDefault("store.path", "data/cargohold.db")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("chunk.size", chunk.DefaultSize)
	v.SetDefault("chunk.key", "")
	v.SetDefault("chunk.passphrase", "")
	v.SetDefault("chunk.salt", "")

	// Keys without defaults are invisible to env-var unmarshalling, so every
	// key is registered even when the default is empty.
	v.SetDefault("storage.kind", "file")
	v.SetDefault("storage.account", "")
	v.SetDefault("storage.file.base_dir", "data/chunks")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.profile", "")
	v.SetDefault("storage.s3.force_path_style", false)

	v.SetDefault("worker.poll_interval", "5s")
	v.SetDefault("worker.claim_timeout", "1h")
	v.SetDefault("worker.run_dir", "data/run")

	v.SetDefault("submit.spool_dir", "data/spool")
	v.SetDefault("submit.max_payload_bytes", int64(256*1024*1024))
	v.SetDefault("submit.sync_actions", []string{"delete"})
	v.SetDefault("submit.allowed_target_patterns", []string{})

	v.SetDefault("auth.secret", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads configuration. path names an optional YAML config file; an
// empty path uses defaults and environment only.
func Load(ctx context.Context, path string) (*Config, error) {
	_ = ctx

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CARGOHOLD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Chunk.Size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}

	return &cfg, nil
}
