package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shipyardlabs/cargohold/internal/config"
	"github.com/shipyardlabs/cargohold/pkg/blobstore"
	filestore "github.com/shipyardlabs/cargohold/pkg/blobstore/file"
	s3store "github.com/shipyardlabs/cargohold/pkg/blobstore/s3"
	"github.com/shipyardlabs/cargohold/pkg/chunk"
	"github.com/shipyardlabs/cargohold/pkg/credstore"
	"github.com/shipyardlabs/cargohold/pkg/jobstore"
)

// openJobStore opens and migrates the job database.
func openJobStore(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := jobstore.Open(ctx, jobstore.Config{
		Path:      cfg.Store.Path,
		URL:       cfg.Store.URL,
		AuthToken: cfg.Store.AuthToken,
	})
	if err != nil {
		return nil, err
	}
	if err := jobstore.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// buildBlobStore constructs the chunk storage destination. For S3 with a
// linked account, static credentials come from the credential store.
func buildBlobStore(ctx context.Context, cfg *config.Config, db *sql.DB) (blobstore.Store, error) {
	switch blobstore.Kind(cfg.Storage.Kind) {
	case blobstore.KindFile:
		return filestore.New(filestore.Config{BaseDir: cfg.Storage.File.BaseDir})

	case blobstore.KindS3:
		s3cfg := s3store.Config{
			Bucket:         cfg.Storage.S3.Bucket,
			Prefix:         cfg.Storage.S3.Prefix,
			Region:         cfg.Storage.S3.Region,
			Endpoint:       cfg.Storage.S3.Endpoint,
			Profile:        cfg.Storage.S3.Profile,
			ForcePathStyle: cfg.Storage.S3.ForcePathStyle,
		}
		if cfg.Storage.Account != "" {
			creds, err := credstore.GetAll(ctx, db, cfg.Storage.Account)
			if err != nil {
				return nil, fmt.Errorf("load credentials for account %s: %w", cfg.Storage.Account, err)
			}
			s3cfg.AccessKeyID = creds["access_key_id"]
			s3cfg.SecretAccessKey = creds["secret_access_key"]
		}
		return s3store.New(ctx, s3cfg)

	default:
		return nil, fmt.Errorf("unrecognized storage kind %q", cfg.Storage.Kind)
	}
}

// buildCodec resolves the chunk encryption key from config.
func buildCodec(cfg *config.Config) (*chunk.Codec, error) {
	key, err := cfg.Chunk.ResolveKey()
	if err != nil {
		return nil, err
	}
	return chunk.NewCodec(key)
}
