package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/shipyardlabs/cargohold/pkg/blobstore"
)

// Store implements blobstore.Store for AWS S3 and S3-compatible storage.
//
// Chunk envelopes are stored under <prefix>/<path>/<index>.chunk.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ blobstore.Store = (*Store)(nil)

// New creates a new S3 blob store with the given configuration.
//
// The store uses AWS SDK v2's default credential chain unless explicit
// credentials are provided in the config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &blobstore.StoreError{Op: "New", Kind: blobstore.KindS3, Index: -1, Err: err}
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}

	// Custom endpoint for S3-compatible stores
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	// Only apply explicit region if user set one in config.
	// Let SDK resolve from env/profile first.
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for long-term credentials)
		)
		opts = append(opts, config.WithCredentialsProvider(staticCreds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	// AWS S3 requires a region; S3-compatible endpoints usually ignore it.
	if awsCfg.Region == "" && cfg.Endpoint == "" {
		awsCfg.Region = DefaultAWSRegion
	}

	return awsCfg, nil
}

func (s *Store) Write(ctx context.Context, path string, index int, data []byte) error {
	key := s.chunkKey(path, index)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return s.wrapError("Write", path, index, err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, path string, index int) ([]byte, error) {
	key := s.chunkKey(path, index)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.wrapError("Read", path, index, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, s.wrapError("Read", path, index, err)
	}
	return data, nil
}

// Delete removes every chunk object under the path prefix. S3 delete is
// idempotent per object, so a missing path deletes nothing and succeeds.
func (s *Store) Delete(ctx context.Context, path string) error {
	prefix := s.pathPrefix(path)

	var continuation *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return s.wrapError("Delete", path, -1, err)
		}

		for _, obj := range out.Contents {
			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return s.wrapError("Delete", path, -1, err)
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			return nil
		}
		continuation = out.NextContinuationToken
	}
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.pathPrefix(path)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, s.wrapError("Exists", path, -1, err)
	}
	return len(out.Contents) > 0, nil
}

// Close releases any resources held by the store.
// The S3 client doesn't require explicit cleanup, but this satisfies the interface.
func (s *Store) Close() error {
	return nil
}

func (s *Store) chunkKey(path string, index int) string {
	return s.pathPrefix(path) + fmt.Sprintf("%06d.chunk", index)
}

func (s *Store) pathPrefix(path string) string {
	path = strings.Trim(path, "/")
	if s.prefix != "" {
		return s.prefix + "/" + path + "/"
	}
	return path + "/"
}

// wrapError converts S3 errors to blob store errors with appropriate sentinels.
func (s *Store) wrapError(op, path string, index int, err error) error {
	wrapped := &blobstore.StoreError{
		Op:    op,
		Kind:  blobstore.KindS3,
		Path:  path,
		Index: index,
		Err:   err,
	}

	// Check for specific S3 error types first
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		wrapped.Err = blobstore.ErrNotFound
		return wrapped
	}

	// Check smithy API errors for error codes
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			wrapped.Err = blobstore.ErrNotFound
		case "AccessDenied", "Forbidden":
			wrapped.Err = blobstore.ErrAccessDenied
		case "ServiceUnavailable", "InternalError", "SlowDown":
			wrapped.Err = blobstore.ErrUnavailable
		}
		return wrapped
	}

	// Fallback: check error message for common cases
	msg := err.Error()
	switch {
	case strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") || strings.Contains(msg, "404"):
		wrapped.Err = blobstore.ErrNotFound
	case strings.Contains(msg, "AccessDenied") || strings.Contains(msg, "Forbidden") || strings.Contains(msg, "403"):
		wrapped.Err = blobstore.ErrAccessDenied
	case strings.Contains(msg, "ServiceUnavailable") || strings.Contains(msg, "503"):
		wrapped.Err = blobstore.ErrUnavailable
	}

	return wrapped
}
