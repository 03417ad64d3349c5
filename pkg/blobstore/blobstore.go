// Package blobstore abstracts the storage destination for encrypted chunks.
//
// A store addresses chunk artifacts by (path, index): path is the logical
// file identity a job operates on, index the chunk sequence position.
// Implementations should be safe for concurrent use across jobs; the worker
// claim guarantees at most one writer per path.
package blobstore

import "context"

// Store is the byte-addressable destination for chunk envelopes.
type Store interface {
	// Write stores one encrypted chunk envelope.
	Write(ctx context.Context, path string, index int, data []byte) error

	// Read returns the envelope for one chunk.
	// Returns ErrNotFound if the chunk does not exist.
	Read(ctx context.Context, path string, index int) ([]byte, error)

	// Delete removes all chunk artifacts for the path. Missing artifacts are
	// tolerated; deleting an absent path is not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether any chunk artifact exists for the path.
	Exists(ctx context.Context, path string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}

// Kind identifies a blob store backend.
type Kind string

const (
	// KindFile stores chunks on the local filesystem.
	KindFile Kind = "file"

	// KindS3 stores chunks in AWS S3 or S3-compatible storage.
	KindS3 Kind = "s3"
)

// String returns the string representation of the store kind.
func (k Kind) String() string {
	return string(k)
}
