package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shipyardlabs/cargohold/pkg/blobstore"
)

// Store implements blobstore.Store on the local filesystem.
//
// Layout: <base>/<path>/<index>.chunk — one directory per logical file,
// one file per encrypted chunk envelope.
type Store struct {
	baseDir string
}

var _ blobstore.Store = (*Store)(nil)

type Config struct {
	BaseDir string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base dir is required")
	}
	return nil
}

func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) Write(ctx context.Context, path string, index int, data []byte) error {
	_ = ctx
	dir, err := s.pathDir(path)
	if err != nil {
		return s.wrapError("Write", path, index, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return s.wrapError("Write", path, index, err)
	}

	// Write-then-rename so a crashed worker never leaves a torn chunk file.
	tmp, err := os.CreateTemp(dir, ".chunk.tmp.*")
	if err != nil {
		return s.wrapError("Write", path, index, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return s.wrapError("Write", path, index, err)
	}
	if err := tmp.Close(); err != nil {
		return s.wrapError("Write", path, index, err)
	}
	if err := os.Rename(tmpName, s.chunkPath(dir, index)); err != nil {
		return s.wrapError("Write", path, index, err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, path string, index int) ([]byte, error) {
	_ = ctx
	dir, err := s.pathDir(path)
	if err != nil {
		return nil, s.wrapError("Read", path, index, err)
	}
	data, err := os.ReadFile(s.chunkPath(dir, index))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, s.wrapError("Read", path, index, blobstore.ErrNotFound)
		}
		return nil, s.wrapError("Read", path, index, err)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	_ = ctx
	dir, err := s.pathDir(path)
	if err != nil {
		return s.wrapError("Delete", path, -1, err)
	}
	// RemoveAll tolerates a missing directory, which keeps delete idempotent.
	if err := os.RemoveAll(dir); err != nil {
		return s.wrapError("Delete", path, -1, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_ = ctx
	dir, err := s.pathDir(path)
	if err != nil {
		return false, s.wrapError("Exists", path, -1, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, s.wrapError("Exists", path, -1, err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".chunk") {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) chunkPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%06d.chunk", index))
}

// pathDir maps a logical path to its chunk directory, rejecting traversal
// outside the base directory.
func (s *Store) pathDir(path string) (string, error) {
	cleaned := filepath.Clean(strings.TrimPrefix(strings.TrimSpace(path), "/"))
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("path is required")
	}
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("path escapes base dir: %s", path)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}

func (s *Store) wrapError(op, path string, index int, err error) error {
	return &blobstore.StoreError{Op: op, Kind: blobstore.KindFile, Path: path, Index: index, Err: err}
}
