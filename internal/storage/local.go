package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/pesit-e/pesitengine/internal/transfer"
)

// LocalStore resolves PI_12 filenames under a single root directory
// using the standard library directly. It is the default backing
// store regardless of which optional ObjectStore adapters are also
// wired in.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// resolve confines name to s.root: a leading ".." cannot escape it
// since the path is cleaned as if rooted at "/" first.
func (s *LocalStore) resolve(name string) string {
	clean := filepath.Clean("/" + name)
	return filepath.Join(s.root, clean)
}

func (s *LocalStore) OpenRead(_ context.Context, name string) (transfer.ByteSource, error) {
	path := s.resolve(name)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &localSource{f}, nil
}

func (s *LocalStore) OpenWrite(_ context.Context, name string) (transfer.ByteSink, error) {
	path := s.resolve(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *LocalStore) Len(_ context.Context, name string) (int64, error) {
	path := s.resolve(name)
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (s *LocalStore) Exists(_ context.Context, name string) (bool, error) {
	path := s.resolve(name)
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var _ ObjectStore = (*LocalStore)(nil)

// localSource adapts *os.File to transfer.ByteSource (adds Size()).
type localSource struct {
	*os.File
}

func (s *localSource) Size() (int64, error) {
	fi, err := s.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
