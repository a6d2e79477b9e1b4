package service

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ArtifactStore 保存抠图产物
type ArtifactStore interface {
	Save(ctx context.Context, name string, data []byte) error
}

// FileStore 把产物写入本地目录
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create artifact directory %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Save(_ context.Context, name string, data []byte) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "write artifact %s", path)
}

// Load 读取产物，不存在时返回 nil, nil
func (s *FileStore) Load(_ context.Context, name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, errors.Wrapf(err, "read artifact %s", path)
}

func (s *FileStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", errors.Errorf("invalid artifact name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}
