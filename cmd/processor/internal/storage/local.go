package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/FAbreu6/TP3-IS/pkg/models"
)

var _ ObjectStore = (*LocalStore)(nil)

// LocalStore keeps artifacts in a directory on disk. Object paths map to
// file paths relative to the root; prefixes map to subdirectories.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (l *LocalStore) List(ctx context.Context, prefix string) ([]models.SourceArtifact, error) {
	dir := filepath.Join(l.root, filepath.FromSlash(prefix))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var artifacts []models.SourceArtifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		name := e.Name()
		if prefix != "" {
			name = strings.TrimSuffix(prefix, "/") + "/" + name
		}
		artifacts = append(artifacts, models.SourceArtifact{
			Name:       name,
			ModifiedAt: info.ModTime(),
		})
	}
	return artifacts, nil
}

func (l *LocalStore) Download(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(l.root, filepath.FromSlash(path)))
}

func (l *LocalStore) Upload(ctx context.Context, path string, content []byte) error {
	full := filepath.Join(l.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, content, 0o644)
}

func (l *LocalStore) Delete(ctx context.Context, path string) error {
	err := os.Remove(filepath.Join(l.root, filepath.FromSlash(path)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
