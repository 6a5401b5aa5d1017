package storage

import (
	"context"

	"github.com/FAbreu6/TP3-IS/pkg/models"
)

// ObjectStore abstracts the artifact storage backend. Paths are always
// full object paths (prefix included).
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]models.SourceArtifact, error)
	Download(ctx context.Context, path string) ([]byte, error)
	Upload(ctx context.Context, path string, content []byte) error
	Delete(ctx context.Context, path string) error
}
