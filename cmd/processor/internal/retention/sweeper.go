package retention

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/FAbreu6/TP3-IS/pkg/models"
)

// Namespace is anything that can list and delete artifacts: an object
// storage prefix or a local directory.
type Namespace interface {
	List(ctx context.Context, prefix string) ([]models.SourceArtifact, error)
	Delete(ctx context.Context, path string) error
}

// Sweeper caps the number of retained artifacts per namespace, deleting the
// oldest beyond the cap. Artifacts referenced by a pending delivery are
// never touched.
type Sweeper struct {
	store  Namespace
	cap    int
	logger *zap.Logger
}

func NewSweeper(store Namespace, cap int, logger *zap.Logger) *Sweeper {
	return &Sweeper{store: store, cap: cap, logger: logger}
}

// Sweep deletes the oldest artifacts under prefix beyond the cap, skipping
// excluded (in-use) identifiers. Returns the number deleted. Failures are
// logged, never fatal.
func (s *Sweeper) Sweep(ctx context.Context, prefix string, exclude map[string]bool) int {
	artifacts, err := s.store.List(ctx, prefix)
	if err != nil {
		s.logger.Error("Retention listing failed", zap.String("prefix", prefix), zap.Error(err))
		return 0
	}

	candidates := artifacts[:0]
	for _, a := range artifacts {
		if exclude[a.Name] {
			continue
		}
		candidates = append(candidates, a)
	}

	if len(candidates) <= s.cap {
		return 0
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ModifiedAt.Equal(candidates[j].ModifiedAt) {
			return candidates[i].Name < candidates[j].Name
		}
		return candidates[i].ModifiedAt.Before(candidates[j].ModifiedAt)
	})

	deleted := 0
	for _, a := range candidates[:len(candidates)-s.cap] {
		if err := s.store.Delete(ctx, a.Name); err != nil {
			s.logger.Error("Retention delete failed", zap.String("artifact", a.Name), zap.Error(err))
			continue
		}
		s.logger.Info("Old artifact removed", zap.String("artifact", a.Name))
		deleted++
	}
	return deleted
}
