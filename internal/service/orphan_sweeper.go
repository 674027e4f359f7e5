package service

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/index"
)

type locationLister interface {
	ListIndexLocations(ctx context.Context) (map[string]struct{}, error)
}

// OrphanSweeper finds persisted indexes that no registry record points at.
// Indexes younger than the grace period are skipped since their ingest may
// still be running.
type OrphanSweeper struct {
	docs  locationLister
	store index.Store
	grace time.Duration
	now   func() time.Time
}

func NewOrphanSweeper(docs locationLister, store index.Store, grace time.Duration) *OrphanSweeper {
	return &OrphanSweeper{docs: docs, store: store, grace: grace, now: time.Now}
}

func (s *OrphanSweeper) Find(ctx context.Context) ([]index.StoredIndex, error) {
	// list the store before the registry so an ingest finishing in between
	// is seen as referenced
	stored, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	known, err := s.docs.ListIndexLocations(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-s.grace)
	var orphans []index.StoredIndex
	for _, item := range stored {
		if _, ok := known[item.Location]; ok {
			continue
		}
		if item.CreatedAt.After(cutoff) {
			continue
		}
		orphans = append(orphans, item)
	}
	return orphans, nil
}

// Reclaim removes every orphan Find reports and returns the removed ones.
func (s *OrphanSweeper) Reclaim(ctx context.Context) ([]index.StoredIndex, error) {
	orphans, err := s.Find(ctx)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx)
	removed := make([]index.StoredIndex, 0, len(orphans))
	for _, item := range orphans {
		if err := s.store.Remove(ctx, item.Location); err != nil {
			logger.Warn("remove orphan index failed", zap.String("location", item.Location), zap.Error(err))
			continue
		}
		logger.Info("orphan index removed", zap.String("location", item.Location), zap.Time("created_at", item.CreatedAt))
		removed = append(removed, item)
	}
	return removed, nil
}
