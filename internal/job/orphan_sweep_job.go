package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/index"
)

type orphanReclaimer interface {
	Reclaim(ctx context.Context) ([]index.StoredIndex, error)
}

// OrphanSweepJob removes persisted indexes that no registry record points
// at, typically left behind when a registry insert failed after persist.
type OrphanSweepJob struct {
	sweeper orphanReclaimer
}

func NewOrphanSweepJob(sweeper orphanReclaimer) *OrphanSweepJob {
	return &OrphanSweepJob{sweeper: sweeper}
}

func (j *OrphanSweepJob) Name() string {
	return "orphan_index_sweep"
}

func (j *OrphanSweepJob) Run(ctx context.Context) error {
	if j.sweeper == nil {
		return nil
	}
	removed, err := j.sweeper.Reclaim(ctx)
	logger := logutil.GetLogger(ctx)
	for _, item := range removed {
		logger.Info("orphan index removed", zap.String("location", item.Location))
	}
	return err
}
