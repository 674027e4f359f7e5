package index

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

const defaultBuildConcurrency = 4

// Builder embeds chunks into an Index. A build either embeds every chunk or
// fails as a whole.
type Builder struct {
	embedder    ai.IEmbedder
	concurrency int
}

func NewBuilder(embedder ai.IEmbedder, concurrency int) *Builder {
	if concurrency <= 0 {
		concurrency = defaultBuildConcurrency
	}
	return &Builder{embedder: embedder, concurrency: concurrency}
}

func (b *Builder) Build(ctx context.Context, chunks []model.Chunk) (*Index, error) {
	start := time.Now()
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i := range chunks {
		i := i
		g.Go(func() error {
			vec, err := b.embedder.Embed(gctx, chunks[i].Content, ai.TaskTypeDocument)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", chunks[i].Position, err)
			}
			if err := checkVector(vec); err != nil {
				return fmt.Errorf("embed chunk %d: %w", chunks[i].Position, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, appErr.Wrap(appErr.ErrEmbeddingFailure, err)
	}
	idx, err := New(b.embedder.ModelName(), chunks, vectors)
	if err != nil {
		return nil, appErr.Wrap(appErr.ErrEmbeddingFailure, err)
	}
	logutil.GetLogger(ctx).Debug("index built",
		zap.Int("chunks", idx.Len()),
		zap.Int("dim", idx.Dim),
		zap.Duration("cost", time.Since(start)),
	)
	return idx, nil
}
