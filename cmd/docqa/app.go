package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/chunker"
	"github.com/xxxsen/docqa/internal/config"
	"github.com/xxxsen/docqa/internal/conversation"
	"github.com/xxxsen/docqa/internal/db"
	"github.com/xxxsen/docqa/internal/embedcache"
	"github.com/xxxsen/docqa/internal/filestore"
	"github.com/xxxsen/docqa/internal/index"
	"github.com/xxxsen/docqa/internal/indexcache"
	"github.com/xxxsen/docqa/internal/repo"
	"github.com/xxxsen/docqa/internal/service"
)

// app holds everything the commands share. The index cache and the
// conversation store live only as long as the process.
type app struct {
	cfg *config.Config
	db  *sql.DB

	docRepo   *repo.DocumentRepo
	cacheRepo *repo.EmbeddingCacheRepo
	store     index.Store
	files     filestore.Store
	cache     *indexcache.Cache
	sessions  *conversation.Store

	documents *service.DocumentService
	ingest    *service.IngestService
	answers   *service.AnswerService
	sweeper   *service.OrphanSweeper
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logutil.GetLogger(ctx)
	sqlDB, dialect, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	storageTimeout := time.Duration(cfg.StorageTimeoutSeconds) * time.Second
	a := &app{cfg: cfg, db: sqlDB}
	a.docRepo = repo.NewDocumentRepo(sqlDB, dialect).WithTimeout(storageTimeout)
	a.cacheRepo = repo.NewEmbeddingCacheRepo(sqlDB, dialect)

	embedder, err := buildEmbedder(cfg.AI, a.cacheRepo)
	if err != nil {
		a.Close()
		return nil, err
	}
	generator, err := ai.BuildGenerator(cfg.AI.Generators)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init generator: %w", err)
	}
	generator = ai.WithTimeout(generator, time.Duration(cfg.AI.TimeoutSeconds)*time.Second)

	c, err := chunker.New(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init chunker: %w", err)
	}
	store, err := index.NewStore(ctx, cfg.Index)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init index store: %w", err)
	}
	a.store = index.WithTimeout(store, storageTimeout)
	files, err := filestore.New(cfg.FileStore)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init file store: %w", err)
	}
	a.files = filestore.WithTimeout(files, storageTimeout)
	a.cache = indexcache.New(indexcache.NewRegistryLoader(a.docRepo, a.store), cfg.Cache.MaxEntries)
	a.sessions = conversation.NewStore(conversation.StoreConfig{
		WindowTurns: cfg.History.WindowTurns,
		MaxTurns:    cfg.History.MaxTurns,
		MaxSessions: cfg.History.MaxSessions,
		TTL:         time.Duration(cfg.History.SessionTTLMinutes) * time.Minute,
	})

	a.documents = service.NewDocumentService(a.docRepo)
	a.ingest = service.NewIngestService(a.docRepo, c, index.NewBuilder(embedder, cfg.Index.BuildConcurrency), a.store, a.cache, a.files)
	a.answers = service.NewAnswerService(a.cache, embedder, generator, cfg.Retrieval.TopK)
	a.sweeper = service.NewOrphanSweeper(a.docRepo, a.store, time.Duration(cfg.Index.OrphanGraceMinutes)*time.Minute)

	logger.Info("app initialized",
		zap.String("database", cfg.Database.Driver),
		zap.String("index_backend", cfg.Index.Backend),
		zap.String("file_store", a.files.Type()),
		zap.String("embed_model", embedder.ModelName()),
		zap.Int("chunk_size", c.Size()),
		zap.Int("chunk_overlap", c.Overlap()),
	)
	return a, nil
}

// buildEmbedder stacks the embedder decorators. The caches sit outermost so
// a cache hit costs neither a rate limit token nor a provider call.
func buildEmbedder(cfg config.AIConfig, cacheRepo *repo.EmbeddingCacheRepo) (ai.IEmbedder, error) {
	embedder, err := ai.BuildEmbedder(cfg.Embedders)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	embedder = ai.WithEmbedTimeout(embedder, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if cfg.EmbedRatePerSecond > 0 {
		embedder = ai.WithRateLimit(embedder, cfg.EmbedRatePerSecond, cfg.EmbedBurst)
	}
	if cfg.EmbedCache.DB {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	}
	if cfg.EmbedCache.LRUSize > 0 {
		embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.EmbedCache.LRUSize, time.Duration(cfg.EmbedCache.LRUTTLMinutes)*time.Minute)
	}
	return embedder, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logutil.GetLogger(context.Background()).Warn("close index store failed", zap.Error(err))
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
