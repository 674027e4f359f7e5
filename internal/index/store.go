package index

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/docqa/internal/config"
)

// StoredIndex describes one persisted index as seen by the store.
type StoredIndex struct {
	Location  string
	CreatedAt time.Time
}

// Store persists and loads indexes by location. Persist is atomic: a reader
// never observes a partially written index.
type Store interface {
	Location(docID string) string
	Persist(ctx context.Context, idx *Index, location string) error
	Load(ctx context.Context, location string) (*Index, error)
	Remove(ctx context.Context, location string) error
	List(ctx context.Context) ([]StoredIndex, error)
	Close() error
}

func NewStore(ctx context.Context, cfg config.IndexConfig) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLiteStore(cfg.Dir)
	case "pgvector":
		return NewPgvectorStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Backend)
	}
}
