// Package indexcache keeps loaded document indexes in memory.
package indexcache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xxxsen/docqa/internal/index"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

// Loader resolves a document id to its persisted index.
type Loader interface {
	Load(ctx context.Context, docID string) (*index.Index, error)
}

type LoaderFunc func(ctx context.Context, docID string) (*index.Index, error)

func (f LoaderFunc) Load(ctx context.Context, docID string) (*index.Index, error) {
	return f(ctx, docID)
}

// Cache maps document id to index. With maxEntries <= 0 it never evicts;
// otherwise the least recently used entry goes first.
type Cache struct {
	loader Loader
	group  singleflight.Group

	mu      sync.RWMutex
	entries map[string]*index.Index
	lru     *lru.Cache[string, *index.Index]
}

func New(loader Loader, maxEntries int) *Cache {
	c := &Cache{loader: loader}
	if maxEntries <= 0 {
		c.entries = make(map[string]*index.Index)
		return c
	}
	l, err := lru.NewWithEvict(maxEntries, func(docID string, _ *index.Index) {
		logutil.GetLogger(context.Background()).Debug("index evicted from cache", zap.String("doc_id", docID))
	})
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	c.lru = l
	return c
}

func (c *Cache) Get(docID string) (*index.Index, bool) {
	if c.lru != nil {
		return c.lru.Get(docID)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.entries[docID]
	return idx, ok
}

func (c *Cache) Put(docID string, idx *index.Index) {
	if c.lru != nil {
		c.lru.Add(docID, idx)
		return
	}
	c.mu.Lock()
	c.entries[docID] = idx
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	if c.lru != nil {
		return c.lru.Len()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrLoad returns the cached index or loads it once, however many callers
// ask for the same id concurrently.
func (c *Cache) GetOrLoad(ctx context.Context, docID string) (*index.Index, error) {
	if idx, ok := c.Get(docID); ok {
		return idx, nil
	}
	v, err, shared := c.group.Do(docID, func() (interface{}, error) {
		if idx, ok := c.Get(docID); ok {
			return idx, nil
		}
		idx, err := c.loader.Load(ctx, docID)
		if err != nil {
			return nil, err
		}
		c.Put(docID, idx)
		logutil.GetLogger(ctx).Info("index loaded into cache",
			zap.String("doc_id", docID),
			zap.Int("chunks", idx.Len()),
		)
		return idx, nil
	})
	if err != nil {
		if !appErr.IsNotFound(err) && !appErr.IsIndexNotFound(err) {
			err = appErr.Wrap(appErr.ErrIndexNotFound, err)
		}
		return nil, err
	}
	if shared {
		logutil.GetLogger(ctx).Debug("index load shared", zap.String("doc_id", docID))
	}
	return v.(*index.Index), nil
}
