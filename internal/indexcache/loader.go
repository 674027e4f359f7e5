package indexcache

import (
	"context"

	"github.com/xxxsen/docqa/internal/index"
	"github.com/xxxsen/docqa/internal/model"
)

type documentGetter interface {
	GetByID(ctx context.Context, id string) (*model.Document, error)
}

// RegistryLoader finds the index location in the registry and reads the
// index from the store.
type RegistryLoader struct {
	docs  documentGetter
	store index.Store
}

func NewRegistryLoader(docs documentGetter, store index.Store) *RegistryLoader {
	return &RegistryLoader{docs: docs, store: store}
}

func (l *RegistryLoader) Load(ctx context.Context, docID string) (*index.Index, error) {
	doc, err := l.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	return l.store.Load(ctx, doc.IndexLocation)
}
