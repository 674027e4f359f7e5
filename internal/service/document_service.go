package service

import (
	"context"

	"github.com/xxxsen/docqa/internal/model"
)

type documentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, id string) (*model.Document, error)
	List(ctx context.Context, offset, limit uint) ([]model.Document, error)
	ListIndexLocations(ctx context.Context) (map[string]struct{}, error)
}

const maxListLimit = 200

type DocumentService struct {
	docs documentStore
}

func NewDocumentService(docs documentStore) *DocumentService {
	return &DocumentService{docs: docs}
}

func (s *DocumentService) Get(ctx context.Context, id string) (*model.Document, error) {
	return s.docs.GetByID(ctx, id)
}

// List returns documents newest first.
func (s *DocumentService) List(ctx context.Context, offset, limit uint) ([]model.Document, error) {
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	return s.docs.List(ctx, offset, limit)
}
