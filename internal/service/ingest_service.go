package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/chunker"
	"github.com/xxxsen/docqa/internal/filestore"
	"github.com/xxxsen/docqa/internal/index"
	"github.com/xxxsen/docqa/internal/indexcache"
	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

type IngestInput struct {
	Filename string
	Text     string
	// Raw is the uploaded file. When set it is kept in the file store and
	// the document records where.
	Raw []byte
	// BaseURL is the public address of this service, used by file stores
	// that serve blobs through it.
	BaseURL string
}

type IngestService struct {
	docs    documentStore
	chunker *chunker.Chunker
	builder *index.Builder
	store   index.Store
	cache   *indexcache.Cache
	files   filestore.Store
}

func NewIngestService(docs documentStore, c *chunker.Chunker, builder *index.Builder, store index.Store, cache *indexcache.Cache, files filestore.Store) *IngestService {
	return &IngestService{
		docs:    docs,
		chunker: c,
		builder: builder,
		store:   store,
		cache:   cache,
		files:   files,
	}
}

// Ingest chunks and indexes a document, records it in the registry and
// makes it immediately answerable. A document is either fully ingested or
// has no registry record.
func (s *IngestService) Ingest(ctx context.Context, in IngestInput) (*model.Document, error) {
	filename := strings.TrimSpace(in.Filename)
	if filename == "" {
		return nil, appErr.Wrap(appErr.ErrInvalid, fmt.Errorf("filename is required"))
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, appErr.Wrap(appErr.ErrInvalid, fmt.Errorf("document has no text"))
	}
	start := time.Now()
	id := newID()
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", id), zap.String("filename", filename))

	chunks := s.chunker.Split(in.Text)
	idx, err := s.builder.Build(ctx, chunks)
	if err != nil {
		logger.Error("build index failed", zap.Int("chunks", len(chunks)), zap.Error(err))
		return nil, err
	}

	location := s.store.Location(id)
	if err := s.store.Persist(ctx, idx, location); err != nil {
		logger.Error("persist index failed", zap.String("location", location), zap.Error(err))
		s.removeIndex(ctx, logger, location)
		return nil, fmt.Errorf("persist index: %w", err)
	}

	externalRef := ""
	fileKey := ""
	if s.files != nil && len(in.Raw) > 0 {
		fileKey = id + strings.ToLower(filepath.Ext(filename))
		if err := s.files.Save(ctx, fileKey, bytes.NewReader(in.Raw), int64(len(in.Raw))); err != nil {
			logger.Error("save raw document failed", zap.Error(err))
			s.removeIndex(ctx, logger, location)
			return nil, fmt.Errorf("save raw document: %w", err)
		}
		externalRef = s.files.URL(fileKey, in.BaseURL)
	}

	doc := &model.Document{
		ID:            id,
		Filename:      filename,
		IndexLocation: location,
		ExternalRef:   externalRef,
		Ctime:         time.Now().UTC().Unix(),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		// the index stays on disk; the orphan sweeper reclaims it
		logger.Warn("registry insert failed, index left as potential orphan",
			zap.String("location", location),
			zap.Error(err),
		)
		if fileKey != "" {
			if rmErr := s.files.Remove(context.WithoutCancel(ctx), fileKey); rmErr != nil {
				logger.Warn("remove raw document failed", zap.String("key", fileKey), zap.Error(rmErr))
			}
		}
		return nil, err
	}
	s.cache.Put(id, idx)
	logger.Info("document ingested",
		zap.Int("chunks", idx.Len()),
		zap.String("location", location),
		zap.Duration("cost", time.Since(start)),
	)
	return doc, nil
}

func (s *IngestService) removeIndex(ctx context.Context, logger *zap.Logger, location string) {
	if err := s.store.Remove(context.WithoutCancel(ctx), location); err != nil {
		logger.Warn("remove partial index failed", zap.String("location", location), zap.Error(err))
	}
}
