package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

const pgvectorSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS doc_index (
	location TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	dim INTEGER NOT NULL,
	chunk_count INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS doc_index_chunk (
	location TEXT NOT NULL REFERENCES doc_index(location) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	content TEXT NOT NULL,
	embedding vector NOT NULL,
	PRIMARY KEY (location, position)
);
`

// PgvectorStore keeps indexes as rows in postgres. The vectors use the
// pgvector column type but similarity is computed in process so results
// match the file backend exactly.
type PgvectorStore struct {
	pool *pgxpool.Pool
}

func NewPgvectorStore(ctx context.Context, dsn string) (*PgvectorStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	for _, stmt := range strings.Split(pgvectorSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create pgvector schema: %w", err)
		}
	}
	return &PgvectorStore{pool: pool}, nil
}

func (s *PgvectorStore) Location(docID string) string {
	return "pgvector:" + docID
}

func (s *PgvectorStore) Persist(ctx context.Context, idx *Index, location string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM doc_index WHERE location = $1`, location); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO doc_index (location, model, dim, chunk_count) VALUES ($1, $2, $3, $4)`,
		location, idx.Model, idx.Dim, idx.Len(),
	); err != nil {
		return fmt.Errorf("write index meta: %w", err)
	}
	batch := &pgx.Batch{}
	for i, chunk := range idx.Chunks {
		batch.Queue(
			`INSERT INTO doc_index_chunk (location, position, content, embedding) VALUES ($1, $2, $3, $4)`,
			location, chunk.Position, chunk.Content, pgvector.NewVector(idx.Vectors[i]),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write index chunks: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PgvectorStore) Load(ctx context.Context, location string) (*Index, error) {
	var (
		modelName string
		dim       int
		count     int
	)
	err := s.pool.QueryRow(ctx,
		`SELECT model, dim, chunk_count FROM doc_index WHERE location = $1`, location,
	).Scan(&modelName, &dim, &count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, appErr.Wrap(appErr.ErrIndexNotFound, fmt.Errorf("index %s not found", location))
		}
		return nil, appErr.Wrap(appErr.ErrIndexNotFound, err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT position, content, embedding FROM doc_index_chunk WHERE location = $1 ORDER BY position`, location,
	)
	if err != nil {
		return nil, appErr.Wrap(appErr.ErrIndexNotFound, err)
	}
	defer rows.Close()
	chunks := make([]model.Chunk, 0, count)
	vectors := make([][]float32, 0, count)
	for rows.Next() {
		var (
			chunk model.Chunk
			vec   pgvector.Vector
		)
		if err := rows.Scan(&chunk.Position, &chunk.Content, &vec); err != nil {
			return nil, appErr.Wrap(appErr.ErrIndexNotFound, err)
		}
		chunks = append(chunks, chunk)
		vectors = append(vectors, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(appErr.ErrIndexNotFound, err)
	}
	if len(chunks) != count {
		return nil, appErr.Wrap(appErr.ErrIndexNotFound, fmt.Errorf("chunk count mismatch: meta %d, rows %d", count, len(chunks)))
	}
	idx, err := New(modelName, chunks, vectors)
	if err != nil {
		return nil, appErr.Wrap(appErr.ErrIndexNotFound, err)
	}
	if idx.Len() > 0 && idx.Dim != dim {
		return nil, appErr.Wrap(appErr.ErrIndexNotFound, fmt.Errorf("dim mismatch: meta %d, rows %d", dim, idx.Dim))
	}
	return idx, nil
}

func (s *PgvectorStore) Remove(ctx context.Context, location string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM doc_index WHERE location = $1`, location)
	return err
}

func (s *PgvectorStore) List(ctx context.Context) ([]StoredIndex, error) {
	rows, err := s.pool.Query(ctx, `SELECT location, created_at FROM doc_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredIndex
	for rows.Next() {
		var (
			item StoredIndex
			ts   time.Time
		)
		if err := rows.Scan(&item.Location, &ts); err != nil {
			return nil, err
		}
		item.CreatedAt = ts
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *PgvectorStore) Close() error {
	s.pool.Close()
	return nil
}
