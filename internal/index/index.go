// Package index holds per-document embedding indexes: building them from
// chunks, persisting them to a similarity store and searching them.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

const DefaultTopK = 4

// Index is the immutable searchable form of one document.
type Index struct {
	Model   string
	Dim     int
	Chunks  []model.Chunk
	Vectors [][]float32
	mags    []float64
}

// ScoredChunk is a search hit.
type ScoredChunk struct {
	model.Chunk
	Score float64
}

// New assembles an index from chunks and their vectors. Every vector must
// have the same, non-zero dimension.
func New(modelName string, chunks []model.Chunk, vectors [][]float32) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	idx := &Index{
		Model:   modelName,
		Chunks:  chunks,
		Vectors: vectors,
		mags:    make([]float64, len(vectors)),
	}
	for i, vec := range vectors {
		if len(vec) == 0 {
			return nil, fmt.Errorf("empty vector at position %d", i)
		}
		if idx.Dim == 0 {
			idx.Dim = len(vec)
		}
		if len(vec) != idx.Dim {
			return nil, fmt.Errorf("inconsistent vector dims at position %d: %d vs %d", i, len(vec), idx.Dim)
		}
		idx.mags[i] = magnitude(vec)
	}
	return idx, nil
}

func (i *Index) Len() int {
	return len(i.Chunks)
}

// Search embeds query as a retrieval query and returns up to k chunks, best
// match first. Equal scores keep chunk position order.
func (i *Index) Search(ctx context.Context, embedder ai.IEmbedder, query string, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	vec, err := embedder.Embed(ctx, query, ai.TaskTypeQuery)
	if err != nil {
		return nil, appErr.Wrap(appErr.ErrEmbeddingFailure, err)
	}
	if err := checkVector(vec); err != nil {
		return nil, appErr.Wrap(appErr.ErrEmbeddingFailure, err)
	}
	if i.Len() == 0 {
		return nil, nil
	}
	if len(vec) != i.Dim {
		return nil, appErr.Wrap(appErr.ErrEmbeddingFailure, fmt.Errorf("query dim %d != index dim %d", len(vec), i.Dim))
	}
	qm := magnitude(vec)
	hits := make([]ScoredChunk, 0, len(i.Chunks))
	for j, chunk := range i.Chunks {
		hits = append(hits, ScoredChunk{Chunk: chunk, Score: cosine(vec, i.Vectors[j], qm, i.mags[j])})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Position < hits[b].Position
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func cosine(a, b []float32, magA, magB float64) float64 {
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot(a, b) / (magA * magB)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func magnitude(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

func checkVector(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty embedding")
	}
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite embedding value")
		}
	}
	return nil
}
