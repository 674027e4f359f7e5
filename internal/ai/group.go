package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

// inOrder calls fn for each member until one succeeds. It stops early once
// ctx is done since every later member would fail the same way.
func inOrder[T any](ctx context.Context, kind string, names []string, fn func(i int) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i, name := range names {
		res, err := fn(i)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logutil.GetLogger(ctx).Warn(kind+" failed, trying next", zap.Int("index", i), zap.String("name", name), zap.Error(err))
	}
	if lastErr == nil {
		return zero, fmt.Errorf("%s not configured", kind)
	}
	return zero, lastErr
}

type groupGenerator struct {
	names []string
	items []IGenerator
}

func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	g := &groupGenerator{}
	for _, item := range items {
		if item.Generator == nil {
			continue
		}
		g.names = append(g.names, item.Name)
		g.items = append(g.items, item.Generator)
	}
	if len(g.items) == 0 {
		return nil
	}
	return g
}

func (g *groupGenerator) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	return inOrder(ctx, "generator", g.names, func(i int) (string, error) {
		return g.items[i].Generate(ctx, req)
	})
}

var errDimensionMismatch = errors.New("embedding dimension differs from earlier results")

// groupEmbedder presents its members as a single model. Vectors from every
// member land in the same indexes, so the first dimension seen is pinned
// and a member answering with another size counts as failed.
type groupEmbedder struct {
	names []string
	items []IEmbedder
	dim   atomic.Int64
}

func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	g := &groupEmbedder{}
	for _, item := range items {
		if item.Embedder == nil {
			continue
		}
		g.names = append(g.names, item.Name)
		g.items = append(g.items, item.Embedder)
	}
	if len(g.items) == 0 {
		return nil
	}
	return g
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return inOrder(ctx, "embedder", g.names, func(i int) ([]float32, error) {
		vec, err := g.items[i].Embed(ctx, text, taskType)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return vec, nil
		}
		dim := int64(len(vec))
		if !g.dim.CompareAndSwap(0, dim) && g.dim.Load() != dim {
			return nil, fmt.Errorf("%w: got %d, want %d", errDimensionMismatch, dim, g.dim.Load())
		}
		return vec, nil
	})
}

func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.names))
	for _, name := range g.names {
		if name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}
