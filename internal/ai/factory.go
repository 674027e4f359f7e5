package ai

import (
	"fmt"

	"github.com/xxxsen/docqa/internal/config"
)

// BuildGenerator creates one generator per configured entry and chains them
// into a fallback group in config order.
func BuildGenerator(items []config.ProviderConfig) (IGenerator, error) {
	entries := make([]GeneratorEntry, 0, len(items))
	for i, item := range items {
		p, err := NewGenerateProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init generator %d: %w", i, err)
		}
		entries = append(entries, GeneratorEntry{
			Name:      p.Name() + ":" + item.Model,
			Generator: NewGenerator(p, item.Model),
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no generator configured")
	}
	if len(entries) == 1 {
		return entries[0].Generator, nil
	}
	return NewGroupGenerator(entries), nil
}

func BuildEmbedder(items []config.ProviderConfig) (IEmbedder, error) {
	entries := make([]EmbedderEntry, 0, len(items))
	for i, item := range items {
		p, err := NewEmbedProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init embedder %d: %w", i, err)
		}
		entries = append(entries, EmbedderEntry{
			Name:     p.Name() + ":" + item.Model,
			Embedder: NewEmbedder(p, item.Model),
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no embedder configured")
	}
	if len(entries) == 1 {
		return entries[0].Embedder, nil
	}
	return NewGroupEmbedder(entries), nil
}
