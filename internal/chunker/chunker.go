// Package chunker splits extracted document text into fixed-size,
// overlapping chunks.
package chunker

import (
	"fmt"

	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters a chunk shares
// with its predecessor.
const DefaultChunkOverlap = 200

// Chunker cuts text on rune boundaries. Every chunk but the last holds
// exactly size runes; chunk i (i > 0) begins overlap runes before the end of
// chunk i-1.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, appErr.Wrap(appErr.ErrInvalid, fmt.Errorf("chunk size must be positive, got %d", size))
	}
	if overlap < 0 || overlap >= size {
		return nil, appErr.Wrap(appErr.ErrInvalid, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap))
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int {
	return c.size
}

func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split returns the chunks of text in order. Empty text yields no chunks.
func (c *Chunker) Split(text string) []model.Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	step := c.size - c.overlap
	chunks := make([]model.Chunk, 0, n/step+1)
	for start, position := 0, 0; ; start, position = start+step, position+1 {
		end := start + c.size
		if end > n {
			end = n
		}
		chunks = append(chunks, model.Chunk{
			Position: position,
			Content:  string(runes[start:end]),
		})
		// stop once the tail is covered so no chunk is a pure suffix of the
		// previous one
		if end == n {
			break
		}
	}
	return chunks
}
