package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

// join reverses Split by dropping the overlapping prefix of every chunk
// after the first.
func join(chunks []model.Chunk, overlap int) string {
	var out []rune
	for i, chunk := range chunks {
		runes := []rune(chunk.Content)
		if i > 0 {
			runes = runes[overlap:]
		}
		out = append(out, runes...)
	}
	return string(out)
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "zero size", size: 0, overlap: 0},
		{name: "negative overlap", size: 10, overlap: -1},
		{name: "overlap equals size", size: 10, overlap: 10},
		{name: "overlap exceeds size", size: 10, overlap: 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.overlap)
			require.ErrorIs(t, err, appErr.ErrInvalid)
		})
	}
}

func TestSplitEmpty(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)
	require.Empty(t, c.Split(""))
}

func TestSplitShorterThanChunk(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)
	chunks := c.Split("tiny")
	require.Len(t, chunks, 1)
	require.Equal(t, "tiny", chunks[0].Content)
	require.Equal(t, 0, chunks[0].Position)
}

func TestSplitAlphaBetaGamma(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)
	chunks := c.Split("Alpha. Beta. Gamma.")
	require.Len(t, chunks, 3)
	require.Equal(t, "Alpha. Bet", chunks[0].Content)
	require.Equal(t, "eta. Gamma", chunks[1].Content)
	require.Equal(t, "ma.", chunks[2].Content)
	for i, chunk := range chunks {
		require.Equal(t, i, chunk.Position)
	}
}

func TestSplitExactMultipleHasNoRedundantTail(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)
	chunks := c.Split(strings.Repeat("x", 10))
	require.Len(t, chunks, 1)
}

func TestSplitProperties(t *testing.T) {
	texts := []string{
		"a",
		"Alpha. Beta. Gamma.",
		strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40),
		"多字节字符也按字符切分，不会截断任何一个字。" + strings.Repeat("ünïcödé ", 30),
	}
	params := [][2]int{{1, 0}, {5, 0}, {5, 4}, {10, 2}, {64, 16}, {1000, 200}}
	for _, text := range texts {
		for _, p := range params {
			c, err := New(p[0], p[1])
			require.NoError(t, err)
			chunks := c.Split(text)
			require.NotEmpty(t, chunks)
			for i, chunk := range chunks {
				n := utf8.RuneCountInString(chunk.Content)
				if i < len(chunks)-1 {
					require.Equal(t, p[0], n, "size=%d overlap=%d chunk=%d", p[0], p[1], i)
					next := []rune(chunks[i+1].Content)
					cur := []rune(chunk.Content)
					require.Equal(t, string(cur[len(cur)-p[1]:]), string(next[:p[1]]))
				} else {
					require.LessOrEqual(t, n, p[0])
				}
			}
			require.Equal(t, text, join(chunks, p[1]), "size=%d overlap=%d", p[0], p[1])
			require.Equal(t, chunks, c.Split(text))
		}
	}
}
