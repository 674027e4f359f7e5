// Package conversation keeps question/answer history per session.
package conversation

import (
	"sync"

	"github.com/xxxsen/docqa/internal/model"
)

const (
	DefaultWindowTurns = 3
	DefaultMaxTurns    = 50
)

// History is an append-only turn log. Only the last maxTurns turns are
// retained; Window exposes the last windowTurns of those, oldest first.
type History struct {
	mu          sync.Mutex
	turns       []model.Turn
	windowTurns int
	maxTurns    int
}

func NewHistory(windowTurns, maxTurns int) *History {
	if windowTurns <= 0 {
		windowTurns = DefaultWindowTurns
	}
	if maxTurns < windowTurns {
		maxTurns = windowTurns
	}
	return &History{windowTurns: windowTurns, maxTurns: maxTurns}
}

func (h *History) Append(turn model.Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
	if over := len(h.turns) - h.maxTurns; over > 0 {
		h.turns = append(h.turns[:0:0], h.turns[over:]...)
	}
}

func (h *History) Window() []model.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	start := len(h.turns) - h.windowTurns
	if start < 0 {
		start = 0
	}
	return append([]model.Turn(nil), h.turns[start:]...)
}

// Turns returns a copy of every retained turn.
func (h *History) Turns() []model.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.Turn(nil), h.turns...)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

func (h *History) Reset() {
	h.mu.Lock()
	h.turns = nil
	h.mu.Unlock()
}
