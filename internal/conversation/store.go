package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultSession is the shared log used when a caller names no session.
const DefaultSession = "default"

type StoreConfig struct {
	WindowTurns int
	MaxTurns    int
	MaxSessions int
	TTL         time.Duration
}

// Store hands out one History per session key. Idle sessions expire after
// TTL and the least recently used ones go first once MaxSessions is reached.
type Store struct {
	cfg      StoreConfig
	mu       sync.Mutex
	sessions *expirable.LRU[string, *History]
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 10000
	}
	return &Store{
		cfg:      cfg,
		sessions: expirable.NewLRU[string, *History](cfg.MaxSessions, nil, cfg.TTL),
	}
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return DefaultSession
	}
	return key
}

// Get returns the session's history, creating it on first use.
func (s *Store) Get(key string) *History {
	key = normalizeKey(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.sessions.Get(key); ok {
		return h
	}
	h := NewHistory(s.cfg.WindowTurns, s.cfg.MaxTurns)
	s.sessions.Add(key, h)
	return h
}

// Peek returns the session's history without creating or refreshing it.
func (s *Store) Peek(key string) (*History, bool) {
	return s.sessions.Peek(normalizeKey(key))
}

func (s *Store) Delete(key string) {
	s.sessions.Remove(normalizeKey(key))
}

func (s *Store) Len() int {
	return s.sessions.Len()
}
