package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var ErrNotFound = errors.New("session not found")

// Turn is one immutable conversation entry. Operations holds the
// comma-joined collaborator operation names invoked while producing an
// assistant turn.
type Turn struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Operations string    `json:"operations,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// conversation is one session's mutable state. Each conversation carries its
// own lock so appends to different sessions never serialize on each other;
// the store's outer lock only guards the map itself.
type conversation struct {
	mu           sync.Mutex
	turns        []Turn
	lastActivity time.Time
}

// Store holds every live conversation keyed by an opaque session key.
type Store struct {
	mu           sync.RWMutex
	convs        map[string]*conversation
	historyLimit int
}

func NewStore(historyLimit int) *Store {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &Store{
		convs:        make(map[string]*conversation),
		historyLimit: historyLimit,
	}
}

func (s *Store) getOrCreate(key string) *conversation {
	s.mu.RLock()
	c, ok := s.convs[key]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.convs[key]; ok {
		return c
	}
	c = &conversation{lastActivity: time.Now().UTC()}
	s.convs[key] = c
	return c
}

// Touch creates the session if it does not exist and refreshes its activity
// timestamp. It reports whether the session was newly created.
func (s *Store) Touch(key string) bool {
	s.mu.RLock()
	c, existed := s.convs[key]
	s.mu.RUnlock()
	if !existed {
		c = s.getOrCreate(key)
	}
	c.mu.Lock()
	c.lastActivity = time.Now().UTC()
	c.mu.Unlock()
	return !existed
}

// Append adds one turn to the session, creating it on first use. The
// bounded history evicts the oldest turn first once the cap is reached.
// Appends to the same session serialize on the conversation's own lock, so
// concurrent appends can neither drop nor reorder turns.
func (s *Store) Append(key string, t Turn) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	c := s.getOrCreate(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, t)
	if over := len(c.turns) - s.historyLimit; over > 0 {
		c.turns = append([]Turn(nil), c.turns[over:]...)
	}
	c.lastActivity = time.Now().UTC()
}

// Recent returns up to n of the most recently appended turns in
// chronological order. A missing session yields an empty result.
func (s *Store) Recent(key string, n int) []Turn {
	s.mu.RLock()
	c, ok := s.convs[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || n > len(c.turns) {
		n = len(c.turns)
	}
	out := make([]Turn, n)
	copy(out, c.turns[len(c.turns)-n:])
	return out
}

// Clear removes the session entirely.
func (s *Store) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[key]; !ok {
		return ErrNotFound
	}
	delete(s.convs, key)
	return nil
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}

// ExpireIdle removes every session idle for longer than ttl and returns how
// many were removed. It is safe to run concurrently with appends to
// unrelated sessions: activity is checked under each conversation's lock and
// removal re-checks under the map lock.
func (s *Store) ExpireIdle(ttl time.Duration) int {
	now := time.Now().UTC()

	s.mu.RLock()
	keys := make([]string, 0, len(s.convs))
	for k := range s.convs {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	removed := 0
	for _, k := range keys {
		s.mu.RLock()
		c, ok := s.convs[k]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		c.mu.Lock()
		idle := now.Sub(c.lastActivity) >= ttl
		c.mu.Unlock()
		if !idle {
			continue
		}

		s.mu.Lock()
		if cur, ok := s.convs[k]; ok && cur == c {
			cur.mu.Lock()
			stillIdle := now.Sub(cur.lastActivity) >= ttl
			cur.mu.Unlock()
			if stillIdle {
				delete(s.convs, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// StartJanitor runs the idle-expiry sweep on a fixed period until ctx is
// cancelled.
func (s *Store) StartJanitor(ctx context.Context, interval, ttl time.Duration, onExpired func(int)) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n := s.ExpireIdle(ttl)
				if n > 0 && onExpired != nil {
					onExpired(n)
				}
			}
		}
	}()
}
