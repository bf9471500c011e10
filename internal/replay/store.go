package replay

import (
	"context"
	"sync"
	"time"

	"github.com/fanpulse/fanpulse/internal/clock"
)

// Store is a TTL-bound first-seen cache for token replay keys. Both
// the in-process and the redis implementation satisfy it, so the guard
// and anything else that needs once-only semantics share one
// abstraction.
type Store interface {
	// Remember records key with the given ttl. It returns false when
	// the key was already present and not yet expired.
	Remember(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryStore is the single-process Store. Entries are lazily expired
// on lookup and swept by Prune, which the fx module runs on a ticker.
type MemoryStore struct {
	clock clock.Clock

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		clock: clk,
		seen:  make(map[string]time.Time),
	}
}

func (s *MemoryStore) Remember(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.seen[key]; ok && now.Before(expiry) {
		return false, nil
	}
	s.seen[key] = now.Add(ttl)
	return true, nil
}

// Prune drops expired entries. Lookup already ignores them; pruning
// only bounds memory.
func (s *MemoryStore) Prune() {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, expiry := range s.seen {
		if !now.Before(expiry) {
			delete(s.seen, key)
		}
	}
}

func (s *MemoryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
