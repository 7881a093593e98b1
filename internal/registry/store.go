// Package registry holds live games keyed by game id.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/MJE43/pf-mines/internal/games"
)

// IDLength is how many hex characters of the commitment hash form a game id.
const IDLength = 16

var (
	ErrNotFound  = errors.New("game not found")
	ErrDuplicate = errors.New("game id already registered")
)

type entry struct {
	mu         sync.Mutex
	game       *games.Game
	lastAccess time.Time
}

// Store is an in-process map of games. Operations on one game are serialized
// by that game's entry lock; different games proceed in parallel.
type Store struct {
	clock quartz.Clock

	mu      sync.RWMutex
	entries map[string]*entry
}

// New returns an empty store. A nil clock means the real clock.
func New(clock quartz.Clock) *Store {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Store{clock: clock, entries: make(map[string]*entry)}
}

// GameID derives the public id of a game from its commitment hash.
func GameID(g *games.Game) string {
	return g.CommitmentHash()[:IDLength]
}

// Put registers g and returns its id.
func (s *Store) Put(g *games.Game) (string, error) {
	id := GameID(g)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[id]; exists {
		return "", ErrDuplicate
	}
	s.entries[id] = &entry{game: g, lastAccess: s.clock.Now("registry", "put")}
	return id, nil
}

// Do runs fn with exclusive access to the game registered under id.
func (s *Store) Do(id string, fn func(*games.Game) error) error {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastAccess = s.clock.Now("registry", "do")
	return fn(e.game)
}

// Delete removes id. It reports whether the game was present.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	delete(s.entries, id)
	return ok
}

// Len is the number of registered games.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep evicts games not touched for longer than maxIdle and returns how many
// were removed. Entries currently locked by Do are skipped.
func (s *Store) Sweep(maxIdle time.Duration) int {
	cutoff := s.clock.Now("registry", "sweep").Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if !e.mu.TryLock() {
			continue
		}
		idle := e.lastAccess.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done. onSweep, if set, receives the
// number of games evicted by each sweep.
func (s *Store) Run(ctx context.Context, interval, maxIdle time.Duration, onSweep func(int)) {
	ticker := s.clock.NewTicker(interval, "registry", "run")
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.Sweep(maxIdle)
			if onSweep != nil {
				onSweep(n)
			}
		}
	}
}
