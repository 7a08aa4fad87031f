// Package store holds the current set of story artifacts keyed by trend id.
// It is the only state shared between the refresh cycle and serving requests.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sudoghut/trend-story-api/internal/models"
)

var (
	// ErrNotFound is the normal negative result for a miss.
	ErrNotFound = errors.New("story not found")
	// ErrInvariant flags a duplicate-key or corruption bug. It should never
	// occur in practice.
	ErrInvariant = errors.New("store invariant violation")
)

// Store is a mutex-guarded map of immutable artifacts. Replacement happens
// per key under a narrow critical section, so a long refresh cycle never
// blocks readers, and a reader never sees a half-written artifact.
type Store struct {
	mu    sync.RWMutex
	items map[string]models.StoryArtifact

	ttl   time.Duration
	grace time.Duration
}

// New creates an empty store. ttl is the freshness window of an artifact;
// grace is how long past its deadline an artifact stays servable (flagged
// stale) before eviction hard-deletes it.
func New(ttl, grace time.Duration) *Store {
	return &Store{
		items: make(map[string]models.StoryArtifact),
		ttl:   ttl,
		grace: grace,
	}
}

// Upsert replaces the artifact for its key. The freshness deadline is
// stamped here from the generation time and the store TTL. Idempotent:
// applying the same artifact twice leaves one entry.
func (s *Store) Upsert(art models.StoryArtifact) error {
	if art.ID == "" {
		return fmt.Errorf("%w: empty artifact id", ErrInvariant)
	}
	if art.GeneratedAt.IsZero() {
		art.GeneratedAt = time.Now().UTC()
	}
	art.Deadline = art.GeneratedAt.Add(s.ttl)
	art.Stale = false

	s.mu.Lock()
	s.items[art.ID] = art
	s.mu.Unlock()
	return nil
}

// Get returns the artifact for a key. An artifact past its deadline but
// within the grace period is returned with the Stale flag set; beyond grace
// it is treated as absent.
func (s *Store) Get(id string, now time.Time) (models.StoryArtifact, error) {
	s.mu.RLock()
	art, ok := s.items[id]
	s.mu.RUnlock()

	if !ok || s.beyondGrace(art, now) {
		return models.StoryArtifact{}, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	art.Stale = art.Expired(now)
	return art, nil
}

// List returns artifacts generated within the recency window (zero window
// means no bound), ordered by descending freshness then descending score,
// capped at limit (zero means no cap). Artifacts beyond deadline+grace are
// never returned.
func (s *Store) List(window time.Duration, limit int, now time.Time) []models.StoryArtifact {
	cutoff := time.Time{}
	if window > 0 {
		cutoff = now.Add(-window)
	}

	s.mu.RLock()
	out := make([]models.StoryArtifact, 0, len(s.items))
	for _, art := range s.items {
		if s.beyondGrace(art, now) {
			continue
		}
		if !cutoff.IsZero() && art.GeneratedAt.Before(cutoff) {
			continue
		}
		art.Stale = art.Expired(now)
		out = append(out, art)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].GeneratedAt.After(out[j].GeneratedAt)
		}
		return out[i].Score > out[j].Score
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// EvictExpired hard-deletes artifacts whose deadline plus grace has passed
// and returns how many were removed. Trend keys live exactly as long as
// their artifacts, so this doubles as idle-key garbage collection.
func (s *Store) EvictExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, art := range s.items {
		if s.beyondGrace(art, now) {
			delete(s.items, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of stored artifacts, including stale-within-grace
// ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) beyondGrace(art models.StoryArtifact, now time.Time) bool {
	return now.After(art.Deadline.Add(s.grace))
}
