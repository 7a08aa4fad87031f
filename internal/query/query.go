// Package query is the read-only contract the HTTP layer consumes. It
// applies caller-supplied filters and nothing else.
package query

import (
	"time"

	"github.com/sudoghut/trend-story-api/internal/models"
	"github.com/sudoghut/trend-story-api/internal/store"
)

// Service wraps the store with limit clamping and not-found translation.
type Service struct {
	store        *store.Store
	defaultLimit int
	maxLimit     int
}

// New builds the read service.
func New(st *store.Store, defaultLimit, maxLimit int) *Service {
	return &Service{store: st, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// List returns fresh stories inside the recency window, newest first. A
// non-positive limit falls back to the default; anything above the maximum is
// clamped.
func (s *Service) List(window time.Duration, limit int) []models.StoryArtifact {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return s.store.List(window, limit, time.Now().UTC())
}

// Get fetches one story by trend key. Misses surface store.ErrNotFound.
func (s *Service) Get(id string) (models.StoryArtifact, error) {
	return s.store.Get(id, time.Now().UTC())
}

// Latest returns the stories generated on the most recent generation day,
// plus that day in YYYY-MM-DD form. Empty store yields ("", nil).
func (s *Service) Latest() (string, []models.StoryArtifact) {
	all := s.store.List(0, 0, time.Now().UTC())
	if len(all) == 0 {
		return "", nil
	}

	// List is ordered newest first, so the first entry carries the latest day.
	day := all[0].GeneratedAt.UTC().Format("2006-01-02")
	records := make([]models.StoryArtifact, 0, len(all))
	for _, art := range all {
		if art.GeneratedAt.UTC().Format("2006-01-02") == day {
			records = append(records, art)
		}
	}
	return day, records
}
