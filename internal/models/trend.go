package models

import "time"

// TrendSignal is a single raw observation of a topic from an external
// provider. Signals are ephemeral: they exist between fetch and normalization
// and are discarded afterwards.
type TrendSignal struct {
	Source     string    `json:"source"`
	Topic      string    `json:"topic"`
	Score      float64   `json:"score"`
	ObservedAt time.Time `json:"observed_at"`
}

// TrendKey is the canonical, deduplicated identity of a topic. Norm is the
// normalized topic text, ID a stable hash of it. Identical normalized text
// always yields the same ID, across process restarts.
type TrendKey struct {
	ID   string `json:"id"`
	Norm string `json:"norm"`
}

// StoryArtifact is the generated narrative for a trend key. Artifacts are
// immutable after creation: a refresh replaces the whole record, never
// mutates fields in place.
type StoryArtifact struct {
	ID          string    `json:"id"`
	Topic       string    `json:"topic"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Keywords    []string  `json:"keywords,omitempty"`
	Source      string    `json:"source"`
	Score       float64   `json:"score"`
	GeneratedAt time.Time `json:"generated_at"`
	Deadline    time.Time `json:"deadline"`
	Stale       bool      `json:"stale,omitempty"`
}

// Expired reports whether the artifact's freshness deadline has passed.
func (a *StoryArtifact) Expired(now time.Time) bool {
	return now.After(a.Deadline)
}
