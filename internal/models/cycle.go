package models

import "time"

// Cycle outcomes.
const (
	CycleSucceeded = "succeeded"
	CyclePartial   = "partial"
	CycleFailed    = "failed"
)

// CycleSummary records what happened during one refresh cycle. Only the most
// recent summary is kept; it feeds the health endpoint and backoff decisions.
type CycleSummary struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Outcome     string        `json:"outcome"`
	Signals     int           `json:"signals"`
	Dropped     int           `json:"dropped"`
	Synthesized int           `json:"synthesized"`
	Created     int           `json:"created"`
	Updated     int           `json:"updated"`
	SynthFailed int           `json:"synth_failed"`
	Evicted     int           `json:"evicted"`
	Err         string        `json:"error,omitempty"`
}
