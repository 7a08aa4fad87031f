// Package scheduler drives the refresh pipeline: fetch trend signals,
// normalize, synthesize stories, commit them to the store. One cycle runs at
// a time; failures feed an exponential backoff.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sudoghut/trend-story-api/internal/config"
	"github.com/sudoghut/trend-story-api/internal/metrics"
	"github.com/sudoghut/trend-story-api/internal/models"
	"github.com/sudoghut/trend-story-api/internal/normalize"
	"github.com/sudoghut/trend-story-api/internal/source"
	"github.com/sudoghut/trend-story-api/internal/store"
	"github.com/sudoghut/trend-story-api/internal/synthesize"
)

// State names the scheduler's position in the cycle state machine.
type State int

const (
	Idle State = iota
	Fetching
	Normalizing
	Synthesizing
	Committing
	Backoff
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Normalizing:
		return "normalizing"
	case Synthesizing:
		return "synthesizing"
	case Committing:
		return "committing"
	case Backoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Archiver receives committed artifacts for long-term indexing. May be nil.
type Archiver interface {
	IndexStory(ctx context.Context, art models.StoryArtifact) error
}

// Snapshot is the scheduler state exposed to the health endpoint.
type Snapshot struct {
	State       string              `json:"state"`
	Failures    int                 `json:"consecutive_failures"`
	LastSuccess time.Time           `json:"last_success,omitempty"`
	LastCycle   models.CycleSummary `json:"last_cycle"`
}

// Scheduler owns the cycle state machine. Only the scheduler transitions the
// state value; readers get copies via Snapshot.
type Scheduler struct {
	log     *slog.Logger
	cfg     config.Scheduler
	source  source.Fetcher
	synth   synthesize.Synthesizer
	store   *store.Store
	archive Archiver
	m       *metrics.Metrics

	mu          sync.Mutex
	state       State
	failures    int
	notBefore   time.Time
	lastStart   time.Time
	lastSuccess time.Time
	last        models.CycleSummary
}

// New wires the pipeline together. archive and m may be nil.
func New(log *slog.Logger, cfg config.Scheduler, src source.Fetcher, synth synthesize.Synthesizer, st *store.Store, archive Archiver, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		log:     log,
		cfg:     cfg,
		source:  src,
		synth:   synth,
		store:   st,
		archive: archive,
		m:       m,
	}
}

// Run executes one cycle immediately, then ticks at the configured interval
// until the context is canceled. A tick that arrives while a cycle is still
// in flight, or before the backoff window has elapsed, is skipped and logged.
func (s *Scheduler) Run(ctx context.Context) {
	s.RunCycle(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			if !s.due(time.Now()) {
				continue
			}
			s.RunCycle(ctx)
		}
	}
}

// due decides whether a tick should start a cycle.
func (s *Scheduler) due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle && s.state != Backoff {
		s.log.Warn("cycle still in progress, skipping tick",
			slog.String("state", s.state.String()))
		if s.m != nil {
			s.m.SkippedTicks.Inc()
		}
		return false
	}
	if now.Before(s.notBefore) {
		s.log.Debug("backoff active, skipping tick",
			slog.Time("not_before", s.notBefore),
			slog.Int("failures", s.failures))
		if s.m != nil {
			s.m.SkippedTicks.Inc()
		}
		return false
	}
	if now.Sub(s.lastStart) < s.cfg.Interval {
		// A late tick queued behind a long cycle.
		if s.m != nil {
			s.m.SkippedTicks.Inc()
		}
		return false
	}
	return true
}

// RunCycle performs a single fetch -> normalize -> synthesize -> commit pass
// and returns its summary. Called by Run on every due tick; safe to call
// directly for a manual refresh.
func (s *Scheduler) RunCycle(ctx context.Context) models.CycleSummary {
	start := time.Now().UTC()
	sum := models.CycleSummary{ID: uuid.NewString(), StartedAt: start}

	s.mu.Lock()
	if s.state != Idle && s.state != Backoff {
		s.mu.Unlock()
		sum.Outcome = models.CycleFailed
		sum.Err = "cycle already in progress"
		return sum
	}
	s.lastStart = start
	s.state = Fetching
	s.mu.Unlock()

	// Hard ceiling for the whole cycle. External calls inherit it; store
	// locks are only taken for the final per-key commit.
	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.Ceiling)
	defer cancel()

	signals, err := s.source.Fetch(cycleCtx)
	if err != nil {
		sum.Outcome = models.CycleFailed
		sum.Err = err.Error()
		s.log.Warn("fetch failed", slog.Any("err", err))
		// Expired artifacts still age out while the source is down.
		sum.Evicted = s.store.EvictExpired(time.Now().UTC())
		s.finish(&sum, start)
		return sum
	}
	sum.Signals = len(signals)

	s.setState(Normalizing)
	best, dropped := normalize.Dedupe(signals)
	sum.Dropped = dropped

	s.setState(Synthesizing)
	pending := make([]models.StoryArtifact, 0, len(best))
	aborted := false
	for key, sig := range best {
		if cycleCtx.Err() != nil {
			aborted = true
			break
		}
		art, err := s.synth.Synthesize(cycleCtx, key, sig)
		if err != nil {
			// Scoped to this trend; the prior artifact, if any, stays until
			// the next successful refresh or eviction.
			sum.SynthFailed++
			s.log.Warn("synthesis failed",
				slog.String("trend", key.Norm),
				slog.Any("err", err))
			if s.m != nil {
				s.m.SynthFailures.Inc()
			}
			continue
		}
		art.ID = key.ID
		art.Topic = key.Norm
		art.Source = sig.Source
		art.Score = sig.Score
		art.GeneratedAt = start
		pending = append(pending, art)
	}

	s.setState(Committing)
	sizeBefore := s.store.Len()
	for _, art := range pending {
		if err := s.store.Upsert(art); err != nil {
			// Upsert only fails on an invariant violation, which means a
			// corruption bug rather than bad input.
			sum.Outcome = models.CycleFailed
			sum.Err = err.Error()
			s.log.Error("store invariant violated", slog.Any("err", err))
			s.finish(&sum, start)
			return sum
		}
		sum.Synthesized++
		if s.archive != nil {
			if err := s.archive.IndexStory(cycleCtx, art); err != nil {
				s.log.Warn("archive index failed",
					slog.String("id", art.ID),
					slog.Any("err", err))
			}
		}
	}

	// Eviction runs after commit, so the size delta is exactly the new keys.
	sum.Created = s.store.Len() - sizeBefore
	sum.Updated = sum.Synthesized - sum.Created

	sum.Evicted = s.store.EvictExpired(time.Now().UTC())

	switch {
	case aborted:
		sum.Outcome = models.CycleFailed
		sum.Err = "cycle ceiling exceeded"
	case sum.SynthFailed > 0 && sum.Synthesized == 0 && len(best) > 0:
		sum.Outcome = models.CycleFailed
		sum.Err = "all syntheses failed"
	case sum.SynthFailed > 0:
		sum.Outcome = models.CyclePartial
	default:
		sum.Outcome = models.CycleSucceeded
	}

	s.finish(&sum, start)
	return sum
}

// finish records the summary, applies backoff rules, and updates metrics.
func (s *Scheduler) finish(sum *models.CycleSummary, start time.Time) {
	sum.Duration = time.Since(start)

	s.mu.Lock()
	switch sum.Outcome {
	case models.CycleFailed:
		s.failures++
		delay := backoffDelay(s.cfg.Interval, s.cfg.BackoffCap, s.failures)
		s.notBefore = time.Now().Add(delay)
		s.state = Backoff
		s.log.Warn("cycle failed, backing off",
			slog.String("cycle", sum.ID),
			slog.Duration("delay", delay),
			slog.Int("failures", s.failures))
	case models.CycleSucceeded:
		// Only a fully clean cycle resets the backoff counter.
		s.failures = 0
		s.notBefore = time.Time{}
		s.lastSuccess = time.Now().UTC()
		s.state = Idle
	default:
		s.notBefore = time.Time{}
		s.state = Idle
	}
	s.last = *sum
	s.mu.Unlock()

	if s.m != nil {
		s.m.Cycles.WithLabelValues(sum.Outcome).Inc()
		s.m.Signals.Add(float64(sum.Signals))
		s.m.Dropped.Add(float64(sum.Dropped))
		s.m.Upserts.Add(float64(sum.Synthesized))
		s.m.Evicted.Add(float64(sum.Evicted))
		s.m.StoreSize.Set(float64(s.store.Len()))
		if sum.Outcome == models.CycleSucceeded {
			s.m.LastSuccess.SetToCurrentTime()
		}
	}

	s.log.Info("cycle finished",
		slog.String("cycle", sum.ID),
		slog.String("outcome", sum.Outcome),
		slog.Int("signals", sum.Signals),
		slog.Int("dropped", sum.Dropped),
		slog.Int("synthesized", sum.Synthesized),
		slog.Int("synth_failed", sum.SynthFailed),
		slog.Int("evicted", sum.Evicted),
		slog.Duration("took", sum.Duration),
	)
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Snapshot returns a copy of the scheduler state for health reporting.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:       s.state.String(),
		Failures:    s.failures,
		LastSuccess: s.lastSuccess,
		LastCycle:   s.last,
	}
}

// backoffDelay doubles the base interval per consecutive failure, capped.
func backoffDelay(base, limit time.Duration, failures int) time.Duration {
	delay := base
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	if delay > limit {
		return limit
	}
	return delay
}
