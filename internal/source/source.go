// Package source fetches raw trend signals from external providers. Providers
// own no business logic: they do I/O, parse responses, and normalize provider
// failures into the shared error taxonomy.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sudoghut/trend-story-api/internal/models"
)

var (
	// ErrUnavailable means the provider could not be reached or timed out.
	// No partial results accompany it.
	ErrUnavailable = errors.New("trend source unavailable")
	// ErrMalformed means the provider answered but the payload could not be
	// parsed.
	ErrMalformed = errors.New("trend source malformed")
)

// Fetcher is a single trend provider.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]models.TrendSignal, error)
}

// Multi fans a fetch out to several providers and concatenates their signals.
// A provider failure is logged and tolerated as long as at least one provider
// succeeds; when all of them fail the fetch as a whole is unavailable.
type Multi struct {
	fetchers []Fetcher
	log      *slog.Logger
}

// NewMulti wires the given providers together. At least one is required.
func NewMulti(log *slog.Logger, fetchers ...Fetcher) (*Multi, error) {
	if len(fetchers) == 0 {
		return nil, errors.New("at least one trend source is required")
	}
	return &Multi{fetchers: fetchers, log: log}, nil
}

func (m *Multi) Name() string { return "multi" }

// Fetch queries every provider. An empty result with no errors is a valid
// empty cycle.
func (m *Multi) Fetch(ctx context.Context) ([]models.TrendSignal, error) {
	var signals []models.TrendSignal
	var errs []error

	for _, f := range m.fetchers {
		batch, err := f.Fetch(ctx)
		if err != nil {
			m.log.Warn("source fetch failed",
				slog.String("source", f.Name()),
				slog.Any("err", err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}
		signals = append(signals, batch...)
	}

	if len(errs) == len(m.fetchers) {
		sentinel := ErrMalformed
		for _, err := range errs {
			if !errors.Is(err, ErrMalformed) {
				sentinel = ErrUnavailable
				break
			}
		}
		return nil, fmt.Errorf("%w: %v", sentinel, errors.Join(errs...))
	}
	return signals, nil
}
