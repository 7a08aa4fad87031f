// Package synthesize turns normalized trends into story artifacts. The
// generation algorithm is a pluggable strategy chosen at startup.
package synthesize

import (
	"context"
	"errors"

	"github.com/sudoghut/trend-story-api/internal/models"
)

// ErrGeneration means a strategy failed to produce a story for one trend.
// The failure is scoped to that trend; the rest of the cycle proceeds.
var ErrGeneration = errors.New("story generation failed")

// Synthesizer produces a story artifact for a canonical trend and its best
// signal. Implementations set Title, Body and Keywords; the caller owns
// identity, score and freshness fields.
type Synthesizer interface {
	Synthesize(ctx context.Context, key models.TrendKey, signal models.TrendSignal) (models.StoryArtifact, error)
}
