package synthesize

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/sudoghut/trend-story-api/internal/models"
)

// Template is the local generation strategy: deterministic headline and body
// built from the trend itself, no external calls. It is the default and the
// fallback when no generation provider is configured.
type Template struct{}

// NewTemplate returns the local strategy.
func NewTemplate() *Template { return &Template{} }

func (t *Template) Synthesize(_ context.Context, key models.TrendKey, signal models.TrendSignal) (models.StoryArtifact, error) {
	if key.Norm == "" {
		return models.StoryArtifact{}, fmt.Errorf("%w: empty trend", ErrGeneration)
	}

	title := headline(key.Norm)
	body := fmt.Sprintf(
		"%s is trending right now. The topic surfaced on %s with a trend score of %.0f, observed at %s.",
		title, signal.Source, signal.Score, signal.ObservedAt.Format("15:04 MST, Jan 2"),
	)

	return models.StoryArtifact{
		Topic:    key.Norm,
		Title:    title,
		Body:     body,
		Keywords: strings.Fields(key.Norm),
	}, nil
}

// headline capitalizes the first letter of every word of the normalized
// topic.
func headline(norm string) string {
	words := strings.Fields(norm)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
