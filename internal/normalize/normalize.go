// Package normalize converts raw trend signals into canonical trend keys and
// collapses near-duplicates.
package normalize

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"strings"

	"github.com/sudoghut/trend-story-api/internal/models"
)

var (
	urlRe        = regexp.MustCompile(`https?://[^\s]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Provider decoration: rank prefixes like "1." or "3)", leading list
	// markers and hashes, surrounding quotes.
	rankPrefixRe = regexp.MustCompile(`^\s*\d{1,3}[.)]\s+`)
	decorationRe = regexp.MustCompile(`^[\s#*\-–—·•"'«»]+|[\s#*"'«»]+$`)
)

// Canonicalize produces the normalized topic text: HTML entities decoded,
// URLs and provider decoration stripped, lowercased, whitespace collapsed.
// Returns "" when nothing usable remains.
func Canonicalize(topic string) string {
	s := html.UnescapeString(topic)
	s = urlRe.ReplaceAllString(s, " ")
	s = rankPrefixRe.ReplaceAllString(s, "")
	s = decorationRe.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// KeyFor hashes normalized topic text into a stable trend key. The hash
// depends on the text alone, so the same topic maps to the same key in every
// cycle and across restarts.
func KeyFor(norm string) models.TrendKey {
	sum := sha1.Sum([]byte(norm))
	return models.TrendKey{ID: hex.EncodeToString(sum[:]), Norm: norm}
}

// Dedupe maps a batch of raw signals to at most one signal per trend key.
// When several signals collapse onto the same key, the one with the highest
// score wins; on a score tie the most recently observed wins. Signals that
// normalize to nothing are dropped and counted.
func Dedupe(signals []models.TrendSignal) (map[models.TrendKey]models.TrendSignal, int) {
	best := make(map[models.TrendKey]models.TrendSignal, len(signals))
	dropped := 0

	for _, sig := range signals {
		norm := Canonicalize(sig.Topic)
		if norm == "" {
			dropped++
			continue
		}
		key := KeyFor(norm)

		cur, ok := best[key]
		if !ok || sig.Score > cur.Score ||
			(sig.Score == cur.Score && sig.ObservedAt.After(cur.ObservedAt)) {
			best[key] = sig
		}
	}

	return best, dropped
}
