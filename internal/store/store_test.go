package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sudoghut/trend-story-api/internal/models"
	"github.com/sudoghut/trend-story-api/internal/store"
)

func artifact(id string, score float64, generated time.Time) models.StoryArtifact {
	return models.StoryArtifact{
		ID:          id,
		Topic:       id,
		Title:       "story " + id,
		Body:        "body",
		Score:       score,
		GeneratedAt: generated,
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	st := store.New(time.Minute, time.Minute)
	now := time.Now().UTC()

	art := artifact("k1", 9, now)
	require.NoError(t, st.Upsert(art))
	require.NoError(t, st.Upsert(art))

	require.Equal(t, 1, st.Len())
	got, err := st.Get("k1", now)
	require.NoError(t, err)
	require.Equal(t, "story k1", got.Title)
	require.Equal(t, float64(9), got.Score)
}

func TestUpsertRejectsEmptyKey(t *testing.T) {
	st := store.New(time.Minute, time.Minute)
	err := st.Upsert(models.StoryArtifact{})
	require.ErrorIs(t, err, store.ErrInvariant)
}

func TestUpsertReplacesPerKey(t *testing.T) {
	st := store.New(time.Minute, time.Minute)
	now := time.Now().UTC()

	require.NoError(t, st.Upsert(artifact("k1", 5, now)))
	require.NoError(t, st.Upsert(artifact("k1", 8, now.Add(time.Second))))

	require.Equal(t, 1, st.Len())
	got, err := st.Get("k1", now.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, float64(8), got.Score)
}

func TestGetMissReturnsNotFound(t *testing.T) {
	st := store.New(time.Minute, time.Minute)
	_, err := st.Get("nope", time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)
}

// TTL 60s, grace 60s: at t+90s the artifact is still served, flagged stale;
// at t+130s it is gone, with or without an eviction pass.
func TestFreshnessLifecycle(t *testing.T) {
	st := store.New(60*time.Second, 60*time.Second)
	t0 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.Upsert(artifact("k1", 3, t0)))

	fresh, err := st.Get("k1", t0.Add(30*time.Second))
	require.NoError(t, err)
	require.False(t, fresh.Stale)

	within, err := st.Get("k1", t0.Add(90*time.Second))
	require.NoError(t, err)
	require.True(t, within.Stale)

	_, err = st.Get("k1", t0.Add(130*time.Second))
	require.ErrorIs(t, err, store.ErrNotFound)

	evicted := st.EvictExpired(t0.Add(130 * time.Second))
	require.Equal(t, 1, evicted)
	require.Zero(t, st.Len())
}

func TestEvictKeepsWithinGrace(t *testing.T) {
	st := store.New(60*time.Second, 60*time.Second)
	t0 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.Upsert(artifact("k1", 3, t0)))
	require.Zero(t, st.EvictExpired(t0.Add(90*time.Second)))
	require.Equal(t, 1, st.Len())
}

func TestListOrderingAndWindow(t *testing.T) {
	st := store.New(time.Hour, time.Minute)
	t0 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.Upsert(artifact("old", 10, t0.Add(-30*time.Minute))))
	require.NoError(t, st.Upsert(artifact("low", 1, t0)))
	require.NoError(t, st.Upsert(artifact("high", 7, t0)))

	all := st.List(0, 0, t0)
	require.Len(t, all, 3)
	// Freshest first; same generation time ordered by score.
	require.Equal(t, "high", all[0].ID)
	require.Equal(t, "low", all[1].ID)
	require.Equal(t, "old", all[2].ID)

	recent := st.List(10*time.Minute, 0, t0)
	require.Len(t, recent, 2)

	capped := st.List(0, 1, t0)
	require.Len(t, capped, 1)
	require.Equal(t, "high", capped[0].ID)
}

func TestListNeverReturnsBeyondGrace(t *testing.T) {
	st := store.New(60*time.Second, 60*time.Second)
	t0 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.Upsert(artifact("k1", 3, t0)))

	withinGrace := st.List(0, 0, t0.Add(90*time.Second))
	require.Len(t, withinGrace, 1)
	require.True(t, withinGrace[0].Stale)

	beyond := st.List(0, 0, t0.Add(121*time.Second))
	require.Empty(t, beyond)
}
