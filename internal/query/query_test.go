package query_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sudoghut/trend-story-api/internal/models"
	"github.com/sudoghut/trend-story-api/internal/query"
	"github.com/sudoghut/trend-story-api/internal/store"
)

func seeded(t *testing.T) (*store.Store, *query.Service) {
	t.Helper()
	st := store.New(time.Hour, time.Minute)
	now := time.Now().UTC()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, st.Upsert(models.StoryArtifact{
			ID:          id,
			Topic:       id,
			Title:       "story " + id,
			Score:       float64(i),
			GeneratedAt: now.Add(-time.Duration(i) * time.Minute),
		}))
	}
	return st, query.New(st, 2, 3)
}

func TestListClampsLimit(t *testing.T) {
	_, q := seeded(t)

	require.Len(t, q.List(0, 0), 2)  // default
	require.Len(t, q.List(0, 50), 3) // clamped to max
	require.Len(t, q.List(0, 1), 1)
}

func TestListAppliesWindow(t *testing.T) {
	_, q := seeded(t)
	// Only "a" (just generated) falls inside a 30s window.
	got := q.List(30*time.Second, 3)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].ID)
}

func TestGetTranslatesNotFound(t *testing.T) {
	_, q := seeded(t)

	art, err := q.Get("b")
	require.NoError(t, err)
	require.Equal(t, "story b", art.Title)

	_, err = q.Get("missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLatestGroupsByGenerationDay(t *testing.T) {
	st := store.New(100*24*time.Hour, time.Hour)
	q := query.New(st, 10, 10)

	day, records := q.Latest()
	require.Empty(t, day)
	require.Nil(t, records)

	now := time.Now().UTC()
	dayBefore := now.Add(-48 * time.Hour)
	require.NoError(t, st.Upsert(models.StoryArtifact{ID: "old", Topic: "old", GeneratedAt: dayBefore}))
	require.NoError(t, st.Upsert(models.StoryArtifact{ID: "new1", Topic: "new1", GeneratedAt: now}))
	require.NoError(t, st.Upsert(models.StoryArtifact{ID: "new2", Topic: "new2", GeneratedAt: now}))

	day, records = q.Latest()
	require.Equal(t, now.Format("2006-01-02"), day)
	require.Len(t, records, 2)
}
