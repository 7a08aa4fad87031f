package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/sudoghut/trend-story-api/internal/models"
)

type fakeFetcher struct {
	name    string
	signals []models.TrendSignal
	err     error
}

func (f *fakeFetcher) Name() string { return f.name }

func (f *fakeFetcher) Fetch(context.Context) ([]models.TrendSignal, error) {
	return f.signals, f.err
}

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMultiRequiresFetchers(t *testing.T) {
	_, err := NewMulti(discardLog())
	require.Error(t, err)
}

func TestMultiConcatenatesSignals(t *testing.T) {
	a := &fakeFetcher{name: "a", signals: []models.TrendSignal{{Topic: "one"}}}
	b := &fakeFetcher{name: "b", signals: []models.TrendSignal{{Topic: "two"}, {Topic: "three"}}}

	multi, err := NewMulti(discardLog(), a, b)
	require.NoError(t, err)

	signals, err := multi.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 3)
}

func TestMultiToleratesPartialFailure(t *testing.T) {
	ok := &fakeFetcher{name: "ok", signals: []models.TrendSignal{{Topic: "one"}}}
	down := &fakeFetcher{name: "down", err: fmt.Errorf("%w: refused", ErrUnavailable)}

	multi, err := NewMulti(discardLog(), ok, down)
	require.NoError(t, err)

	signals, err := multi.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 1)
}

func TestMultiAllDownIsUnavailable(t *testing.T) {
	a := &fakeFetcher{name: "a", err: fmt.Errorf("%w: refused", ErrUnavailable)}
	b := &fakeFetcher{name: "b", err: fmt.Errorf("%w: bad payload", ErrMalformed)}

	multi, err := NewMulti(discardLog(), a, b)
	require.NoError(t, err)

	_, err = multi.Fetch(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestSeenCacheExpiryAndCapacity(t *testing.T) {
	cache := newSeenCache(1, 20*time.Millisecond)

	require.False(t, cache.isSeen("first"))
	cache.markSeen("first")
	require.True(t, cache.isSeen("first"))

	cache.markSeen("second")
	require.False(t, cache.isSeen("first")) // capacity 1 evicts oldest
	require.True(t, cache.isSeen("second"))

	time.Sleep(25 * time.Millisecond)
	require.False(t, cache.isSeen("second"))
}

func TestKafkaMalformedMessageIsCountedNotSwallowed(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_malformed_total"})
	fetcher := &KafkaFetcher{
		log:       discardLog(),
		seen:      newSeenCache(10, time.Hour),
		malformed: counter,
	}

	signals := fetcher.handleMessage(kafka.Message{Value: []byte("not json"), Partition: 1, Offset: 42}, nil)
	require.Empty(t, signals)
	require.Equal(t, float64(1), testutil.ToFloat64(counter))

	signals = fetcher.handleMessage(kafka.Message{Value: []byte(`{"score": 3}`)}, signals)
	require.Empty(t, signals) // missing topic
	require.Equal(t, float64(2), testutil.ToFloat64(counter))

	signals = fetcher.handleMessage(kafka.Message{Value: []byte(`{"topic": "solar storm", "score": 8}`)}, signals)
	require.Len(t, signals, 1)
	require.Equal(t, "solar storm", signals[0].Topic)
	require.Equal(t, float64(2), testutil.ToFloat64(counter))
}

func TestKafkaRedeliveryIsDroppedSilently(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_redelivery_malformed_total"})
	fetcher := &KafkaFetcher{
		log:       discardLog(),
		seen:      newSeenCache(10, time.Hour),
		malformed: counter,
	}

	payload := []byte(`{"topic": "heat wave", "score": 5}`)
	signals := fetcher.handleMessage(kafka.Message{Value: payload}, nil)
	signals = fetcher.handleMessage(kafka.Message{Value: payload}, signals)

	require.Len(t, signals, 1)
	// A duplicate is expected under at-least-once delivery, not a defect.
	require.Zero(t, testutil.ToFloat64(counter))
}
