package source

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"github.com/sudoghut/trend-story-api/internal/models"
)

const kafkaSourceName = "kafka"

type kafkaSignal struct {
	Topic      string  `json:"topic"`
	Score      float64 `json:"score"`
	ObservedAt string  `json:"observed_at"`
	Source     string  `json:"source"`
}

// KafkaFetcher drains trend signals published to a Kafka topic. Delivery is
// at-least-once, so a short-lived seen cache drops redelivered messages.
type KafkaFetcher struct {
	log       *slog.Logger
	reader    *kafka.Reader
	poll      time.Duration
	seen      *seenCache
	malformed prometheus.Counter
}

// NewKafka builds the Kafka provider. poll bounds how long a single fetch
// waits for more messages; malformed counts undecodable payloads and may be
// nil.
func NewKafka(log *slog.Logger, brokers []string, topic, group string, poll time.Duration, malformed prometheus.Counter) (*KafkaFetcher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	return &KafkaFetcher{
		log:       log,
		reader:    reader,
		poll:      poll,
		seen:      newSeenCache(10_000, time.Hour),
		malformed: malformed,
	}, nil
}

func (f *KafkaFetcher) Name() string { return kafkaSourceName }

// Close releases the underlying reader.
func (f *KafkaFetcher) Close() error { return f.reader.Close() }

// Fetch reads whatever is currently queued on the topic, up to the poll
// window. Running dry inside the window is an empty fetch, not an error.
func (f *KafkaFetcher) Fetch(ctx context.Context) ([]models.TrendSignal, error) {
	pollCtx, cancel := context.WithTimeout(ctx, f.poll)
	defer cancel()

	var signals []models.TrendSignal
	for {
		msg, err := f.reader.FetchMessage(pollCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return signals, nil
			}
			if len(signals) > 0 {
				return signals, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		signals = f.handleMessage(msg, signals)
		if err := f.reader.CommitMessages(ctx, msg); err != nil {
			return signals, fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
		}
	}
}

// handleMessage appends the decoded signal unless the payload is malformed
// or a redelivery. Malformed payloads are logged and counted before their
// offset is committed; swallowing them quietly would hide a producer bug.
func (f *KafkaFetcher) handleMessage(msg kafka.Message, signals []models.TrendSignal) []models.TrendSignal {
	sig, err := f.decode(msg.Value)
	if err != nil {
		f.log.Warn("skipping malformed trend message",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Any("err", err))
		if f.malformed != nil {
			f.malformed.Inc()
		}
		return signals
	}

	sum := sha1.Sum(msg.Value)
	id := hex.EncodeToString(sum[:])
	if f.seen.isSeen(id) {
		return signals
	}
	f.seen.markSeen(id)
	return append(signals, sig)
}

func (f *KafkaFetcher) decode(value []byte) (models.TrendSignal, error) {
	var payload kafkaSignal
	if err := json.Unmarshal(value, &payload); err != nil {
		return models.TrendSignal{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if payload.Topic == "" {
		return models.TrendSignal{}, fmt.Errorf("%w: missing topic", ErrMalformed)
	}

	observed := time.Now().UTC()
	if ts, err := time.Parse(time.RFC3339, payload.ObservedAt); err == nil {
		observed = ts.UTC()
	}
	src := payload.Source
	if src == "" {
		src = kafkaSourceName
	}
	return models.TrendSignal{
		Source:     src,
		Topic:      payload.Topic,
		Score:      payload.Score,
		ObservedAt: observed,
	}, nil
}

type seenEntry struct {
	id string
	ts time.Time
}

// seenCache keeps a fixed-size set of recently consumed message hashes.
type seenCache struct {
	mu       sync.Mutex
	items    map[string]time.Time
	order    []seenEntry
	capacity int
	ttl      time.Duration
}

func newSeenCache(capacity int, ttl time.Duration) *seenCache {
	return &seenCache{
		items:    make(map[string]time.Time, capacity),
		order:    make([]seenEntry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

func (c *seenCache) isSeen(id string) bool {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.items[id]
	return ok && now.Sub(ts) <= c.ttl
}

func (c *seenCache) markSeen(id string) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[id] = now
	c.order = append(c.order, seenEntry{id: id, ts: now})

	cutoff := now.Add(-c.ttl)
	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]
		if ts, ok := c.items[oldest.id]; ok && ts.Equal(oldest.ts) {
			delete(c.items, oldest.id)
		}
	}
}
