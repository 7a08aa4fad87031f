package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Source kinds accepted in the SOURCES list.
const (
	SourceTrending = "trending"
	SourceRSS      = "rss"
	SourceKafka    = "kafka"
)

// Synthesizer kinds.
const (
	SynthTemplate = "template"
	SynthOpenAI   = "openai"
)

// API describes HTTP-layer configuration.
type API struct {
	BindAddr    string
	DefaultPage int
	MaxPage     int
}

// Scheduler drives the refresh cycle timing.
type Scheduler struct {
	Interval   time.Duration
	TTL        time.Duration
	Grace      time.Duration
	Ceiling    time.Duration
	BackoffCap time.Duration
}

// Sources selects and parameterizes the trend providers.
type Sources struct {
	Kinds        []string
	TrendAPIURL  string
	TrendAPIKey  string
	FeedURLs     []string
	FetchTimeout time.Duration

	KafkaBrokers  []string
	KafkaTopic    string
	KafkaConsumer string
}

// Synthesizer selects the generation strategy.
type Synthesizer struct {
	Kind        string
	OpenAIKey   string
	OpenAIModel string
}

// Archive configures the optional Elasticsearch story archive.
type Archive struct {
	Enabled bool
	Addr    string
	Index   string
}

// Config is the whole service configuration, read from environment
// variables.
type Config struct {
	API         API
	Scheduler   Scheduler
	Sources     Sources
	Synthesizer Synthesizer
	Archive     Archive
}

// Load builds the configuration from environment variables and validates it.
func Load() (*Config, error) {
	c := &Config{
		API: API{
			BindAddr:    getEnv("API_BIND_ADDR", "0.0.0.0:3003"),
			DefaultPage: getInt("API_PAGE_SIZE", 20),
			MaxPage:     getInt("API_MAX_PAGE_SIZE", 100),
		},
		Scheduler: Scheduler{
			Interval:   getDuration("REFRESH_INTERVAL", "5m"),
			TTL:        getDuration("STORY_TTL", "30m"),
			Grace:      getDuration("EVICTION_GRACE", ""),
			Ceiling:    getDuration("CYCLE_CEILING", "2m"),
			BackoffCap: getDuration("BACKOFF_CAP", "30m"),
		},
		Sources: Sources{
			Kinds:         splitAndTrim(getEnv("SOURCES", SourceTrending)),
			TrendAPIURL:   getEnv("TREND_API_URL", ""),
			TrendAPIKey:   getEnv("TREND_API_KEY", ""),
			FeedURLs:      splitAndTrim(getEnv("TREND_FEED_URLS", "")),
			FetchTimeout:  getDuration("SOURCE_TIMEOUT", "30s"),
			KafkaBrokers:  splitAndTrim(getEnv("KAFKA_BROKERS", "")),
			KafkaTopic:    getEnv("KAFKA_TOPIC", "trend_signals"),
			KafkaConsumer: getEnv("KAFKA_CONSUMER_GROUP", "trend-story-api"),
		},
		Synthesizer: Synthesizer{
			Kind:        getEnv("SYNTHESIZER", SynthTemplate),
			OpenAIKey:   getEnv("OPENAI_API_KEY", ""),
			OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Archive: Archive{
			Enabled: getBool("ARCHIVE_ENABLED", false),
			Addr:    getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			Index:   getEnv("ELASTICSEARCH_INDEX", "stories"),
		},
	}

	if c.API.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.API.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.API.DefaultPage > c.API.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}

	if c.Scheduler.Interval <= 0 {
		return nil, fmt.Errorf("REFRESH_INTERVAL must be positive")
	}
	if c.Scheduler.TTL <= c.Scheduler.Interval {
		return nil, fmt.Errorf("STORY_TTL must exceed REFRESH_INTERVAL, otherwise one missed fetch evicts everything")
	}
	if c.Scheduler.Grace <= 0 {
		// Default: one full refresh interval beyond the TTL.
		c.Scheduler.Grace = c.Scheduler.Interval
	}
	if c.Scheduler.Ceiling <= 0 {
		return nil, fmt.Errorf("CYCLE_CEILING must be positive")
	}
	if c.Scheduler.BackoffCap < c.Scheduler.Interval {
		return nil, fmt.Errorf("BACKOFF_CAP cannot be below REFRESH_INTERVAL")
	}

	if len(c.Sources.Kinds) == 0 {
		return nil, fmt.Errorf("SOURCES must name at least one provider")
	}
	for _, kind := range c.Sources.Kinds {
		switch kind {
		case SourceTrending:
			if c.Sources.TrendAPIURL == "" {
				return nil, fmt.Errorf("TREND_API_URL is required for the trending source")
			}
		case SourceRSS:
			if len(c.Sources.FeedURLs) == 0 {
				return nil, fmt.Errorf("TREND_FEED_URLS is required for the rss source")
			}
		case SourceKafka:
			if len(c.Sources.KafkaBrokers) == 0 {
				return nil, fmt.Errorf("KAFKA_BROKERS is required for the kafka source")
			}
		default:
			return nil, fmt.Errorf("unknown source kind %q", kind)
		}
	}

	switch c.Synthesizer.Kind {
	case SynthTemplate:
	case SynthOpenAI:
		if c.Synthesizer.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai synthesizer")
		}
	default:
		return nil, fmt.Errorf("unknown synthesizer %q", c.Synthesizer.Kind)
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			return 0
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
