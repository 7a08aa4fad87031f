package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/sudoghut/trend-story-api/internal/models"
)

const rssSourceName = "rss"

// RSSFetcher reads trending topics from Google-Trends-style RSS feeds. Each
// item title is a topic; the ht:approx_traffic extension, when present,
// supplies the score, otherwise the feed position does.
type RSSFetcher struct {
	feeds   []string
	timeout time.Duration
	parser  *gofeed.Parser
}

// NewRSS builds the feed provider. At least one feed URL is required.
func NewRSS(feeds []string, timeout time.Duration) (*RSSFetcher, error) {
	if len(feeds) == 0 {
		return nil, errors.New("at least one feed URL is required")
	}
	return &RSSFetcher{feeds: feeds, timeout: timeout, parser: gofeed.NewParser()}, nil
}

func (f *RSSFetcher) Name() string { return rssSourceName }

func (f *RSSFetcher) Fetch(ctx context.Context) ([]models.TrendSignal, error) {
	var signals []models.TrendSignal
	var errs []error

	for _, feedURL := range f.feeds {
		batch, err := f.fetchFeed(ctx, feedURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", feedURL, err))
			continue
		}
		signals = append(signals, batch...)
	}

	if len(errs) == len(f.feeds) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, errors.Join(errs...))
	}
	return signals, nil
}

func (f *RSSFetcher) fetchFeed(ctx context.Context, feedURL string) ([]models.TrendSignal, error) {
	subCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(feedURL, subCtx)
	if err != nil {
		return nil, err
	}

	signals := make([]models.TrendSignal, 0, len(feed.Items))
	for i, item := range feed.Items {
		topic := strings.TrimSpace(item.Title)
		if topic == "" {
			continue
		}

		score := approxTraffic(item)
		if score == 0 {
			// Position rank: earlier items trend harder.
			score = float64(len(feed.Items) - i)
		}

		observed := time.Now().UTC()
		if item.PublishedParsed != nil {
			observed = item.PublishedParsed.UTC()
		}

		signals = append(signals, models.TrendSignal{
			Source:     rssSourceName,
			Topic:      topic,
			Score:      score,
			ObservedAt: observed,
		})
	}
	return signals, nil
}

// approxTraffic parses the ht:approx_traffic extension ("200,000+") into a
// number; 0 when absent or unparsable.
func approxTraffic(item *gofeed.Item) float64 {
	ht, ok := item.Extensions["ht"]
	if !ok {
		return 0
	}
	exts, ok := ht["approx_traffic"]
	if !ok || len(exts) == 0 {
		return 0
	}
	raw := strings.NewReplacer(",", "", "+", "").Replace(strings.TrimSpace(exts[0].Value))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}
