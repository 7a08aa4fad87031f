package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/sudoghut/trend-story-api/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const trendingSourceName = "trending"

// TrendingClient pulls trending searches from a SerpApi-style JSON endpoint.
type TrendingClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

type trendingResponse struct {
	TrendingSearches []struct {
		Query          string  `json:"query"`
		SearchVolume   float64 `json:"search_volume"`
		StartTimestamp int64   `json:"start_timestamp"`
	} `json:"trending_searches"`
}

// NewTrending builds the HTTP provider. The timeout applies per request.
func NewTrending(endpoint, apiKey string, timeout time.Duration) (*TrendingClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("trending endpoint is required")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("parse trending endpoint: %w", err)
	}
	return &TrendingClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (c *TrendingClient) Name() string { return trendingSourceName }

// Fetch requests the current trending searches. Transport errors and
// timeouts map to ErrUnavailable without partial results; an unparsable body
// maps to ErrMalformed. A parseable response with no entries is an empty
// fetch, not an error.
func (c *TrendingClient) Fetch(ctx context.Context) ([]models.TrendSignal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("api_key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var payload trendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrMalformed, err)
	}

	signals := make([]models.TrendSignal, 0, len(payload.TrendingSearches))
	for _, entry := range payload.TrendingSearches {
		observed := time.Now().UTC()
		if entry.StartTimestamp > 0 {
			observed = time.Unix(entry.StartTimestamp, 0).UTC()
		}
		signals = append(signals, models.TrendSignal{
			Source:     trendingSourceName,
			Topic:      entry.Query,
			Score:      entry.SearchVolume,
			ObservedAt: observed,
		})
	}
	return signals, nil
}
