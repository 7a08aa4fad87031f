package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrendingFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"trending_searches": [
				{"query": "AI trends", "search_volume": 200000, "start_timestamp": 1756500000},
				{"query": "world cup", "search_volume": 50000}
			]
		}`))
	}))
	defer srv.Close()

	client, err := NewTrending(srv.URL, "test-key", 5*time.Second)
	require.NoError(t, err)

	signals, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 2)
	require.Equal(t, "AI trends", signals[0].Topic)
	require.Equal(t, float64(200000), signals[0].Score)
	require.Equal(t, time.Unix(1756500000, 0).UTC(), signals[0].ObservedAt)
	require.Equal(t, "trending", signals[0].Source)
}

func TestTrendingEmptyResponseIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"trending_searches": []}`))
	}))
	defer srv.Close()

	client, err := NewTrending(srv.URL, "", 5*time.Second)
	require.NoError(t, err)

	signals, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Empty(t, signals)
}

func TestTrendingServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewTrending(srv.URL, "", 5*time.Second)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestTrendingGarbageIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	client, err := NewTrending(srv.URL, "", 5*time.Second)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	require.ErrorIs(t, err, ErrMalformed)
}

func TestTrendingTimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client, err := NewTrending(srv.URL, "", 20*time.Millisecond)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}
