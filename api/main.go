package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sudoghut/trend-story-api/internal/archive"
	"github.com/sudoghut/trend-story-api/internal/config"
	"github.com/sudoghut/trend-story-api/internal/logger"
	"github.com/sudoghut/trend-story-api/internal/metrics"
	"github.com/sudoghut/trend-story-api/internal/models"
	"github.com/sudoghut/trend-story-api/internal/query"
	"github.com/sudoghut/trend-story-api/internal/scheduler"
	"github.com/sudoghut/trend-story-api/internal/source"
	"github.com/sudoghut/trend-story-api/internal/store"
	"github.com/sudoghut/trend-story-api/internal/synthesize"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	_ = godotenv.Load()

	log := logger.New("trend-story-api")
	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	fetcher, closers, err := buildSources(cfg, log, m)
	if err != nil {
		log.Error("init trend sources", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Warn("close source", slog.Any("err", err))
			}
		}
	}()

	synth, err := buildSynthesizer(cfg)
	if err != nil {
		log.Error("init synthesizer", slog.Any("err", err))
		os.Exit(1)
	}

	var arch *archive.Client
	if cfg.Archive.Enabled {
		arch, err = archive.New(cfg.Archive.Addr, cfg.Archive.Index, log)
		if err != nil {
			log.Error("init archive", slog.Any("err", err))
			os.Exit(1)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := arch.Ping(pingCtx); err != nil {
			// Archive is best-effort; the serving path works without it.
			log.Warn("archive unreachable at startup", slog.Any("err", err))
		}
		cancel()
	}

	st := store.New(cfg.Scheduler.TTL, cfg.Scheduler.Grace)

	var archiver scheduler.Archiver
	if arch != nil {
		archiver = arch
	}
	sched := scheduler.New(log, cfg.Scheduler, fetcher, synth, st, archiver, m)
	go sched.Run(ctx)

	srv := &server{
		log:     log,
		cfg:     cfg,
		queries: query.New(st, cfg.API.DefaultPage, cfg.API.MaxPage),
		store:   st,
		sched:   sched,
		archive: arch,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Get("/stories", srv.handleList)
	r.Get("/stories/search", srv.handleSearch)
	r.Get("/stories/{id}", srv.handleGet)
	r.Get("/latest", srv.handleLatest)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.API.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.API.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

func buildSources(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (source.Fetcher, []io.Closer, error) {
	var fetchers []source.Fetcher
	var closers []io.Closer

	for _, kind := range cfg.Sources.Kinds {
		switch kind {
		case config.SourceTrending:
			f, err := source.NewTrending(cfg.Sources.TrendAPIURL, cfg.Sources.TrendAPIKey, cfg.Sources.FetchTimeout)
			if err != nil {
				return nil, closers, err
			}
			fetchers = append(fetchers, f)
		case config.SourceRSS:
			f, err := source.NewRSS(cfg.Sources.FeedURLs, cfg.Sources.FetchTimeout)
			if err != nil {
				return nil, closers, err
			}
			fetchers = append(fetchers, f)
		case config.SourceKafka:
			f, err := source.NewKafka(log, cfg.Sources.KafkaBrokers, cfg.Sources.KafkaTopic, cfg.Sources.KafkaConsumer, cfg.Sources.FetchTimeout, m.Malformed)
			if err != nil {
				return nil, closers, err
			}
			fetchers = append(fetchers, f)
			closers = append(closers, f)
		}
	}

	multi, err := source.NewMulti(log, fetchers...)
	if err != nil {
		return nil, closers, err
	}
	return multi, closers, nil
}

func buildSynthesizer(cfg *config.Config) (synthesize.Synthesizer, error) {
	if cfg.Synthesizer.Kind == config.SynthOpenAI {
		return synthesize.NewOpenAI(cfg.Synthesizer.OpenAIKey, cfg.Synthesizer.OpenAIModel)
	}
	return synthesize.NewTemplate(), nil
}

type server struct {
	log     *slog.Logger
	cfg     *config.Config
	queries *query.Service
	store   *store.Store
	sched   *scheduler.Scheduler
	archive *archive.Client
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status         string             `json:"status"`
	StoreSize      int                `json:"store_size"`
	LastSuccessAge float64            `json:"last_success_age_seconds"`
	Archive        string             `json:"archive,omitempty"`
	Scheduler      scheduler.Snapshot `json:"scheduler"`
}

type listResponse struct {
	Count   int                    `json:"count"`
	Stories []models.StoryArtifact `json:"stories"`
}

// latestResponse keeps latest_date as an explicit null when the store is
// empty rather than omitting the key.
type latestResponse struct {
	LatestDate *string                `json:"latest_date"`
	Records    []models.StoryArtifact `json:"records"`
}

// handleHealth reports the age of the last successful cycle so operators can
// detect silent staleness even while the process keeps answering.
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.sched.Snapshot()

	resp := healthResponse{
		Status:    "ok",
		StoreSize: s.store.Len(),
		Scheduler: snap,
	}
	if snap.LastSuccess.IsZero() {
		resp.LastSuccessAge = -1
		resp.Status = "degraded"
	} else {
		age := time.Since(snap.LastSuccess)
		resp.LastSuccessAge = age.Seconds()
		if age > s.cfg.Scheduler.TTL {
			resp.Status = "degraded"
		}
	}

	if s.archive != nil {
		// Archive trouble is reported but never fails readiness; serving
		// does not depend on it.
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.archive.Health(ctx); err != nil {
			resp.Archive = "unreachable"
		} else {
			resp.Archive = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	window := parseWindow(r.URL.Query().Get("window"))
	limit := clampInt(r.URL.Query().Get("limit"), 0, s.cfg.API.MaxPage)

	stories := s.queries.List(window, limit)
	writeJSON(w, http.StatusOK, listResponse{Count: len(stories), Stories: stories})
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	art, err := s.queries.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "story not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, art)
}

func (s *server) handleLatest(w http.ResponseWriter, r *http.Request) {
	day, records := s.queries.Latest()
	if records == nil {
		records = []models.StoryArtifact{}
	}
	resp := latestResponse{Records: records}
	if day != "" {
		resp.LatestDate = &day
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "archive disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	params := archive.SearchParams{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		From:  clampInt(r.URL.Query().Get("from"), 0, 10_000),
		Size:  clampInt(r.URL.Query().Get("size"), s.cfg.API.DefaultPage, s.cfg.API.MaxPage),
	}
	if start := parseTime(r.URL.Query().Get("start")); start != nil {
		params.Start = start
	}
	if end := parseTime(r.URL.Query().Get("end")); end != nil {
		params.End = end
	}

	result, err := s.archive.SearchStories(ctx, params)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseWindow(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	return nil
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
