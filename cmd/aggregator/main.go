package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/datespot/aggregator/internal/adapter/blogto"
	"github.com/datespot/aggregator/internal/adapter/duckdb"
	"github.com/datespot/aggregator/internal/adapter/gemini"
	githubadapter "github.com/datespot/aggregator/internal/adapter/github"
	"github.com/datespot/aggregator/internal/adapter/googlemaps"
	httpadapter "github.com/datespot/aggregator/internal/adapter/http"
	kafkaadapter "github.com/datespot/aggregator/internal/adapter/kafka"
	"github.com/datespot/aggregator/internal/adapter/visualcrossing"
	"github.com/datespot/aggregator/internal/cache"
	"github.com/datespot/aggregator/internal/categorize"
	"github.com/datespot/aggregator/internal/config"
	"github.com/datespot/aggregator/internal/observability"
	"github.com/datespot/aggregator/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := duckdb.Open(cfg.Cache.Path, logger)
	if err != nil {
		logger.Error("failed to open cache store", "path", cfg.Cache.Path, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	facade := cache.New(store, cfg.GeocodingTTL(), cfg.CategorizationTTL(), clock, logger, metrics)

	classifier, err := gemini.NewClassifier(ctx, cfg.Classifier.APIKey, cfg.Classifier.Model, logger)
	if err != nil {
		logger.Error("failed to create classifier", "error", err)
		os.Exit(1)
	}
	defer classifier.Close()

	categorizer := categorize.New(facade, classifier,
		cfg.Classifier.BatchThreshold, cfg.Classifier.Timeout, logger, metrics)

	feed := blogto.NewClient(cfg.Feed.BaseURL, cfg.Feed.Timeout, cfg.Feed.RequestDelay, logger)
	geocoder := googlemaps.NewClient(cfg.Geocoding.APIKey, cfg.Geocoding.BaseURL,
		cfg.Geocoding.Timeout, cfg.Geocoding.RequestDelay, logger)
	weather := visualcrossing.NewClient(cfg.Weather.APIKey, cfg.Weather.BaseURL,
		cfg.Weather.Timeout, logger)

	var publishers []pipeline.Publisher
	if cfg.GitHubEnabled() {
		publishers = append(publishers, githubadapter.NewPublisher(
			cfg.GitHub.Token, cfg.GitHub.Repo, cfg.GitHub.FilePath,
			cfg.GitHub.Timeout, clock, logger))
		logger.Info("github publishing enabled", "repo", cfg.GitHub.Repo, "path", cfg.GitHub.FilePath)
	}
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		kafkaWriter = kafkaadapter.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.SinkTopic, clock, logger)
		publishers = append(publishers, kafkaWriter)
		logger.Info("kafka schema sink enabled", "topic", cfg.Kafka.SinkTopic)
	}
	if len(publishers) == 0 {
		logger.Warn("no publishers configured, runs will fetch and enrich without delivering")
	}

	p := pipeline.New(pipeline.Params{
		Fetcher:            feed,
		Geocoder:           geocoder,
		Weather:            weather,
		Categorizer:        categorizer,
		Publishers:         publishers,
		Cache:              facade,
		FetchDays:          cfg.Feed.FetchDays,
		ExcludedCategories: cfg.Cache.ExcludedCategories,
		Clock:              clock,
		Logger:             logger,
		Metrics:            metrics,
	})

	srv := httpadapter.NewServer(cfg.Server.HTTPAddr, p, facade, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.RunLoop(ctx, cfg.Server.RunInterval); err != nil {
			logger.Error("workflow loop error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
