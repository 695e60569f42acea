package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/EricCohen9/melingo/internal/ai"
	"github.com/EricCohen9/melingo/internal/analyzer"
	"github.com/EricCohen9/melingo/internal/config"
	"github.com/EricCohen9/melingo/internal/enricher"
	"github.com/EricCohen9/melingo/internal/handler"
	"github.com/EricCohen9/melingo/internal/producer"
	"github.com/EricCohen9/melingo/internal/storage"
	"github.com/EricCohen9/melingo/internal/validation"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/melingo.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load config")
	}

	log.Info().Msg("Starting Melingo engagement API...")

	// Redis holds the per-session aggregates.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.API.Redis.Addr,
		Password: cfg.API.Redis.Password,
		DB:       cfg.API.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Str("addr", cfg.API.Redis.Addr).Msg("Connected to Redis")

	eventEnricher := enricher.New(cfg.API.GeoIP.DatabasePath)
	defer eventEnricher.Close()

	aggregator := analyzer.NewAggregator(rdb, cfg.API.SessionTTL())

	decider := ai.NewDecider(cfg.API.OpenAI.APIKey, cfg.API.OpenAI.Model)
	if cfg.API.OpenAI.APIKey == "" {
		log.Warn().Msg("No OpenAI API key configured, decisions fall back to heuristics")
	}

	handlers := handler.New(eventEnricher, aggregator, aggregator, decider)

	// Optional storefront key validation.
	if cfg.API.Postgres.DSN != "" {
		validator, err := validation.NewValidator(context.Background(), cfg.API.Postgres.DSN, rdb, cfg.API.RateLimit.RequestsPerSecond)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create validator")
		}
		defer validator.Close()
		handlers.WithValidator(validator)
		log.Info().Msg("Storefront key validation enabled")
	}

	// Optional Kafka firehose.
	if len(cfg.API.Kafka.Brokers) > 0 && cfg.API.Kafka.Topic != "" {
		kafkaProducer := producer.NewKafkaProducer(cfg.API.Kafka)
		defer kafkaProducer.Close()
		handlers.WithSink(kafkaProducer)
		log.Info().Strs("brokers", cfg.API.Kafka.Brokers).Str("topic", cfg.API.Kafka.Topic).Msg("Kafka firehose enabled")
	}

	// Optional ClickHouse archive.
	if cfg.API.ClickHouse.Addr != "" {
		ch, err := storage.NewClickHouse(cfg.API.ClickHouse)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to ClickHouse")
		}
		defer ch.Close()

		archiver := storage.NewArchiver(ch, cfg.API.ClickHouse.BatchSize, cfg.API.ClickHouse.FlushInterval())
		defer archiver.Stop()
		handlers.WithArchiver(archiver)
		log.Info().Str("addr", cfg.API.ClickHouse.Addr).Msg("ClickHouse archive enabled")
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(handler.CORSMiddleware)

	r.Get("/health", handler.HealthCheck)
	r.Post("/track", handlers.HandleTrack)
	r.Post("/analyze", handlers.HandleAnalyze)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.HTTPPort),
		Handler: r,
	}

	go func() {
		log.Info().Int("port", cfg.API.HTTPPort).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to serve HTTP")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	httpServer.Shutdown(context.Background())
	log.Info().Msg("Shutdown complete")
}
