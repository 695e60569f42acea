package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/EricCohen9/melingo/internal/bridge"
	"github.com/EricCohen9/melingo/internal/config"
	"github.com/EricCohen9/melingo/internal/session"
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

	if !cfg.Agent.DebugEnabled() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Msg("Starting Melingo agent...")

	// Session storage: Redis when configured, in-process otherwise.
	var store session.Store
	if cfg.Agent.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Agent.Redis.Addr,
			Password: cfg.Agent.Redis.Password,
			DB:       cfg.Agent.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		store = session.NewRedisStore(rdb)
		log.Info().Str("addr", cfg.Agent.Redis.Addr).Msg("Session store backed by Redis")
	} else {
		store = session.NewMemoryStore()
		log.Warn().Msg("No Redis configured, sessions will not survive agent restarts")
	}

	srv := bridge.NewServer(cfg.Agent, store)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Agent.HTTPPort),
		Handler: srv.Router(),
	}

	go func() {
		log.Info().Int("port", cfg.Agent.HTTPPort).Msg("Starting bridge server")
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
