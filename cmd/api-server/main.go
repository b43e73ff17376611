package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maumercado/jobrunner-go/internal/api"
	"github.com/maumercado/jobrunner-go/internal/config"
	"github.com/maumercado/jobrunner-go/internal/events"
	"github.com/maumercado/jobrunner-go/internal/logger"
	"github.com/maumercado/jobrunner-go/internal/queue"
	"github.com/maumercado/jobrunner-go/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.LogLevel, os.Getenv("ENV") != "production")

	log := logger.Get()
	log.Info().Msg("Starting API server...")

	// Connect to the task store
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		if err := store.Close(db); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	users := store.NewUserRepository(db)
	tasks := store.NewTaskRepository(db)

	// Create the dispatch stream
	stream, err := queue.NewRedisStreams(&cfg.Redis, &cfg.Queue)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis stream")
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Redis stream")
		}
	}()

	// Create event publisher on the shared connection
	publisher := events.NewRedisPubSub(stream.Client())

	// Create server
	server := api.NewServer(cfg, users, tasks, stream, publisher)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start WebSocket hub
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server.Start(ctx)

	// Start HTTP server
	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	server.Stop()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Server stopped")
}
