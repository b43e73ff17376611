package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maumercado/jobrunner-go/internal/config"
	"github.com/maumercado/jobrunner-go/internal/events"
	"github.com/maumercado/jobrunner-go/internal/logger"
	"github.com/maumercado/jobrunner-go/internal/queue"
	"github.com/maumercado/jobrunner-go/internal/store"
	"github.com/maumercado/jobrunner-go/internal/worker"
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
	log.Info().Msg("Starting worker...")

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
	tasks := store.NewTaskRepository(db)

	// Create the dispatch stream
	stream, err := queue.NewRedisStreams(&cfg.Redis, &cfg.Queue)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis stream")
	}
	defer stream.Close()

	// Create event publisher on the shared connection
	publisher := events.NewRedisPubSub(stream.Client())

	consumer := worker.ConsumerName(&cfg.Worker)
	processor := worker.NewProcessor(tasks, publisher, consumer, nil)
	runner := worker.NewRunner(stream, processor, &cfg.Worker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutting down worker...")
		cancel()
		if err := <-done; err != nil {
			log.Error().Err(err).Msg("Worker shutdown error")
		}
	case err := <-done:
		if err != nil {
			log.Fatal().Err(err).Msg("Worker exited with error")
		}
	}

	log.Info().Msg("Worker stopped")
}
