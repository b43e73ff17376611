package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/maumercado/jobrunner-go/internal/config"
	"github.com/maumercado/jobrunner-go/internal/logger"
	"github.com/maumercado/jobrunner-go/internal/store"
)

// Operator tool: grants the admin flag to an existing account, bootstrapping
// the first admin without touching SQL by hand.
func main() {
	username := flag.String("username", "", "username of the account to promote")
	flag.Parse()

	if *username == "" {
		fmt.Fprintln(os.Stderr, "usage: promote-admin -username <name>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, true)
	log := logger.Get()

	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := store.NewUserRepository(db)
	if err := users.PromoteByUsername(ctx, *username); err != nil {
		log.Fatal().Err(err).Str("username", *username).Msg("Failed to promote user")
	}

	fmt.Printf("User %q is now an admin\n", *username)
}
