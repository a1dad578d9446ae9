// Package main is the entry point for the recipe API server.
//
// main only reads configuration, builds the logger and the store, and hands
// them to internal/server. Everything else lives in internal packages.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/recipe-api/internal/config"
	"github.com/sakif/recipe-api/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// A missing or short JWT_SECRET stops the process here: tokens signed
	// with a guessable key would be worse than no server at all.
	cfg, err := config.NewConfig()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// === 3. OPEN THE STORE ===
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := server.OpenStore(ctx, cfg.Database)
	cancel()
	if err != nil {
		logger.Error("failed to open database",
			slog.String("driver", cfg.Database.Driver),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, store.Users, logger)
	if err != nil {
		store.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	err = srv.Start()
	if cerr := store.Close(); cerr != nil {
		logger.Warn("closing database", slog.String("error", cerr.Error()))
	}
	if err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
