package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ryanbastic/go-sheetspace/internal/auth"
	"github.com/ryanbastic/go-sheetspace/internal/backend"
	"github.com/ryanbastic/go-sheetspace/internal/config"
	"github.com/ryanbastic/go-sheetspace/internal/legacy"
	"github.com/ryanbastic/go-sheetspace/internal/sheet"
	"github.com/ryanbastic/go-sheetspace/internal/tools/sheetctl"
	"github.com/ryanbastic/go-sheetspace/internal/workspace"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := backend.Open(ctx, cfg, logger, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open document store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	deps := sheetctl.Deps{
		Repo: workspace.New(store.Store, logger,
			workspace.WithNormalizer(sheet.Normalizer{Hydrator: legacy.LZHydrator{}})),
		Resolver:      auth.NewResolver(cfg.JWTSecret),
		Logger:        logger,
		AutosaveDelay: cfg.AutosaveDelay,
	}

	if err := sheetctl.Run(ctx, deps, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "sheetctl: %v\n", err)
		store.Close()
		if errors.Is(err, sheetctl.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
