package main

import (
	"context"
	"log/slog"

	"github.com/evofitmeals/evoflow/pkg/cmd"
	"github.com/evofitmeals/evoflow/pkg/engine"
	"github.com/evofitmeals/evoflow/pkg/persistence/memory"
)

// newDryRunEngine builds an in-memory engine whose actions only log.
func newDryRunEngine(ctx context.Context, logger *slog.Logger, logLevel string) (*engine.Engine, error) {
	registry, err := cmd.NewRegistry(logger, cmd.RegistryConfig{DryRun: true, LogLevel: logLevel})
	if err != nil {
		return nil, err
	}

	return engine.New(ctx, engine.Dependencies{
		Registry:    registry,
		Persistence: memory.NewPersistence(),
		Logger:      logger,
	})
}
