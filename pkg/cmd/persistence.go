package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/evofitmeals/evoflow/pkg/persistence"
	"github.com/evofitmeals/evoflow/pkg/persistence/file"
	"github.com/evofitmeals/evoflow/pkg/persistence/memory"
	"github.com/evofitmeals/evoflow/pkg/persistence/postgresql"
)

// NewPersistence picks the store from the database URL scheme:
// memory://, postgres:// (or postgresql://) and file://. A bare path is a
// file store rooted there.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "memory":
		return memory.NewPersistence(), nil
	case "postgres":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	if databaseURL == "" {
		return "memory"
	}

	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "memory":
		return "memory"
	case "postgres", "postgresql":
		return "postgres"
	default:
		return "file"
	}
}
