package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/sessiondb/internal/config"
	"github.com/aretw0/sessiondb/internal/dto"
	"github.com/aretw0/sessiondb/pkg/sessionstore"
)

// loadTimeout bounds how long commands wait for the collection to load.
const loadTimeout = 30 * time.Second

// OpenStore builds a store from the store section and waits for it to load.
// Callers own the returned store and must Close it.
func OpenStore(ctx context.Context, cfg dto.StoreConfig, logger *slog.Logger) (*sessionstore.Store, error) {
	opts, err := config.StoreOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := sessionstore.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	if err := store.Ready(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Debug("Store ready", "backend", Backend(cfg))
	return store, nil
}

// Backend names the collection selected by cfg.
func Backend(cfg dto.StoreConfig) string {
	switch {
	case cfg.InMemoryOnly:
		return "memory"
	case cfg.RedisURL != "":
		return "redis"
	case cfg.Filename != "":
		return "sqlite:" + cfg.Filename
	default:
		return "sqlite:" + sessionstore.DefaultFilename
	}
}
