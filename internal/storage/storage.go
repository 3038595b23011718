package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/config"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("storage: key not found")

// KV is the durable session store. Each key is overwritten atomically;
// no ordering or cross-key transactional guarantees are provided.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open creates the KV backend selected by cfg.StorageBackend.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (KV, error) {
	switch cfg.StorageBackend {
	case "redis":
		return OpenRedis(ctx, cfg.RedisURL, log)
	case "postgres":
		return OpenPostgres(ctx, cfg.DatabaseURL, cfg.MaxDBConns, log)
	case "memory":
		log.Warn().Msg("Using in-memory session store — state is lost on restart")
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
