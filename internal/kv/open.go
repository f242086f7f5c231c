package kv

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/aiox-platform/quill/internal/config"
)

// Backends carries the shared connections a driver may need. Either field
// may be nil when the corresponding service is not configured.
type Backends struct {
	Redis    redis.UniversalClient
	Postgres *pgxpool.Pool
}

// Open builds the instrumented store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, b Backends) (Store, error) {
	var (
		s   Store
		err error
	)

	switch cfg.Driver {
	case "memory":
		s = NewMemoryStore()
	case "file":
		s, err = NewFileStore(filepath.Join(cfg.Path, "quill.json"))
	case "sqlite":
		s, err = NewSQLiteStore(ctx, filepath.Join(cfg.Path, "quill.db"))
	case "redis":
		if b.Redis == nil {
			return nil, fmt.Errorf("store driver redis needs a redis client")
		}
		s = NewRedisStore(b.Redis)
	case "postgres":
		if b.Postgres == nil {
			return nil, fmt.Errorf("store driver postgres needs a postgres pool")
		}
		s = NewPostgresStore(b.Postgres)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Driver, err)
	}

	slog.Info("key-value store ready", "driver", cfg.Driver, "path", cfg.Path)
	return Instrument(s, cfg.Driver), nil
}
