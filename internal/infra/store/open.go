package store

import (
	"context"
	"fmt"

	"github.com/fardannozami/stepquest/internal/config"
	"github.com/fardannozami/stepquest/internal/domain"
	"github.com/fardannozami/stepquest/internal/infra/memory"
	"github.com/fardannozami/stepquest/internal/infra/postgres"
	"github.com/fardannozami/stepquest/internal/infra/sqlite"
)

type migrator interface {
	Migrate(ctx context.Context) error
}

// Open connects the store selected by cfg.StoreDriver and applies the schema.
func Open(ctx context.Context, cfg config.Config) (domain.Store, error) {
	var s interface {
		domain.Store
		migrator
	}

	switch cfg.StoreDriver {
	case "", "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s = db
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("STORE_DRIVER=postgres needs POSTGRES_DSN")
		}
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s = db
	case "memory":
		s = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
