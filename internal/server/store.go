package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sakif/recipe-api/internal/config"
	"github.com/sakif/recipe-api/internal/repository"
	"github.com/sakif/recipe-api/internal/repository/postgres"
	sqliteRepo "github.com/sakif/recipe-api/internal/repository/sqlite"
)

// Store is an opened, migrated credential store.
type Store struct {
	Users repository.UserRepository
	close func() error
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.close()
}

// OpenStore opens the store selected by cfg.Driver and applies migrations.
func OpenStore(ctx context.Context, cfg config.Database) (*Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &Store{Users: postgres.NewUserStore(db), close: db.Close}, nil

	case config.DriverSQLite:
		if cfg.Path != sqliteRepo.MemoryPath {
			// Like `mkdir -p`: the data directory may not exist on first run.
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Store{Users: db, close: db.Close}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
