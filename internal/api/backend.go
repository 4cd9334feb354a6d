package api

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/veritas/internal/config"
	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/Harshitk-cp/veritas/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Backend is one storage driver's set of repositories.
type Backend struct {
	Driver       string
	Claims       domain.ClaimStore
	Dependencies domain.DependencyStore
	Checkpoints  domain.CheckpointStore
	Facts        domain.FactStore

	ping  func(ctx context.Context) error
	close func()
}

// Ping reports whether the backing database answers.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// OpenBackend connects the configured driver.
func OpenBackend(ctx context.Context, driver string) (*Backend, error) {
	switch driver {
	case config.StoreDriverPostgres:
		return openPostgres(ctx, config.DatabaseURL())
	case config.StoreDriverSQLite:
		return OpenSQLiteBackend(config.SQLitePath())
	case config.StoreDriverMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s (valid options: postgres, sqlite, memory)", driver)
	}
}

func openPostgres(ctx context.Context, url string) (*Backend, error) {
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Backend{
		Driver:       config.StoreDriverPostgres,
		Claims:       store.NewClaimStore(pool),
		Dependencies: store.NewDependencyStore(pool),
		Checkpoints:  store.NewCheckpointStore(pool),
		Facts:        store.NewFactStore(pool),
		ping:         pool.Ping,
		close:        pool.Close,
	}, nil
}

// OpenSQLiteBackend opens the single-file backend at path.
func OpenSQLiteBackend(path string) (*Backend, error) {
	db, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return &Backend{
		Driver:       config.StoreDriverSQLite,
		Claims:       db.Claims(),
		Dependencies: db.Dependencies(),
		Checkpoints:  db.Checkpoints(),
		Facts:        db.Facts(),
		ping:         db.Ping,
		close:        func() { _ = db.Close() },
	}, nil
}

// NewMemoryBackend keeps everything in process. Nothing survives a restart.
func NewMemoryBackend() *Backend {
	return &Backend{
		Driver:       config.StoreDriverMemory,
		Claims:       store.NewMemClaimStore(),
		Dependencies: store.NewMemDependencyStore(),
		Checkpoints:  store.NewMemCheckpointStore(),
		Facts:        store.NewMemFactStore(),
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.ClaimStore      = (*store.ClaimStore)(nil)
	_ domain.DependencyStore = (*store.DependencyStore)(nil)
	_ domain.CheckpointStore = (*store.CheckpointStore)(nil)
	_ domain.FactStore       = (*store.FactStore)(nil)
	_ domain.ClaimStore      = (*store.SQLiteClaimStore)(nil)
	_ domain.DependencyStore = (*store.SQLiteDependencyStore)(nil)
	_ domain.CheckpointStore = (*store.SQLiteCheckpointStore)(nil)
	_ domain.FactStore       = (*store.SQLiteFactStore)(nil)
	_ domain.ClaimStore      = (*store.MemClaimStore)(nil)
	_ domain.DependencyStore = (*store.MemDependencyStore)(nil)
	_ domain.CheckpointStore = (*store.MemCheckpointStore)(nil)
	_ domain.FactStore       = (*store.MemFactStore)(nil)
)
