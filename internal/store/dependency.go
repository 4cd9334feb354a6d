package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DependencyStore struct {
	db *pgxpool.Pool
}

func NewDependencyStore(db *pgxpool.Pool) *DependencyStore {
	return &DependencyStore{db: db}
}

// Create inserts an edge. Re-adding an existing (claim, dependsOn, type)
// edge returns the stored edge instead of failing.
func (s *DependencyStore) Create(ctx context.Context, d *domain.Dependency) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO claim_dependencies (id, claim_id, depends_on_id, type, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (claim_id, depends_on_id, type) DO UPDATE
		 SET type = EXCLUDED.type
		 RETURNING id, created_at`,
		d.ID, d.ClaimID, d.DependsOnID, d.Type, d.CreatedAt,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert dependency: %w", err)
	}
	return nil
}

func (s *DependencyStore) GetDependents(ctx context.Context, claimID uuid.UUID) ([]domain.Dependency, error) {
	return s.query(ctx,
		`SELECT id, claim_id, depends_on_id, type, created_at
		 FROM claim_dependencies WHERE depends_on_id = $1
		 ORDER BY created_at ASC`, claimID)
}

func (s *DependencyStore) GetDependencies(ctx context.Context, claimID uuid.UUID) ([]domain.Dependency, error) {
	return s.query(ctx,
		`SELECT id, claim_id, depends_on_id, type, created_at
		 FROM claim_dependencies WHERE claim_id = $1
		 ORDER BY created_at ASC`, claimID)
}

func (s *DependencyStore) query(ctx context.Context, sql string, claimID uuid.UUID) ([]domain.Dependency, error) {
	rows, err := s.db.Query(ctx, sql, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deps []domain.Dependency
	for rows.Next() {
		var d domain.Dependency
		if err := rows.Scan(&d.ID, &d.ClaimID, &d.DependsOnID, &d.Type, &d.CreatedAt); err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}
