package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CheckpointStore struct {
	db *pgxpool.Pool
}

func NewCheckpointStore(db *pgxpool.Pool) *CheckpointStore {
	return &CheckpointStore{db: db}
}

func (s *CheckpointStore) Create(ctx context.Context, cp *domain.Checkpoint) error {
	snapshots, err := json.Marshal(cp.Snapshots)
	if err != nil {
		return fmt.Errorf("marshal snapshots: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO checkpoints (id, owner_id, label, state_hash, claim_ids, snapshots, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		cp.ID, cp.OwnerID, cp.Label, cp.StateHash, idStrings(cp.ClaimIDs), snapshots, cp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Checkpoint, error) {
	cp, err := scanCheckpoint(s.db.QueryRow(ctx,
		`SELECT id, owner_id, label, state_hash, claim_ids, snapshots, created_at
		 FROM checkpoints WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return cp, nil
}

func (s *CheckpointStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Checkpoint, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_id, label, state_hash, claim_ids, snapshots, created_at
		 FROM checkpoints WHERE owner_id = $1
		 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cp)
	}
	return out, rows.Err()
}

// Delete physically removes the checkpoint record.
func (s *CheckpointStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM checkpoints WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCheckpoint(row pgx.Row) (*domain.Checkpoint, error) {
	cp := &domain.Checkpoint{}
	var ids []string
	var snapshots []byte
	if err := row.Scan(&cp.ID, &cp.OwnerID, &cp.Label, &cp.StateHash, &ids, &snapshots, &cp.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := parseIDs(ids)
	if err != nil {
		return nil, err
	}
	cp.ClaimIDs = parsed
	if err := json.Unmarshal(snapshots, &cp.Snapshots); err != nil {
		return nil, fmt.Errorf("unmarshal snapshots: %w", err)
	}
	return cp, nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseIDs(ids []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(ids))
	for _, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse claim id %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}
