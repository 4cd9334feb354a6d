package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/Harshitk-cp/veritas/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrNotCheckpointOwner = errors.New("requester does not own checkpoint")
	ErrOwnerRequired      = errors.New("owner_id is required")
)

// CreateCheckpoint freezes the restorable fields of the listed claims.
// Duplicate ids are collapsed; every id must exist.
func (s *LedgerService) CreateCheckpoint(ctx context.Context, ownerID, label string, claimIDs []uuid.UUID) (*domain.Checkpoint, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrOwnerRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]bool, len(claimIDs))
	ids := make([]uuid.UUID, 0, len(claimIDs))
	snapshots := make([]domain.ClaimSnapshot, 0, len(claimIDs))
	for _, id := range claimIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		c, err := s.getClaim(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", id, err)
		}
		ids = append(ids, id)
		snapshots = append(snapshots, domain.SnapshotOf(c))
	}

	cp := &domain.Checkpoint{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Label:     label,
		StateHash: domain.StateHash(ids),
		ClaimIDs:  ids,
		Snapshots: snapshots,
		CreatedAt: timeNow(),
	}
	if err := s.checkpointStore.Create(ctx, cp); err != nil {
		return nil, fmt.Errorf("create checkpoint: %w", err)
	}

	s.logger.Info("checkpoint created",
		zap.String("checkpoint_id", cp.ID.String()),
		zap.String("owner_id", ownerID),
		zap.Int("claims", len(ids)))
	return cp, nil
}

func (s *LedgerService) GetCheckpoint(ctx context.Context, id uuid.UUID) (*domain.Checkpoint, error) {
	cp, err := s.checkpointStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCheckpointNotFound
		}
		return nil, err
	}
	return cp, nil
}

func (s *LedgerService) ListCheckpoints(ctx context.Context, ownerID string) ([]domain.Checkpoint, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrOwnerRequired
	}
	return s.checkpointStore.ListByOwner(ctx, ownerID)
}

func (s *LedgerService) ownedCheckpoint(ctx context.Context, id uuid.UUID, requester string) (*domain.Checkpoint, error) {
	cp, err := s.GetCheckpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	if cp.OwnerID != requester {
		return nil, ErrNotCheckpointOwner
	}
	return cp, nil
}

// Rollback deprecates every claim created after the checkpoint and restores
// each snapshotted claim. Only the owner may roll back. Running it twice from
// the same ledger state gives the same restored count and end state.
func (s *LedgerService) Rollback(ctx context.Context, checkpointID uuid.UUID, requester string) (*domain.RollbackResult, error) {
	cp, err := s.ownedCheckpoint(ctx, checkpointID, requester)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &domain.RollbackResult{CheckpointID: cp.ID}
	reason := "rolled back to checkpoint " + cp.ID.String()

	created := cp.CreatedAt
	newer, err := s.claimStore.List(ctx, domain.ClaimFilter{CreatedAfter: &created, IncludeInvalidated: true})
	if err != nil {
		return nil, fmt.Errorf("list claims after checkpoint: %w", err)
	}
	for i := range newer {
		c := &newer[i]
		if c.State == domain.StateDeprecated {
			continue
		}
		now := timeNow()
		entry := domain.AuditEntry{
			ID:            uuid.New(),
			ClaimID:       c.ID,
			Action:        domain.AuditRolledBack,
			FromState:     c.State,
			ToState:       domain.StateDeprecated,
			OldConfidence: c.Confidence,
			NewConfidence: c.Confidence,
			Trigger:       "rollback",
			Agent:         requester,
			Reason:        reason,
			CreatedAt:     now,
		}
		c.State = domain.StateDeprecated
		if c.InvalidatedAt == nil {
			c.InvalidatedAt = &now
			c.InvalidatedBy = requester
			c.InvalidationReason = reason
		}
		c.UpdatedAt = now
		if err := s.claimStore.Update(ctx, c, entry); err != nil {
			return result, fmt.Errorf("deprecate claim %s: %w", c.ID, err)
		}
		result.InvalidatedCount++
	}

	for _, snap := range cp.Snapshots {
		c, err := s.getClaim(ctx, snap.ClaimID)
		if err != nil {
			if errors.Is(err, ErrClaimNotFound) {
				s.logger.Warn("snapshotted claim missing during rollback",
					zap.String("checkpoint_id", cp.ID.String()),
					zap.String("claim_id", snap.ClaimID.String()))
				continue
			}
			return result, err
		}

		now := timeNow()
		entry := domain.AuditEntry{
			ID:            uuid.New(),
			ClaimID:       c.ID,
			Action:        domain.AuditRestored,
			FromState:     c.State,
			ToState:       snap.State,
			OldConfidence: c.Confidence,
			NewConfidence: snap.Confidence,
			Trigger:       "rollback",
			Agent:         requester,
			Reason:        reason,
			CreatedAt:     now,
		}
		c.State = snap.State
		c.Confidence = snap.Confidence
		c.Branch = snap.Branch
		c.PriorityQueue = snap.PriorityQueue
		if snap.State != domain.StateDeprecated {
			c.InvalidatedAt = nil
			c.InvalidatedBy = ""
			c.InvalidationReason = ""
		}
		c.UpdatedAt = now
		if err := s.claimStore.Update(ctx, c, entry); err != nil {
			return result, fmt.Errorf("restore claim %s: %w", c.ID, err)
		}
		result.RestoredCount++
	}

	s.logger.Info("checkpoint rolled back",
		zap.String("checkpoint_id", cp.ID.String()),
		zap.String("requester", requester),
		zap.Int("invalidated", result.InvalidatedCount),
		zap.Int("restored", result.RestoredCount))
	return result, nil
}

// DeleteCheckpoint hard-deletes a checkpoint. Owner only.
func (s *LedgerService) DeleteCheckpoint(ctx context.Context, id uuid.UUID, requester string) error {
	if _, err := s.ownedCheckpoint(ctx, id, requester); err != nil {
		return err
	}
	if err := s.checkpointStore.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCheckpointNotFound
		}
		return err
	}
	s.logger.Info("checkpoint deleted", zap.String("checkpoint_id", id.String()), zap.String("requester", requester))
	return nil
}
