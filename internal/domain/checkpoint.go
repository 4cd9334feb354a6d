package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClaimSnapshot freezes the restorable fields of one claim at checkpoint time.
type ClaimSnapshot struct {
	ClaimID          uuid.UUID     `json:"claim_id"`
	Statement        string        `json:"statement"`
	State            ClaimState    `json:"state"`
	Branch           Branch        `json:"branch"`
	Confidence       int           `json:"confidence"`
	PriorityQueue    PriorityQueue `json:"priority_queue"`
	AuditTrailLength int           `json:"audit_trail_length"`
}

// Checkpoint is immutable after creation. Only its owner may roll back to it
// or delete it.
type Checkpoint struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Label     string          `json:"label"`
	StateHash string          `json:"state_hash"`
	ClaimIDs  []uuid.UUID     `json:"claim_ids"`
	Snapshots []ClaimSnapshot `json:"snapshots"`
	CreatedAt time.Time       `json:"created_at"`
}

// RollbackResult reports the effect of a rollback.
type RollbackResult struct {
	CheckpointID     uuid.UUID `json:"checkpoint_id"`
	InvalidatedCount int       `json:"invalidated_count"`
	RestoredCount    int       `json:"restored_count"`
}

// StateHash hashes the sorted, de-duplicated claim id set. It identifies a
// snapshot's membership and is not meant as a security primitive.
func StateHash(ids []uuid.UUID) string {
	seen := make(map[string]bool, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		k := id.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sum := sha256.Sum256([]byte(strings.Join(keys, ",")))
	return hex.EncodeToString(sum[:])
}

// SnapshotOf captures the restorable fields of a claim.
func SnapshotOf(c *KnowledgeClaim) ClaimSnapshot {
	return ClaimSnapshot{
		ClaimID:          c.ID,
		Statement:        c.Statement,
		State:            c.State,
		Branch:           c.Branch,
		Confidence:       c.Confidence,
		PriorityQueue:    c.PriorityQueue,
		AuditTrailLength: len(c.AuditTrail),
	}
}
