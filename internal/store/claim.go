package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClaimStore struct {
	db *pgxpool.Pool
}

func NewClaimStore(db *pgxpool.Pool) *ClaimStore {
	return &ClaimStore{db: db}
}

const claimColumns = `id, statement, domain, tags, importance, state, branch, confidence, priority_queue,
	invalidated_at, invalidated_by, invalidation_reason, created_at, updated_at`

func scanClaim(row pgx.Row, c *domain.KnowledgeClaim) error {
	return row.Scan(&c.ID, &c.Statement, &c.Domain, &c.Tags, &c.Importance, &c.State, &c.Branch,
		&c.Confidence, &c.PriorityQueue, &c.InvalidatedAt, &c.InvalidatedBy, &c.InvalidationReason,
		&c.CreatedAt, &c.UpdatedAt)
}

func insertAudit(ctx context.Context, tx pgx.Tx, e domain.AuditEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO claim_audit (id, claim_id, action, from_state, to_state, old_confidence, new_confidence, trigger, agent, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.ClaimID, e.Action, e.FromState, e.ToState, e.OldConfidence, e.NewConfidence, e.Trigger, e.Agent, e.Reason, e.CreatedAt,
	)
	return err
}

func (s *ClaimStore) Create(ctx context.Context, c *domain.KnowledgeClaim) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin claim insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO claims (id, statement, domain, tags, importance, state, branch, confidence, priority_queue,
		                     invalidated_at, invalidated_by, invalidation_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.Statement, c.Domain, tags, c.Importance, c.State, c.Branch, c.Confidence, c.PriorityQueue,
		c.InvalidatedAt, c.InvalidatedBy, c.InvalidationReason, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}

	for _, e := range c.AuditTrail {
		if err := insertAudit(ctx, tx, e); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *ClaimStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.KnowledgeClaim, error) {
	c := &domain.KnowledgeClaim{}
	err := scanClaim(s.db.QueryRow(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = $1`, id), c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, claim_id, action, from_state, to_state, old_confidence, new_confidence, trigger, agent, reason, created_at
		 FROM claim_audit WHERE claim_id = $1
		 ORDER BY created_at ASC, id ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("audit query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.ClaimID, &e.Action, &e.FromState, &e.ToState, &e.OldConfidence,
			&e.NewConfidence, &e.Trigger, &e.Agent, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		c.AuditTrail = append(c.AuditTrail, e)
	}
	return c, rows.Err()
}

// List returns claims matching the filter, oldest first. Audit trails are
// not loaded.
func (s *ClaimStore) List(ctx context.Context, filter domain.ClaimFilter) ([]domain.KnowledgeClaim, error) {
	var conditions []string
	var args []any

	if filter.State != nil {
		args = append(args, string(*filter.State))
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)))
	}
	if filter.Branch != nil {
		args = append(args, string(*filter.Branch))
		conditions = append(conditions, fmt.Sprintf("branch = $%d", len(args)))
	}
	if filter.Domain != "" {
		args = append(args, filter.Domain)
		conditions = append(conditions, fmt.Sprintf("domain = $%d", len(args)))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if !filter.IncludeInvalidated {
		conditions = append(conditions, "invalidated_at IS NULL")
	}
	if filter.CreatedAfter != nil {
		args = append(args, *filter.CreatedAfter)
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", len(args)))
	}

	query := `SELECT ` + claimColumns + ` FROM claims`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list claims query: %w", err)
	}
	defer rows.Close()

	var claims []domain.KnowledgeClaim
	for rows.Next() {
		var c domain.KnowledgeClaim
		if err := scanClaim(rows, &c); err != nil {
			return nil, fmt.Errorf("scan claim row: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func (s *ClaimStore) Update(ctx context.Context, c *domain.KnowledgeClaim, entry domain.AuditEntry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin claim update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE claims
		 SET state = $1, branch = $2, confidence = $3, priority_queue = $4,
		     invalidated_at = $5, invalidated_by = $6, invalidation_reason = $7, updated_at = $8
		 WHERE id = $9`,
		c.State, c.Branch, c.Confidence, c.PriorityQueue,
		c.InvalidatedAt, c.InvalidatedBy, c.InvalidationReason, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := insertAudit(ctx, tx, entry); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	c.AuditTrail = append(c.AuditTrail, entry)
	return nil
}

func (s *ClaimStore) TrimAuditTrail(ctx context.Context, cutoff time.Time, keep int) (int64, int64, error) {
	var claims, entries int64
	err := s.db.QueryRow(ctx,
		`WITH ranked AS (
		     SELECT id, created_at,
		            row_number() OVER (PARTITION BY claim_id ORDER BY created_at DESC, id DESC) AS rn
		     FROM claim_audit
		 ), doomed AS (
		     DELETE FROM claim_audit a
		     USING ranked r
		     WHERE a.id = r.id AND r.rn > $2 AND r.created_at < $1
		     RETURNING a.claim_id
		 )
		 SELECT COUNT(DISTINCT claim_id), COUNT(*) FROM doomed`,
		cutoff, keep,
	).Scan(&claims, &entries)
	if err != nil {
		return 0, 0, fmt.Errorf("trim audit trail: %w", err)
	}
	return claims, entries, nil
}
