package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

type FactStore struct {
	db *pgxpool.Pool
}

func NewFactStore(db *pgxpool.Pool) *FactStore {
	return &FactStore{db: db}
}

const factColumns = `id, user_id, type, content, trust_state, confidence, keywords, requires_verification,
	submitter_level, reviewed_by, reviewed_at, created_at`

func scanFact(row pgx.Row, f *domain.Fact, extra ...any) error {
	dest := []any{&f.ID, &f.UserID, &f.Type, &f.Content, &f.TrustState, &f.Confidence, &f.Keywords,
		&f.RequiresVerification, &f.SubmitterLevel, &f.ReviewedBy, &f.ReviewedAt, &f.CreatedAt}
	return row.Scan(append(dest, extra...)...)
}

func (s *FactStore) Create(ctx context.Context, f *domain.Fact) error {
	var embedding *pgvector.Vector
	if len(f.Embedding) > 0 {
		v := pgvector.NewVector(f.Embedding)
		embedding = &v
	}
	keywords := f.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO facts (id, user_id, type, content, trust_state, confidence, keywords, requires_verification,
		                    submitter_level, embedding, reviewed_by, reviewed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		f.ID, f.UserID, f.Type, f.Content, f.TrustState, f.Confidence, keywords, f.RequiresVerification,
		f.SubmitterLevel, embedding, f.ReviewedBy, f.ReviewedAt, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fact: %w", err)
	}
	return nil
}

func (s *FactStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Fact, error) {
	f := &domain.Fact{}
	err := scanFact(s.db.QueryRow(ctx, `SELECT `+factColumns+` FROM facts WHERE id = $1`, id), f)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FactStore) UpdateTrust(ctx context.Context, id uuid.UUID, state domain.TrustState, reviewedBy string, reviewedAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE facts SET trust_state = $1, reviewed_by = $2, reviewed_at = $3 WHERE id = $4`,
		state, reviewedBy, reviewedAt, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *FactStore) GetIdentity(ctx context.Context, userID string) (*domain.Fact, error) {
	f := &domain.Fact{}
	err := scanFact(s.db.QueryRow(ctx,
		`SELECT `+factColumns+` FROM facts
		 WHERE user_id = $1 AND type = $2 AND trust_state <> $3
		 ORDER BY created_at DESC LIMIT 1`,
		userID, domain.FactIdentity, domain.TrustRejected), f)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FactStore) FindSimilar(ctx context.Context, userID string, embedding []float32, trust domain.TrustState, threshold float32, limit int) ([]domain.FactWithScore, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT `+factColumns+`, 1 - (embedding <=> $1) AS score
		 FROM facts
		 WHERE user_id = $2 AND trust_state <> $3 AND ($4 = '' OR trust_state = $4)
		   AND embedding IS NOT NULL AND 1 - (embedding <=> $1) > $5
		 ORDER BY score DESC
		 LIMIT $6`,
		vec, userID, domain.TrustRejected, string(trust), threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find similar facts query: %w", err)
	}
	defer rows.Close()

	var results []domain.FactWithScore
	for rows.Next() {
		var fs domain.FactWithScore
		if err := scanFact(rows, &fs.Fact, &fs.Score); err != nil {
			return nil, fmt.Errorf("scan fact row: %w", err)
		}
		results = append(results, fs)
	}
	return results, rows.Err()
}

func (s *FactStore) ListByTrust(ctx context.Context, userID string, state domain.TrustState) ([]domain.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM facts WHERE trust_state = $1`
	args := []any{state}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []domain.Fact
	for rows.Next() {
		var f domain.Fact
		if err := scanFact(rows, &f); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
