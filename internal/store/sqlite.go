package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// sqliteTime is fixed width so stored timestamps sort lexically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

func fmtTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(sqliteTime, s)
	return t
}

func fmtNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

// SQLiteStore is the single-file ledger backend used for local runs and the
// admin CLI. It hands out one repository per table, all sharing a handle.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and applies the
// schema. ":memory:" gives a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite has a single writer; one connection also keeps :memory: coherent.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Claims() *SQLiteClaimStore {
	return &SQLiteClaimStore{db: s.db}
}

func (s *SQLiteStore) Dependencies() *SQLiteDependencyStore {
	return &SQLiteDependencyStore{db: s.db}
}

func (s *SQLiteStore) Checkpoints() *SQLiteCheckpointStore {
	return &SQLiteCheckpointStore{db: s.db}
}

func (s *SQLiteStore) Facts() *SQLiteFactStore {
	return &SQLiteFactStore{db: s.db}
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS claims (
		id                  TEXT PRIMARY KEY,
		statement           TEXT NOT NULL,
		domain              TEXT NOT NULL DEFAULT '',
		tags                TEXT NOT NULL DEFAULT '[]',
		importance          REAL NOT NULL DEFAULT 0,
		state               TEXT NOT NULL,
		branch              TEXT NOT NULL,
		confidence          INTEGER NOT NULL,
		priority_queue      TEXT NOT NULL,
		invalidated_at      TEXT,
		invalidated_by      TEXT NOT NULL DEFAULT '',
		invalidation_reason TEXT NOT NULL DEFAULT '',
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL,
		CHECK (branch <> 'high_trust' OR confidence = 100)
	);
	CREATE INDEX IF NOT EXISTS idx_claims_created ON claims(created_at);
	CREATE INDEX IF NOT EXISTS idx_claims_state ON claims(state);

	CREATE TABLE IF NOT EXISTS claim_audit (
		id             TEXT PRIMARY KEY,
		claim_id       TEXT NOT NULL REFERENCES claims(id),
		action         TEXT NOT NULL,
		from_state     TEXT NOT NULL DEFAULT '',
		to_state       TEXT NOT NULL DEFAULT '',
		old_confidence INTEGER NOT NULL DEFAULT 0,
		new_confidence INTEGER NOT NULL DEFAULT 0,
		trigger        TEXT NOT NULL DEFAULT '',
		agent          TEXT NOT NULL DEFAULT '',
		reason         TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_claim ON claim_audit(claim_id, created_at);

	CREATE TABLE IF NOT EXISTS claim_dependencies (
		id            TEXT PRIMARY KEY,
		claim_id      TEXT NOT NULL REFERENCES claims(id),
		depends_on_id TEXT NOT NULL REFERENCES claims(id),
		type          TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		UNIQUE (claim_id, depends_on_id, type)
	);
	CREATE INDEX IF NOT EXISTS idx_deps_depends_on ON claim_dependencies(depends_on_id);

	CREATE TABLE IF NOT EXISTS checkpoints (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		label      TEXT NOT NULL DEFAULT '',
		state_hash TEXT NOT NULL,
		claim_ids  TEXT NOT NULL,
		snapshots  TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_owner ON checkpoints(owner_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS facts (
		id                    TEXT PRIMARY KEY REFERENCES claims(id),
		user_id               TEXT NOT NULL,
		type                  TEXT NOT NULL,
		content               TEXT NOT NULL,
		trust_state           TEXT NOT NULL,
		confidence            INTEGER NOT NULL,
		keywords              TEXT NOT NULL DEFAULT '[]',
		requires_verification INTEGER NOT NULL DEFAULT 0,
		submitter_level       TEXT NOT NULL,
		embedding             TEXT,
		reviewed_by           TEXT NOT NULL DEFAULT '',
		reviewed_at           TEXT,
		created_at            TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_facts_user ON facts(user_id, trust_state);
	`
	_, err := s.db.Exec(schema)
	return err
}

type SQLiteClaimStore struct {
	db *sql.DB
}

const sqliteClaimColumns = `id, statement, domain, tags, importance, state, branch, confidence, priority_queue,
	invalidated_at, invalidated_by, invalidation_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteClaim(row rowScanner) (*domain.KnowledgeClaim, error) {
	c := &domain.KnowledgeClaim{}
	var id, tags, createdAt, updatedAt string
	var invalidatedAt sql.NullString
	if err := row.Scan(&id, &c.Statement, &c.Domain, &tags, &c.Importance, &c.State, &c.Branch,
		&c.Confidence, &c.PriorityQueue, &invalidatedAt, &c.InvalidatedBy, &c.InvalidationReason,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse claim id: %w", err)
	}
	c.ID = parsed
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	c.InvalidatedAt = parseNullTime(invalidatedAt)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

func insertSQLiteAudit(ctx context.Context, tx *sql.Tx, e domain.AuditEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO claim_audit (id, claim_id, action, from_state, to_state, old_confidence, new_confidence, trigger, agent, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.ClaimID.String(), e.Action, e.FromState, e.ToState, e.OldConfidence, e.NewConfidence,
		e.Trigger, e.Agent, e.Reason, fmtTime(e.CreatedAt),
	)
	return err
}

func (s *SQLiteClaimStore) Create(ctx context.Context, c *domain.KnowledgeClaim) error {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin claim insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO claims (`+sqliteClaimColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.Statement, c.Domain, string(tagsJSON), c.Importance, c.State, c.Branch, c.Confidence,
		c.PriorityQueue, fmtNullTime(c.InvalidatedAt), c.InvalidatedBy, c.InvalidationReason,
		fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	for _, e := range c.AuditTrail {
		if err := insertSQLiteAudit(ctx, tx, e); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteClaimStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.KnowledgeClaim, error) {
	c, err := scanSQLiteClaim(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteClaimColumns+` FROM claims WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, from_state, to_state, old_confidence, new_confidence, trigger, agent, reason, created_at
		 FROM claim_audit WHERE claim_id = ?
		 ORDER BY created_at ASC, rowid ASC`, id.String())
	if err != nil {
		return nil, fmt.Errorf("audit query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.AuditEntry
		var entryID, createdAt string
		if err := rows.Scan(&entryID, &e.Action, &e.FromState, &e.ToState, &e.OldConfidence, &e.NewConfidence,
			&e.Trigger, &e.Agent, &e.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.ID, _ = uuid.Parse(entryID)
		e.ClaimID = c.ID
		e.CreatedAt = parseTime(createdAt)
		c.AuditTrail = append(c.AuditTrail, e)
	}
	return c, rows.Err()
}

func (s *SQLiteClaimStore) List(ctx context.Context, filter domain.ClaimFilter) ([]domain.KnowledgeClaim, error) {
	var conditions []string
	var args []any

	if filter.State != nil {
		conditions = append(conditions, "state = ?")
		args = append(args, string(*filter.State))
	}
	if filter.Branch != nil {
		conditions = append(conditions, "branch = ?")
		args = append(args, string(*filter.Branch))
	}
	if filter.Domain != "" {
		conditions = append(conditions, "domain = ?")
		args = append(args, filter.Domain)
	}
	if filter.Tag != "" {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM json_each(claims.tags) WHERE json_each.value = ?)")
		args = append(args, filter.Tag)
	}
	if !filter.IncludeInvalidated {
		conditions = append(conditions, "invalidated_at IS NULL")
	}
	if filter.CreatedAfter != nil {
		conditions = append(conditions, "created_at > ?")
		args = append(args, fmtTime(*filter.CreatedAfter))
	}

	query := `SELECT ` + sqliteClaimColumns + ` FROM claims`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list claims query: %w", err)
	}
	defer rows.Close()

	var claims []domain.KnowledgeClaim
	for rows.Next() {
		c, err := scanSQLiteClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim row: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

func (s *SQLiteClaimStore) Update(ctx context.Context, c *domain.KnowledgeClaim, entry domain.AuditEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin claim update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE claims
		 SET state = ?, branch = ?, confidence = ?, priority_queue = ?,
		     invalidated_at = ?, invalidated_by = ?, invalidation_reason = ?, updated_at = ?
		 WHERE id = ?`,
		c.State, c.Branch, c.Confidence, c.PriorityQueue,
		fmtNullTime(c.InvalidatedAt), c.InvalidatedBy, c.InvalidationReason, fmtTime(c.UpdatedAt), c.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := insertSQLiteAudit(ctx, tx, entry); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.AuditTrail = append(c.AuditTrail, entry)
	return nil
}

func (s *SQLiteClaimStore) TrimAuditTrail(ctx context.Context, cutoff time.Time, keep int) (int64, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	const doomed = `SELECT id, claim_id FROM (
		SELECT id, claim_id, created_at,
		       row_number() OVER (PARTITION BY claim_id ORDER BY created_at DESC, rowid DESC) AS rn
		FROM claim_audit
	) WHERE rn > ? AND created_at < ?`

	var claims, entries int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT claim_id), COUNT(*) FROM (`+doomed+`)`,
		keep, fmtTime(cutoff),
	).Scan(&claims, &entries); err != nil {
		return 0, 0, fmt.Errorf("count trimmable audit: %w", err)
	}
	if entries == 0 {
		return 0, 0, nil
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM claim_audit WHERE id IN (SELECT id FROM (`+doomed+`))`,
		keep, fmtTime(cutoff),
	); err != nil {
		return 0, 0, fmt.Errorf("trim audit trail: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return claims, entries, nil
}

type SQLiteDependencyStore struct {
	db *sql.DB
}

func (s *SQLiteDependencyStore) Create(ctx context.Context, d *domain.Dependency) error {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM claims WHERE id IN (?, ?)`, d.ClaimID.String(), d.DependsOnID.String(),
	).Scan(&n); err != nil {
		return err
	}
	want := 2
	if d.ClaimID == d.DependsOnID {
		want = 1
	}
	if n < want {
		return ErrNotFound
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO claim_dependencies (id, claim_id, depends_on_id, type, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (claim_id, depends_on_id, type) DO NOTHING`,
		d.ID.String(), d.ClaimID.String(), d.DependsOnID.String(), d.Type, fmtTime(d.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert dependency: %w", err)
	}

	var id, createdAt string
	if err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM claim_dependencies WHERE claim_id = ? AND depends_on_id = ? AND type = ?`,
		d.ClaimID.String(), d.DependsOnID.String(), d.Type,
	).Scan(&id, &createdAt); err != nil {
		return fmt.Errorf("reload dependency: %w", err)
	}
	d.ID, _ = uuid.Parse(id)
	d.CreatedAt = parseTime(createdAt)
	return nil
}

func (s *SQLiteDependencyStore) GetDependents(ctx context.Context, claimID uuid.UUID) ([]domain.Dependency, error) {
	return s.query(ctx, `depends_on_id = ?`, claimID)
}

func (s *SQLiteDependencyStore) GetDependencies(ctx context.Context, claimID uuid.UUID) ([]domain.Dependency, error) {
	return s.query(ctx, `claim_id = ?`, claimID)
}

func (s *SQLiteDependencyStore) query(ctx context.Context, where string, claimID uuid.UUID) ([]domain.Dependency, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, claim_id, depends_on_id, type, created_at
		 FROM claim_dependencies WHERE `+where+`
		 ORDER BY created_at ASC`, claimID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deps []domain.Dependency
	for rows.Next() {
		var d domain.Dependency
		var id, cid, did, createdAt string
		if err := rows.Scan(&id, &cid, &did, &d.Type, &createdAt); err != nil {
			return nil, err
		}
		d.ID, _ = uuid.Parse(id)
		d.ClaimID, _ = uuid.Parse(cid)
		d.DependsOnID, _ = uuid.Parse(did)
		d.CreatedAt = parseTime(createdAt)
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

type SQLiteCheckpointStore struct {
	db *sql.DB
}

func (s *SQLiteCheckpointStore) Create(ctx context.Context, cp *domain.Checkpoint) error {
	ids, err := json.Marshal(idStrings(cp.ClaimIDs))
	if err != nil {
		return fmt.Errorf("marshal claim ids: %w", err)
	}
	snapshots, err := json.Marshal(cp.Snapshots)
	if err != nil {
		return fmt.Errorf("marshal snapshots: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (id, owner_id, label, state_hash, claim_ids, snapshots, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cp.ID.String(), cp.OwnerID, cp.Label, cp.StateHash, string(ids), string(snapshots), fmtTime(cp.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

func scanSQLiteCheckpoint(row rowScanner) (*domain.Checkpoint, error) {
	cp := &domain.Checkpoint{}
	var id, ids, snapshots, createdAt string
	if err := row.Scan(&id, &cp.OwnerID, &cp.Label, &cp.StateHash, &ids, &snapshots, &createdAt); err != nil {
		return nil, err
	}
	cp.ID, _ = uuid.Parse(id)
	var raw []string
	if err := json.Unmarshal([]byte(ids), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal claim ids: %w", err)
	}
	parsed, err := parseIDs(raw)
	if err != nil {
		return nil, err
	}
	cp.ClaimIDs = parsed
	if err := json.Unmarshal([]byte(snapshots), &cp.Snapshots); err != nil {
		return nil, fmt.Errorf("unmarshal snapshots: %w", err)
	}
	cp.CreatedAt = parseTime(createdAt)
	return cp, nil
}

func (s *SQLiteCheckpointStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Checkpoint, error) {
	cp, err := scanSQLiteCheckpoint(s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, label, state_hash, claim_ids, snapshots, created_at
		 FROM checkpoints WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return cp, nil
}

func (s *SQLiteCheckpointStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, label, state_hash, claim_ids, snapshots, created_at
		 FROM checkpoints WHERE owner_id = ?
		 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Checkpoint
	for rows.Next() {
		cp, err := scanSQLiteCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cp)
	}
	return out, rows.Err()
}

func (s *SQLiteCheckpointStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SQLiteFactStore keeps embeddings as JSON arrays and ranks them in process,
// since SQLite has no vector operator.
type SQLiteFactStore struct {
	db *sql.DB
}

const sqliteFactColumns = `id, user_id, type, content, trust_state, confidence, keywords, requires_verification,
	submitter_level, embedding, reviewed_by, reviewed_at, created_at`

func scanSQLiteFact(row rowScanner) (*domain.Fact, error) {
	f := &domain.Fact{}
	var id, keywords, createdAt string
	var embedding, reviewedAt sql.NullString
	if err := row.Scan(&id, &f.UserID, &f.Type, &f.Content, &f.TrustState, &f.Confidence, &keywords,
		&f.RequiresVerification, &f.SubmitterLevel, &embedding, &f.ReviewedBy, &reviewedAt, &createdAt); err != nil {
		return nil, err
	}
	f.ID, _ = uuid.Parse(id)
	if err := json.Unmarshal([]byte(keywords), &f.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if embedding.Valid {
		if err := json.Unmarshal([]byte(embedding.String), &f.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshal embedding: %w", err)
		}
	}
	f.ReviewedAt = parseNullTime(reviewedAt)
	f.CreatedAt = parseTime(createdAt)
	return f, nil
}

func (s *SQLiteFactStore) Create(ctx context.Context, f *domain.Fact) error {
	keywords := f.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	kw, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	var embedding any
	if len(f.Embedding) > 0 {
		b, err := json.Marshal(f.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		embedding = string(b)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO facts (`+sqliteFactColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID.String(), f.UserID, f.Type, f.Content, f.TrustState, f.Confidence, string(kw), f.RequiresVerification,
		f.SubmitterLevel, embedding, f.ReviewedBy, fmtNullTime(f.ReviewedAt), fmtTime(f.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert fact: %w", err)
	}
	return nil
}

func (s *SQLiteFactStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Fact, error) {
	f, err := scanSQLiteFact(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteFactColumns+` FROM facts WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *SQLiteFactStore) UpdateTrust(ctx context.Context, id uuid.UUID, state domain.TrustState, reviewedBy string, reviewedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE facts SET trust_state = ?, reviewed_by = ?, reviewed_at = ? WHERE id = ?`,
		state, reviewedBy, fmtTime(reviewedAt), id.String(),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteFactStore) GetIdentity(ctx context.Context, userID string) (*domain.Fact, error) {
	f, err := scanSQLiteFact(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteFactColumns+` FROM facts
		 WHERE user_id = ? AND type = ? AND trust_state <> ?
		 ORDER BY created_at DESC LIMIT 1`,
		userID, domain.FactIdentity, domain.TrustRejected))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *SQLiteFactStore) FindSimilar(ctx context.Context, userID string, embedding []float32, trust domain.TrustState, threshold float32, limit int) ([]domain.FactWithScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteFactColumns+` FROM facts
		 WHERE user_id = ? AND trust_state <> ? AND (? = '' OR trust_state = ?) AND embedding IS NOT NULL`,
		userID, domain.TrustRejected, string(trust), string(trust))
	if err != nil {
		return nil, fmt.Errorf("find similar facts query: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Fact
	for rows.Next() {
		f, err := scanSQLiteFact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fact row: %w", err)
		}
		candidates = append(candidates, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rankFacts(candidates, embedding, threshold, limit), nil
}

func (s *SQLiteFactStore) ListByTrust(ctx context.Context, userID string, state domain.TrustState) ([]domain.Fact, error) {
	query := `SELECT ` + sqliteFactColumns + ` FROM facts WHERE trust_state = ?`
	args := []any{state}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []domain.Fact
	for rows.Next() {
		f, err := scanSQLiteFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, *f)
	}
	return facts, rows.Err()
}
