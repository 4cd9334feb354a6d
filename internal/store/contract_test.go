package store

import (
	"context"
	"testing"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledgerStores bundles the repositories a backend provides so the same
// behavioural checks run against every implementation.
type ledgerStores struct {
	claims      domain.ClaimStore
	deps        domain.DependencyStore
	checkpoints domain.CheckpointStore
	facts       domain.FactStore
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestClaim(statement string, at time.Time) *domain.KnowledgeClaim {
	id := uuid.New()
	return &domain.KnowledgeClaim{
		ID:            id,
		Statement:     statement,
		Domain:        "ops",
		Tags:          []string{"infra"},
		State:         domain.StatePendingProof,
		Branch:        domain.BranchHypothesis,
		Confidence:    70,
		PriorityQueue: domain.PriorityStandard,
		AuditTrail: []domain.AuditEntry{{
			ID: uuid.New(), ClaimID: id, Action: domain.AuditCreated,
			ToState: domain.StatePendingProof, NewConfidence: 70, CreatedAt: at,
		}},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func runStoreContract(t *testing.T, newStores func(t *testing.T) ledgerStores) {
	ctx := context.Background()

	t.Run("claim round trip with audit", func(t *testing.T) {
		s := newStores(t)
		c := newTestClaim("disk is full", base)
		require.NoError(t, s.claims.Create(ctx, c))

		got, err := s.claims.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "disk is full", got.Statement)
		assert.Equal(t, []string{"infra"}, got.Tags)
		assert.Equal(t, domain.BranchHypothesis, got.Branch)
		require.Len(t, got.AuditTrail, 1)
		assert.Equal(t, domain.AuditCreated, got.AuditTrail[0].Action)
		assert.True(t, got.CreatedAt.Equal(base))
	})

	t.Run("missing claim", func(t *testing.T) {
		s := newStores(t)
		_, err := s.claims.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update appends audit entry", func(t *testing.T) {
		s := newStores(t)
		c := newTestClaim("cpu hot", base)
		require.NoError(t, s.claims.Create(ctx, c))

		now := base.Add(time.Minute)
		c.State = domain.StateDeprecated
		c.InvalidatedAt = &now
		c.InvalidatedBy = "ops"
		c.InvalidationReason = "fixed"
		c.UpdatedAt = now
		entry := domain.AuditEntry{
			ID: uuid.New(), ClaimID: c.ID, Action: domain.AuditInvalidated,
			FromState: domain.StatePendingProof, ToState: domain.StateDeprecated, Reason: "fixed", CreatedAt: now,
		}
		require.NoError(t, s.claims.Update(ctx, c, entry))
		assert.Len(t, c.AuditTrail, 2)

		got, err := s.claims.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateDeprecated, got.State)
		require.NotNil(t, got.InvalidatedAt)
		assert.Equal(t, "fixed", got.InvalidationReason)
		require.Len(t, got.AuditTrail, 2)
		assert.Equal(t, domain.AuditInvalidated, got.AuditTrail[1].Action)

		missing := newTestClaim("ghost", base)
		assert.ErrorIs(t, s.claims.Update(ctx, missing, entry), ErrNotFound)
	})

	t.Run("list filters", func(t *testing.T) {
		s := newStores(t)
		a := newTestClaim("a", base)
		b := newTestClaim("b", base.Add(time.Second))
		b.Tags = []string{"db"}
		b.Domain = "data"
		c := newTestClaim("c", base.Add(2*time.Second))
		inv := base.Add(3 * time.Second)
		c.InvalidatedAt = &inv
		for _, cl := range []*domain.KnowledgeClaim{a, b, c} {
			require.NoError(t, s.claims.Create(ctx, cl))
		}

		all, err := s.claims.List(ctx, domain.ClaimFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "a", all[0].Statement)
		assert.Equal(t, "b", all[1].Statement)

		withInvalid, err := s.claims.List(ctx, domain.ClaimFilter{IncludeInvalidated: true})
		require.NoError(t, err)
		assert.Len(t, withInvalid, 3)

		byTag, err := s.claims.List(ctx, domain.ClaimFilter{Tag: "db"})
		require.NoError(t, err)
		require.Len(t, byTag, 1)
		assert.Equal(t, b.ID, byTag[0].ID)

		byDomain, err := s.claims.List(ctx, domain.ClaimFilter{Domain: "ops", IncludeInvalidated: true})
		require.NoError(t, err)
		assert.Len(t, byDomain, 2)

		after := base
		newer, err := s.claims.List(ctx, domain.ClaimFilter{CreatedAfter: &after, IncludeInvalidated: true})
		require.NoError(t, err)
		assert.Len(t, newer, 2)

		limited, err := s.claims.List(ctx, domain.ClaimFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("trim audit keeps newest entries", func(t *testing.T) {
		s := newStores(t)
		c := newTestClaim("busy", base)
		require.NoError(t, s.claims.Create(ctx, c))
		for i := 1; i <= 4; i++ {
			at := base.Add(time.Duration(i) * time.Hour)
			c.UpdatedAt = at
			require.NoError(t, s.claims.Update(ctx, c, domain.AuditEntry{
				ID: uuid.New(), ClaimID: c.ID, Action: domain.AuditTransition, CreatedAt: at,
			}))
		}

		claims, entries, err := s.claims.TrimAuditTrail(ctx, base.Add(10*time.Hour), 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1), claims)
		assert.Equal(t, int64(3), entries)

		got, err := s.claims.GetByID(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, got.AuditTrail, 2)
		assert.True(t, got.AuditTrail[1].CreatedAt.Equal(base.Add(4*time.Hour)))
	})

	t.Run("dependencies are idempotent per type", func(t *testing.T) {
		s := newStores(t)
		parent := newTestClaim("parent", base)
		child := newTestClaim("child", base)
		require.NoError(t, s.claims.Create(ctx, parent))
		require.NoError(t, s.claims.Create(ctx, child))

		d1 := &domain.Dependency{ID: uuid.New(), ClaimID: child.ID, DependsOnID: parent.ID, Type: domain.DependencyDerivesFrom, CreatedAt: base}
		require.NoError(t, s.deps.Create(ctx, d1))
		d2 := &domain.Dependency{ID: uuid.New(), ClaimID: child.ID, DependsOnID: parent.ID, Type: domain.DependencyDerivesFrom, CreatedAt: base}
		require.NoError(t, s.deps.Create(ctx, d2))
		assert.Equal(t, d1.ID, d2.ID)

		d3 := &domain.Dependency{ID: uuid.New(), ClaimID: child.ID, DependsOnID: parent.ID, Type: domain.DependencyReferences, CreatedAt: base}
		require.NoError(t, s.deps.Create(ctx, d3))

		dependents, err := s.deps.GetDependents(ctx, parent.ID)
		require.NoError(t, err)
		assert.Len(t, dependents, 2)

		deps, err := s.deps.GetDependencies(ctx, child.ID)
		require.NoError(t, err)
		assert.Len(t, deps, 2)

		none, err := s.deps.GetDependents(ctx, child.ID)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("checkpoint lifecycle", func(t *testing.T) {
		s := newStores(t)
		id := uuid.New()
		cp := &domain.Checkpoint{
			ID:        uuid.New(),
			OwnerID:   "alice",
			Label:     "before deploy",
			StateHash: domain.StateHash([]uuid.UUID{id}),
			ClaimIDs:  []uuid.UUID{id},
			Snapshots: []domain.ClaimSnapshot{{ClaimID: id, State: domain.StateWatching, Branch: domain.BranchHypothesis, Confidence: 60}},
			CreatedAt: base,
		}
		require.NoError(t, s.checkpoints.Create(ctx, cp))

		got, err := s.checkpoints.GetByID(ctx, cp.ID)
		require.NoError(t, err)
		assert.Equal(t, cp.StateHash, got.StateHash)
		assert.Equal(t, []uuid.UUID{id}, got.ClaimIDs)
		require.Len(t, got.Snapshots, 1)
		assert.Equal(t, 60, got.Snapshots[0].Confidence)

		list, err := s.checkpoints.ListByOwner(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, list, 1)
		other, err := s.checkpoints.ListByOwner(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, other)

		require.NoError(t, s.checkpoints.Delete(ctx, cp.ID))
		_, err = s.checkpoints.GetByID(ctx, cp.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.checkpoints.Delete(ctx, cp.ID), ErrNotFound)
	})

	t.Run("facts by trust and similarity", func(t *testing.T) {
		s := newStores(t)
		mk := func(content string, typ domain.FactType, trust domain.TrustState, emb []float32, at time.Time) *domain.Fact {
			c := newTestClaim(content, at)
			require.NoError(t, s.claims.Create(ctx, c))
			f := &domain.Fact{
				ID: c.ID, UserID: "u1", Type: typ, Content: content, TrustState: trust,
				Confidence: 90, SubmitterLevel: domain.LevelUnverified, Embedding: emb, CreatedAt: at,
			}
			require.NoError(t, s.facts.Create(ctx, f))
			return f
		}
		name := mk("My name is Ada", domain.FactIdentity, domain.TrustPending, []float32{1, 0, 0}, base)
		mk("I like tea", domain.FactPreference, domain.TrustVerified, []float32{0.9, 0.1, 0}, base.Add(time.Second))
		mk("I hate tea", domain.FactPreference, domain.TrustRejected, []float32{1, 0, 0}, base.Add(2*time.Second))
		mk("Unrelated", domain.FactContext, domain.TrustVerified, []float32{0, 0, 1}, base.Add(3*time.Second))

		identity, err := s.facts.GetIdentity(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, name.ID, identity.ID)
		_, err = s.facts.GetIdentity(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)

		similar, err := s.facts.FindSimilar(ctx, "u1", []float32{1, 0, 0}, "", 0.3, 5)
		require.NoError(t, err)
		require.Len(t, similar, 2)
		assert.Equal(t, "My name is Ada", similar[0].Content)
		assert.Greater(t, similar[0].Score, similar[1].Score)

		verified, err := s.facts.FindSimilar(ctx, "u1", []float32{1, 0, 0}, domain.TrustVerified, 0.3, 1)
		require.NoError(t, err)
		require.Len(t, verified, 1, "a closer pending fact must not take the only slot")
		assert.Equal(t, "I like tea", verified[0].Content)

		pending, err := s.facts.ListByTrust(ctx, "", domain.TrustPending)
		require.NoError(t, err)
		require.Len(t, pending, 1)

		require.NoError(t, s.facts.UpdateTrust(ctx, name.ID, domain.TrustVerified, "root", base.Add(time.Hour)))
		got, err := s.facts.GetByID(ctx, name.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TrustVerified, got.TrustState)
		assert.Equal(t, "root", got.ReviewedBy)
		require.NotNil(t, got.ReviewedAt)

		assert.ErrorIs(t, s.facts.UpdateTrust(ctx, uuid.New(), domain.TrustVerified, "root", base), ErrNotFound)
	})
}

func depOf(child, parent *domain.KnowledgeClaim) *domain.Dependency {
	return &domain.Dependency{
		ID:          uuid.New(),
		ClaimID:     child.ID,
		DependsOnID: parent.ID,
		Type:        domain.DependencyDerivesFrom,
		CreatedAt:   base,
	}
}
