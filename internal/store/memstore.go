package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/google/uuid"
)

// The Mem* stores are the in-process implementations of the ledger
// repositories. They back tests and STORE_DRIVER=memory. Every read returns
// a copy so callers never alias stored state.

type MemClaimStore struct {
	mu     sync.RWMutex
	claims map[uuid.UUID]*domain.KnowledgeClaim
}

func NewMemClaimStore() *MemClaimStore {
	return &MemClaimStore{claims: make(map[uuid.UUID]*domain.KnowledgeClaim)}
}

func cloneClaim(c *domain.KnowledgeClaim) *domain.KnowledgeClaim {
	out := *c
	out.Tags = append([]string(nil), c.Tags...)
	out.AuditTrail = append([]domain.AuditEntry(nil), c.AuditTrail...)
	if c.InvalidatedAt != nil {
		t := *c.InvalidatedAt
		out.InvalidatedAt = &t
	}
	return &out
}

func matchesFilter(c *domain.KnowledgeClaim, f domain.ClaimFilter) bool {
	if f.State != nil && c.State != *f.State {
		return false
	}
	if f.Branch != nil && c.Branch != *f.Branch {
		return false
	}
	if f.Domain != "" && c.Domain != f.Domain {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range c.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.IncludeInvalidated && c.IsInvalidated() {
		return false
	}
	if f.CreatedAfter != nil && !c.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	return true
}

func (s *MemClaimStore) Create(ctx context.Context, c *domain.KnowledgeClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.claims[c.ID]; exists {
		return ErrDuplicate
	}
	s.claims[c.ID] = cloneClaim(c)
	return nil
}

func (s *MemClaimStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.KnowledgeClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneClaim(c), nil
}

func (s *MemClaimStore) List(ctx context.Context, filter domain.ClaimFilter) ([]domain.KnowledgeClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.KnowledgeClaim
	for _, c := range s.claims {
		if matchesFilter(c, filter) {
			cp := cloneClaim(c)
			cp.AuditTrail = nil
			out = append(out, *cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemClaimStore) Update(ctx context.Context, c *domain.KnowledgeClaim, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.claims[c.ID]
	if !ok {
		return ErrNotFound
	}
	stored.State = c.State
	stored.Branch = c.Branch
	stored.Confidence = c.Confidence
	stored.PriorityQueue = c.PriorityQueue
	stored.InvalidatedAt = nil
	if c.InvalidatedAt != nil {
		t := *c.InvalidatedAt
		stored.InvalidatedAt = &t
	}
	stored.InvalidatedBy = c.InvalidatedBy
	stored.InvalidationReason = c.InvalidationReason
	stored.UpdatedAt = c.UpdatedAt
	stored.AuditTrail = append(stored.AuditTrail, entry)
	c.AuditTrail = append(c.AuditTrail, entry)
	return nil
}

func (s *MemClaimStore) TrimAuditTrail(ctx context.Context, cutoff time.Time, keep int) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claims, entries int64
	for _, c := range s.claims {
		n := len(c.AuditTrail)
		if n <= keep {
			continue
		}
		// Trails are append-only, so the oldest entries sit at the front.
		var kept []domain.AuditEntry
		removed := 0
		for i, e := range c.AuditTrail {
			if i < n-keep && e.CreatedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if removed > 0 {
			c.AuditTrail = kept
			claims++
			entries += int64(removed)
		}
	}
	return claims, entries, nil
}

type MemDependencyStore struct {
	mu   sync.RWMutex
	deps []domain.Dependency
}

func NewMemDependencyStore() *MemDependencyStore {
	return &MemDependencyStore{}
}

func (s *MemDependencyStore) Create(ctx context.Context, d *domain.Dependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.deps {
		if existing.ClaimID == d.ClaimID && existing.DependsOnID == d.DependsOnID && existing.Type == d.Type {
			d.ID = existing.ID
			d.CreatedAt = existing.CreatedAt
			return nil
		}
	}
	s.deps = append(s.deps, *d)
	return nil
}

func (s *MemDependencyStore) GetDependents(ctx context.Context, claimID uuid.UUID) ([]domain.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Dependency
	for _, d := range s.deps {
		if d.DependsOnID == claimID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *MemDependencyStore) GetDependencies(ctx context.Context, claimID uuid.UUID) ([]domain.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Dependency
	for _, d := range s.deps {
		if d.ClaimID == claimID {
			out = append(out, d)
		}
	}
	return out, nil
}

type MemCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[uuid.UUID]domain.Checkpoint
}

func NewMemCheckpointStore() *MemCheckpointStore {
	return &MemCheckpointStore{checkpoints: make(map[uuid.UUID]domain.Checkpoint)}
}

func cloneCheckpoint(cp domain.Checkpoint) domain.Checkpoint {
	cp.ClaimIDs = append([]uuid.UUID(nil), cp.ClaimIDs...)
	cp.Snapshots = append([]domain.ClaimSnapshot(nil), cp.Snapshots...)
	return cp
}

func (s *MemCheckpointStore) Create(ctx context.Context, cp *domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.checkpoints[cp.ID]; exists {
		return ErrDuplicate
	}
	s.checkpoints[cp.ID] = cloneCheckpoint(*cp)
	return nil
}

func (s *MemCheckpointStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneCheckpoint(cp)
	return &out, nil
}

func (s *MemCheckpointStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Checkpoint
	for _, cp := range s.checkpoints {
		if cp.OwnerID == ownerID {
			out = append(out, cloneCheckpoint(cp))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemCheckpointStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checkpoints[id]; !ok {
		return ErrNotFound
	}
	delete(s.checkpoints, id)
	return nil
}

type MemFactStore struct {
	mu    sync.RWMutex
	facts map[uuid.UUID]*domain.Fact
}

func NewMemFactStore() *MemFactStore {
	return &MemFactStore{facts: make(map[uuid.UUID]*domain.Fact)}
}

func cloneFact(f *domain.Fact) domain.Fact {
	out := *f
	out.Keywords = append([]string(nil), f.Keywords...)
	out.Embedding = append([]float32(nil), f.Embedding...)
	return out
}

func (s *MemFactStore) Create(ctx context.Context, f *domain.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.facts[f.ID]; exists {
		return ErrDuplicate
	}
	c := cloneFact(f)
	s.facts[f.ID] = &c
	return nil
}

func (s *MemFactStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.facts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneFact(f)
	return &out, nil
}

func (s *MemFactStore) UpdateTrust(ctx context.Context, id uuid.UUID, state domain.TrustState, reviewedBy string, reviewedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.facts[id]
	if !ok {
		return ErrNotFound
	}
	f.TrustState = state
	f.ReviewedBy = reviewedBy
	f.ReviewedAt = &reviewedAt
	return nil
}

func (s *MemFactStore) GetIdentity(ctx context.Context, userID string) (*domain.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *domain.Fact
	for _, f := range s.facts {
		if f.UserID != userID || f.Type != domain.FactIdentity || f.TrustState == domain.TrustRejected {
			continue
		}
		if newest == nil || f.CreatedAt.After(newest.CreatedAt) {
			newest = f
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	out := cloneFact(newest)
	return &out, nil
}

func (s *MemFactStore) FindSimilar(ctx context.Context, userID string, embedding []float32, trust domain.TrustState, threshold float32, limit int) ([]domain.FactWithScore, error) {
	s.mu.RLock()
	var candidates []domain.Fact
	for _, f := range s.facts {
		if f.UserID != userID || f.TrustState == domain.TrustRejected {
			continue
		}
		if trust == "" || f.TrustState == trust {
			candidates = append(candidates, cloneFact(f))
		}
	}
	s.mu.RUnlock()
	return rankFacts(candidates, embedding, threshold, limit), nil
}

func (s *MemFactStore) ListByTrust(ctx context.Context, userID string, state domain.TrustState) ([]domain.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Fact
	for _, f := range s.facts {
		if f.TrustState == state && (userID == "" || f.UserID == userID) {
			out = append(out, cloneFact(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
