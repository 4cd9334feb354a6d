package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/Harshitk-cp/veritas/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrClaimNotFound         = errors.New("claim not found")
	ErrClaimStatementEmpty   = errors.New("statement is required")
	ErrInvalidTransition     = errors.New("invalid state transition")
	ErrInvalidState          = errors.New("invalid claim state")
	ErrInvalidBranch         = errors.New("invalid branch")
	ErrInvalidDependencyType = errors.New("invalid dependency type")
	ErrHighTrustConfidence   = errors.New("high-trust claims must carry confidence 100")
	ErrConfidenceOutOfRange  = errors.New("confidence outside the branch range")
	ErrInvalidatedByRequired = errors.New("invalidated_by is required")
	ErrClaimInvalidated      = errors.New("claim has been invalidated")
)

var timeNow = time.Now

// LedgerService owns knowledge claims, their dependency graph and
// checkpoints. Mutating operations are serialized by one ledger-wide lock so
// overlapping cascades and rollbacks never interleave within a process.
type LedgerService struct {
	claimStore      domain.ClaimStore
	dependencyStore domain.DependencyStore
	checkpointStore domain.CheckpointStore
	logger          *zap.Logger

	mu sync.Mutex
}

func NewLedgerService(cs domain.ClaimStore, ds domain.DependencyStore, cps domain.CheckpointStore, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		claimStore:      cs,
		dependencyStore: ds,
		checkpointStore: cps,
		logger:          logger,
	}
}

// CreateClaimInput describes a new claim. Zero values pick defaults: the
// branch follows the confidence, the state is PENDING_PROOF and the queue is
// standard.
type CreateClaimInput struct {
	Statement     string
	Domain        string
	Tags          []string
	Importance    float32
	InitialState  domain.ClaimState
	Branch        domain.Branch
	Confidence    *int
	PriorityQueue domain.PriorityQueue
	Trigger       string
	Agent         string
}

// CreateClaim persists a claim with its creation audit entry. High-trust
// claims always start VERIFIED at confidence 100; any other confidence for
// that branch is refused.
func (s *LedgerService) CreateClaim(ctx context.Context, in CreateClaimInput) (*domain.KnowledgeClaim, error) {
	statement := strings.TrimSpace(in.Statement)
	if statement == "" {
		return nil, ErrClaimStatementEmpty
	}

	branch := in.Branch
	confidence := 0
	if in.Confidence != nil {
		confidence = *in.Confidence
	}
	switch {
	case branch == "" && in.Confidence == nil:
		branch = domain.BranchUnverified
	case branch == "":
		branch = domain.BranchForConfidence(confidence)
	case !domain.ValidBranch(string(branch)):
		return nil, ErrInvalidBranch
	}

	if branch == domain.BranchHighTrust {
		if in.Confidence != nil && confidence != 100 {
			return nil, ErrHighTrustConfidence
		}
		confidence = 100
	} else if in.Confidence == nil {
		confidence, _ = branch.ConfidenceRange()
	}
	if err := checkBranchConfidence(branch, confidence); err != nil {
		return nil, err
	}

	state := in.InitialState
	switch {
	case branch == domain.BranchHighTrust:
		state = domain.StateVerified
	case state == "":
		state = domain.StatePendingProof
	case !domain.ValidClaimState(string(state)):
		return nil, ErrInvalidState
	}

	pq := in.PriorityQueue
	if pq == "" {
		pq = domain.PriorityStandard
	}

	now := timeNow()
	c := &domain.KnowledgeClaim{
		ID:            uuid.New(),
		Statement:     statement,
		Domain:        in.Domain,
		Tags:          in.Tags,
		Importance:    in.Importance,
		State:         state,
		Branch:        branch,
		Confidence:    confidence,
		PriorityQueue: pq,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	c.AuditTrail = []domain.AuditEntry{{
		ID:            uuid.New(),
		ClaimID:       c.ID,
		Action:        domain.AuditCreated,
		ToState:       state,
		NewConfidence: confidence,
		Trigger:       in.Trigger,
		Agent:         in.Agent,
		CreatedAt:     now,
	}}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.claimStore.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}

	s.logger.Debug("claim created",
		zap.String("claim_id", c.ID.String()),
		zap.String("branch", string(branch)),
		zap.Int("confidence", confidence))
	return c, nil
}

func checkBranchConfidence(b domain.Branch, confidence int) error {
	min, max := b.ConfidenceRange()
	if confidence >= min && confidence <= max {
		return nil
	}
	if b == domain.BranchHighTrust {
		return ErrHighTrustConfidence
	}
	return ErrConfidenceOutOfRange
}

// TransitionInput carries the why of a state change. NewConfidence and
// NewBranch are optional; when set, the pair must stay consistent.
type TransitionInput struct {
	Trigger       string
	Agent         string
	Reason        string
	NewConfidence *int
	NewBranch     *domain.Branch
}

// Transition moves a claim forward through its lifecycle and appends an
// audit entry in the same store write.
func (s *LedgerService) Transition(ctx context.Context, id uuid.UUID, to domain.ClaimState, in TransitionInput) (*domain.KnowledgeClaim, error) {
	if !domain.ValidClaimState(string(to)) {
		return nil, ErrInvalidState
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.getClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(c.State, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.State, to)
	}

	branch := c.Branch
	if in.NewBranch != nil {
		if !domain.ValidBranch(string(*in.NewBranch)) {
			return nil, ErrInvalidBranch
		}
		branch = *in.NewBranch
	}
	confidence := c.Confidence
	if in.NewConfidence != nil {
		confidence = *in.NewConfidence
	} else if branch == domain.BranchHighTrust {
		confidence = 100
	}
	if err := checkBranchConfidence(branch, confidence); err != nil {
		return nil, err
	}

	now := timeNow()
	entry := domain.AuditEntry{
		ID:            uuid.New(),
		ClaimID:       c.ID,
		Action:        domain.AuditTransition,
		FromState:     c.State,
		ToState:       to,
		OldConfidence: c.Confidence,
		NewConfidence: confidence,
		Trigger:       in.Trigger,
		Agent:         in.Agent,
		Reason:        in.Reason,
		CreatedAt:     now,
	}
	c.State = to
	c.Branch = branch
	c.Confidence = confidence
	c.UpdatedAt = now

	if err := s.claimStore.Update(ctx, c, entry); err != nil {
		return nil, fmt.Errorf("transition claim: %w", err)
	}
	return c, nil
}

// Promote moves a claim onto the high-trust branch at confidence 100 in the
// VERIFIED state. A claim that is already VERIFIED keeps its state and only
// has its branch and confidence rewritten, with its own audit entry.
// Invalidated claims cannot be promoted.
func (s *LedgerService) Promote(ctx context.Context, id uuid.UUID, in TransitionInput) (*domain.KnowledgeClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.getClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsInvalidated() || c.State == domain.StateDeprecated {
		return nil, ErrClaimInvalidated
	}
	if c.State != domain.StateVerified && !domain.CanTransition(c.State, domain.StateVerified) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.State, domain.StateVerified)
	}

	now := timeNow()
	entry := domain.AuditEntry{
		ID:            uuid.New(),
		ClaimID:       c.ID,
		Action:        domain.AuditTransition,
		FromState:     c.State,
		ToState:       domain.StateVerified,
		OldConfidence: c.Confidence,
		NewConfidence: 100,
		Trigger:       in.Trigger,
		Agent:         in.Agent,
		Reason:        in.Reason,
		CreatedAt:     now,
	}
	c.State = domain.StateVerified
	c.Branch = domain.BranchHighTrust
	c.Confidence = 100
	c.UpdatedAt = now

	if err := s.claimStore.Update(ctx, c, entry); err != nil {
		return nil, fmt.Errorf("promote claim: %w", err)
	}
	return c, nil
}

// AddDependency records that claimID depends on dependsOnID. Cycles are
// accepted; traversals guard against them.
func (s *LedgerService) AddDependency(ctx context.Context, claimID, dependsOnID uuid.UUID, typ domain.DependencyType, agent string) (*domain.Dependency, error) {
	if !domain.ValidDependencyType(string(typ)) {
		return nil, ErrInvalidDependencyType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if _, err := s.getClaim(ctx, dependsOnID); err != nil {
		return nil, err
	}

	now := timeNow()
	d := &domain.Dependency{
		ID:          uuid.New(),
		ClaimID:     claimID,
		DependsOnID: dependsOnID,
		Type:        typ,
		CreatedAt:   now,
	}
	if err := s.dependencyStore.Create(ctx, d); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("create dependency: %w", err)
	}

	entry := domain.AuditEntry{
		ID:            uuid.New(),
		ClaimID:       c.ID,
		Action:        domain.AuditDependencyAdded,
		FromState:     c.State,
		ToState:       c.State,
		OldConfidence: c.Confidence,
		NewConfidence: c.Confidence,
		Agent:         agent,
		Reason:        fmt.Sprintf("%s %s", typ, dependsOnID),
		CreatedAt:     now,
	}
	c.UpdatedAt = now
	if err := s.claimStore.Update(ctx, c, entry); err != nil {
		return nil, fmt.Errorf("audit dependency: %w", err)
	}
	return d, nil
}

// Invalidate soft-deletes a claim. With cascade set it walks every claim that
// transitively depends on it, breadth first. A visited set guarantees each
// claim is handled once even when edges form cycles. Claims that were already
// invalidated are walked through but not counted.
func (s *LedgerService) Invalidate(ctx context.Context, id uuid.UUID, invalidatedBy, reason string, cascade bool) (int, error) {
	if strings.TrimSpace(invalidatedBy) == "" {
		return 0, ErrInvalidatedByRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getClaim(ctx, id); err != nil {
		return 0, err
	}

	count := 0
	visited := map[uuid.UUID]bool{id: true}
	queue := []uuid.UUID{id}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		current := queue[0]
		queue = queue[1:]

		c, err := s.getClaim(ctx, current)
		if err != nil {
			if errors.Is(err, ErrClaimNotFound) {
				s.logger.Warn("dependent claim missing during invalidation", zap.String("claim_id", current.String()))
				continue
			}
			return count, err
		}

		if !c.IsInvalidated() {
			root := current == id
			if err := s.markInvalidated(ctx, c, invalidatedBy, reason, id, root); err != nil {
				return count, err
			}
			count++
		}

		if !cascade {
			break
		}
		dependents, err := s.dependencyStore.GetDependents(ctx, current)
		if err != nil {
			return count, fmt.Errorf("load dependents of %s: %w", current, err)
		}
		for _, d := range dependents {
			if !visited[d.ClaimID] {
				visited[d.ClaimID] = true
				queue = append(queue, d.ClaimID)
			}
		}
	}

	s.logger.Info("claims invalidated",
		zap.String("root_claim_id", id.String()),
		zap.String("invalidated_by", invalidatedBy),
		zap.Bool("cascade", cascade),
		zap.Int("count", count))
	return count, nil
}

func (s *LedgerService) markInvalidated(ctx context.Context, c *domain.KnowledgeClaim, by, reason string, rootID uuid.UUID, root bool) error {
	now := timeNow()
	action := domain.AuditInvalidated
	entryReason := reason
	if !root {
		action = domain.AuditCascadeInvalidated
		entryReason = "cascade from " + rootID.String()
	}

	entry := domain.AuditEntry{
		ID:            uuid.New(),
		ClaimID:       c.ID,
		Action:        action,
		FromState:     c.State,
		ToState:       domain.StateDeprecated,
		OldConfidence: c.Confidence,
		NewConfidence: c.Confidence,
		Trigger:       "invalidate",
		Agent:         by,
		Reason:        entryReason,
		CreatedAt:     now,
	}
	c.State = domain.StateDeprecated
	c.InvalidatedAt = &now
	c.InvalidatedBy = by
	c.InvalidationReason = entryReason
	c.UpdatedAt = now

	if err := s.claimStore.Update(ctx, c, entry); err != nil {
		return fmt.Errorf("invalidate claim %s: %w", c.ID, err)
	}
	return nil
}

func (s *LedgerService) getClaim(ctx context.Context, id uuid.UUID) (*domain.KnowledgeClaim, error) {
	c, err := s.claimStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *LedgerService) GetClaim(ctx context.Context, id uuid.UUID) (*domain.KnowledgeClaim, error) {
	return s.getClaim(ctx, id)
}

func (s *LedgerService) ListClaims(ctx context.Context, filter domain.ClaimFilter) ([]domain.KnowledgeClaim, error) {
	if filter.State != nil && !domain.ValidClaimState(string(*filter.State)) {
		return nil, ErrInvalidState
	}
	if filter.Branch != nil && !domain.ValidBranch(string(*filter.Branch)) {
		return nil, ErrInvalidBranch
	}
	return s.claimStore.List(ctx, filter)
}

// AuditTrail returns the claim's history, oldest first.
func (s *LedgerService) AuditTrail(ctx context.Context, id uuid.UUID) ([]domain.AuditEntry, error) {
	c, err := s.getClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.AuditTrail, nil
}

// GetDependents lists the edges of claims that depend on id.
func (s *LedgerService) GetDependents(ctx context.Context, id uuid.UUID) ([]domain.Dependency, error) {
	if _, err := s.getClaim(ctx, id); err != nil {
		return nil, err
	}
	return s.dependencyStore.GetDependents(ctx, id)
}

// GetDependencies lists the edges id depends on.
func (s *LedgerService) GetDependencies(ctx context.Context, id uuid.UUID) ([]domain.Dependency, error) {
	if _, err := s.getClaim(ctx, id); err != nil {
		return nil, err
	}
	return s.dependencyStore.GetDependencies(ctx, id)
}
