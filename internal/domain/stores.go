package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ClaimStore persists knowledge claims and their audit trails.
type ClaimStore interface {
	// Create inserts the claim together with every entry already on its
	// audit trail.
	Create(ctx context.Context, c *KnowledgeClaim) error
	GetByID(ctx context.Context, id uuid.UUID) (*KnowledgeClaim, error)
	List(ctx context.Context, filter ClaimFilter) ([]KnowledgeClaim, error)
	// Update writes the claim's mutable fields and appends entry to its
	// audit trail in one unit. There is no update path without an entry.
	Update(ctx context.Context, c *KnowledgeClaim, entry AuditEntry) error
	// TrimAuditTrail removes entries older than cutoff, always keeping the
	// newest keep entries per claim. Returns affected claims and entries.
	TrimAuditTrail(ctx context.Context, cutoff time.Time, keep int) (claims int64, entries int64, err error)
}

// DependencyStore persists directed dependency edges between claims.
type DependencyStore interface {
	Create(ctx context.Context, d *Dependency) error
	// GetDependents returns edges whose DependsOnID is claimID, i.e. the
	// claims that depend on it.
	GetDependents(ctx context.Context, claimID uuid.UUID) ([]Dependency, error)
	GetDependencies(ctx context.Context, claimID uuid.UUID) ([]Dependency, error)
}

type CheckpointStore interface {
	Create(ctx context.Context, cp *Checkpoint) error
	GetByID(ctx context.Context, id uuid.UUID) (*Checkpoint, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Checkpoint, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type FactStore interface {
	Create(ctx context.Context, f *Fact) error
	GetByID(ctx context.Context, id uuid.UUID) (*Fact, error)
	UpdateTrust(ctx context.Context, id uuid.UUID, state TrustState, reviewedBy string, reviewedAt time.Time) error
	// GetIdentity returns the newest non-rejected identity fact for a user.
	GetIdentity(ctx context.Context, userID string) (*Fact, error)
	// FindSimilar ranks a user's facts against embedding. An empty trust
	// matches every fact that has not been rejected.
	FindSimilar(ctx context.Context, userID string, embedding []float32, trust TrustState, threshold float32, limit int) ([]FactWithScore, error)
	ListByTrust(ctx context.Context, userID string, state TrustState) ([]Fact, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer is an opaque language-model call.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// BranchAdapter answers a query from one knowledge branch.
type BranchAdapter interface {
	Branch() Branch
	Query(ctx context.Context, text string) (*BranchResult, error)
}

// CouncilMember produces one independent opinion during deliberation.
type CouncilMember interface {
	Name() string
	Query(ctx context.Context, prompt string) (*MemberAnswer, error)
}

// FactExtractor is the language-model extraction path.
type FactExtractor interface {
	ExtractFacts(ctx context.Context, text string) ([]ExtractedFact, error)
}
