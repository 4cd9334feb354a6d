package domain

import (
	"time"

	"github.com/google/uuid"
)

type ClaimState string

const (
	StatePendingProof ClaimState = "pending_proof"
	StateWatching     ClaimState = "watching"
	StateVerified     ClaimState = "verified"
	StateDeprecated   ClaimState = "deprecated"
)

func ValidClaimState(s string) bool {
	switch ClaimState(s) {
	case StatePendingProof, StateWatching, StateVerified, StateDeprecated:
		return true
	}
	return false
}

// stateRank orders the forward lifecycle. DEPRECATED sits outside it.
var stateRank = map[ClaimState]int{
	StatePendingProof: 0,
	StateWatching:     1,
	StateVerified:     2,
}

// CanTransition reports whether a claim may move from one state to another.
// The lifecycle only moves forward; DEPRECATED is reachable from any live
// state and is terminal. Checkpoint restores bypass this check.
func CanTransition(from, to ClaimState) bool {
	if from == StateDeprecated {
		return false
	}
	if to == StateDeprecated {
		return true
	}
	fr, ok := stateRank[from]
	if !ok {
		return false
	}
	tr, ok := stateRank[to]
	if !ok {
		return false
	}
	return tr > fr
}

// Branch is one of the three mutually exclusive knowledge sources.
type Branch string

const (
	BranchHighTrust  Branch = "high_trust"
	BranchHypothesis Branch = "hypothesis"
	BranchUnverified Branch = "unverified"
)

// AllBranches lists branches in descending trust order.
var AllBranches = []Branch{BranchHighTrust, BranchHypothesis, BranchUnverified}

func ValidBranch(b string) bool {
	switch Branch(b) {
	case BranchHighTrust, BranchHypothesis, BranchUnverified:
		return true
	}
	return false
}

// ConfidenceRange returns the inclusive confidence band a branch may carry.
func (b Branch) ConfidenceRange() (min, max int) {
	switch b {
	case BranchHighTrust:
		return 100, 100
	case BranchHypothesis:
		return 50, 99
	default:
		return 0, 49
	}
}

// Clamp forces a confidence value into the branch's band.
func (b Branch) Clamp(confidence int) int {
	min, max := b.ConfidenceRange()
	if confidence < min {
		return min
	}
	if confidence > max {
		return max
	}
	return confidence
}

// BranchForConfidence picks the branch whose band contains the confidence.
func BranchForConfidence(confidence int) Branch {
	switch {
	case confidence >= 100:
		return BranchHighTrust
	case confidence >= 50:
		return BranchHypothesis
	default:
		return BranchUnverified
	}
}

type PriorityQueue string

const (
	PriorityCritical   PriorityQueue = "critical"
	PriorityStandard   PriorityQueue = "standard"
	PriorityBackground PriorityQueue = "background"
)

func ValidPriorityQueue(p string) bool {
	switch PriorityQueue(p) {
	case PriorityCritical, PriorityStandard, PriorityBackground:
		return true
	}
	return false
}

type AuditAction string

const (
	AuditCreated            AuditAction = "created"
	AuditTransition         AuditAction = "transition"
	AuditInvalidated        AuditAction = "invalidated"
	AuditCascadeInvalidated AuditAction = "cascade_invalidated"
	AuditRolledBack         AuditAction = "rolled_back"
	AuditRestored           AuditAction = "restored"
	AuditDependencyAdded    AuditAction = "dependency_added"
)

// AuditEntry is one immutable record in a claim's history.
type AuditEntry struct {
	ID            uuid.UUID   `json:"id"`
	ClaimID       uuid.UUID   `json:"claim_id"`
	Action        AuditAction `json:"action"`
	FromState     ClaimState  `json:"from_state,omitempty"`
	ToState       ClaimState  `json:"to_state,omitempty"`
	OldConfidence int         `json:"old_confidence"`
	NewConfidence int         `json:"new_confidence"`
	Trigger       string      `json:"trigger,omitempty"`
	Agent         string      `json:"agent,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// KnowledgeClaim is a durable statement tracked by the ledger. Claims are
// never physically deleted; invalidation only sets the Invalidated* fields.
type KnowledgeClaim struct {
	ID                 uuid.UUID     `json:"id"`
	Statement          string        `json:"statement"`
	Domain             string        `json:"domain,omitempty"`
	Tags               []string      `json:"tags,omitempty"`
	Importance         float32       `json:"importance"`
	State              ClaimState    `json:"state"`
	Branch             Branch        `json:"branch"`
	Confidence         int           `json:"confidence"`
	PriorityQueue      PriorityQueue `json:"priority_queue"`
	AuditTrail         []AuditEntry  `json:"audit_trail,omitempty"`
	InvalidatedAt      *time.Time    `json:"invalidated_at,omitempty"`
	InvalidatedBy      string        `json:"invalidated_by,omitempty"`
	InvalidationReason string        `json:"invalidation_reason,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func (c *KnowledgeClaim) IsInvalidated() bool {
	return c.InvalidatedAt != nil
}

type DependencyType string

const (
	DependencyDerivesFrom DependencyType = "derives_from"
	DependencyReferences  DependencyType = "references"
	DependencyInvalidates DependencyType = "invalidates"
	DependencySupersedes  DependencyType = "supersedes"
)

func ValidDependencyType(t string) bool {
	switch DependencyType(t) {
	case DependencyDerivesFrom, DependencyReferences, DependencyInvalidates, DependencySupersedes:
		return true
	}
	return false
}

// Dependency records that ClaimID depends on DependsOnID. Edges may form
// cycles; nothing checks for them at write time.
type Dependency struct {
	ID          uuid.UUID      `json:"id"`
	ClaimID     uuid.UUID      `json:"claim_id"`
	DependsOnID uuid.UUID      `json:"depends_on_id"`
	Type        DependencyType `json:"type"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ClaimFilter narrows ListClaims. Zero values mean "any".
type ClaimFilter struct {
	State              *ClaimState
	Branch             *Branch
	Domain             string
	Tag                string
	IncludeInvalidated bool
	CreatedAfter       *time.Time
	Limit              int
}
