package domain

import (
	"time"

	"github.com/google/uuid"
)

type FactType string

const (
	FactIdentity     FactType = "identity"
	FactRelationship FactType = "relationship"
	FactPreference   FactType = "preference"
	FactContext      FactType = "context"
	FactGoal         FactType = "goal"
	FactInstruction  FactType = "instruction"
	FactDeclaration  FactType = "declaration"
)

func ValidFactType(t string) bool {
	switch FactType(t) {
	case FactIdentity, FactRelationship, FactPreference, FactContext,
		FactGoal, FactInstruction, FactDeclaration:
		return true
	}
	return false
}

type TrustState string

const (
	TrustPending  TrustState = "pending"
	TrustVerified TrustState = "verified"
	TrustRejected TrustState = "rejected"
)

type VerificationLevel string

const (
	LevelUnverified VerificationLevel = "unverified"
	LevelVerified   VerificationLevel = "verified"
	LevelTrusted    VerificationLevel = "trusted"
	LevelAdmin      VerificationLevel = "admin"
	LevelCreator    VerificationLevel = "creator"
)

func ValidVerificationLevel(l string) bool {
	switch VerificationLevel(l) {
	case LevelUnverified, LevelVerified, LevelTrusted, LevelAdmin, LevelCreator:
		return true
	}
	return false
}

// CanReview reports whether a submitter at this level may approve or reject
// pending facts.
func (l VerificationLevel) CanReview() bool {
	switch l {
	case LevelTrusted, LevelAdmin, LevelCreator:
		return true
	}
	return false
}

// AssignTrust decides the initial trust state of a fact from the submitter's
// verification level and the extractor's requiresVerification flag.
func AssignTrust(level VerificationLevel, requiresVerification bool) TrustState {
	switch level {
	case LevelCreator, LevelAdmin, LevelTrusted:
		return TrustVerified
	case LevelVerified:
		if !requiresVerification {
			return TrustVerified
		}
		return TrustPending
	default:
		return TrustPending
	}
}

// ExtractedFact is what an extractor returns before trust assignment.
type ExtractedFact struct {
	Type                 FactType `json:"type"`
	Content              string   `json:"content"`
	Confidence           int      `json:"confidence"`
	Keywords             []string `json:"keywords,omitempty"`
	RequiresVerification bool     `json:"requires_verification"`
}

// Fact is a statement extracted from conversational input. Its ID is the ID
// of the KnowledgeClaim that backs it.
type Fact struct {
	ID                   uuid.UUID         `json:"id"`
	UserID               string            `json:"user_id"`
	Type                 FactType          `json:"type"`
	Content              string            `json:"content"`
	TrustState           TrustState        `json:"trust_state"`
	Confidence           int               `json:"confidence"`
	Keywords             []string          `json:"keywords,omitempty"`
	RequiresVerification bool              `json:"requires_verification"`
	SubmitterLevel       VerificationLevel `json:"submitter_level"`
	Embedding            []float32         `json:"-"`
	ReviewedBy           string            `json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time        `json:"reviewed_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
}

type FactWithScore struct {
	Fact
	Score float32 `json:"score"`
}
