package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from ClaimState
		to   ClaimState
		want bool
	}{
		{"pending to watching", StatePendingProof, StateWatching, true},
		{"pending to verified", StatePendingProof, StateVerified, true},
		{"watching to verified", StateWatching, StateVerified, true},
		{"verified to watching", StateVerified, StateWatching, false},
		{"watching to pending", StateWatching, StatePendingProof, false},
		{"same state", StateWatching, StateWatching, false},
		{"pending to deprecated", StatePendingProof, StateDeprecated, true},
		{"verified to deprecated", StateVerified, StateDeprecated, true},
		{"deprecated to verified", StateDeprecated, StateVerified, false},
		{"deprecated to deprecated", StateDeprecated, StateDeprecated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestBranchClamp(t *testing.T) {
	tests := []struct {
		branch Branch
		in     int
		want   int
	}{
		{BranchHighTrust, 20, 100},
		{BranchHighTrust, 100, 100},
		{BranchHypothesis, 100, 99},
		{BranchHypothesis, 10, 50},
		{BranchHypothesis, 75, 75},
		{BranchUnverified, 80, 49},
		{BranchUnverified, -5, 0},
	}

	for _, tt := range tests {
		if got := tt.branch.Clamp(tt.in); got != tt.want {
			t.Errorf("%s.Clamp(%d) = %d, want %d", tt.branch, tt.in, got, tt.want)
		}
	}
}

func TestBranchForConfidence(t *testing.T) {
	if BranchForConfidence(100) != BranchHighTrust {
		t.Error("100 should map to high trust")
	}
	if BranchForConfidence(99) != BranchHypothesis {
		t.Error("99 should map to hypothesis")
	}
	if BranchForConfidence(50) != BranchHypothesis {
		t.Error("50 should map to hypothesis")
	}
	if BranchForConfidence(49) != BranchUnverified {
		t.Error("49 should map to unverified")
	}
}

func TestStateHash_OrderIndependent(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	h1 := StateHash([]uuid.UUID{a, b, c})
	h2 := StateHash([]uuid.UUID{c, a, b})
	h3 := StateHash([]uuid.UUID{b, c, a, a})

	if h1 != h2 || h2 != h3 {
		t.Fatalf("expected identical hashes, got %s %s %s", h1, h2, h3)
	}
	if h1 == StateHash([]uuid.UUID{a, b}) {
		t.Fatal("different id sets should not share a hash")
	}
	if len(h1) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(h1))
	}
}

func TestAssignTrust(t *testing.T) {
	tests := []struct {
		level    VerificationLevel
		requires bool
		want     TrustState
	}{
		{LevelUnverified, true, TrustPending},
		{LevelUnverified, false, TrustPending},
		{LevelVerified, true, TrustPending},
		{LevelVerified, false, TrustVerified},
		{LevelTrusted, true, TrustVerified},
		{LevelAdmin, true, TrustVerified},
		{LevelCreator, true, TrustVerified},
		{"", false, TrustPending},
	}

	for _, tt := range tests {
		if got := AssignTrust(tt.level, tt.requires); got != tt.want {
			t.Errorf("AssignTrust(%q, %v) = %s, want %s", tt.level, tt.requires, got, tt.want)
		}
	}
}

func TestDoNotKnow(t *testing.T) {
	resp := DoNotKnow("req-1", RejectNoSource)
	if resp.Answer != nil {
		t.Fatal("answer should be nil")
	}
	if resp.Confidence != 0 {
		t.Fatalf("expected confidence 0, got %d", resp.Confidence)
	}
	if resp.RejectionReason == nil || *resp.RejectionReason != RejectNoSource {
		t.Fatal("expected NO_SOURCE reason")
	}
	if resp.Sources == nil || len(resp.Sources) != 0 {
		t.Fatal("expected empty, non-nil sources")
	}
	if resp.Message != "I do not know, because no traceable source supports an answer." {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}
