package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/Harshitk-cp/veritas/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type orchestratorFixture struct {
	*ledgerFixture
	claimStore *failingClaimStore
	branches   *BranchRegistry
	council    *CouncilRegistry
	facts      *FactService
	orch       *Orchestrator
}

func newOrchestratorFixture(t *testing.T, adapters ...domain.BranchAdapter) *orchestratorFixture {
	t.Helper()
	lf := newLedgerFixture(t)
	cs := &failingClaimStore{ClaimStore: lf.claims}
	lf.ledger = NewLedgerService(cs, lf.deps, lf.checkpoints, zap.NewNop())

	f := &orchestratorFixture{
		ledgerFixture: lf,
		claimStore:    cs,
		branches:      NewBranchRegistry(adapters...),
		council:       NewCouncilRegistry(),
	}
	f.facts = NewFactService(lf.facts, lf.ledger, embedding.NewMockClient(), zap.NewNop())
	f.orch = NewOrchestrator(NewRouter(), f.branches, f.council, NewDeliberationService(zap.NewNop()),
		NewValidationGate(zap.NewNop()), lf.ledger, zap.NewNop())
	f.orch.SetFactService(f.facts)
	return f
}

func hypothesis(content string, confidence int, sources ...domain.Source) *stubBranch {
	return &stubBranch{branch: domain.BranchHypothesis, result: &domain.BranchResult{
		Branch: domain.BranchHypothesis, Content: content, Confidence: confidence, Sources: sources,
	}}
}

func assertDoNotKnow(t *testing.T, resp *domain.QueryResponse, reason domain.RejectionReason) {
	t.Helper()
	assert.Nil(t, resp.Answer)
	assert.False(t, resp.IsVerified)
	assert.Equal(t, 0, resp.Confidence)
	assert.Equal(t, []domain.Source{}, resp.Sources)
	require.NotNil(t, resp.RejectionReason)
	assert.Equal(t, reason, *resp.RejectionReason)
	assert.True(t, strings.HasPrefix(resp.Message, "I do not know, because "), resp.Message)
}

func TestOrchestrator_NoSourceRejected(t *testing.T) {
	f := newOrchestratorFixture(t, hypothesis("Probably 42.", 70))

	resp := f.orch.ProcessQuery(context.Background(), domain.QueryRequest{
		Query:   "What is the answer to everything?",
		UserID:  "u1",
		Options: domain.QueryOptions{IncludeTrace: true},
	})
	assertDoNotKnow(t, resp, domain.RejectNoSource)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, domain.ClassFactual, resp.Class)
	require.NotNil(t, resp.Trace)
	assert.Equal(t, domain.DecisionRejected, resp.Trace.FinalDecision)

	claims, err := f.ledger.ListClaims(context.Background(), domain.ClaimFilter{Tag: "answer"})
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestOrchestrator_HypothesisNeverAutoApproved(t *testing.T) {
	f := newOrchestratorFixture(t, hypothesis("Probably 42.", 70, doc))

	resp := f.orch.ProcessQuery(context.Background(), domain.QueryRequest{Query: "What is the answer to everything?"})
	assertDoNotKnow(t, resp, domain.RejectInsufficientConfidence)
}

func TestOrchestrator_VerifiedFactAnswers(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.branches.Register(NewVerifiedBranch(f.ledgerFixture.facts, f.ledger, embedding.NewMockClient(), zap.NewNop()))
	ctx := context.Background()

	stored, err := f.facts.ExtractAndStore(ctx, "u1", "My name is Alice", domain.LevelCreator)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	resp := f.orch.ProcessQuery(ctx, domain.QueryRequest{Query: "What is my name?", UserID: "u1"})
	require.NotNil(t, resp.Answer, resp.Message)
	assert.True(t, resp.IsVerified)
	assert.Equal(t, 100, resp.Confidence)
	assert.Equal(t, "My name is Alice.", *resp.Answer)
	assert.Equal(t, domain.BranchHighTrust, resp.Branch)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, stored[0].ID.String(), resp.Sources[0].ClaimID)
	require.NotNil(t, resp.ClaimID)

	answer, err := f.ledger.GetClaim(ctx, *resp.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, domain.BranchHighTrust, answer.Branch)
	assert.Equal(t, "orchestrator", answer.AuditTrail[0].Agent)

	deps, err := f.ledger.GetDependencies(ctx, answer.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, stored[0].ID, deps[0].DependsOnID)

	// Another user's question finds nothing verified.
	other := f.orch.ProcessQuery(ctx, domain.QueryRequest{Query: "What is my name?", UserID: "u2"})
	assert.Nil(t, other.Answer)
}

func TestOrchestrator_ConversationalBypass(t *testing.T) {
	f := newOrchestratorFixture(t, hypothesis("Nice to meet you, Alice!", 60))

	resp := f.orch.ProcessQuery(context.Background(), domain.QueryRequest{
		Query:   "My name is Alice",
		UserID:  "u1",
		Options: domain.QueryOptions{IncludeTrace: true},
	})
	require.NotNil(t, resp.Answer)
	assert.Equal(t, "Nice to meet you, Alice!", *resp.Answer)
	assert.True(t, resp.IsVerified)
	assert.Equal(t, ConversationalConfidence, resp.Confidence)
	assert.Equal(t, []domain.Source{}, resp.Sources)
	assert.Equal(t, domain.ClassConversational, resp.Class)
	assert.Nil(t, resp.ClaimID)
	require.NotNil(t, resp.Trace)
	assert.Equal(t, "router", resp.Trace.Steps[0].Component)

	pending, err := f.facts.ListPending(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.FactIdentity, pending[0].Type)
}

func TestOrchestrator_ConversationalFallback(t *testing.T) {
	f := newOrchestratorFixture(t)
	resp := f.orch.ProcessQuery(context.Background(), domain.QueryRequest{Query: "thanks"})
	require.NotNil(t, resp.Answer)
	assert.Equal(t, conversationalFallback, *resp.Answer)
}

func TestOrchestrator_ContaminationDetected(t *testing.T) {
	tests := []struct {
		name   string
		result *domain.BranchResult
	}{
		{"foreign branch tag", &domain.BranchResult{Branch: domain.BranchHighTrust, Content: "x", Confidence: 100}},
		{"confidence outside band", &domain.BranchResult{Branch: domain.BranchHypothesis, Content: "x", Confidence: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchestratorFixture(t, &stubBranch{branch: domain.BranchHypothesis, result: tt.result})
			resp := f.orch.ProcessQuery(context.Background(), domain.QueryRequest{Query: "Who wrote Dune?"})
			assertDoNotKnow(t, resp, domain.RejectContamination)
		})
	}
}

func TestOrchestrator_DeliberationApproves(t *testing.T) {
	f := newOrchestratorFixture(t, hypothesis("Use Postgres.", 80))
	f.council.Register(member("analyst", "Postgres fits multi-writer workloads.", 100, doc))
	f.council.Register(member("skeptic", "Postgres fits multi-writer workloads.", 100, doc))

	resp := f.orch.ProcessQuery(context.Background(), domain.QueryRequest{Query: "Should we pick Postgres or SQLite?"})
	require.NotNil(t, resp.Answer, resp.Message)
	assert.Equal(t, "Postgres fits multi-writer workloads.", *resp.Answer)
	require.NotNil(t, resp.Verdict)
	assert.Equal(t, domain.VerdictConsensus, resp.Verdict.Label)
	assert.Equal(t, domain.ClassAnalytical, resp.Class)
	assert.Equal(t, []domain.Source{doc}, resp.Sources)
}

func TestOrchestrator_DeliberationWithoutConsensus(t *testing.T) {
	f := newOrchestratorFixture(t, hypothesis("Depends.", 60))
	f.council.Register(member("analyst", "Postgres.", 100, doc))
	f.council.Register(member("skeptic", "SQLite.", 100, doc))
	f.council.Register(member("synthesizer", "Neither.", 100, doc))

	resp := f.orch.ProcessQuery(context.Background(), domain.QueryRequest{Query: "Should we pick Postgres or SQLite?"})
	assertDoNotKnow(t, resp, domain.RejectNoConsensus)
	require.NotNil(t, resp.Verdict)
	assert.Equal(t, domain.VerdictDeadlock, resp.Verdict.Label)
}

func TestOrchestrator_LedgerWriteFailureIsSwallowed(t *testing.T) {
	f := newOrchestratorFixture(t, hypothesis("x", 60))
	f.council.Register(member("analyst", "Answer.", 100, doc))
	f.claimStore.failCreate = true

	resp := f.orch.ProcessQuery(context.Background(), domain.QueryRequest{
		Query:   "Who wrote Dune?",
		Options: domain.QueryOptions{ForceDeliberation: true},
	})
	require.NotNil(t, resp.Answer)
	assert.True(t, resp.IsVerified)
	assert.Nil(t, resp.ClaimID)
}

func TestOrchestrator_BranchFailureIsAbsentResult(t *testing.T) {
	f := newOrchestratorFixture(t, &stubBranch{branch: domain.BranchHypothesis, err: errUnavailable})
	resp := f.orch.ProcessQuery(context.Background(), domain.QueryRequest{Query: "Who wrote Dune?"})
	assertDoNotKnow(t, resp, domain.RejectNoSource)
}

func TestOrchestrator_BranchTimeout(t *testing.T) {
	slow := &stubBranch{branch: domain.BranchHypothesis, delay: time.Second, result: &domain.BranchResult{Branch: domain.BranchHypothesis, Content: "late", Confidence: 60}}
	f := newOrchestratorFixture(t, slow)
	f.orch.SetBranchTimeout(20 * time.Millisecond)

	start := time.Now()
	resp := f.orch.ProcessQuery(context.Background(), domain.QueryRequest{Query: "Who wrote Dune?"})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assertDoNotKnow(t, resp, domain.RejectNoSource)
}

func TestOrchestrator_CancelledRequestTimesOut(t *testing.T) {
	slow := &stubBranch{branch: domain.BranchHypothesis, delay: time.Second}
	f := newOrchestratorFixture(t, slow)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	resp := f.orch.ProcessQuery(ctx, domain.QueryRequest{Query: "Who wrote Dune?"})
	assertDoNotKnow(t, resp, domain.RejectTimeout)
}

func TestOrchestrator_PanicBecomesInternalError(t *testing.T) {
	f := newOrchestratorFixture(t, &stubBranch{branch: domain.BranchHypothesis, panics: true})
	resp := f.orch.ProcessQuery(context.Background(), domain.QueryRequest{Query: "Who wrote Dune?"})
	assertDoNotKnow(t, resp, domain.RejectInternalError)
}

func TestOrchestrator_EmptyQuery(t *testing.T) {
	f := newOrchestratorFixture(t)
	resp := f.orch.ProcessQuery(context.Background(), domain.QueryRequest{Query: "   "})
	assertDoNotKnow(t, resp, domain.RejectNoSource)
}

func TestOrchestrator_RequestIDsAreUnique(t *testing.T) {
	f := newOrchestratorFixture(t)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := f.orch.newRequestID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func collect(t *testing.T, events <-chan domain.StreamEvent) []domain.StreamEvent {
	t.Helper()
	var out []domain.StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not close")
			return out
		}
	}
}

func TestOrchestrator_StreamQuery(t *testing.T) {
	f := newOrchestratorFixture(t, hypothesis("x", 60))
	f.council.Register(member("analyst", "one two three four five six seven eight nine ten", 100, doc))

	s, err := f.orch.StreamQuery(context.Background(), domain.QueryRequest{
		Query:   "Who wrote Dune?",
		Options: domain.QueryOptions{ForceDeliberation: true},
	})
	require.NoError(t, err)

	events := collect(t, s.Events())
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventThinking, events[0].Type)

	var chunks []string
	sawChunk := false
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Seq)
		assert.Equal(t, s.ID(), ev.RequestID)
		switch ev.Type {
		case domain.EventThinking:
			assert.False(t, sawChunk, "thinking never follows answer chunks")
		case domain.EventAnswerChunk:
			sawChunk = true
			chunks = append(chunks, ev.AnswerChunk)
		}
	}
	assert.Equal(t, "one two three four five six seven eight nine ten", strings.Join(chunks, ""))
	assert.Len(t, chunks, 2)

	last := events[len(events)-1]
	assert.Equal(t, domain.EventFinal, last.Type)
	require.NotNil(t, last.Final)
	assert.True(t, last.Final.IsVerified)
	assert.Equal(t, s.ID(), last.Final.RequestID)
}

func TestOrchestrator_StreamQueryErrorEvent(t *testing.T) {
	f := newOrchestratorFixture(t, &stubBranch{branch: domain.BranchHypothesis, panics: true})

	s, err := f.orch.StreamQuery(context.Background(), domain.QueryRequest{Query: "Who wrote Dune?"})
	require.NoError(t, err)

	events := collect(t, s.Events())
	last := events[len(events)-1]
	assert.Equal(t, domain.EventError, last.Type)
	assert.Contains(t, last.Error, "internal error")
	for _, ev := range events {
		assert.NotEqual(t, domain.EventFinal, ev.Type)
	}
}

func TestOrchestrator_StreamQueryRejectionIsFinal(t *testing.T) {
	f := newOrchestratorFixture(t, hypothesis("maybe", 60))
	s, err := f.orch.StreamQuery(context.Background(), domain.QueryRequest{Query: "Who wrote Dune?"})
	require.NoError(t, err)

	events := collect(t, s.Events())
	last := events[len(events)-1]
	assert.Equal(t, domain.EventFinal, last.Type)
	require.NotNil(t, last.Final.RejectionReason)
	assert.Equal(t, domain.RejectNoSource, *last.Final.RejectionReason)
}

func TestChunkAnswer(t *testing.T) {
	assert.Nil(t, chunkAnswer("   ", 8))
	assert.Equal(t, []string{"a b ", "c"}, chunkAnswer("a  b\nc", 2))
}
