package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/Harshitk-cp/veritas/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// fakeClock advances one millisecond per reading so ordering by creation
// time is deterministic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func useFakeClock(t *testing.T) *fakeClock {
	t.Helper()
	c := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	prev := timeNow
	timeNow = c.Now
	t.Cleanup(func() { timeNow = prev })
	return c
}

type ledgerFixture struct {
	clock       *fakeClock
	claims      *store.MemClaimStore
	deps        *store.MemDependencyStore
	checkpoints *store.MemCheckpointStore
	facts       *store.MemFactStore
	ledger      *LedgerService
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		clock:       useFakeClock(t),
		claims:      store.NewMemClaimStore(),
		deps:        store.NewMemDependencyStore(),
		checkpoints: store.NewMemCheckpointStore(),
		facts:       store.NewMemFactStore(),
	}
	f.ledger = NewLedgerService(f.claims, f.deps, f.checkpoints, zap.NewNop())
	return f
}

func (f *ledgerFixture) claim(t *testing.T, statement string) *domain.KnowledgeClaim {
	t.Helper()
	conf := 60
	c, err := f.ledger.CreateClaim(context.Background(), CreateClaimInput{
		Statement:  statement,
		Confidence: &conf,
		Agent:      "test",
	})
	if err != nil {
		t.Fatalf("create claim %q: %v", statement, err)
	}
	return c
}

func (f *ledgerFixture) dependsOn(t *testing.T, child, parent uuid.UUID) {
	t.Helper()
	if _, err := f.ledger.AddDependency(context.Background(), child, parent, domain.DependencyDerivesFrom, "test"); err != nil {
		t.Fatalf("add dependency: %v", err)
	}
}

func intPtr(v int) *int { return &v }

// stubBranch is a scripted branch adapter.
type stubBranch struct {
	branch domain.Branch
	result *domain.BranchResult
	err    error
	delay  time.Duration
	panics bool

	mu    sync.Mutex
	calls int
}

func (b *stubBranch) Branch() domain.Branch { return b.branch }

func (b *stubBranch) Query(ctx context.Context, text string) (*domain.BranchResult, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	if b.panics {
		panic("branch exploded")
	}
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	if b.result == nil {
		return &domain.BranchResult{Branch: b.branch}, nil
	}
	r := *b.result
	return &r, nil
}

func (b *stubBranch) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// stubMember is a scripted council member.
type stubMember struct {
	name   string
	answer *domain.MemberAnswer
	err    error
	delay  time.Duration
}

func (m *stubMember) Name() string { return m.name }

func (m *stubMember) Query(ctx context.Context, prompt string) (*domain.MemberAnswer, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	a := *m.answer
	return &a, nil
}

func member(name, content string, confidence int, sources ...domain.Source) *stubMember {
	return &stubMember{name: name, answer: &domain.MemberAnswer{Content: content, Confidence: confidence, Sources: sources}}
}

var errUnavailable = errors.New("collaborator unavailable")

// failingClaimStore wraps a claim store and fails every Create once armed.
type failingClaimStore struct {
	domain.ClaimStore
	failCreate bool
}

func (s *failingClaimStore) Create(ctx context.Context, c *domain.KnowledgeClaim) error {
	if s.failCreate {
		return errUnavailable
	}
	return s.ClaimStore.Create(ctx, c)
}

type stubChecker struct {
	contradicts bool
	details     string
	err         error
}

func (c stubChecker) Check(ctx context.Context, content string) (bool, string, error) {
	return c.contradicts, c.details, c.err
}
