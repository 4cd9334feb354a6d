package service

import (
	"context"
	"testing"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetention_TrimsOldEntriesKeepingNewest(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	busy := f.claim(t, "busy")
	quiet := f.claim(t, "quiet")
	for _, to := range []domain.ClaimState{domain.StateWatching, domain.StateVerified, domain.StateDeprecated} {
		_, err := f.ledger.Transition(ctx, busy.ID, to, TransitionInput{Agent: "bob"})
		require.NoError(t, err)
	}

	f.clock.Advance(72 * time.Hour)
	r := NewRetentionService(f.claims, 1, 2, zap.NewNop())
	require.True(t, r.Enabled())

	removed, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	trail, err := f.ledger.AuditTrail(ctx, busy.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, domain.StateVerified, trail[0].ToState)
	assert.Equal(t, domain.StateDeprecated, trail[1].ToState)

	trail, err = f.ledger.AuditTrail(ctx, quiet.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 1)
}

func TestRetention_RecentEntriesSurvive(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	c := f.claim(t, "fresh")
	for _, to := range []domain.ClaimState{domain.StateWatching, domain.StateVerified} {
		_, err := f.ledger.Transition(ctx, c.ID, to, TransitionInput{})
		require.NoError(t, err)
	}

	removed, err := NewRetentionService(f.claims, 30, 1, zap.NewNop()).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRetention_DisabledIsNoop(t *testing.T) {
	f := newLedgerFixture(t)
	r := NewRetentionService(f.claims, 0, 0, zap.NewNop())
	assert.False(t, r.Enabled())

	removed, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)

	r.Start()
	r.Stop()
}

func TestRetention_StartStop(t *testing.T) {
	f := newLedgerFixture(t)
	r := NewRetentionService(f.claims, 1, 5, zap.NewNop())
	r.SetInterval(5 * time.Millisecond)
	r.Start()
	time.Sleep(20 * time.Millisecond)
	r.Stop()
	r.Stop()
}
