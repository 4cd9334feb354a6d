package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStores(t *testing.T) {
	runStoreContract(t, func(t *testing.T) ledgerStores {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return ledgerStores{
			claims:      s.Claims(),
			deps:        s.Dependencies(),
			checkpoints: s.Checkpoints(),
			facts:       s.Facts(),
		}
	})
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	c := newTestClaim("persisted", base)
	require.NoError(t, s.Claims().Create(ctx, c))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Claims().GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Statement)
	assert.Len(t, got.AuditTrail, 1)
}

func TestSQLiteDependencyStore_UnknownClaim(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	c := newTestClaim("lonely", base)
	require.NoError(t, s.Claims().Create(ctx, c))

	other := newTestClaim("never stored", base)
	err = s.Dependencies().Create(ctx, depOf(c, other))
	assert.ErrorIs(t, err, ErrNotFound)
}
