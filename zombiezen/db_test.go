package zombiezen

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite/sqlitex"

	letsencrypt "github.com/caasmo/restinpieces-letsencrypt"
)

func newTestStore(t *testing.T) *Db {
	t.Helper()
	pool, err := sqlitex.NewPool(filepath.Join(t.TempDir(), "state.db"), sqlitex.PoolOptions{PoolSize: 1})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	db := NewStore(pool)
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestNewStoreNilPool(t *testing.T) {
	assert.Panics(t, func() { NewStore(nil) })
}

func TestMigrateIdempotent(t *testing.T) {
	db := newTestStore(t)
	assert.NoError(t, db.Migrate(context.Background()))
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	_, err := db.Get(ctx, letsencrypt.KeyState)
	assert.ErrorIs(t, err, letsencrypt.ErrNotFound)

	require.NoError(t, db.Set(ctx, letsencrypt.KeyState, []byte(letsencrypt.StateInstalled)))
	value, err := db.Get(ctx, letsencrypt.KeyState)
	require.NoError(t, err)
	assert.Equal(t, []byte(letsencrypt.StateInstalled), value)

	require.NoError(t, db.Set(ctx, letsencrypt.KeyState, []byte(letsencrypt.StateRegistered)))
	value, err = db.Get(ctx, letsencrypt.KeyState)
	require.NoError(t, err)
	assert.Equal(t, []byte(letsencrypt.StateRegistered), value, "second write replaces the first")

	require.NoError(t, db.Set(ctx, "empty", nil))
	value, err = db.Get(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestFlags(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	set, err := db.HasFlag(ctx, letsencrypt.FlagDisable)
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, db.SetFlag(ctx, letsencrypt.FlagDisable))
	require.NoError(t, db.SetFlag(ctx, letsencrypt.FlagDisable), "setting twice is a no-op")
	require.NoError(t, db.SetFlag(ctx, letsencrypt.FlagCertRequested))

	set, err = db.HasFlag(ctx, letsencrypt.FlagDisable)
	require.NoError(t, err)
	assert.True(t, set)

	names, err := db.Flags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{letsencrypt.FlagCertRequested, letsencrypt.FlagDisable}, names)

	require.NoError(t, db.ClearFlag(ctx, letsencrypt.FlagDisable))
	require.NoError(t, db.ClearFlag(ctx, letsencrypt.FlagDisable), "clearing an unset flag is a no-op")

	set, err = db.HasFlag(ctx, letsencrypt.FlagDisable)
	require.NoError(t, err)
	assert.False(t, set)

	names, err = db.Flags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{letsencrypt.FlagCertRequested}, names)
}

func TestStoreDrivesCharm(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	requests := []letsencrypt.CertificateRequest{{Domains: []string{"a.com", "b.com"}}}
	encoded, err := letsencrypt.EncodeRequests(requests)
	require.NoError(t, err)
	require.NoError(t, db.Set(ctx, letsencrypt.KeyRequests, encoded))

	loaded, err := letsencrypt.LoadRequests(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, requests, loaded)
}
