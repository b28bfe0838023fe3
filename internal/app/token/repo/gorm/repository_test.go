//go:build testutil

package gorm

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teelink/clubauth/internal/infrastructure/db"
)

var shared *db.TestDB

func TestMain(m *testing.M) {
	var stop func()
	shared, stop = db.StartPostgres()
	code := m.Run()
	stop()
	os.Exit(code)
}

func newRepo(t *testing.T) *gormRepo {
	gdb, _, cleanup := shared.CreateIsolatedDB(t)
	t.Cleanup(cleanup)
	return NewRepository(gdb)
}

func TestAddAndIsRevoked(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)

	jti := uuid.New()
	sessionID := uuid.New()
	expiresAt := time.Now().UTC().Add(time.Hour)

	revoked, err := repo.IsRevoked(t.Context(), jti)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, repo.Add(t.Context(), jti, sessionID, expiresAt))
	// Revoking again is a no-op.
	require.NoError(t, repo.Add(t.Context(), jti, sessionID, expiresAt))

	revoked, err = repo.IsRevoked(t.Context(), jti)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRevokeSession(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)

	sessionID := uuid.New()
	otherSession := uuid.New()
	expiresAt := time.Now().UTC().Add(time.Hour)

	first := uuid.New()
	second := uuid.New()
	other := uuid.New()
	require.NoError(t, repo.RecordIssued(t.Context(), first, sessionID, expiresAt))
	require.NoError(t, repo.RecordIssued(t.Context(), second, sessionID, expiresAt))
	require.NoError(t, repo.RecordIssued(t.Context(), other, otherSession, expiresAt))

	// One of the session's tokens was already revoked individually.
	require.NoError(t, repo.Add(t.Context(), first, sessionID, expiresAt))

	require.NoError(t, repo.RevokeSession(t.Context(), sessionID))

	for _, jti := range []uuid.UUID{first, second} {
		revoked, err := repo.IsRevoked(t.Context(), jti)
		require.NoError(t, err)
		assert.True(t, revoked)
	}

	revoked, err := repo.IsRevoked(t.Context(), other)
	require.NoError(t, err)
	assert.False(t, revoked)

	// The issued rows are consumed, so revoking again changes nothing.
	require.NoError(t, repo.RevokeSession(t.Context(), sessionID))
}

func TestPurgeExpired(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)

	now := time.Now().UTC()
	sessionID := uuid.New()

	stale := uuid.New()
	live := uuid.New()
	require.NoError(t, repo.Add(t.Context(), stale, sessionID, now.Add(-time.Minute)))
	require.NoError(t, repo.Add(t.Context(), live, sessionID, now.Add(time.Hour)))
	require.NoError(t, repo.RecordIssued(t.Context(), uuid.New(), sessionID, now.Add(-time.Minute)))

	purged, err := repo.PurgeExpired(t.Context(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, purged)

	revoked, err := repo.IsRevoked(t.Context(), stale)
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = repo.IsRevoked(t.Context(), live)
	require.NoError(t, err)
	assert.True(t, revoked)
}
