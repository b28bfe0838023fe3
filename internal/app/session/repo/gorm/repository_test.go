//go:build testutil

package gorm

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teelink/clubauth/internal/app/session"
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

func newSession(userID uuid.UUID, now time.Time) session.Session {
	tenantID := uuid.New()
	return session.Session{
		ID:       uuid.New(),
		UserID:   userID,
		TenantID: &tenantID,
		DeviceID: "device-1",
		DeviceInfo: session.DeviceInfo{
			DeviceID: "device-1", Platform: "ios", OSVersion: "17.4",
			BiometricCapabilities: []string{"face_id"},
		},
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(24 * time.Hour),
		IPAddress:      "203.0.113.10",
		Location:       &session.Location{Lat: 51.5, Lon: -0.1, Country: "GB", Timestamp: now},
		IsActive:       true,
		IsTrusted:      true,
		SecurityLevel:  session.SecurityEnhanced,
	}
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)

	now := time.Now().UTC().Truncate(time.Second)
	sess := newSession(uuid.New(), now)

	require.NoError(t, repo.Create(t.Context(), sess, "hash-1"))

	got, rtHash, err := repo.Get(t.Context(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-1", rtHash)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, sess.DeviceInfo, got.DeviceInfo)
	require.NotNil(t, got.Location)
	assert.Equal(t, sess.Location.Country, got.Location.Country)
	assert.Equal(t, session.SecurityEnhanced, got.SecurityLevel)
	assert.True(t, got.IsActive)

	_, _, err = repo.Get(t.Context(), uuid.New())
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeviceSeen(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)

	now := time.Now().UTC().Truncate(time.Second)
	sess := newSession(uuid.New(), now)
	require.NoError(t, repo.Create(t.Context(), sess, "hash-1"))

	// Terminated sessions still count.
	_, err := repo.Terminate(t.Context(), sess.ID, now, session.TerminationExplicit)
	require.NoError(t, err)

	seen, err := repo.DeviceSeen(t.Context(), sess.UserID, sess.DeviceID)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = repo.DeviceSeen(t.Context(), sess.UserID, "device-other")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = repo.DeviceSeen(t.Context(), uuid.New(), sess.DeviceID)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestTerminate_Idempotent(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)

	now := time.Now().UTC().Truncate(time.Second)
	sess := newSession(uuid.New(), now)
	require.NoError(t, repo.Create(t.Context(), sess, "hash-1"))

	changed, err := repo.Terminate(t.Context(), sess.ID, now, session.TerminationExplicit)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Terminate(t.Context(), sess.ID, now, session.TerminationExplicit)
	require.NoError(t, err)
	assert.False(t, changed)

	got, _, err := repo.Get(t.Context(), sess.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, session.TerminationExplicit, got.Metadata[session.MetaTerminationReason])

	// Unknown id is a no-op, not an error.
	changed, err = repo.Terminate(t.Context(), uuid.New(), now, session.TerminationExplicit)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestQuarantine(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)

	now := time.Now().UTC().Truncate(time.Second)
	sess := newSession(uuid.New(), now)
	require.NoError(t, repo.Create(t.Context(), sess, "hash-1"))

	changed, err := repo.Quarantine(t.Context(), sess.ID, now, "compromised")
	require.NoError(t, err)
	assert.True(t, changed)

	got, _, err := repo.Get(t.Context(), sess.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.False(t, got.IsTrusted)
	assert.Equal(t, "compromised", got.Metadata[session.MetaQuarantineReason])
}

func TestUpdateRefreshTokenHash_CAS(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)

	now := time.Now().UTC().Truncate(time.Second)
	sess := newSession(uuid.New(), now)
	require.NoError(t, repo.Create(t.Context(), sess, "hash-1"))

	require.NoError(t, repo.UpdateRefreshTokenHash(t.Context(), sess.ID, "hash-1", "hash-2"))
	require.ErrorIs(t, repo.UpdateRefreshTokenHash(t.Context(), sess.ID, "hash-1", "hash-3"), ErrSessionNotFound)

	_, rtHash, err := repo.Get(t.Context(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-2", rtHash)
}

func TestListActiveAndExpired(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)

	now := time.Now().UTC().Truncate(time.Second)
	userID := uuid.New()

	live := newSession(userID, now)
	require.NoError(t, repo.Create(t.Context(), live, "h1"))

	stale := newSession(userID, now.Add(-48*time.Hour))
	stale.ExpiresAt = now.Add(-24 * time.Hour)
	require.NoError(t, repo.Create(t.Context(), stale, "h2"))

	closed := newSession(userID, now)
	closed.IsActive = false
	require.NoError(t, repo.Create(t.Context(), closed, "h3"))

	active, err := repo.ListActiveByUser(t.Context(), userID)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	expired, err := repo.ListExpired(t.Context(), now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)
}

func TestAppendActivityAndTouch(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)

	now := time.Now().UTC().Truncate(time.Second)
	sess := newSession(uuid.New(), now)
	require.NoError(t, repo.Create(t.Context(), sess, "h1"))

	require.NoError(t, repo.AppendActivity(t.Context(), sess.ID, session.Activity{Action: "book_tee_time", At: now}))
	require.NoError(t, repo.AppendActivity(t.Context(), sess.ID, session.Activity{Action: "view_leaderboard", At: now}))

	later := now.Add(time.Hour)
	require.NoError(t, repo.Touch(t.Context(), sess.ID, later))

	got, _, err := repo.Get(t.Context(), sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Activities, 2)
	assert.Equal(t, "book_tee_time", got.Activities[0].Action)
	assert.Equal(t, later, got.LastAccessedAt.UTC())
}
