package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teelink/clubauth/internal/app/token"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
	"github.com/teelink/clubauth/internal/infrastructure/secure"
	"github.com/teelink/clubauth/internal/infrastructure/system"
)

type fakeBackend struct {
	states map[uuid.UUID]token.SessionState
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{states: make(map[uuid.UUID]token.SessionState)}
}

func (b *fakeBackend) GetState(_ context.Context, sessionID uuid.UUID) (token.SessionState, error) {
	state, ok := b.states[sessionID]
	if !ok {
		return token.SessionState{}, token.ErrSessionNotFound()
	}
	return state, nil
}

func (b *fakeBackend) UpdateRefreshTokenHash(_ context.Context, sessionID uuid.UUID, oldHash, newHash string) error {
	state, ok := b.states[sessionID]
	if !ok {
		return token.ErrSessionNotFound()
	}
	if state.RefreshTokenHash != oldHash {
		return apperr.ErrConflict()
	}
	state.RefreshTokenHash = newHash
	b.states[sessionID] = state
	return nil
}

type fixedTime struct{ now time.Time }

func (t *fixedTime) Now() time.Time { return t.now }

type fixture struct {
	core    coreAPI
	backend *fakeBackend
	clock   *fixedTime
	store   *token.MemoryRevocationStore
}

type coreAPI interface {
	Mint(ctx context.Context, meta token.SessionMeta, scopes []string) (token.Pair, string, error)
	IssueAccessToken(ctx context.Context, sessionID uuid.UUID, scopes []string) (token.Token, error)
	IssueRefreshToken(ctx context.Context, sessionID uuid.UUID) (token.Token, error)
	Verify(ctx context.Context, tokenStr string) (token.VerificationResult, error)
	RefreshAccessToken(ctx context.Context, refreshTokenStr string) (token.Pair, error)
	Revoke(ctx context.Context, tokenStr string) error
	Rotate(ctx context.Context, sessionID uuid.UUID) (token.Pair, error)
	RevokeSessionTokens(ctx context.Context, sessionID uuid.UUID) error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := newFakeBackend()
	clock := &fixedTime{now: time.Now().UTC().Truncate(time.Second)}
	store := token.NewMemoryRevocationStore()

	c := token.NewCore(backend, secure.NewTokenCodec([]byte("test-secret")), store, secure.NewTokenHasher(),
		&system.UUIDv7Generator{}, clock, token.Config{AccessTokenTTLMinutes: 15, RefreshTokenTTLHours: 720})

	return &fixture{core: c, backend: backend, clock: clock, store: store}
}

func (f *fixture) addSession(t *testing.T, expiresAt time.Time) token.SessionMeta {
	t.Helper()

	tenantID := uuid.New()
	meta := token.SessionMeta{
		SessionID:        uuid.New(),
		UserID:           uuid.New(),
		DeviceID:         "device-1",
		TenantID:         &tenantID,
		SessionExpiresAt: expiresAt,
	}
	f.backend.states[meta.SessionID] = token.SessionState{Meta: meta, Active: true}

	return meta
}

// mintFor creates a session, mints its initial pair and stores the refresh hash
// the way the session layer does on creation.
func (f *fixture) mintFor(t *testing.T, ctx context.Context, expiresAt time.Time) (token.SessionMeta, token.Pair) {
	t.Helper()

	meta := f.addSession(t, expiresAt)
	pair, rtHash, err := f.core.Mint(ctx, meta, []string{"booking:read"})
	require.NoError(t, err)

	state := f.backend.states[meta.SessionID]
	state.RefreshTokenHash = rtHash
	f.backend.states[meta.SessionID] = state

	return meta, pair
}

func TestCore_Mint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	meta, pair := f.mintFor(t, ctx, f.clock.now.Add(24*time.Hour))

	assert.Equal(t, token.TypeAccess, pair.Access.Type)
	assert.Equal(t, token.TypeRefresh, pair.Refresh.Type)
	assert.Equal(t, meta.SessionID, pair.Access.SessionID)
	assert.Equal(t, meta.UserID, pair.Access.UserID)
	assert.Equal(t, []string{"booking:read"}, pair.Access.Scopes)
	assert.NotContains(t, pair.Access.Scopes, token.ScopeRefresh)
	assert.Equal(t, []string{token.ScopeRefresh}, pair.Refresh.Scopes)
	assert.Equal(t, f.clock.now.Add(15*time.Minute), pair.Access.ExpiresAt)
	assert.Equal(t, f.clock.now.Add(720*time.Hour), pair.Refresh.ExpiresAt)

	err := secure.NewTokenHasher().CheckRefreshToken(
		[]byte(pair.Refresh.ID.String()), f.backend.states[meta.SessionID].RefreshTokenHash)
	assert.NoError(t, err)
}

func TestCore_Mint_AccessCappedAtSessionExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	sessionExpiry := f.clock.now.Add(5 * time.Minute)
	_, pair := f.mintFor(t, ctx, sessionExpiry)

	assert.Equal(t, sessionExpiry, pair.Access.ExpiresAt)
}

func TestCore_IssueAccessToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("strips the refresh scope", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		meta := f.addSession(t, f.clock.now.Add(24*time.Hour))

		got, err := f.core.IssueAccessToken(ctx, meta.SessionID, []string{"booking:read", token.ScopeRefresh})
		require.NoError(t, err)
		assert.Equal(t, []string{"booking:read"}, got.Scopes)
		assert.Equal(t, token.TypeAccess, got.Type)
	})

	t.Run("unknown session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.core.IssueAccessToken(ctx, uuid.New(), nil)
		assert.Equal(t, apperr.ClassNotFound, apperr.ClassOf(err))
	})

	t.Run("inactive session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		meta := f.addSession(t, f.clock.now.Add(24*time.Hour))
		state := f.backend.states[meta.SessionID]
		state.Active = false
		f.backend.states[meta.SessionID] = state

		_, err := f.core.IssueAccessToken(ctx, meta.SessionID, nil)
		assert.Equal(t, apperr.ClassUnauthorized, apperr.ClassOf(err))
	})
}

func TestCore_Verify(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid access token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		meta, pair := f.mintFor(t, ctx, f.clock.now.Add(24*time.Hour))

		res, err := f.core.Verify(ctx, pair.Access.Value)
		require.NoError(t, err)
		assert.True(t, res.IsValid)
		assert.Equal(t, meta.SessionID, res.Token.SessionID)
		assert.Equal(t, meta.UserID, res.Token.UserID)
		assert.Equal(t, pair.Access.ID, res.Token.ID)
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		// Session expiry in the past caps the access token into the past.
		_, pair := f.mintFor(t, ctx, f.clock.now.Add(-time.Hour))

		res, err := f.core.Verify(ctx, pair.Access.Value)
		require.NoError(t, err)
		assert.False(t, res.IsValid)
		assert.Equal(t, token.ValidationExpired, res.Code)
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		res, err := f.core.Verify(ctx, "not-a-jwt")
		require.NoError(t, err)
		assert.False(t, res.IsValid)
		assert.Equal(t, token.ValidationMalformed, res.Code)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		other := newFixture(t)
		otherCodecCore := token.NewCore(other.backend, secure.NewTokenCodec([]byte("other-secret")),
			other.store, secure.NewTokenHasher(), &system.UUIDv7Generator{}, other.clock,
			token.Config{AccessTokenTTLMinutes: 15, RefreshTokenTTLHours: 720})
		meta := other.addSession(t, other.clock.now.Add(24*time.Hour))
		pair, _, err := otherCodecCore.Mint(ctx, meta, nil)
		require.NoError(t, err)

		res, err := f.core.Verify(ctx, pair.Access.Value)
		require.NoError(t, err)
		assert.False(t, res.IsValid)
		assert.Equal(t, token.ValidationInvalid, res.Code)
	})

	t.Run("revoked", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, pair := f.mintFor(t, ctx, f.clock.now.Add(24*time.Hour))

		require.NoError(t, f.core.Revoke(ctx, pair.Access.Value))

		res, err := f.core.Verify(ctx, pair.Access.Value)
		require.NoError(t, err)
		assert.False(t, res.IsValid)
		assert.Equal(t, token.ValidationRevoked, res.Code)
	})

	t.Run("terminated session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		meta, pair := f.mintFor(t, ctx, f.clock.now.Add(24*time.Hour))
		state := f.backend.states[meta.SessionID]
		state.Active = false
		f.backend.states[meta.SessionID] = state

		res, err := f.core.Verify(ctx, pair.Access.Value)
		require.NoError(t, err)
		assert.False(t, res.IsValid)
		assert.Equal(t, token.ValidationSessionInactive, res.Code)
	})

	t.Run("deleted session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		meta, pair := f.mintFor(t, ctx, f.clock.now.Add(24*time.Hour))
		delete(f.backend.states, meta.SessionID)

		res, err := f.core.Verify(ctx, pair.Access.Value)
		require.NoError(t, err)
		assert.False(t, res.IsValid)
		assert.Equal(t, token.ValidationSessionInactive, res.Code)
	})
}

func TestCore_RefreshAccessToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rotates the pair and revokes the old refresh token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		meta, pair := f.mintFor(t, ctx, f.clock.now.Add(24*time.Hour))

		next, err := f.core.RefreshAccessToken(ctx, pair.Refresh.Value)
		require.NoError(t, err)
		assert.NotEqual(t, pair.Refresh.ID, next.Refresh.ID)
		assert.Equal(t, meta.SessionID, next.Access.SessionID)

		res, err := f.core.Verify(ctx, pair.Refresh.Value)
		require.NoError(t, err)
		assert.Equal(t, token.ValidationRevoked, res.Code)

		res, err = f.core.Verify(ctx, next.Access.Value)
		require.NoError(t, err)
		assert.True(t, res.IsValid)
	})

	t.Run("rejects an access token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, pair := f.mintFor(t, ctx, f.clock.now.Add(24*time.Hour))

		_, err := f.core.RefreshAccessToken(ctx, pair.Access.Value)
		assert.Equal(t, apperr.ClassUnauthorized, apperr.ClassOf(err))
	})

	t.Run("rejects a refresh token that no longer matches the stored hash", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		meta, pair := f.mintFor(t, ctx, f.clock.now.Add(24*time.Hour))

		// A second issue supersedes the stored hash without touching the
		// revocation list.
		_, err := f.core.IssueRefreshToken(ctx, meta.SessionID)
		require.NoError(t, err)

		_, err = f.core.RefreshAccessToken(ctx, pair.Refresh.Value)
		assert.Equal(t, apperr.ClassUnauthorized, apperr.ClassOf(err))
	})

	t.Run("rejects when the session was terminated", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		meta, pair := f.mintFor(t, ctx, f.clock.now.Add(24*time.Hour))
		state := f.backend.states[meta.SessionID]
		state.Active = false
		f.backend.states[meta.SessionID] = state

		_, err := f.core.RefreshAccessToken(ctx, pair.Refresh.Value)
		assert.Equal(t, apperr.ClassUnauthorized, apperr.ClassOf(err))
	})
}

func TestCore_Rotate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	meta, pair := f.mintFor(t, ctx, f.clock.now.Add(24*time.Hour))

	next, err := f.core.Rotate(ctx, meta.SessionID)
	require.NoError(t, err)

	for _, old := range []token.Token{pair.Access, pair.Refresh} {
		res, err := f.core.Verify(ctx, old.Value)
		require.NoError(t, err)
		assert.Equal(t, token.ValidationRevoked, res.Code)
	}

	res, err := f.core.Verify(ctx, next.Access.Value)
	require.NoError(t, err)
	assert.True(t, res.IsValid)

	// The rotated refresh token is the one the session now accepts.
	_, err = f.core.RefreshAccessToken(ctx, next.Refresh.Value)
	assert.NoError(t, err)
}

// Two cores sharing the same backend and revocation store stand in for two
// instances of the service. A rotation handled by one instance must kill
// tokens minted by the other.
func TestCore_Rotate_CoversTokensMintedElsewhere(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	second := token.NewCore(f.backend, secure.NewTokenCodec([]byte("test-secret")), f.store,
		secure.NewTokenHasher(), &system.UUIDv7Generator{}, f.clock,
		token.Config{AccessTokenTTLMinutes: 15, RefreshTokenTTLHours: 720})

	meta, pair := f.mintFor(t, ctx, f.clock.now.Add(24*time.Hour))

	next, err := second.Rotate(ctx, meta.SessionID)
	require.NoError(t, err)

	for _, old := range []token.Token{pair.Access, pair.Refresh} {
		res, err := second.Verify(ctx, old.Value)
		require.NoError(t, err)
		assert.Equal(t, token.ValidationRevoked, res.Code)
	}

	res, err := f.core.Verify(ctx, next.Access.Value)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
}

func TestCore_RevokeSessionTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	meta, pair := f.mintFor(t, ctx, f.clock.now.Add(24*time.Hour))
	extra, err := f.core.IssueAccessToken(ctx, meta.SessionID, []string{"booking:read"})
	require.NoError(t, err)

	require.NoError(t, f.core.RevokeSessionTokens(ctx, meta.SessionID))

	for _, tok := range []token.Token{pair.Access, pair.Refresh, extra} {
		res, err := f.core.Verify(ctx, tok.Value)
		require.NoError(t, err)
		assert.Equal(t, token.ValidationRevoked, res.Code)
	}
}

func TestCore_Revoke_MalformedToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	err := f.core.Revoke(context.Background(), "garbage")
	assert.Equal(t, apperr.ClassBadRequest, apperr.ClassOf(err))
}

func TestMemoryRevocationStore_PurgeExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := token.NewMemoryRevocationStore()
	now := time.Now().UTC()

	expired := uuid.New()
	live := uuid.New()
	require.NoError(t, store.Add(ctx, expired, uuid.New(), now.Add(-time.Minute)))
	require.NoError(t, store.Add(ctx, live, uuid.New(), now.Add(time.Hour)))

	assert.Equal(t, 1, store.PurgeExpired(now))

	revoked, err := store.IsRevoked(ctx, expired)
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = store.IsRevoked(ctx, live)
	require.NoError(t, err)
	assert.True(t, revoked)
}
