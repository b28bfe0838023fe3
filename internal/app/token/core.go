package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
)

const (
	FieldSessionID apperr.Field = "session_id"
	FieldToken     apperr.Field = "token"
	FieldScopes    apperr.Field = "scopes"
)

const (
	CodeSessionNotFound apperr.Code = "token/session_not_found"
	CodeSessionInactive apperr.Code = "token/session_inactive"
	CodeInvalidToken    apperr.Code = "token/invalid"
)

func ErrSessionNotFound() error {
	return apperr.New("session not found", CodeSessionNotFound, apperr.ClassNotFound, apperr.LogLevelWarn)
}

func ErrSessionInactive() error {
	return apperr.New("session is not active", CodeSessionInactive, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

type SessionBackend interface {
	GetState(ctx context.Context, sessionID uuid.UUID) (SessionState, error)
	UpdateRefreshTokenHash(ctx context.Context, sessionID uuid.UUID, oldHash, newHash string) error
}

// RevocationStore tracks both sides of a token's life: the jtis issued per
// session and the jtis revoked before their natural expiry. Both must be
// persistent and shared across instances, or rotation only covers tokens
// minted by the local process.
type RevocationStore interface {
	Add(ctx context.Context, jti, sessionID uuid.UUID, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error)
	RecordIssued(ctx context.Context, jti, sessionID uuid.UUID, expiresAt time.Time) error
	// RevokeSession moves every issued jti of the session onto the
	// revocation list in one step.
	RevokeSession(ctx context.Context, sessionID uuid.UUID) error
}

type Codec interface {
	GenerateToken(claims jwt.Claims) (string, error)
	DecodeToken(tokenStr string, claims jwt.Claims) error
}

type Hasher interface {
	HashRefreshToken(token []byte) ([]byte, error)
	CheckRefreshToken(token []byte, hash string) error
}

type UUIDGenerator interface {
	New() (uuid.UUID, error)
}

type TimeGenerator interface {
	Now() time.Time
}

type Config struct {
	AccessTokenTTLMinutes int `mapstructure:"access_token_ttl_minutes" json:"access_token_ttl_minutes"`
	RefreshTokenTTLHours  int `mapstructure:"refresh_token_ttl_hours" json:"refresh_token_ttl_hours"`
}

type core struct {
	backend     SessionBackend
	codec       Codec
	revocations RevocationStore
	hasher      Hasher
	idGen       UUIDGenerator
	timeGen     TimeGenerator
	cfg         Config
}

func NewCore(backend SessionBackend, codec Codec, revocations RevocationStore, hasher Hasher,
	idGen UUIDGenerator, timeGen TimeGenerator, cfg Config) *core {
	if cfg.AccessTokenTTLMinutes <= 0 || cfg.RefreshTokenTTLHours <= 0 {
		panic("token.core: invalid config")
	}
	if backend == nil || codec == nil || revocations == nil || hasher == nil || idGen == nil || timeGen == nil {
		panic("token.core: nil dependency")
	}

	return &core{
		backend:     backend,
		codec:       codec,
		revocations: revocations,
		hasher:      hasher,
		idGen:       idGen,
		timeGen:     timeGen,
		cfg:         cfg,
	}
}

// Mint issues an access+refresh pair for a session that is not yet persisted.
// It returns the bcrypt hash of the refresh token ID for the caller to store
// on the session record.
func (c *core) Mint(ctx context.Context, meta SessionMeta, scopes []string) (Pair, string, error) {
	now := c.timeGen.Now()

	access, err := c.mintAccess(ctx, meta, scopes, now)
	if err != nil {
		return Pair{}, "", fmt.Errorf("token.core.Mint: %w", err)
	}
	refresh, rtHash, err := c.mintRefresh(ctx, meta, now)
	if err != nil {
		return Pair{}, "", fmt.Errorf("token.core.Mint: %w", err)
	}

	return Pair{Access: access, Refresh: refresh}, rtHash, nil
}

func (c *core) IssueAccessToken(ctx context.Context, sessionID uuid.UUID, scopes []string) (Token, error) {
	state, err := c.activeState(ctx, sessionID)
	if err != nil {
		return Token{}, fmt.Errorf("token.core.IssueAccessToken: %w", err)
	}

	access, err := c.mintAccess(ctx, state.Meta, scopes, c.timeGen.Now())
	if err != nil {
		return Token{}, fmt.Errorf("token.core.IssueAccessToken: %w", err)
	}

	return access, nil
}

func (c *core) IssueRefreshToken(ctx context.Context, sessionID uuid.UUID) (Token, error) {
	state, err := c.activeState(ctx, sessionID)
	if err != nil {
		return Token{}, fmt.Errorf("token.core.IssueRefreshToken: %w", err)
	}

	refresh, rtHash, err := c.mintRefresh(ctx, state.Meta, c.timeGen.Now())
	if err != nil {
		return Token{}, fmt.Errorf("token.core.IssueRefreshToken: %w", err)
	}

	if err = c.backend.UpdateRefreshTokenHash(ctx, sessionID, state.RefreshTokenHash, rtHash); err != nil {
		return Token{}, fmt.Errorf("token.core.IssueRefreshToken: %w", err)
	}

	return refresh, nil
}

// Verify checks signature, expiry, revocation-list membership and that the
// referenced session is still active. It never returns an error for untrusted
// input; infrastructure failures (store unavailable) are the only error path.
func (c *core) Verify(ctx context.Context, tokenStr string) (VerificationResult, error) {
	var claims Claims
	if err := c.codec.DecodeToken(tokenStr, &claims); err != nil {
		return VerificationResult{Code: classifyDecodeError(err)}, nil
	}

	tok, err := claimsToToken(tokenStr, claims)
	if err != nil {
		return VerificationResult{Code: ValidationMalformed}, nil
	}

	revoked, err := c.revocations.IsRevoked(ctx, tok.ID)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("token.core.Verify: %w", err)
	}
	if revoked {
		return VerificationResult{Code: ValidationRevoked, Token: tok}, nil
	}

	state, err := c.backend.GetState(ctx, tok.SessionID)
	if err != nil {
		if apperr.ClassOf(err) == apperr.ClassNotFound {
			return VerificationResult{Code: ValidationSessionInactive, Token: tok}, nil
		}
		return VerificationResult{}, fmt.Errorf("token.core.Verify: %w", err)
	}
	if !state.Active || !state.Meta.SessionExpiresAt.After(c.timeGen.Now()) {
		return VerificationResult{Code: ValidationSessionInactive, Token: tok}, nil
	}

	return VerificationResult{IsValid: true, Token: tok}, nil
}

// RefreshAccessToken consumes a refresh token and rotates the pair. The
// presented token must carry the refresh scope, match the stored hash, not be
// revoked, and reference an active session. The session's own expiry is not
// extended here.
func (c *core) RefreshAccessToken(ctx context.Context, refreshTokenStr string) (Pair, error) {
	var claims Claims
	if err := c.codec.DecodeToken(refreshTokenStr, &claims); err != nil {
		return Pair{}, fmt.Errorf("token.core.RefreshAccessToken: %w", apperr.ErrUnauthorized().WithDetail(err.Error()))
	}
	tok, err := claimsToToken(refreshTokenStr, claims)
	if err != nil {
		return Pair{}, fmt.Errorf("token.core.RefreshAccessToken: %w", apperr.ErrUnauthorized().WithDetail("malformed claims"))
	}
	if !lo.Contains(tok.Scopes, ScopeRefresh) {
		return Pair{}, fmt.Errorf("token.core.RefreshAccessToken: %w",
			apperr.ErrUnauthorized().WithDetail("token does not carry the refresh scope"))
	}

	revoked, err := c.revocations.IsRevoked(ctx, tok.ID)
	if err != nil {
		return Pair{}, fmt.Errorf("token.core.RefreshAccessToken: %w", err)
	}
	if revoked {
		return Pair{}, fmt.Errorf("token.core.RefreshAccessToken: %w", apperr.ErrUnauthorized().WithDetail("token revoked"))
	}

	state, err := c.activeState(ctx, tok.SessionID)
	if err != nil {
		return Pair{}, fmt.Errorf("token.core.RefreshAccessToken: %w", err)
	}
	if err = c.hasher.CheckRefreshToken([]byte(tok.ID.String()), state.RefreshTokenHash); err != nil {
		return Pair{}, fmt.Errorf("token.core.RefreshAccessToken: %w", apperr.ErrUnauthorized().WithDetail("stale refresh token"))
	}

	now := c.timeGen.Now()
	access, err := c.mintAccess(ctx, state.Meta, nil, now)
	if err != nil {
		return Pair{}, fmt.Errorf("token.core.RefreshAccessToken: %w", err)
	}
	refresh, rtHash, err := c.mintRefresh(ctx, state.Meta, now)
	if err != nil {
		return Pair{}, fmt.Errorf("token.core.RefreshAccessToken: %w", err)
	}

	if err = c.backend.UpdateRefreshTokenHash(ctx, tok.SessionID, state.RefreshTokenHash, rtHash); err != nil {
		return Pair{}, fmt.Errorf("token.core.RefreshAccessToken: %w", err)
	}
	if err = c.revocations.Add(ctx, tok.ID, tok.SessionID, tok.ExpiresAt); err != nil {
		return Pair{}, fmt.Errorf("token.core.RefreshAccessToken: %w", err)
	}

	return Pair{Access: access, Refresh: refresh}, nil
}

// Revoke adds the token's identifier to the revocation list. Expired tokens
// may still be revoked; forged or malformed ones are rejected.
func (c *core) Revoke(ctx context.Context, tokenStr string) error {
	var claims Claims
	if err := c.codec.DecodeToken(tokenStr, &claims); err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("token.core.Revoke: %w",
			apperr.New("invalid token", CodeInvalidToken, apperr.ClassBadRequest, apperr.LogLevelWarn).WithDetail(err.Error()))
	}
	tok, err := claimsToToken(tokenStr, claims)
	if err != nil {
		return fmt.Errorf("token.core.Revoke: %w",
			apperr.New("invalid token", CodeInvalidToken, apperr.ClassBadRequest, apperr.LogLevelWarn))
	}

	if err = c.revocations.Add(ctx, tok.ID, tok.SessionID, tok.ExpiresAt); err != nil {
		return fmt.Errorf("token.core.Revoke: %w", err)
	}

	return nil
}

// Rotate issues a fresh access+refresh pair for the session and revokes every
// previously issued token. Old tokens fail verification as soon as Rotate
// returns.
func (c *core) Rotate(ctx context.Context, sessionID uuid.UUID) (Pair, error) {
	state, err := c.activeState(ctx, sessionID)
	if err != nil {
		return Pair{}, fmt.Errorf("token.core.Rotate: %w", err)
	}

	// Revoke before minting, so the new pair never lands on the revocation
	// list and old tokens are dead the moment replacements exist.
	if err = c.revocations.RevokeSession(ctx, sessionID); err != nil {
		return Pair{}, fmt.Errorf("token.core.Rotate: %w", err)
	}

	now := c.timeGen.Now()
	access, err := c.mintAccess(ctx, state.Meta, nil, now)
	if err != nil {
		return Pair{}, fmt.Errorf("token.core.Rotate: %w", err)
	}
	refresh, rtHash, err := c.mintRefresh(ctx, state.Meta, now)
	if err != nil {
		return Pair{}, fmt.Errorf("token.core.Rotate: %w", err)
	}
	if err = c.backend.UpdateRefreshTokenHash(ctx, sessionID, state.RefreshTokenHash, rtHash); err != nil {
		return Pair{}, fmt.Errorf("token.core.Rotate: %w", err)
	}

	return Pair{Access: access, Refresh: refresh}, nil
}

// RevokeSessionTokens revokes every token issued for the session. Used on
// session termination.
func (c *core) RevokeSessionTokens(ctx context.Context, sessionID uuid.UUID) error {
	if err := c.revocations.RevokeSession(ctx, sessionID); err != nil {
		return fmt.Errorf("token.core.RevokeSessionTokens: %w", err)
	}

	return nil
}

func (c *core) activeState(ctx context.Context, sessionID uuid.UUID) (SessionState, error) {
	if sessionID == uuid.Nil {
		return SessionState{}, apperr.ErrNilUUID(FieldSessionID)
	}

	state, err := c.backend.GetState(ctx, sessionID)
	if err != nil {
		return SessionState{}, err
	}
	if !state.Active {
		return SessionState{}, ErrSessionInactive()
	}

	return state, nil
}

func (c *core) mintAccess(ctx context.Context, meta SessionMeta, scopes []string, now time.Time) (Token, error) {
	scopes = lo.Without(scopes, ScopeRefresh)

	jti, err := c.idGen.New()
	if err != nil {
		return Token{}, fmt.Errorf("mintAccess: %w", err)
	}

	expiresAt := now.Add(time.Duration(c.cfg.AccessTokenTTLMinutes) * time.Minute)
	// An access token never outlives its session.
	if !meta.SessionExpiresAt.IsZero() && meta.SessionExpiresAt.Before(expiresAt) {
		expiresAt = meta.SessionExpiresAt
	}

	value, err := c.sign(meta, jti, scopes, now, expiresAt)
	if err != nil {
		return Token{}, fmt.Errorf("mintAccess: %w", err)
	}

	if err = c.revocations.RecordIssued(ctx, jti, meta.SessionID, expiresAt); err != nil {
		return Token{}, fmt.Errorf("mintAccess: %w", err)
	}

	return Token{
		Value:     value,
		Type:      TypeAccess,
		ID:        jti,
		SessionID: meta.SessionID,
		UserID:    meta.UserID,
		DeviceID:  meta.DeviceID,
		TenantID:  meta.TenantID,
		Scopes:    scopes,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

func (c *core) mintRefresh(ctx context.Context, meta SessionMeta, now time.Time) (Token, string, error) {
	jti, err := c.idGen.New()
	if err != nil {
		return Token{}, "", fmt.Errorf("mintRefresh: %w", err)
	}

	expiresAt := now.Add(time.Duration(c.cfg.RefreshTokenTTLHours) * time.Hour)
	scopes := []string{ScopeRefresh}

	value, err := c.sign(meta, jti, scopes, now, expiresAt)
	if err != nil {
		return Token{}, "", fmt.Errorf("mintRefresh: %w", err)
	}

	rtHash, err := c.hasher.HashRefreshToken([]byte(jti.String()))
	if err != nil {
		return Token{}, "", fmt.Errorf("mintRefresh: %w", err)
	}

	if err = c.revocations.RecordIssued(ctx, jti, meta.SessionID, expiresAt); err != nil {
		return Token{}, "", fmt.Errorf("mintRefresh: %w", err)
	}

	return Token{
		Value:     value,
		Type:      TypeRefresh,
		ID:        jti,
		SessionID: meta.SessionID,
		UserID:    meta.UserID,
		DeviceID:  meta.DeviceID,
		TenantID:  meta.TenantID,
		Scopes:    scopes,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, string(rtHash), nil
}

func (c *core) sign(meta SessionMeta, jti uuid.UUID, scopes []string, now, expiresAt time.Time) (string, error) {
	claims := Claims{
		SID:    meta.SessionID.String(),
		DID:    meta.DeviceID,
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   meta.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if meta.TenantID != nil {
		claims.TID = meta.TenantID.String()
	}

	return c.codec.GenerateToken(claims)
}

func classifyDecodeError(err error) ValidationCode {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ValidationExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ValidationMalformed
	default:
		return ValidationInvalid
	}
}

func claimsToToken(value string, claims Claims) (Token, error) {
	sid, err := uuid.Parse(claims.SID)
	if err != nil {
		return Token{}, fmt.Errorf("claimsToToken: session id: %w", err)
	}
	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Token{}, fmt.Errorf("claimsToToken: subject: %w", err)
	}
	jti, err := uuid.Parse(claims.ID)
	if err != nil {
		return Token{}, fmt.Errorf("claimsToToken: jti: %w", err)
	}

	tok := Token{
		Value:     value,
		Type:      TypeAccess,
		ID:        jti,
		SessionID: sid,
		UserID:    sub,
		DeviceID:  claims.DID,
		Scopes:    claims.Scopes,
	}
	if lo.Contains(claims.Scopes, ScopeRefresh) {
		tok.Type = TypeRefresh
	}
	if claims.TID != "" {
		tid, err := uuid.Parse(claims.TID)
		if err != nil {
			return Token{}, fmt.Errorf("claimsToToken: tenant id: %w", err)
		}
		tok.TenantID = &tid
	}
	if claims.IssuedAt != nil {
		tok.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		tok.ExpiresAt = claims.ExpiresAt.Time
	}

	return tok, nil
}
