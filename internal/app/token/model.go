package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// ScopeRefresh marks refresh tokens. Access tokens must never carry it.
const ScopeRefresh = "refresh"

type Claims struct {
	SID    string   `json:"sid"` // session_id
	DID    string   `json:"did,omitempty"`
	TID    string   `json:"tid,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

type Token struct {
	Value     string     `json:"value"`
	Type      Type       `json:"type"`
	ID        uuid.UUID  `json:"id"`
	SessionID uuid.UUID  `json:"session_id"`
	UserID    uuid.UUID  `json:"user_id"`
	DeviceID  string     `json:"device_id,omitempty"`
	TenantID  *uuid.UUID `json:"tenant_id,omitempty"`
	Scopes    []string   `json:"scopes,omitempty"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

type Pair struct {
	Access  Token `json:"access"`
	Refresh Token `json:"refresh"`
}

// SessionMeta is the session-derived material a token is bound to.
type SessionMeta struct {
	SessionID        uuid.UUID
	UserID           uuid.UUID
	DeviceID         string
	TenantID         *uuid.UUID
	SessionExpiresAt time.Time
}

// SessionState is what the token core needs to know about a session when
// issuing or verifying against it.
type SessionState struct {
	Meta             SessionMeta
	Active           bool
	RefreshTokenHash string
}

type ValidationCode string

const (
	ValidationExpired         ValidationCode = "expired"
	ValidationMalformed       ValidationCode = "malformed"
	ValidationInvalid         ValidationCode = "invalid_token"
	ValidationRevoked         ValidationCode = "revoked"
	ValidationSessionInactive ValidationCode = "session_inactive"
)

// VerificationResult is the structured outcome of Verify. Verification never
// raises for untrusted input; a failed check yields IsValid=false with the
// specific code.
type VerificationResult struct {
	IsValid bool           `json:"is_valid"`
	Code    ValidationCode `json:"code,omitempty"`
	Token   Token          `json:"token,omitempty"` // decoded claims when parseable
}
