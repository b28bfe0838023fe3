package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/app/risk"
	"github.com/teelink/clubauth/internal/app/token"
)

type SecurityLevel string

const (
	SecurityBasic    SecurityLevel = "basic"
	SecurityStandard SecurityLevel = "standard"
	SecurityEnhanced SecurityLevel = "enhanced"
)

type DeviceInfo struct {
	DeviceID              string   `json:"device_id"`
	Platform              string   `json:"platform"`
	OSVersion             string   `json:"os_version"`
	Jailbroken            bool     `json:"jailbroken"`
	Emulator              bool     `json:"emulator"`
	BiometricCapabilities []string `json:"biometric_capabilities,omitempty"`
}

// Location is a geo-point resolved from the client's connection, with the
// egress flags the risk evaluator scores.
type Location struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Country   string    `json:"country,omitempty"`
	VPN       bool      `json:"vpn"`
	Tor       bool      `json:"tor"`
	Timestamp time.Time `json:"timestamp"`
}

func (l *Location) point() *risk.GeoPoint {
	if l == nil {
		return nil
	}
	return &risk.GeoPoint{Lat: l.Lat, Lon: l.Lon}
}

type Activity struct {
	Action string    `json:"action"`
	At     time.Time `json:"at"`
}

// Metadata is a bag of known optional flags. Only the keys below are written
// by this package.
type Metadata map[string]string

const (
	MetaQuarantineReason  = "quarantine_reason"
	MetaQuarantinedAt     = "quarantined_at"
	MetaTerminationReason = "termination_reason"
)

// Session binds one authenticated user to one device for a bounded window.
// Termination is one-way: IsActive never transitions back to true.
type Session struct {
	ID                uuid.UUID     `json:"id"`
	UserID            uuid.UUID     `json:"user_id"`
	TenantID          *uuid.UUID    `json:"tenant_id,omitempty"`
	DeviceID          string        `json:"device_id"`
	DeviceInfo        DeviceInfo    `json:"device_info"`
	CreatedAt         time.Time     `json:"created_at"`
	LastAccessedAt    time.Time     `json:"last_accessed_at"`
	ExpiresAt         time.Time     `json:"expires_at"`
	IPAddress         string        `json:"ip_address,omitempty"`
	Location          *Location     `json:"location,omitempty"`
	IsActive          bool          `json:"is_active"`
	IsTrusted         bool          `json:"is_trusted"`
	SecurityLevel     SecurityLevel `json:"security_level"`
	Activities        []Activity    `json:"activities,omitempty"`
	FailedValidations int           `json:"failed_validations"`
	LockedUntil       *time.Time    `json:"locked_until,omitempty"`
	Metadata          Metadata      `json:"metadata,omitempty"`
}

func (s Session) meta() token.SessionMeta {
	return token.SessionMeta{
		SessionID:        s.ID,
		UserID:           s.UserID,
		DeviceID:         s.DeviceID,
		TenantID:         s.TenantID,
		SessionExpiresAt: s.ExpiresAt,
	}
}

type CreateSessionReq struct {
	UserID     uuid.UUID  `json:"user_id"`
	TenantID   *uuid.UUID `json:"tenant_id,omitempty"`
	DeviceInfo DeviceInfo `json:"device_info"`
	IPAddress  string     `json:"ip_address,omitempty"`
	Location   *Location  `json:"location,omitempty"`
	LocalHour  int        `json:"local_hour"` // -1 when unknown
	Scopes     []string   `json:"scopes,omitempty"`
}

// CreationResult carries the new session, its credentials and any advisory
// warnings that did not block creation.
type CreationResult struct {
	Session           Session     `json:"session"`
	AccessToken       token.Token `json:"access_token"`
	RefreshToken      token.Token `json:"refresh_token"`
	DeviceTrusted     bool        `json:"device_trusted"`
	LocationValidated bool        `json:"location_validated"`
	Warnings          []string    `json:"warnings,omitempty"`
}

type InvalidReason string

const (
	ReasonNotFound        InvalidReason = "session_not_found"
	ReasonExpired         InvalidReason = "session_expired"
	ReasonTerminated      InvalidReason = "session_terminated"
	ReasonIdleTimeout     InvalidReason = "idle_timeout"
	ReasonLockedOut       InvalidReason = "locked_out"
	ReasonUntrustedDevice InvalidReason = "untrusted_device"
	ReasonSuspicious      InvalidReason = "suspicious_activity"
)

// SecurityStatus is a point-in-time snapshot attached to validation results.
type SecurityStatus struct {
	RiskScore     float64       `json:"risk_score"`
	DeviceTrusted bool          `json:"device_trusted"`
	KnownLocation bool          `json:"known_location"`
	Anomalies     []risk.Reason `json:"anomalies,omitempty"`
}

type ValidationResult struct {
	IsValid        bool           `json:"is_valid"`
	Reason         InvalidReason  `json:"reason,omitempty"`
	RequiresReauth bool           `json:"requires_reauth"`
	SecurityStatus SecurityStatus `json:"security_status"`
	RemainingTime  time.Duration  `json:"remaining_time"`
	Session        *Session       `json:"session,omitempty"`
}

type RefreshResult struct {
	Session                Session      `json:"session"`
	Refreshed              bool         `json:"refreshed"`
	AccessToken            *token.Token `json:"access_token,omitempty"`
	RequiresAdditionalAuth bool         `json:"requires_additional_auth"`
	FailedChecks           []string     `json:"failed_checks,omitempty"`
}

// Termination reasons recorded in session metadata and lifecycle events.
const (
	TerminationExplicit    = "explicit"
	TerminationExpired     = "expired"
	TerminationEvicted     = "session_limit_evicted"
	TerminationQuarantined = "quarantined"
	TerminationBulk        = "bulk"
)
