package policy

import (
	"fmt"
	"time"
)

// GeofencingRule restricts session creation to (or away from) a circular area.
type GeofencingRule struct {
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKM float64 `json:"radius_km"`
	Allow    bool    `json:"allow"` // true: inside is allowed; false: inside is blocked
}

// SessionPolicy is the per-tenant security configuration. A copy fetched for
// one evaluation is never mutated; administrative updates go through
// Store.Set, which invalidates the cached entry.
type SessionPolicy struct {
	MaxConcurrentSessions     int              `json:"max_concurrent_sessions"`
	SessionTimeout            time.Duration    `json:"session_timeout"`
	IdleTimeout               time.Duration    `json:"idle_timeout"`
	RequireLocationValidation bool             `json:"require_location_validation"`
	AllowedCountries          []string         `json:"allowed_countries,omitempty"`
	BlockedCountries          []string         `json:"blocked_countries,omitempty"`
	RequireDeviceTrust        bool             `json:"require_device_trust"`
	EnableAnomalyDetection    bool             `json:"enable_anomaly_detection"`
	MaxFailedValidations      int              `json:"max_failed_validations"`
	LockoutDuration           time.Duration    `json:"lockout_duration"`
	RequireMFAForSensitiveOps bool             `json:"require_mfa_for_sensitive_ops"`
	AllowVPNConnections       bool             `json:"allow_vpn_connections"`
	AllowTorConnections       bool             `json:"allow_tor_connections"`
	GeofencingRules           []GeofencingRule `json:"geofencing_rules,omitempty"`
	// RejectOnLimit switches the concurrent-session overflow behavior from
	// evicting the oldest session (default) to rejecting the new one.
	RejectOnLimit bool `json:"reject_on_limit"`
}

// Default returns the platform-wide policy applied to tenants without an
// explicit record.
func Default() SessionPolicy {
	return SessionPolicy{
		MaxConcurrentSessions:  5,
		SessionTimeout:         24 * time.Hour,
		IdleTimeout:            2 * time.Hour,
		EnableAnomalyDetection: true,
		MaxFailedValidations:   5,
		LockoutDuration:        30 * time.Minute,
		AllowVPNConnections:    true,
	}
}

func (p SessionPolicy) Validate() error {
	if p.MaxConcurrentSessions <= 0 {
		return fmt.Errorf("max_concurrent_sessions must be positive")
	}
	if p.SessionTimeout <= 0 {
		return fmt.Errorf("session_timeout must be positive")
	}
	if p.IdleTimeout < 0 || p.LockoutDuration < 0 || p.MaxFailedValidations < 0 {
		return fmt.Errorf("negative timeout or limit")
	}
	for _, r := range p.GeofencingRules {
		if r.RadiusKM <= 0 {
			return fmt.Errorf("geofencing rule %q: radius must be positive", r.Name)
		}
	}

	return nil
}

// CountryPermitted reports whether a session from the given ISO country code
// passes the allow/block lists. An empty country passes only when no allow
// list is set.
func (p SessionPolicy) CountryPermitted(code string) bool {
	for _, c := range p.BlockedCountries {
		if c == code {
			return false
		}
	}
	if len(p.AllowedCountries) == 0 {
		return true
	}
	for _, c := range p.AllowedCountries {
		if c == code {
			return true
		}
	}

	return false
}
