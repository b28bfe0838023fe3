package session

import "github.com/teelink/clubauth/internal/infrastructure/apperr"

const (
	CodeNotFound           apperr.Code = "session/not_found"
	CodePolicyViolation    apperr.Code = "session/policy_violation"
	CodeSuspiciousActivity apperr.Code = "session/suspicious_activity"
	CodeValidationFailed   apperr.Code = "session/validation_failed"
)

const (
	FieldSessionID apperr.Field = "session_id"
	FieldUserID    apperr.Field = "user_id"
	FieldTenantID  apperr.Field = "tenant_id"
	FieldDeviceID  apperr.Field = "device_id"
	FieldPolicy    apperr.Field = "policy"
	FieldRisk      apperr.Field = "risk"
)

// Violation categories surfaced inside a PolicyViolation error, so callers
// can prompt remediation (trust the device, close other sessions) instead of
// showing a generic failure.
const (
	ViolationCompromisedDevice = "compromised_device"
	ViolationUntrustedDevice   = "untrusted_device"
	ViolationVPNBlocked        = "vpn_blocked"
	ViolationTorBlocked        = "tor_blocked"
	ViolationBlockedCountry    = "blocked_country"
	ViolationGeofence          = "geofence"
	ViolationSessionLimit      = "session_limit"
	ViolationLocationMissing   = "location_missing"
)

func ErrSessionNotFound() error {
	return apperr.New("Session not found", CodeNotFound, apperr.ClassNotFound, apperr.LogLevelWarn)
}

func ErrPolicyViolation(violations []string) error {
	err := apperr.New("Session policy violation", CodePolicyViolation, apperr.ClassForbidden, apperr.LogLevelWarn)
	for _, v := range violations {
		err = err.WithViolation(apperr.Violation{Field: FieldPolicy, Rule: apperr.RuleForbidden,
			Params: map[string]any{"category": v}})
	}

	return err
}

func ErrSuspiciousActivity(reasons []string) error {
	return apperr.New("Suspicious activity detected", CodeSuspiciousActivity, apperr.ClassForbidden, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{Field: FieldRisk, Rule: apperr.RuleForbidden,
			Params: map[string]any{"reasons": reasons}})
}

func ErrDeviceIDRequired() error {
	return apperr.New("Device id is required", CodeValidationFailed, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{Field: FieldDeviceID, Rule: apperr.RuleRequired})
}
