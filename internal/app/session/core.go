package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/app/policy"
	"github.com/teelink/clubauth/internal/app/risk"
	"github.com/teelink/clubauth/internal/app/token"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
	"github.com/teelink/clubauth/internal/infrastructure/events"
)

type Repository interface {
	Create(ctx context.Context, s Session, rtHash string) error
	Get(ctx context.Context, id uuid.UUID) (Session, string, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]Session, error)
	// DeviceSeen reports whether the user ever had a session on the device,
	// terminated and expired ones included.
	DeviceSeen(ctx context.Context, userID uuid.UUID, deviceID string) (bool, error)
	ListActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]Session, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	ExtendExpiry(ctx context.Context, id uuid.UUID, expiresAt, at time.Time) error
	RecordFailedValidation(ctx context.Context, id uuid.UUID, count int, lockedUntil *time.Time) error
	AppendActivity(ctx context.Context, id uuid.UUID, activity Activity) error
	UpdateRefreshTokenHash(ctx context.Context, id uuid.UUID, oldHash, newHash string) error
	// Terminate flips IsActive to false and records the reason in metadata.
	// It reports whether a row actually transitioned, so repeated calls and
	// unknown ids are no-ops.
	Terminate(ctx context.Context, id uuid.UUID, at time.Time, reason string) (bool, error)
	Quarantine(ctx context.Context, id uuid.UUID, at time.Time, reason string) (bool, error)
	ListExpired(ctx context.Context, before time.Time, limit int) ([]Session, error)
}

// TokenIssuer is the slice of the token core the session manager uses.
type TokenIssuer interface {
	Mint(ctx context.Context, meta token.SessionMeta, scopes []string) (token.Pair, string, error)
	IssueAccessToken(ctx context.Context, sessionID uuid.UUID, scopes []string) (token.Token, error)
	RevokeSessionTokens(ctx context.Context, sessionID uuid.UUID) error
}

type PolicyStore interface {
	Get(ctx context.Context, tenantID *uuid.UUID) (policy.SessionPolicy, error)
}

type RiskEvaluator interface {
	Evaluate(s risk.Signals) risk.Result
}

type IDGenerator interface {
	New() (uuid.UUID, error)
}

type TimeGenerator interface {
	Now() time.Time
}

type Generators struct {
	ID   IDGenerator
	Time TimeGenerator
}

type Config struct {
	RefreshThresholdMinutes int `mapstructure:"refresh_threshold_minutes" json:"refresh_threshold_minutes"`
	SweepBatchSize          int `mapstructure:"sweep_batch_size" json:"sweep_batch_size"`
}

const userLockStripes = 64

type core struct {
	repo     Repository
	tokens   TokenIssuer
	policies PolicyStore
	riskEval RiskEvaluator
	bus      *events.Bus
	gen      Generators
	cfg      Config

	// Serializes create/evict per user so two concurrent creations cannot
	// both observe "under limit" and exceed MaxConcurrentSessions.
	userLocks [userLockStripes]sync.Mutex
}

func NewCore(repo Repository, tokens TokenIssuer, policies PolicyStore, riskEval RiskEvaluator,
	bus *events.Bus, generators Generators, cfg Config) *core {
	if cfg.RefreshThresholdMinutes <= 0 || cfg.SweepBatchSize <= 0 {
		panic("session.core: invalid config")
	}
	if repo == nil || tokens == nil || policies == nil || riskEval == nil || bus == nil ||
		generators.ID == nil || generators.Time == nil {
		panic("session.core: nil dependency")
	}

	return &core{
		repo:     repo,
		tokens:   tokens,
		policies: policies,
		riskEval: riskEval,
		bus:      bus,
		gen:      generators,
		cfg:      cfg,
	}
}

func (c *core) lockUser(userID uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(userID[:])
	mu := &c.userLocks[h.Sum32()%userLockStripes]
	mu.Lock()

	return mu
}

// CreateSession runs the full admission pipeline: policy compliance, the
// concurrent-session limit, risk scoring, then persistence and token minting.
// Any failure aborts with no partial state.
func (c *core) CreateSession(ctx context.Context, req CreateSessionReq) (CreationResult, error) {
	if req.UserID == uuid.Nil {
		return CreationResult{}, fmt.Errorf("session.core.CreateSession: %w", apperr.ErrNilUUID(FieldUserID))
	}
	if req.DeviceInfo.DeviceID == "" {
		return CreationResult{}, fmt.Errorf("session.core.CreateSession: %w", ErrDeviceIDRequired())
	}

	pol, err := c.policies.Get(ctx, req.TenantID)
	if err != nil {
		return CreationResult{}, fmt.Errorf("session.core.CreateSession: %w", err)
	}

	mu := c.lockUser(req.UserID)
	defer mu.Unlock()

	active, err := c.repo.ListActiveByUser(ctx, req.UserID)
	if err != nil {
		return CreationResult{}, fmt.Errorf("session.core.CreateSession: %w", err)
	}
	// A device stays known across terminations, otherwise the trust
	// requirement would lock users out after every logout.
	knownDevice := deviceSeen(active, req.DeviceInfo.DeviceID)
	if !knownDevice && pol.RequireDeviceTrust {
		knownDevice, err = c.repo.DeviceSeen(ctx, req.UserID, req.DeviceInfo.DeviceID)
		if err != nil {
			return CreationResult{}, fmt.Errorf("session.core.CreateSession: %w", err)
		}
	}

	hard, warnings := checkCompliance(pol, req, knownDevice)
	if len(hard) > 0 {
		err = ErrPolicyViolation(hard)
		c.publishSecurity(events.TypePolicyViolation, req.UserID, req.TenantID, map[string]any{"violations": hard})
		return CreationResult{}, fmt.Errorf("session.core.CreateSession: %w", err)
	}

	if len(active) >= pol.MaxConcurrentSessions {
		if pol.RejectOnLimit {
			err = ErrPolicyViolation([]string{ViolationSessionLimit})
			c.publishSecurity(events.TypePolicyViolation, req.UserID, req.TenantID,
				map[string]any{"violations": []string{ViolationSessionLimit}})
			return CreationResult{}, fmt.Errorf("session.core.CreateSession: %w", err)
		}
		evicted, err := c.evictOldest(ctx, active, 1+len(active)-pol.MaxConcurrentSessions)
		if err != nil {
			return CreationResult{}, fmt.Errorf("session.core.CreateSession: %w", err)
		}
		active = remaining(active, evicted)
	}

	now := c.gen.Time.Now()
	var riskResult risk.Result
	if pol.EnableAnomalyDetection {
		riskResult = c.riskEval.Evaluate(creationSignals(req, active, now))
		if riskResult.ShouldTerminate {
			reasons := reasonStrings(riskResult.Reasons)
			c.publishSecurity(events.TypeSuspiciousActivity, req.UserID, req.TenantID,
				map[string]any{"score": riskResult.Score, "reasons": reasons})
			return CreationResult{}, fmt.Errorf("session.core.CreateSession: %w", ErrSuspiciousActivity(reasons))
		}
	}

	id, err := c.gen.ID.New()
	if err != nil {
		return CreationResult{}, fmt.Errorf("session.core.CreateSession: %w", err)
	}

	trusted := !riskResult.IsSuspicious
	sess := Session{
		ID:             id,
		UserID:         req.UserID,
		TenantID:       req.TenantID,
		DeviceID:       req.DeviceInfo.DeviceID,
		DeviceInfo:     req.DeviceInfo,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(pol.SessionTimeout),
		IPAddress:      req.IPAddress,
		Location:       req.Location,
		IsActive:       true,
		IsTrusted:      trusted,
		SecurityLevel:  deriveSecurityLevel(trusted, req.DeviceInfo),
	}

	pair, rtHash, err := c.tokens.Mint(ctx, sess.meta(), req.Scopes)
	if err != nil {
		return CreationResult{}, fmt.Errorf("session.core.CreateSession: %w", err)
	}
	if err = c.repo.Create(ctx, sess, rtHash); err != nil {
		return CreationResult{}, fmt.Errorf("session.core.CreateSession: %w", err)
	}

	c.publish(events.TypeSessionCreated, sess, map[string]any{"security_level": string(sess.SecurityLevel)})
	if !knownDevice {
		// Fire-and-forget notification; never blocks or fails creation.
		c.publish(events.TypeNewDevice, sess, map[string]any{"device_id": sess.DeviceID, "platform": req.DeviceInfo.Platform})
	}

	return CreationResult{
		Session:           sess,
		AccessToken:       pair.Access,
		RefreshToken:      pair.Refresh,
		DeviceTrusted:     trusted,
		LocationValidated: locationValidated(pol, req.Location),
		Warnings:          warnings,
	}, nil
}

// ValidateSession never errors for a bad or unknown session; only
// infrastructure failures surface as errors. A successful validation updates
// LastAccessedAt and nothing else.
func (c *core) ValidateSession(ctx context.Context, id uuid.UUID) (ValidationResult, error) {
	if id == uuid.Nil {
		return ValidationResult{Reason: ReasonNotFound}, nil
	}

	sess, _, err := c.repo.Get(ctx, id)
	if err != nil {
		if apperr.ClassOf(err) == apperr.ClassNotFound {
			return ValidationResult{Reason: ReasonNotFound}, nil
		}
		return ValidationResult{}, fmt.Errorf("session.core.ValidateSession: %w", err)
	}

	now := c.gen.Time.Now()
	status := SecurityStatus{DeviceTrusted: sess.IsTrusted, KnownLocation: sess.Location != nil}

	if !sess.IsActive {
		return ValidationResult{Reason: ReasonTerminated, SecurityStatus: status}, nil
	}
	if !sess.ExpiresAt.After(now) {
		return ValidationResult{Reason: ReasonExpired, SecurityStatus: status}, nil
	}
	if sess.LockedUntil != nil && sess.LockedUntil.After(now) {
		return ValidationResult{Reason: ReasonLockedOut, RequiresReauth: true, SecurityStatus: status}, nil
	}

	pol, err := c.policies.Get(ctx, sess.TenantID)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("session.core.ValidateSession: %w", err)
	}

	if pol.IdleTimeout > 0 && now.Sub(sess.LastAccessedAt) > pol.IdleTimeout {
		return ValidationResult{Reason: ReasonIdleTimeout, SecurityStatus: status}, nil
	}
	if pol.RequireDeviceTrust && !sess.IsTrusted {
		return ValidationResult{Reason: ReasonUntrustedDevice, RequiresReauth: true, SecurityStatus: status}, nil
	}

	if pol.EnableAnomalyDetection {
		res := c.riskEval.Evaluate(sessionSignals(sess))
		status.RiskScore = res.Score
		status.Anomalies = res.Reasons
		if res.ShouldTerminate {
			if err = c.recordFailure(ctx, sess, pol, now); err != nil {
				return ValidationResult{}, fmt.Errorf("session.core.ValidateSession: %w", err)
			}
			c.publishSecurity(events.TypeSuspiciousActivity, sess.UserID, sess.TenantID,
				map[string]any{"session_id": sess.ID, "score": res.Score, "reasons": reasonStrings(res.Reasons)})
			return ValidationResult{Reason: ReasonSuspicious, RequiresReauth: true, SecurityStatus: status}, nil
		}
	}

	if err = c.repo.Touch(ctx, sess.ID, now); err != nil {
		return ValidationResult{}, fmt.Errorf("session.core.ValidateSession: %w", err)
	}
	sess.LastAccessedAt = now

	return ValidationResult{
		IsValid:        true,
		SecurityStatus: status,
		RemainingTime:  sess.ExpiresAt.Sub(now),
		Session:        &sess,
	}, nil
}

// RefreshSession is a no-op while more than the configured threshold remains
// before expiry. Failed security checks do not block the refresh; they are
// reported so the caller can decide whether to escalate.
func (c *core) RefreshSession(ctx context.Context, id uuid.UUID) (RefreshResult, error) {
	if id == uuid.Nil {
		return RefreshResult{}, fmt.Errorf("session.core.RefreshSession: %w", apperr.ErrNilUUID(FieldSessionID))
	}

	sess, _, err := c.repo.Get(ctx, id)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("session.core.RefreshSession: %w", err)
	}

	now := c.gen.Time.Now()
	if !sess.IsActive || !sess.ExpiresAt.After(now) {
		return RefreshResult{}, fmt.Errorf("session.core.RefreshSession: %w", ErrSessionNotFound())
	}

	threshold := time.Duration(c.cfg.RefreshThresholdMinutes) * time.Minute
	if sess.ExpiresAt.Sub(now) > threshold {
		return RefreshResult{Session: sess}, nil
	}

	pol, err := c.policies.Get(ctx, sess.TenantID)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("session.core.RefreshSession: %w", err)
	}

	var failed []string
	if pol.RequireDeviceTrust && !sess.IsTrusted {
		failed = append(failed, ViolationUntrustedDevice)
	}
	if pol.RequireLocationValidation && !locationValidated(pol, sess.Location) {
		failed = append(failed, ViolationLocationMissing)
	}

	sess.ExpiresAt = now.Add(pol.SessionTimeout)
	sess.LastAccessedAt = now
	if err = c.repo.ExtendExpiry(ctx, sess.ID, sess.ExpiresAt, now); err != nil {
		return RefreshResult{}, fmt.Errorf("session.core.RefreshSession: %w", err)
	}

	access, err := c.tokens.IssueAccessToken(ctx, sess.ID, nil)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("session.core.RefreshSession: %w", err)
	}

	c.publish(events.TypeSessionRefreshed, sess, map[string]any{"expires_at": sess.ExpiresAt})

	return RefreshResult{
		Session:                sess,
		Refreshed:              true,
		AccessToken:            &access,
		RequiresAdditionalAuth: len(failed) > 0,
		FailedChecks:           failed,
	}, nil
}

// TerminateSession is idempotent; terminating an unknown or already inactive
// session is a silent no-op.
func (c *core) TerminateSession(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	if err := c.terminate(ctx, id, TerminationExplicit); err != nil {
		return fmt.Errorf("session.core.TerminateSession: %w", err)
	}

	return nil
}

// Quarantine is a specialized termination for detected compromise: the session
// is untrusted, deactivated and marked with the quarantine reason. It is not
// reversible.
func (c *core) Quarantine(ctx context.Context, id uuid.UUID, reason string) error {
	if id == uuid.Nil {
		return fmt.Errorf("session.core.Quarantine: %w", apperr.ErrNilUUID(FieldSessionID))
	}

	now := c.gen.Time.Now()
	changed, err := c.repo.Quarantine(ctx, id, now, reason)
	if err != nil {
		return fmt.Errorf("session.core.Quarantine: %w", err)
	}
	if !changed {
		return nil
	}

	if err = c.tokens.RevokeSessionTokens(ctx, id); err != nil {
		return fmt.Errorf("session.core.Quarantine: %w", err)
	}

	sess, _, err := c.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("session.core.Quarantine: %w", err)
	}
	c.publish(events.TypeSessionQuarantined, sess, map[string]any{"reason": reason})
	c.publish(events.TypeTokenRevoked, sess, nil)

	return nil
}

func (c *core) TerminateAllUserSessions(ctx context.Context, userID uuid.UUID, excludeDeviceID string) error {
	if userID == uuid.Nil {
		return fmt.Errorf("session.core.TerminateAllUserSessions: %w", apperr.ErrNilUUID(FieldUserID))
	}

	mu := c.lockUser(userID)
	defer mu.Unlock()

	active, err := c.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("session.core.TerminateAllUserSessions: %w", err)
	}
	for _, sess := range active {
		if excludeDeviceID != "" && sess.DeviceID == excludeDeviceID {
			continue
		}
		if err = c.terminate(ctx, sess.ID, TerminationBulk); err != nil {
			return fmt.Errorf("session.core.TerminateAllUserSessions: %w", err)
		}
	}

	return nil
}

func (c *core) TerminateAllTenantSessions(ctx context.Context, tenantID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return fmt.Errorf("session.core.TerminateAllTenantSessions: %w", apperr.ErrNilUUID(FieldTenantID))
	}

	active, err := c.repo.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("session.core.TerminateAllTenantSessions: %w", err)
	}
	for _, sess := range active {
		if err = c.terminate(ctx, sess.ID, TerminationBulk); err != nil {
			return fmt.Errorf("session.core.TerminateAllTenantSessions: %w", err)
		}
	}

	return nil
}

func (c *core) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	if id == uuid.Nil {
		return Session{}, fmt.Errorf("session.core.GetSession: %w", apperr.ErrNilUUID(FieldSessionID))
	}
	sess, _, err := c.repo.Get(ctx, id)
	if err != nil {
		return Session{}, fmt.Errorf("session.core.GetSession: %w", err)
	}

	return sess, nil
}

func (c *core) ListUserSessions(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("session.core.ListUserSessions: %w", apperr.ErrNilUUID(FieldUserID))
	}
	sessions, err := c.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("session.core.ListUserSessions: %w", err)
	}

	return sessions, nil
}

// RecordActivity appends to the session's recent-action log, feeding the
// behavioral-volume risk signal.
func (c *core) RecordActivity(ctx context.Context, id uuid.UUID, action string) error {
	if id == uuid.Nil {
		return fmt.Errorf("session.core.RecordActivity: %w", apperr.ErrNilUUID(FieldSessionID))
	}
	if err := c.repo.AppendActivity(ctx, id, Activity{Action: action, At: c.gen.Time.Now()}); err != nil {
		return fmt.Errorf("session.core.RecordActivity: %w", err)
	}

	return nil
}

// SweepExpired terminates sessions past their expiry. Refresh extends
// ExpiresAt before the sweep reads it, so a session refreshed a moment before
// the sweep is safe.
func (c *core) SweepExpired(ctx context.Context) (int, error) {
	now := c.gen.Time.Now()
	swept := 0

	for {
		expired, err := c.repo.ListExpired(ctx, now, c.cfg.SweepBatchSize)
		if err != nil {
			return swept, fmt.Errorf("session.core.SweepExpired: %w", err)
		}
		if len(expired) == 0 {
			return swept, nil
		}
		for _, sess := range expired {
			if err = c.terminate(ctx, sess.ID, TerminationExpired); err != nil {
				return swept, fmt.Errorf("session.core.SweepExpired: %w", err)
			}
			swept++
		}
		if len(expired) < c.cfg.SweepBatchSize {
			return swept, nil
		}
	}
}

func (c *core) terminate(ctx context.Context, id uuid.UUID, reason string) error {
	changed, err := c.repo.Terminate(ctx, id, c.gen.Time.Now(), reason)
	if err != nil {
		return fmt.Errorf("terminate: %w", err)
	}
	if !changed {
		return nil
	}

	if err = c.tokens.RevokeSessionTokens(ctx, id); err != nil {
		return fmt.Errorf("terminate: %w", err)
	}

	sess, _, err := c.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("terminate: %w", err)
	}
	c.publish(events.TypeSessionTerminated, sess, map[string]any{"reason": reason})
	c.publish(events.TypeTokenRevoked, sess, nil)

	return nil
}

func (c *core) evictOldest(ctx context.Context, active []Session, n int) ([]uuid.UUID, error) {
	sorted := make([]Session, len(active))
	copy(sorted, active)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	if n > len(sorted) {
		n = len(sorted)
	}
	evicted := make([]uuid.UUID, 0, n)
	for _, sess := range sorted[:n] {
		if err := c.terminate(ctx, sess.ID, TerminationEvicted); err != nil {
			return nil, fmt.Errorf("evictOldest: %w", err)
		}
		evicted = append(evicted, sess.ID)
	}

	return evicted, nil
}

func (c *core) recordFailure(ctx context.Context, sess Session, pol policy.SessionPolicy, now time.Time) error {
	count := sess.FailedValidations + 1
	var lockedUntil *time.Time
	if pol.MaxFailedValidations > 0 && count >= pol.MaxFailedValidations {
		t := now.Add(pol.LockoutDuration)
		lockedUntil = &t
	}

	if err := c.repo.RecordFailedValidation(ctx, sess.ID, count, lockedUntil); err != nil {
		return fmt.Errorf("recordFailure: %w", err)
	}

	return nil
}

func (c *core) publish(t events.Type, sess Session, details map[string]any) {
	c.bus.Publish(events.Event{
		Type:       t,
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		TenantID:   sess.TenantID,
		OccurredAt: c.gen.Time.Now(),
		Details:    details,
	})
}

func (c *core) publishSecurity(t events.Type, userID uuid.UUID, tenantID *uuid.UUID, details map[string]any) {
	c.bus.Publish(events.Event{
		Type:       t,
		UserID:     userID,
		TenantID:   tenantID,
		OccurredAt: c.gen.Time.Now(),
		Details:    details,
	})
}

// checkCompliance splits policy findings into hard violations, which abort
// creation, and advisory warnings, which are surfaced on the result.
func checkCompliance(pol policy.SessionPolicy, req CreateSessionReq, knownDevice bool) (hard, warnings []string) {
	if req.DeviceInfo.Jailbroken || req.DeviceInfo.Emulator {
		hard = append(hard, ViolationCompromisedDevice)
	}
	if pol.RequireDeviceTrust && !knownDevice {
		hard = append(hard, ViolationUntrustedDevice)
	}

	if req.Location != nil {
		if req.Location.VPN && !pol.AllowVPNConnections {
			hard = append(hard, ViolationVPNBlocked)
		}
		if req.Location.Tor && !pol.AllowTorConnections {
			hard = append(hard, ViolationTorBlocked)
		}
		if !pol.CountryPermitted(req.Location.Country) {
			hard = append(hard, ViolationBlockedCountry)
		}
		if !geofencePermitted(pol.GeofencingRules, *req.Location.point()) {
			hard = append(hard, ViolationGeofence)
		}
	} else if pol.RequireLocationValidation {
		warnings = append(warnings, ViolationLocationMissing)
	}

	return hard, warnings
}

// geofencePermitted applies deny rules first; then, if any allow rules exist,
// the point must fall inside at least one of them.
func geofencePermitted(rules []policy.GeofencingRule, p risk.GeoPoint) bool {
	hasAllow := false
	inAllow := false
	for _, r := range rules {
		inside := risk.DistanceKM(risk.GeoPoint{Lat: r.Lat, Lon: r.Lon}, p) <= r.RadiusKM
		if !r.Allow {
			if inside {
				return false
			}
			continue
		}
		hasAllow = true
		if inside {
			inAllow = true
		}
	}

	return !hasAllow || inAllow
}

func locationValidated(pol policy.SessionPolicy, loc *Location) bool {
	if loc == nil {
		return false
	}

	return pol.CountryPermitted(loc.Country) && geofencePermitted(pol.GeofencingRules, *loc.point())
}

func deriveSecurityLevel(trusted bool, device DeviceInfo) SecurityLevel {
	// An untrusted session never reaches the enhanced level.
	if !trusted {
		return SecurityBasic
	}
	if len(device.BiometricCapabilities) > 0 && !device.Jailbroken && !device.Emulator {
		return SecurityEnhanced
	}

	return SecurityStandard
}

func deviceSeen(active []Session, deviceID string) bool {
	for _, sess := range active {
		if sess.DeviceID == deviceID {
			return true
		}
	}

	return false
}

func remaining(active []Session, evicted []uuid.UUID) []Session {
	gone := make(map[uuid.UUID]struct{}, len(evicted))
	for _, id := range evicted {
		gone[id] = struct{}{}
	}

	out := active[:0]
	for _, sess := range active {
		if _, ok := gone[sess.ID]; !ok {
			out = append(out, sess)
		}
	}

	return out
}

func creationSignals(req CreateSessionReq, active []Session, now time.Time) risk.Signals {
	s := risk.Signals{
		NewLocation:   req.Location.point(),
		ObservedAt:    now,
		Jailbroken:    req.DeviceInfo.Jailbroken,
		Emulator:      req.DeviceInfo.Emulator,
		LocalHour:     req.LocalHour,
		ActivityCount: 0,
	}
	if req.Location != nil {
		s.VPN = req.Location.VPN
		s.Tor = req.Location.Tor
	}

	// The previous location is taken from the most recently touched active
	// session that carries one.
	var latest *Session
	for i := range active {
		if active[i].Location == nil {
			continue
		}
		if latest == nil || active[i].LastAccessedAt.After(latest.LastAccessedAt) {
			latest = &active[i]
		}
	}
	if latest != nil {
		s.PrevLocation = latest.Location.point()
		s.PrevSeenAt = latest.Location.Timestamp
	}

	return s
}

func sessionSignals(sess Session) risk.Signals {
	s := risk.Signals{
		Jailbroken:    sess.DeviceInfo.Jailbroken,
		Emulator:      sess.DeviceInfo.Emulator,
		LocalHour:     -1,
		ActivityCount: len(sess.Activities),
	}
	if sess.Location != nil {
		s.VPN = sess.Location.VPN
		s.Tor = sess.Location.Tor
	}

	return s
}

func reasonStrings(reasons []risk.Reason) []string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = string(r)
	}

	return out
}
