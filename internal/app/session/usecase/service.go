package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/app/role"
	"github.com/teelink/clubauth/internal/app/session"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
	"github.com/teelink/clubauth/internal/infrastructure/contextx"
	"github.com/teelink/clubauth/internal/infrastructure/logger"
	"github.com/teelink/clubauth/internal/infrastructure/obs"
)

// PermManageSessions lets staff act on other members' sessions.
const PermManageSessions = "manage_sessions"

type Core interface {
	CreateSession(ctx context.Context, req session.CreateSessionReq) (session.CreationResult, error)
	ValidateSession(ctx context.Context, id uuid.UUID) (session.ValidationResult, error)
	RefreshSession(ctx context.Context, id uuid.UUID) (session.RefreshResult, error)
	TerminateSession(ctx context.Context, id uuid.UUID) error
	Quarantine(ctx context.Context, id uuid.UUID, reason string) error
	TerminateAllUserSessions(ctx context.Context, userID uuid.UUID, excludeDeviceID string) error
	TerminateAllTenantSessions(ctx context.Context, tenantID uuid.UUID) error
	GetSession(ctx context.Context, id uuid.UUID) (session.Session, error)
	ListUserSessions(ctx context.Context, userID uuid.UUID) ([]session.Session, error)
	RecordActivity(ctx context.Context, id uuid.UUID, action string) error
}

type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID uuid.UUID, permissionName string, scope *role.Scope) (bool, error)
}

type Service struct {
	core  Core
	authz PermissionChecker
}

func NewService(core Core, authz PermissionChecker) *Service {
	if core == nil || authz == nil {
		panic("nil core")
	}
	return &Service{core: core, authz: authz}
}

// CreateSession is the login path: no bearer token is required.
func (s *Service) CreateSession(ctx context.Context, req session.CreateSessionReq) (session.CreationResult, error) {
	result, err := s.core.CreateSession(ctx, req)
	if err != nil {
		logger.Error(ctx, err).
			Str(session.FieldUserID.String(), req.UserID.String()).
			Str(session.FieldDeviceID.String(), req.DeviceInfo.DeviceID).
			Msg("session.service.CreateSession.core.CreateSession")
		return session.CreationResult{}, fmt.Errorf("session.service.CreateSession: %w", err)
	}

	obs.SessionsCreated.WithLabelValues(string(result.Session.SecurityLevel)).Inc()

	return result, nil
}

func (s *Service) ValidateSession(ctx context.Context, id uuid.UUID) (session.ValidationResult, error) {
	result, err := s.core.ValidateSession(ctx, id)
	if err != nil {
		logger.Error(ctx, err).
			Str(session.FieldSessionID.String(), id.String()).
			Msg("session.service.ValidateSession.core.ValidateSession")
		return session.ValidationResult{}, fmt.Errorf("session.service.ValidateSession: %w", err)
	}

	obs.RiskScore.Observe(result.SecurityStatus.RiskScore)

	return result, nil
}

func (s *Service) RefreshSession(ctx context.Context, id uuid.UUID) (session.RefreshResult, error) {
	if err := s.checkSessionOwnerOrStaff(ctx, id); err != nil {
		logger.Error(ctx, err).
			Str(session.FieldSessionID.String(), id.String()).
			Msg("session.service.RefreshSession.checkSessionOwnerOrStaff")
		return session.RefreshResult{}, fmt.Errorf("session.service.RefreshSession: %w", err)
	}

	result, err := s.core.RefreshSession(ctx, id)
	if err != nil {
		logger.Error(ctx, err).
			Str(session.FieldSessionID.String(), id.String()).
			Msg("session.service.RefreshSession.core.RefreshSession")
		return session.RefreshResult{}, fmt.Errorf("session.service.RefreshSession: %w", err)
	}
	return result, nil
}

func (s *Service) TerminateSession(ctx context.Context, id uuid.UUID) error {
	if err := s.checkSessionOwnerOrStaff(ctx, id); err != nil {
		logger.Error(ctx, err).
			Str(session.FieldSessionID.String(), id.String()).
			Msg("session.service.TerminateSession.checkSessionOwnerOrStaff")
		return fmt.Errorf("session.service.TerminateSession: %w", err)
	}

	if err := s.core.TerminateSession(ctx, id); err != nil {
		logger.Error(ctx, err).
			Str(session.FieldSessionID.String(), id.String()).
			Msg("session.service.TerminateSession.core.TerminateSession")
		return fmt.Errorf("session.service.TerminateSession: %w", err)
	}

	obs.SessionsTerminated.WithLabelValues(session.TerminationExplicit).Inc()

	return nil
}

func (s *Service) Quarantine(ctx context.Context, id uuid.UUID, reason string) error {
	if err := s.checkStaff(ctx); err != nil {
		logger.Error(ctx, err).
			Str(session.FieldSessionID.String(), id.String()).
			Msg("session.service.Quarantine.checkStaff")
		return fmt.Errorf("session.service.Quarantine: %w", err)
	}

	if err := s.core.Quarantine(ctx, id, reason); err != nil {
		logger.Error(ctx, err).
			Str(session.FieldSessionID.String(), id.String()).
			Msg("session.service.Quarantine.core.Quarantine")
		return fmt.Errorf("session.service.Quarantine: %w", err)
	}

	obs.SessionsTerminated.WithLabelValues(session.TerminationQuarantined).Inc()

	return nil
}

func (s *Service) TerminateAllUserSessions(ctx context.Context, userID uuid.UUID, excludeDeviceID string) error {
	if err := s.checkSelfOrStaff(ctx, userID); err != nil {
		logger.Error(ctx, err).
			Str(session.FieldUserID.String(), userID.String()).
			Msg("session.service.TerminateAllUserSessions.checkSelfOrStaff")
		return fmt.Errorf("session.service.TerminateAllUserSessions: %w", err)
	}

	if err := s.core.TerminateAllUserSessions(ctx, userID, excludeDeviceID); err != nil {
		logger.Error(ctx, err).
			Str(session.FieldUserID.String(), userID.String()).
			Msg("session.service.TerminateAllUserSessions.core.TerminateAllUserSessions")
		return fmt.Errorf("session.service.TerminateAllUserSessions: %w", err)
	}
	return nil
}

func (s *Service) TerminateAllTenantSessions(ctx context.Context, tenantID uuid.UUID) error {
	if err := s.checkStaff(ctx); err != nil {
		logger.Error(ctx, err).
			Str(session.FieldTenantID.String(), tenantID.String()).
			Msg("session.service.TerminateAllTenantSessions.checkStaff")
		return fmt.Errorf("session.service.TerminateAllTenantSessions: %w", err)
	}

	if err := s.core.TerminateAllTenantSessions(ctx, tenantID); err != nil {
		logger.Error(ctx, err).
			Str(session.FieldTenantID.String(), tenantID.String()).
			Msg("session.service.TerminateAllTenantSessions.core.TerminateAllTenantSessions")
		return fmt.Errorf("session.service.TerminateAllTenantSessions: %w", err)
	}
	return nil
}

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (session.Session, error) {
	sess, err := s.core.GetSession(ctx, id)
	if err != nil {
		logger.Error(ctx, err).
			Str(session.FieldSessionID.String(), id.String()).
			Msg("session.service.GetSession.core.GetSession")
		return session.Session{}, fmt.Errorf("session.service.GetSession: %w", err)
	}

	if err := s.checkSelfOrStaff(ctx, sess.UserID); err != nil {
		logger.Error(ctx, err).
			Str(session.FieldSessionID.String(), id.String()).
			Msg("session.service.GetSession.checkSelfOrStaff")
		return session.Session{}, fmt.Errorf("session.service.GetSession: %w", err)
	}
	return sess, nil
}

func (s *Service) ListUserSessions(ctx context.Context, userID uuid.UUID) ([]session.Session, error) {
	if err := s.checkSelfOrStaff(ctx, userID); err != nil {
		logger.Error(ctx, err).
			Str(session.FieldUserID.String(), userID.String()).
			Msg("session.service.ListUserSessions.checkSelfOrStaff")
		return nil, fmt.Errorf("session.service.ListUserSessions: %w", err)
	}

	sessions, err := s.core.ListUserSessions(ctx, userID)
	if err != nil {
		logger.Error(ctx, err).
			Str(session.FieldUserID.String(), userID.String()).
			Msg("session.service.ListUserSessions.core.ListUserSessions")
		return nil, fmt.Errorf("session.service.ListUserSessions: %w", err)
	}
	return sessions, nil
}

// RecordActivity appends an action to the caller's own session.
func (s *Service) RecordActivity(ctx context.Context, action string) error {
	sessionID, err := contextx.GetSessionID(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("session.service.RecordActivity.contextx.GetSessionID")
		return fmt.Errorf("session.service.RecordActivity: %w", err)
	}

	if err := s.core.RecordActivity(ctx, sessionID, action); err != nil {
		logger.Error(ctx, err).
			Str(session.FieldSessionID.String(), sessionID.String()).
			Msg("session.service.RecordActivity.core.RecordActivity")
		return fmt.Errorf("session.service.RecordActivity: %w", err)
	}
	return nil
}

func (s *Service) checkSelfOrStaff(ctx context.Context, targetUserID uuid.UUID) error {
	currentUserID, err := contextx.GetUserID(ctx)
	if err != nil {
		return err
	}
	if currentUserID == targetUserID {
		return nil
	}

	allowed, err := s.authz.CheckPermission(ctx, currentUserID, PermManageSessions, nil)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.ErrForbidden()
	}
	return nil
}

func (s *Service) checkStaff(ctx context.Context) error {
	currentUserID, err := contextx.GetUserID(ctx)
	if err != nil {
		return err
	}

	allowed, err := s.authz.CheckPermission(ctx, currentUserID, PermManageSessions, nil)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.ErrForbidden()
	}
	return nil
}

func (s *Service) checkSessionOwnerOrStaff(ctx context.Context, id uuid.UUID) error {
	sess, err := s.core.GetSession(ctx, id)
	if err != nil {
		return err
	}
	return s.checkSelfOrStaff(ctx, sess.UserID)
}
