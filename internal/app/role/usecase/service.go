package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/app/role"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
	"github.com/teelink/clubauth/internal/infrastructure/contextx"
	"github.com/teelink/clubauth/internal/infrastructure/logger"
)

// PermManageRoles gates role administration endpoints.
const PermManageRoles = "manage_roles"

type Core interface {
	CreateRole(ctx context.Context, req role.CreateRoleReq) (uuid.UUID, error)
	GetRole(ctx context.Context, id uuid.UUID) (role.Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
	AssignRole(ctx context.Context, userID, roleID uuid.UUID, scope *role.Scope) (uuid.UUID, error)
	UnassignRole(ctx context.Context, userID, roleID uuid.UUID, scope *role.Scope) error
	GetUserPermissions(ctx context.Context, userID uuid.UUID, scope *role.Scope) ([]role.Permission, error)
	CheckPermission(ctx context.Context, userID uuid.UUID, permissionName string, scope *role.Scope) (bool, error)
}

type Service struct {
	core Core
}

func NewService(core Core) *Service {
	if core == nil {
		panic("nil core")
	}
	return &Service{core: core}
}

func (s *Service) CreateRole(ctx context.Context, req role.CreateRoleReq) (uuid.UUID, error) {
	if err := s.checkRoleAdmin(ctx); err != nil {
		logger.Error(ctx, err).
			Str(role.FieldName.String(), req.Name).
			Msg("role.service.CreateRole.checkRoleAdmin")
		return uuid.Nil, fmt.Errorf("role.service.CreateRole: %w", err)
	}

	id, err := s.core.CreateRole(ctx, req)
	if err != nil {
		logger.Error(ctx, err).
			Str(role.FieldName.String(), req.Name).
			Msg("role.service.CreateRole.core.CreateRole")
		return uuid.Nil, fmt.Errorf("role.service.CreateRole: %w", err)
	}
	return id, nil
}

func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (role.Role, error) {
	rl, err := s.core.GetRole(ctx, id)
	if err != nil {
		logger.Error(ctx, err).
			Str(role.FieldRoleID.String(), id.String()).
			Msg("role.service.GetRole.core.GetRole")
		return role.Role{}, fmt.Errorf("role.service.GetRole: %w", err)
	}
	return rl, nil
}

func (s *Service) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if err := s.checkRoleAdmin(ctx); err != nil {
		logger.Error(ctx, err).
			Str(role.FieldRoleID.String(), id.String()).
			Msg("role.service.DeleteRole.checkRoleAdmin")
		return fmt.Errorf("role.service.DeleteRole: %w", err)
	}

	if err := s.core.DeleteRole(ctx, id); err != nil {
		logger.Error(ctx, err).
			Str(role.FieldRoleID.String(), id.String()).
			Msg("role.service.DeleteRole.core.DeleteRole")
		return fmt.Errorf("role.service.DeleteRole: %w", err)
	}
	return nil
}

func (s *Service) AssignRole(ctx context.Context, userID, roleID uuid.UUID, scope *role.Scope) (uuid.UUID, error) {
	if err := s.checkRoleAdmin(ctx); err != nil {
		logger.Error(ctx, err).
			Str(role.FieldUserID.String(), userID.String()).
			Str(role.FieldRoleID.String(), roleID.String()).
			Msg("role.service.AssignRole.checkRoleAdmin")
		return uuid.Nil, fmt.Errorf("role.service.AssignRole: %w", err)
	}

	id, err := s.core.AssignRole(ctx, userID, roleID, scope)
	if err != nil {
		logger.Error(ctx, err).
			Str(role.FieldUserID.String(), userID.String()).
			Str(role.FieldRoleID.String(), roleID.String()).
			Msg("role.service.AssignRole.core.AssignRole")
		return uuid.Nil, fmt.Errorf("role.service.AssignRole: %w", err)
	}
	return id, nil
}

func (s *Service) UnassignRole(ctx context.Context, userID, roleID uuid.UUID, scope *role.Scope) error {
	if err := s.checkRoleAdmin(ctx); err != nil {
		logger.Error(ctx, err).
			Str(role.FieldUserID.String(), userID.String()).
			Str(role.FieldRoleID.String(), roleID.String()).
			Msg("role.service.UnassignRole.checkRoleAdmin")
		return fmt.Errorf("role.service.UnassignRole: %w", err)
	}

	if err := s.core.UnassignRole(ctx, userID, roleID, scope); err != nil {
		logger.Error(ctx, err).
			Str(role.FieldUserID.String(), userID.String()).
			Str(role.FieldRoleID.String(), roleID.String()).
			Msg("role.service.UnassignRole.core.UnassignRole")
		return fmt.Errorf("role.service.UnassignRole: %w", err)
	}
	return nil
}

// GetUserPermissions lets a user inspect their own grants; looking at someone
// else's requires role administration rights.
func (s *Service) GetUserPermissions(ctx context.Context, userID uuid.UUID, scope *role.Scope) ([]role.Permission, error) {
	currentUserID, err := contextx.GetUserID(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("role.service.GetUserPermissions.contextx.GetUserID")
		return nil, fmt.Errorf("role.service.GetUserPermissions: %w", err)
	}
	if currentUserID != userID {
		if err := s.checkRoleAdmin(ctx); err != nil {
			logger.Error(ctx, err).
				Str(role.FieldUserID.String(), userID.String()).
				Msg("role.service.GetUserPermissions.checkRoleAdmin")
			return nil, fmt.Errorf("role.service.GetUserPermissions: %w", err)
		}
	}

	perms, err := s.core.GetUserPermissions(ctx, userID, scope)
	if err != nil {
		logger.Error(ctx, err).
			Str(role.FieldUserID.String(), userID.String()).
			Msg("role.service.GetUserPermissions.core.GetUserPermissions")
		return nil, fmt.Errorf("role.service.GetUserPermissions: %w", err)
	}
	return perms, nil
}

// CheckPermission answers for the calling user only.
func (s *Service) CheckPermission(ctx context.Context, permissionName string, scope *role.Scope) (bool, error) {
	currentUserID, err := contextx.GetUserID(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("role.service.CheckPermission.contextx.GetUserID")
		return false, fmt.Errorf("role.service.CheckPermission: %w", err)
	}

	allowed, err := s.core.CheckPermission(ctx, currentUserID, permissionName, scope)
	if err != nil {
		logger.Error(ctx, err).
			Str(role.FieldUserID.String(), currentUserID.String()).
			Msg("role.service.CheckPermission.core.CheckPermission")
		return false, fmt.Errorf("role.service.CheckPermission: %w", err)
	}
	return allowed, nil
}

func (s *Service) checkRoleAdmin(ctx context.Context) error {
	currentUserID, err := contextx.GetUserID(ctx)
	if err != nil {
		return err
	}

	allowed, err := s.core.CheckPermission(ctx, currentUserID, PermManageRoles, nil)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.ErrForbidden()
	}
	return nil
}
