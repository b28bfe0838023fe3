package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/app/policy"
	"github.com/teelink/clubauth/internal/app/role"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
	"github.com/teelink/clubauth/internal/infrastructure/contextx"
	"github.com/teelink/clubauth/internal/infrastructure/logger"
)

// PermManagePolicies gates policy administration.
const PermManagePolicies = "manage_policies"

type Store interface {
	Get(ctx context.Context, tenantID *uuid.UUID) (policy.SessionPolicy, error)
	Set(ctx context.Context, tenantID *uuid.UUID, p policy.SessionPolicy) error
}

type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID uuid.UUID, permissionName string, scope *role.Scope) (bool, error)
}

type Service struct {
	store Store
	authz PermissionChecker
}

func NewService(store Store, authz PermissionChecker) *Service {
	if store == nil || authz == nil {
		panic("nil store")
	}
	return &Service{store: store, authz: authz}
}

func (s *Service) GetPolicy(ctx context.Context, tenantID *uuid.UUID) (policy.SessionPolicy, error) {
	if err := s.checkPolicyAdmin(ctx); err != nil {
		logger.Error(ctx, err).Msg("policy.service.GetPolicy.checkPolicyAdmin")
		return policy.SessionPolicy{}, fmt.Errorf("policy.service.GetPolicy: %w", err)
	}

	p, err := s.store.Get(ctx, tenantID)
	if err != nil {
		logger.Error(ctx, err).Msg("policy.service.GetPolicy.store.Get")
		return policy.SessionPolicy{}, fmt.Errorf("policy.service.GetPolicy: %w", err)
	}
	return p, nil
}

func (s *Service) SetPolicy(ctx context.Context, tenantID *uuid.UUID, p policy.SessionPolicy) error {
	if err := s.checkPolicyAdmin(ctx); err != nil {
		logger.Error(ctx, err).Msg("policy.service.SetPolicy.checkPolicyAdmin")
		return fmt.Errorf("policy.service.SetPolicy: %w", err)
	}

	if err := s.store.Set(ctx, tenantID, p); err != nil {
		logger.Error(ctx, err).Msg("policy.service.SetPolicy.store.Set")
		return fmt.Errorf("policy.service.SetPolicy: %w", err)
	}
	return nil
}

func (s *Service) checkPolicyAdmin(ctx context.Context) error {
	currentUserID, err := contextx.GetUserID(ctx)
	if err != nil {
		return err
	}

	allowed, err := s.authz.CheckPermission(ctx, currentUserID, PermManagePolicies, nil)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.ErrForbidden()
	}
	return nil
}
