package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/app/token"
	"github.com/teelink/clubauth/internal/infrastructure/contextx"
	"github.com/teelink/clubauth/internal/infrastructure/logger"
	"github.com/teelink/clubauth/internal/infrastructure/obs"
)

type Core interface {
	Verify(ctx context.Context, tokenStr string) (token.VerificationResult, error)
	RefreshAccessToken(ctx context.Context, refreshTokenStr string) (token.Pair, error)
	Revoke(ctx context.Context, tokenStr string) error
	Rotate(ctx context.Context, sessionID uuid.UUID) (token.Pair, error)
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

// Verify is the introspection path. Invalid tokens come back as a result, not
// an error.
func (s *Service) Verify(ctx context.Context, tokenStr string) (token.VerificationResult, error) {
	result, err := s.core.Verify(ctx, tokenStr)
	if err != nil {
		logger.Error(ctx, err).Msg("token.service.Verify.core.Verify")
		return token.VerificationResult{}, fmt.Errorf("token.service.Verify: %w", err)
	}
	return result, nil
}

// RefreshAccessToken needs no bearer auth: possession of a valid refresh
// token is the credential.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshTokenStr string) (token.Pair, error) {
	pair, err := s.core.RefreshAccessToken(ctx, refreshTokenStr)
	if err != nil {
		logger.Error(ctx, err).Msg("token.service.RefreshAccessToken.core.RefreshAccessToken")
		return token.Pair{}, fmt.Errorf("token.service.RefreshAccessToken: %w", err)
	}

	obs.TokensRevoked.Inc()

	return pair, nil
}

func (s *Service) Revoke(ctx context.Context, tokenStr string) error {
	if err := s.core.Revoke(ctx, tokenStr); err != nil {
		logger.Error(ctx, err).Msg("token.service.Revoke.core.Revoke")
		return fmt.Errorf("token.service.Revoke: %w", err)
	}

	obs.TokensRevoked.Inc()

	return nil
}

// Rotate reissues the caller's own session pair, revoking everything issued
// before.
func (s *Service) Rotate(ctx context.Context) (token.Pair, error) {
	sessionID, err := contextx.GetSessionID(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("token.service.Rotate.contextx.GetSessionID")
		return token.Pair{}, fmt.Errorf("token.service.Rotate: %w", err)
	}

	pair, err := s.core.Rotate(ctx, sessionID)
	if err != nil {
		logger.Error(ctx, err).
			Str(token.FieldSessionID.String(), sessionID.String()).
			Msg("token.service.Rotate.core.Rotate")
		return token.Pair{}, fmt.Errorf("token.service.Rotate: %w", err)
	}
	return pair, nil
}
