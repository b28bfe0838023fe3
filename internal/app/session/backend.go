package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/app/token"
)

// TokenBackend adapts the session repository to the token core's view of
// session state.
type TokenBackend struct {
	repo Repository
}

func NewTokenBackend(repo Repository) *TokenBackend {
	if repo == nil {
		panic("session.TokenBackend: nil repository")
	}
	return &TokenBackend{repo: repo}
}

func (b *TokenBackend) GetState(ctx context.Context, sessionID uuid.UUID) (token.SessionState, error) {
	sess, rtHash, err := b.repo.Get(ctx, sessionID)
	if err != nil {
		return token.SessionState{}, fmt.Errorf("session.TokenBackend.GetState: %w", err)
	}

	return token.SessionState{
		Meta:             sess.meta(),
		Active:           sess.IsActive,
		RefreshTokenHash: rtHash,
	}, nil
}

func (b *TokenBackend) UpdateRefreshTokenHash(ctx context.Context, sessionID uuid.UUID, oldHash, newHash string) error {
	if err := b.repo.UpdateRefreshTokenHash(ctx, sessionID, oldHash, newHash); err != nil {
		return fmt.Errorf("session.TokenBackend.UpdateRefreshTokenHash: %w", err)
	}

	return nil
}
