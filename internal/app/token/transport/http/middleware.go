package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/teelink/clubauth/internal/app/token"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
	"github.com/teelink/clubauth/internal/infrastructure/contextx"
	"github.com/teelink/clubauth/internal/infrastructure/httpx"
	"github.com/teelink/clubauth/internal/infrastructure/logger"
)

type Verifier interface {
	Verify(ctx context.Context, tokenStr string) (token.VerificationResult, error)
}

// AuthMiddleware checks the bearer token against signature, revocation list
// and session state, then binds user, session and tenant to the context.
func AuthMiddleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				err := apperr.ErrUnauthorized().WithDetail("missing or malformed Authorization header")
				logger.Error(ctx, err).
					Msg("token.AuthMiddleware: invalid Authorization header")
				httpx.ReturnError(ctx, w, err)
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			result, err := verifier.Verify(ctx, tokenStr)
			if err != nil {
				logger.Error(ctx, err).
					Msg("token.AuthMiddleware: verification failed")
				httpx.ReturnError(ctx, w, apperr.ErrUnauthorized())
				return
			}
			if !result.IsValid {
				err = apperr.ErrUnauthorized().WithDetail(string(result.Code))
				logger.Error(ctx, err).
					Msg("token.AuthMiddleware: invalid token")
				httpx.ReturnError(ctx, w, err)
				return
			}
			if result.Token.Type != token.TypeAccess {
				err = apperr.ErrUnauthorized().WithDetail("refresh token cannot authenticate requests")
				logger.Error(ctx, err).
					Msg("token.AuthMiddleware: wrong token type")
				httpx.ReturnError(ctx, w, err)
				return
			}

			ctx = contextx.SetToContext(ctx, contextx.ContextKeyUserID, result.Token.UserID)
			ctx = contextx.SetToContext(ctx, contextx.ContextKeySessionID, result.Token.SessionID)
			if result.Token.TenantID != nil {
				ctx = contextx.SetToContext(ctx, contextx.ContextKeyTenantID, *result.Token.TenantID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
