package http

import (
	"context"
	"net/http"

	"github.com/teelink/clubauth/internal/app/token"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
	"github.com/teelink/clubauth/internal/infrastructure/httpx"
	"github.com/teelink/clubauth/internal/infrastructure/logger"
)

type TokenService interface {
	Verify(ctx context.Context, tokenStr string) (token.VerificationResult, error)
	RefreshAccessToken(ctx context.Context, refreshTokenStr string) (token.Pair, error)
	Revoke(ctx context.Context, tokenStr string) error
	Rotate(ctx context.Context) (token.Pair, error)
}

type TokenInput struct {
	Token string `json:"token"`
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token"`
}

type Handler struct {
	svc TokenService
}

func NewHandler(svc TokenService) *Handler {
	if svc == nil {
		panic("nil TokenService")
	}
	return &Handler{svc: svc}
}

// Verify godoc
// @Summary      Introspect a token
// @Description  Returns the structured verification result. Invalid tokens yield 200 with is_valid=false.
// @Tags         tokens
// @Accept       json
// @Produce      json
// @Param        input body TokenInput true "Token"
// @Success      200 {object} token.VerificationResult
// @Failure      default {object} apperr.appError "Error"
// @Router       /tokens/verify [post]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	input := TokenInput{}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Warn(ctx, err).Msg("token.Handler.Verify: invalid request body")
		httpx.ReturnError(ctx, w, err)
		return
	}
	if input.Token == "" {
		httpx.ReturnError(ctx, w, apperr.ErrBadRequest().WithDetail("token is required"))
		return
	}

	result, err := h.svc.Verify(ctx, input.Token)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, result)
}

// Refresh godoc
// @Summary      Refresh an access token
// @Description  Exchanges a valid refresh token for a new pair. The old refresh token is revoked.
// @Tags         tokens
// @Accept       json
// @Produce      json
// @Param        input body RefreshInput true "Refresh token"
// @Success      200 {object} token.Pair
// @Failure      default {object} apperr.appError "Error"
// @Router       /tokens/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	input := RefreshInput{}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Warn(ctx, err).Msg("token.Handler.Refresh: invalid request body")
		httpx.ReturnError(ctx, w, err)
		return
	}
	if input.RefreshToken == "" {
		httpx.ReturnError(ctx, w, apperr.ErrBadRequest().WithDetail("refresh_token is required"))
		return
	}

	pair, err := h.svc.RefreshAccessToken(ctx, input.RefreshToken)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, pair)
}

// Revoke godoc
// @Summary      Revoke a token
// @Description  Adds the token to the revocation list. Expired tokens are accepted.
// @Tags         tokens
// @Accept       json
// @Param        input body TokenInput true "Token"
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /tokens/revoke [post]
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	input := TokenInput{}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Warn(ctx, err).Msg("token.Handler.Revoke: invalid request body")
		httpx.ReturnError(ctx, w, err)
		return
	}
	if input.Token == "" {
		httpx.ReturnError(ctx, w, apperr.ErrBadRequest().WithDetail("token is required"))
		return
	}

	if err := h.svc.Revoke(ctx, input.Token); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Rotate godoc
// @Summary      Rotate the caller's token pair
// @Description  Issues fresh access and refresh tokens for the authenticated session and revokes all previously issued ones.
// @Tags         tokens
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} token.Pair
// @Failure      default {object} apperr.appError "Error"
// @Router       /tokens/rotate [post]
func (h *Handler) Rotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pair, err := h.svc.Rotate(ctx)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, pair)
}
