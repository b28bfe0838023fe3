package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/app/policy"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
	"github.com/teelink/clubauth/internal/infrastructure/httpx"
	"github.com/teelink/clubauth/internal/infrastructure/logger"
)

const URLParamTenantID = "tenant_id"

// The global policy record is addressed as /policies/global.
const tenantGlobal = "global"

type PolicyService interface {
	GetPolicy(ctx context.Context, tenantID *uuid.UUID) (policy.SessionPolicy, error)
	SetPolicy(ctx context.Context, tenantID *uuid.UUID, p policy.SessionPolicy) error
}

type Handler struct {
	svc PolicyService
}

func NewHandler(svc PolicyService) *Handler {
	if svc == nil {
		panic("nil PolicyService")
	}
	return &Handler{svc: svc}
}

// GetPolicy godoc
// @Summary      Get the session policy for a tenant
// @Description  Use "global" as the tenant ID for the platform-wide record.
// @Tags         policies
// @Security     BearerAuth
// @Produce      json
// @Param        tenant_id path string true "Tenant ID or global"
// @Success      200 {object} policy.SessionPolicy
// @Failure      default {object} apperr.appError "Error"
// @Router       /policies/{tenant_id} [get]
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := h.tenantID(ctx, w, r, "GetPolicy")
	if !ok {
		return
	}

	p, err := h.svc.GetPolicy(ctx, tenantID)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, p)
}

// SetPolicy godoc
// @Summary      Replace the session policy for a tenant
// @Description  Validates the document, persists it and invalidates the cached copy.
// @Tags         policies
// @Security     BearerAuth
// @Accept       json
// @Param        tenant_id path string true "Tenant ID or global"
// @Param        input body policy.SessionPolicy true "Policy"
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /policies/{tenant_id} [put]
func (h *Handler) SetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := h.tenantID(ctx, w, r, "SetPolicy")
	if !ok {
		return
	}

	p := policy.SessionPolicy{}
	if err := httpx.DecodeJSON(r, &p); err != nil {
		logger.Warn(ctx, err).Msg("policy.Handler.SetPolicy: invalid request body")
		httpx.ReturnError(ctx, w, err)
		return
	}

	if err := h.svc.SetPolicy(ctx, tenantID, p); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) tenantID(ctx context.Context, w http.ResponseWriter, r *http.Request, op string) (*uuid.UUID, bool) {
	idStr := chi.URLParam(r, URLParamTenantID)
	if idStr == tenantGlobal {
		return nil, true
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		logger.Warn(ctx, err).
			Str(policy.FieldTenantID.String(), idStr).
			Str("op", op).
			Msg("policy.Handler: invalid tenant ID format")
		httpx.ReturnError(ctx, w, apperr.ErrBadRequest())
		return nil, false
	}
	return &id, true
}
