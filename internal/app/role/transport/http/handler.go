package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/app/role"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
	"github.com/teelink/clubauth/internal/infrastructure/httpx"
	"github.com/teelink/clubauth/internal/infrastructure/logger"
)

const (
	URLParamRoleID = "role_id"
	URLParamUserID = "user_id"

	QueryParamScopeType = "scope_type"
	QueryParamScopeID   = "scope_id"
)

type RoleService interface {
	CreateRole(ctx context.Context, req role.CreateRoleReq) (uuid.UUID, error)
	GetRole(ctx context.Context, id uuid.UUID) (role.Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
	AssignRole(ctx context.Context, userID, roleID uuid.UUID, scope *role.Scope) (uuid.UUID, error)
	UnassignRole(ctx context.Context, userID, roleID uuid.UUID, scope *role.Scope) error
	GetUserPermissions(ctx context.Context, userID uuid.UUID, scope *role.Scope) ([]role.Permission, error)
	CheckPermission(ctx context.Context, permissionName string, scope *role.Scope) (bool, error)
}

type AssignmentInput struct {
	UserID uuid.UUID   `json:"user_id"`
	Scope  *role.Scope `json:"scope,omitempty"`
}

type CheckPermissionInput struct {
	Permission string      `json:"permission"`
	Scope      *role.Scope `json:"scope,omitempty"`
}

type CheckPermissionOutput struct {
	Allowed bool `json:"allowed"`
}

type CreatedOutput struct {
	ID uuid.UUID `json:"id"`
}

type Handler struct {
	svc RoleService
}

func NewHandler(svc RoleService) *Handler {
	if svc == nil {
		panic("nil RoleService")
	}
	return &Handler{svc: svc}
}

// CreateRole godoc
// @Summary      Create a role
// @Description  Parents are declared by name and must already exist.
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body role.CreateRoleReq true "Role"
// @Success      201 {object} CreatedOutput
// @Failure      default {object} apperr.appError "Error"
// @Router       /roles [post]
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := role.CreateRoleReq{}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		logger.Warn(ctx, err).Msg("role.Handler.CreateRole: invalid request body")
		httpx.ReturnError(ctx, w, err)
		return
	}

	id, err := h.svc.CreateRole(ctx, req)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusCreated, CreatedOutput{ID: id})
}

// GetRole godoc
// @Summary      Get a role
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        role_id path string true "Role ID"
// @Success      200 {object} role.Role
// @Failure      default {object} apperr.appError "Error"
// @Router       /roles/{role_id} [get]
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.roleID(ctx, w, r, "GetRole")
	if !ok {
		return
	}

	rl, err := h.svc.GetRole(ctx, id)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, rl)
}

// DeleteRole godoc
// @Summary      Delete a role
// @Description  Fails with a conflict while the role has live assignments.
// @Tags         roles
// @Security     BearerAuth
// @Param        role_id path string true "Role ID"
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /roles/{role_id} [delete]
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.roleID(ctx, w, r, "DeleteRole")
	if !ok {
		return
	}

	if err := h.svc.DeleteRole(ctx, id); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AssignRole godoc
// @Summary      Assign a role to a user
// @Description  The scope must be compatible with the role's scope type. Duplicate assignments are rejected.
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        role_id path string true "Role ID"
// @Param        input body AssignmentInput true "Assignment"
// @Success      201 {object} CreatedOutput
// @Failure      default {object} apperr.appError "Error"
// @Router       /roles/{role_id}/assignments [post]
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roleID, ok := h.roleID(ctx, w, r, "AssignRole")
	if !ok {
		return
	}

	input := AssignmentInput{}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Warn(ctx, err).Msg("role.Handler.AssignRole: invalid request body")
		httpx.ReturnError(ctx, w, err)
		return
	}

	id, err := h.svc.AssignRole(ctx, input.UserID, roleID, input.Scope)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusCreated, CreatedOutput{ID: id})
}

// UnassignRole godoc
// @Summary      Remove a role assignment
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Param        role_id path string true "Role ID"
// @Param        input body AssignmentInput true "Assignment"
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /roles/{role_id}/assignments [delete]
func (h *Handler) UnassignRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roleID, ok := h.roleID(ctx, w, r, "UnassignRole")
	if !ok {
		return
	}

	input := AssignmentInput{}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Warn(ctx, err).Msg("role.Handler.UnassignRole: invalid request body")
		httpx.ReturnError(ctx, w, err)
		return
	}

	if err := h.svc.UnassignRole(ctx, input.UserID, roleID, input.Scope); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetUserPermissions godoc
// @Summary      List a user's effective permissions
// @Description  Union of assigned roles with inheritance, skill-tier grants and achievement grants, narrowed to the optional scope.
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        user_id path string true "User ID"
// @Param        scope_type query string false "Scope type"
// @Param        scope_id query string false "Scope ID"
// @Success      200 {array} role.Permission
// @Failure      default {object} apperr.appError "Error"
// @Router       /users/{user_id}/permissions [get]
func (h *Handler) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, URLParamUserID)
	userID, err := uuid.Parse(idStr)
	if err != nil {
		logger.Warn(ctx, err).
			Str(role.FieldUserID.String(), idStr).
			Msg("role.Handler.GetUserPermissions: invalid user ID format")
		httpx.ReturnError(ctx, w, apperr.ErrBadRequest())
		return
	}

	scope, ok := h.queryScope(ctx, w, r, "GetUserPermissions")
	if !ok {
		return
	}

	perms, err := h.svc.GetUserPermissions(ctx, userID, scope)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, perms)
}

// CheckPermission godoc
// @Summary      Check a permission for the caller
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body CheckPermissionInput true "Permission"
// @Success      200 {object} CheckPermissionOutput
// @Failure      default {object} apperr.appError "Error"
// @Router       /permissions/check [post]
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	input := CheckPermissionInput{}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Warn(ctx, err).Msg("role.Handler.CheckPermission: invalid request body")
		httpx.ReturnError(ctx, w, err)
		return
	}
	if input.Permission == "" {
		httpx.ReturnError(ctx, w, apperr.ErrBadRequest().WithDetail("permission is required"))
		return
	}

	allowed, err := h.svc.CheckPermission(ctx, input.Permission, input.Scope)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, CheckPermissionOutput{Allowed: allowed})
}

func (h *Handler) roleID(ctx context.Context, w http.ResponseWriter, r *http.Request, op string) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, URLParamRoleID)
	id, err := uuid.Parse(idStr)
	if err != nil {
		logger.Warn(ctx, err).
			Str(role.FieldRoleID.String(), idStr).
			Str("op", op).
			Msg("role.Handler: invalid role ID format")
		httpx.ReturnError(ctx, w, apperr.ErrBadRequest())
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) queryScope(ctx context.Context, w http.ResponseWriter, r *http.Request, op string) (*role.Scope, bool) {
	scopeType := r.URL.Query().Get(QueryParamScopeType)
	scopeIDStr := r.URL.Query().Get(QueryParamScopeID)
	if scopeType == "" && scopeIDStr == "" {
		return nil, true
	}

	scopeID, err := uuid.Parse(scopeIDStr)
	if err != nil {
		logger.Warn(ctx, err).
			Str(role.FieldScope.String(), scopeIDStr).
			Str("op", op).
			Msg("role.Handler: invalid scope ID format")
		httpx.ReturnError(ctx, w, apperr.ErrBadRequest())
		return nil, false
	}

	return &role.Scope{Type: role.ScopeType(scopeType), ID: scopeID}, true
}
