package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/app/session"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
	"github.com/teelink/clubauth/internal/infrastructure/httpx"
	"github.com/teelink/clubauth/internal/infrastructure/logger"
)

const (
	URLParamSessionID = "session_id"
	URLParamTenantID  = "tenant_id"
	URLParamUserID    = "user_id"

	QueryParamExcludeDevice = "exclude_device"
)

type SessionService interface {
	CreateSession(ctx context.Context, req session.CreateSessionReq) (session.CreationResult, error)
	ValidateSession(ctx context.Context, id uuid.UUID) (session.ValidationResult, error)
	RefreshSession(ctx context.Context, id uuid.UUID) (session.RefreshResult, error)
	TerminateSession(ctx context.Context, id uuid.UUID) error
	Quarantine(ctx context.Context, id uuid.UUID, reason string) error
	TerminateAllUserSessions(ctx context.Context, userID uuid.UUID, excludeDeviceID string) error
	TerminateAllTenantSessions(ctx context.Context, tenantID uuid.UUID) error
	GetSession(ctx context.Context, id uuid.UUID) (session.Session, error)
	ListUserSessions(ctx context.Context, userID uuid.UUID) ([]session.Session, error)
	RecordActivity(ctx context.Context, action string) error
}

// CreateSessionInput mirrors session.CreateSessionReq with an optional local
// hour: a missing value means "unknown", not midnight.
type CreateSessionInput struct {
	UserID     uuid.UUID          `json:"user_id"`
	TenantID   *uuid.UUID         `json:"tenant_id,omitempty"`
	DeviceInfo session.DeviceInfo `json:"device_info"`
	IPAddress  string             `json:"ip_address,omitempty"`
	Location   *session.Location  `json:"location,omitempty"`
	LocalHour  *int               `json:"local_hour,omitempty"`
	Scopes     []string           `json:"scopes,omitempty"`
}

type QuarantineInput struct {
	Reason string `json:"reason"`
}

type ActivityInput struct {
	Action string `json:"action"`
}

type Handler struct {
	svc SessionService
}

func NewHandler(svc SessionService) *Handler {
	if svc == nil {
		panic("nil SessionService")
	}
	return &Handler{svc: svc}
}

// CreateSession godoc
// @Summary      Create a session
// @Description  Runs policy compliance and risk checks, then issues a session with an access/refresh token pair.
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        input body CreateSessionInput true "Session request"
// @Success      201 {object} session.CreationResult
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	input := CreateSessionInput{}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Warn(ctx, err).Msg("session.Handler.CreateSession: invalid request body")
		httpx.ReturnError(ctx, w, err)
		return
	}

	req := session.CreateSessionReq{
		UserID:     input.UserID,
		TenantID:   input.TenantID,
		DeviceInfo: input.DeviceInfo,
		IPAddress:  input.IPAddress,
		Location:   input.Location,
		LocalHour:  -1,
		Scopes:     input.Scopes,
	}
	if input.LocalHour != nil {
		req.LocalHour = *input.LocalHour
	}

	result, err := h.svc.CreateSession(ctx, req)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusCreated, result)
}

// ValidateSession godoc
// @Summary      Validate a session
// @Description  Checks expiry, idle timeout, lockout, device trust and anomalies. Invalid sessions yield 200 with is_valid=false.
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Param        session_id path string true "Session ID"
// @Success      200 {object} session.ValidationResult
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions/{session_id}/validate [post]
func (h *Handler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.sessionID(ctx, w, r, "ValidateSession")
	if !ok {
		return
	}

	result, err := h.svc.ValidateSession(ctx, id)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, result)
}

// RefreshSession godoc
// @Summary      Refresh a session
// @Description  Extends the session when it is close to expiry and issues a fresh access token. A no-op otherwise.
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Param        session_id path string true "Session ID"
// @Success      200 {object} session.RefreshResult
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions/{session_id}/refresh [post]
func (h *Handler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.sessionID(ctx, w, r, "RefreshSession")
	if !ok {
		return
	}

	result, err := h.svc.RefreshSession(ctx, id)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, result)
}

// GetSession godoc
// @Summary      Get a session
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Param        session_id path string true "Session ID"
// @Success      200 {object} session.Session
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions/{session_id} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.sessionID(ctx, w, r, "GetSession")
	if !ok {
		return
	}

	sess, err := h.svc.GetSession(ctx, id)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, sess)
}

// ListUserSessions godoc
// @Summary      List a user's active sessions
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Param        user_id query string true "User ID"
// @Success      200 {array} session.Session
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions [get]
func (h *Handler) ListUserSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := r.URL.Query().Get(URLParamUserID)
	userID, err := uuid.Parse(idStr)
	if err != nil {
		logger.Warn(ctx, err).
			Str(session.FieldUserID.String(), idStr).
			Msg("session.Handler.ListUserSessions: invalid user ID format")
		httpx.ReturnError(ctx, w, apperr.ErrBadRequest())
		return
	}

	sessions, err := h.svc.ListUserSessions(ctx, userID)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, sessions)
}

// TerminateSession godoc
// @Summary      Terminate a session
// @Description  Revokes the session's tokens. Terminating an already terminated session is a no-op.
// @Tags         sessions
// @Security     BearerAuth
// @Param        session_id path string true "Session ID"
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions/{session_id} [delete]
func (h *Handler) TerminateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.sessionID(ctx, w, r, "TerminateSession")
	if !ok {
		return
	}

	if err := h.svc.TerminateSession(ctx, id); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Quarantine godoc
// @Summary      Quarantine a session
// @Description  Marks the session untrusted and inactive and revokes its tokens. One-way.
// @Tags         sessions
// @Security     BearerAuth
// @Accept       json
// @Param        session_id path string true "Session ID"
// @Param        input body QuarantineInput true "Reason"
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions/{session_id}/quarantine [post]
func (h *Handler) Quarantine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.sessionID(ctx, w, r, "Quarantine")
	if !ok {
		return
	}

	input := QuarantineInput{}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Warn(ctx, err).Msg("session.Handler.Quarantine: invalid request body")
		httpx.ReturnError(ctx, w, err)
		return
	}

	if err := h.svc.Quarantine(ctx, id, input.Reason); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TerminateAllUserSessions godoc
// @Summary      Terminate all sessions for a user
// @Description  Optionally keeps the session on one device alive via the exclude_device query parameter.
// @Tags         sessions
// @Security     BearerAuth
// @Param        user_id query string true "User ID"
// @Param        exclude_device query string false "Device ID to keep"
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions [delete]
func (h *Handler) TerminateAllUserSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := r.URL.Query().Get(URLParamUserID)
	userID, err := uuid.Parse(idStr)
	if err != nil {
		logger.Warn(ctx, err).
			Str(session.FieldUserID.String(), idStr).
			Msg("session.Handler.TerminateAllUserSessions: invalid user ID format")
		httpx.ReturnError(ctx, w, apperr.ErrBadRequest())
		return
	}

	excludeDevice := r.URL.Query().Get(QueryParamExcludeDevice)

	if err := h.svc.TerminateAllUserSessions(ctx, userID, excludeDevice); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TerminateAllTenantSessions godoc
// @Summary      Terminate all sessions for a tenant
// @Tags         sessions
// @Security     BearerAuth
// @Param        tenant_id path string true "Tenant ID"
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /tenants/{tenant_id}/sessions [delete]
func (h *Handler) TerminateAllTenantSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, URLParamTenantID)
	tenantID, err := uuid.Parse(idStr)
	if err != nil {
		logger.Warn(ctx, err).
			Str(session.FieldTenantID.String(), idStr).
			Msg("session.Handler.TerminateAllTenantSessions: invalid tenant ID format")
		httpx.ReturnError(ctx, w, apperr.ErrBadRequest())
		return
	}

	if err := h.svc.TerminateAllTenantSessions(ctx, tenantID); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RecordActivity godoc
// @Summary      Record an action on the caller's session
// @Tags         sessions
// @Security     BearerAuth
// @Accept       json
// @Param        input body ActivityInput true "Action"
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions/activity [post]
func (h *Handler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	input := ActivityInput{}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Warn(ctx, err).Msg("session.Handler.RecordActivity: invalid request body")
		httpx.ReturnError(ctx, w, err)
		return
	}
	if input.Action == "" {
		httpx.ReturnError(ctx, w, apperr.ErrBadRequest().WithDetail("action is required"))
		return
	}

	if err := h.svc.RecordActivity(ctx, input.Action); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sessionID(ctx context.Context, w http.ResponseWriter, r *http.Request, op string) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, URLParamSessionID)
	id, err := uuid.Parse(idStr)
	if err != nil {
		logger.Warn(ctx, err).
			Str(session.FieldSessionID.String(), idStr).
			Str("op", op).
			Msg("session.Handler: invalid session ID format")
		httpx.ReturnError(ctx, w, apperr.ErrBadRequest())
		return uuid.Nil, false
	}
	return id, true
}
