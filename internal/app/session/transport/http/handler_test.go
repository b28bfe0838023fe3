package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teelink/clubauth/internal/app/session"
	session_http "github.com/teelink/clubauth/internal/app/session/transport/http"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
)

type stubService struct {
	createReq    *session.CreateSessionReq
	createResult session.CreationResult
	createErr    error

	validatedID  uuid.UUID
	terminatedID uuid.UUID
	listedUser   uuid.UUID
	excludedDev  string
	action       string
	err          error
}

func (s *stubService) CreateSession(_ context.Context, req session.CreateSessionReq) (session.CreationResult, error) {
	s.createReq = &req
	return s.createResult, s.createErr
}

func (s *stubService) ValidateSession(_ context.Context, id uuid.UUID) (session.ValidationResult, error) {
	s.validatedID = id
	return session.ValidationResult{IsValid: true}, s.err
}

func (s *stubService) RefreshSession(_ context.Context, id uuid.UUID) (session.RefreshResult, error) {
	return session.RefreshResult{Refreshed: true}, s.err
}

func (s *stubService) TerminateSession(_ context.Context, id uuid.UUID) error {
	s.terminatedID = id
	return s.err
}

func (s *stubService) Quarantine(_ context.Context, id uuid.UUID, _ string) error {
	return s.err
}

func (s *stubService) TerminateAllUserSessions(_ context.Context, userID uuid.UUID, excludeDeviceID string) error {
	s.listedUser = userID
	s.excludedDev = excludeDeviceID
	return s.err
}

func (s *stubService) TerminateAllTenantSessions(_ context.Context, _ uuid.UUID) error {
	return s.err
}

func (s *stubService) GetSession(_ context.Context, _ uuid.UUID) (session.Session, error) {
	return session.Session{}, s.err
}

func (s *stubService) ListUserSessions(_ context.Context, userID uuid.UUID) ([]session.Session, error) {
	s.listedUser = userID
	return []session.Session{{UserID: userID}}, s.err
}

func (s *stubService) RecordActivity(_ context.Context, action string) error {
	s.action = action
	return s.err
}

func newRouter(svc session_http.SessionService) chi.Router {
	h := session_http.NewHandler(svc)
	r := chi.NewRouter()
	r.Post("/sessions", h.CreateSession)
	r.Get("/sessions", h.ListUserSessions)
	r.Delete("/sessions", h.TerminateAllUserSessions)
	r.Post("/sessions/activity", h.RecordActivity)
	r.Get("/sessions/{"+session_http.URLParamSessionID+"}", h.GetSession)
	r.Delete("/sessions/{"+session_http.URLParamSessionID+"}", h.TerminateSession)
	r.Post("/sessions/{"+session_http.URLParamSessionID+"}/validate", h.ValidateSession)
	return r
}

func postJSON(t *testing.T, r chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandler_CreateSession(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("ok, local hour passed through", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{}
		rr := postJSON(t, newRouter(svc), "/sessions", map[string]any{
			"user_id":     userID,
			"device_info": map[string]any{"device_id": "d1", "platform": "ios"},
			"local_hour":  14,
		})

		require.Equal(t, http.StatusCreated, rr.Code)
		require.NotNil(t, svc.createReq)
		assert.Equal(t, userID, svc.createReq.UserID)
		assert.Equal(t, 14, svc.createReq.LocalHour)
	})

	t.Run("missing local hour means unknown", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{}
		rr := postJSON(t, newRouter(svc), "/sessions", map[string]any{
			"user_id":     userID,
			"device_info": map[string]any{"device_id": "d1", "platform": "ios"},
		})

		require.Equal(t, http.StatusCreated, rr.Code)
		require.NotNil(t, svc.createReq)
		assert.Equal(t, -1, svc.createReq.LocalHour)
	})

	t.Run("policy violation maps to 403", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{createErr: session.ErrPolicyViolation([]string{"compromised_device"})}
		rr := postJSON(t, newRouter(svc), "/sessions", map[string]any{
			"user_id":     userID,
			"device_info": map[string]any{"device_id": "d1", "jailbroken": true},
		})

		require.Equal(t, http.StatusForbidden, rr.Code)
		assert.NotZero(t, rr.Body.Len())
	})

	t.Run("malformed body -> 400 and service not called", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{}
		req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte("{")))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Nil(t, svc.createReq)
	})
}

func TestHandler_SessionIDRouting(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()

	t.Run("validate ok", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{}
		req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID.String()+"/validate", nil)
		rr := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, sessionID, svc.validatedID)

		var result session.ValidationResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
		assert.True(t, result.IsValid)
	})

	t.Run("invalid session id -> 400", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{}
		req := httptest.NewRequest(http.MethodPost, "/sessions/not-a-uuid/validate", nil)
		rr := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, uuid.Nil, svc.validatedID)
	})

	t.Run("terminate -> 204", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{}
		req := httptest.NewRequest(http.MethodDelete, "/sessions/"+sessionID.String(), nil)
		rr := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, sessionID, svc.terminatedID)
	})

	t.Run("forbidden service error -> 403", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{err: apperr.ErrForbidden()}
		req := httptest.NewRequest(http.MethodDelete, "/sessions/"+sessionID.String(), nil)
		rr := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestHandler_UserScopedRoutes(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("list sessions by user", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{}
		req := httptest.NewRequest(http.MethodGet, "/sessions?user_id="+userID.String(), nil)
		rr := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, userID, svc.listedUser)
	})

	t.Run("invalid user id -> 400", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{}
		req := httptest.NewRequest(http.MethodGet, "/sessions?user_id=nope", nil)
		rr := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("terminate all with device exclusion", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{}
		req := httptest.NewRequest(http.MethodDelete,
			"/sessions?user_id="+userID.String()+"&exclude_device=d1", nil)
		rr := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, userID, svc.listedUser)
		assert.Equal(t, "d1", svc.excludedDev)
	})

	t.Run("record activity", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{}
		rr := postJSON(t, newRouter(svc), "/sessions/activity", map[string]any{"action": "book_tee_time"})

		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "book_tee_time", svc.action)
	})

	t.Run("record activity without action -> 400", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{}
		rr := postJSON(t, newRouter(svc), "/sessions/activity", map[string]any{"action": ""})

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, svc.action)
	})
}
