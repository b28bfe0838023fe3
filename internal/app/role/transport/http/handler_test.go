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
	"github.com/teelink/clubauth/internal/app/role"
	role_http "github.com/teelink/clubauth/internal/app/role/transport/http"
)

type stubRoleService struct {
	createdReq  *role.CreateRoleReq
	createdID   uuid.UUID
	deletedID   uuid.UUID
	assigned    *role.Scope
	assignedTo  uuid.UUID
	permsScope  *role.Scope
	permsUser   uuid.UUID
	checkedPerm string
	allowed     bool
	err         error
}

func (s *stubRoleService) CreateRole(_ context.Context, req role.CreateRoleReq) (uuid.UUID, error) {
	s.createdReq = &req
	return s.createdID, s.err
}

func (s *stubRoleService) GetRole(_ context.Context, id uuid.UUID) (role.Role, error) {
	return role.Role{ID: id}, s.err
}

func (s *stubRoleService) DeleteRole(_ context.Context, id uuid.UUID) error {
	s.deletedID = id
	return s.err
}

func (s *stubRoleService) AssignRole(_ context.Context, userID, roleID uuid.UUID, scope *role.Scope) (uuid.UUID, error) {
	s.assignedTo = userID
	s.assigned = scope
	return uuid.New(), s.err
}

func (s *stubRoleService) UnassignRole(_ context.Context, userID, roleID uuid.UUID, scope *role.Scope) error {
	return s.err
}

func (s *stubRoleService) GetUserPermissions(_ context.Context, userID uuid.UUID, scope *role.Scope) ([]role.Permission, error) {
	s.permsUser = userID
	s.permsScope = scope
	return []role.Permission{{Name: "view_tee_sheet"}}, s.err
}

func (s *stubRoleService) CheckPermission(_ context.Context, permissionName string, scope *role.Scope) (bool, error) {
	s.checkedPerm = permissionName
	return s.allowed, s.err
}

func newRouter(svc role_http.RoleService) chi.Router {
	h := role_http.NewHandler(svc)
	r := chi.NewRouter()
	r.Post("/roles", h.CreateRole)
	r.Get("/roles/{"+role_http.URLParamRoleID+"}", h.GetRole)
	r.Delete("/roles/{"+role_http.URLParamRoleID+"}", h.DeleteRole)
	r.Post("/roles/{"+role_http.URLParamRoleID+"}/assignments", h.AssignRole)
	r.Delete("/roles/{"+role_http.URLParamRoleID+"}/assignments", h.UnassignRole)
	r.Get("/users/{"+role_http.URLParamUserID+"}/permissions", h.GetUserPermissions)
	r.Post("/permissions/check", h.CheckPermission)
	return r
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandler_CreateRole(t *testing.T) {
	t.Parallel()

	svc := &stubRoleService{createdID: uuid.New()}
	rr := doJSON(t, newRouter(svc), http.MethodPost, "/roles", role.CreateRoleReq{
		Name:        "pro_shop_staff",
		DisplayName: "Pro Shop Staff",
		ScopeType:   role.ScopeTenant,
	})

	require.Equal(t, http.StatusCreated, rr.Code)
	require.NotNil(t, svc.createdReq)
	assert.Equal(t, "pro_shop_staff", svc.createdReq.Name)

	var out role_http.CreatedOutput
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, svc.createdID, out.ID)
}

func TestHandler_AssignRole(t *testing.T) {
	t.Parallel()

	roleID := uuid.New()
	userID := uuid.New()
	courseID := uuid.New()

	t.Run("scoped assignment", func(t *testing.T) {
		t.Parallel()

		svc := &stubRoleService{}
		rr := doJSON(t, newRouter(svc), http.MethodPost, "/roles/"+roleID.String()+"/assignments",
			role_http.AssignmentInput{
				UserID: userID,
				Scope:  &role.Scope{Type: role.ScopeCourse, ID: courseID},
			})

		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, userID, svc.assignedTo)
		require.NotNil(t, svc.assigned)
		assert.Equal(t, courseID, svc.assigned.ID)
	})

	t.Run("invalid role id -> 400", func(t *testing.T) {
		t.Parallel()

		svc := &stubRoleService{}
		rr := doJSON(t, newRouter(svc), http.MethodPost, "/roles/nope/assignments",
			role_http.AssignmentInput{UserID: userID})

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, uuid.Nil, svc.assignedTo)
	})
}

func TestHandler_GetUserPermissions(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	courseID := uuid.New()

	t.Run("with scope query", func(t *testing.T) {
		t.Parallel()

		svc := &stubRoleService{}
		req := httptest.NewRequest(http.MethodGet,
			"/users/"+userID.String()+"/permissions?scope_type=course&scope_id="+courseID.String(), nil)
		rr := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, userID, svc.permsUser)
		require.NotNil(t, svc.permsScope)
		assert.Equal(t, role.ScopeCourse, svc.permsScope.Type)
		assert.Equal(t, courseID, svc.permsScope.ID)
	})

	t.Run("no scope query means nil scope", func(t *testing.T) {
		t.Parallel()

		svc := &stubRoleService{}
		req := httptest.NewRequest(http.MethodGet, "/users/"+userID.String()+"/permissions", nil)
		rr := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Nil(t, svc.permsScope)
	})

	t.Run("scope_type without scope_id -> 400", func(t *testing.T) {
		t.Parallel()

		svc := &stubRoleService{}
		req := httptest.NewRequest(http.MethodGet,
			"/users/"+userID.String()+"/permissions?scope_type=course", nil)
		rr := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandler_CheckPermission(t *testing.T) {
	t.Parallel()

	t.Run("allowed", func(t *testing.T) {
		t.Parallel()

		svc := &stubRoleService{allowed: true}
		rr := doJSON(t, newRouter(svc), http.MethodPost, "/permissions/check",
			role_http.CheckPermissionInput{Permission: "enter_club_tournaments"})

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "enter_club_tournaments", svc.checkedPerm)

		var out role_http.CheckPermissionOutput
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		assert.True(t, out.Allowed)
	})

	t.Run("missing permission -> 400", func(t *testing.T) {
		t.Parallel()

		svc := &stubRoleService{}
		rr := doJSON(t, newRouter(svc), http.MethodPost, "/permissions/check",
			role_http.CheckPermissionInput{})

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, svc.checkedPerm)
	})
}
