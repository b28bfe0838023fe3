package role

import (
	"time"

	"github.com/google/uuid"
)

type ScopeType string

const (
	ScopeGlobal     ScopeType = "global"
	ScopeTenant     ScopeType = "tenant"
	ScopeCourse     ScopeType = "course"
	ScopeTournament ScopeType = "tournament"
	ScopeGroup      ScopeType = "group"
)

func (t ScopeType) CheckIsValid() error {
	switch t {
	case ScopeGlobal, ScopeTenant, ScopeCourse, ScopeTournament, ScopeGroup:
		return nil
	default:
		return ErrInvalidScopeType()
	}
}

// Scope restricts a role assignment to one tenant, course, tournament or
// group. A nil Scope on an assignment means the grant applies everywhere.
type Scope struct {
	Type ScopeType `json:"type"`
	ID   uuid.UUID `json:"id"`
}

type Category string

const (
	CategoryRead   Category = "read"
	CategoryWrite  Category = "write"
	CategoryManage Category = "manage"
	CategoryAdmin  Category = "admin"
	CategoryMember Category = "member"
)

// Permission is held or not held, never partially granted.
type Permission struct {
	Name         string   `json:"name"`
	Category     Category `json:"category"`
	ResourceType string   `json:"resource_type"`
	Action       string   `json:"action"`
}

type Role struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	DisplayName string       `json:"display_name"`
	Level       int          `json:"level"`
	ParentIDs   []uuid.UUID  `json:"parent_ids,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
	ScopeType   ScopeType    `json:"scope_type"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Assignment binds a user to a role, optionally narrowed to a scope.
type Assignment struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	RoleID    uuid.UUID `json:"role_id"`
	Scope     *Scope    `json:"scope,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateRoleReq declares parents by name; they are resolved to ids at
// creation time and must already exist.
type CreateRoleReq struct {
	Name        string       `json:"name"`
	DisplayName string       `json:"display_name"`
	Level       int          `json:"level"`
	ParentNames []string     `json:"parent_names,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
	ScopeType   ScopeType    `json:"scope_type"`
}

// PermissionSet is keyed by permission name.
type PermissionSet map[string]Permission

func (s PermissionSet) Add(perms ...Permission) {
	for _, p := range perms {
		if _, ok := s[p.Name]; !ok {
			s[p.Name] = p
		}
	}
}

func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s PermissionSet) List() []Permission {
	out := make([]Permission, 0, len(s))
	for _, p := range s {
		out = append(out, p)
	}

	return out
}
