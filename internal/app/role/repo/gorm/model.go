package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/app/role"
	"github.com/teelink/clubauth/internal/infrastructure/db"
)

// jsonb marshals any payload into a postgres jsonb column.
type jsonb[T any] struct {
	V T
}

func (j jsonb[T]) Value() (driver.Value, error) {
	return json.Marshal(j.V)
}

func (j *jsonb[T]) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, &j.V)
	case string:
		return json.Unmarshal([]byte(v), &j.V)
	case nil:
		var zero T
		j.V = zero
		return nil
	default:
		return fmt.Errorf("jsonb.Scan: unsupported source type %T", src)
	}
}

type roleModel struct {
	db.Base
	ID          uuid.UUID
	Name        string
	DisplayName string
	Level       int
	ParentIDs   jsonb[[]uuid.UUID]      `gorm:"type:jsonb"`
	Permissions jsonb[[]role.Permission] `gorm:"type:jsonb"`
	ScopeType   string
	IsActive    bool
}

func (roleModel) TableName() string { return "roles" }

func (m *roleModel) toDTO() role.Role {
	return role.Role{
		ID:          m.ID,
		Name:        m.Name,
		DisplayName: m.DisplayName,
		Level:       m.Level,
		ParentIDs:   m.ParentIDs.V,
		Permissions: m.Permissions.V,
		ScopeType:   role.ScopeType(m.ScopeType),
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func roleFromDTO(dto role.Role) *roleModel {
	return &roleModel{
		ID:          dto.ID,
		Name:        dto.Name,
		DisplayName: dto.DisplayName,
		Level:       dto.Level,
		ParentIDs:   jsonb[[]uuid.UUID]{V: dto.ParentIDs},
		Permissions: jsonb[[]role.Permission]{V: dto.Permissions},
		ScopeType:   string(dto.ScopeType),
		IsActive:    dto.IsActive,
	}
}

type assignmentModel struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	RoleID    uuid.UUID
	ScopeType *string
	ScopeID   *uuid.UUID
	CreatedAt time.Time
}

func (assignmentModel) TableName() string { return "role_assignments" }

func (m *assignmentModel) toDTO() role.Assignment {
	dto := role.Assignment{
		ID:        m.ID,
		UserID:    m.UserID,
		RoleID:    m.RoleID,
		CreatedAt: m.CreatedAt,
	}
	if m.ScopeType != nil && m.ScopeID != nil {
		dto.Scope = &role.Scope{Type: role.ScopeType(*m.ScopeType), ID: *m.ScopeID}
	}

	return dto
}

func assignmentFromDTO(dto role.Assignment) *assignmentModel {
	m := &assignmentModel{
		ID:        dto.ID,
		UserID:    dto.UserID,
		RoleID:    dto.RoleID,
		CreatedAt: dto.CreatedAt,
	}
	if dto.Scope != nil {
		st := string(dto.Scope.Type)
		id := dto.Scope.ID
		m.ScopeType = &st
		m.ScopeID = &id
	}

	return m
}
