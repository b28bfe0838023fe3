package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/app/session"
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

type sessionModel struct {
	ID                uuid.UUID `gorm:"primaryKey"`
	UserID            uuid.UUID
	TenantID          *uuid.UUID
	DeviceID          string
	DeviceInfo        jsonb[session.DeviceInfo] `gorm:"type:jsonb"`
	RefreshTokenHash  string                    `json:"-"`
	CreatedAt         time.Time
	LastAccessedAt    time.Time
	ExpiresAt         time.Time
	IPAddress         string
	Location          *jsonb[session.Location] `gorm:"type:jsonb"`
	IsActive          bool
	IsTrusted         bool
	SecurityLevel     string
	Activities        jsonb[[]session.Activity] `gorm:"type:jsonb"`
	FailedValidations int
	LockedUntil       *time.Time
	Metadata          jsonb[session.Metadata] `gorm:"type:jsonb"`
}

func (sessionModel) TableName() string { return "sessions" }

func (m *sessionModel) toDTO() session.Session {
	dto := session.Session{
		ID:                m.ID,
		UserID:            m.UserID,
		TenantID:          m.TenantID,
		DeviceID:          m.DeviceID,
		DeviceInfo:        m.DeviceInfo.V,
		CreatedAt:         m.CreatedAt,
		LastAccessedAt:    m.LastAccessedAt,
		ExpiresAt:         m.ExpiresAt,
		IPAddress:         m.IPAddress,
		IsActive:          m.IsActive,
		IsTrusted:         m.IsTrusted,
		SecurityLevel:     session.SecurityLevel(m.SecurityLevel),
		Activities:        m.Activities.V,
		FailedValidations: m.FailedValidations,
		LockedUntil:       m.LockedUntil,
		Metadata:          m.Metadata.V,
	}
	if m.Location != nil {
		loc := m.Location.V
		dto.Location = &loc
	}

	return dto
}

func fromDTO(dto session.Session, rtHash string) *sessionModel {
	m := &sessionModel{
		ID:                dto.ID,
		UserID:            dto.UserID,
		TenantID:          dto.TenantID,
		DeviceID:          dto.DeviceID,
		DeviceInfo:        jsonb[session.DeviceInfo]{V: dto.DeviceInfo},
		RefreshTokenHash:  rtHash,
		CreatedAt:         dto.CreatedAt,
		LastAccessedAt:    dto.LastAccessedAt,
		ExpiresAt:         dto.ExpiresAt,
		IPAddress:         dto.IPAddress,
		IsActive:          dto.IsActive,
		IsTrusted:         dto.IsTrusted,
		SecurityLevel:     string(dto.SecurityLevel),
		Activities:        jsonb[[]session.Activity]{V: dto.Activities},
		FailedValidations: dto.FailedValidations,
		LockedUntil:       dto.LockedUntil,
		Metadata:          jsonb[session.Metadata]{V: dto.Metadata},
	}
	if dto.Location != nil {
		m.Location = &jsonb[session.Location]{V: *dto.Location}
	}

	return m
}
