package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
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

// securityEventModel is an append-only review log. Ids are assigned by the
// database since rows are never referenced from elsewhere.
type securityEventModel struct {
	ID         int64                 `gorm:"primaryKey;autoIncrement"`
	EventType  string                `gorm:"not null"`
	SessionID  *uuid.UUID            `gorm:"type:uuid"`
	UserID     *uuid.UUID            `gorm:"type:uuid"`
	TenantID   *uuid.UUID            `gorm:"type:uuid"`
	Details    jsonb[map[string]any] `gorm:"type:jsonb"`
	OccurredAt time.Time             `gorm:"not null"`
	CreatedAt  time.Time
}

func (securityEventModel) TableName() string { return "security_events" }
