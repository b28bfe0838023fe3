package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/app/policy"
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

// policyModel stores the whole policy document as one jsonb column. The
// global record uses the nil uuid as its tenant id.
type policyModel struct {
	TenantID  uuid.UUID                   `gorm:"primaryKey"`
	Policy    jsonb[policy.SessionPolicy] `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (policyModel) TableName() string { return "session_policies" }
