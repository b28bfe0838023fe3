package gorm

import (
	"time"

	"github.com/google/uuid"
)

type revokedTokenModel struct {
	JTI       uuid.UUID `gorm:"primaryKey;column:jti"`
	SessionID uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (revokedTokenModel) TableName() string { return "revoked_tokens" }

type issuedTokenModel struct {
	JTI       uuid.UUID `gorm:"primaryKey;column:jti"`
	SessionID uuid.UUID `gorm:"index"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (issuedTokenModel) TableName() string { return "issued_tokens" }
