package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/teelink/clubauth/internal/infrastructure/db"
	"gorm.io/gorm"
)

// gormRepo is a persistent revocation list. Rows are only useful until the
// token would have expired on its own, so the reaper purges them periodically.
type gormRepo struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *gormRepo {
	return &gormRepo{db: db}
}

func (r *gormRepo) Add(ctx context.Context, jti, sessionID uuid.UUID, expiresAt time.Time) error {
	model := &revokedTokenModel{
		JTI:       jti,
		SessionID: sessionID,
		ExpiresAt: expiresAt,
	}

	err := r.db.WithContext(ctx).Create(model).Error
	if err != nil {
		// Revoking the same token twice is fine.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == db.DuplicateCode {
			return nil
		}
		return fmt.Errorf("gormRepo.Add: %w", err)
	}

	return nil
}

func (r *gormRepo) IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).Model(&revokedTokenModel{}).
		Where("jti = ?", jti).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gormRepo.IsRevoked: %w", err)
	}

	return count > 0, nil
}

// RecordIssued remembers a live jti so the whole session can be revoked later,
// including tokens minted by other instances.
func (r *gormRepo) RecordIssued(ctx context.Context, jti, sessionID uuid.UUID, expiresAt time.Time) error {
	model := &issuedTokenModel{
		JTI:       jti,
		SessionID: sessionID,
		ExpiresAt: expiresAt,
	}

	err := r.db.WithContext(ctx).Create(model).Error
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == db.DuplicateCode {
			return nil
		}
		return fmt.Errorf("gormRepo.RecordIssued: %w", err)
	}

	return nil
}

// RevokeSession moves every issued jti of the session onto the revocation list
// in one transaction.
func (r *gormRepo) RevokeSession(ctx context.Context, sessionID uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Exec(
			`INSERT INTO revoked_tokens (jti, session_id, expires_at, created_at)
			 SELECT jti, session_id, expires_at, now() FROM issued_tokens WHERE session_id = ?
			 ON CONFLICT (jti) DO NOTHING`,
			sessionID,
		).Error
		if err != nil {
			return err
		}

		return tx.Where("session_id = ?", sessionID).Delete(&issuedTokenModel{}).Error
	})
	if err != nil {
		return fmt.Errorf("gormRepo.RevokeSession: %w", err)
	}

	return nil
}

// PurgeExpired drops entries for tokens that have expired anyway and reports
// how many were removed.
func (r *gormRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64

	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&revokedTokenModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("gormRepo.PurgeExpired: %w", result.Error)
	}
	total += result.RowsAffected

	result = r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&issuedTokenModel{})
	if result.Error != nil {
		return total, fmt.Errorf("gormRepo.PurgeExpired: %w", result.Error)
	}
	total += result.RowsAffected

	return total, nil
}
