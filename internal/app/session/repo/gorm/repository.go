package gorm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/teelink/clubauth/internal/app/session"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
	"gorm.io/gorm"
)

var ErrSessionNotFound = apperr.New("session not found", session.CodeNotFound, apperr.ClassNotFound, apperr.LogLevelWarn)

type gormRepo struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *gormRepo {
	return &gormRepo{db: db}
}

func (r *gormRepo) Create(ctx context.Context, s session.Session, rtHash string) error {
	if err := r.db.WithContext(ctx).Create(fromDTO(s, rtHash)).Error; err != nil {
		return fmt.Errorf("gormRepo.Create: %w", err)
	}

	return nil
}

func (r *gormRepo) Get(ctx context.Context, id uuid.UUID) (session.Session, string, error) {
	var model sessionModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrSessionNotFound
		}
		return session.Session{}, "", fmt.Errorf("gormRepo.Get: %w", err)
	}

	return model.toDTO(), model.RefreshTokenHash, nil
}

func (r *gormRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]session.Session, error) {
	models := make([]sessionModel, 0)

	err := r.db.WithContext(ctx).Where("user_id = ? AND is_active", userID).Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("gormRepo.ListActiveByUser: %w", err)
	}

	return lo.Map(models, func(m sessionModel, _ int) session.Session { return m.toDTO() }), nil
}

func (r *gormRepo) DeviceSeen(ctx context.Context, userID uuid.UUID, deviceID string) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).Model(&sessionModel{}).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gormRepo.DeviceSeen: %w", err)
	}

	return count > 0, nil
}

func (r *gormRepo) ListActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]session.Session, error) {
	models := make([]sessionModel, 0)

	err := r.db.WithContext(ctx).Where("tenant_id = ? AND is_active", tenantID).Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("gormRepo.ListActiveByTenant: %w", err)
	}

	return lo.Map(models, func(m sessionModel, _ int) session.Session { return m.toDTO() }), nil
}

func (r *gormRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&sessionModel{}).Where("id = ?", id).
		Update("last_accessed_at", at)
	if result.Error != nil {
		return fmt.Errorf("gormRepo.Touch: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("gormRepo.Touch: %w", ErrSessionNotFound)
	}

	return nil
}

func (r *gormRepo) ExtendExpiry(ctx context.Context, id uuid.UUID, expiresAt, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&sessionModel{}).Where("id = ? AND is_active", id).
		Updates(map[string]interface{}{"expires_at": expiresAt, "last_accessed_at": at})
	if result.Error != nil {
		return fmt.Errorf("gormRepo.ExtendExpiry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("gormRepo.ExtendExpiry: %w", ErrSessionNotFound)
	}

	return nil
}

func (r *gormRepo) RecordFailedValidation(ctx context.Context, id uuid.UUID, count int, lockedUntil *time.Time) error {
	result := r.db.WithContext(ctx).Model(&sessionModel{}).Where("id = ?", id).
		Updates(map[string]interface{}{"failed_validations": count, "locked_until": lockedUntil})
	if result.Error != nil {
		return fmt.Errorf("gormRepo.RecordFailedValidation: %w", result.Error)
	}

	return nil
}

func (r *gormRepo) AppendActivity(ctx context.Context, id uuid.UUID, activity session.Activity) error {
	payload, err := json.Marshal([]session.Activity{activity})
	if err != nil {
		return fmt.Errorf("gormRepo.AppendActivity: %w", err)
	}

	result := r.db.WithContext(ctx).Model(&sessionModel{}).Where("id = ?", id).
		Update("activities", gorm.Expr("COALESCE(activities, '[]'::jsonb) || ?::jsonb", string(payload)))
	if result.Error != nil {
		return fmt.Errorf("gormRepo.AppendActivity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("gormRepo.AppendActivity: %w", ErrSessionNotFound)
	}

	return nil
}

func (r *gormRepo) UpdateRefreshTokenHash(ctx context.Context, id uuid.UUID, oldHash, newHash string) error {
	result := r.db.WithContext(ctx).Model(&sessionModel{}).
		Where("id = ? AND refresh_token_hash = ?", id, oldHash).
		Update("refresh_token_hash", newHash)
	if result.Error != nil {
		return fmt.Errorf("gormRepo.UpdateRefreshTokenHash: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("gormRepo.UpdateRefreshTokenHash: %w", ErrSessionNotFound)
	}

	return nil
}

func (r *gormRepo) Terminate(ctx context.Context, id uuid.UUID, at time.Time, reason string) (bool, error) {
	meta, err := json.Marshal(session.Metadata{session.MetaTerminationReason: reason})
	if err != nil {
		return false, fmt.Errorf("gormRepo.Terminate: %w", err)
	}

	result := r.db.WithContext(ctx).Model(&sessionModel{}).Where("id = ? AND is_active", id).
		Updates(map[string]interface{}{
			"is_active":        false,
			"last_accessed_at": at,
			"metadata":         gorm.Expr("COALESCE(metadata, '{}'::jsonb) || ?::jsonb", string(meta)),
		})
	if result.Error != nil {
		return false, fmt.Errorf("gormRepo.Terminate: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (r *gormRepo) Quarantine(ctx context.Context, id uuid.UUID, at time.Time, reason string) (bool, error) {
	meta, err := json.Marshal(session.Metadata{
		session.MetaQuarantineReason: reason,
		session.MetaQuarantinedAt:    at.Format(time.RFC3339),
	})
	if err != nil {
		return false, fmt.Errorf("gormRepo.Quarantine: %w", err)
	}

	result := r.db.WithContext(ctx).Model(&sessionModel{}).Where("id = ? AND is_active", id).
		Updates(map[string]interface{}{
			"is_active":        false,
			"is_trusted":       false,
			"last_accessed_at": at,
			"metadata":         gorm.Expr("COALESCE(metadata, '{}'::jsonb) || ?::jsonb", string(meta)),
		})
	if result.Error != nil {
		return false, fmt.Errorf("gormRepo.Quarantine: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (r *gormRepo) ListExpired(ctx context.Context, before time.Time, limit int) ([]session.Session, error) {
	models := make([]sessionModel, 0)

	err := r.db.WithContext(ctx).Where("is_active AND expires_at <= ?", before).
		Limit(limit).Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("gormRepo.ListExpired: %w", err)
	}

	return lo.Map(models, func(m sessionModel, _ int) session.Session { return m.toDTO() }), nil
}
