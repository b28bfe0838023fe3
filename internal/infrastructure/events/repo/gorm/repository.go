package gorm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/infrastructure/events"
	"gorm.io/gorm"
)

type gormRepo struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *gormRepo {
	return &gormRepo{db: db}
}

func (r *gormRepo) Append(ctx context.Context, evt events.Event) error {
	model := &securityEventModel{
		EventType:  string(evt.Type),
		SessionID:  nilable(evt.SessionID),
		UserID:     nilable(evt.UserID),
		TenantID:   evt.TenantID,
		Details:    jsonb[map[string]any]{V: evt.Details},
		OccurredAt: evt.OccurredAt,
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("gormRepo.Append: %w", err)
	}

	return nil
}

// ListByUser returns a user's security events, newest first.
func (r *gormRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]events.Event, error) {
	var models []securityEventModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("gormRepo.ListByUser: %w", err)
	}

	out := make([]events.Event, 0, len(models))
	for _, m := range models {
		out = append(out, events.Event{
			Type:       events.Type(m.EventType),
			SessionID:  orNil(m.SessionID),
			UserID:     orNil(m.UserID),
			TenantID:   m.TenantID,
			OccurredAt: m.OccurredAt,
			Details:    m.Details.V,
		})
	}

	return out, nil
}

// PurgeBefore drops events older than the retention horizon.
func (r *gormRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("occurred_at < ?", cutoff).
		Delete(&securityEventModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("gormRepo.PurgeBefore: %w", res.Error)
	}

	return res.RowsAffected, nil
}

func nilable(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func orNil(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
