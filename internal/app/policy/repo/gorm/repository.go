package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/app/policy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormRepo struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *gormRepo {
	return &gormRepo{db: db}
}

func (r *gormRepo) Get(ctx context.Context, tenantID *uuid.UUID) (policy.SessionPolicy, error) {
	model := policyModel{}

	err := r.db.WithContext(ctx).Where("tenant_id = ?", key(tenantID)).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = policy.ErrPolicyNotFound
		}
		return policy.SessionPolicy{}, fmt.Errorf("gormRepo.Get: %w", err)
	}

	return model.Policy.V, nil
}

func (r *gormRepo) Upsert(ctx context.Context, tenantID *uuid.UUID, p policy.SessionPolicy) error {
	model := &policyModel{
		TenantID: key(tenantID),
		Policy:   jsonb[policy.SessionPolicy]{V: p},
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"policy", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("gormRepo.Upsert: %w", err)
	}

	return nil
}

func key(tenantID *uuid.UUID) uuid.UUID {
	if tenantID == nil {
		return uuid.Nil
	}
	return *tenantID
}
