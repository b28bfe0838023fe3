package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"
	"github.com/teelink/clubauth/internal/app/role"
	"github.com/teelink/clubauth/internal/infrastructure/db"
	"github.com/teelink/clubauth/internal/infrastructure/tx"
	"gorm.io/gorm"
)

type gormRepo struct {
	tx tx.Transaction
}

func NewRepository(tx tx.Transaction) *gormRepo {
	return &gormRepo{tx: tx}
}

func (r *gormRepo) Create(ctx context.Context, rl role.Role) error {
	err := r.tx.GetDB(ctx).Create(roleFromDTO(rl)).Error
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == db.DuplicateCode {
			err = role.ErrDuplicateName(rl.Name)
		}
		return fmt.Errorf("gormRepo.Create: %w", err)
	}

	return nil
}

func (r *gormRepo) Get(ctx context.Context, id uuid.UUID) (role.Role, error) {
	model := roleModel{}

	err := r.tx.GetDB(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = role.ErrRoleNotFound()
		}
		return role.Role{}, fmt.Errorf("gormRepo.Get: %w", err)
	}

	return model.toDTO(), nil
}

func (r *gormRepo) GetByName(ctx context.Context, name string) (role.Role, error) {
	model := roleModel{}

	err := r.tx.GetDB(ctx).Where("name = ?", name).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = role.ErrRoleNotFound()
		}
		return role.Role{}, fmt.Errorf("gormRepo.GetByName: %w", err)
	}

	return model.toDTO(), nil
}

func (r *gormRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]role.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	models := make([]roleModel, 0, len(ids))
	err := r.tx.GetDB(ctx).Where("id IN ?", ids).Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("gormRepo.GetByIDs: %w", err)
	}

	return lo.Map(models, func(m roleModel, _ int) role.Role { return m.toDTO() }), nil
}

// Delete re-checks assignments inside the transaction so a concurrent
// assignment cannot slip in between the count and the soft delete.
func (r *gormRepo) Delete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	err := r.tx.Transaction(func(txn tx.Transaction) error {
		var count int64
		if err := txn.GetDB(ctx).Model(&assignmentModel{}).
			Where("role_id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return role.ErrRoleInUse()
		}

		result := txn.GetDB(ctx).Model(&roleModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"deleted_at": deletedAt, "is_active": false})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return role.ErrRoleNotFound()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("gormRepo.Delete: %w", err)
	}

	return nil
}

func (r *gormRepo) CountAssignments(ctx context.Context, roleID uuid.UUID) (int64, error) {
	var count int64

	err := r.tx.GetDB(ctx).Model(&assignmentModel{}).
		Where("role_id = ?", roleID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gormRepo.CountAssignments: %w", err)
	}

	return count, nil
}

func (r *gormRepo) CreateAssignment(ctx context.Context, assignment role.Assignment) error {
	err := r.tx.GetDB(ctx).Create(assignmentFromDTO(assignment)).Error
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == db.DuplicateCode {
			err = role.ErrDuplicateAssignment()
		}
		return fmt.Errorf("gormRepo.CreateAssignment: %w", err)
	}

	return nil
}

func (r *gormRepo) DeleteAssignment(ctx context.Context, userID, roleID uuid.UUID, scope *role.Scope) error {
	query := r.tx.GetDB(ctx).Where("user_id = ? AND role_id = ?", userID, roleID)
	if scope == nil {
		query = query.Where("scope_type IS NULL AND scope_id IS NULL")
	} else {
		query = query.Where("scope_type = ? AND scope_id = ?", string(scope.Type), scope.ID)
	}

	result := query.Delete(&assignmentModel{})
	if result.Error != nil {
		return fmt.Errorf("gormRepo.DeleteAssignment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("gormRepo.DeleteAssignment: %w", role.ErrRoleNotFound())
	}

	return nil
}

func (r *gormRepo) ListUserAssignments(ctx context.Context, userID uuid.UUID) ([]role.Assignment, error) {
	models := make([]assignmentModel, 0)

	err := r.tx.GetDB(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("gormRepo.ListUserAssignments: %w", err)
	}

	return lo.Map(models, func(m assignmentModel, _ int) role.Assignment { return m.toDTO() }), nil
}
