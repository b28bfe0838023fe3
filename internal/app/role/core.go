package role

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
)

type Repository interface {
	Create(ctx context.Context, role Role) error
	Get(ctx context.Context, id uuid.UUID) (Role, error)
	GetByName(ctx context.Context, name string) (Role, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Role, error)
	Delete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error
	CountAssignments(ctx context.Context, roleID uuid.UUID) (int64, error)
	CreateAssignment(ctx context.Context, assignment Assignment) error
	DeleteAssignment(ctx context.Context, userID, roleID uuid.UUID, scope *Scope) error
	ListUserAssignments(ctx context.Context, userID uuid.UUID) ([]Assignment, error)
}

type IDGenerator interface {
	New() (uuid.UUID, error)
}

type TimeGenerator interface {
	Now() time.Time
}

type Generators struct {
	ID   IDGenerator
	Time TimeGenerator
}

type core struct {
	repo         Repository
	gen          Generators
	skills       SkillProvider
	achievements AchievementProvider
	tiers        tierTable
	badgeGrants  map[string][]Permission
}

func NewCore(repo Repository, generators Generators, skills SkillProvider, achievements AchievementProvider,
	tiers []SkillTier, badgeGrants map[string][]Permission) *core {
	if repo == nil || generators.ID == nil || generators.Time == nil || skills == nil || achievements == nil {
		panic("role.core: nil dependency")
	}

	return &core{
		repo:         repo,
		gen:          generators,
		skills:       skills,
		achievements: achievements,
		tiers:        tiers,
		badgeGrants:  badgeGrants,
	}
}

// CreateRole resolves declared parents by name. Every parent must already
// exist, so the role graph stays acyclic by construction: a new role can only
// point at roles created before it.
func (c *core) CreateRole(ctx context.Context, req CreateRoleReq) (uuid.UUID, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return uuid.Nil, fmt.Errorf("role.core.CreateRole: %w", ErrNameRequired())
	}
	if err := req.ScopeType.CheckIsValid(); err != nil {
		return uuid.Nil, fmt.Errorf("role.core.CreateRole: %w", err)
	}

	parentIDs := make([]uuid.UUID, 0, len(req.ParentNames))
	for _, name := range lo.Uniq(req.ParentNames) {
		if name == req.Name {
			return uuid.Nil, fmt.Errorf("role.core.CreateRole: %w", ErrParentCycle(name))
		}
		parent, err := c.repo.GetByName(ctx, name)
		if err != nil {
			if apperr.ClassOf(err) == apperr.ClassNotFound {
				return uuid.Nil, fmt.Errorf("role.core.CreateRole: %w", ErrParentNotFound(name))
			}
			return uuid.Nil, fmt.Errorf("role.core.CreateRole: %w", err)
		}
		parentIDs = append(parentIDs, parent.ID)
	}

	id, err := c.gen.ID.New()
	if err != nil {
		return uuid.Nil, fmt.Errorf("role.core.CreateRole: %w", err)
	}
	now := c.gen.Time.Now()

	err = c.repo.Create(ctx, Role{
		ID:          id,
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Level:       req.Level,
		ParentIDs:   parentIDs,
		Permissions: req.Permissions,
		ScopeType:   req.ScopeType,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("role.core.CreateRole: %w", err)
	}

	return id, nil
}

func (c *core) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	if id == uuid.Nil {
		return Role{}, fmt.Errorf("role.core.GetRole: %w", apperr.ErrNilUUID(FieldRoleID))
	}
	r, err := c.repo.Get(ctx, id)
	if err != nil {
		return Role{}, fmt.Errorf("role.core.GetRole: %w", err)
	}

	return r, nil
}

// DeleteRole refuses while assignments reference the role.
func (c *core) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("role.core.DeleteRole: %w", apperr.ErrNilUUID(FieldRoleID))
	}

	count, err := c.repo.CountAssignments(ctx, id)
	if err != nil {
		return fmt.Errorf("role.core.DeleteRole: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("role.core.DeleteRole: %w", ErrRoleInUse())
	}

	if err = c.repo.Delete(ctx, id, c.gen.Time.Now()); err != nil {
		return fmt.Errorf("role.core.DeleteRole: %w", err)
	}

	return nil
}

func (c *core) AssignRole(ctx context.Context, userID, roleID uuid.UUID, scope *Scope) (uuid.UUID, error) {
	if userID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("role.core.AssignRole: %w", apperr.ErrNilUUID(FieldUserID))
	}
	if roleID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("role.core.AssignRole: %w", apperr.ErrNilUUID(FieldRoleID))
	}
	if scope != nil {
		if err := scope.Type.CheckIsValid(); err != nil {
			return uuid.Nil, fmt.Errorf("role.core.AssignRole: %w", err)
		}
	}

	r, err := c.repo.Get(ctx, roleID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("role.core.AssignRole: %w", err)
	}
	if r.ScopeType != ScopeGlobal && (scope == nil || scope.Type != r.ScopeType) {
		return uuid.Nil, fmt.Errorf("role.core.AssignRole: %w", ErrScopeMismatch(r.ScopeType))
	}

	id, err := c.gen.ID.New()
	if err != nil {
		return uuid.Nil, fmt.Errorf("role.core.AssignRole: %w", err)
	}

	err = c.repo.CreateAssignment(ctx, Assignment{
		ID:        id,
		UserID:    userID,
		RoleID:    roleID,
		Scope:     scope,
		CreatedAt: c.gen.Time.Now(),
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("role.core.AssignRole: %w", err)
	}

	return id, nil
}

func (c *core) UnassignRole(ctx context.Context, userID, roleID uuid.UUID, scope *Scope) error {
	if userID == uuid.Nil {
		return fmt.Errorf("role.core.UnassignRole: %w", apperr.ErrNilUUID(FieldUserID))
	}
	if roleID == uuid.Nil {
		return fmt.Errorf("role.core.UnassignRole: %w", apperr.ErrNilUUID(FieldRoleID))
	}

	if err := c.repo.DeleteAssignment(ctx, userID, roleID, scope); err != nil {
		return fmt.Errorf("role.core.UnassignRole: %w", err)
	}

	return nil
}

// GetUserPermissions resolves the effective permission set: role grants whose
// scope matches the query, permissions inherited through parent roles, skill
// tier grants and achievement grants.
func (c *core) GetUserPermissions(ctx context.Context, userID uuid.UUID, scope *Scope) ([]Permission, error) {
	set, err := c.resolve(ctx, userID, scope)
	if err != nil {
		return nil, fmt.Errorf("role.core.GetUserPermissions: %w", err)
	}

	return set.List(), nil
}

// CheckPermission is a membership test against the same resolved set
// GetUserPermissions produces, so the two can never disagree.
func (c *core) CheckPermission(ctx context.Context, userID uuid.UUID, permissionName string, scope *Scope) (bool, error) {
	set, err := c.resolve(ctx, userID, scope)
	if err != nil {
		return false, fmt.Errorf("role.core.CheckPermission: %w", err)
	}

	return set.Has(permissionName), nil
}

func (c *core) resolve(ctx context.Context, userID uuid.UUID, scope *Scope) (PermissionSet, error) {
	if userID == uuid.Nil {
		return nil, apperr.ErrNilUUID(FieldUserID)
	}

	assignments, err := c.repo.ListUserAssignments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	roleIDs := make([]uuid.UUID, 0, len(assignments))
	for _, a := range assignments {
		if scopeMatches(a.Scope, scope) {
			roleIDs = append(roleIDs, a.RoleID)
		}
	}

	set := make(PermissionSet)
	if err = c.collectRolePermissions(ctx, roleIDs, set); err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	score, ok, err := c.skills.Score(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	if ok {
		c.tiers.permissionsForScore(score, set)
	}

	badges, err := c.achievements.Achievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	for _, badge := range badges {
		set.Add(c.badgeGrants[badge]...)
	}

	return set, nil
}

// collectRolePermissions walks the parent graph breadth-first. The visited set
// guarantees termination even on corrupted adjacency data.
func (c *core) collectRolePermissions(ctx context.Context, roleIDs []uuid.UUID, set PermissionSet) error {
	visited := make(map[uuid.UUID]struct{}, len(roleIDs))
	frontier := roleIDs

	for len(frontier) > 0 {
		batch := make([]uuid.UUID, 0, len(frontier))
		for _, id := range frontier {
			if _, ok := visited[id]; !ok {
				visited[id] = struct{}{}
				batch = append(batch, id)
			}
		}
		if len(batch) == 0 {
			return nil
		}

		roles, err := c.repo.GetByIDs(ctx, batch)
		if err != nil {
			return fmt.Errorf("collectRolePermissions: %w", err)
		}

		frontier = frontier[:0]
		for _, r := range roles {
			if !r.IsActive {
				continue
			}
			set.Add(r.Permissions...)
			frontier = append(frontier, r.ParentIDs...)
		}
	}

	return nil
}

// scopeMatches applies the assignment-side rule: an unscoped assignment grants
// everywhere, a scoped one only where type and id match exactly.
func scopeMatches(assignment, query *Scope) bool {
	if assignment == nil {
		return true
	}
	if query == nil {
		return false
	}

	return assignment.Type == query.Type && assignment.ID == query.ID
}
