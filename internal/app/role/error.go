package role

import "github.com/teelink/clubauth/internal/infrastructure/apperr"

const (
	CodeNotFound            apperr.Code = "role/not_found"
	CodeDuplicateName       apperr.Code = "role/duplicate_name"
	CodeParentNotFound      apperr.Code = "role/parent_not_found"
	CodeRoleInUse           apperr.Code = "role/in_use"
	CodeDuplicateAssignment apperr.Code = "role/duplicate_assignment"
	CodeScopeMismatch       apperr.Code = "role/scope_mismatch"
	CodeValidationFailed    apperr.Code = "role/validation_failed"
)

const (
	FieldName      apperr.Field = "name"
	FieldRoleID    apperr.Field = "role_id"
	FieldUserID    apperr.Field = "user_id"
	FieldParent    apperr.Field = "parent"
	FieldScope     apperr.Field = "scope"
	FieldScopeType apperr.Field = "scope_type"
)

func ErrRoleNotFound() error {
	return apperr.New("Role not found", CodeNotFound, apperr.ClassNotFound, apperr.LogLevelWarn)
}

func ErrDuplicateName(name string) error {
	return apperr.New("Role name already exists", CodeDuplicateName, apperr.ClassConflict, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{Field: FieldName, Rule: apperr.RuleDuplicate, Params: map[string]any{"name": name}})
}

func ErrParentNotFound(name string) error {
	return apperr.New("Parent role does not exist", CodeParentNotFound, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{Field: FieldParent, Rule: apperr.RuleNotFound, Params: map[string]any{"name": name}})
}

func ErrParentCycle(name string) error {
	return apperr.New("Role cannot inherit from itself", CodeValidationFailed, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{Field: FieldParent, Rule: apperr.RuleCycle, Params: map[string]any{"name": name}})
}

func ErrRoleInUse() error {
	return apperr.New("Role has active assignments", CodeRoleInUse, apperr.ClassConflict, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{Field: FieldRoleID, Rule: apperr.RuleInUse})
}

func ErrDuplicateAssignment() error {
	return apperr.New("Role already assigned with this scope", CodeDuplicateAssignment, apperr.ClassConflict, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{Field: FieldRoleID, Rule: apperr.RuleDuplicate})
}

func ErrScopeMismatch(roleScope ScopeType) error {
	return apperr.New("Assignment scope is incompatible with the role's scope type",
		CodeScopeMismatch, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{Field: FieldScope, Rule: apperr.RuleMismatch,
			Params: map[string]any{"role_scope_type": roleScope}})
}

func ErrInvalidScopeType() error {
	return apperr.New("Invalid scope type", CodeValidationFailed, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{Field: FieldScopeType, Rule: apperr.RuleInvalidFormat})
}

func ErrNameRequired() error {
	return apperr.New("Role name is required", CodeValidationFailed, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{Field: FieldName, Rule: apperr.RuleRequired})
}
