package apperr

type Rule string

const (
	RuleRequired      Rule = "required"
	RuleTooLong       Rule = "too_long"
	RuleCycle         Rule = "cycle"
	RuleInvalidFormat Rule = "invalid_format"
	RuleDuplicate     Rule = "duplicate"
	RuleMismatch      Rule = "mismatch"
	RuleForbidden     Rule = "forbidden"
	RuleInvalidState  Rule = "invalid_state"
	RuleNotFound      Rule = "not_found"
	RuleLimitExceeded Rule = "limit_exceeded"
	RuleInUse         Rule = "in_use"
	RuleExpired       Rule = "expired"
)
