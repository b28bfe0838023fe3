package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/teelink/clubauth/internal/infrastructure/apperr"
)

const (
	FieldTenantID apperr.Field = "tenant_id"
	FieldPolicy   apperr.Field = "policy"
)

const (
	CodePolicyNotFound apperr.Code = "policy/not_found"
	CodeInvalidPolicy  apperr.Code = "policy/invalid"
)

// ErrPolicyNotFound is returned by repositories when no record exists for a
// tenant. The store treats it as "use the default policy".
var ErrPolicyNotFound = apperr.New("session policy not found", CodePolicyNotFound, apperr.ClassNotFound, apperr.LogLevelWarn)

type Repository interface {
	Get(ctx context.Context, tenantID *uuid.UUID) (SessionPolicy, error)
	Upsert(ctx context.Context, tenantID *uuid.UUID, p SessionPolicy) error
}

// Store is a cache-aside layer over the policy repository: read-through on
// miss, invalidated on administrative writes. Safe for concurrent use.
type Store struct {
	repo Repository

	mu    sync.RWMutex
	cache map[uuid.UUID]SessionPolicy
}

func NewStore(repo Repository) *Store {
	if repo == nil {
		panic("policy.Store: nil repository")
	}
	return &Store{
		repo:  repo,
		cache: make(map[uuid.UUID]SessionPolicy),
	}
}

// Get returns the policy for the tenant, the global record when tenantID is
// nil, or the built-in default when neither exists.
func (s *Store) Get(ctx context.Context, tenantID *uuid.UUID) (SessionPolicy, error) {
	key := cacheKey(tenantID)

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	p, err := s.lookup(ctx, tenantID)
	if err != nil {
		return SessionPolicy{}, fmt.Errorf("policy.Store.Get: %w", err)
	}

	s.mu.Lock()
	s.cache[key] = p
	s.mu.Unlock()

	return p, nil
}

// Set persists the tenant policy and drops the cached copy so the next read
// observes the new configuration.
func (s *Store) Set(ctx context.Context, tenantID *uuid.UUID, p SessionPolicy) error {
	if err := p.Validate(); err != nil {
		appErr := apperr.New(err.Error(), CodeInvalidPolicy, apperr.ClassBadRequest, apperr.LogLevelWarn)
		return fmt.Errorf("policy.Store.Set: %w", appErr)
	}

	if err := s.repo.Upsert(ctx, tenantID, p); err != nil {
		return fmt.Errorf("policy.Store.Set: %w", err)
	}

	s.mu.Lock()
	if tenantID == nil {
		// Tenants without their own record resolve through the global one,
		// so their cached copies are stale too.
		s.cache = make(map[uuid.UUID]SessionPolicy)
	} else {
		delete(s.cache, *tenantID)
	}
	s.mu.Unlock()

	return nil
}

// lookup resolves the policy chain: tenant record, then the global (nil-uuid)
// record, then the built-in default.
func (s *Store) lookup(ctx context.Context, tenantID *uuid.UUID) (SessionPolicy, error) {
	p, err := s.repo.Get(ctx, tenantID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrPolicyNotFound) {
		return SessionPolicy{}, err
	}

	if tenantID != nil {
		p, err = s.repo.Get(ctx, nil)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrPolicyNotFound) {
			return SessionPolicy{}, err
		}
	}

	return Default(), nil
}

func cacheKey(tenantID *uuid.UUID) uuid.UUID {
	if tenantID == nil {
		return uuid.Nil
	}
	return *tenantID
}
