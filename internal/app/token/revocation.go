package token

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRevocationStore keeps issued and revoked token IDs in mutex-guarded
// maps. Reads are concurrent; writes are append-mostly. Entries for tokens
// past their natural expiry can be dropped with PurgeExpired. Single-process
// only: deployments with more than one instance need the persistent store.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	revoked map[uuid.UUID]time.Time               // jti -> token expiry
	issued  map[uuid.UUID]map[uuid.UUID]time.Time // sessionID -> jti -> token expiry
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		revoked: make(map[uuid.UUID]time.Time),
		issued:  make(map[uuid.UUID]map[uuid.UUID]time.Time),
	}
}

func (s *MemoryRevocationStore) Add(_ context.Context, jti uuid.UUID, _ uuid.UUID, expiresAt time.Time) error {
	s.mu.Lock()
	s.revoked[jti] = expiresAt
	s.mu.Unlock()

	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti uuid.UUID) (bool, error) {
	s.mu.RLock()
	_, ok := s.revoked[jti]
	s.mu.RUnlock()

	return ok, nil
}

func (s *MemoryRevocationStore) RecordIssued(_ context.Context, jti, sessionID uuid.UUID, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.issued[sessionID] == nil {
		s.issued[sessionID] = make(map[uuid.UUID]time.Time)
	}
	s.issued[sessionID][jti] = expiresAt

	return nil
}

func (s *MemoryRevocationStore) RevokeSession(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, exp := range s.issued[sessionID] {
		s.revoked[jti] = exp
	}
	delete(s.issued, sessionID)

	return nil
}

// PurgeExpired drops entries whose token has expired anyway and reports how
// many were removed.
func (s *MemoryRevocationStore) PurgeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for jti, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, jti)
			n++
		}
	}
	for sessionID, jtis := range s.issued {
		for jti, exp := range jtis {
			if exp.Before(now) {
				delete(jtis, jti)
				n++
			}
		}
		if len(jtis) == 0 {
			delete(s.issued, sessionID)
		}
	}

	return n
}
