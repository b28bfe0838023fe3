package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSessionCreated     Type = "session.created"
	TypeSessionRefreshed   Type = "session.refreshed"
	TypeSessionTerminated  Type = "session.terminated"
	TypeSessionQuarantined Type = "session.quarantined"
	TypeTokenRevoked       Type = "token.revoked"
	TypeNewDevice          Type = "device.new"
	TypePolicyViolation    Type = "security.policy_violation"
	TypeSuspiciousActivity Type = "security.suspicious_activity"
)

// Event is one entry of the session lifecycle / security stream.
type Event struct {
	Type       Type           `json:"type"`
	SessionID  uuid.UUID      `json:"session_id,omitempty"`
	UserID     uuid.UUID      `json:"user_id,omitempty"`
	TenantID   *uuid.UUID     `json:"tenant_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Details    map[string]any `json:"details,omitempty"`
}

// Bus fan-outs lifecycle events to all active subscribers (audit log, alerting).
// Publishing never blocks: a slow subscriber loses events instead of stalling
// the session manager.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
	}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (b *Bus) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 64)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
