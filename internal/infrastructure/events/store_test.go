package events_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/teelink/clubauth/internal/infrastructure/events"
)

type memStore struct {
	mu      sync.Mutex
	events  []events.Event
	failOn  events.Type
	appends int
}

func (s *memStore) Append(_ context.Context, evt events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if evt.Type == s.failOn {
		return fmt.Errorf("append failed")
	}
	s.events = append(s.events, evt)
	return nil
}

func (s *memStore) snapshot() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

func TestRunStoreSink_PersistsSecurityEventsOnly(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()
	store := &memStore{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := bus.Subscribe(ctx)
	done := make(chan struct{})
	go func() {
		events.RunStoreSink(ctx, sub, store, zerolog.Nop())
		close(done)
	}()

	userID := uuid.New()
	bus.Publish(events.Event{Type: events.TypeSessionCreated, UserID: userID, OccurredAt: time.Now().UTC()})
	bus.Publish(events.Event{Type: events.TypePolicyViolation, UserID: userID, OccurredAt: time.Now().UTC()})
	bus.Publish(events.Event{Type: events.TypeSessionTerminated, UserID: userID, OccurredAt: time.Now().UTC()})
	bus.Publish(events.Event{Type: events.TypeSessionQuarantined, UserID: userID, OccurredAt: time.Now().UTC()})

	require.Eventually(t, func() bool {
		return len(store.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)

	got := store.snapshot()
	require.Equal(t, events.TypePolicyViolation, got[0].Type)
	require.Equal(t, events.TypeSessionQuarantined, got[1].Type)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sink did not stop after context cancel")
	}
}

func TestRunStoreSink_KeepsDrainingAfterAppendFailure(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()
	store := &memStore{failOn: events.TypePolicyViolation}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go events.RunStoreSink(ctx, bus.Subscribe(ctx), store, zerolog.Nop())

	bus.Publish(events.Event{Type: events.TypePolicyViolation, OccurredAt: time.Now().UTC()})
	bus.Publish(events.Event{Type: events.TypeSuspiciousActivity, OccurredAt: time.Now().UTC()})

	require.Eventually(t, func() bool {
		got := store.snapshot()
		return len(got) == 1 && got[0].Type == events.TypeSuspiciousActivity
	}, time.Second, 10*time.Millisecond)
}
