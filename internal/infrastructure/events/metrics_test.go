package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/teelink/clubauth/internal/infrastructure/events"
	"github.com/teelink/clubauth/internal/infrastructure/obs"
)

func TestRunMetricsSink_TracksActiveSessions(t *testing.T) {
	bus := events.NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := testutil.ToFloat64(obs.ActiveSessions)

	// Published right after spawning: the subscription is taken before the
	// goroutine starts, so nothing is lost to startup ordering.
	go events.RunMetricsSink(bus.Subscribe(ctx))
	bus.Publish(events.Event{Type: events.TypeSessionCreated, OccurredAt: time.Now().UTC()})
	bus.Publish(events.Event{Type: events.TypeSessionCreated, OccurredAt: time.Now().UTC()})
	bus.Publish(events.Event{Type: events.TypeSessionRefreshed, OccurredAt: time.Now().UTC()})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(obs.ActiveSessions) == before+2
	}, time.Second, 10*time.Millisecond)

	bus.Publish(events.Event{Type: events.TypeSessionTerminated, OccurredAt: time.Now().UTC()})
	bus.Publish(events.Event{Type: events.TypeSessionQuarantined, OccurredAt: time.Now().UTC()})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(obs.ActiveSessions) == before
	}, time.Second, 10*time.Millisecond)
}
