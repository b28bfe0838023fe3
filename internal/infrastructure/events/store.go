package events

import (
	"context"

	"github.com/rs/zerolog"
)

// Store persists security events for later review.
type Store interface {
	Append(ctx context.Context, evt Event) error
}

// securityEvents lists the event types that warrant a persistent record.
// Routine lifecycle traffic stays in the structured log only.
var securityEvents = map[Type]struct{}{
	TypePolicyViolation:    {},
	TypeSuspiciousActivity: {},
	TypeSessionQuarantined: {},
}

// RunStoreSink drains a subscription and appends security events to the
// store. The caller subscribes before spawning the sink. Append failures are
// logged and skipped so the sink keeps draining. Returns when the channel
// closes.
func RunStoreSink(ctx context.Context, sub <-chan Event, store Store, log zerolog.Logger) {
	for evt := range sub {
		if _, ok := securityEvents[evt.Type]; !ok {
			continue
		}
		if err := store.Append(ctx, evt); err != nil {
			log.Error().Err(err).
				Str("event_type", string(evt.Type)).
				Msg("events.RunStoreSink.store.Append")
		}
	}
}
