package events

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunAuditSink drains a subscription and writes every event to the structured
// log. The caller subscribes before spawning the sink, so events published in
// the meantime are not lost. Returns when the channel closes.
func RunAuditSink(sub <-chan Event, log zerolog.Logger) {
	for evt := range sub {
		e := log.Info().
			Str("event_type", string(evt.Type)).
			Time("occurred_at", evt.OccurredAt)
		if evt.SessionID != uuid.Nil {
			e = e.Str("session_id", evt.SessionID.String())
		}
		if evt.UserID != uuid.Nil {
			e = e.Str("user_id", evt.UserID.String())
		}
		if evt.TenantID != nil {
			e = e.Str("tenant_id", evt.TenantID.String())
		}
		if len(evt.Details) > 0 {
			e = e.Interface("details", evt.Details)
		}
		e.Msg("audit")
	}
}
