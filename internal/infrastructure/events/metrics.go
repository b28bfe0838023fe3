package events

import (
	"github.com/teelink/clubauth/internal/infrastructure/obs"
)

// RunMetricsSink keeps the active-session gauge in step with lifecycle
// events, so terminations from sweeps and evictions are counted the same as
// explicit ones. The caller subscribes before spawning the sink. Returns when
// the channel closes.
func RunMetricsSink(sub <-chan Event) {
	for evt := range sub {
		switch evt.Type {
		case TypeSessionCreated:
			obs.ActiveSessions.Inc()
		case TypeSessionTerminated, TypeSessionQuarantined:
			obs.ActiveSessions.Dec()
		}
	}
}
