package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/teelink/clubauth/internal/infrastructure/logger"
)

type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// TokenPurger drops revocation-list entries for tokens that have expired on
// their own. Optional.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Reaper periodically terminates sessions past their expiry and trims the
// token revocation list. It stops cleanly when the context ends.
type Reaper struct {
	sweeper  Sweeper
	purger   TokenPurger
	interval time.Duration
}

func NewReaper(sweeper Sweeper, purger TokenPurger, interval time.Duration) *Reaper {
	if sweeper == nil {
		panic("session.Reaper: nil sweeper")
	}
	if interval <= 0 {
		panic("session.Reaper: interval must be positive")
	}

	return &Reaper{sweeper: sweeper, purger: purger, interval: interval}
}

// Run blocks until ctx is done. Sweep failures are logged and retried on the
// next tick.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := r.sweeper.SweepExpired(ctx)
			if err != nil {
				logger.Error(ctx, err).Msg("session reaper: sweep failed")
			} else if swept > 0 {
				zerolog.Ctx(ctx).Info().Int("sessions", swept).Msg("session reaper: expired sessions terminated")
			}

			if r.purger == nil {
				continue
			}
			purged, err := r.purger.PurgeExpired(ctx, time.Now().UTC())
			if err != nil {
				logger.Error(ctx, err).Msg("session reaper: revocation purge failed")
			} else if purged > 0 {
				zerolog.Ctx(ctx).Info().Int64("tokens", purged).Msg("session reaper: expired revocations purged")
			}
		}
	}
}
