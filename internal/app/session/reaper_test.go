package session_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/teelink/clubauth/internal/app/session"
)

type countingSweeper struct {
	sweeps atomic.Int32
}

func (s *countingSweeper) SweepExpired(_ context.Context) (int, error) {
	s.sweeps.Add(1)
	return 0, nil
}

type countingPurger struct {
	purges atomic.Int32
}

func (p *countingPurger) PurgeExpired(_ context.Context, _ time.Time) (int64, error) {
	p.purges.Add(1)
	return 0, nil
}

func TestReaper_RunAndStop(t *testing.T) {
	t.Parallel()

	sweeper := &countingSweeper{}
	purger := &countingPurger{}
	reaper := session.NewReaper(sweeper, purger, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return sweeper.sweeps.Load() >= 2 && purger.purges.Load() >= 2
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after context cancellation")
	}
}

func TestReaper_NilPurger(t *testing.T) {
	t.Parallel()

	sweeper := &countingSweeper{}
	reaper := session.NewReaper(sweeper, nil, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sweeper.sweeps.Load() >= 1 }, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestNewReaper_Validation(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { session.NewReaper(nil, nil, time.Second) })
	assert.Panics(t, func() { session.NewReaper(&countingSweeper{}, nil, 0) })
}
