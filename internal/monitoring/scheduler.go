package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// TokenStore is the part of the user repository the sweeper needs.
type TokenStore interface {
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// SessionSweeper periodically clears session tokens that have expired, so a
// stale token never lingers as a user's current one.
type SessionSweeper struct {
	store    TokenStore
	schedule cron.Schedule
	now      func() time.Time
	done     chan bool
}

// NewSessionSweeper creates a sweeper running on a standard cron expression
// (descriptors such as "@every 5m" are accepted too).
func NewSessionSweeper(store TokenStore, expression string) (*SessionSweeper, error) {
	schedule, err := cron.ParseStandard(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", expression, err)
	}
	return &SessionSweeper{
		store:    store,
		schedule: schedule,
		now:      time.Now,
		done:     make(chan bool),
	}, nil
}

// Run sweeps once immediately and then on every scheduled tick until Stop.
func (s *SessionSweeper) Run() {
	log.Info().Msg("Starting session sweeper...")

	s.Sweep(context.Background())

	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-s.done:
			timer.Stop()
			log.Info().Msg("Stopping session sweeper.")
			return
		case <-timer.C:
			s.Sweep(context.Background())
		}
	}
}

// Stop halts the sweeper. It blocks until Run has returned from its loop.
func (s *SessionSweeper) Stop() {
	s.done <- true
}

// Sweep clears every token that expired before now and returns how many
// users were touched.
func (s *SessionSweeper) Sweep(ctx context.Context) int64 {
	cleared, err := s.store.ClearExpiredTokens(ctx, s.now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("Session sweeper: failed to clear expired tokens")
		return 0
	}
	if cleared > 0 {
		log.Info().Int64("cleared", cleared).Msg("Session sweeper: cleared expired tokens")
	}
	return cleared
}
