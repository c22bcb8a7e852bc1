package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ReaperConfig configures idle session cleanup
type ReaperConfig struct {
	Logger zerolog.Logger

	// Schedule is a five-field cron expression, e.g. "*/5 * * * *"
	Schedule string

	// IdleAfter is how long a session must sit in a terminal status before
	// it is destroyed.
	IdleAfter time.Duration
}

// Reaper destroys sessions that have been idle or finished for too long.
type Reaper struct {
	registry  *Registry
	cron      *cron.Cron
	idleAfter time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewReaper validates the schedule and builds a stopped reaper
func NewReaper(registry *Registry, cfg ReaperConfig) (*Reaper, error) {
	if cfg.IdleAfter <= 0 {
		return nil, validationError("idle_after", "must be positive")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser))

	r := &Reaper{
		registry:  registry,
		cron:      c,
		idleAfter: cfg.IdleAfter,
		logger:    cfg.Logger.With().Str("component", "reaper").Logger(),
		now:       time.Now,
	}
	if _, err := c.AddFunc(cfg.Schedule, func() { r.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid reaper schedule %q: %w", cfg.Schedule, err)
	}
	return r, nil
}

// Start runs the schedule in the background
func (r *Reaper) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running sweep
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
}

// Sweep destroys every terminal session idle longer than IdleAfter and
// returns their ids. Sessions with watchers attached are kept.
func (r *Reaper) Sweep(ctx context.Context) []string {
	cutoff := r.now().Add(-r.idleAfter)

	var reaped []string
	for _, info := range r.registry.List() {
		if !info.Status.Terminal() || info.UpdatedAt.After(cutoff) || len(info.Watchers) > 0 {
			continue
		}
		if err := r.registry.Destroy(ctx, info.ID); err != nil {
			r.logger.Warn().Err(err).Str("session_id", info.ID).Msg("Failed to reap session")
			continue
		}
		reaped = append(reaped, info.ID)
	}

	if len(reaped) > 0 {
		r.logger.Info().Int("count", len(reaped)).Msg("Reaped idle sessions")
	}
	return reaped
}
