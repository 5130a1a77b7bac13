// Package scheduler periodically re-pushes every active tenant's command
// table to the platform registry. Pushes triggered by mutations can fail and
// are deliberately not retried inline; this reconciler is the retry.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/user/botmux/internal/types"
)

// SessionSource lists tenants whose sessions are live.
type SessionSource interface {
	ActiveTenants() []types.TenantID
}

// Pusher replays one tenant's command table to the registry.
type Pusher interface {
	Push(ctx context.Context, tenant types.TenantID) error
}

// Scheduler drives the periodic reconcile.
type Scheduler struct {
	sessions SessionSource
	pusher   Pusher
	schedule string
	cron     *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler that reconciles on the given cron schedule.
func New(sessions SessionSource, pusher Pusher, schedule string) *Scheduler {
	return &Scheduler{
		sessions: sessions,
		pusher:   pusher,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the reconcile entry and starts the cron ticker.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.reconcile); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) reconcile() {
	ctx := context.Background()
	tenants := s.sessions.ActiveTenants()
	if len(tenants) == 0 {
		return
	}
	slog.Debug("reconciling command registries", "tenants", len(tenants))
	for _, tenant := range tenants {
		if err := s.pusher.Push(ctx, tenant); err != nil {
			slog.Warn("registry reconcile failed", "tenant", tenant, "error", err)
		}
	}
}
