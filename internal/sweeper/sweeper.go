package sweeper

import (
	"context"
	"time"

	"github.com/cufy/campusmatch/internal/app"
	"github.com/cufy/campusmatch/internal/service/lifecycle"
)

// Sweeper expires overdue decision windows in the background. The lazy
// checks on the read path catch most expiries; the sweeper guarantees
// they happen even when nobody loads a dashboard.
type Sweeper struct {
	appCtx    *app.AppContext
	lifecycle *lifecycle.Service
	interval  time.Duration
}

func New(appCtx *app.AppContext, lc *lifecycle.Service) *Sweeper {
	interval := 5 * time.Minute
	if appCtx.Config != nil && appCtx.Config.Sweep.Interval > 0 {
		interval = appCtx.Config.Sweep.Interval
	}
	return &Sweeper{appCtx: appCtx, lifecycle: lc, interval: interval}
}

// Run blocks until ctx is canceled. One sweep fires immediately on start
// so a restart does not postpone overdue expiries by a full interval.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.appCtx.Logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.lifecycle.ExpireOverdue(ctx)
	if err != nil {
		s.appCtx.Logger.Error("expiry sweep failed", "err", err)
		return
	}
	if n > 0 {
		s.appCtx.Logger.Info("expired overdue matches", "count", n)
	}
}
