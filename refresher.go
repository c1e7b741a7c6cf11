package foldersim

import (
	"context"
	"fmt"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
)

// refresher periodically re-scores every queued client so waiting
// clients age upward. Running clients are skipped; they are scored again
// when requeued.
func (s *Simulation) refresher(ctx context.Context, r *run) {
	defer r.wg.Done()

	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.refresh(r)
	}
}

// refresh runs one pass. A panicking Calculator is recovered and
// reported; the next tick tries again.
func (s *Simulation) refresh(r *run) {
	defer func() {
		if rec := recover(); rec != nil {
			lg.FromContext(s.opts.LogContext).Error("refresher panicked",
				lg.String("run", r.id),
				lg.Any("panic", rec),
			)
			s.reportInternalError(fmt.Errorf("refresher: panic: %v", rec))
		}
	}()

	now := s.opts.Now()
	moved := s.queue.RescoreAll(s.opts.Calculator, now)
	s.metrics.IncRescored()
	for _, st := range moved {
		s.notePriority(st)
	}
	if len(moved) > 0 {
		lg.FromContext(s.opts.LogContext).Info("priorities refreshed",
			lg.String("run", r.id),
			lg.Int("moved", len(moved)),
			lg.String("max_wait", s.queue.MaxWait(now).String()),
		)
	}
}
