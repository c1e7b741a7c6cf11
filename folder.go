package foldersim

import (
	"context"
	"fmt"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
	lg "github.com/Andrej220/go-utils/zlog"
)

// folder is one processing slot. It loops until ctx is cancelled:
// acquire a permit, pop the best client, drive its front file to
// completion, requeue or retire it, release the permit.
//
// A folder that finds no work backs off while holding its single permit,
// and gives the permit back before trying again.
func (s *Simulation) folder(ctx context.Context, r *run, idx int) {
	defer r.wg.Done()

	logger := lg.FromContext(s.opts.LogContext).With(lg.String("run", r.id), lg.Int("folder", idx))
	logger.Info("folder started")
	defer logger.Info("folder stopped")

	newBackoff := func() *boffState {
		b := boff.New(s.opts.IdleWait, s.opts.MaxIdleWait, time.Now().UnixNano()+int64(idx))
		return &boffState{next: b.Next}
	}
	bo := newBackoff()

	for {
		select {
		case r.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}

		c, ok := s.queue.PopHighest()
		if !ok {
			idle := s.idle(ctx, bo.wait(s.opts.MaxIdleWait))
			<-r.slots
			if !idle {
				return
			}
			continue
		}
		bo = newBackoff()

		s.serve(ctx, r, idx, c)
		<-r.slots

		if ctx.Err() != nil {
			return
		}
	}
}

// boffState wraps the backoff generator so a miss streak can be reset by
// replacing it.
type boffState struct {
	next func() time.Duration
}

// wait returns the next idle delay, never above limit.
func (b *boffState) wait(limit time.Duration) time.Duration {
	d := b.next()
	if d <= 0 || d > limit {
		return limit
	}
	return d
}

// idle sleeps for d. It returns false if ctx was cancelled first.
func (s *Simulation) idle(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		if !timer.Stop() {
			<-timer.C // drain if timer is fired
		}
		return false
	}
}

// serve processes one client. A panic is recovered and reported so the
// folder keeps running, and the client is handed back through salvage.
func (s *Simulation) serve(ctx context.Context, r *run, idx int, c *Client) {
	s.metrics.IncDispatched()
	s.metrics.IncBusy()
	defer s.metrics.DecBusy()
	defer s.setFolder(idx, 0, nil, true)
	defer func() {
		if rec := recover(); rec != nil {
			lg.FromContext(s.opts.LogContext).Error("folder panicked",
				lg.String("run", r.id),
				lg.Int("folder", idx),
				lg.Any("client", c.id),
				lg.Any("panic", rec),
			)
			s.reportInternalError(fmt.Errorf("folder %d: client %d: panic: %v", idx, c.id, rec))
			s.salvage(idx, c)
		}
	}()

	s.publish(EventClientDispatched, c.State())
	s.process(ctx, r, idx, c)
}

// process ticks c's front file to completion and hands the client on.
// On cancellation the client keeps its progress and is parked.
func (s *Simulation) process(ctx context.Context, r *run, idx int, c *Client) {
	unit := newFileUnit(c)
	s.setFolder(idx, c.id, unit, true)

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.park(c.State())
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			s.park(c.State())
			return
		}

		done := c.advance()
		unit.Progress = c.progress
		s.setFolder(idx, c.id, unit, false)
		s.publish(EventClientChanged, c.State())
		if done {
			break
		}
	}

	now := s.opts.Now()
	if !c.completeFront(now) {
		lg.FromContext(s.opts.LogContext).Info("client retired",
			lg.String("run", r.id),
			lg.Int("folder", idx),
			lg.Any("client", c.id),
		)
		s.retire(c.State())
		return
	}

	s.queue.Score(c, s.opts.Calculator, now)
	s.publish(EventClientRequeued, c.State())
	if err := s.queue.Enqueue(c); err != nil {
		s.retire(c.State())
		s.reportInternalError(fmt.Errorf("folder %d: requeue client %d: %w", idx, c.id, err))
		return
	}
	s.metrics.IncRequeued()
}

// salvage returns a client whose processing panicked to the queue with
// its progress and last priority. It is not re-scored: the calculator may
// be what failed. A client with nothing left is retired.
func (s *Simulation) salvage(idx int, c *Client) {
	if !c.Terminal() && !c.eligible() {
		// The front file finished before the fault.
		c.completeFront(s.opts.Now())
	}
	if c.Terminal() {
		s.retire(c.State())
		return
	}

	s.publish(EventClientRequeued, c.State())
	if err := s.queue.Enqueue(c); err != nil {
		s.retire(c.State())
		s.reportInternalError(fmt.Errorf("folder %d: requeue client %d after panic: %w", idx, c.id, err))
		return
	}
	s.metrics.IncRequeued()
}
