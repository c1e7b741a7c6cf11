package foldersim

import (
	"context"
	"time"
)

const (
	DefaultFolders         = 5
	DefaultTickInterval    = 100 * time.Millisecond
	DefaultRefreshInterval = 500 * time.Millisecond
	DefaultIdleWait        = 100 * time.Millisecond
	MinIdleWait            = time.Millisecond
	DefaultMaxIdleWait     = 400 * time.Millisecond
	DefaultEventBuffer     = 1024
)

// Options configure a Simulation.
//
// All zero values are replaced with defaults in FillDefaults.
type Options struct {
	// Folders is the number of concurrent processing slots.
	Folders int

	// TickInterval is the simulated processing step.
	TickInterval time.Duration

	// RefreshInterval is the period of the priority refresher.
	RefreshInterval time.Duration

	// IdleWait is the first back-off delay of a folder that found no
	// work. Consecutive misses grow it up to MaxIdleWait. Values below
	// MinIdleWait are raised to it.
	IdleWait    time.Duration
	MaxIdleWait time.Duration

	// EventBuffer bounds the observer queue. Events beyond it are dropped.
	EventBuffer int

	Calculator Calculator
	Metrics    MetricsPolicy

	// Now is the clock. Tests replace it.
	Now func() time.Time

	// LogContext carries the zlog logger used by the simulation.
	LogContext context.Context

	// OnInternalError receives non-fatal faults: rejected clients,
	// recovered panics, unexpected folder states.
	OnInternalError func(error)
}

func (o *Options) FillDefaults() {
	if o.Folders <= 0 {
		o.Folders = DefaultFolders
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = DefaultRefreshInterval
	}
	if o.IdleWait <= 0 {
		o.IdleWait = DefaultIdleWait
	} else if o.IdleWait < MinIdleWait {
		o.IdleWait = MinIdleWait
	}
	if o.MaxIdleWait < o.IdleWait {
		o.MaxIdleWait = max(DefaultMaxIdleWait, o.IdleWait)
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = DefaultEventBuffer
	}
	if o.Calculator == nil {
		o.Calculator = LogAging{}
	}
	if o.Metrics == nil {
		o.Metrics = &AtomicMetrics{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.LogContext == nil {
		o.LogContext = context.Background()
	}
}
