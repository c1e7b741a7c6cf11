package foldersim

import (
	"sync/atomic"
)

// MetricsPolicy defines hooks used by the simulation to report
// scheduling activity.
//
// Implementations must be safe for concurrent use.
// All methods are expected to be lightweight and non-blocking.
type MetricsPolicy interface {
	// IncEnqueued counts clients accepted by Enqueue.
	IncEnqueued()

	// IncDispatched counts clients popped by a folder.
	IncDispatched()

	// IncRequeued counts clients put back after finishing one file.
	IncRequeued()

	// IncRetired counts clients whose files are all done.
	IncRetired()

	// IncRescored counts refresher passes.
	IncRescored()

	// IncDroppedEvents counts events lost to a full observer buffer.
	IncDroppedEvents()

	// IncBusy and DecBusy track folders currently owning a client.
	IncBusy()
	DecBusy()
}

// MetricsSnapshot is a point-in-time copy of AtomicMetrics.
type MetricsSnapshot struct {
	Enqueued      uint64 `json:"enqueued"`
	Dispatched    uint64 `json:"dispatched"`
	Requeued      uint64 `json:"requeued"`
	Retired       uint64 `json:"retired"`
	Rescored      uint64 `json:"rescored"`
	DroppedEvents uint64 `json:"dropped_events"`
	Busy          int64  `json:"busy"`
	PeakBusy      int64  `json:"peak_busy"`
}

// AtomicMetrics is a lock-free metrics implementation backed by atomics.
//
// Writes are optimized for hot paths.
// Reads are intended for cold-path observation.
type AtomicMetrics struct {
	enqueued   atomic.Uint64
	dispatched atomic.Uint64
	requeued   atomic.Uint64
	retired    atomic.Uint64
	rescored   atomic.Uint64
	dropped    atomic.Uint64

	_ [56]byte // padding to avoid false sharing

	busy     atomic.Int64
	peakBusy atomic.Int64
}

func (m *AtomicMetrics) IncEnqueued()      { m.enqueued.Add(1) }
func (m *AtomicMetrics) IncDispatched()    { m.dispatched.Add(1) }
func (m *AtomicMetrics) IncRequeued()      { m.requeued.Add(1) }
func (m *AtomicMetrics) IncRetired()       { m.retired.Add(1) }
func (m *AtomicMetrics) IncRescored()      { m.rescored.Add(1) }
func (m *AtomicMetrics) IncDroppedEvents() { m.dropped.Add(1) }

// IncBusy increments the busy gauge and raises the peak watermark.
func (m *AtomicMetrics) IncBusy() {
	n := m.busy.Add(1)
	for {
		peak := m.peakBusy.Load()
		if n <= peak || m.peakBusy.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (m *AtomicMetrics) DecBusy() { m.busy.Add(-1) }

// Snapshot returns the current counters.
// Intended for cold-path observation.
func (m *AtomicMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Enqueued:      m.enqueued.Load(),
		Dispatched:    m.dispatched.Load(),
		Requeued:      m.requeued.Load(),
		Retired:       m.retired.Load(),
		Rescored:      m.rescored.Load(),
		DroppedEvents: m.dropped.Load(),
		Busy:          m.busy.Load(),
		PeakBusy:      m.peakBusy.Load(),
	}
}

//------------- NoopMetrics ----------------------------------

// NoopMetrics is a MetricsPolicy implementation that discards
// all metric updates.
type NoopMetrics struct{}

func (NoopMetrics) IncEnqueued()      {}
func (NoopMetrics) IncDispatched()    {}
func (NoopMetrics) IncRequeued()      {}
func (NoopMetrics) IncRetired()       {}
func (NoopMetrics) IncRescored()      {}
func (NoopMetrics) IncDroppedEvents() {}
func (NoopMetrics) IncBusy()          {}
func (NoopMetrics) DecBusy()          {}
