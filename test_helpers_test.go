package foldersim

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

func newTestOptions(folders int) Options {
	return Options{
		Folders:         folders,
		TickInterval:    time.Millisecond,
		RefreshInterval: 5 * time.Millisecond,
		IdleWait:        time.Millisecond,
		MaxIdleWait:     4 * time.Millisecond,
		EventBuffer:     1 << 16,
	}
}

func newTestSim(t *testing.T, opts Options) (*Simulation, *recorder) {
	t.Helper()

	s := New(opts)
	rec := &recorder{}
	s.Subscribe(rec)
	t.Cleanup(s.Close)
	return s, rec
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not satisfied before timeout")
}

// recorder keeps every event it sees.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) forClient(id uint64) []Event {
	var out []Event
	for _, e := range r.all() {
		if e.Client != nil && e.Client.ID == id {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, e := range r.all() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// stepClock advances by step on every read.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newStepClock(step time.Duration) *stepClock {
	return &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}
