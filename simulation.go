package foldersim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/google/uuid"
)

var (
	// ErrAlreadyRunning is returned by Start when a run is in progress.
	ErrAlreadyRunning = errors.New("foldersim: simulation already running")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("foldersim: simulation closed")
)

// State is the lifecycle state of a Simulation.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (st State) String() string {
	switch st {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// tracked is a registry entry. client is touched only while no folder
// owns it: at Enqueue, and at Start for parked clients.
type tracked struct {
	client *Client
	state  ClientState

	// parked is set when a stop left the client inside a folder.
	parked bool
}

// run holds the per-Start resources.
type run struct {
	id     string
	cancel context.CancelFunc
	slots  chan struct{}
	wg     sync.WaitGroup
	done   chan struct{}
}

// Simulation wires the ranked queue, the folders and the priority
// refresher together and owns their lifecycle.
type Simulation struct {
	opts    Options
	queue   *RankedQueue
	ids     IDGen
	bus     *eventBus
	metrics MetricsPolicy

	mu     sync.Mutex
	state  State
	cur    *run
	closed bool

	regMu    sync.RWMutex
	registry map[uint64]*tracked

	folderMu sync.RWMutex
	folders  []FolderState
}

// New creates an idle simulation.
func New(opts Options) *Simulation {
	opts.FillDefaults()
	s := &Simulation{
		opts:     opts,
		queue:    NewRankedQueue(),
		metrics:  opts.Metrics,
		registry: make(map[uint64]*tracked),
		folders:  make([]FolderState, opts.Folders),
	}
	for i := range s.folders {
		s.folders[i].Index = i
	}
	s.bus = newEventBus(opts.EventBuffer, s.metrics.IncDroppedEvents)
	return s
}

// Subscribe registers an observer. Observers added after Start only see
// later events.
func (s *Simulation) Subscribe(o Observer) { s.bus.subscribe(o) }

// NextID returns a fresh client id for external producers.
func (s *Simulation) NextID() uint64 { return s.ids.Next() }

// Submit validates files, creates a client and enqueues it.
// It returns the new client's id.
func (s *Simulation) Submit(files ...int) (uint64, error) {
	c, err := NewClient(s.ids.Next(), files, s.opts.Now())
	if err != nil {
		return 0, err
	}
	if err := s.enqueue(c); err != nil {
		return 0, err
	}
	return c.id, nil
}

// Enqueue hands a new client to the scheduler. It may be called in any
// state. A rejected client is reported through OnInternalError.
func (s *Simulation) Enqueue(c *Client) {
	if err := s.enqueue(c); err != nil {
		s.reportInternalError(err)
	}
}

func (s *Simulation) enqueue(c *Client) error {
	if c == nil {
		return ErrNilClient
	}
	if !c.eligible() {
		return fmt.Errorf("client %d: %w", c.id, ErrTerminalClient)
	}

	s.regMu.Lock()
	if _, ok := s.registry[c.id]; ok {
		s.regMu.Unlock()
		return fmt.Errorf("client %d: %w", c.id, ErrDuplicateClient)
	}
	now := s.opts.Now()
	c.arrival = now
	s.queue.Score(c, s.opts.Calculator, now)
	st := c.State()
	s.registry[c.id] = &tracked{client: c, state: st}
	s.regMu.Unlock()

	// Emitted before the push so no folder event for c can precede it.
	s.emitClient(EventClientEnqueued, st)
	if err := s.queue.Enqueue(c); err != nil {
		s.regMu.Lock()
		delete(s.registry, c.id)
		s.regMu.Unlock()
		return fmt.Errorf("client %d: %w", c.id, err)
	}
	s.metrics.IncEnqueued()
	return nil
}

// Start launches the folders and the refresher and returns.
func (s *Simulation) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.state != StateIdle {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:     uuid.NewString(),
		cancel: cancel,
		slots:  make(chan struct{}, s.opts.Folders),
		done:   make(chan struct{}),
	}
	s.cur = r
	s.state = StateRunning

	resumed := s.reseed()

	logger := lg.FromContext(s.opts.LogContext).With(lg.String("run", r.id))
	logger.Info("simulation started",
		lg.Int("folders", s.opts.Folders),
		lg.Int("queued", s.queue.Len()),
		lg.Int("resumed", resumed),
	)

	for i := 0; i < s.opts.Folders; i++ {
		r.wg.Add(1)
		go s.folder(ctx, r, i)
	}
	r.wg.Add(1)
	go s.refresher(ctx, r)

	go func() {
		r.wg.Wait()
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		logger.Info("simulation stopped")
		s.emit(Event{Kind: EventSimulationStopped, RunID: r.id})
		close(r.done)
	}()

	s.emit(Event{Kind: EventSimulationStarted, RunID: r.id})
	return nil
}

// reseed puts clients parked by the previous stop back into the queue.
// No folder runs while it executes.
func (s *Simulation) reseed() int {
	s.regMu.Lock()
	defer s.regMu.Unlock()

	var n int
	for id, t := range s.registry {
		if !t.parked {
			continue
		}
		t.parked = false
		if !t.client.eligible() {
			delete(s.registry, id)
			continue
		}
		s.queue.Score(t.client, s.opts.Calculator, s.opts.Now())
		if err := s.queue.Enqueue(t.client); err != nil {
			s.reportInternalError(fmt.Errorf("reseed client %d: %w", id, err))
			continue
		}
		t.state = t.client.State()
		n++
	}
	return n
}

// Shutdown signals cancellation and waits for all loops to exit or for
// ctx to expire. Calling it when idle is a no-op.
func (s *Simulation) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return nil
	}
	r := s.cur
	if s.state == StateRunning {
		s.state = StateStopping
		r.cancel()
	}
	s.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop is the blocking form of Shutdown.
func (s *Simulation) Stop() { _ = s.Shutdown(context.Background()) }

// Close stops the simulation and flushes pending events. Start fails
// afterwards.
func (s *Simulation) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Stop()
	s.bus.close()
}

// State returns the lifecycle state.
func (s *Simulation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RunID returns the id of the current or last run.
func (s *Simulation) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return ""
	}
	return s.cur.id
}

// Queue exposes the ranked queue for inspection.
func (s *Simulation) Queue() *RankedQueue { return s.queue }

// Options returns the effective options.
func (s *Simulation) Options() Options { return s.opts }

// Metrics returns the counters when the simulation uses AtomicMetrics.
func (s *Simulation) Metrics() MetricsSnapshot {
	if m, ok := s.metrics.(*AtomicMetrics); ok {
		return m.Snapshot()
	}
	return MetricsSnapshot{}
}

// Clients returns the live clients, highest priority first.
func (s *Simulation) Clients() []ClientState {
	s.regMu.RLock()
	out := make([]ClientState, 0, len(s.registry))
	for _, t := range s.registry {
		out = append(out, t.state)
	}
	s.regMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.ArrivalTime.Equal(b.ArrivalTime) {
			return a.ArrivalTime.Before(b.ArrivalTime)
		}
		return a.ID < b.ID
	})
	return out
}

// Folders returns the occupancy of every folder.
func (s *Simulation) Folders() []FolderState {
	s.folderMu.RLock()
	defer s.folderMu.RUnlock()
	out := make([]FolderState, len(s.folders))
	for i, f := range s.folders {
		out[i] = f
		if f.Unit != nil {
			u := *f.Unit
			out[i].Unit = &u
		}
	}
	return out
}

// publish stores st in the registry and notifies observers.
func (s *Simulation) publish(kind EventKind, st ClientState) {
	s.regMu.Lock()
	if t, ok := s.registry[st.ID]; ok {
		t.state = st
	}
	s.regMu.Unlock()
	s.emitClient(kind, st)
}

// notePriority records a refresher update without clobbering progress
// published by a folder in the meantime.
func (s *Simulation) notePriority(st ClientState) {
	s.regMu.Lock()
	if t, ok := s.registry[st.ID]; ok {
		t.state.Priority = st.Priority
	}
	s.regMu.Unlock()
	s.emitClient(EventClientChanged, st)
}

// park marks a client left inside a folder by a stop.
func (s *Simulation) park(st ClientState) {
	s.regMu.Lock()
	if t, ok := s.registry[st.ID]; ok {
		t.parked = true
		t.state = st
	}
	s.regMu.Unlock()
}

// retire removes a finished client from the registry.
func (s *Simulation) retire(st ClientState) {
	s.regMu.Lock()
	delete(s.registry, st.ID)
	s.regMu.Unlock()
	s.metrics.IncRetired()
	s.emitClient(EventClientRetired, st)
}

func (s *Simulation) setFolder(idx int, clientID uint64, unit *FileUnit, notify bool) {
	var u *FileUnit
	if unit != nil {
		cp := *unit
		u = &cp
	}
	fs := FolderState{Index: idx, ClientID: clientID, Unit: u}
	s.folderMu.Lock()
	s.folders[idx] = fs
	s.folderMu.Unlock()
	if notify {
		s.emit(Event{Kind: EventFolderChanged, Folder: &fs})
	}
}

func (s *Simulation) emitClient(kind EventKind, st ClientState) {
	s.emit(Event{Kind: kind, Client: &st})
}

func (s *Simulation) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = s.opts.Now()
	}
	if e.RunID == "" {
		e.RunID = s.RunID()
	}
	s.bus.publish(e)
}
