package foldersim

import (
	"sync"
	"time"
)

// EventKind tells observers what changed.
type EventKind int

const (
	EventClientEnqueued EventKind = iota + 1
	EventClientDispatched
	EventClientChanged
	EventClientRequeued
	EventClientRetired
	EventFolderChanged
	EventSimulationStarted
	EventSimulationStopped
)

func (k EventKind) String() string {
	switch k {
	case EventClientEnqueued:
		return "client_enqueued"
	case EventClientDispatched:
		return "client_dispatched"
	case EventClientChanged:
		return "client_changed"
	case EventClientRequeued:
		return "client_requeued"
	case EventClientRetired:
		return "client_retired"
	case EventFolderChanged:
		return "folder_changed"
	case EventSimulationStarted:
		return "simulation_started"
	case EventSimulationStopped:
		return "simulation_stopped"
	default:
		return "unknown"
	}
}

// MarshalText lets events serialize the kind by name.
func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// FolderState describes one processing slot. Unit is nil when idle.
type FolderState struct {
	Index    int       `json:"index"`
	ClientID uint64    `json:"client_id,omitempty"`
	Unit     *FileUnit `json:"unit,omitempty"`
}

// Busy reports whether the folder owns a client.
func (f FolderState) Busy() bool { return f.Unit != nil }

// Event is a structured change record. Client is set for client events,
// Folder for folder events.
type Event struct {
	Kind   EventKind    `json:"kind"`
	Time   time.Time    `json:"time"`
	RunID  string       `json:"run_id,omitempty"`
	Client *ClientState `json:"client,omitempty"`
	Folder *FolderState `json:"folder,omitempty"`
}

// Observer receives events on the bus goroutine. OnEvent should return
// quickly; a slow observer delays the others and fills the buffer.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// eventBus delivers events to observers from a single goroutine.
// publish never blocks: when the buffer is full the event is dropped.
type eventBus struct {
	mu        sync.RWMutex
	observers []Observer
	closed    bool

	ch      chan Event
	done    chan struct{}
	onDrop  func()
	closeMu sync.Once
}

func newEventBus(buffer int, onDrop func()) *eventBus {
	b := &eventBus{
		ch:     make(chan Event, buffer),
		done:   make(chan struct{}),
		onDrop: onDrop,
	}
	go b.run()
	return b
}

func (b *eventBus) subscribe(o Observer) {
	b.mu.Lock()
	b.observers = append(b.observers, o)
	b.mu.Unlock()
}

func (b *eventBus) publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed || len(b.observers) == 0 {
		return
	}
	select {
	case b.ch <- e:
	default:
		if b.onDrop != nil {
			b.onDrop()
		}
	}
}

func (b *eventBus) run() {
	defer close(b.done)
	for e := range b.ch {
		b.mu.RLock()
		obs := b.observers
		b.mu.RUnlock()
		for _, o := range obs {
			o.OnEvent(e)
		}
	}
}

// close stops accepting events and waits until the buffered ones are
// delivered.
func (b *eventBus) close() {
	b.closeMu.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.ch)
		b.mu.Unlock()
	})
	<-b.done
}
