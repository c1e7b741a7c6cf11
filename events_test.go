package foldersim

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEventKindString(t *testing.T) {
	for k := EventClientEnqueued; k <= EventSimulationStopped; k++ {
		if k.String() == "unknown" {
			t.Fatalf("kind %d has no name", k)
		}
	}
	if EventKind(0).String() != "unknown" {
		t.Fatal("zero kind should be unknown")
	}
}

func TestEventJSONUsesKindName(t *testing.T) {
	st := ClientState{ID: 3, Files: []int{5}, Progress: 40}
	data, err := json.Marshal(Event{Kind: EventClientChanged, Time: time.Unix(0, 0), Client: &st})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"client_changed"`) {
		t.Fatalf("json = %s", data)
	}
}

func TestEventBusDeliversInOrder(t *testing.T) {
	b := newEventBus(64, nil)
	rec := &recorder{}
	b.subscribe(rec)
	for i := 1; i <= 20; i++ {
		st := ClientState{ID: uint64(i)}
		b.publish(Event{Kind: EventClientChanged, Client: &st})
	}
	b.close()

	events := rec.all()
	if len(events) != 20 {
		t.Fatalf("delivered %d; want 20", len(events))
	}
	for i, e := range events {
		if e.Client.ID != uint64(i+1) {
			t.Fatalf("event %d carries client %d", i, e.Client.ID)
		}
	}
	b.publish(Event{Kind: EventClientChanged})
}
