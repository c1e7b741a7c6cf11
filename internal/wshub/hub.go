// Package wshub streams simulation events to websocket clients as JSON.
package wshub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/gorilla/websocket"

	"github.com/azargarov/foldersim"
)

// Frame is the first message a new connection receives.
type Frame struct {
	Clients []foldersim.ClientState `json:"clients"`
	Folders []foldersim.FolderState `json:"folders"`
}

// Hub fans events out to every connected client. It implements
// foldersim.Observer.
type Hub struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	register  chan *websocket.Conn
	remove    chan *websocket.Conn
	broadcast chan []byte
	done      chan struct{}
	closeOnce sync.Once

	snapshot func() Frame
	logCtx   context.Context
}

// New starts a hub logging through the zlog logger in logCtx. snapshot,
// if not nil, builds the frame sent to a connection right after the
// upgrade.
func New(logCtx context.Context, snapshot func() Frame) *Hub {
	if logCtx == nil {
		logCtx = context.Background()
	}
	h := &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]bool),
		register:  make(chan *websocket.Conn),
		remove:    make(chan *websocket.Conn),
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		snapshot:  snapshot,
		logCtx:    logCtx,
	}
	go h.run()
	return h
}

// SnapshotOf builds the frame source for a simulation.
func SnapshotOf(s *foldersim.Simulation) func() Frame {
	return func() Frame {
		return Frame{Clients: s.Clients(), Folders: s.Folders()}
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for conn := range h.clients {
				conn.Close()
			}
			return
		case conn := <-h.register:
			h.clients[conn] = true
		case conn := <-h.remove:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
		case msg := <-h.broadcast:
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					lg.FromContext(h.logCtx).Warn("websocket send failed", lg.Any("error", err))
					delete(h.clients, conn)
					conn.Close()
				}
			}
		}
	}
}

// OnEvent marshals e and queues it for broadcast. A full queue drops the
// event rather than stall the simulation's event bus.
func (h *Hub) OnEvent(e foldersim.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		lg.FromContext(h.logCtx).Error("marshal event", lg.Any("error", err))
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
	}
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		lg.FromContext(h.logCtx).Error("websocket upgrade failed", lg.Any("error", err))
		return
	}

	if h.snapshot != nil {
		if data, err := json.Marshal(h.snapshot()); err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.remove <- conn:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					lg.FromContext(h.logCtx).Warn("websocket error", lg.Any("error", err))
				}
				return
			}
		}
	}()
}

// Close disconnects every client and stops the hub.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
