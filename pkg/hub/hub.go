// Package hub tracks live websocket sessions and fans out broadcast
// messages to them.
//
// Each Session owns a buffered send queue drained by a single write pump,
// so only one goroutine ever writes to a connection. Broadcast snapshots
// the session set under a read lock and enqueues outside it; connects and
// disconnects never race with iteration.
package hub

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-gesture/pkg/protocol"
)

// Hub maintains the set of active sessions.
type Hub struct {
	// Name for logging
	name   string
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	connects atomic.Uint64
	sent     atomic.Uint64
	dropped  atomic.Uint64
	evicted  atomic.Uint64
}

// New creates a new Hub.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:     name,
		logger:   logger.With("hub", name),
		sessions: make(map[string]*Session),
	}
}

// Connect registers conn as a new session. The caller must run
// Session.Serve to pump the connection.
func (h *Hub) Connect(conn Conn) *Session {
	s := newSession(h, uuid.NewString(), conn)

	h.mu.Lock()
	h.sessions[s.ID] = s
	count := len(h.sessions)
	h.mu.Unlock()

	h.connects.Add(1)
	h.logger.Info("session connected", "session_id", s.ID, "sessions", count)
	return s
}

// Disconnect removes s and closes its send queue. Safe to call more than
// once and concurrently with Broadcast.
func (h *Hub) Disconnect(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	count := len(h.sessions)
	h.mu.Unlock()

	s.close()

	if ok {
		h.logger.Info("session disconnected", "session_id", s.ID, "sessions", count)
	}
}

// snapshot copies the live set so callers can iterate without the lock.
func (h *Hub) snapshot() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// Broadcast queues data for every connected session and returns how many
// accepted it. Sessions whose queue is full are too slow to keep up and
// are disconnected.
func (h *Hub) Broadcast(data []byte) int {
	delivered := 0
	for _, s := range h.snapshot() {
		switch s.enqueue(data) {
		case enqueued:
			delivered++
		case queueFull:
			h.evicted.Add(1)
			h.logger.Warn("dropping slow session", "session_id", s.ID)
			h.Disconnect(s)
		case sessionClosed:
			h.dropped.Add(1)
		}
	}
	h.sent.Add(uint64(delivered))
	return delivered
}

// BroadcastMessage encodes and broadcasts msg.
func (h *Hub) BroadcastMessage(msg *protocol.Message) (int, error) {
	data, err := msg.Bytes()
	if err != nil {
		return 0, err
	}
	return h.Broadcast(data), nil
}

// Session returns a live session by ID, or nil.
func (h *Hub) Session(id string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[id]
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close disconnects every session.
func (h *Hub) Close() {
	for _, s := range h.snapshot() {
		h.Disconnect(s)
	}
}

// Stats contains hub statistics.
type Stats struct {
	Sessions     int    `json:"sessions"`
	Connects     uint64 `json:"connects"`
	MessagesSent uint64 `json:"messages_sent"`
	Dropped      uint64 `json:"dropped"`
	Evicted      uint64 `json:"evicted"`
}

// Stats returns hub statistics.
func (h *Hub) Stats() Stats {
	return Stats{
		Sessions:     h.Count(),
		Connects:     h.connects.Load(),
		MessagesSent: h.sent.Load(),
		Dropped:      h.dropped.Load(),
		Evicted:      h.evicted.Load(),
	}
}

// Info describes a connected session.
type Info struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	Connected time.Time `json:"connected"`
	Received  uint64    `json:"received"`
}

// Infos returns info about all connected sessions.
func (h *Hub) Infos() []Info {
	sessions := h.snapshot()
	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	return infos
}
