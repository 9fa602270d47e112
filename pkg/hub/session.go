package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/looplab/fsm"
	"github.com/teslashibe/go-gesture/pkg/protocol"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds one inbound event (base64 frames included)
	maxMessageSize = 8 << 20

	// sendQueueSize is the per-session outbound buffer
	sendQueueSize = 64
)

// Session lifecycle states.
const (
	StateConnected    = "connected"
	StateDisconnected = "disconnected"
)

// Conn is the subset of a websocket connection the hub needs. Both the
// gofiber and gorilla connections satisfy it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Session is one connected subscriber.
type Session struct {
	ID          string
	ConnectedAt time.Time

	hub   *Hub
	conn  Conn
	send  chan []byte
	state *fsm.FSM

	mu     sync.Mutex
	closed bool

	received atomic.Uint64
}

type enqueueResult int

const (
	enqueued enqueueResult = iota
	queueFull
	sessionClosed
)

func newSession(h *Hub, id string, conn Conn) *Session {
	s := &Session{
		ID:          id,
		ConnectedAt: time.Now(),
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
	}
	s.state = fsm.NewFSM(
		StateConnected,
		fsm.Events{
			{Name: "disconnect", Src: []string{StateConnected}, Dst: StateDisconnected},
		},
		fsm.Callbacks{
			"enter_" + StateDisconnected: func(e *fsm.Event) {
				h.logger.Debug("session state changed",
					"session_id", id,
					"from", e.Src,
					"to", e.Dst,
					"lifetime", time.Since(s.ConnectedAt),
				)
			},
		},
	)
	return s
}

// State returns the lifecycle state.
func (s *Session) State() string {
	return s.state.Current()
}

// Active reports whether the session is still connected.
func (s *Session) Active() bool {
	return s.state.Is(StateConnected)
}

// Info returns a snapshot of the session for listings.
func (s *Session) Info() Info {
	return Info{
		ID:        s.ID,
		State:     s.State(),
		Connected: s.ConnectedAt,
		Received:  s.received.Load(),
	}
}

// Send queues data for this session only. It returns false if the session
// is closed or its queue is full; messages are never retried.
func (s *Session) Send(data []byte) bool {
	return s.enqueue(data) == enqueued
}

// SendMessage encodes and queues msg for this session only.
func (s *Session) SendMessage(msg *protocol.Message) (bool, error) {
	data, err := msg.Bytes()
	if err != nil {
		return false, err
	}
	return s.Send(data), nil
}

func (s *Session) enqueue(data []byte) enqueueResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return sessionClosed
	}
	select {
	case s.send <- data:
		return enqueued
	default:
		return queueFull
	}
}

// close moves the session to disconnected and closes its queue, which
// makes the write pump send a close frame and exit.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.send)

	if err := s.state.Event("disconnect"); err != nil {
		if _, ok := err.(fsm.NoTransitionError); !ok {
			s.hub.logger.Warn("session state error", "session_id", s.ID, "error", err)
		}
	}
}

// Serve pumps the connection until it closes. handle is called for every
// inbound message, sequentially and in arrival order. Serve unregisters the
// session and waits for the write pump before returning, so the caller may
// release the connection afterwards.
func (s *Session) Serve(handle func(data []byte)) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump()
	}()

	s.readPump(handle)
	s.hub.Disconnect(s)
	<-done
}

// readPump reads messages until the connection fails or the peer leaves.
func (s *Session) readPump(handle func(data []byte)) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.received.Add(1)
		handle(data)
	}
}

// writePump is the only goroutine that writes to the connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the queue - send close frame
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
