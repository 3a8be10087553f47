package messaging

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
)

// ClientConn represents the socket of one tracked session. A session keeps at
// most one socket; a reconnect replaces the previous one.
type ClientConn struct {
	Conn      *websocket.Conn
	SessionID string
	Send      chan []byte
}

// ClientHub tracks session sockets so server-initiated instructions, redirects
// mostly, can be pushed to a specific client.
type ClientHub struct {
	conns  map[string]*ClientConn
	mu     sync.RWMutex
	logger *logging.ChanneledLogger
}

// NewClientHub creates an empty hub.
func NewClientHub(logger *logging.ChanneledLogger) *ClientHub {
	return &ClientHub{
		conns:  make(map[string]*ClientConn),
		logger: logger,
	}
}

// Attach registers a session socket, replacing and closing any previous one.
func (h *ClientHub) Attach(conn *ClientConn) {
	h.mu.Lock()
	previous := h.conns[conn.SessionID]
	h.conns[conn.SessionID] = conn
	h.mu.Unlock()

	if previous != nil {
		close(previous.Send)
		if previous.Conn != nil {
			previous.Conn.Close()
		}
	}
	if h.logger != nil {
		h.logger.Broadcast().Debug("Client socket attached", "sessionId", conn.SessionID, "replaced", previous != nil)
	}
}

// Detach removes a session socket if it is still the registered one.
func (h *ClientHub) Detach(conn *ClientConn) {
	h.mu.Lock()
	current, ok := h.conns[conn.SessionID]
	if ok && current == conn {
		delete(h.conns, conn.SessionID)
	} else {
		ok = false
	}
	h.mu.Unlock()

	if ok {
		close(conn.Send)
		if h.logger != nil {
			h.logger.Broadcast().Debug("Client socket detached", "sessionId", conn.SessionID)
		}
	}
}

// IsConnected reports whether a session has a live socket.
func (h *ClientHub) IsConnected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[sessionID]
	return ok
}

// SendTo pushes an event to one session's socket. Returns false when the
// session has no socket or its buffer is full.
func (h *ClientHub) SendTo(sessionID, event string, data any) bool {
	message, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		if h.logger != nil {
			h.logger.Broadcast().Error("Failed to marshal client event", "event", event, "sessionId", sessionID, "error", err)
		}
		return false
	}

	h.mu.RLock()
	conn, ok := h.conns[sessionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case conn.Send <- message:
		return true
	default:
		if h.logger != nil {
			h.logger.Broadcast().Warn("Client send buffer full, dropping message", "sessionId", sessionID)
		}
		return false
	}
}

// Close terminates a session's socket, if any.
func (h *ClientHub) Close(sessionID string) {
	h.mu.Lock()
	conn, ok := h.conns[sessionID]
	if ok {
		delete(h.conns, sessionID)
	}
	h.mu.Unlock()

	if ok {
		close(conn.Send)
		if conn.Conn != nil {
			conn.Conn.Close()
		}
	}
}
