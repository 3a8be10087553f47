package messaging

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sessionbridge/sessionbridge-go/internal/domain/entities/session"
	"github.com/sessionbridge/sessionbridge-go/internal/domain/events"
	"github.com/sessionbridge/sessionbridge-go/internal/domain/user"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
)

// ObserverClient represents a single connected observer socket.
type ObserverClient struct {
	Conn       *websocket.Conn
	OperatorID string
	Username   string
	Visibility user.Visibility
	Send       chan []byte
}

// ObserverBroadcaster manages observer sockets and fans session events out to
// them. Session-scoped events are filtered per observer: an event reaches a
// socket only when that observer's visibility covers the session. The init
// snapshot uses the same filter, so what an observer is told about matches
// what it was shown at connect.
type ObserverBroadcaster struct {
	clients    map[*ObserverClient]bool
	register   chan *ObserverClient
	unregister chan *ObserverClient
	mu         sync.RWMutex
	logger     *logging.ChanneledLogger
}

// NewObserverBroadcaster creates a broadcaster with no connected observers.
func NewObserverBroadcaster(logger *logging.ChanneledLogger) *ObserverBroadcaster {
	return &ObserverBroadcaster{
		clients:    make(map[*ObserverClient]bool),
		register:   make(chan *ObserverClient),
		unregister: make(chan *ObserverClient),
		logger:     logger,
	}
}

// Run owns the client registry. It must run as a goroutine before the first
// observer connects and exits when ctx is cancelled.
func (b *ObserverBroadcaster) Run(ctx context.Context) {
	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			total := len(b.clients)
			b.mu.Unlock()
			if b.logger != nil {
				b.logger.Broadcast().Info("Observer registered", "operatorId", client.OperatorID, "username", client.Username, "total", total)
			}

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Send)
				if b.logger != nil {
					b.logger.Broadcast().Info("Observer unregistered", "operatorId", client.OperatorID, "total", len(b.clients))
				}
			}
			b.mu.Unlock()

		case <-ctx.Done():
			b.mu.Lock()
			for client := range b.clients {
				delete(b.clients, client)
				close(client.Send)
			}
			b.mu.Unlock()
			return
		}
	}
}

// Register queues an observer for registration.
func (b *ObserverBroadcaster) Register(client *ObserverClient) {
	b.register <- client
}

// Unregister queues an observer for removal.
func (b *ObserverBroadcaster) Unregister(client *ObserverClient) {
	b.unregister <- client
}

// BroadcastSession sends a session-scoped event to every observer allowed to
// see the session.
func (b *ObserverBroadcaster) BroadcastSession(event string, sess session.Session) {
	message, err := json.Marshal(Envelope{Event: event, Data: sess})
	if err != nil {
		if b.logger != nil {
			b.logger.Broadcast().Error("Failed to marshal session event", "event", event, "error", err)
		}
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		if !client.Visibility.CanSee(sess.AssignedOperator) {
			continue
		}
		b.send(client, message)
	}
}

// BroadcastGlobal sends an event to every connected observer.
func (b *ObserverBroadcaster) BroadcastGlobal(event string, data any) {
	message, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		if b.logger != nil {
			b.logger.Broadcast().Error("Failed to marshal global event", "event", event, "error", err)
		}
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		b.send(client, message)
	}
}

// SendTo delivers an event to one observer.
func (b *ObserverBroadcaster) SendTo(client *ObserverClient, event string, data any) {
	message, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		if b.logger != nil {
			b.logger.Broadcast().Error("Failed to marshal direct event", "event", event, "error", err)
		}
		return
	}
	b.send(client, message)
}

// BroadcastToOperator sends an event only to the sockets of one operator.
func (b *ObserverBroadcaster) BroadcastToOperator(operatorID, event string, data any) {
	message, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		if b.logger != nil {
			b.logger.Broadcast().Error("Failed to marshal operator event", "event", event, "error", err)
		}
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		if client.OperatorID == operatorID {
			b.send(client, message)
		}
	}
}

// ForceLogout pushes a logout event to every socket belonging to an operator
// and closes them. Used when an operator account is deleted or its
// credentials change.
func (b *ObserverBroadcaster) ForceLogout(operatorID string) {
	message, _ := json.Marshal(Envelope{Event: events.ForceLogout})
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		if client.OperatorID != operatorID {
			continue
		}
		b.send(client, message)
		client.Conn.Close()
	}
	if b.logger != nil {
		b.logger.Broadcast().Info("Operator sockets terminated", "operatorId", operatorID)
	}
}

// FilterVisible returns the subset of sessions an observer may see. Snapshot
// assembly and event filtering share this predicate.
func FilterVisible(v user.Visibility, sessions []session.Session) []session.Session {
	visible := make([]session.Session, 0, len(sessions))
	for _, sess := range sessions {
		if v.CanSee(sess.AssignedOperator) {
			visible = append(visible, sess)
		}
	}
	return visible
}

// send enqueues without blocking. A full buffer means the observer is not
// draining; the message is dropped rather than stalling the broadcast loop.
func (b *ObserverBroadcaster) send(client *ObserverClient, message []byte) {
	select {
	case client.Send <- message:
	default:
		if b.logger != nil {
			b.logger.Broadcast().Warn("Observer send buffer full, dropping message", "operatorId", client.OperatorID)
		}
	}
}
