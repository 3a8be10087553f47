// Package handlers provides HTTP and websocket handlers for the presentation layer.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sessionbridge/sessionbridge-go/internal/application/container"
	"github.com/sessionbridge/sessionbridge-go/internal/application/services"
	"github.com/sessionbridge/sessionbridge-go/internal/domain/entities/session"
	"github.com/sessionbridge/sessionbridge-go/internal/domain/events"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/messaging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
	"github.com/sessionbridge/sessionbridge-go/pkg/config"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientHandlers serves the tracked-client surface: registration,
// verification, and the client websocket.
type ClientHandlers struct {
	sessionService *services.SessionService
	hub            *messaging.ClientHub
	logger         *logging.ChanneledLogger
}

// NewClientHandlers creates handlers for the client-facing endpoints.
func NewClientHandlers(c *container.Container) *ClientHandlers {
	return &ClientHandlers{
		sessionService: c.SessionService,
		hub:            c.ClientHub,
		logger:         c.Logger,
	}
}

type registerRequest struct {
	Category string `json:"category" binding:"required"`
	Contact  string `json:"contact"`
}

// Register captures a visitor and returns its entry URL.
func (h *ClientHandlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result, err := h.sessionService.Register(c.ClientIP(), c.Request.UserAgent(), req.Category, req.Contact)
	if err != nil {
		if session.IsPolicyError(err) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

type verifyRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Challenge string `json:"challenge" binding:"required"`
}

// Verify promotes a session after the entry step and returns the URL the
// client should continue to. The caller must be the session's own client.
func (h *ClientHandlers) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.sessionService.ValidatePageAccess(req.SessionID, req.Challenge, c.ClientIP(), c.Request.UserAgent()); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	redirectURL, err := h.sessionService.Verify(req.SessionID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirectUrl": redirectURL})
}

// Socket upgrades the client connection. The session must already exist and
// the request must come from the session's own client.
func (h *ClientHandlers) Socket(c *gin.Context) {
	sessionID := c.Query("client_id")
	challenge := c.Query("oauth_challenge")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing client_id"})
		return
	}
	if err := h.sessionService.ValidatePageAccess(sessionID, challenge, c.ClientIP(), c.Request.UserAgent()); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.System().Error("Client websocket upgrade failed", "sessionId", sessionID, "error", err)
		}
		return
	}

	client := &messaging.ClientConn{
		Conn:      conn,
		SessionID: sessionID,
		Send:      make(chan []byte, config.ClientSendBuffer),
	}
	h.hub.Attach(client)
	h.sessionService.ClientConnected(sessionID)

	go h.writePump(client)
	go h.readPump(client)
}

func (h *ClientHandlers) readPump(client *messaging.ClientConn) {
	defer func() {
		h.hub.Detach(client)
		// A reconnect replaces the socket before this defer runs; the
		// session is only disconnected when no replacement took over.
		if !h.hub.IsConnected(client.SessionID) {
			h.sessionService.ClientDisconnected(client.SessionID)
		}
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			return
		}
		var msg messaging.Envelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		h.dispatch(client.SessionID, msg)
	}
}

func (h *ClientHandlers) dispatch(sessionID string, msg messaging.Envelope) {
	switch msg.Event {
	case events.CmdHeartbeat:
		h.sessionService.Heartbeat(sessionID)
	case events.CmdNavigate:
		if page, ok := dataString(msg.Data, "page"); ok {
			h.sessionService.Navigate(sessionID, page)
		}
	case events.CmdPageLoading:
		loading, _ := dataBool(msg.Data, "loading")
		h.sessionService.SetPageLoading(sessionID, loading)
	case events.CmdAction:
		h.sessionService.RecordAction(sessionID, dataStringMap(msg.Data, "values"))
	default:
		if h.logger != nil {
			h.logger.Session().Debug("Unknown client event", "sessionId", sessionID, "event", msg.Event)
		}
	}
}

func (h *ClientHandlers) writePump(client *messaging.ClientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dataString pulls a string field out of an envelope's data map.
func dataString(data any, key string) (string, bool) {
	m, ok := data.(map[string]any)
	if !ok {
		return "", false
	}
	v, ok := m[key].(string)
	return v, ok
}

// dataBool pulls a bool field out of an envelope's data map.
func dataBool(data any, key string) (bool, bool) {
	m, ok := data.(map[string]any)
	if !ok {
		return false, false
	}
	v, ok := m[key].(bool)
	return v, ok
}
