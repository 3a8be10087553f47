package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
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

// ObserverHandlers serves the observer surface: login, the observer
// websocket, and the command dispatch behind it.
type ObserverHandlers struct {
	authService       *services.ObserverAuthService
	sessionService    *services.SessionService
	assignmentService *services.AssignmentService
	operatorService   *services.OperatorService
	broadcaster       *messaging.ObserverBroadcaster
	store             sessionGetter
	logger            *logging.ChanneledLogger
}

// sessionGetter is the slice of the session store the dispatcher needs for
// visibility checks.
type sessionGetter interface {
	Get(id string) (*session.Session, bool)
}

// NewObserverHandlers creates handlers for the observer endpoints.
func NewObserverHandlers(c *container.Container) *ObserverHandlers {
	return &ObserverHandlers{
		authService:       c.AuthService,
		sessionService:    c.SessionService,
		assignmentService: c.AssignmentService,
		operatorService:   c.OperatorService,
		broadcaster:       c.Broadcaster,
		store:             c.SessionStore,
		logger:            c.Logger,
	}
}

type loginRequest struct {
	Username   string `json:"username" binding:"required"`
	Credential string `json:"credential" binding:"required"`
}

// Login authenticates an observer and returns a token.
func (h *ObserverHandlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	result := h.authService.Authenticate(req.Username, req.Credential)
	if !result.Success {
		c.JSON(http.StatusUnauthorized, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AuthMiddleware protects the REST endpoints that require an observer token.
func (h *ObserverHandlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		identity, ok := h.authService.ValidateToken(token)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		c.Set("identity", identity)
		c.Next()
	}
}

// Socket upgrades an observer connection. The token rides in a query
// parameter because browser websockets cannot set headers.
func (h *ObserverHandlers) Socket(c *gin.Context) {
	identity, ok := h.authService.ValidateToken(c.Query("token"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.System().Error("Observer websocket upgrade failed", "operatorId", identity.OperatorID, "error", err)
		}
		return
	}

	client := &messaging.ObserverClient{
		Conn:       conn,
		OperatorID: identity.OperatorID,
		Username:   identity.Username,
		Visibility: identity.Visibility,
		Send:       make(chan []byte, config.ObserverSendBuffer),
	}
	h.broadcaster.Register(client)
	h.broadcaster.SendTo(client, events.Init, h.sessionService.SnapshotFor(identity.Visibility))

	go h.writePump(client)
	go h.readPump(client)
}

func (h *ObserverHandlers) readPump(client *messaging.ObserverClient) {
	defer func() {
		h.broadcaster.Unregister(client)
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
		h.dispatch(client, msg)
	}
}

func (h *ObserverHandlers) writePump(client *messaging.ObserverClient) {
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

// dispatch routes one observer command. Session commands are checked against
// the observer's visibility first; administrative commands require full
// access. Rejections go back to the requesting socket only.
func (h *ObserverHandlers) dispatch(client *messaging.ObserverClient, msg messaging.Envelope) {
	admin := client.Visibility.IsFullAccess()

	switch msg.Event {
	case events.CmdRedirectSession:
		sessionID, _ := dataString(msg.Data, "sessionId")
		page, _ := dataString(msg.Data, "page")
		if !h.canTouch(client, sessionID) {
			h.broadcaster.SendTo(client, events.RedirectError, gin.H{"sessionId": sessionID, "error": "session not visible"})
			return
		}
		if err := h.sessionService.Redirect(sessionID, page, dataStringMap(msg.Data, "placeholders")); err != nil {
			h.broadcaster.SendTo(client, events.RedirectError, gin.H{"sessionId": sessionID, "error": err.Error()})
		}

	case events.CmdRemoveSession:
		sessionID, _ := dataString(msg.Data, "sessionId")
		if h.canTouch(client, sessionID) {
			h.sessionService.Remove(sessionID)
		}

	case events.CmdAssignSession:
		sessionID, _ := dataString(msg.Data, "sessionId")
		operatorID, _ := dataString(msg.Data, "operatorId")
		if !admin {
			// A restricted operator may only claim sessions for itself.
			operatorID = client.OperatorID
		}
		if err := h.assignmentService.Assign(sessionID, operatorID); err != nil {
			h.broadcaster.SendTo(client, events.AssignmentError, gin.H{"sessionId": sessionID, "error": err.Error()})
		}

	case events.CmdUnassignSession:
		sessionID, _ := dataString(msg.Data, "sessionId")
		if h.canTouch(client, sessionID) {
			if err := h.assignmentService.Unassign(sessionID); err != nil {
				h.broadcaster.SendTo(client, events.AssignmentError, gin.H{"sessionId": sessionID, "error": err.Error()})
			}
		}

	case events.CmdSetAlias:
		sessionID, _ := dataString(msg.Data, "sessionId")
		alias, _ := dataString(msg.Data, "alias")
		if h.canTouch(client, sessionID) {
			h.assignmentService.SetAlias(sessionID, alias)
		}

	case events.CmdClearSessions:
		if admin {
			h.sessionService.ClearAll()
		} else {
			// A restricted operator releases its assignments; the
			// sessions themselves stay.
			h.assignmentService.ClearAssignments(client.OperatorID)
		}

	case events.CmdClearAssignments:
		if admin {
			operatorID, _ := dataString(msg.Data, "operatorId")
			h.assignmentService.ClearAssignments(operatorID)
		}

	case events.CmdBanAddress:
		if admin {
			addr, _ := dataString(msg.Data, "networkAddress")
			reason, _ := dataString(msg.Data, "reason")
			h.sessionService.Ban(addr, reason, client.Username)
		}

	case events.CmdUnbanAddress:
		if admin {
			addr, _ := dataString(msg.Data, "networkAddress")
			h.sessionService.Unban(addr)
		}

	case events.CmdAddOperator:
		if admin {
			username, _ := dataString(msg.Data, "username")
			credential, _ := dataString(msg.Data, "credential")
			if _, err := h.operatorService.Add(username, credential); err != nil {
				h.broadcaster.SendTo(client, events.AssignmentError, gin.H{"error": err.Error()})
			}
		}

	case events.CmdUpdateOperator:
		if admin {
			operatorID, _ := dataString(msg.Data, "operatorId")
			credential, _ := dataString(msg.Data, "credential")
			if err := h.operatorService.UpdateCredential(operatorID, credential); err != nil {
				h.broadcaster.SendTo(client, events.AssignmentError, gin.H{"error": err.Error()})
			}
		}

	case events.CmdDeleteOperator:
		if admin {
			operatorID, _ := dataString(msg.Data, "operatorId")
			if err := h.operatorService.Delete(operatorID); err != nil {
				h.broadcaster.SendTo(client, events.AssignmentError, gin.H{"error": err.Error()})
			}
		}

	case events.CmdUpdateSettings:
		if admin {
			// Partial payloads keep the current value for absent fields.
			settings := h.sessionService.CurrentSettings()
			if raw, err := json.Marshal(msg.Data); err == nil {
				if err := json.Unmarshal(raw, &settings); err == nil {
					h.sessionService.UpdateSettings(settings)
				}
			}
		}

	default:
		if h.logger != nil {
			h.logger.Broadcast().Debug("Unknown observer command", "operatorId", client.OperatorID, "event", msg.Event)
		}
	}
}

// canTouch reports whether the observer may act on a session.
func (h *ObserverHandlers) canTouch(client *messaging.ObserverClient, sessionID string) bool {
	sess, ok := h.store.Get(sessionID)
	if !ok {
		return client.Visibility.IsFullAccess()
	}
	return client.Visibility.CanSee(sess.AssignedOperator)
}

// dataStringMap pulls a string map field out of an envelope's data map.
func dataStringMap(data any, key string) map[string]string {
	m, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := m[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
