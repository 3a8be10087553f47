package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sessionbridge/sessionbridge-go/internal/application/container"
	"github.com/sessionbridge/sessionbridge-go/internal/application/services"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/performance"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/sessions"
)

// StatusHandlers serves operational status for authenticated observers.
type StatusHandlers struct {
	store           *sessions.Store
	operatorService *services.OperatorService
	perfTracker     *performance.Tracker
	startedAt       time.Time
}

// NewStatusHandlers creates the status endpoints.
func NewStatusHandlers(c *container.Container) *StatusHandlers {
	return &StatusHandlers{
		store:           c.SessionStore,
		operatorService: c.OperatorService,
		perfTracker:     c.PerfTracker,
		startedAt:       time.Now(),
	}
}

// Health is the unauthenticated liveness probe.
func (h *StatusHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status reports session counts, uptime, and operation timings.
func (h *StatusHandlers) Status(c *gin.Context) {
	pending, promoted := h.store.Counts()
	c.JSON(http.StatusOK, gin.H{
		"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
		"pending":    pending,
		"promoted":   promoted,
		"operations": h.perfTracker.OverallStats(),
	})
}

// Operators lists observer accounts. The identity is set by AuthMiddleware;
// only full-access observers get the roster.
func (h *StatusHandlers) Operators(c *gin.Context) {
	identity, ok := c.MustGet("identity").(*services.Identity)
	if !ok || !identity.Visibility.IsFullAccess() {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"operators": h.operatorService.List()})
}
