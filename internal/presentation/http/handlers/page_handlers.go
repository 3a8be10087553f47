package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sessionbridge/sessionbridge-go/internal/application/container"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/persistence/files"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/sessions"
	"github.com/sessionbridge/sessionbridge-go/pkg/config"
)

// PageHandlers serves the HTML pages clients are navigated through. Access
// control happens in middleware; by the time a request lands here it carries
// a validated session ID.
type PageHandlers struct {
	store    *sessions.Store
	settings *files.SettingsStore
	pagesDir string
	logger   *logging.ChanneledLogger
}

// NewPageHandlers creates the page-serving handlers.
func NewPageHandlers(c *container.Container) *PageHandlers {
	return &PageHandlers{
		store:    c.SessionStore,
		settings: c.SettingsStore,
		pagesDir: config.PagesDir,
		logger:   c.Logger,
	}
}

// Serve renders one page for a validated session. Placeholder tokens of the
// form {{name}} are replaced with the values an operator attached to the
// session; unknown tokens are left alone.
func (h *PageHandlers) Serve(c *gin.Context) {
	// filepath.Base strips any traversal the route wildcard let through.
	filename := filepath.Base(c.Param("filename"))
	if !strings.HasSuffix(filename, ".html") {
		c.Redirect(http.StatusFound, h.settings.Get().ExitURL)
		return
	}

	content, err := os.ReadFile(filepath.Join(h.pagesDir, filename))
	if err != nil {
		if h.logger != nil {
			h.logger.Access().Warn("Page not found", "filename", filename)
		}
		c.Redirect(http.StatusFound, h.settings.Get().ExitURL)
		return
	}

	page := string(content)
	sessionID := c.GetString("sessionId")
	h.store.Touch(sessionID)
	if view, ok := h.store.View(sessionID); ok {
		for key, value := range view.Placeholders {
			page = strings.ReplaceAll(page, "{{"+key+"}}", value)
		}
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}
