package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sessionbridge/sessionbridge-go/internal/application/services"
	"github.com/sessionbridge/sessionbridge-go/internal/domain/entities/session"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
)

// PageAccessMiddleware gates every page request. The URL must be one the
// server issued for a live session, the request must originate from that
// session's client, and a session that has not passed verification is sent
// back to its entry page. Every other failure mode produces the same exit
// redirect so a visitor learns nothing about which check failed.
func PageAccessMiddleware(sessionService *services.SessionService, exitURL func() string, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := sessionService.AuthorizePage(c.Request.URL.RequestURI(), c.ClientIP(), c.Request.UserAgent())
		if err != nil {
			if logger != nil {
				logger.Access().Warn("Page access rejected", "sessionId", sessionID, "path", c.Request.URL.Path, "error", err)
			}
			if errors.Is(err, session.ErrNotVerified) {
				if entry, entryErr := sessionService.EntryRedirect(sessionID); entryErr == nil {
					c.Redirect(http.StatusFound, entry)
					c.Abort()
					return
				}
			}
			c.Redirect(http.StatusFound, exitURL())
			c.Abort()
			return
		}

		c.Set("sessionId", sessionID)
		c.Next()
	}
}
