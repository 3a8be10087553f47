package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/messaging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
)

// ReputationMiddleware sends barred addresses to the exit URL before any
// session logic runs.
func ReputationMiddleware(reputation messaging.ReputationService, exitURL func() string, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := c.ClientIP()
		if reputation.IsBanned(addr) {
			if logger != nil {
				logger.Access().Info("Banned address redirected", "networkAddress", addr, "path", c.Request.URL.Path)
			}
			c.Redirect(http.StatusFound, exitURL())
			c.Abort()
			return
		}
		c.Next()
	}
}
