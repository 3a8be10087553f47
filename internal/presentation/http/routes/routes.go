// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/sessionbridge/sessionbridge-go/internal/application/container"
	"github.com/sessionbridge/sessionbridge-go/internal/presentation/http/handlers"
	"github.com/sessionbridge/sessionbridge-go/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(c *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	exitURL := func() string { return c.SettingsStore.Get().ExitURL }
	banGate := middleware.ReputationMiddleware(c.BanStore, exitURL, c.Logger)

	// Initialize handlers
	clientHandlers := handlers.NewClientHandlers(c)
	observerHandlers := handlers.NewObserverHandlers(c)
	pageHandlers := handlers.NewPageHandlers(c)
	statusHandlers := handlers.NewStatusHandlers(c)

	r.GET("/health", statusHandlers.Health)

	// Client-facing API. Every route sits behind the ban gate.
	api := r.Group("/api/v1/session")
	api.Use(banGate)
	{
		api.POST("/register", clientHandlers.Register)
		api.POST("/verify", clientHandlers.Verify)
	}

	// Tracked pages. Access is validated per request; failures redirect
	// without revealing which check failed.
	pages := r.Group("/pages")
	pages.Use(banGate)
	pages.Use(middleware.PageAccessMiddleware(c.SessionService, exitURL, c.Logger))
	{
		pages.GET("/:filename", pageHandlers.Serve)
	}

	// Websockets
	r.GET("/ws/client", banGate, clientHandlers.Socket)
	r.GET("/ws/observer", observerHandlers.Socket)

	// Observer REST surface
	observerAPI := r.Group("/api/observer")
	{
		observerAPI.POST("/login", observerHandlers.Login)

		authed := observerAPI.Group("")
		authed.Use(observerHandlers.AuthMiddleware())
		{
			authed.GET("/status", statusHandlers.Status)
			authed.GET("/operators", statusHandlers.Operators)
		}
	}

	// Static observer dashboard
	r.Static("/observer", "web/observer")
	r.StaticFile("/favicon.ico", "web/observer/favicon.ico")

	return r
}
