// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sessionbridge/sessionbridge-go/internal/application/container"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/notifications"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/sweeper"
	"github.com/sessionbridge/sessionbridge-go/internal/presentation/http/server"
	"github.com/sessionbridge/sessionbridge-go/pkg/config"
)

// Initialize performs the complete startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("SessionBridge starting...")

	// Step 1: Load persistent stores and wire the dependency container
	log.Println("Initializing dependency injection container...")
	appContainer, err := container.NewContainer()
	if err != nil {
		return fmt.Errorf("container initialization failed: %w", err)
	}

	logger := appContainer.Logger
	logger.Startup().Info("Container initialization complete - switching to channeled logging")
	logger.Startup().Info("Notification sink configured", "sink", notifications.Describe(config.NotifyEnabled, config.NotifyToEmail))

	// Step 2: Start the observer broadcaster loop
	go appContainer.Broadcaster.Run(ctx)
	logger.Startup().Info("Observer broadcaster started")

	// Step 3: Start the background session sweeper
	startWorkerTime := time.Now()
	sweepWorker := sweeper.NewWorker(appContainer.SessionStore, appContainer.Broadcaster, sweeper.NewConfig(), logger)
	go sweepWorker.Start(ctx)
	logger.Startup().Info("Session sweeper started", "duration", time.Since(startWorkerTime))

	// Step 4: Start HTTP server
	startServerTime := time.Now()
	port := os.Getenv("PORT")
	if port == "" {
		port = config.Port
	}
	httpServer := server.New(port, appContainer)
	logger.Startup().Info("HTTP server initialized", "port", port, "duration", time.Since(startServerTime))

	// Step 5: Setup graceful shutdown
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	pending, promoted := appContainer.SessionStore.Counts()
	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"pendingSessions", pending,
		"promotedSessions", promoted,
		"port", port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	// Cancel background tasks
	cancelBackgroundTasks()

	// Stop server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
