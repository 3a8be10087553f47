// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"
	"path/filepath"

	"github.com/sessionbridge/sessionbridge-go/internal/application/services"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/messaging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/notifications"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/performance"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/pages"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/persistence/files"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/security"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/sessions"
	"github.com/sessionbridge/sessionbridge-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Observability
	Logger      *logging.ChanneledLogger
	PerfTracker *performance.Tracker

	// Infrastructure
	SessionStore  *sessions.Store
	ClientHub     *messaging.ClientHub
	Broadcaster   *messaging.ObserverBroadcaster
	PageResolver  *pages.Resolver
	BanStore      *files.BanStore
	AliasStore    *files.AliasStore
	OperatorStore *files.OperatorStore
	SettingsStore *files.SettingsStore
	Notifier      messaging.NotificationSink

	// Application Services
	SessionService    *services.SessionService
	AssignmentService *services.AssignmentService
	AuthService       *services.ObserverAuthService
	OperatorService   *services.OperatorService
}

// NewContainer creates and wires all singleton services. Persistent stores
// are loaded here; a store that exists on disk but cannot be parsed aborts
// startup rather than running with silently discarded state.
func NewContainer() (*Container, error) {
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	perfTracker := performance.NewTracker(0)

	if config.OperatorJWTSecret == "" {
		secret, err := security.GenerateSecureKey(64)
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		config.OperatorJWTSecret = secret
		logger.Startup().Warn("OPERATOR_JWT_SECRET not set, generated an ephemeral signing key; observer tokens will not survive a restart")
	}

	banStore, err := files.NewBanStore(config.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load ban store: %w", err)
	}
	aliasStore, err := files.NewAliasStore(config.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load alias store: %w", err)
	}
	operatorStore, err := files.NewOperatorStore(config.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load operator store: %w", err)
	}
	settingsStore, err := files.NewSettingsStore(config.DataDir, files.Settings{
		ServiceEnabled: config.ServiceEnabled,
		ExitURL:        config.ExitURL,
		DefaultEntry:   config.DefaultEntry,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings store: %w", err)
	}

	resolver, err := pages.NewResolver(filepath.Join(config.DataDir, "pages.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to load page config: %w", err)
	}

	var notifier messaging.NotificationSink
	if config.NotifyEnabled {
		notifier = notifications.NewEmailSink(config.ResendAPIKey, config.NotifyFromEmail, config.NotifyToEmail, logger)
	} else {
		notifier = notifications.NoopSink{}
	}

	store := sessions.NewStore(logger)
	hub := messaging.NewClientHub(logger)
	broadcaster := messaging.NewObserverBroadcaster(logger)

	sessionService := services.NewSessionService(store, hub, broadcaster, resolver, banStore, aliasStore, settingsStore, notifier, logger, perfTracker)
	assignmentService := services.NewAssignmentService(store, aliasStore, broadcaster, logger)
	authService := services.NewObserverAuthService(operatorStore, logger)
	operatorService := services.NewOperatorService(operatorStore, assignmentService, broadcaster, logger)

	return &Container{
		Logger:            logger,
		PerfTracker:       perfTracker,
		SessionStore:      store,
		ClientHub:         hub,
		Broadcaster:       broadcaster,
		PageResolver:      resolver,
		BanStore:          banStore,
		AliasStore:        aliasStore,
		OperatorStore:     operatorStore,
		SettingsStore:     settingsStore,
		Notifier:          notifier,
		SessionService:    sessionService,
		AssignmentService: assignmentService,
		AuthService:       authService,
		OperatorService:   operatorService,
	}, nil
}
