package files

import (
	"path/filepath"
	"sync"

	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
)

// Settings are the runtime toggles an administrator can change without a
// restart. Disabled service sends every new visitor to the exit URL.
type Settings struct {
	ServiceEnabled bool   `json:"serviceEnabled"`
	ExitURL        string `json:"exitUrl"`
	DefaultEntry   string `json:"defaultEntry"`
}

// SettingsStore persists runtime settings.
type SettingsStore struct {
	path     string
	settings Settings
	mu       sync.RWMutex
	logger   *logging.ChanneledLogger
}

// NewSettingsStore loads settings from dataDir, falling back to the provided
// defaults when no file exists yet.
func NewSettingsStore(dataDir string, defaults Settings, logger *logging.ChanneledLogger) (*SettingsStore, error) {
	s := &SettingsStore{
		path:     filepath.Join(dataDir, "settings.json"),
		settings: defaults,
		logger:   logger,
	}
	if _, err := loadJSON(s.path, &s.settings); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Store().Info("Settings loaded", "path", s.path, "serviceEnabled", s.settings.ServiceEnabled)
	}
	return s, nil
}

// Get returns the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update replaces the settings and persists them.
func (s *SettingsStore) Update(settings Settings) error {
	s.mu.Lock()
	previous := s.settings
	s.settings = settings
	err := saveJSON(s.path, s.settings)
	if err != nil {
		s.settings = previous
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Store().Info("Settings updated", "serviceEnabled", settings.ServiceEnabled, "defaultEntry", settings.DefaultEntry)
	}
	return nil
}
