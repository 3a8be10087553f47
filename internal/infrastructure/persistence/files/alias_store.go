package files

import (
	"path/filepath"
	"sync"

	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
)

// AliasStore persists the display label for each session. A session with no
// explicit alias falls back to a prefix of its ID.
type AliasStore struct {
	path    string
	aliases map[string]string // session ID -> alias
	mu      sync.RWMutex
	logger  *logging.ChanneledLogger
}

// NewAliasStore loads the alias file under dataDir.
func NewAliasStore(dataDir string, logger *logging.ChanneledLogger) (*AliasStore, error) {
	s := &AliasStore{
		path:    filepath.Join(dataDir, "aliases.json"),
		aliases: make(map[string]string),
		logger:  logger,
	}
	if _, err := loadJSON(s.path, &s.aliases); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Store().Info("Alias store loaded", "path", s.path, "count", len(s.aliases))
	}
	return s, nil
}

// Set stores an alias for a session. An empty alias removes the entry so the
// fallback applies again.
func (s *AliasStore) Set(sessionID, alias string) error {
	s.mu.Lock()
	previous, had := s.aliases[sessionID]
	if alias == "" {
		delete(s.aliases, sessionID)
	} else {
		s.aliases[sessionID] = alias
	}
	err := s.persistLocked()
	if err != nil {
		if had {
			s.aliases[sessionID] = previous
		} else {
			delete(s.aliases, sessionID)
		}
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Store().Info("Alias updated", "sessionId", sessionID, "alias", alias)
	}
	return nil
}

// Get returns the explicit alias for a session, if one is set.
func (s *AliasStore) Get(sessionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alias, ok := s.aliases[sessionID]
	return alias, ok
}

// AliasFor returns the display label for a session, falling back to the
// first eight characters of the ID.
func (s *AliasStore) AliasFor(sessionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if alias, ok := s.aliases[sessionID]; ok && alias != "" {
		return alias
	}
	if len(sessionID) > 8 {
		return sessionID[:8]
	}
	return sessionID
}

// All returns a copy of every alias entry.
func (s *AliasStore) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.aliases))
	for k, v := range s.aliases {
		out[k] = v
	}
	return out
}

func (s *AliasStore) persistLocked() error {
	return saveJSON(s.path, s.aliases)
}
