package files

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/sessionbridge/sessionbridge-go/internal/domain/user"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/security"
)

var (
	// ErrOperatorExists is returned when a username is already taken.
	ErrOperatorExists = errors.New("operator already exists")
	// ErrOperatorNotFound is returned when no operator matches.
	ErrOperatorNotFound = errors.New("operator not found")
)

// OperatorStore persists observer accounts with bcrypt credential hashes.
type OperatorStore struct {
	path      string
	operators map[string]*user.Operator // keyed by ID
	mu        sync.RWMutex
	logger    *logging.ChanneledLogger
}

type persistedOperator struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	CredentialHash string    `json:"credentialHash"`
	CreatedAt      time.Time `json:"createdAt"`
	LastLogin      time.Time `json:"lastLogin,omitempty"`
}

// NewOperatorStore loads the operator file under dataDir.
func NewOperatorStore(dataDir string, logger *logging.ChanneledLogger) (*OperatorStore, error) {
	s := &OperatorStore{
		path:      filepath.Join(dataDir, "operators.json"),
		operators: make(map[string]*user.Operator),
		logger:    logger,
	}
	var persisted []persistedOperator
	loaded, err := loadJSON(s.path, &persisted)
	if err != nil {
		return nil, err
	}
	if loaded {
		for _, p := range persisted {
			s.operators[p.ID] = &user.Operator{
				ID:             p.ID,
				Username:       p.Username,
				CredentialHash: p.CredentialHash,
				CreatedAt:      p.CreatedAt,
				LastLogin:      p.LastLogin,
			}
		}
	}
	if logger != nil {
		logger.Store().Info("Operator store loaded", "path", s.path, "count", len(s.operators))
	}
	return s, nil
}

// Add creates an operator with a fresh ID and hashed credential.
func (s *OperatorStore) Add(username, credential string) (*user.Operator, error) {
	hash, err := security.HashCredential(credential)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range s.operators {
		if op.Username == username {
			return nil, ErrOperatorExists
		}
	}

	op := &user.Operator{
		ID:             security.GenerateULID(),
		Username:       username,
		CredentialHash: hash,
		CreatedAt:      time.Now().UTC(),
	}
	s.operators[op.ID] = op
	if err := s.persistLocked(); err != nil {
		delete(s.operators, op.ID)
		return nil, err
	}

	if s.logger != nil {
		s.logger.Store().Info("Operator added", "operatorId", op.ID, "username", username)
	}
	return op, nil
}

// UpdateCredential replaces an operator's credential hash.
func (s *OperatorStore) UpdateCredential(id, credential string) (*user.Operator, error) {
	hash, err := security.HashCredential(credential)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.operators[id]
	if !ok {
		return nil, ErrOperatorNotFound
	}
	previous := op.CredentialHash
	op.CredentialHash = hash
	if err := s.persistLocked(); err != nil {
		op.CredentialHash = previous
		return nil, err
	}

	if s.logger != nil {
		s.logger.Store().Info("Operator credential updated", "operatorId", id)
	}
	return op, nil
}

// Delete removes an operator account.
func (s *OperatorStore) Delete(id string) (*user.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.operators[id]
	if !ok {
		return nil, ErrOperatorNotFound
	}
	delete(s.operators, id)
	if err := s.persistLocked(); err != nil {
		s.operators[id] = op
		return nil, err
	}

	if s.logger != nil {
		s.logger.Store().Info("Operator deleted", "operatorId", id, "username", op.Username)
	}
	return op, nil
}

// Authenticate verifies a username and credential pair and records the login
// time on success.
func (s *OperatorStore) Authenticate(username, credential string) (*user.Operator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range s.operators {
		if op.Username != username {
			continue
		}
		if !security.VerifyCredential(op.CredentialHash, credential) {
			return nil, false
		}
		op.LastLogin = time.Now().UTC()
		if err := s.persistLocked(); err != nil && s.logger != nil {
			s.logger.Store().Error("Failed to persist login time", "operatorId", op.ID, "error", err)
		}
		return op, true
	}
	return nil, false
}

// GetByID returns an operator by ID.
func (s *OperatorStore) GetByID(id string) (*user.Operator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.operators[id]
	return op, ok
}

// GetByUsername returns an operator by username.
func (s *OperatorStore) GetByUsername(username string) (*user.Operator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, op := range s.operators {
		if op.Username == username {
			return op, true
		}
	}
	return nil, false
}

// List returns every operator account.
func (s *OperatorStore) List() []*user.Operator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*user.Operator, 0, len(s.operators))
	for _, op := range s.operators {
		out = append(out, op)
	}
	return out
}

func (s *OperatorStore) persistLocked() error {
	persisted := make([]persistedOperator, 0, len(s.operators))
	for _, op := range s.operators {
		persisted = append(persisted, persistedOperator{
			ID:             op.ID,
			Username:       op.Username,
			CredentialHash: op.CredentialHash,
			CreatedAt:      op.CreatedAt,
			LastLogin:      op.LastLogin,
		})
	}
	return saveJSON(s.path, persisted)
}
