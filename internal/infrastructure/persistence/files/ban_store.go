package files

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
)

// BanRecord is one barred network address.
type BanRecord struct {
	NetworkAddress string    `json:"networkAddress"`
	Reason         string    `json:"reason,omitempty"`
	AddedBy        string    `json:"addedBy,omitempty"`
	AddedAt        time.Time `json:"addedAt"`
}

// BanStore persists barred network addresses. Addresses are normalized before
// storage so the IPv4-in-IPv6 form of an address matches its plain form.
type BanStore struct {
	path    string
	records map[string]BanRecord
	mu      sync.RWMutex
	logger  *logging.ChanneledLogger
}

// NewBanStore loads the ban file under dataDir, creating an empty store when
// the file does not exist yet.
func NewBanStore(dataDir string, logger *logging.ChanneledLogger) (*BanStore, error) {
	s := &BanStore{
		path:    filepath.Join(dataDir, "bans.json"),
		records: make(map[string]BanRecord),
		logger:  logger,
	}
	var persisted []BanRecord
	loaded, err := loadJSON(s.path, &persisted)
	if err != nil {
		return nil, err
	}
	if loaded {
		for _, rec := range persisted {
			s.records[NormalizeAddress(rec.NetworkAddress)] = rec
		}
	}
	if logger != nil {
		logger.Store().Info("Ban store loaded", "path", s.path, "count", len(s.records))
	}
	return s, nil
}

// NormalizeAddress strips the IPv4-in-IPv6 prefix so both forms of the same
// address compare equal.
func NormalizeAddress(addr string) string {
	return strings.TrimPrefix(strings.TrimSpace(addr), "::ffff:")
}

// IsBanned reports whether an address is barred.
func (s *BanStore) IsBanned(networkAddress string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[NormalizeAddress(networkAddress)]
	return ok
}

// Add bars an address. Re-banning an already barred address refreshes the
// record. Returns the stored record.
func (s *BanStore) Add(networkAddress, reason, addedBy string) (BanRecord, error) {
	normalized := NormalizeAddress(networkAddress)
	rec := BanRecord{
		NetworkAddress: normalized,
		Reason:         reason,
		AddedBy:        addedBy,
		AddedAt:        time.Now().UTC(),
	}

	s.mu.Lock()
	s.records[normalized] = rec
	err := s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		return BanRecord{}, err
	}

	if s.logger != nil {
		s.logger.Store().Info("Address banned", "networkAddress", normalized, "addedBy", addedBy)
	}
	return rec, nil
}

// Remove lifts a ban. Removing an address that is not banned is a no-op.
func (s *BanStore) Remove(networkAddress string) error {
	normalized := NormalizeAddress(networkAddress)

	s.mu.Lock()
	_, existed := s.records[normalized]
	if existed {
		delete(s.records, normalized)
	}
	var err error
	if existed {
		err = s.persistLocked()
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if existed && s.logger != nil {
		s.logger.Store().Info("Address unbanned", "networkAddress", normalized)
	}
	return nil
}

// List returns every ban record.
func (s *BanStore) List() []BanRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]BanRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}

func (s *BanStore) persistLocked() error {
	persisted := make([]BanRecord, 0, len(s.records))
	for _, rec := range s.records {
		persisted = append(persisted, rec)
	}
	return saveJSON(s.path, persisted)
}
