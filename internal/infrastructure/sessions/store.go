// Package sessions provides the in-memory session store. Pending and promoted
// sessions live in disjoint maps guarded by one lock; a navigation URL index
// lets incoming page requests find their session without scanning.
package sessions

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sessionbridge/sessionbridge-go/internal/domain/entities/session"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/security"
)

// Store holds every live session. A session is pending from contact capture
// until verification, then promoted. The same ID never appears in both maps.
type Store struct {
	pending  map[string]*session.Session
	promoted map[string]*session.Session
	urlIndex map[string]string // navigation URL -> session ID
	mu       sync.RWMutex
	logger   *logging.ChanneledLogger
}

// NewStore creates an empty session store.
func NewStore(logger *logging.ChanneledLogger) *Store {
	if logger != nil {
		logger.Store().Info("Initializing session store")
	}
	return &Store{
		pending:  make(map[string]*session.Session),
		promoted: make(map[string]*session.Session),
		urlIndex: make(map[string]string),
		logger:   logger,
	}
}

// NavigationURL builds the client-facing URL for a page. The challenge binds
// the URL to its session; a stale or foreign challenge is rejected on access.
func NavigationURL(page, sessionID, challenge string) string {
	page = "/" + strings.TrimLeft(page, "/")
	return fmt.Sprintf("/pages%s?client_id=%s&oauth_challenge=%s", page, sessionID, challenge)
}

// Create registers a pending session for the given client, or returns the
// existing record when the same client already has one. Returning clients
// resume their session in either map.
func (s *Store) Create(id, networkAddress, userAgent, category string) (*session.Session, bool) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.promoted[id]; ok {
		existing.Touch()
		if s.logger != nil {
			s.logger.Store().Debug("Store operation", "operation", "create", "sessionId", id, "result", "resumed_promoted", "duration", time.Since(start))
		}
		return existing, false
	}
	if existing, ok := s.pending[id]; ok {
		existing.Touch()
		if s.logger != nil {
			s.logger.Store().Debug("Store operation", "operation", "create", "sessionId", id, "result", "resumed_pending", "duration", time.Since(start))
		}
		return existing, false
	}

	sess := session.New(id, networkAddress, userAgent, category, security.NewChallenge())
	s.pending[id] = sess

	if s.logger != nil {
		s.logger.Store().Debug("Store operation", "operation", "create", "sessionId", id, "category", category, "result", "created", "duration", time.Since(start))
	}
	return sess, true
}

// Get returns a session from either map.
func (s *Store) Get(id string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(id)
}

// View returns a snapshot of one session, taken under the store lock.
// Callers that hand session state to other goroutines use this, never the
// live record.
func (s *Store) View(id string) (session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.lookup(id)
	if !ok {
		return session.Session{}, false
	}
	return sess.Snapshot(), true
}

// ViewAll returns snapshots of every session, promoted first.
func (s *Store) ViewAll() []session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]session.Session, 0, len(s.promoted)+len(s.pending))
	for _, sess := range s.promoted {
		views = append(views, sess.Snapshot())
	}
	for _, sess := range s.pending {
		views = append(views, sess.Snapshot())
	}
	return views
}

func (s *Store) lookup(id string) (*session.Session, bool) {
	if sess, ok := s.promoted[id]; ok {
		return sess, true
	}
	if sess, ok := s.pending[id]; ok {
		return sess, true
	}
	return nil, false
}

// Promote moves a pending session into the promoted map and marks it
// verified. Promoting an already promoted session is a no-op.
func (s *Store) Promote(id string) (*session.Session, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.promoted[id]; ok {
		// Re-verification of a known session reactivates it.
		sess.Connected = true
		sess.Loading = false
		sess.Heartbeat()
		return sess, nil
	}
	sess, ok := s.pending[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	delete(s.pending, id)
	sess.Pending = false
	sess.Verified = true
	sess.Touch()
	s.promoted[id] = sess

	if s.logger != nil {
		s.logger.Store().Info("Session promoted", "sessionId", id, "category", sess.Category, "duration", time.Since(start))
	}
	return sess, nil
}

// SetNavigation records the session's target page and rebuilds its navigation
// URL and the URL index entry.
func (s *Store) SetNavigation(id, page string) (*session.Session, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(id)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	if sess.NavigationURL != "" {
		delete(s.urlIndex, sess.NavigationURL)
	}
	sess.CurrentPage = page
	sess.NavigationURL = NavigationURL(page, sess.ID, sess.Challenge)
	sess.Touch()
	s.urlIndex[sess.NavigationURL] = sess.ID

	if s.logger != nil {
		s.logger.Store().Debug("Store operation", "operation", "set_navigation", "sessionId", id, "page", page, "duration", time.Since(start))
	}
	return sess, nil
}

// UpdatePage records the page a connected client reports without regenerating
// the navigation URL.
func (s *Store) UpdatePage(id, page string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(id)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	sess.CurrentPage = page
	sess.Touch()
	return sess, nil
}

// ValidateURL checks that a presented challenge matches the session's own.
func (s *Store) ValidateURL(id, challenge string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.lookup(id)
	if !ok {
		return session.ErrSessionNotFound
	}
	if challenge == "" || challenge != sess.Challenge {
		if s.logger != nil {
			s.logger.Access().Warn("Challenge validation failed", "sessionId", id)
		}
		return session.ErrChallengeFailed
	}
	return nil
}

// ValidateAccess checks that a request claiming a session really comes from
// the client the session was derived for. The fingerprint is recomputed from
// the live request, never trusted from the caller.
func (s *Store) ValidateAccess(id, networkAddress, userAgent string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.lookup(id)
	if !ok {
		return session.ErrSessionNotFound
	}
	if security.DeriveBaseID(networkAddress, userAgent) != security.BaseID(sess.ID) {
		if s.logger != nil {
			s.logger.Access().Warn("Access fingerprint mismatch", "sessionId", id, "networkAddress", networkAddress)
		}
		return session.ErrAccessMismatch
	}
	return nil
}

// FindByURL resolves a navigation URL back to its session.
func (s *Store) FindByURL(url string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.urlIndex[url]
	if !ok {
		return nil, false
	}
	return s.lookup(id)
}

// Delete removes a session from whichever map holds it, cancels its timers,
// and drops its URL index entry.
func (s *Store) Delete(id string) (*session.Session, bool) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(id)
	if !ok {
		return nil, false
	}
	sess.StopTimers()
	delete(s.pending, id)
	delete(s.promoted, id)
	if sess.NavigationURL != "" {
		delete(s.urlIndex, sess.NavigationURL)
	}

	if s.logger != nil {
		s.logger.Store().Info("Session removed", "sessionId", id, "wasPending", sess.Pending, "duration", time.Since(start))
	}
	return sess, true
}

// Clear removes every session and returns the removed records.
func (s *Store) Clear() []*session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make([]*session.Session, 0, len(s.pending)+len(s.promoted))
	for id, sess := range s.promoted {
		sess.StopTimers()
		removed = append(removed, sess)
		delete(s.promoted, id)
	}
	for id, sess := range s.pending {
		sess.StopTimers()
		removed = append(removed, sess)
		delete(s.pending, id)
	}
	s.urlIndex = make(map[string]string)

	if s.logger != nil {
		s.logger.Store().Info("All sessions cleared", "count", len(removed))
	}
	return removed
}

// Assign sets the operator a session belongs to.
func (s *Store) Assign(id, operatorID string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(id)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	sess.AssignedOperator = operatorID
	sess.Touch()
	return sess, nil
}

// Unassign clears a session's operator assignment.
func (s *Store) Unassign(id string) (*session.Session, error) {
	return s.Assign(id, "")
}

// ClearAssignmentsFor removes every assignment pointing at an operator and
// returns snapshots of the affected sessions.
func (s *Store) ClearAssignmentsFor(operatorID string) []session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected []session.Session
	for _, sess := range s.promoted {
		if sess.AssignedOperator == operatorID {
			sess.AssignedOperator = ""
			affected = append(affected, sess.Snapshot())
		}
	}
	for _, sess := range s.pending {
		if sess.AssignedOperator == operatorID {
			sess.AssignedOperator = ""
			affected = append(affected, sess.Snapshot())
		}
	}
	return affected
}

// SetConnected flips a session's connection flag.
func (s *Store) SetConnected(id string, connected bool) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(id)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	sess.Connected = connected
	sess.Touch()
	return sess, nil
}

// SetLoading flips a session's loading flag.
func (s *Store) SetLoading(id string, loading bool) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(id)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	sess.Loading = loading
	sess.Touch()
	return sess, nil
}

// SetContact records the contact detail captured at registration.
func (s *Store) SetContact(id, contact string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(id)
	if !ok {
		return session.ErrSessionNotFound
	}
	sess.Contact = contact
	return nil
}

// MergePlaceholders adds operator-supplied render values to a session.
func (s *Store) MergePlaceholders(id string, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(id)
	if !ok {
		return session.ErrSessionNotFound
	}
	for k, v := range values {
		sess.Placeholders[k] = v
	}
	return nil
}

// Touch refreshes a session's last-accessed time.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.lookup(id); ok {
		sess.Touch()
	}
}

// SetMetadata merges client-reported key-value annotations into a session.
func (s *Store) SetMetadata(id string, values map[string]string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(id)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	for k, v := range values {
		sess.Metadata[k] = v
	}
	sess.Touch()
	return sess, nil
}

// Heartbeat records liveness for a session. A heartbeat from a session that
// was marked disconnected flips it back to connected; the second return
// reports that transition so the caller can announce it.
func (s *Store) Heartbeat(id string) (*session.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(id)
	if !ok {
		return nil, false, session.ErrSessionNotFound
	}
	reconnected := !sess.Connected
	sess.Connected = true
	sess.Heartbeat()
	return sess, reconnected, nil
}

// MarkStaleDisconnected flags sessions whose last heartbeat is older than
// timeout as disconnected. It returns snapshots of the sessions whose flag
// flipped.
func (s *Store) MarkStaleDisconnected(timeout time.Duration) []session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	var flipped []session.Session
	for _, sess := range s.promoted {
		if sess.Connected && sess.LastHeartbeat.Before(cutoff) {
			sess.Connected = false
			flipped = append(flipped, sess.Snapshot())
		}
	}
	for _, sess := range s.pending {
		if sess.Connected && sess.LastHeartbeat.Before(cutoff) {
			sess.Connected = false
			flipped = append(flipped, sess.Snapshot())
		}
	}
	return flipped
}

// Sweep deletes promoted sessions idle longer than promotedMaxAge and pending
// sessions idle longer than pendingMaxAge. It returns the removed sessions.
func (s *Store) Sweep(promotedMaxAge, pendingMaxAge time.Duration) []*session.Session {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var removed []*session.Session
	for id, sess := range s.promoted {
		if now.Sub(sess.LastAccessed) > promotedMaxAge {
			sess.StopTimers()
			delete(s.promoted, id)
			if sess.NavigationURL != "" {
				delete(s.urlIndex, sess.NavigationURL)
			}
			removed = append(removed, sess)
		}
	}
	for id, sess := range s.pending {
		if now.Sub(sess.LastAccessed) > pendingMaxAge {
			sess.StopTimers()
			delete(s.pending, id)
			if sess.NavigationURL != "" {
				delete(s.urlIndex, sess.NavigationURL)
			}
			removed = append(removed, sess)
		}
	}

	if s.logger != nil && len(removed) > 0 {
		s.logger.Sweep().Info("Expired sessions removed", "count", len(removed), "duration", time.Since(start))
	}
	return removed
}

// ByNetworkAddress returns every session originating from an address.
func (s *Store) ByNetworkAddress(networkAddress string) []*session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*session.Session
	for _, sess := range s.promoted {
		if sess.NetworkAddress == networkAddress {
			matched = append(matched, sess)
		}
	}
	for _, sess := range s.pending {
		if sess.NetworkAddress == networkAddress {
			matched = append(matched, sess)
		}
	}
	return matched
}

// All returns every session, promoted first.
func (s *Store) All() []*session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*session.Session, 0, len(s.promoted)+len(s.pending))
	for _, sess := range s.promoted {
		all = append(all, sess)
	}
	for _, sess := range s.pending {
		all = append(all, sess)
	}
	return all
}

// AssignedTo returns every session assigned to an operator.
func (s *Store) AssignedTo(operatorID string) []*session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*session.Session
	for _, sess := range s.promoted {
		if sess.AssignedOperator == operatorID {
			matched = append(matched, sess)
		}
	}
	for _, sess := range s.pending {
		if sess.AssignedOperator == operatorID {
			matched = append(matched, sess)
		}
	}
	return matched
}

// Counts reports the pending and promoted totals.
func (s *Store) Counts() (pending, promoted int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending), len(s.promoted)
}
