// Package session provides the domain entities for tracked client sessions.
// It defines the session record itself plus the lifecycle timers that govern
// disconnect grace periods and redirect loading windows.
package session

import (
	"sync"
	"time"
)

// Session represents a single tracked client. A session starts out pending
// (contact captured, not yet verified) and is promoted once the client passes
// verification. The ID is stable for a given network address and user agent,
// so a returning client resumes its previous record.
type Session struct {
	ID             string `json:"id"`
	NetworkAddress string `json:"networkAddress"`
	UserAgent      string `json:"userAgent"`
	Category       string `json:"category"`
	Challenge      string `json:"-"` // Never serialize the access challenge

	Pending  bool `json:"pending"`
	Verified bool `json:"verified"`

	Connected bool `json:"connected"`
	Loading   bool `json:"loading"`

	CurrentPage   string `json:"currentPage"`
	NavigationURL string `json:"navigationUrl"`

	AssignedOperator string `json:"assignedOperator,omitempty"`

	Contact      string            `json:"contact,omitempty"`
	Placeholders map[string]string `json:"placeholders,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`

	CreatedAt     time.Time `json:"createdAt"`
	LastAccessed  time.Time `json:"lastAccessed"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`

	timerMu         sync.Mutex
	disconnectTimer *time.Timer
	loadingTimer    *time.Timer
}

// New creates a pending session for the given derived identifier.
func New(id, networkAddress, userAgent, category, challenge string) *Session {
	now := time.Now()
	return &Session{
		ID:             id,
		NetworkAddress: networkAddress,
		UserAgent:      userAgent,
		Category:       category,
		Challenge:      challenge,
		Pending:        true,
		Placeholders:   make(map[string]string),
		Metadata:       make(map[string]string),
		CreatedAt:      now,
		LastAccessed:   now,
		LastHeartbeat:  now,
	}
}

// Touch updates the access time.
func (s *Session) Touch() {
	s.LastAccessed = time.Now()
}

// Heartbeat records a liveness signal and marks the session connected.
func (s *Session) Heartbeat() {
	now := time.Now()
	s.LastHeartbeat = now
	s.LastAccessed = now
	s.Connected = true
}

// ArmDisconnectTimer schedules fn after the grace period unless the timer is
// disarmed first. Any previously armed disconnect timer is replaced.
func (s *Session) ArmDisconnectTimer(grace time.Duration, fn func()) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.disconnectTimer != nil {
		s.disconnectTimer.Stop()
	}
	s.disconnectTimer = time.AfterFunc(grace, fn)
}

// DisarmDisconnectTimer cancels a pending disconnect expiry, if any.
func (s *Session) DisarmDisconnectTimer() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.disconnectTimer != nil {
		s.disconnectTimer.Stop()
		s.disconnectTimer = nil
	}
}

// ArmLoadingTimer schedules fn after the loading window unless the timer is
// disarmed first. Any previously armed loading timer is replaced.
func (s *Session) ArmLoadingTimer(window time.Duration, fn func()) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.loadingTimer != nil {
		s.loadingTimer.Stop()
	}
	s.loadingTimer = time.AfterFunc(window, fn)
}

// DisarmLoadingTimer cancels a pending loading expiry, if any.
func (s *Session) DisarmLoadingTimer() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.loadingTimer != nil {
		s.loadingTimer.Stop()
		s.loadingTimer = nil
	}
}

// StopTimers cancels every lifecycle timer. Called when a session is removed
// so no callback fires for a record that no longer exists.
func (s *Session) StopTimers() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.disconnectTimer != nil {
		s.disconnectTimer.Stop()
		s.disconnectTimer = nil
	}
	if s.loadingTimer != nil {
		s.loadingTimer.Stop()
		s.loadingTimer = nil
	}
}

// Snapshot returns a copy safe to hand to encoders and broadcasters.
// Timer handles are not carried over.
func (s *Session) Snapshot() Session {
	copied := Session{
		ID:               s.ID,
		NetworkAddress:   s.NetworkAddress,
		UserAgent:        s.UserAgent,
		Category:         s.Category,
		Challenge:        s.Challenge,
		Pending:          s.Pending,
		Verified:         s.Verified,
		Connected:        s.Connected,
		Loading:          s.Loading,
		CurrentPage:      s.CurrentPage,
		NavigationURL:    s.NavigationURL,
		AssignedOperator: s.AssignedOperator,
		Contact:          s.Contact,
		CreatedAt:        s.CreatedAt,
		LastAccessed:     s.LastAccessed,
		LastHeartbeat:    s.LastHeartbeat,
	}
	if len(s.Placeholders) > 0 {
		copied.Placeholders = make(map[string]string, len(s.Placeholders))
		for k, v := range s.Placeholders {
			copied.Placeholders[k] = v
		}
	}
	if len(s.Metadata) > 0 {
		copied.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			copied.Metadata[k] = v
		}
	}
	return copied
}
