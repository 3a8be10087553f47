// Package services provides application-level orchestration services
package services

import (
	"fmt"
	"strings"

	"github.com/sessionbridge/sessionbridge-go/internal/domain/entities/session"
	"github.com/sessionbridge/sessionbridge-go/internal/domain/events"
	"github.com/sessionbridge/sessionbridge-go/internal/domain/user"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/messaging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/performance"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/pages"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/persistence/files"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/security"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/sessions"
	"github.com/sessionbridge/sessionbridge-go/pkg/config"
)

// SessionService orchestrates the session lifecycle: registration,
// verification, navigation, liveness, operator-driven redirects, and bans.
type SessionService struct {
	store       *sessions.Store
	hub         *messaging.ClientHub
	broadcaster *messaging.ObserverBroadcaster
	resolver    *pages.Resolver
	bans        *files.BanStore
	aliases     *files.AliasStore
	settings    *files.SettingsStore
	notifier    messaging.NotificationSink
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewSessionService creates a new session lifecycle service.
func NewSessionService(
	store *sessions.Store,
	hub *messaging.ClientHub,
	broadcaster *messaging.ObserverBroadcaster,
	resolver *pages.Resolver,
	bans *files.BanStore,
	aliases *files.AliasStore,
	settings *files.SettingsStore,
	notifier messaging.NotificationSink,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *SessionService {
	return &SessionService{
		store:       store,
		hub:         hub,
		broadcaster: broadcaster,
		resolver:    resolver,
		bans:        bans,
		aliases:     aliases,
		settings:    settings,
		notifier:    notifier,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// RegisterResult is returned to the client entry handler.
type RegisterResult struct {
	SessionID string `json:"sessionId"`
	Created   bool   `json:"created"`
	EntryURL  string `json:"entryUrl"`
}

// Register captures a new visitor, or resumes the session a returning client
// already has. The session ID is derived from the request, never chosen by
// the client.
func (s *SessionService) Register(networkAddress, userAgent, category, contact string) (*RegisterResult, error) {
	marker := s.perfTracker.StartOperation("session:register")
	defer s.perfTracker.CompleteOperation(marker)

	if !s.settings.Get().ServiceEnabled {
		marker.SetSuccess(false)
		return nil, session.NewPolicyError("service is disabled")
	}
	if !s.resolver.HasCategory(category) {
		marker.SetSuccess(false)
		return nil, session.NewPolicyError("unknown category %q", category)
	}

	id := security.DeriveSessionID(category, networkAddress, userAgent)
	sess, created := s.store.Create(id, networkAddress, userAgent, category)
	if contact != "" {
		if err := s.store.SetContact(id, contact); err != nil {
			marker.SetError(err)
			return nil, err
		}
	}

	if sess.NavigationURL == "" {
		if _, err := s.store.SetNavigation(id, s.resolver.EntryPage(category)); err != nil {
			marker.SetError(err)
			return nil, err
		}
	}

	snapshot, ok := s.store.View(id)
	if !ok {
		marker.SetError(session.ErrSessionNotFound)
		return nil, session.ErrSessionNotFound
	}
	if created {
		s.broadcaster.BroadcastSession(events.SessionCreated, snapshot)
		s.notifier.Notify(
			fmt.Sprintf("New session %s", sess.ID),
			fmt.Sprintf("Category %s from %s", sess.Category, sess.NetworkAddress),
		)
		if s.logger != nil {
			s.logger.Session().Info("Session registered", "sessionId", sess.ID, "category", category)
		}
	} else {
		s.broadcaster.BroadcastSession(events.SessionUpdated, snapshot)
		if s.logger != nil {
			s.logger.Session().Debug("Session resumed", "sessionId", sess.ID)
		}
	}

	marker.AddMetadata("created", created)
	return &RegisterResult{
		SessionID: sess.ID,
		Created:   created,
		EntryURL:  snapshot.NavigationURL,
	}, nil
}

// Verify promotes a pending session after it passes the entry step and
// returns the URL of the loading page the client should move to.
func (s *SessionService) Verify(sessionID string) (string, error) {
	marker := s.perfTracker.StartOperation("session:verify")
	defer s.perfTracker.CompleteOperation(marker)

	sess, err := s.store.Promote(sessionID)
	if err != nil {
		marker.SetError(err)
		return "", err
	}
	if _, err = s.store.SetNavigation(sessionID, s.resolver.LoadingPage(sess.Category)); err != nil {
		marker.SetError(err)
		return "", err
	}

	view, ok := s.store.View(sessionID)
	if !ok {
		marker.SetError(session.ErrSessionNotFound)
		return "", session.ErrSessionNotFound
	}
	s.broadcaster.BroadcastSession(events.SessionUpdated, view)
	s.notifier.Notify(
		fmt.Sprintf("Session %s verified", view.ID),
		fmt.Sprintf("Category %s now awaiting direction", view.Category),
	)
	if s.logger != nil {
		s.logger.Session().Info("Session verified", "sessionId", sessionID)
	}
	return view.NavigationURL, nil
}

// Navigate records the page a client reports itself on and clears the
// loading state a redirect may have set.
func (s *SessionService) Navigate(sessionID, page string) error {
	sess, err := s.store.UpdatePage(sessionID, page)
	if err != nil {
		return err
	}
	sess.DisarmLoadingTimer()
	if _, err := s.store.SetLoading(sessionID, false); err != nil {
		return err
	}
	if view, ok := s.store.View(sessionID); ok {
		s.broadcaster.BroadcastSession(events.SessionUpdated, view)
	}
	return nil
}

// Heartbeat records client liveness and clears any disconnect grace timer.
// A heartbeat that revives a session marked disconnected is announced to
// observers, who otherwise keep showing it offline.
func (s *SessionService) Heartbeat(sessionID string) error {
	sess, reconnected, err := s.store.Heartbeat(sessionID)
	if err != nil {
		return err
	}
	sess.DisarmDisconnectTimer()
	if reconnected {
		if view, ok := s.store.View(sessionID); ok {
			s.broadcaster.BroadcastSession(events.SessionUpdated, view)
		}
	}
	return nil
}

// RecordAction merges client-reported annotations into the session's
// metadata and tells observers.
func (s *SessionService) RecordAction(sessionID string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	if _, err := s.store.SetMetadata(sessionID, values); err != nil {
		return err
	}
	if view, ok := s.store.View(sessionID); ok {
		s.broadcaster.BroadcastSession(events.SessionUpdated, view)
	}
	return nil
}

// SetPageLoading flips the client's loading indicator.
func (s *SessionService) SetPageLoading(sessionID string, loading bool) error {
	if _, err := s.store.SetLoading(sessionID, loading); err != nil {
		return err
	}
	if view, ok := s.store.View(sessionID); ok {
		s.broadcaster.BroadcastSession(events.SessionUpdated, view)
	}
	return nil
}

// ClientConnected marks a session's socket as live.
func (s *SessionService) ClientConnected(sessionID string) {
	sess, err := s.store.SetConnected(sessionID, true)
	if err != nil {
		return
	}
	sess.DisarmDisconnectTimer()
	if view, ok := s.store.View(sessionID); ok {
		s.broadcaster.BroadcastSession(events.SessionUpdated, view)
	}
}

// ClientDisconnected marks a session disconnected and arms the grace timer.
// A session that does not reconnect within the grace period is removed.
func (s *SessionService) ClientDisconnected(sessionID string) {
	sess, err := s.store.SetConnected(sessionID, false)
	if err != nil {
		return
	}
	if view, ok := s.store.View(sessionID); ok {
		s.broadcaster.BroadcastSession(events.SessionUpdated, view)
	}

	sess.ArmDisconnectTimer(config.DisconnectGrace, func() {
		if removed, ok := s.store.Delete(sessionID); ok {
			s.broadcaster.BroadcastSession(events.SessionRemoved, removed.Snapshot())
			if s.logger != nil {
				s.logger.Session().Info("Session removed after disconnect grace", "sessionId", sessionID)
			}
		}
	})
}

// Redirect pushes a session to a new page. The page name is resolved against
// the session's category; placeholders are stored on the session so the
// target page can render them. The loading flag stays set until the client
// reports the new page or the loading window expires.
func (s *SessionService) Redirect(sessionID, page string, placeholders map[string]string) error {
	marker := s.perfTracker.StartOperation("session:redirect")
	defer s.perfTracker.CompleteOperation(marker)

	sess, ok := s.store.Get(sessionID)
	if !ok {
		marker.SetError(session.ErrSessionNotFound)
		return session.ErrSessionNotFound
	}

	resolved := s.resolver.Resolve(sess.Category, page)
	if !s.resolver.IsKnown(resolved) {
		err := fmt.Errorf("%w: %s", pages.ErrUnknownPage, page)
		marker.SetError(err)
		return err
	}
	if err := s.store.MergePlaceholders(sessionID, placeholders); err != nil {
		marker.SetError(err)
		return err
	}

	sess, err := s.store.SetNavigation(sessionID, resolved)
	if err != nil {
		marker.SetError(err)
		return err
	}
	if _, err = s.store.SetLoading(sessionID, true); err != nil {
		marker.SetError(err)
		return err
	}

	view, ok := s.store.View(sessionID)
	if !ok {
		marker.SetError(session.ErrSessionNotFound)
		return session.ErrSessionNotFound
	}
	if !s.hub.SendTo(sessionID, events.Redirect, map[string]string{"url": view.NavigationURL}) {
		s.store.SetLoading(sessionID, false)
		err := session.NewPolicyError("session %s has no live connection", sessionID)
		marker.SetError(err)
		return err
	}

	sess.ArmLoadingTimer(config.LoadingTimeout, func() {
		if _, err := s.store.SetLoading(sessionID, false); err != nil {
			return
		}
		if _, err := s.store.SetConnected(sessionID, false); err != nil {
			return
		}
		if stuck, ok := s.store.View(sessionID); ok {
			s.broadcaster.BroadcastSession(events.SessionUpdated, stuck)
			if s.logger != nil {
				s.logger.Session().Warn("Redirect loading window expired", "sessionId", sessionID, "page", resolved)
			}
		}
	})

	s.broadcaster.BroadcastSession(events.SessionUpdated, view)
	if s.logger != nil {
		s.logger.Session().Info("Session redirected", "sessionId", sessionID, "page", resolved)
	}
	marker.AddMetadata("page", resolved)
	return nil
}

// Remove deletes a session and closes its socket.
func (s *SessionService) Remove(sessionID string) error {
	sess, ok := s.store.Delete(sessionID)
	if !ok {
		return session.ErrSessionNotFound
	}
	s.hub.Close(sessionID)
	s.broadcaster.BroadcastSession(events.SessionRemoved, sess.Snapshot())
	return nil
}

// ClearAll removes every session. Live clients are pushed to the exit URL
// before their sockets close.
func (s *SessionService) ClearAll() int {
	exitURL := s.settings.Get().ExitURL
	for _, sess := range s.store.All() {
		s.hub.SendTo(sess.ID, events.Redirect, map[string]string{"url": exitURL})
	}
	removed := s.store.Clear()
	for _, sess := range removed {
		s.hub.Close(sess.ID)
	}
	s.broadcaster.BroadcastGlobal(events.SessionsCleared, map[string]int{"count": len(removed)})
	return len(removed)
}

// Ban bars a network address and tears down every session from it. Live
// clients are pushed to the exit URL before removal.
func (s *SessionService) Ban(networkAddress, reason, addedBy string) (files.BanRecord, error) {
	marker := s.perfTracker.StartOperation("session:ban")
	defer s.perfTracker.CompleteOperation(marker)

	rec, err := s.bans.Add(networkAddress, reason, addedBy)
	if err != nil {
		marker.SetError(err)
		return files.BanRecord{}, err
	}

	exitURL := s.settings.Get().ExitURL
	for _, sess := range s.store.ByNetworkAddress(files.NormalizeAddress(networkAddress)) {
		s.hub.SendTo(sess.ID, events.Redirect, map[string]string{"url": exitURL})
		if removed, ok := s.store.Delete(sess.ID); ok {
			s.hub.Close(sess.ID)
			s.broadcaster.BroadcastSession(events.SessionRemoved, removed.Snapshot())
		}
	}

	s.broadcaster.BroadcastGlobal(events.BanAdded, rec)
	return rec, nil
}

// Unban lifts a ban. Lifting a ban that does not exist is a no-op.
func (s *SessionService) Unban(networkAddress string) error {
	if err := s.bans.Remove(networkAddress); err != nil {
		return err
	}
	s.broadcaster.BroadcastGlobal(events.BanRemoved, map[string]string{
		"networkAddress": files.NormalizeAddress(networkAddress),
	})
	return nil
}

// ValidatePageAccess gates a page request: the challenge must match the
// session's own and the request must come from the client the session was
// derived for.
func (s *SessionService) ValidatePageAccess(sessionID, challenge, networkAddress, userAgent string) error {
	if err := s.store.ValidateURL(sessionID, challenge); err != nil {
		return err
	}
	return s.store.ValidateAccess(sessionID, networkAddress, userAgent)
}

// AuthorizePage gates delivery of one content page. The request URI must be
// a live navigation URL, the caller must be the client the session was
// derived for, and an unverified session may only fetch its entry page. The
// session ID is returned even on rejection so the caller can route the
// client back to the entry step.
func (s *SessionService) AuthorizePage(requestURI, networkAddress, userAgent string) (string, error) {
	sess, ok := s.store.FindByURL(requestURI)
	if !ok {
		return "", session.ErrSessionNotFound
	}
	if err := s.store.ValidateAccess(sess.ID, networkAddress, userAgent); err != nil {
		return sess.ID, err
	}

	view, ok := s.store.View(sess.ID)
	if !ok {
		return sess.ID, session.ErrSessionNotFound
	}
	if !view.Verified && !strings.EqualFold(view.CurrentPage, s.resolver.EntryPage(view.Category)) {
		return sess.ID, session.ErrNotVerified
	}
	return sess.ID, nil
}

// EntryRedirect points a session back at its category entry page and returns
// the URL the client should be sent to.
func (s *SessionService) EntryRedirect(sessionID string) (string, error) {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return "", session.ErrSessionNotFound
	}
	if _, err := s.store.SetNavigation(sessionID, s.resolver.EntryPage(sess.Category)); err != nil {
		return "", err
	}
	view, ok := s.store.View(sessionID)
	if !ok {
		return "", session.ErrSessionNotFound
	}
	return view.NavigationURL, nil
}

// InitPayload is the snapshot pushed to an observer when it connects.
type InitPayload struct {
	Sessions []session.Session `json:"sessions"`
	Aliases  map[string]string `json:"aliases"`
	Bans     []files.BanRecord `json:"bans,omitempty"`
	Settings *files.Settings   `json:"settings,omitempty"`
	Pending  int               `json:"pending"`
	Promoted int               `json:"promoted"`
}

// SnapshotFor assembles the init payload for an observer. The session list
// uses the same visibility filter as live events; bans and settings are only
// included for full-access observers.
func (s *SessionService) SnapshotFor(v user.Visibility) *InitPayload {
	snapshots := s.store.ViewAll()
	pending, promoted := s.store.Counts()

	payload := &InitPayload{
		Sessions: messaging.FilterVisible(v, snapshots),
		Aliases:  s.aliases.All(),
		Pending:  pending,
		Promoted: promoted,
	}
	if v.IsFullAccess() {
		payload.Bans = s.bans.List()
		settings := s.settings.Get()
		payload.Settings = &settings
	}
	return payload
}

// CurrentSettings returns the runtime settings as they stand.
func (s *SessionService) CurrentSettings() files.Settings {
	return s.settings.Get()
}

// UpdateSettings replaces the runtime settings and tells every observer.
// Turning the service off tears down every live session: clients are pushed
// to the exit URL first, then the store is cleared.
func (s *SessionService) UpdateSettings(settings files.Settings) error {
	wasEnabled := s.settings.Get().ServiceEnabled
	if err := s.settings.Update(settings); err != nil {
		return err
	}
	s.broadcaster.BroadcastGlobal(events.SettingsUpdated, settings)

	if wasEnabled && !settings.ServiceEnabled {
		count := s.ClearAll()
		if s.logger != nil {
			s.logger.Session().Info("Service disabled, sessions cleared", "count", count)
		}
	}
	return nil
}
