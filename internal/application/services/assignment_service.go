package services

import (
	"github.com/sessionbridge/sessionbridge-go/internal/domain/entities/session"
	"github.com/sessionbridge/sessionbridge-go/internal/domain/events"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/messaging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/persistence/files"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/sessions"
)

// AssignmentService manages which operator a session belongs to and the
// labels sessions are displayed under.
type AssignmentService struct {
	store       *sessions.Store
	aliases     *files.AliasStore
	broadcaster *messaging.ObserverBroadcaster
	logger      *logging.ChanneledLogger
}

// NewAssignmentService creates a new assignment service.
func NewAssignmentService(store *sessions.Store, aliases *files.AliasStore, broadcaster *messaging.ObserverBroadcaster, logger *logging.ChanneledLogger) *AssignmentService {
	return &AssignmentService{
		store:       store,
		aliases:     aliases,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Assign hands a session to an operator. The session must carry an explicit
// alias before it can be taken; without one the request is rejected and
// nothing changes.
func (a *AssignmentService) Assign(sessionID, operatorID string) error {
	if _, ok := a.aliases.Get(sessionID); !ok {
		if a.logger != nil {
			a.logger.Session().Warn("Assignment rejected, session has no alias", "sessionId", sessionID, "operatorId", operatorID)
		}
		return session.NewPolicyError("session %s has no alias set", sessionID)
	}

	current, ok := a.store.Get(sessionID)
	if !ok {
		return session.ErrSessionNotFound
	}
	previous := current.AssignedOperator

	if _, err := a.store.Assign(sessionID, operatorID); err != nil {
		return err
	}
	snapshot, ok := a.store.View(sessionID)
	if !ok {
		return session.ErrSessionNotFound
	}
	a.broadcaster.BroadcastSession(events.SessionUpdated, snapshot)
	if previous != "" && previous != operatorID {
		a.notifyFormerOwner(previous, snapshot)
	}
	if a.logger != nil {
		a.logger.Session().Info("Session assigned", "sessionId", sessionID, "operatorId", operatorID)
	}
	return nil
}

// Unassign releases a session back to the unassigned pool.
func (a *AssignmentService) Unassign(sessionID string) error {
	sess, ok := a.store.Get(sessionID)
	if !ok {
		return session.ErrSessionNotFound
	}
	previous := sess.AssignedOperator

	if _, err := a.store.Unassign(sessionID); err != nil {
		return err
	}

	// The operator losing the session would not receive the update through
	// the visibility filter anymore, so tell it the session went away.
	snapshot, ok := a.store.View(sessionID)
	if !ok {
		return session.ErrSessionNotFound
	}
	a.broadcaster.BroadcastSession(events.SessionUpdated, snapshot)
	if previous != "" {
		a.notifyFormerOwner(previous, snapshot)
	}
	return nil
}

// ClearAssignments releases every session held by an operator. The sessions
// themselves stay in the store.
func (a *AssignmentService) ClearAssignments(operatorID string) int {
	affected := a.store.ClearAssignmentsFor(operatorID)
	for _, snapshot := range affected {
		a.broadcaster.BroadcastSession(events.SessionUpdated, snapshot)
		a.notifyFormerOwner(operatorID, snapshot)
	}
	a.broadcaster.BroadcastGlobal(events.AssignmentsCleared, map[string]any{
		"operatorId": operatorID,
		"count":      len(affected),
	})
	return len(affected)
}

// SetAlias stores the display label for a session and tells observers.
func (a *AssignmentService) SetAlias(sessionID, alias string) error {
	if err := a.aliases.Set(sessionID, alias); err != nil {
		return err
	}
	a.broadcaster.BroadcastGlobal(events.AliasUpdated, map[string]string{
		"sessionId": sessionID,
		"alias":     a.aliases.AliasFor(sessionID),
	})
	return nil
}

// notifyFormerOwner sends a removal notice to the operator that just lost a
// session, since the visibility filter now hides the update from it. Full
// access observers already received the regular update.
func (a *AssignmentService) notifyFormerOwner(operatorID string, snapshot session.Session) {
	a.broadcaster.BroadcastToOperator(operatorID, events.SessionRemoved, snapshot)
}
