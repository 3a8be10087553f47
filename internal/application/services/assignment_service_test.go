package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionbridge/sessionbridge-go/internal/domain/entities/session"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/messaging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/persistence/files"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/security"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/sessions"
)

func newAssignmentFixture(t *testing.T) (*AssignmentService, *sessions.Store, *files.AliasStore) {
	t.Helper()
	store := sessions.NewStore(nil)
	aliases, err := files.NewAliasStore(t.TempDir(), nil)
	require.NoError(t, err)
	broadcaster := messaging.NewObserverBroadcaster(nil)
	return NewAssignmentService(store, aliases, broadcaster, nil), store, aliases
}

func seedSession(t *testing.T, store *sessions.Store) *session.Session {
	t.Helper()
	id := security.DeriveSessionID("alpha", "203.0.113.7", "Mozilla/5.0")
	sess, created := store.Create(id, "203.0.113.7", "Mozilla/5.0", "alpha")
	require.True(t, created)
	return sess
}

func TestAssignRequiresSessionAlias(t *testing.T) {
	svc, store, _ := newAssignmentFixture(t)
	sess := seedSession(t, store)

	err := svc.Assign(sess.ID, "op-1")
	require.Error(t, err)
	assert.True(t, session.IsPolicyError(err))

	// A rejected assignment must not mutate the session.
	current, ok := store.Get(sess.ID)
	require.True(t, ok)
	assert.Empty(t, current.AssignedOperator)
}

func TestAssignAfterAliasSet(t *testing.T) {
	svc, store, aliases := newAssignmentFixture(t)
	sess := seedSession(t, store)
	require.NoError(t, aliases.Set(sess.ID, "Apollo"))

	require.NoError(t, svc.Assign(sess.ID, "op-1"))

	current, ok := store.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, "op-1", current.AssignedOperator)
}

func TestAssignUnknownSession(t *testing.T) {
	svc, _, aliases := newAssignmentFixture(t)
	require.NoError(t, aliases.Set("ALPHA-deadbeef", "Apollo"))

	err := svc.Assign("ALPHA-deadbeef", "op-1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestUnassignAndClear(t *testing.T) {
	svc, store, aliases := newAssignmentFixture(t)
	first := seedSession(t, store)
	secondID := security.DeriveSessionID("alpha", "203.0.113.8", "Mozilla/5.0")
	_, created := store.Create(secondID, "203.0.113.8", "Mozilla/5.0", "alpha")
	require.True(t, created)
	require.NoError(t, aliases.Set(first.ID, "Apollo"))
	require.NoError(t, aliases.Set(secondID, "Artemis"))

	require.NoError(t, svc.Assign(first.ID, "op-1"))
	require.NoError(t, svc.Assign(secondID, "op-1"))

	require.NoError(t, svc.Unassign(first.ID))
	current, _ := store.Get(first.ID)
	assert.Empty(t, current.AssignedOperator)

	cleared := svc.ClearAssignments("op-1")
	assert.Equal(t, 1, cleared)
	assert.Empty(t, store.AssignedTo("op-1"))

	// Clearing releases ownership only; the sessions themselves survive.
	_, ok := store.Get(first.ID)
	assert.True(t, ok)
	_, ok = store.Get(secondID)
	assert.True(t, ok)
}
