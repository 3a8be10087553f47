package sessions

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionbridge/sessionbridge-go/internal/domain/entities/session"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/security"
)

func newSession(t *testing.T, s *Store, category, addr, ua string) *session.Session {
	t.Helper()
	id := security.DeriveSessionID(category, addr, ua)
	sess, created := s.Create(id, addr, ua, category)
	require.True(t, created)
	return sess
}

func TestCreateAndResume(t *testing.T) {
	s := NewStore(nil)
	sess := newSession(t, s, "alpha", "203.0.113.7", "Mozilla/5.0")
	assert.True(t, sess.Pending)
	assert.NotEmpty(t, sess.Challenge)

	again, created := s.Create(sess.ID, "203.0.113.7", "Mozilla/5.0", "alpha")
	assert.False(t, created, "same client must resume, not create")
	assert.Same(t, sess, again)
}

func TestChallengeStableAcrossResumeAndPromotion(t *testing.T) {
	s := NewStore(nil)
	sess := newSession(t, s, "alpha", "203.0.113.7", "Mozilla/5.0")
	challenge := sess.Challenge

	promoted, err := s.Promote(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge, promoted.Challenge)

	resumed, _ := s.Create(sess.ID, "203.0.113.7", "Mozilla/5.0", "alpha")
	assert.Equal(t, challenge, resumed.Challenge)
}

func TestPromoteMovesBetweenMaps(t *testing.T) {
	s := NewStore(nil)
	sess := newSession(t, s, "alpha", "203.0.113.7", "Mozilla/5.0")

	promoted, err := s.Promote(sess.ID)
	require.NoError(t, err)
	assert.False(t, promoted.Pending)
	assert.True(t, promoted.Verified)

	pending, verified := s.Counts()
	assert.Equal(t, 0, pending)
	assert.Equal(t, 1, verified)

	// Promoting twice is a no-op.
	again, err := s.Promote(sess.ID)
	require.NoError(t, err)
	assert.Same(t, promoted, again)
}

func TestPromoteUnknownSession(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Promote("ALPHA-deadbeef")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestNavigationURLShape(t *testing.T) {
	s := NewStore(nil)
	sess := newSession(t, s, "alpha", "203.0.113.7", "Mozilla/5.0")

	updated, err := s.SetNavigation(sess.ID, "alphaloading.html")
	require.NoError(t, err)

	expected := fmt.Sprintf("/pages/alphaloading.html?client_id=%s&oauth_challenge=%s", sess.ID, sess.Challenge)
	assert.Equal(t, expected, updated.NavigationURL)

	// A leading slash on the page name must not double up.
	updated, err = s.SetNavigation(sess.ID, "/alphadone.html")
	require.NoError(t, err)
	assert.Equal(t,
		fmt.Sprintf("/pages/alphadone.html?client_id=%s&oauth_challenge=%s", sess.ID, sess.Challenge),
		updated.NavigationURL)
}

func TestURLIndexFollowsNavigation(t *testing.T) {
	s := NewStore(nil)
	sess := newSession(t, s, "alpha", "203.0.113.7", "Mozilla/5.0")

	first, err := s.SetNavigation(sess.ID, "alphaverify.html")
	require.NoError(t, err)
	found, ok := s.FindByURL(first.NavigationURL)
	require.True(t, ok)
	assert.Equal(t, sess.ID, found.ID)

	oldURL := first.NavigationURL
	second, err := s.SetNavigation(sess.ID, "alphadone.html")
	require.NoError(t, err)

	_, ok = s.FindByURL(oldURL)
	assert.False(t, ok, "stale URL must leave the index")
	found, ok = s.FindByURL(second.NavigationURL)
	require.True(t, ok)
	assert.Equal(t, sess.ID, found.ID)
}

func TestValidateURL(t *testing.T) {
	s := NewStore(nil)
	sess := newSession(t, s, "alpha", "203.0.113.7", "Mozilla/5.0")

	assert.NoError(t, s.ValidateURL(sess.ID, sess.Challenge))
	assert.ErrorIs(t, s.ValidateURL(sess.ID, "forged"), session.ErrChallengeFailed)
	assert.ErrorIs(t, s.ValidateURL(sess.ID, ""), session.ErrChallengeFailed)
	assert.ErrorIs(t, s.ValidateURL("ALPHA-deadbeef", sess.Challenge), session.ErrSessionNotFound)
}

func TestValidateAccess(t *testing.T) {
	s := NewStore(nil)
	sess := newSession(t, s, "alpha", "203.0.113.7", "Mozilla/5.0")

	assert.NoError(t, s.ValidateAccess(sess.ID, "203.0.113.7", "Mozilla/5.0"))
	assert.ErrorIs(t, s.ValidateAccess(sess.ID, "203.0.113.8", "Mozilla/5.0"), session.ErrAccessMismatch)
	assert.ErrorIs(t, s.ValidateAccess(sess.ID, "203.0.113.7", "curl/8.0"), session.ErrAccessMismatch)
}

func TestDeleteCancelsTimers(t *testing.T) {
	s := NewStore(nil)
	sess := newSession(t, s, "alpha", "203.0.113.7", "Mozilla/5.0")

	fired := make(chan struct{}, 1)
	sess.ArmDisconnectTimer(20*time.Millisecond, func() { fired <- struct{}{} })

	removed, ok := s.Delete(sess.ID)
	require.True(t, ok)
	assert.Equal(t, sess.ID, removed.ID)

	select {
	case <-fired:
		t.Fatal("timer fired for a deleted session")
	case <-time.After(60 * time.Millisecond):
	}

	_, ok = s.Get(sess.ID)
	assert.False(t, ok)
}

func TestSweepAgePolicy(t *testing.T) {
	s := NewStore(nil)

	stalePending := newSession(t, s, "alpha", "203.0.113.1", "ua")
	stalePromoted := newSession(t, s, "alpha", "203.0.113.2", "ua")
	fresh := newSession(t, s, "alpha", "203.0.113.3", "ua")
	_, err := s.Promote(stalePromoted.ID)
	require.NoError(t, err)

	stalePending.LastAccessed = time.Now().Add(-10 * time.Minute)
	stalePromoted.LastAccessed = time.Now().Add(-time.Hour)

	removed := s.Sweep(30*time.Minute, 5*time.Minute)
	require.Len(t, removed, 2)

	_, ok := s.Get(fresh.ID)
	assert.True(t, ok, "fresh session must survive the sweep")
	_, ok = s.Get(stalePending.ID)
	assert.False(t, ok)
	_, ok = s.Get(stalePromoted.ID)
	assert.False(t, ok)
}

func TestSweepKeepsPromotedUnderLimit(t *testing.T) {
	s := NewStore(nil)
	sess := newSession(t, s, "alpha", "203.0.113.1", "ua")
	_, err := s.Promote(sess.ID)
	require.NoError(t, err)

	// Past the pending limit but inside the promoted limit.
	sess.LastAccessed = time.Now().Add(-10 * time.Minute)
	removed := s.Sweep(30*time.Minute, 5*time.Minute)
	assert.Empty(t, removed)
}

func TestMarkStaleDisconnected(t *testing.T) {
	s := NewStore(nil)
	quiet := newSession(t, s, "alpha", "203.0.113.1", "ua")
	active := newSession(t, s, "alpha", "203.0.113.2", "ua")

	quiet.Connected = true
	quiet.LastHeartbeat = time.Now().Add(-time.Minute)
	active.Connected = true
	active.LastHeartbeat = time.Now()

	flipped := s.MarkStaleDisconnected(30 * time.Second)
	require.Len(t, flipped, 1)
	assert.Equal(t, quiet.ID, flipped[0].ID)
	assert.False(t, quiet.Connected)
	assert.True(t, active.Connected)
}

func TestAssignmentLifecycle(t *testing.T) {
	s := NewStore(nil)
	a := newSession(t, s, "alpha", "203.0.113.1", "ua")
	b := newSession(t, s, "alpha", "203.0.113.2", "ua")

	_, err := s.Assign(a.ID, "op-1")
	require.NoError(t, err)
	_, err = s.Assign(b.ID, "op-1")
	require.NoError(t, err)

	assert.Len(t, s.AssignedTo("op-1"), 2)

	_, err = s.Unassign(a.ID)
	require.NoError(t, err)
	assert.Len(t, s.AssignedTo("op-1"), 1)

	affected := s.ClearAssignmentsFor("op-1")
	require.Len(t, affected, 1)
	assert.Empty(t, s.AssignedTo("op-1"))
}

func TestByNetworkAddress(t *testing.T) {
	s := NewStore(nil)
	newSession(t, s, "alpha", "203.0.113.1", "ua-one")
	newSession(t, s, "beta", "203.0.113.1", "ua-two")
	newSession(t, s, "alpha", "203.0.113.2", "ua-one")

	assert.Len(t, s.ByNetworkAddress("203.0.113.1"), 2)
	assert.Len(t, s.ByNetworkAddress("203.0.113.9"), 0)
}

func TestClearStopsEverything(t *testing.T) {
	s := NewStore(nil)
	a := newSession(t, s, "alpha", "203.0.113.1", "ua")
	b := newSession(t, s, "alpha", "203.0.113.2", "ua")
	_, err := s.Promote(b.ID)
	require.NoError(t, err)
	_, err = s.SetNavigation(a.ID, "alphaverify.html")
	require.NoError(t, err)

	removed := s.Clear()
	assert.Len(t, removed, 2)

	pending, promoted := s.Counts()
	assert.Zero(t, pending)
	assert.Zero(t, promoted)
	_, ok := s.FindByURL(a.NavigationURL)
	assert.False(t, ok)
}

func TestPromoteReactivatesVerifiedSession(t *testing.T) {
	s := NewStore(nil)
	sess := newSession(t, s, "alpha", "203.0.113.7", "Mozilla/5.0")
	_, err := s.Promote(sess.ID)
	require.NoError(t, err)

	_, err = s.SetConnected(sess.ID, false)
	require.NoError(t, err)
	_, err = s.SetLoading(sess.ID, true)
	require.NoError(t, err)

	again, err := s.Promote(sess.ID)
	require.NoError(t, err)
	assert.True(t, again.Connected, "re-verification must reconnect the session")
	assert.False(t, again.Loading)
}

func TestSetMetadataMerges(t *testing.T) {
	s := NewStore(nil)
	sess := newSession(t, s, "alpha", "203.0.113.7", "Mozilla/5.0")

	_, err := s.SetMetadata(sess.ID, map[string]string{"step": "one"})
	require.NoError(t, err)
	updated, err := s.SetMetadata(sess.ID, map[string]string{"note": "checked"})
	require.NoError(t, err)

	assert.Equal(t, "one", updated.Metadata["step"])
	assert.Equal(t, "checked", updated.Metadata["note"])

	_, err = s.SetMetadata("ALPHA-ffffffff", map[string]string{"x": "y"})
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestHeartbeatReportsReconnect(t *testing.T) {
	s := NewStore(nil)
	sess := newSession(t, s, "alpha", "203.0.113.7", "Mozilla/5.0")
	sess.Connected = true
	sess.LastHeartbeat = time.Now().Add(-time.Minute)

	flipped := s.MarkStaleDisconnected(30 * time.Second)
	require.Len(t, flipped, 1)

	_, reconnected, err := s.Heartbeat(sess.ID)
	require.NoError(t, err)
	assert.True(t, reconnected, "heartbeat after a stale mark must report the transition")

	view, ok := s.View(sess.ID)
	require.True(t, ok)
	assert.True(t, view.Connected)

	_, reconnected, err = s.Heartbeat(sess.ID)
	require.NoError(t, err)
	assert.False(t, reconnected)
}

func TestConcurrentPlaceholderMergeAndView(t *testing.T) {
	s := NewStore(nil)
	sess := newSession(t, s, "alpha", "203.0.113.7", "Mozilla/5.0")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			assert.NoError(t, s.MergePlaceholders(sess.ID, map[string]string{
				"name": fmt.Sprintf("value-%d", i),
			}))
		}
	}()
	for i := 0; i < 200; i++ {
		if view, ok := s.View(sess.ID); ok {
			_ = view.Placeholders["name"]
		}
	}
	<-done

	view, ok := s.View(sess.ID)
	require.True(t, ok)
	assert.Equal(t, "value-199", view.Placeholders["name"])
}

func TestSetContact(t *testing.T) {
	s := NewStore(nil)
	sess := newSession(t, s, "alpha", "203.0.113.7", "Mozilla/5.0")

	require.NoError(t, s.SetContact(sess.ID, "visitor@example.com"))
	view, ok := s.View(sess.ID)
	require.True(t, ok)
	assert.Equal(t, "visitor@example.com", view.Contact)

	assert.ErrorIs(t, s.SetContact("ALPHA-ffffffff", "x"), session.ErrSessionNotFound)
}
