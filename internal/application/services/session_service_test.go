package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionbridge/sessionbridge-go/internal/domain/entities/session"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/messaging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/notifications"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/performance"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/pages"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/persistence/files"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/sessions"
)

type sessionFixture struct {
	svc   *SessionService
	store *sessions.Store
	hub   *messaging.ClientHub
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	dir := t.TempDir()
	store := sessions.NewStore(nil)
	hub := messaging.NewClientHub(nil)
	broadcaster := messaging.NewObserverBroadcaster(nil)
	resolver, err := pages.NewResolver("")
	require.NoError(t, err)
	bans, err := files.NewBanStore(dir, nil)
	require.NoError(t, err)
	aliases, err := files.NewAliasStore(dir, nil)
	require.NoError(t, err)
	settings, err := files.NewSettingsStore(dir, files.Settings{
		ServiceEnabled: true,
		ExitURL:        "https://www.example.com",
		DefaultEntry:   "verify",
	}, nil)
	require.NoError(t, err)

	svc := NewSessionService(store, hub, broadcaster, resolver, bans, aliases, settings, notifications.NoopSink{}, nil, performance.NewTracker(0))
	return &sessionFixture{svc: svc, store: store, hub: hub}
}

const (
	fixtureAddr = "203.0.113.7"
	fixtureUA   = "Mozilla/5.0"
)

func TestAuthorizePageBlocksUnverifiedContent(t *testing.T) {
	f := newSessionFixture(t)
	result, err := f.svc.Register(fixtureAddr, fixtureUA, "alpha", "")
	require.NoError(t, err)

	// The entry page is the one place a pending session may go.
	id, err := f.svc.AuthorizePage(result.EntryURL, fixtureAddr, fixtureUA)
	require.NoError(t, err)
	assert.Equal(t, result.SessionID, id)

	// A pending session pointed anywhere else is sent back to verify.
	_, err = f.store.SetNavigation(result.SessionID, "alphadone.html")
	require.NoError(t, err)
	view, ok := f.store.View(result.SessionID)
	require.True(t, ok)

	id, err = f.svc.AuthorizePage(view.NavigationURL, fixtureAddr, fixtureUA)
	assert.ErrorIs(t, err, session.ErrNotVerified)
	assert.Equal(t, result.SessionID, id)

	entry, err := f.svc.EntryRedirect(result.SessionID)
	require.NoError(t, err)
	_, err = f.svc.AuthorizePage(entry, fixtureAddr, fixtureUA)
	assert.NoError(t, err)
}

func TestAuthorizePageAfterVerification(t *testing.T) {
	f := newSessionFixture(t)
	result, err := f.svc.Register(fixtureAddr, fixtureUA, "alpha", "")
	require.NoError(t, err)

	loadingURL, err := f.svc.Verify(result.SessionID)
	require.NoError(t, err)

	_, err = f.svc.AuthorizePage(loadingURL, fixtureAddr, fixtureUA)
	assert.NoError(t, err)

	// The URL only works from the client it was issued to.
	_, err = f.svc.AuthorizePage(loadingURL, "198.51.100.9", fixtureUA)
	assert.ErrorIs(t, err, session.ErrAccessMismatch)

	// A URL the server never issued finds no session.
	_, err = f.svc.AuthorizePage("/pages/alphadone.html?client_id=x&oauth_challenge=y", fixtureAddr, fixtureUA)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestRedirectRejectsUnknownPage(t *testing.T) {
	f := newSessionFixture(t)
	result, err := f.svc.Register(fixtureAddr, fixtureUA, "alpha", "")
	require.NoError(t, err)
	_, err = f.svc.Verify(result.SessionID)
	require.NoError(t, err)

	err = f.svc.Redirect(result.SessionID, "definitely-not-configured", nil)
	assert.ErrorIs(t, err, pages.ErrUnknownPage)

	view, ok := f.store.View(result.SessionID)
	require.True(t, ok)
	assert.False(t, view.Loading, "a rejected redirect must not leave the session loading")
}

func TestClearAllPushesExitRedirectFirst(t *testing.T) {
	f := newSessionFixture(t)
	result, err := f.svc.Register(fixtureAddr, fixtureUA, "alpha", "")
	require.NoError(t, err)

	conn := &messaging.ClientConn{SessionID: result.SessionID, Send: make(chan []byte, 4)}
	f.hub.Attach(conn)

	cleared := f.svc.ClearAll()
	assert.Equal(t, 1, cleared)

	msg, ok := <-conn.Send
	require.True(t, ok, "the client must be told where to go before its socket closes")
	assert.Contains(t, string(msg), "redirect")
	assert.Contains(t, string(msg), "https://www.example.com")

	pending, promoted := f.store.Counts()
	assert.Zero(t, pending)
	assert.Zero(t, promoted)
}

func TestDisableServiceClearsSessions(t *testing.T) {
	f := newSessionFixture(t)
	_, err := f.svc.Register(fixtureAddr, fixtureUA, "alpha", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateSettings(files.Settings{
		ServiceEnabled: false,
		ExitURL:        "https://www.example.com",
		DefaultEntry:   "verify",
	}))

	pending, promoted := f.store.Counts()
	assert.Zero(t, pending)
	assert.Zero(t, promoted)

	_, err = f.svc.Register(fixtureAddr, fixtureUA, "alpha", "")
	assert.True(t, session.IsPolicyError(err))
}
