package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachReplacesAndDetachRespectsOwnership(t *testing.T) {
	hub := NewClientHub(nil)
	first := &ClientConn{SessionID: "ALPHA-1a2b3c4d", Send: make(chan []byte, 1)}
	second := &ClientConn{SessionID: "ALPHA-1a2b3c4d", Send: make(chan []byte, 1)}

	hub.Attach(first)
	require.True(t, hub.IsConnected("ALPHA-1a2b3c4d"))

	// A reconnect replaces the socket and closes the old send channel.
	hub.Attach(second)
	_, open := <-first.Send
	assert.False(t, open)

	// The replaced socket's teardown must not detach the replacement; this
	// is what keeps a quick reconnect from being treated as a disconnect.
	hub.Detach(first)
	assert.True(t, hub.IsConnected("ALPHA-1a2b3c4d"))

	hub.Detach(second)
	assert.False(t, hub.IsConnected("ALPHA-1a2b3c4d"))
}

func TestSendToConnectedSession(t *testing.T) {
	hub := NewClientHub(nil)
	conn := &ClientConn{SessionID: "ALPHA-1a2b3c4d", Send: make(chan []byte, 1)}
	hub.Attach(conn)

	assert.True(t, hub.SendTo("ALPHA-1a2b3c4d", "redirect", map[string]string{"url": "/pages/x.html"}))
	assert.False(t, hub.SendTo("ALPHA-ffffffff", "redirect", nil))

	msg := <-conn.Send
	assert.Contains(t, string(msg), "redirect")
}
