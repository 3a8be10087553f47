package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullAccessSeesEverything(t *testing.T) {
	v := FullAccess()
	assert.True(t, v.CanSee(""))
	assert.True(t, v.CanSee("op-1"))
	assert.True(t, v.IsFullAccess())
}

func TestRestrictedSeesOnlyOwnSessions(t *testing.T) {
	v := RestrictedTo("op-1")
	assert.True(t, v.CanSee("op-1"))
	assert.False(t, v.CanSee("op-2"))
	assert.False(t, v.CanSee(""), "unassigned sessions are hidden from restricted operators")
	assert.False(t, v.IsFullAccess())
	assert.Equal(t, "op-1", v.OwnerID())
}
